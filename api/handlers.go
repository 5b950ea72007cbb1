/*
handlers.go - HTTP trigger surfaces for the settlement engine

PURPOSE:
  The four surfaces that can drive a challenge to settlement, plus the
  minimal profile/challenge/record plumbing they depend on:

    POST /api/challenges/check    user-facing completion check
    POST /api/records             daily record + inline completion trigger
    POST /api/sweep               scheduled batch sweep (shared secret)
    POST /api/webhooks/stripe     processor payment confirmation

  Every surface tolerates being a duplicate of any other: the executor's
  guarded store updates are the only coordination.

ERROR HANDLING:
  400 invalid input; 401 bad credentials; 404 no challenge/profile;
  409 active challenge exists; 500 store/processor unavailability and
  partial-failure reconciliation. Precondition-not-met ("window not
  elapsed", "not eligible", "zero amount") is a 200 outcome value, never
  an error. Lost races are logged and reported as success-by-another-
  writer.

SEE ALSO:
  - dto.go: Request/response shapes
  - server.go: Router and middleware
  - settlement/executor.go: The protocol behind these handlers
*/
package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kinen-app/challenge-engine/challenge"
	"github.com/kinen-app/challenge-engine/payments"
	"github.com/kinen-app/challenge-engine/settlement"
)

// Handler holds all dependencies for the HTTP surfaces.
type Handler struct {
	Store     settlement.Store
	Executor  *settlement.Executor
	Processor payments.Processor

	SweepSecret   string
	WebhookSecret string

	// Now is the wall clock; tests pin it.
	Now func() time.Time
}

func NewHandler(store settlement.Store, exec *settlement.Executor, processor payments.Processor, sweepSecret, webhookSecret string) *Handler {
	return &Handler{
		Store:         store,
		Executor:      exec,
		Processor:     processor,
		SweepSecret:   sweepSecret,
		WebhookSecret: webhookSecret,
		Now:           time.Now,
	}
}

// =============================================================================
// PROFILE + CHALLENGE SETUP
// =============================================================================

// CreateProfile saves the caller's staking terms.
func (h *Handler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req CreateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.StakeAmount < 0 {
		writeError(w, http.StatusBadRequest, "stake_amount must not be negative", nil)
		return
	}
	method := challenge.PayoutMethod(req.PayoutMethod)
	if method == "" {
		method = challenge.PayoutRefund
	}
	if method != challenge.PayoutRefund {
		writeError(w, http.StatusBadRequest, "unsupported payout_method", nil)
		return
	}

	p := &challenge.Profile{UserID: userID, StakeAmount: req.StakeAmount, PayoutMethod: method}
	if err := h.Store.SaveProfile(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save profile", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"user_id":       string(p.UserID),
		"stake_amount":  p.StakeAmount,
		"payout_method": string(p.PayoutMethod),
	})
}

// StartChallenge opens a 30-day challenge for the caller, creating the
// processor charge for the stake (or the free-participation sentinel when
// the stake is zero).
func (h *Handler) StartChallenge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := UserIDFromContext(ctx)

	profile, err := h.Store.GetProfile(ctx, userID)
	if err != nil {
		if challenge.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "profile not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load profile", err)
		return
	}

	active, err := h.Store.HasActiveChallenge(ctx, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check active challenge", err)
		return
	}
	if active {
		writeError(w, http.StatusConflict, "active challenge already exists", challenge.ErrChallengeExists)
		return
	}

	chargeRef := challenge.FreeParticipation
	if profile.StakeAmount > 0 {
		chargeRef, err = h.Processor.CreateCharge(ctx, string(userID), profile.StakeAmount)
		if err != nil {
			writeError(w, http.StatusBadGateway, "failed to create charge", err)
			return
		}
	}

	now := h.Now()
	start := challenge.Today(now)
	ch := &challenge.Challenge{
		ID:              challenge.ChallengeID(uuid.NewString()),
		UserID:          userID,
		StartDate:       start,
		EndDate:         start.AddDays(challenge.DaysInWindow - 1),
		Status:          challenge.StatusActive,
		PaymentIntentID: chargeRef,
		CreatedAt:       now.UTC(),
	}
	if err := h.Store.CreateChallenge(ctx, ch); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create challenge", err)
		return
	}

	writeJSON(w, http.StatusCreated, challengeDTO(ch, challenge.Progress{ElapsedDays: 1, UnrecordedDays: 1}, start))
}

// GetCurrentChallenge returns the caller's challenge with live progress.
func (h *Handler) GetCurrentChallenge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := UserIDFromContext(ctx)

	ch, err := h.Store.CurrentChallenge(ctx, userID)
	if err != nil {
		if challenge.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "no challenge found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load challenge", err)
		return
	}

	records, err := h.Store.ListRecords(ctx, ch.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load records", err)
		return
	}

	today := challenge.Today(h.Now())
	progress := challenge.Aggregate(records, ch.Period(), today)
	writeJSON(w, http.StatusOK, challengeDTO(ch, progress, today))
}

// =============================================================================
// DAILY RECORDS + INLINE TRIGGER
// =============================================================================

// SubmitRecord writes the day's record, then immediately runs the
// completion check for the same challenge with the just-written set.
func (h *Handler) SubmitRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := UserIDFromContext(ctx)

	var req SubmitRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	ch, err := h.Store.CurrentChallenge(ctx, userID)
	if err != nil {
		if challenge.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "no challenge found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load challenge", err)
		return
	}
	if ch.Status != challenge.StatusActive {
		writeError(w, http.StatusConflict, "challenge is not active", nil)
		return
	}

	now := h.Now()
	today := challenge.Today(now)
	date := today
	if req.Date != "" {
		if date, err = challenge.ParseDate(req.Date); err != nil {
			writeError(w, http.StatusBadRequest, "invalid date format (use YYYY-MM-DD)", err)
			return
		}
	}
	if !ch.Period().Contains(date) {
		writeError(w, http.StatusBadRequest, "date is outside the challenge window", nil)
		return
	}
	if date.After(today) {
		writeError(w, http.StatusBadRequest, "cannot record a future date", nil)
		return
	}

	rec := &challenge.DailyRecord{
		ID:          uuid.NewString(),
		ChallengeID: ch.ID,
		Date:        date,
		Smoked:      req.Smoked,
		Note:        req.Note,
		CreatedAt:   now.UTC(),
	}
	if err := h.Store.UpsertRecord(ctx, rec); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save record", err)
		return
	}

	// Inline trigger: the record just written may be the 30th.
	res, err := h.Executor.Settle(ctx, ch, now)
	if err != nil {
		h.writeSettleError(w, res, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"record": RecordDTO{ID: rec.ID, Date: rec.Date.String(), Smoked: rec.Smoked, Note: rec.Note},
		"check":  checkResponseFrom(res),
	})
}

// ListRecords returns every record of the caller's current challenge.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := UserIDFromContext(ctx)

	ch, err := h.Store.CurrentChallenge(ctx, userID)
	if err != nil {
		if challenge.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "no challenge found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load challenge", err)
		return
	}

	records, err := h.Store.ListRecords(ctx, ch.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load records", err)
		return
	}

	dtos := make([]RecordDTO, len(records))
	for i, rec := range records {
		dtos[i] = RecordDTO{ID: rec.ID, Date: rec.Date.String(), Smoked: rec.Smoked, Note: rec.Note}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// COMPLETION CHECK (user-facing trigger)
// =============================================================================

// CheckCompletion evaluates the caller's challenge: ongoing replies with
// the remaining-day count and performs no transition; an elapsed or fully
// recorded window is settled and the refund outcome reported.
func (h *Handler) CheckCompletion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := UserIDFromContext(ctx)

	res, err := h.Executor.SettleUser(ctx, userID, h.Now())
	if err != nil {
		h.writeSettleError(w, res, err)
		return
	}
	writeJSON(w, http.StatusOK, checkResponseFrom(res))
}

// writeSettleError maps executor failures per the error taxonomy.
func (h *Handler) writeSettleError(w http.ResponseWriter, res settlement.Result, err error) {
	switch {
	case challenge.IsNotFound(err):
		writeError(w, http.StatusNotFound, "no challenge found", nil)

	case errors.Is(err, challenge.ErrRefundFailed):
		// The challenge completed; the refund did not. Reported as an
		// outcome, never swallowed, never auto-retried.
		writeJSON(w, http.StatusOK, checkResponseFrom(res))

	case errors.Is(err, challenge.ErrReconcileRequired):
		// Money moved (or outcome unknown), record not updated. Operator
		// must reconcile by hand; retrying risks a second real refund.
		var rec *challenge.ReconciliationError
		details := err.Error()
		if errors.As(err, &rec) {
			log.Printf("[API] RECONCILE REQUIRED: %v", rec)
		}
		writeError(w, http.StatusInternalServerError, "refund requires manual reconciliation", errors.New(details))

	default:
		writeError(w, http.StatusInternalServerError, "settlement failed", err)
	}
}

// =============================================================================
// SWEEP (scheduled trigger)
// =============================================================================

// Sweep settles every elapsed-but-active challenge. Protected by a shared
// bearer secret; both the external scheduler and ops hit this endpoint.
func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	if !h.sweepAuthorized(r) {
		writeError(w, http.StatusUnauthorized, "invalid sweep credential", nil)
		return
	}

	report, err := h.Executor.Sweep(r.Context(), h.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "sweep failed", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) sweepAuthorized(r *http.Request) bool {
	if h.SweepSecret == "" {
		return false
	}
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return false
	}
	token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.SweepSecret)) == 1
}

// =============================================================================
// PROCESSOR WEBHOOK
// =============================================================================

const maxWebhookBody = 64 << 10

// StripeWebhook consumes signed processor events. Only
// payment_intent.succeeded changes state (the idempotent payment-confirmed
// flag); unrecognized event types are accepted and ignored. Delivery is
// at-least-once and possibly out of order.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read payload", err)
		return
	}

	chargeRef, ok, err := payments.ParsePaymentConfirmation(payload, r.Header.Get("Stripe-Signature"), h.WebhookSecret)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook signature", err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.Store.ConfirmPayment(r.Context(), chargeRef, h.Now()); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to confirm payment", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := errorResponse{Error: msg}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
