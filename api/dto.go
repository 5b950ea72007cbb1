package api

import (
	"github.com/kinen-app/challenge-engine/challenge"
	"github.com/kinen-app/challenge-engine/settlement"
)

// =============================================================================
// REQUESTS
// =============================================================================

type CreateProfileRequest struct {
	StakeAmount  int64  `json:"stake_amount"`
	PayoutMethod string `json:"payout_method"`
}

type SubmitRecordRequest struct {
	Date   string `json:"date,omitempty"` // YYYY-MM-DD; empty = today
	Smoked bool   `json:"smoked"`
	Note   string `json:"note,omitempty"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type ChallengeDTO struct {
	ID               string `json:"id"`
	StartDate        string `json:"start_date"`
	EndDate          string `json:"end_date"`
	Status           string `json:"status"`
	TotalSuccessDays int    `json:"total_success_days"`
	TotalFailedDays  int    `json:"total_failed_days"`
	PaymentCompleted bool   `json:"payment_completed"`
	RefundCompleted  bool   `json:"refund_completed"`
	RefundAmount     *int64 `json:"refund_amount,omitempty"`

	// Live progress, derived from records (not the cached columns).
	SuccessDays    int `json:"success_days"`
	ElapsedDays    int `json:"elapsed_days"`
	UnrecordedDays int `json:"unrecorded_days"`
	RemainingDays  int `json:"remaining_days"`
}

type RecordDTO struct {
	ID     string `json:"id"`
	Date   string `json:"date"`
	Smoked bool   `json:"smoked"`
	Note   string `json:"note,omitempty"`
}

type RefundDTO struct {
	Status   string `json:"status"` // success | skipped | failed | none
	Amount   int64  `json:"amount"`
	RefundID string `json:"refund_id,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// CheckResponse is the completion-check reply: either the window is still
// open (remaining days) or the challenge is completed with its refund
// outcome.
type CheckResponse struct {
	Status        string     `json:"status"` // ongoing | completed
	RemainingDays int        `json:"remaining_days,omitempty"`
	SuccessDays   int        `json:"success_days"`
	Refund        *RefundDTO `json:"refund,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func checkResponseFrom(res settlement.Result) CheckResponse {
	if !res.Completed {
		return CheckResponse{
			Status:        "ongoing",
			RemainingDays: res.RemainingDays,
			SuccessDays:   res.SuccessDays,
		}
	}
	return CheckResponse{
		Status:      "completed",
		SuccessDays: res.SuccessDays,
		Refund: &RefundDTO{
			Status:   string(res.RefundStatus),
			Amount:   res.RefundAmount,
			RefundID: res.RefundID,
			Reason:   res.Reason,
		},
	}
}

func challengeDTO(c *challenge.Challenge, progress challenge.Progress, today challenge.Date) ChallengeDTO {
	return ChallengeDTO{
		ID:               string(c.ID),
		StartDate:        c.StartDate.String(),
		EndDate:          c.EndDate.String(),
		Status:           string(c.Status),
		TotalSuccessDays: c.TotalSuccessDays,
		TotalFailedDays:  c.TotalFailedDays,
		PaymentCompleted: c.PaymentCompleted,
		RefundCompleted:  c.RefundCompleted,
		RefundAmount:     c.RefundAmount,
		SuccessDays:      progress.SuccessDays,
		ElapsedDays:      progress.ElapsedDays,
		UnrecordedDays:   progress.UnrecordedDays,
		RemainingDays:    c.Period().RemainingDays(today),
	}
}
