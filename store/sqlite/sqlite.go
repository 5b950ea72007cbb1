/*
Package sqlite provides the SQLite-backed implementation of
settlement.Store.

PURPOSE:
  One relational store for profiles, challenges, and daily records. The
  same patterns apply to PostgreSQL; only dialect details differ.

GUARDED TRANSITIONS:
  The engine's exactly-once guarantees rest on two conditional UPDATEs
  whose WHERE clauses carry the state guard:

    UPDATE challenges SET status='completed', ... WHERE id=? AND status='active'
    UPDATE challenges SET refund_completed=1, ... WHERE id=? AND refund_completed=0

  RowsAffected distinguishes "applied" from "lost the race". No
  application-level locks exist; concurrent deployables coordinate only
  through these rows.

INVARIANT ENFORCEMENT:
  - UNIQUE(challenge_id, record_date): at most one record per day
  - No DELETE path for daily_records: records are never removed
  - Rows are validated into typed entities at this boundary, so
    downstream code never re-derives the invariants ad hoc

WAL MODE:
  Opened with WAL for reader/writer concurrency and crash recovery.

USAGE:
  store, err := sqlite.New("./data/challenge.db")  // ":memory:" for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kinen-app/challenge-engine/challenge"
	"github.com/kinen-app/challenge-engine/settlement"
)

type Store struct {
	db *sql.DB
}

var _ settlement.Store = (*Store)(nil)

// New opens (and migrates) the database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		stake_amount INTEGER NOT NULL,
		payout_method TEXT NOT NULL DEFAULT 'refund',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS challenges (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		total_success_days INTEGER NOT NULL DEFAULT 0,
		total_failed_days INTEGER NOT NULL DEFAULT 0,
		payment_intent_id TEXT NOT NULL DEFAULT '',
		payment_completed INTEGER NOT NULL DEFAULT 0,
		payment_completed_at TEXT,
		refund_completed INTEGER NOT NULL DEFAULT 0,
		refund_amount INTEGER,
		refund_completed_at TEXT,
		stripe_refund_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_challenges_user
		ON challenges(user_id, created_at DESC);

	-- Sweep hot path: active challenges whose window has elapsed
	CREATE INDEX IF NOT EXISTS idx_challenges_status_end
		ON challenges(status, end_date);

	-- Webhook lookup by charge reference
	CREATE INDEX IF NOT EXISTS idx_challenges_payment_intent
		ON challenges(payment_intent_id);

	CREATE TABLE IF NOT EXISTS daily_records (
		id TEXT PRIMARY KEY,
		challenge_id TEXT NOT NULL,
		record_date TEXT NOT NULL,
		smoked INTEGER NOT NULL DEFAULT 0,
		note TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		UNIQUE(challenge_id, record_date)
	);

	CREATE INDEX IF NOT EXISTS idx_records_challenge
		ON daily_records(challenge_id, record_date);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PROFILES
// =============================================================================

func (s *Store) SaveProfile(ctx context.Context, p *challenge.Profile) error {
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, stake_amount, payout_method, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			stake_amount = excluded.stake_amount,
			payout_method = excluded.payout_method`,
		string(p.UserID), p.StakeAmount, string(p.PayoutMethod), createdAt.Format(time.RFC3339))
	return err
}

func (s *Store) GetProfile(ctx context.Context, userID challenge.UserID) (*challenge.Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, stake_amount, payout_method, created_at
		FROM profiles WHERE user_id = ?`, string(userID))

	var p challenge.Profile
	var uid, method, createdAt string
	if err := row.Scan(&uid, &p.StakeAmount, &method, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, challenge.ErrProfileNotFound
		}
		return nil, err
	}
	p.UserID = challenge.UserID(uid)
	p.PayoutMethod = challenge.PayoutMethod(method)
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &p, nil
}

// =============================================================================
// CHALLENGES
// =============================================================================

const challengeColumns = `id, user_id, start_date, end_date, status,
	total_success_days, total_failed_days,
	payment_intent_id, payment_completed, payment_completed_at,
	refund_completed, refund_amount, refund_completed_at, stripe_refund_id,
	created_at`

func (s *Store) CreateChallenge(ctx context.Context, c *challenge.Challenge) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO challenges (id, user_id, start_date, end_date, status,
			total_success_days, total_failed_days, payment_intent_id,
			payment_completed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(c.ID), string(c.UserID), c.StartDate.String(), c.EndDate.String(),
		string(c.Status), c.TotalSuccessDays, c.TotalFailedDays,
		c.PaymentIntentID, boolToInt(c.PaymentCompleted), c.CreatedAt.Format(time.RFC3339))
	return err
}

func (s *Store) GetChallenge(ctx context.Context, id challenge.ChallengeID) (*challenge.Challenge, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+challengeColumns+` FROM challenges WHERE id = ?`, string(id))
	return scanChallenge(row)
}

func (s *Store) CurrentChallenge(ctx context.Context, userID challenge.UserID) (*challenge.Challenge, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+challengeColumns+` FROM challenges
		WHERE user_id = ? AND status != 'abandoned'
		ORDER BY created_at DESC LIMIT 1`, string(userID))
	return scanChallenge(row)
}

func (s *Store) ListElapsedActive(ctx context.Context, today challenge.Date) ([]challenge.Challenge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+challengeColumns+` FROM challenges
		WHERE status = 'active' AND end_date < ?`, today.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []challenge.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// HasActiveChallenge reports whether the user currently has an active
// challenge. Used by the start-challenge surface to reject doubles.
func (s *Store) HasActiveChallenge(ctx context.Context, userID challenge.UserID) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM challenges
		WHERE user_id = ? AND status = 'active'`, string(userID)).Scan(&n)
	return n > 0, err
}

// =============================================================================
// GUARDED TRANSITIONS
// =============================================================================

func (s *Store) CompleteChallenge(ctx context.Context, id challenge.ChallengeID, successDays, failedDays int) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE challenges
		SET status = 'completed', total_success_days = ?, total_failed_days = ?
		WHERE id = ? AND status = 'active'`,
		successDays, failedDays, string(id))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *Store) MarkRefunded(ctx context.Context, id challenge.ChallengeID, amount int64, refundID string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE challenges
		SET refund_completed = 1, refund_amount = ?, refund_completed_at = ?, stripe_refund_id = ?
		WHERE id = ? AND refund_completed = 0`,
		amount, at.UTC().Format(time.RFC3339), refundID, string(id))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *Store) ConfirmPayment(ctx context.Context, paymentIntentID string, at time.Time) error {
	// Plain idempotent flag write: duplicate or out-of-order deliveries
	// leave the row unchanged.
	_, err := s.db.ExecContext(ctx, `
		UPDATE challenges
		SET payment_completed = 1, payment_completed_at = ?
		WHERE payment_intent_id = ? AND payment_completed = 0`,
		at.UTC().Format(time.RFC3339), paymentIntentID)
	return err
}

// =============================================================================
// DAILY RECORDS
// =============================================================================

func (s *Store) ListRecords(ctx context.Context, id challenge.ChallengeID) ([]challenge.DailyRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, challenge_id, record_date, smoked, note, created_at
		FROM daily_records WHERE challenge_id = ?
		ORDER BY record_date`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []challenge.DailyRecord
	for rows.Next() {
		var r challenge.DailyRecord
		var rid, cid, date, createdAt string
		var smoked int
		if err := rows.Scan(&rid, &cid, &date, &smoked, &r.Note, &createdAt); err != nil {
			return nil, err
		}
		r.ID = rid
		r.ChallengeID = challenge.ChallengeID(cid)
		if r.Date, err = challenge.ParseDate(date); err != nil {
			return nil, fmt.Errorf("corrupt record_date %q: %w", date, err)
		}
		r.Smoked = smoked != 0
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) UpsertRecord(ctx context.Context, r *challenge.DailyRecord) error {
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	// The unique index keeps (challenge, date) single; a re-submission may
	// only move the outcome fields. There is no delete path.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_records (id, challenge_id, record_date, smoked, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(challenge_id, record_date) DO UPDATE SET
			smoked = excluded.smoked,
			note = excluded.note`,
		r.ID, string(r.ChallengeID), r.Date.String(), boolToInt(r.Smoked), r.Note,
		createdAt.Format(time.RFC3339))
	return err
}

// =============================================================================
// SCANNING
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChallenge(row rowScanner) (*challenge.Challenge, error) {
	var c challenge.Challenge
	var id, uid, start, end, status, createdAt string
	var paymentCompleted, refundCompleted int
	var paymentCompletedAt, refundCompletedAt sql.NullString
	var refundAmount sql.NullInt64

	err := row.Scan(&id, &uid, &start, &end, &status,
		&c.TotalSuccessDays, &c.TotalFailedDays,
		&c.PaymentIntentID, &paymentCompleted, &paymentCompletedAt,
		&refundCompleted, &refundAmount, &refundCompletedAt, &c.StripeRefundID,
		&createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, challenge.ErrChallengeNotFound
		}
		return nil, err
	}

	c.ID = challenge.ChallengeID(id)
	c.UserID = challenge.UserID(uid)
	c.Status = challenge.Status(status)
	if c.StartDate, err = challenge.ParseDate(start); err != nil {
		return nil, fmt.Errorf("corrupt start_date %q: %w", start, err)
	}
	if c.EndDate, err = challenge.ParseDate(end); err != nil {
		return nil, fmt.Errorf("corrupt end_date %q: %w", end, err)
	}
	c.PaymentCompleted = paymentCompleted != 0
	c.RefundCompleted = refundCompleted != 0
	if paymentCompletedAt.Valid {
		t, _ := time.Parse(time.RFC3339, paymentCompletedAt.String)
		c.PaymentCompletedAt = &t
	}
	if refundCompletedAt.Valid {
		t, _ := time.Parse(time.RFC3339, refundCompletedAt.String)
		c.RefundCompletedAt = &t
	}
	if refundAmount.Valid {
		v := refundAmount.Int64
		c.RefundAmount = &v
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
