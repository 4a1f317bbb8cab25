package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrNoCredits is returned by DecrementCredit when the balance is already zero.
var ErrNoCredits = errors.New("no credits remaining")

type Account struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Tier      string    `json:"tier" db:"tier"`
	Credits   int       `json:"credits" db:"credits"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type AccountStats struct {
	Trial  int       `json:"trial"`
	Paid   int       `json:"paid"`
	Recent []Account `json:"recent"`
}

type AccountStore struct {
	db *sqlx.DB
}

func NewAccountStore(db *sqlx.DB) *AccountStore {
	return &AccountStore{db: db}
}

const accountColumns = `id, email, tier, credits, created_at, updated_at`

func (s *AccountStore) Get(ctx context.Context, id string) (*Account, error) {
	var a Account
	err := s.db.GetContext(ctx, &a, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

// Create inserts the account unless it already exists and returns the stored row.
func (s *AccountStore) Create(ctx context.Context, id, email, tier string, credits int) (*Account, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, email, tier, credits)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`,
		id, email, tier, credits)
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return s.Get(ctx, id)
}

// DecrementCredit removes exactly one credit, refusing to go below zero.
func (s *AccountStore) DecrementCredit(ctx context.Context, id string) (int, error) {
	var remaining int
	err := s.db.QueryRowContext(ctx, `
		UPDATE accounts SET credits = credits - 1, updated_at = NOW()
		WHERE id = $1 AND credits > 0
		RETURNING credits`, id).Scan(&remaining)
	if err != nil {
		if errors.Is(notFound(err), ErrNotFound) {
			return 0, ErrNoCredits
		}
		return 0, fmt.Errorf("decrement credits: %w", err)
	}
	return remaining, nil
}

// ApplySubscription moves the account to a subscription tier with a fresh credit grant.
func (s *AccountStore) ApplySubscription(ctx context.Context, id, tier string, credits int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET tier = $2, credits = $3, updated_at = NOW()
		WHERE id = $1`, id, tier, credits)
	if err != nil {
		return fmt.Errorf("apply subscription: %w", err)
	}
	return requireRow(res.RowsAffected())
}

// AddCredits tops up the balance; trial accounts become top-up accounts.
func (s *AccountStore) AddCredits(ctx context.Context, id, topupTier string, credits int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET credits = credits + $3,
		    tier = CASE WHEN tier = 'TRIAL' THEN $2 ELSE tier END,
		    updated_at = NOW()
		WHERE id = $1`, id, topupTier, credits)
	if err != nil {
		return fmt.Errorf("add credits: %w", err)
	}
	return requireRow(res.RowsAffected())
}

// Stats counts trial versus paid accounts and lists the most recently touched ones.
func (s *AccountStore) Stats(ctx context.Context, trialTier string, recent int) (*AccountStats, error) {
	stats := &AccountStats{}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FILTER (WHERE tier = $1), COUNT(*) FILTER (WHERE tier <> $1)
		FROM accounts`, trialTier).Scan(&stats.Trial, &stats.Paid)
	if err != nil {
		return nil, fmt.Errorf("count accounts: %w", err)
	}

	err = s.db.SelectContext(ctx, &stats.Recent, `
		SELECT `+accountColumns+` FROM accounts
		ORDER BY updated_at DESC LIMIT $1`, recent)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return stats, nil
}

func requireRow(n int64, err error) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
