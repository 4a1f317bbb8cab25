package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/garytangtang2-bit/hkfirstclick/database"
)

// Entitlement is the caller's tier and balance for the current request.
// Anonymous and unknown callers get TRIAL with zero credits.
type Entitlement struct {
	AccountID     string `json:"accountId,omitempty"`
	Email         string `json:"email,omitempty"`
	Tier          Tier   `json:"tier"`
	Credits       int    `json:"credits"`
	Authenticated bool   `json:"authenticated"`
	Found         bool   `json:"found"`
}

type IdentityVerifier interface {
	Verify(token string) (*Identity, error)
}

type Resolver struct {
	verifier IdentityVerifier
	accounts Accounts
	logger   *slog.Logger
}

func NewResolver(verifier IdentityVerifier, accounts Accounts, logger *slog.Logger) *Resolver {
	return &Resolver{verifier: verifier, accounts: accounts, logger: logger}
}

// Resolve never fails; every problem degrades to the zero-credit default.
func (r *Resolver) Resolve(ctx context.Context, bearer string) Entitlement {
	ent := Entitlement{Tier: TierTrial}

	bearer = strings.TrimSpace(bearer)
	if bearer == "" {
		return ent
	}

	id, err := r.verifier.Verify(bearer)
	if err != nil {
		r.logger.Warn("bearer token rejected", "error", err)
		return ent
	}
	ent.AccountID = id.AccountID
	ent.Email = id.Email
	ent.Authenticated = true

	acct, err := r.accounts.Get(ctx, id.AccountID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			r.logger.Warn("account not found for verified caller", "account_id", id.AccountID)
		} else {
			r.logger.Error("account lookup failed", "account_id", id.AccountID, "error", err)
		}
		return ent
	}

	ent.Tier = Tier(acct.Tier)
	ent.Credits = acct.Credits
	ent.Found = true
	return ent
}

// Provision creates the caller's account with the starting grant. Calling it
// for an existing account returns the stored row unchanged.
func (r *Resolver) Provision(ctx context.Context, ent Entitlement, startingCredits int) (*database.Account, error) {
	if !ent.Authenticated {
		return nil, ErrUnauthenticated
	}
	acct, err := r.accounts.Create(ctx, ent.AccountID, ent.Email, string(TierTrial), startingCredits)
	if err != nil {
		return nil, fmt.Errorf("provision account: %w", err)
	}
	return acct, nil
}
