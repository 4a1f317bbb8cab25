package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/garytangtang2-bit/hkfirstclick/database"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type Quoter interface {
	Fetch(ctx context.Context, req QuoteRequest) Quotes
}

type Generator interface {
	Generate(ctx context.Context, profile TierProfile, prompt Prompt) (*Generated, error)
}

// Result is what generate and update hand back to the caller.
type Result struct {
	Itinerary   json.RawMessage `json:"itinerary"`
	ItineraryID *string         `json:"itineraryId"`
	Quotes      *Quotes         `json:"quotes,omitempty"`
	BudgetTotal decimal.Decimal `json:"budgetTotal"`

	Plan     Plan   `json:"-"`
	Provider string `json:"-"`
}

type UpdateInput struct {
	Current     json.RawMessage
	ItineraryID string
	Message     string
	UILanguage  string
	Currency    string
}

type ExportResult struct {
	Charged          bool `json:"charged"`
	CreditsRemaining int  `json:"creditsRemaining"`
}

// Planner runs the generate, update and export flows.
type Planner struct {
	tiers       *TierTable
	quotes      Quoter
	generator   Generator
	settler     *Settler
	accounts    Accounts
	itineraries Itineraries
	logger      *slog.Logger
	now         func() time.Time
}

func NewPlanner(tiers *TierTable, quotes Quoter, generator Generator, settler *Settler,
	accounts Accounts, itineraries Itineraries, logger *slog.Logger) *Planner {
	return &Planner{
		tiers:       tiers,
		quotes:      quotes,
		generator:   generator,
		settler:     settler,
		accounts:    accounts,
		itineraries: itineraries,
		logger:      logger,
		now:         time.Now,
	}
}

// Generate builds a new itinerary. Entitlement checks run before any
// upstream call.
func (p *Planner) Generate(ctx context.Context, ent Entitlement, req TripRequest) (*Result, error) {
	req, days, err := validateTrip(req)
	if err != nil {
		return nil, err
	}

	if ent.Credits <= 0 {
		return nil, ErrInsufficientCredits
	}

	profile := p.tiers.ProfileFor(string(ent.Tier))
	if profile.MaxTripDays > 0 && days > profile.MaxTripDays {
		return nil, fmt.Errorf("%w: %s accounts are limited to %d days, requested %d",
			ErrTripTooLong, profile.Tier, profile.MaxTripDays, days)
	}

	quotes := p.quotes.Fetch(ctx, QuoteRequest{
		Origin:      req.Origin,
		Destination: req.Destination,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Currency:    req.Currency,
	})

	prompt := ComposeGeneration(GenerationPromptInput{Trip: req, Quotes: quotes, Profile: profile})
	gen, err := p.generator.Generate(ctx, profile, prompt)
	if err != nil {
		return nil, err
	}

	prefs, err := json.Marshal(req.Preferences)
	if err != nil {
		prefs = []byte(`{}`)
	}

	destination := lo.CoalesceOrEmpty(gen.Plan.Destination, req.Destination)
	id := p.settler.Settle(ctx, Settlement{
		AccountID:   ent.AccountID,
		Title:       destination + " Trip",
		Destination: destination,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Raw:         gen.Raw,
		Preferences: prefs,
	})

	p.logger.Info("itinerary generated",
		"account_id", ent.AccountID, "tier", profile.Tier, "provider", gen.Provider,
		"quote_source", quotes.Source, "days", days)

	return &Result{
		Itinerary:   gen.Raw,
		ItineraryID: id,
		Quotes:      &quotes,
		BudgetTotal: BudgetTotal(gen.Plan),
		Plan:        gen.Plan,
		Provider:    gen.Provider,
	}, nil
}

// Update revises an itinerary and stores the revision as a child row.
func (p *Planner) Update(ctx context.Context, ent Entitlement, in UpdateInput) (*Result, error) {
	in.Message = strings.TrimSpace(in.Message)
	in.ItineraryID = strings.TrimSpace(in.ItineraryID)
	if in.Message == "" || (len(bytes.TrimSpace(in.Current)) == 0 && in.ItineraryID == "") {
		return nil, invalidInput("missing required fields")
	}

	if ent.Credits <= 0 {
		return nil, ErrInsufficientCredits
	}

	if in.ItineraryID != "" {
		parent, err := p.itineraries.Get(ctx, in.ItineraryID, ent.AccountID)
		switch {
		case errors.Is(err, database.ErrNotFound):
			return nil, ErrItineraryNotFound
		case err != nil:
			return nil, fmt.Errorf("load itinerary: %w", err)
		}
		if len(bytes.TrimSpace(in.Current)) == 0 {
			in.Current = parent.Data
		}
	}

	var current map[string]json.RawMessage
	if err := json.Unmarshal(in.Current, &current); err != nil {
		return nil, invalidInput("currentItinerary must be a JSON object")
	}

	profile := p.tiers.ProfileFor(string(ent.Tier))
	prompt := ComposeRevision(RevisionPromptInput{
		Current:    in.Current,
		Message:    in.Message,
		UILanguage: in.UILanguage,
		Currency:   in.Currency,
		Profile:    profile,
	})

	gen, err := p.generator.Generate(ctx, profile, prompt)
	if err != nil {
		return nil, err
	}

	merged, restored, err := restoreTopLevelKeys(in.Current, gen.Raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAIOutput, err)
	}
	if len(restored) > 0 {
		p.logger.Warn("revision dropped top-level keys, restored from original", "keys", restored)
		if regen, err := Normalize(string(merged)); err == nil {
			regen.Provider = gen.Provider
			gen = regen
		}
	}

	start, end := gen.Plan.DateRange(p.now())
	destination := lo.CoalesceOrEmpty(gen.Plan.Destination, "Unknown")
	title := lo.CoalesceOrEmpty(gen.Plan.Destination, "Updated") + " Trip"

	id := p.settler.Settle(ctx, Settlement{
		AccountID:   ent.AccountID,
		ParentID:    in.ItineraryID,
		Title:       title,
		Destination: destination,
		StartDate:   start,
		EndDate:     end,
		Raw:         gen.Raw,
		Preferences: json.RawMessage(`{}`),
	})
	if id == nil && in.ItineraryID != "" {
		parentID := in.ItineraryID
		id = &parentID
	}

	p.logger.Info("itinerary updated",
		"account_id", ent.AccountID, "parent_id", in.ItineraryID, "provider", gen.Provider)

	return &Result{
		Itinerary:   gen.Raw,
		ItineraryID: id,
		BudgetTotal: BudgetTotal(gen.Plan),
		Plan:        gen.Plan,
		Provider:    gen.Provider,
	}, nil
}

// AuthorizeExport charges one credit for an export unless the tier exports free.
func (p *Planner) AuthorizeExport(ctx context.Context, ent Entitlement) (*ExportResult, error) {
	if !ent.Authenticated {
		return nil, ErrUnauthenticated
	}
	if !ent.Found {
		return nil, ErrAccountNotFound
	}

	profile := p.tiers.ProfileFor(string(ent.Tier))
	if profile.FreeExport {
		return &ExportResult{CreditsRemaining: ent.Credits}, nil
	}

	if ent.Credits < 1 {
		return nil, ErrInsufficientCredits
	}

	remaining, err := p.accounts.DecrementCredit(ctx, ent.AccountID)
	if err != nil {
		if errors.Is(err, database.ErrNoCredits) {
			return nil, ErrInsufficientCredits
		}
		return nil, fmt.Errorf("deduct export credit: %w", err)
	}
	return &ExportResult{Charged: true, CreditsRemaining: remaining}, nil
}

// validateTrip trims and checks the request and returns the inclusive day count.
func validateTrip(req TripRequest) (TripRequest, int, error) {
	req.Origin = strings.TrimSpace(req.Origin)
	req.Destination = strings.TrimSpace(req.Destination)
	if req.Origin == "" || req.Destination == "" {
		return req, 0, invalidInput("origin and destination are required")
	}

	start, err := time.Parse(dateLayout, strings.TrimSpace(req.StartDate))
	if err != nil {
		return req, 0, invalidInput("invalid start date format, use YYYY-MM-DD")
	}
	end, err := time.Parse(dateLayout, strings.TrimSpace(req.EndDate))
	if err != nil {
		return req, 0, invalidInput("invalid end date format, use YYYY-MM-DD")
	}
	if end.Before(start) {
		return req, 0, invalidInput("end date must not be before start date")
	}
	if days := TripDays(start, end); days > maxTripDays {
		return req, 0, invalidInput("trips are limited to %d days, requested %d", maxTripDays, days)
	}
	req.StartDate, req.EndDate = start.Format(dateLayout), end.Format(dateLayout)

	prefs := &req.Preferences
	prefs.Purposes = lo.Uniq(lo.Compact(lo.Map(prefs.Purposes, func(s string, _ int) string {
		return strings.TrimSpace(s)
	})))
	if len(prefs.Purposes) > maxPurposes {
		return req, 0, invalidInput("choose at most %d purposes", maxPurposes)
	}
	prefs.Dietary = lo.Uniq(lo.Compact(lo.Map(prefs.Dietary, func(s string, _ int) string {
		return strings.ToLower(strings.TrimSpace(s))
	})))

	prefs.Style = strings.ToLower(strings.TrimSpace(prefs.Style))
	if !lo.Contains([]string{StyleBackpacker, StyleBalanced, StyleLuxury}, prefs.Style) {
		prefs.Style = StyleBalanced
	}
	if prefs.Budget.IsNegative() {
		return req, 0, invalidInput("budget must not be negative")
	}
	if prefs.Group.Adults < 0 || prefs.Group.Children < 0 {
		return req, 0, invalidInput("group counts must not be negative")
	}
	req.Currency = normalizeCurrency(req.Currency)
	prefs.Currency = req.Currency

	return req, TripDays(start, end), nil
}
