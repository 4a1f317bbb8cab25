package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/samber/lo"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"
)

// PricingPlan maps a Stripe price to the tier and credits it grants.
type PricingPlan struct {
	Tier    Tier
	PriceID string
	Credits int
}

func (p PricingPlan) mode() stripe.CheckoutSessionMode {
	if p.Tier == TierTopup {
		return stripe.CheckoutSessionModePayment
	}
	return stripe.CheckoutSessionModeSubscription
}

// CheckoutSessions is satisfied by *session.Client.
type CheckoutSessions interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

func NewStripeSessions(secretKey string) CheckoutSessions {
	return &session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey}
}

type Billing struct {
	sessions      CheckoutSessions
	accounts      Accounts
	plans         []PricingPlan
	siteURL       string
	webhookSecret string
	logger        *slog.Logger
}

func NewBilling(sessions CheckoutSessions, accounts Accounts, plans []PricingPlan, siteURL, webhookSecret string, logger *slog.Logger) *Billing {
	return &Billing{
		sessions:      sessions,
		accounts:      accounts,
		plans:         plans,
		siteURL:       siteURL,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// CreateCheckout starts a hosted checkout for priceID and returns its URL.
func (b *Billing) CreateCheckout(ctx context.Context, ent Entitlement, priceID string) (string, error) {
	if !ent.Authenticated {
		return "", ErrUnauthenticated
	}

	plan, ok := lo.Find(b.plans, func(p PricingPlan) bool { return p.PriceID != "" && p.PriceID == priceID })
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPlan, priceID)
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(plan.mode())),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(plan.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(b.siteURL + "/workspace?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(b.siteURL + "/pricing"),
		ClientReferenceID: stripe.String(ent.AccountID),
	}
	if ent.Email != "" {
		params.CustomerEmail = stripe.String(ent.Email)
	}
	params.Context = ctx
	params.AddMetadata("tier", string(plan.Tier))

	sess, err := b.sessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}

	b.logger.Info("checkout session created", "account_id", ent.AccountID, "tier", plan.Tier, "session_id", sess.ID)
	return sess.URL, nil
}

// HandleWebhook verifies the signature before reading anything else, then
// applies completed checkouts to the account.
func (b *Billing) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEventWithOptions(payload, signature, b.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		b.logger.Info("ignoring stripe event", "type", event.Type)
		return nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("decode checkout session: %w", err)
	}
	if sess.ClientReferenceID == "" {
		b.logger.Warn("checkout session without account reference", "session_id", sess.ID)
		return nil
	}

	plan := b.planForTier(Tier(sess.Metadata["tier"]))
	if plan.Tier == TierTopup {
		err = b.accounts.AddCredits(ctx, sess.ClientReferenceID, string(TierTopup), plan.Credits)
	} else {
		err = b.accounts.ApplySubscription(ctx, sess.ClientReferenceID, string(plan.Tier), plan.Credits)
	}
	if err != nil {
		return fmt.Errorf("apply %s plan: %w", plan.Tier, err)
	}

	b.logger.Info("plan applied", "account_id", sess.ClientReferenceID, "tier", plan.Tier, "credits", plan.Credits)
	return nil
}

// planForTier defaults to the PASS plan for sessions created without metadata.
func (b *Billing) planForTier(tier Tier) PricingPlan {
	if plan, ok := lo.Find(b.plans, func(p PricingPlan) bool { return p.Tier == tier }); ok {
		return plan
	}
	if plan, ok := lo.Find(b.plans, func(p PricingPlan) bool { return p.Tier == TierPass }); ok {
		return plan
	}
	return PricingPlan{Tier: TierPass, Credits: 50}
}
