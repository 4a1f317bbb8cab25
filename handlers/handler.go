package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/garytangtang2-bit/hkfirstclick/database"
	"github.com/garytangtang2-bit/hkfirstclick/services"
	"github.com/gin-gonic/gin"
)

type EntitlementResolver interface {
	Resolve(ctx context.Context, bearer string) services.Entitlement
	Provision(ctx context.Context, ent services.Entitlement, startingCredits int) (*database.Account, error)
}

type TripPlanner interface {
	Generate(ctx context.Context, ent services.Entitlement, req services.TripRequest) (*services.Result, error)
	Update(ctx context.Context, ent services.Entitlement, in services.UpdateInput) (*services.Result, error)
	AuthorizeExport(ctx context.Context, ent services.Entitlement) (*services.ExportResult, error)
}

type CheckoutService interface {
	CreateCheckout(ctx context.Context, ent services.Entitlement, priceID string) (string, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type ItineraryReader interface {
	Get(ctx context.Context, id, userID string) (*database.Itinerary, error)
	List(ctx context.Context, userID string) ([]database.ItinerarySummary, error)
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps are the collaborators the HTTP layer needs. Billing and DB may be nil.
type Deps struct {
	Resolver        EntitlementResolver
	Planner         TripPlanner
	Billing         CheckoutService
	Itineraries     ItineraryReader
	DB              Pinger
	StartingCredits int
	Logger          *slog.Logger
}

type Handler struct {
	Deps
}

func New(deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Handler{Deps: deps}
}

// Register mounts every route on r, normally the /api group.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/health", h.Health)
	r.POST("/webhooks/stripe", h.StripeWebhook)

	user := r.Group("", h.ResolveEntitlement)
	{
		user.GET("/me", h.Me)
		user.POST("/me", h.Provision)
		user.POST("/generate-trip", h.GenerateTrip)
		user.POST("/update-trip", h.UpdateTrip)
		user.POST("/export-trip", h.ExportTrip)
		user.GET("/itineraries", h.ListItineraries)
		user.GET("/itineraries/:id/pdf", h.DownloadPDF)
		user.GET("/itineraries/:id/calendar", h.DownloadCalendar)
		user.POST("/checkout", h.Checkout)
	}
}

const entitlementKey = "entitlement"

// ResolveEntitlement attaches the caller's entitlement to the request.
// It never aborts; anonymous callers get the zero-credit default.
func (h *Handler) ResolveEntitlement(c *gin.Context) {
	c.Set(entitlementKey, h.Resolver.Resolve(c.Request.Context(), bearerToken(c.GetHeader("Authorization"))))
	c.Next()
}

// bearerToken matches the scheme case-insensitively. A header holding only a
// token is taken as is; any other scheme yields "".
func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	scheme, token, found := strings.Cut(header, " ")
	if !found {
		if strings.EqualFold(header, "Bearer") {
			return ""
		}
		return header
	}
	if !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func entitlement(c *gin.Context) services.Entitlement {
	if v, ok := c.Get(entitlementKey); ok {
		if ent, ok := v.(services.Entitlement); ok {
			return ent
		}
	}
	return services.Entitlement{Tier: services.TierTrial}
}

// fail maps a pipeline error to its status code. action completes the
// sentence "You do not have enough credits to ...".
func (h *Handler) fail(c *gin.Context, err error, action string) {
	status, msg := http.StatusInternalServerError, err.Error()
	var genErr *services.GenerationError

	switch {
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrUnknownPlan):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrUnauthenticated):
		status, msg = http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, services.ErrInsufficientCredits):
		status, msg = http.StatusPaymentRequired, "You do not have enough credits to "+action+". Please top up your account."
	case errors.Is(err, services.ErrTripTooLong):
		status, msg = http.StatusForbidden, "Free trial users are limited to generating itineraries up to 5 days. Please upgrade your plan for longer trips."
	case errors.Is(err, services.ErrItineraryNotFound):
		status, msg = http.StatusNotFound, "Itinerary not found"
	case errors.Is(err, services.ErrAccountNotFound):
		status, msg = http.StatusNotFound, "Profile not found"
	case errors.As(err, &genErr):
		h.Logger.Error("generation failed", "provider", genErr.Provider, "error", genErr.Err)
	default:
		h.Logger.Error("request failed", "path", c.FullPath(), "error", err)
	}

	c.JSON(status, gin.H{"error": msg})
}
