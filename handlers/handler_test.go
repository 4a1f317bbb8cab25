package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/garytangtang2-bit/hkfirstclick/database"
	"github.com/garytangtang2-bit/hkfirstclick/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var (
	topupUser = services.Entitlement{AccountID: "acct-1", Email: "a@example.com", Tier: services.TierTopup, Credits: 2, Authenticated: true, Found: true}
	passUser  = services.Entitlement{AccountID: "acct-2", Tier: services.TierPass, Credits: 50, Authenticated: true, Found: true}
)

type fakeResolver struct {
	byToken map[string]services.Entitlement
}

func (f *fakeResolver) Resolve(_ context.Context, bearer string) services.Entitlement {
	if ent, ok := f.byToken[bearer]; ok {
		return ent
	}
	return services.Entitlement{Tier: services.TierTrial}
}

func (f *fakeResolver) Provision(_ context.Context, ent services.Entitlement, credits int) (*database.Account, error) {
	if !ent.Authenticated {
		return nil, services.ErrUnauthenticated
	}
	return &database.Account{ID: ent.AccountID, Tier: "TRIAL", Credits: credits}, nil
}

type fakePlanner struct {
	gotTrip   services.TripRequest
	gotUpdate services.UpdateInput
	exports   int
	result    *services.Result
	err       error
	exportErr error
}

func (f *fakePlanner) Generate(_ context.Context, _ services.Entitlement, req services.TripRequest) (*services.Result, error) {
	f.gotTrip = req
	return f.result, f.err
}

func (f *fakePlanner) Update(_ context.Context, _ services.Entitlement, in services.UpdateInput) (*services.Result, error) {
	f.gotUpdate = in
	return f.result, f.err
}

func (f *fakePlanner) AuthorizeExport(_ context.Context, ent services.Entitlement) (*services.ExportResult, error) {
	f.exports++
	if f.exportErr != nil {
		return nil, f.exportErr
	}
	if ent.Tier == services.TierPass {
		return &services.ExportResult{CreditsRemaining: ent.Credits}, nil
	}
	return &services.ExportResult{Charged: true, CreditsRemaining: ent.Credits - 1}, nil
}

type fakeCheckout struct {
	url        string
	err        error
	gotPayload []byte
	gotSig     string
}

func (f *fakeCheckout) CreateCheckout(_ context.Context, _ services.Entitlement, priceID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.url + "?price=" + priceID, nil
}

func (f *fakeCheckout) HandleWebhook(_ context.Context, payload []byte, sig string) error {
	f.gotPayload, f.gotSig = payload, sig
	return f.err
}

type fakeItineraries struct {
	rows []*database.Itinerary
}

func (f *fakeItineraries) Get(_ context.Context, id, userID string) (*database.Itinerary, error) {
	for _, it := range f.rows {
		if it.ID == id && it.UserID == userID {
			return it, nil
		}
	}
	return nil, database.ErrNotFound
}

func (f *fakeItineraries) List(_ context.Context, userID string) ([]database.ItinerarySummary, error) {
	out := []database.ItinerarySummary{}
	for _, it := range f.rows {
		if it.UserID == userID {
			out = append(out, database.ItinerarySummary{ID: it.ID, Title: it.Title, ParentID: it.ParentID, CreatedAt: it.CreatedAt})
		}
	}
	return out, nil
}

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }

const storedPlan = `{"destination":"Tokyo","flights":{},"hotel":{"name":"Grand Central TYO","estCostNumber":240},
"days":[{"date":"2026-03-01","theme":"Arrival","activities":[{"time":"04:00 PM","title":"Check in","costNumber":0},{"time":"07:00 PM","title":"Dinner","costNumber":15}]}]}`

type harness struct {
	router      *gin.Engine
	planner     *fakePlanner
	checkout    *fakeCheckout
	itineraries *fakeItineraries
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		planner:  &fakePlanner{},
		checkout: &fakeCheckout{url: "https://checkout.stripe.com/c/pay/cs_1"},
		itineraries: &fakeItineraries{rows: []*database.Itinerary{
			{ID: "it-1", UserID: "acct-1", Title: "Tokyo Trip", Destination: "Tokyo", StartDate: "2026-03-01", EndDate: "2026-03-01",
				Data: json.RawMessage(storedPlan), Preferences: json.RawMessage(`{}`), CreatedAt: time.Now()},
			{ID: "it-2", UserID: "acct-1", ParentID: sql.NullString{String: "it-1", Valid: true}, Title: "Tokyo Trip",
				Data: json.RawMessage(storedPlan), CreatedAt: time.Now()},
		}},
	}
	handler := New(Deps{
		Resolver:        &fakeResolver{byToken: map[string]services.Entitlement{"topup": topupUser, "pass": passUser}},
		Planner:         h.planner,
		Billing:         h.checkout,
		Itineraries:     h.itineraries,
		DB:              fakePinger{},
		StartingCredits: 3,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	h.router = gin.New()
	handler.Register(h.router.Group("/api"))
	return h
}

func (h *harness) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewBuffer(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestGenerateTrip(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	id := "it-9"
	h.planner.result = &services.Result{Itinerary: json.RawMessage(`{"days":[]}`), ItineraryID: &id}

	w := h.do(http.MethodPost, "/api/generate-trip", "topup", map[string]any{
		"origin":      "Hong Kong",
		"destination": "Tokyo",
		"dates":       map[string]string{"start": "2026-03-01", "end": "2026-03-03"},
		"preferences": map[string]any{"style": "luxury", "purposes": []string{"food"}, "budget": 2000},
		"currency":    "HKD",
		"uiLanguage":  "zh-HK",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "it-9", body["itineraryId"])
	assert.Equal(t, map[string]any{"days": []any{}}, body["itinerary"])

	got := h.planner.gotTrip
	assert.Equal(t, "2026-03-03", got.EndDate)
	assert.Equal(t, "luxury", got.Preferences.Style)
	assert.Equal(t, "2000", got.Preferences.Budget.String())
	assert.Equal(t, "zh-HK", got.UILanguage)
}

func TestGenerateTripErrorStatuses(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{fmt.Errorf("%w: origin and destination are required", services.ErrInvalidInput), http.StatusBadRequest, "origin and destination are required"},
		{services.ErrInsufficientCredits, http.StatusPaymentRequired, "You do not have enough credits to generate an itinerary. Please top up your account."},
		{fmt.Errorf("%w: TRIAL accounts are limited to 5 days", services.ErrTripTooLong), http.StatusForbidden, "Free trial users are limited"},
		{&services.GenerationError{Provider: "gemini", Err: errors.New("gemini API error (503): overloaded")}, http.StatusInternalServerError, "overloaded"},
	}
	for _, tc := range cases {
		h := newHarness(t)
		h.planner.err = tc.err

		w := h.do(http.MethodPost, "/api/generate-trip", "", `{"origin":"HK","destination":"Tokyo","dates":{"start":"2026-03-01","end":"2026-03-02"}}`)
		assert.Equal(t, tc.status, w.Code, tc.err.Error())
		assert.Contains(t, decode(t, w)["error"], tc.msg)
	}
}

func TestGenerateTripMalformedBody(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	w := h.do(http.MethodPost, "/api/generate-trip", "topup", `{"origin": `)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, h.planner.gotTrip.Origin)
}

func TestUpdateTrip(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	id := "it-3"
	h.planner.result = &services.Result{Itinerary: json.RawMessage(`{"days":[]}`), ItineraryID: &id}

	w := h.do(http.MethodPost, "/api/update-trip", "topup", map[string]any{
		"itineraryId":      "it-1",
		"currentItinerary": nil,
		"userMessage":      "remove all evening activities",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "it-3", decode(t, w)["itineraryId"])
	assert.Equal(t, "it-1", h.planner.gotUpdate.ItineraryID)
	assert.Nil(t, h.planner.gotUpdate.Current)
	assert.Equal(t, "remove all evening activities", h.planner.gotUpdate.Message)

	h.planner.err = services.ErrItineraryNotFound
	w = h.do(http.MethodPost, "/api/update-trip", "topup", map[string]any{"itineraryId": "nope", "userMessage": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	h.planner.err = services.ErrInsufficientCredits
	w = h.do(http.MethodPost, "/api/update-trip", "", map[string]any{"itineraryId": "it-1", "userMessage": "x"})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Contains(t, decode(t, w)["error"], "update your itinerary")
}

func TestExportTrip(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	w := h.do(http.MethodPost, "/api/export-trip", "pass", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Free export for members.", decode(t, w)["message"])

	w = h.do(http.MethodPost, "/api/export-trip", "topup", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "1 credit deducted.", body["message"])
	assert.EqualValues(t, 1, body["creditsRemaining"])

	for err, status := range map[error]int{
		services.ErrUnauthenticated:     http.StatusUnauthorized,
		services.ErrAccountNotFound:     http.StatusNotFound,
		services.ErrInsufficientCredits: http.StatusPaymentRequired,
		errors.New("db down"):           http.StatusInternalServerError,
	} {
		h.planner.exportErr = err
		w = h.do(http.MethodPost, "/api/export-trip", "topup", nil)
		assert.Equal(t, status, w.Code, err.Error())
	}
}

func TestListItineraries(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	w := h.do(http.MethodGet, "/api/itineraries", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(http.MethodGet, "/api/itineraries", "topup", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode(t, w)["itineraries"].([]any)
	require.Len(t, list, 2)
	assert.Nil(t, list[0].(map[string]any)["parent_id"])
	assert.Equal(t, "it-1", list[1].(map[string]any)["parent_id"])
	assert.NotContains(t, list[0].(map[string]any), "itinerary_data")

	w = h.do(http.MethodGet, "/api/itineraries", "pass", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["itineraries"])
}

func TestGetItineraryByID(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	w := h.do(http.MethodGet, "/api/itineraries?id=it-1", "topup", nil)
	require.Equal(t, http.StatusOK, w.Code)
	it := decode(t, w)["itinerary"].(map[string]any)
	assert.Equal(t, "it-1", it["id"])
	assert.Contains(t, it, "itinerary_data")

	w = h.do(http.MethodGet, "/api/itineraries?id=it-1", "pass", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDownloadPDF(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	w := h.do(http.MethodGet, "/api/itineraries/it-1/pdf", "topup", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "hkfirstclick-it-1.pdf")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))
	assert.Equal(t, 1, h.planner.exports)
}

func TestDownloadRefusesBeforeCharging(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	w := h.do(http.MethodGet, "/api/itineraries/it-1/pdf", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(http.MethodGet, "/api/itineraries/it-1/pdf", "pass", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Zero(t, h.planner.exports)

	h.planner.exportErr = services.ErrInsufficientCredits
	w = h.do(http.MethodGet, "/api/itineraries/it-1/calendar", "topup", nil)
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
}

func TestDownloadCalendar(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	w := h.do(http.MethodGet, "/api/itineraries/it-1/calendar", "topup", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/calendar")
	assert.Contains(t, w.Body.String(), "BEGIN:VCALENDAR")
	assert.Contains(t, w.Body.String(), "DTSTART:20260301T190000")
}

func TestDownloadRenderFailureDoesNotCharge(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.itineraries.rows = append(h.itineraries.rows, &database.Itinerary{
		ID: "it-bad", UserID: "acct-1", Title: "Tokyo Trip", Destination: "Tokyo",
		Data: json.RawMessage(`{"days":[{"date":"Day 1","activities":[{"time":"09:00 AM","title":"Breakfast"}]}]}`),
	})

	w := h.do(http.MethodGet, "/api/itineraries/it-bad/calendar", "topup", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to generate calendar")
	assert.NotContains(t, w.Header().Get("Content-Type"), "text/calendar")
	assert.Zero(t, h.planner.exports)
}

func TestBearerSchemeIsCaseInsensitive(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	for _, header := range []string{"Bearer topup", "bearer topup", "BEARER   topup"} {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", header)
		w := httptest.NewRecorder()
		h.router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, header)
		assert.Contains(t, w.Body.String(), topupUser.AccountID, header)
	}

	assert.Empty(t, bearerToken("Basic dG9wdXA="))
	assert.Empty(t, bearerToken("Bearer"))
	assert.Equal(t, "topup", bearerToken("topup"))
}

func TestCheckout(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	w := h.do(http.MethodPost, "/api/checkout", "", map[string]string{"priceId": "price_pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(http.MethodPost, "/api/checkout", "topup", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPost, "/api/checkout", "topup", map[string]string{"priceId": "price_pass"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_1?price=price_pass", decode(t, w)["url"])

	h.checkout.err = fmt.Errorf("%w: %q", services.ErrUnknownPlan, "price_x")
	w = h.do(http.MethodPost, "/api/checkout", "topup", map[string]string{"priceId": "price_x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStripeWebhook(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	payload := `{"id":"evt_1","type":"checkout.session.completed"}`

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewBufferString(payload))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, payload, string(h.checkout.gotPayload))
	assert.Equal(t, "t=1,v1=abc", h.checkout.gotSig)

	h.checkout.err = fmt.Errorf("%w: bad", services.ErrInvalidSignature)
	w = h.do(http.MethodPost, "/api/webhooks/stripe", "", payload)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	h.checkout.err = errors.New("db down")
	w = h.do(http.MethodPost, "/api/webhooks/stripe", "", payload)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestMeAndProvision(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	w := h.do(http.MethodGet, "/api/me", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "TRIAL", body["tier"])
	assert.EqualValues(t, 0, body["credits"])

	w = h.do(http.MethodGet, "/api/me", "pass", nil)
	assert.Equal(t, "PASS", decode(t, w)["tier"])

	w = h.do(http.MethodPost, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(http.MethodPost, "/api/me", "topup", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 3, decode(t, w)["credits"])
}

func TestHealth(t *testing.T) {
	t.Parallel()

	w := newHarness(t).do(http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["database"])

	h := New(Deps{DB: fakePinger{err: errors.New("connection refused")}})
	r := gin.New()
	h.Register(r.Group("/api"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, "error: connection refused", decode(t, rec)["database"])
}
