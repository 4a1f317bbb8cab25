package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samber/lo"
)

// ─── Types ────────────────────────────────────────────────────────────────────

// Fare is the cheapest cached fare the Data API knows for a route.
type Fare struct {
	Price        float64 `json:"price"`
	Airline      string  `json:"airline"`
	FlightNumber int     `json:"flight_number"`
	DepartureAt  string  `json:"departure_at"`
	ReturnAt     string  `json:"return_at"`
}

// FareQuery leaves DepartDate and ReturnDate empty for a route-level lookup.
type FareQuery struct {
	Origin      string
	Destination string
	DepartDate  string
	ReturnDate  string
	Currency    string
}

// ─── Travelpayouts Client ────────────────────────────────────────────────────

type TravelpayoutsClient struct {
	token           string
	marker          string
	apiURL          string
	autocompleteURL string
	httpClient      *http.Client
}

func NewTravelpayoutsClient(token, marker, apiURL, autocompleteURL string) *TravelpayoutsClient {
	return &TravelpayoutsClient{
		token:           token,
		marker:          marker,
		apiURL:          strings.TrimRight(apiURL, "/"),
		autocompleteURL: strings.TrimRight(autocompleteURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *TravelpayoutsClient) Configured() bool {
	return c.token != ""
}

func (c *TravelpayoutsClient) Marker() string {
	return c.marker
}

func (c *TravelpayoutsClient) doRequest(ctx context.Context, rawURL string, authenticated bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if authenticated {
		req.Header.Set("x-access-token", c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("travelpayouts error (%d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// ─── Location Codes ──────────────────────────────────────────────────────────

// ResolveCode returns the IATA city code that best matches name, or "" when
// the autocomplete service has no match.
func (c *TravelpayoutsClient) ResolveCode(ctx context.Context, name string) (string, error) {
	q := url.Values{}
	q.Set("term", name)
	q.Set("locale", "en")
	q.Set("types[]", "city")

	body, err := c.doRequest(ctx, c.autocompleteURL+"/places2?"+q.Encode(), false)
	if err != nil {
		return "", fmt.Errorf("autocomplete failed: %w", err)
	}

	var places []struct {
		Code string `json:"code"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &places); err != nil {
		return "", fmt.Errorf("failed to parse autocomplete: %w", err)
	}
	if len(places) == 0 {
		return "", nil
	}
	return places[0].Code, nil
}

// ─── Fares ───────────────────────────────────────────────────────────────────

type cheapPricesResponse struct {
	Success bool                       `json:"success"`
	Data    map[string]map[string]Fare `json:"data"`
	Error   string                     `json:"error"`
}

// CheapestFare queries /v1/prices/cheap. It returns (nil, nil) when the API
// answered but had no priced option for the route.
func (c *TravelpayoutsClient) CheapestFare(ctx context.Context, q FareQuery) (*Fare, error) {
	if !c.Configured() {
		return nil, errors.New("travelpayouts not configured")
	}

	params := url.Values{}
	params.Set("origin", q.Origin)
	params.Set("destination", q.Destination)
	if q.DepartDate != "" {
		params.Set("depart_date", q.DepartDate)
	}
	if q.ReturnDate != "" {
		params.Set("return_date", q.ReturnDate)
	}
	params.Set("currency", strings.ToLower(q.Currency))

	body, err := c.doRequest(ctx, c.apiURL+"/v1/prices/cheap?"+params.Encode(), true)
	if err != nil {
		return nil, fmt.Errorf("fare search failed: %w", err)
	}

	var resp cheapPricesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse fares: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("fare search unsuccessful: %s", resp.Error)
	}

	options := lo.Filter(lo.Values(resp.Data[q.Destination]), func(f Fare, _ int) bool {
		return f.Price > 0
	})
	if len(options) == 0 {
		return nil, nil
	}

	cheapest := lo.MinBy(options, func(a, b Fare) bool { return a.Price < b.Price })
	return &cheapest, nil
}

// ─── Affiliate Links ─────────────────────────────────────────────────────────

// FlightBookingURL builds an Aviasales search link. Dates are optional.
func FlightBookingURL(marker, origin, destination, departDate, returnDate string) string {
	u := fmt.Sprintf("https://search.aviasales.com/flights/?origin_iata=%s&destination_iata=%s",
		url.QueryEscape(origin), url.QueryEscape(destination))
	if departDate != "" && returnDate != "" {
		u += fmt.Sprintf("&depart_date=%s&return_date=%s", url.QueryEscape(departDate), url.QueryEscape(returnDate))
	}
	return u + "&marker=" + url.QueryEscape(marker)
}

// HotelBookingURL builds a Hotellook search link. Dates are optional.
func HotelBookingURL(marker, destination, checkIn, checkOut string) string {
	u := "https://search.hotellook.com/hotels/?destination=" + url.QueryEscape(destination)
	if checkIn != "" && checkOut != "" {
		u += fmt.Sprintf("&checkIn=%s&checkOut=%s", url.QueryEscape(checkIn), url.QueryEscape(checkOut))
	}
	return u + "&marker=" + url.QueryEscape(marker)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// airlineName returns full airline name from IATA code
func airlineName(code string) string {
	names := map[string]string{
		"CX": "Cathay Pacific",
		"UO": "HK Express",
		"HX": "Hong Kong Airlines",
		"NH": "ANA",
		"JL": "Japan Airlines",
		"MM": "Peach Aviation",
		"GK": "Jetstar Japan",
		"BR": "EVA Air",
		"CI": "China Airlines",
		"IT": "Tigerair Taiwan",
		"KE": "Korean Air",
		"OZ": "Asiana Airlines",
		"7C": "Jeju Air",
		"SQ": "Singapore Airlines",
		"TR": "Scoot",
		"TG": "Thai Airways",
		"FD": "Thai AirAsia",
		"AK": "AirAsia",
		"MH": "Malaysia Airlines",
		"VN": "Vietnam Airlines",
		"VJ": "VietJet Air",
		"PR": "Philippine Airlines",
		"5J": "Cebu Pacific",
		"CA": "Air China",
		"MU": "China Eastern",
		"CZ": "China Southern",
		"QF": "Qantas",
		"EK": "Emirates",
		"QR": "Qatar Airways",
		"EY": "Etihad Airways",
		"TK": "Turkish Airlines",
		"BA": "British Airways",
		"AF": "Air France",
		"LH": "Lufthansa",
		"KL": "KLM",
		"UA": "United Airlines",
		"AA": "American Airlines",
		"DL": "Delta Air Lines",
	}
	if name, ok := names[code]; ok {
		return name
	}
	if code != "" {
		return code + " Airlines"
	}
	return "Unknown Airline"
}
