package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type QuoteSource string

const (
	QuoteLive      QuoteSource = "live"
	QuoteRoute     QuoteSource = "route"
	QuoteEstimated QuoteSource = "estimated"
)

type FlightQuote struct {
	Outbound   string          `json:"outbound"`
	Return     string          `json:"return"`
	EstCost    decimal.Decimal `json:"estCost"`
	Currency   string          `json:"currency"`
	BookingURL string          `json:"bookingUrl"`
}

type HotelQuote struct {
	Name            string          `json:"name"`
	Stars           int             `json:"stars"`
	EstCostPerNight decimal.Decimal `json:"estCostPerNight"`
	Currency        string          `json:"currency"`
	BookingURL      string          `json:"bookingUrl"`
}

type Quotes struct {
	Flight          FlightQuote `json:"flightQuote"`
	Hotel           HotelQuote  `json:"hotelQuote"`
	Source          QuoteSource `json:"source"`
	OriginCode      string      `json:"originCode"`
	DestinationCode string      `json:"destinationCode"`
}

type QuoteRequest struct {
	Origin      string
	Destination string
	StartDate   string
	EndDate     string
	Currency    string
}

// FareClient is the subset of the Travelpayouts client the fetcher needs.
type FareClient interface {
	ResolveCode(ctx context.Context, name string) (string, error)
	CheapestFare(ctx context.Context, q FareQuery) (*Fare, error)
	Marker() string
}

const (
	placeholderFlightCost = 450
	placeholderHotelCost  = 120
	liveHotelCost         = 100

	codeTTL  = 24 * time.Hour
	quoteTTL = 6 * time.Hour
)

// QuoteFetcher produces flight and hotel quotes for the prompt. It never
// fails: every upstream problem ends in the placeholder quote.
type QuoteFetcher struct {
	fares  FareClient
	cache  Cache
	logger *slog.Logger
}

func NewQuoteFetcher(fares FareClient, cache Cache, logger *slog.Logger) *QuoteFetcher {
	return &QuoteFetcher{fares: fares, cache: cache, logger: logger}
}

func (f *QuoteFetcher) Fetch(ctx context.Context, req QuoteRequest) (quotes Quotes) {
	origin := strings.TrimSpace(req.Origin)
	dest := strings.TrimSpace(req.Destination)
	cur := normalizeCurrency(req.Currency)

	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("quote lookup panicked", "error", fmt.Sprint(r))
			quotes = f.placeholder(origin, dest)
		}
	}()

	origin = f.resolveCode(ctx, origin)
	dest = f.resolveCode(ctx, dest)

	cacheKey := fmt.Sprintf("quote:%s:%s:%s:%s:%s", origin, dest, req.StartDate, req.EndDate, cur)
	if cached, ok := f.cache.Get(ctx, cacheKey); ok {
		var q Quotes
		if err := json.Unmarshal([]byte(cached), &q); err == nil {
			return q
		}
	}

	q := FareQuery{Origin: origin, Destination: dest, DepartDate: req.StartDate, ReturnDate: req.EndDate, Currency: cur}
	source := QuoteLive
	fare, err := f.fares.CheapestFare(ctx, q)
	if err != nil || fare == nil {
		f.logger.Warn("dated fare lookup returned nothing, retrying route-level",
			"origin", origin, "destination", dest, "error", err)

		q.DepartDate, q.ReturnDate = "", ""
		source = QuoteRoute
		fare, err = f.fares.CheapestFare(ctx, q)
	}
	if err != nil || fare == nil {
		f.logger.Warn("fare lookup failed, using placeholder quote",
			"origin", origin, "destination", dest, "error", err)
		return f.placeholder(origin, dest)
	}

	quotes = f.fromFare(fare, source, origin, dest, req.StartDate, req.EndDate, cur)
	if b, err := json.Marshal(quotes); err == nil {
		f.cache.Set(ctx, cacheKey, string(b), quoteTTL)
	}
	return quotes
}

// resolveCode falls back to the raw input when the lookup fails or finds nothing.
func (f *QuoteFetcher) resolveCode(ctx context.Context, name string) string {
	if name == "" {
		return name
	}
	key := "iata:" + strings.ToLower(name)
	if code, ok := f.cache.Get(ctx, key); ok {
		return code
	}

	code, err := f.fares.ResolveCode(ctx, name)
	if err != nil {
		f.logger.Warn("location lookup failed", "term", name, "error", err)
		return name
	}
	if code == "" {
		return name
	}
	f.cache.Set(ctx, key, code, codeTTL)
	return code
}

func (f *QuoteFetcher) fromFare(fare *Fare, source QuoteSource, origin, dest, start, end, cur string) Quotes {
	marker := f.fares.Marker()
	return Quotes{
		Flight: FlightQuote{
			Outbound:   fmt.Sprintf("Flight from %s to %s (Airline: %s)", origin, dest, airlineName(fare.Airline)),
			Return:     fmt.Sprintf("Return from %s to %s", dest, origin),
			EstCost:    decimal.NewFromFloat(fare.Price),
			Currency:   cur,
			BookingURL: FlightBookingURL(marker, origin, dest, start, end),
		},
		Hotel: HotelQuote{
			Name:            "Recommended Hotel near " + dest,
			Stars:           4,
			EstCostPerNight: decimal.NewFromInt(liveHotelCost),
			Currency:        defaultCurrency,
			BookingURL:      HotelBookingURL(marker, dest, start, end),
		},
		Source:          source,
		OriginCode:      origin,
		DestinationCode: dest,
	}
}

func (f *QuoteFetcher) placeholder(origin, dest string) Quotes {
	marker := f.fares.Marker()
	return Quotes{
		Flight: FlightQuote{
			Outbound:   fmt.Sprintf("Flight %s -> %s", origin, dest),
			Return:     fmt.Sprintf("Flight %s -> %s", dest, origin),
			EstCost:    decimal.NewFromInt(placeholderFlightCost),
			Currency:   defaultCurrency,
			BookingURL: FlightBookingURL(marker, origin, dest, "", ""),
		},
		Hotel: HotelQuote{
			Name:            "Grand Central " + dest,
			Stars:           4,
			EstCostPerNight: decimal.NewFromInt(placeholderHotelCost),
			Currency:        defaultCurrency,
			BookingURL:      HotelBookingURL(marker, dest, "", ""),
		},
		Source:          QuoteEstimated,
		OriginCode:      origin,
		DestinationCode: dest,
	}
}
