package services

import (
	"bytes"
	"time"

	"github.com/shopspring/decimal"
)

// Amount is a cost figure written by the model. Anything that is not a
// number ("Free", "") reads as zero instead of failing the whole plan.
type Amount struct {
	decimal.Decimal
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if err := a.Decimal.UnmarshalJSON(b); err != nil {
		a.Decimal = decimal.Zero
	}
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

// Plan is the typed view of an itinerary payload. The payload itself is
// stored verbatim; Plan is only read for totals, PDF and calendar output.
type Plan struct {
	Destination      string    `json:"destination"`
	HeroImageKeyword string    `json:"heroImageKeyword"`
	Flights          Flights   `json:"flights"`
	Hotel            HotelStay `json:"hotel"`
	AdviceArr        []Advice  `json:"adviceArr"`
	Days             []Day     `json:"days"`
}

type Flights struct {
	Outbound *FlightLeg `json:"outbound,omitempty"`
	Return   *FlightLeg `json:"return,omitempty"`
}

type FlightLeg struct {
	Airline                   string `json:"airline"`
	DepartureTime             string `json:"departureTime"`
	ArrivalTime               string `json:"arrivalTime"`
	AirportArrivalInstruction string `json:"airportArrivalInstruction"`
	EstCost                   string `json:"estCost"`
	EstCostNumber             Amount `json:"estCostNumber"`
	BookingURL                string `json:"bookingUrl"`
}

type HotelStay struct {
	Name          string `json:"name"`
	CheckIn       string `json:"checkIn"`
	CheckOut      string `json:"checkOut"`
	EstCost       string `json:"estCost"`
	EstCostNumber Amount `json:"estCostNumber"`
	BookingURL    string `json:"bookingUrl"`
}

type Advice struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type Day struct {
	Date       string     `json:"date"`
	Theme      string     `json:"theme"`
	Activities []Activity `json:"activities"`
}

type Activity struct {
	Time          string `json:"time"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Location      string `json:"location"`
	Cost          string `json:"cost"`
	CostNumber    Amount `json:"costNumber"`
	NeedsTicket   bool   `json:"needsTicket"`
	TicketURL     string `json:"ticketUrl,omitempty"`
	TransitToNext string `json:"transitToNext,omitempty"`
	ImageKeyword  string `json:"imageKeyword,omitempty"`
}

// DateRange returns the first and last day dates, or today for both when the
// plan has no days.
func (p Plan) DateRange(now time.Time) (string, string) {
	if len(p.Days) == 0 {
		today := now.Format(dateLayout)
		return today, today
	}
	return p.Days[0].Date, p.Days[len(p.Days)-1].Date
}

// ─── Trip inputs ─────────────────────────────────────────────────────────────

const dateLayout = "2006-01-02"

const (
	StyleBackpacker = "backpacker"
	StyleBalanced   = "balanced"
	StyleLuxury     = "luxury"

	maxPurposes = 3
	// maxTripDays bounds every tier, including those without a tier limit.
	maxTripDays   = 60
	secondsPerDay = 24 * 60 * 60
)

type Group struct {
	Adults        int  `json:"adults"`
	Children      int  `json:"children"`
	Elders        bool `json:"elders"`
	Accessibility bool `json:"accessibility"`
}

type Preferences struct {
	Style        string          `json:"style"`
	Pace         string          `json:"pace,omitempty"`
	Transport    string          `json:"transport,omitempty"`
	Purposes     []string        `json:"purposes"`
	Budget       decimal.Decimal `json:"budget"`
	Currency     string          `json:"currency,omitempty"`
	Dietary      []string        `json:"dietary,omitempty"`
	DietaryNotes string          `json:"dietaryNotes,omitempty"`
	MustVisit    string          `json:"mustVisit,omitempty"`
	Group        Group           `json:"group"`
	Requests     string          `json:"requests"`
}

// TripRequest is one generation request after transport decoding.
type TripRequest struct {
	Origin       string
	Destination  string
	StartDate    string
	EndDate      string
	OutboundTime string
	ReturnTime   string
	Lodging      string
	Preferences  Preferences
	Currency     string
	UILanguage   string
}

// TripDays counts calendar days including both endpoints. It works on Unix
// seconds so far-apart dates do not saturate a time.Duration.
func TripDays(start, end time.Time) int {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return int((e.Unix()-s.Unix())/secondsPerDay) + 1
}
