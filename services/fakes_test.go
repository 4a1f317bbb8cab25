package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/garytangtang2-bit/hkfirstclick/database"
)

type fakeAccounts struct {
	mu           sync.Mutex
	rows         map[string]*database.Account
	decrements   int
	decrementErr error
	getErr       error
}

func newFakeAccounts(accts ...database.Account) *fakeAccounts {
	f := &fakeAccounts{rows: map[string]*database.Account{}}
	for i := range accts {
		a := accts[i]
		f.rows[a.ID] = &a
	}
	return f
}

func (f *fakeAccounts) Get(_ context.Context, id string) (*database.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	a, ok := f.rows[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAccounts) Create(_ context.Context, id, email, tier string, credits int) (*database.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		f.rows[id] = &database.Account{ID: id, Email: email, Tier: tier, Credits: credits, CreatedAt: time.Now()}
	}
	cp := *f.rows[id]
	return &cp, nil
}

func (f *fakeAccounts) DecrementCredit(_ context.Context, id string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.decrementErr != nil {
		return 0, f.decrementErr
	}
	a, ok := f.rows[id]
	if !ok || a.Credits <= 0 {
		return 0, database.ErrNoCredits
	}
	a.Credits--
	f.decrements++
	return a.Credits, nil
}

func (f *fakeAccounts) ApplySubscription(_ context.Context, id, tier string, credits int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[id]
	if !ok {
		return database.ErrNotFound
	}
	a.Tier, a.Credits = tier, credits
	return nil
}

func (f *fakeAccounts) AddCredits(_ context.Context, id, topupTier string, credits int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[id]
	if !ok {
		return database.ErrNotFound
	}
	a.Credits += credits
	if a.Tier == string(TierTrial) {
		a.Tier = topupTier
	}
	return nil
}

func (f *fakeAccounts) credits(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id].Credits
}

type fakeItineraries struct {
	mu        sync.Mutex
	rows      []*database.Itinerary
	insertErr error
}

func (f *fakeItineraries) Insert(_ context.Context, it *database.Itinerary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	it.CreatedAt = time.Now()
	cp := *it
	f.rows = append(f.rows, &cp)
	return nil
}

func (f *fakeItineraries) Get(_ context.Context, id, userID string) (*database.Itinerary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.rows {
		if it.ID == id && it.UserID == userID {
			cp := *it
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (f *fakeItineraries) List(_ context.Context, userID string) ([]database.ItinerarySummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []database.ItinerarySummary{}
	for i := len(f.rows) - 1; i >= 0; i-- {
		it := f.rows[i]
		if it.UserID == userID {
			out = append(out, database.ItinerarySummary{ID: it.ID, Title: it.Title, Destination: it.Destination,
				StartDate: it.StartDate, EndDate: it.EndDate, ParentID: it.ParentID, CreatedAt: it.CreatedAt})
		}
	}
	return out, nil
}

func (f *fakeItineraries) all() []*database.Itinerary {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*database.Itinerary(nil), f.rows...)
}

type reply struct {
	text string
	err  error
}

type fakeProvider struct {
	name    string
	mu      sync.Mutex
	replies []reply
	calls   []CompletionRequest
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Complete(_ context.Context, req CompletionRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, req)
	if len(p.replies) == 0 {
		return "", errors.New("no scripted reply")
	}
	r := p.replies[0]
	if len(p.replies) > 1 {
		p.replies = p.replies[1:]
	}
	return r.text, r.err
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type countingQuoter struct {
	mu    sync.Mutex
	calls int
}

func (q *countingQuoter) Fetch(_ context.Context, req QuoteRequest) Quotes {
	q.mu.Lock()
	q.calls++
	q.mu.Unlock()
	return Quotes{
		Flight: FlightQuote{BookingURL: FlightBookingURL("m", "HKG", "TYO", req.StartDate, req.EndDate)},
		Hotel:  HotelQuote{Name: "Grand Central TYO", BookingURL: HotelBookingURL("m", "TYO", req.StartDate, req.EndDate)},
		Source: QuoteEstimated,
	}
}

func (q *countingQuoter) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.calls
}

var testTiers = NewTierTable(
	ModelSet{Primary: "gpt-5-mini", Fallback: "gemini-2.5-flash"},
	ModelSet{Primary: "gpt-4o-search-preview", Fallback: "gemini-2.5-pro"},
)

const tokyoPlan = `{
  "destination": "Tokyo, Japan",
  "heroImageKeyword": "tokyo skyline",
  "flights": {
    "outbound": {"airline": "Cathay Pacific", "departureTime": "09:00 AM", "arrivalTime": "02:00 PM", "airportArrivalInstruction": "Narita Express", "estCost": "USD 450", "estCostNumber": 450, "bookingUrl": "https://search.aviasales.com/flights/?origin_iata=HKG"},
    "return": {"airline": "Cathay Pacific", "departureTime": "06:00 PM", "arrivalTime": "10:00 PM", "airportArrivalInstruction": "Leave by 2 PM", "estCost": "Included", "estCostNumber": 0, "bookingUrl": "https://search.aviasales.com/flights/?origin_iata=HKG"}
  },
  "hotel": {"name": "Grand Central TYO", "checkIn": "03:00 PM", "checkOut": "11:00 AM", "estCost": "USD 120 / night", "estCostNumber": 240, "bookingUrl": "https://search.hotellook.com/hotels/?destination=TYO"},
  "adviceArr": [{"title": "Transit", "content": "Get a Suica card."}],
  "days": [
    {"date": "2026-03-01", "theme": "Arrival", "activities": [
      {"time": "04:00 PM", "title": "Check in", "description": "Drop bags", "location": "Hotel", "cost": "Free", "costNumber": 0, "needsTicket": false},
      {"time": "07:00 PM", "title": "Dinner in Shinjuku", "description": "Ramen [Google Maps](https://www.google.com/maps/search/?api=1&query=Fuunji)", "location": "Shinjuku", "cost": "USD 15", "costNumber": 15, "needsTicket": false}
    ]},
    {"date": "2026-03-02", "theme": "Culture", "activities": [
      {"time": "10:00 AM", "title": "teamLab Planets", "description": "Digital art", "location": "Toyosu", "cost": "USD 25", "costNumber": 25, "needsTicket": true, "ticketUrl": "https://klook.com/teamlab"},
      {"time": "08:00 PM", "title": "Evening walk", "description": "Shibuya crossing", "location": "Shibuya", "cost": "Free", "costNumber": 0, "needsTicket": false}
    ]},
    {"date": "2026-03-03", "theme": "Departure", "activities": [
      {"time": "09:00 AM", "title": "Breakfast", "description": "Hotel", "location": "Hotel", "cost": "USD 10", "costNumber": 10, "needsTicket": false}
    ]}
  ]
}`
