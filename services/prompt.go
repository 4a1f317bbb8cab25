package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// PromptVersion changes whenever the wording or the output schema changes.
const PromptVersion = "2026-10.1"

const (
	arrivalOffset   = "90 minutes"
	departureBuffer = "3 hours"
)

// Prompt is a single system instruction plus the output schema it embeds.
type Prompt struct {
	System  string
	Schema  string
	Version string
}

type GenerationPromptInput struct {
	Trip    TripRequest
	Quotes  Quotes
	Profile TierProfile
}

type RevisionPromptInput struct {
	Current    json.RawMessage
	Message    string
	UILanguage string
	Currency   string
	Profile    TierProfile
}

var stylePacing = map[string]string{
	StyleBackpacker: "Backpacker: the schedule may be dense. Prefer free or low-cost sights and public transport.",
	StyleBalanced:   "Balanced: plan 2-3 main sights per day and leave time to rest.",
	StyleLuxury:     "Luxury: keep a slow pace. Favour top local experiences, service quality and comfort.",
}

// ComposeGeneration builds the instruction for a new itinerary.
func ComposeGeneration(in GenerationPromptInput) Prompt {
	t := in.Trip
	p := t.Preferences
	cur := normalizeCurrency(t.Currency)
	schema := itinerarySchema(cur, in.Profile.RichActivities)

	var b strings.Builder
	b.WriteString("You are a senior travel planner who designs itineraries tailored to each client's budget, style and purpose.\n\n")

	b.WriteString("# Trip\n")
	fmt.Fprintf(&b, "- Destination: %s (departing from %s)\n", t.Destination, t.Origin)
	fmt.Fprintf(&b, "- Dates: %s to %s\n", t.StartDate, t.EndDate)
	fmt.Fprintf(&b, "- Style: %s\n", p.Style)
	if len(p.Purposes) > 0 {
		fmt.Fprintf(&b, "- Purposes: %s\n", strings.Join(p.Purposes, ", "))
	}
	fmt.Fprintf(&b, "- Travellers: %s\n", describeGroup(p.Group))
	if p.Transport != "" {
		fmt.Fprintf(&b, "- Preferred transport: %s\n", p.Transport)
	}
	if p.Pace != "" {
		fmt.Fprintf(&b, "- Pace: %s\n", p.Pace)
	}
	if p.MustVisit != "" {
		fmt.Fprintf(&b, "- Must visit: %s\n", p.MustVisit)
	}
	if p.Requests != "" {
		fmt.Fprintf(&b, "- Special requests: %s\n", p.Requests)
	}

	b.WriteString("\n# Rules\n")
	if p.Budget.IsPositive() {
		fmt.Fprintf(&b, "1. Budget: the whole trip MUST stay within %s %s. Flights, hotel and all activities count towards it.\n", p.Budget.StringFixed(0), cur)
	} else {
		fmt.Fprintf(&b, "1. Budget: no fixed ceiling was given. Keep costs consistent with the chosen style and quote them in %s.\n", cur)
	}
	fmt.Fprintf(&b, "2. Pacing: %s\n", lo.ValueOr(stylePacing, p.Style, stylePacing[StyleBalanced]))
	if len(p.Purposes) > 0 {
		fmt.Fprintf(&b, "3. Purpose weighting: give most of the time to activities about [%s].\n", strings.Join(p.Purposes, ", "))
	} else {
		b.WriteString("3. Purpose weighting: balance sightseeing, food and culture.\n")
	}
	if len(p.Dietary) > 0 || p.DietaryNotes != "" {
		b.WriteString("4. Dietary HARD constraint:")
		if len(p.Dietary) > 0 {
			fmt.Fprintf(&b, " every meal MUST be suitable for %s.", strings.Join(p.Dietary, ", "))
		}
		if p.DietaryNotes != "" {
			fmt.Fprintf(&b, " Notes: %s.", p.DietaryNotes)
		}
		b.WriteString(" Never suggest a restaurant that cannot serve this.\n")
	} else {
		b.WriteString("4. Dietary: no restrictions were given.\n")
	}
	fmt.Fprintf(&b, "5. Day boundaries: every day starts and ends at the lodging (%s).\n", lodgingAnchor(t, in.Quotes))
	fmt.Fprintf(&b, "6. Arrival day: the first activity starts no earlier than %s after the outbound flight lands", arrivalOffset)
	if t.OutboundTime != "" {
		fmt.Fprintf(&b, " (outbound flight time: %s)", t.OutboundTime)
	}
	b.WriteString(".\n")
	fmt.Fprintf(&b, "7. Departure day: the last activity ends at least %s before the return flight departs", departureBuffer)
	if t.ReturnTime != "" {
		fmt.Fprintf(&b, " (return flight time: %s)", t.ReturnTime)
	}
	b.WriteString(".\n")
	b.WriteString("8. Daily structure: each day includes a morning activity, lunch, an afternoon activity and dinner.\n")
	b.WriteString("9. Booking links: copy the bookingUrl values from the pricing data below VERBATIM into flights.outbound.bookingUrl, flights.return.bookingUrl and hotel.bookingUrl. Do not shorten or rewrite them.\n")
	b.WriteString("10. Advice: if the budget conflicts with the style, say so first in adviceArr and propose the closest alternative. Add advice on weather, transport and local customs.\n")
	b.WriteString("11. After each place description add a link formatted as [Google Maps](https://www.google.com/maps/search/?api=1&query=PLACE).\n")
	fmt.Fprintf(&b, "12. Costs: every estCostNumber and costNumber is an integer in %s. Use 0 when free.\n", cur)
	b.WriteString("13. Ticketed activities (theme parks, museums) set needsTicket to true and give a ticketUrl.\n")
	fmt.Fprintf(&b, "14. Language: %s Use emoji to help readability.\n", LanguageInstruction(t.UILanguage))
	b.WriteString(tierFragment(in.Profile, 15))

	b.WriteString("\n# Live pricing data\n")
	fmt.Fprintf(&b, "Flights: %s\n", mustJSON(in.Quotes.Flight))
	fmt.Fprintf(&b, "Hotel: %s\n", mustJSON(in.Quotes.Hotel))
	if in.Quotes.Source == QuoteEstimated {
		b.WriteString("These prices are estimates; real-time data was unavailable.\n")
	}

	b.WriteString("\n# Output format (JSON only)\n")
	b.WriteString("Return one JSON object exactly in this shape, with no markdown or backticks:\n")
	b.WriteString(schema)

	return Prompt{System: b.String(), Schema: schema, Version: PromptVersion}
}

// ComposeRevision builds the instruction for modifying an existing itinerary.
func ComposeRevision(in RevisionPromptInput) Prompt {
	cur := normalizeCurrency(in.Currency)
	schema := itinerarySchema(cur, in.Profile.RichActivities)

	var b strings.Builder
	b.WriteString("You are a senior travel planner. The user wants to MODIFY their existing itinerary with this request:\n")
	fmt.Fprintf(&b, "%q\n\n", in.Message)

	b.WriteString("# Rules\n")
	fmt.Fprintf(&b, "1. Language: %s Use emoji to help readability.\n", LanguageInstruction(in.UILanguage))
	b.WriteString("2. Schema preservation: return the SAME JSON schema as the current itinerary with the change applied. Do not rename or drop any top-level key.\n")
	b.WriteString("3. Keep flights, hotel, heroImageKeyword, adviceArr and every cost field unless the user explicitly asks to remove them.\n")
	b.WriteString("4. Breakfast, lunch and dinner stay scheduled unless they directly conflict with the request.\n")
	fmt.Fprintf(&b, "5. New or changed activities give a cost string and an integer costNumber in %s.\n", cur)
	b.WriteString("6. New ticketed activities set needsTicket to true and give a ticketUrl.\n")
	b.WriteString("7. Keep each day's locations geographically close and the day starting and ending at the hotel.\n")
	b.WriteString("8. Add [Google Maps](https://www.google.com/maps/search/?api=1&query=PLACE) links for new places.\n")
	b.WriteString("9. If the change makes the budget conflict with the style, say so in the first adviceArr entry.\n")
	b.WriteString(tierFragment(in.Profile, 10))

	b.WriteString("\n# Current itinerary\n")
	b.Write(in.Current)
	b.WriteString("\n\n# Output format (JSON only)\n")
	b.WriteString("Return only the modified JSON object in this shape, with no markdown or backticks:\n")
	b.WriteString(schema)

	return Prompt{System: b.String(), Schema: schema, Version: PromptVersion}
}

// tierFragment numbers its rules from next on.
func tierFragment(p TierProfile, next int) string {
	var b strings.Builder
	if p.SearchAugmented {
		fmt.Fprintf(&b, "%d. Use web search to confirm opening hours, current prices and that every venue is still operating.\n", next)
		next++
	}
	if p.RichActivities {
		fmt.Fprintf(&b, "%d. Every activity also has transitToNext (how to reach the next activity and how long it takes) and imageKeyword (an English image search keyword).\n", next)
	}
	return b.String()
}

func lodgingAnchor(t TripRequest, q Quotes) string {
	if t.Lodging != "" {
		return t.Lodging
	}
	if q.Hotel.Name != "" {
		return q.Hotel.Name
	}
	return "the recommended hotel"
}

func describeGroup(g Group) string {
	adults := max(g.Adults, 1)
	parts := []string{fmt.Sprintf("%d adult(s)", adults)}
	if g.Children > 0 {
		parts = append(parts, fmt.Sprintf("%d child(ren)", g.Children))
	}
	if g.Elders {
		parts = append(parts, "travelling with elders, keep walking moderate")
	}
	if g.Accessibility {
		parts = append(parts, "step-free access required")
	}
	return strings.Join(parts, ", ")
}

// mustJSON leaves & unescaped so booking URLs stay byte-identical.
func mustJSON(v any) string {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "{}"
	}
	return strings.TrimSpace(b.String())
}

func itinerarySchema(cur string, rich bool) string {
	activityExtra := ""
	if rich {
		activityExtra = `,
          "transitToNext": "10 min walk to the next stop",
          "imageKeyword": "english image keyword"`
	}

	return fmt.Sprintf(`{
  "destination": "City, Country",
  "heroImageKeyword": "english keyword for a background photo",
  "flights": {
    "outbound": {"airline": "Airline", "departureTime": "09:00 AM", "arrivalTime": "11:00 AM", "airportArrivalInstruction": "How to get from the airport to the hotel", "estCost": "%[1]s 450", "estCostNumber": 450, "bookingUrl": "https://..."},
    "return": {"airline": "Airline", "departureTime": "05:00 PM", "arrivalTime": "07:00 PM", "airportArrivalInstruction": "How to get to the airport", "estCost": "Included", "estCostNumber": 0, "bookingUrl": "https://..."}
  },
  "hotel": {"name": "Hotel", "checkIn": "03:00 PM", "checkOut": "11:00 AM", "estCost": "%[1]s 120 / night", "estCostNumber": 480, "bookingUrl": "https://..."},
  "adviceArr": [
    {"title": "Where to stay and how to get around", "content": "..."},
    {"title": "Route logic", "content": "..."},
    {"title": "Packing", "content": "..."},
    {"title": "Practical info", "content": "..."}
  ],
  "days": [
    {
      "date": "YYYY-MM-DD",
      "theme": "Day theme",
      "activities": [
        {
          "time": "02:00 PM",
          "title": "Activity",
          "description": "Details including transport",
          "location": "Address or place name",
          "cost": "%[1]s 15",
          "costNumber": 15,
          "needsTicket": true,
          "ticketUrl": "https://..."%[2]s
        }
      ]
    }
  ]
}`, cur, activityExtra)
}
