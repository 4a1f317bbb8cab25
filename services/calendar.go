package services

import (
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
)

var activityTimeLayouts = []string{"03:04 PM", "3:04 PM", "03:04PM", "3:04PM", "15:04"}

const floatingLayout = "20060102T150405"

// RenderItineraryCalendar returns an iCalendar file with one event per
// activity. Times are floating because the plan carries no time zone.
func RenderItineraryCalendar(doc ItineraryDocument) (string, error) {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//HK First Click//Itinerary//EN")
	cal.SetName(doc.Title)

	stamp := doc.CreatedAt.UTC()
	if stamp.IsZero() {
		stamp = time.Now().UTC()
	}

	for di, day := range doc.Plan.Days {
		date, err := time.Parse(dateLayout, day.Date)
		if err != nil {
			return "", fmt.Errorf("day %d has invalid date %q", di+1, day.Date)
		}

		starts := make([]*time.Time, len(day.Activities))
		for ai, a := range day.Activities {
			starts[ai] = activityStart(date, a.Time)
		}

		for ai, a := range day.Activities {
			ev := cal.AddEvent(fmt.Sprintf("%s-%d-%d@hkfirstclick", doc.ID, di+1, ai+1))
			ev.SetDtStampTime(stamp)
			ev.SetSummary(a.Title)
			if a.Location != "" {
				ev.SetLocation(a.Location)
			}
			ev.SetDescription(activityNotes(a))
			if a.TicketURL != "" {
				ev.SetURL(a.TicketURL)
			}

			start := starts[ai]
			if start == nil {
				ev.SetAllDayStartAt(date)
				ev.SetAllDayEndAt(date.AddDate(0, 0, 1))
				continue
			}
			end := start.Add(time.Hour)
			if ai+1 < len(starts) && starts[ai+1] != nil && starts[ai+1].After(*start) {
				end = *starts[ai+1]
			}
			ev.SetProperty(ics.ComponentPropertyDtStart, start.Format(floatingLayout))
			ev.SetProperty(ics.ComponentPropertyDtEnd, end.Format(floatingLayout))
		}
	}

	return cal.Serialize(), nil
}

func activityStart(date time.Time, clock string) *time.Time {
	clock = strings.ToUpper(strings.TrimSpace(clock))
	for _, layout := range activityTimeLayouts {
		if t, err := time.Parse(layout, clock); err == nil {
			start := time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
			return &start
		}
	}
	return nil
}

func activityNotes(a Activity) string {
	notes := markdownLinkRe.ReplaceAllString(a.Description, "$1 ($2)")
	if a.Cost != "" {
		notes += "\nCost: " + a.Cost
	}
	if a.TransitToNext != "" {
		notes += "\nNext: " + a.TransitToNext
	}
	return notes
}
