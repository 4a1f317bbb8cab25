package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/garytangtang2-bit/hkfirstclick/database"
	"github.com/jung-kurt/gofpdf"
	"github.com/samber/lo"
)

// ItineraryDocument is a stored itinerary ready for PDF or calendar output.
type ItineraryDocument struct {
	ID        string
	Title     string
	StartDate string
	EndDate   string
	Plan      Plan
	Currency  string
	CreatedAt time.Time
}

// DocumentFromRecord decodes the stored payload of it.
func DocumentFromRecord(it *database.Itinerary) (ItineraryDocument, error) {
	var plan Plan
	if err := json.Unmarshal(it.Data, &plan); err != nil {
		return ItineraryDocument{}, fmt.Errorf("decode itinerary %s: %w", it.ID, err)
	}
	if plan.Destination == "" {
		plan.Destination = it.Destination
	}

	var prefs struct {
		Currency string `json:"currency"`
	}
	_ = json.Unmarshal(it.Preferences, &prefs)

	return ItineraryDocument{
		ID:        it.ID,
		Title:     it.Title,
		StartDate: it.StartDate,
		EndDate:   it.EndDate,
		Plan:      plan,
		Currency:  normalizeCurrency(prefs.Currency),
		CreatedAt: it.CreatedAt,
	}, nil
}

var markdownLinkRe = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)

// RenderItineraryPDF lays the itinerary out as a day-by-day timeline.
func RenderItineraryPDF(doc ItineraryDocument) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 25)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	plan := doc.Plan

	pdf.SetFooterFunc(func() {
		pdf.SetY(-18)
		pdf.SetDrawColor(200, 200, 200)
		pdf.SetLineWidth(0.3)
		pdf.Line(20, pdf.GetY(), 190, pdf.GetY())
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(150, 150, 150)
		pdf.CellFormat(0, 8,
			fmt.Sprintf("HK First Click itinerary - not a booking confirmation - prices are estimates - page %d", pdf.PageNo()),
			"", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	// ── Header Bar ───────────────────────────────────────────
	pdf.SetFillColor(17, 17, 17)
	pdf.Rect(0, 0, 210, 28, "F")
	pdf.SetTextColor(238, 220, 0)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetXY(20, 8)
	pdf.CellFormat(170, 10, tr(lo.CoalesceOrEmpty(doc.Title, plan.Destination+" Trip")), "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetXY(20, 18)
	pdf.CellFormat(170, 6, fmt.Sprintf("%s to %s", fmtDateReadable(doc.StartDate), fmtDateReadable(doc.EndDate)),
		"", 1, "L", false, 0, "")

	pdf.SetY(35)
	pdf.SetTextColor(0, 0, 0)

	sectionHeader := func(title string) {
		pdf.SetFillColor(17, 17, 17)
		pdf.SetTextColor(255, 255, 255)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(170, 8, "  "+tr(title), "", 1, "L", true, 0, "")
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(2)
	}

	row := func(label, value string) {
		if value == "" {
			return
		}
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(45, 6, tr(label), "", 0, "L", false, 0, "")
		pdf.SetTextColor(20, 20, 20)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.MultiCell(125, 6, tr(value), "", "L", false)
	}

	// ── Flights ──────────────────────────────────────────────
	legs := []struct {
		label string
		leg   *FlightLeg
	}{{"Outbound", plan.Flights.Outbound}, {"Return", plan.Flights.Return}}
	if plan.Flights.Outbound != nil || plan.Flights.Return != nil {
		sectionHeader("Flights")
		for _, l := range legs {
			if l.leg == nil {
				continue
			}
			row(l.label, fmt.Sprintf("%s  %s -> %s", l.leg.Airline, l.leg.DepartureTime, l.leg.ArrivalTime))
			row("Cost", l.leg.EstCost)
			row("Getting there", l.leg.AirportArrivalInstruction)
		}
		pdf.Ln(3)
	}

	// ── Hotel ────────────────────────────────────────────────
	if plan.Hotel.Name != "" {
		sectionHeader("Hotel")
		row("Hotel", plan.Hotel.Name)
		row("Check-in", plan.Hotel.CheckIn)
		row("Check-out", plan.Hotel.CheckOut)
		row("Cost", plan.Hotel.EstCost)
		pdf.Ln(3)
	}

	// ── Days ─────────────────────────────────────────────────
	for i, day := range plan.Days {
		sectionHeader(fmt.Sprintf("Day %d  %s  %s", i+1, fmtDateReadable(day.Date), day.Theme))
		for _, a := range day.Activities {
			pdf.SetFont("Helvetica", "B", 10)
			pdf.SetTextColor(130, 110, 0)
			pdf.CellFormat(22, 6, tr(a.Time), "", 0, "L", false, 0, "")
			pdf.SetTextColor(20, 20, 20)
			pdf.MultiCell(148, 6, tr(a.Title), "", "L", false)

			pdf.SetX(42)
			pdf.SetFont("Helvetica", "", 9)
			pdf.SetTextColor(60, 60, 60)
			pdf.MultiCell(148, 5, tr(markdownLinkRe.ReplaceAllString(a.Description, "$1")), "", "L", false)
			details := a.Location
			if a.Cost != "" {
				details += "  |  " + a.Cost
			}
			if a.TransitToNext != "" {
				details += "  |  next: " + a.TransitToNext
			}
			pdf.SetX(42)
			pdf.SetFont("Helvetica", "I", 8)
			pdf.SetTextColor(120, 120, 120)
			pdf.MultiCell(148, 4, tr(details), "", "L", false)
			pdf.Ln(2)
		}
		pdf.Ln(2)
	}

	// ── Advice ───────────────────────────────────────────────
	if len(plan.AdviceArr) > 0 {
		sectionHeader("Travel advice")
		for _, a := range plan.AdviceArr {
			pdf.SetFont("Helvetica", "B", 10)
			pdf.SetTextColor(20, 20, 20)
			pdf.MultiCell(170, 5, tr(a.Title), "", "L", false)
			pdf.SetFont("Helvetica", "", 9)
			pdf.SetTextColor(60, 60, 60)
			pdf.MultiCell(170, 5, tr(markdownLinkRe.ReplaceAllString(a.Content, "$1")), "", "L", false)
			pdf.Ln(2)
		}
	}

	// ── Budget ───────────────────────────────────────────────
	pdf.Ln(2)
	pdf.SetFillColor(238, 220, 0)
	pdf.SetTextColor(17, 17, 17)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(55, 9, "TOTAL ESTIMATE", "", 0, "L", true, 0, "")
	pdf.CellFormat(115, 9, fmt.Sprintf("%s %s", doc.Currency, BudgetTotal(plan).StringFixed(0)), "", 1, "L", true, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("PDF output failed: %w", err)
	}
	return buf.Bytes(), nil
}

func fmtDateReadable(iso string) string {
	t, err := time.Parse(dateLayout, iso)
	if err != nil {
		return iso
	}
	return t.Format("02 Jan 2006 (Mon)")
}
