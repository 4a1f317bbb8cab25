package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/garytangtang2-bit/hkfirstclick/database"
	"github.com/garytangtang2-bit/hkfirstclick/services"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

type ItineraryView struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id,omitempty"`
	ParentID    *string         `json:"parent_id"`
	Title       string          `json:"title"`
	Destination string          `json:"destination"`
	StartDate   string          `json:"start_date"`
	EndDate     string          `json:"end_date"`
	Data        json.RawMessage `json:"itinerary_data,omitempty"`
	Preferences json.RawMessage `json:"preferences,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func itineraryView(it *database.Itinerary) ItineraryView {
	return ItineraryView{
		ID:          it.ID,
		UserID:      it.UserID,
		ParentID:    nullable(it.ParentID),
		Title:       it.Title,
		Destination: it.Destination,
		StartDate:   it.StartDate,
		EndDate:     it.EndDate,
		Data:        it.Data,
		Preferences: it.Preferences,
		CreatedAt:   it.CreatedAt,
	}
}

// ListItineraries lists the caller's itineraries, or returns one with ?id=.
func (h *Handler) ListItineraries(c *gin.Context) {
	ent := entitlement(c)
	if !ent.Authenticated {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if id := c.Query("id"); id != "" {
		it, err := h.loadItinerary(c, id, ent)
		if err != nil {
			return
		}
		c.JSON(http.StatusOK, gin.H{"itinerary": itineraryView(it)})
		return
	}

	rows, err := h.Itineraries.List(c.Request.Context(), ent.AccountID)
	if err != nil {
		h.fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"itineraries": lo.Map(rows, func(s database.ItinerarySummary, _ int) ItineraryView {
		return ItineraryView{
			ID:          s.ID,
			ParentID:    nullable(s.ParentID),
			Title:       s.Title,
			Destination: s.Destination,
			StartDate:   s.StartDate,
			EndDate:     s.EndDate,
			CreatedAt:   s.CreatedAt,
		}
	})})
}

// loadItinerary writes the error response itself when it returns an error.
func (h *Handler) loadItinerary(c *gin.Context, id string, ent services.Entitlement) (*database.Itinerary, error) {
	it, err := h.Itineraries.Get(c.Request.Context(), id, ent.AccountID)
	if errors.Is(err, database.ErrNotFound) {
		err = services.ErrItineraryNotFound
	}
	if err != nil {
		h.fail(c, err, "")
		return nil, err
	}
	return it, nil
}

// exportDocument loads the caller's itinerary, renders it and only then runs
// the export gate, so a failed render never costs a credit. It writes the
// error response itself when ok is false.
func (h *Handler) exportDocument(c *gin.Context, format string,
	render func(services.ItineraryDocument) ([]byte, error)) (doc services.ItineraryDocument, out []byte, ok bool) {
	ent := entitlement(c)
	if !ent.Authenticated {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return doc, nil, false
	}

	it, err := h.loadItinerary(c, c.Param("id"), ent)
	if err != nil {
		return doc, nil, false
	}

	doc, err = services.DocumentFromRecord(it)
	if err != nil {
		h.fail(c, err, "")
		return doc, nil, false
	}

	out, err = render(doc)
	if err != nil {
		h.Logger.Error(format+" generation failed", "itinerary_id", doc.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate " + format})
		return doc, nil, false
	}

	res, err := h.Planner.AuthorizeExport(c.Request.Context(), ent)
	if err != nil {
		h.fail(c, err, "export")
		return doc, nil, false
	}
	h.Logger.Info("itinerary exported",
		"account_id", ent.AccountID, "itinerary_id", it.ID, "format", format, "charged", res.Charged)
	return doc, out, true
}

func (h *Handler) DownloadPDF(c *gin.Context) {
	doc, pdfBytes, ok := h.exportDocument(c, "PDF", services.RenderItineraryPDF)
	if !ok {
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=hkfirstclick-%s.pdf", doc.ID))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/pdf", pdfBytes)
}

func (h *Handler) DownloadCalendar(c *gin.Context) {
	doc, ics, ok := h.exportDocument(c, "calendar", func(d services.ItineraryDocument) ([]byte, error) {
		s, err := services.RenderItineraryCalendar(d)
		return []byte(s), err
	})
	if !ok {
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=hkfirstclick-%s.ics", doc.ID))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", ics)
}

func (h *Handler) Health(c *gin.Context) {
	dbStatus := "ok"
	if h.DB == nil {
		dbStatus = "not initialized"
	} else if err := h.DB.PingContext(c.Request.Context()); err != nil {
		dbStatus = "error: " + err.Error()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"service":  "HK First Click API",
		"database": dbStatus,
	})
}
