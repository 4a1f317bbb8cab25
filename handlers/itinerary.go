package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/garytangtang2-bit/hkfirstclick/services"
	"github.com/gin-gonic/gin"
)

type GenerateTripRequest struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Dates       struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"dates"`
	OutboundTime string               `json:"outboundTime"`
	ReturnTime   string               `json:"returnTime"`
	Lodging      string               `json:"lodging"`
	Preferences  services.Preferences `json:"preferences"`
	Currency     string               `json:"currency"`
	UILanguage   string               `json:"uiLanguage"`
}

type UpdateTripRequest struct {
	CurrentItinerary json.RawMessage `json:"currentItinerary"`
	ItineraryID      string          `json:"itineraryId"`
	UserMessage      string          `json:"userMessage"`
	UILanguage       string          `json:"uiLanguage"`
	Currency         string          `json:"currency"`
}

func (h *Handler) GenerateTrip(c *gin.Context) {
	var req GenerateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	res, err := h.Planner.Generate(c.Request.Context(), entitlement(c), services.TripRequest{
		Origin:       req.Origin,
		Destination:  req.Destination,
		StartDate:    req.Dates.Start,
		EndDate:      req.Dates.End,
		OutboundTime: req.OutboundTime,
		ReturnTime:   req.ReturnTime,
		Lodging:      req.Lodging,
		Preferences:  req.Preferences,
		Currency:     req.Currency,
		UILanguage:   req.UILanguage,
	})
	if err != nil {
		h.fail(c, err, "generate an itinerary")
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *Handler) UpdateTrip(c *gin.Context) {
	var req UpdateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if string(req.CurrentItinerary) == "null" {
		req.CurrentItinerary = nil
	}

	res, err := h.Planner.Update(c.Request.Context(), entitlement(c), services.UpdateInput{
		Current:     req.CurrentItinerary,
		ItineraryID: req.ItineraryID,
		Message:     req.UserMessage,
		UILanguage:  req.UILanguage,
		Currency:    req.Currency,
	})
	if err != nil {
		h.fail(c, err, "update your itinerary")
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *Handler) ExportTrip(c *gin.Context) {
	res, err := h.Planner.AuthorizeExport(c.Request.Context(), entitlement(c))
	if err != nil {
		h.fail(c, err, "export")
		return
	}

	msg := "Free export for members."
	if res.Charged {
		msg = "1 credit deducted."
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg, "creditsRemaining": res.CreditsRemaining})
}
