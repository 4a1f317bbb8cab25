package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/garytangtang2-bit/hkfirstclick/services"
	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 64 << 10

func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, entitlement(c))
}

// Provision creates the caller's account row on first sign-in.
func (h *Handler) Provision(c *gin.Context) {
	acct, err := h.Resolver.Provision(c.Request.Context(), entitlement(c), h.StartingCredits)
	if err != nil {
		h.fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, acct)
}

type CheckoutRequest struct {
	PriceID string `json:"priceId" binding:"required"`
}

func (h *Handler) Checkout(c *gin.Context) {
	ent := entitlement(c)
	if !ent.Authenticated {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	if h.Billing == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Payments are not configured"})
		return
	}

	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	url, err := h.Billing.CreateCheckout(c.Request.Context(), ent, req.PriceID)
	if err != nil {
		h.fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// StripeWebhook needs the untouched request body for signature verification.
func (h *Handler) StripeWebhook(c *gin.Context) {
	if h.Billing == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Payments are not configured"})
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Webhook Error: " + err.Error()})
		return
	}

	if err := h.Billing.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		if errors.Is(err, services.ErrInvalidSignature) {
			h.Logger.Warn("webhook signature verification failed", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Webhook Error: " + err.Error()})
			return
		}
		h.Logger.Error("webhook handling failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
