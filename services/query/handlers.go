// Copyright (C) 2025 OpenPit IQ (engineering@openpitiq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package query

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openpitiq/fleetquery/services/query/routing"
)

// ErrorResponse is the JSON error envelope for all query endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// RouteRequest is the body of POST /v1/query/route.
type RouteRequest struct {
	Query  string `json:"query" binding:"required,min=1,max=2000"`
	UserID string `json:"user_id" binding:"omitempty,max=128"`
}

// RouteResponse wraps the routing decision with the request ID for log
// correlation.
type RouteResponse struct {
	RequestID string                   `json:"request_id"`
	Decision  *routing.RoutingDecision `json:"decision"`
}

// IntentSummary is one entry in the intent inspection listing.
type IntentSummary struct {
	Name         string `json:"name"`
	Tier         int    `json:"tier"`
	KeywordCount int    `json:"keyword_count"`
}

// Handlers holds the HTTP handlers for the query service.
type Handlers struct {
	service *Service
}

// NewHandlers creates the handler set.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// HandleRoute handles POST /v1/query/route.
//
// Description:
//
//	Runs the full pipeline on the submitted query and returns the routing
//	decision. Always succeeds for well-formed requests: unroutable text
//	comes back as a low-confidence rag decision, not an error.
//
// Response:
//
//	200 OK: RouteResponse
//	400 Bad Request: Malformed body or missing query
func (h *Handlers) HandleRoute(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleRoute")

	var req RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("bad route request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "query is required and must be 1-2000 characters",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	decision := h.service.Route(c.Request.Context(), req.UserID, req.Query)
	c.JSON(http.StatusOK, RouteResponse{
		RequestID: requestID,
		Decision:  decision,
	})
}

// HandleIntents handles GET /v1/query/intents.
//
// Description:
//
//	Lists the loaded intent definitions (name, tier, keyword count) so
//	operators can verify which configuration a deployment is running.
func (h *Handlers) HandleIntents(c *gin.Context) {
	cfg := h.service.Intents()
	out := make([]IntentSummary, 0, len(cfg.Intents))
	for _, def := range cfg.Intents {
		out = append(out, IntentSummary{
			Name:         def.Name,
			Tier:         def.Tier,
			KeywordCount: len(def.Keywords),
		})
	}
	c.JSON(http.StatusOK, gin.H{"intents": out})
}

// HandleHealth handles GET /v1/query/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// getOrCreateRequestID returns the inbound X-Request-ID or generates one,
// and echoes it on the response.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
