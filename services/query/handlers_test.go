// Copyright (C) 2025 OpenPit IQ (engineering@openpitiq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package query

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc, err := NewService(context.Background(), ServiceConfig{
		ReferenceDate: time.Date(2025, time.June, 18, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	router := gin.New()
	RegisterRoutes(router.Group("/v1"), NewHandlers(svc))
	return router
}

func TestHandleRoute_Success(t *testing.T) {
	router := newTestRouter(t)

	body := `{"query": "show production for january 2024", "user_id": "op-7"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/query/route", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp RouteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RequestID)
	require.NotNil(t, resp.Decision)
	assert.Equal(t, "sql", resp.Decision.Task)
	assert.Equal(t, "deterministic", resp.Decision.RouteSource)
	assert.Greater(t, resp.Decision.Confidence, 0.0)
	assert.LessOrEqual(t, resp.Decision.Confidence, 1.0)
}

func TestHandleRoute_EchoesRequestID(t *testing.T) {
	router := newTestRouter(t)

	body := `{"query": "fleet status"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/query/route", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "trace-me-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "trace-me-123", rec.Header().Get("X-Request-ID"))

	var resp RouteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "trace-me-123", resp.RequestID)
}

func TestHandleRoute_BadRequests(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing query", `{"user_id": "op-7"}`},
		{"empty query", `{"query": ""}`},
		{"malformed json", `{"query": `},
		{"query too long", `{"query": "` + strings.Repeat("x", 2001) + `"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/query/route", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "INVALID_REQUEST", resp.Code)
		})
	}
}

func TestHandleRoute_UnroutableTextIsNotAnError(t *testing.T) {
	router := newTestRouter(t)

	body := `{"query": "tell me something interesting"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/query/route", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp RouteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Decision)
	assert.Equal(t, "rag", resp.Decision.Task)
	assert.Equal(t, 0.5, resp.Decision.Confidence)
}

func TestHandleIntents(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/query/intents", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Intents []IntentSummary `json:"intents"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Intents)
	for _, in := range resp.Intents {
		assert.NotEmpty(t, in.Name)
		assert.InDelta(t, 2, in.Tier, 1)
		assert.Greater(t, in.KeywordCount, 0)
	}
}

func TestHandleHealth(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/query/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
