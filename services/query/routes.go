// Copyright (C) 2025 OpenPit IQ (engineering@openpitiq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package query

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all query routes with the router.
//
// Description:
//
//	Registers all /v1/query/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Endpoints:
//
//	POST /v1/query/route - Classify and route a query
//	GET  /v1/query/intents - List loaded intent definitions
//	GET  /v1/query/health - Health check
//
// Example:
//
//	service, _ := query.NewService(ctx, query.ServiceConfig{})
//	handlers := query.NewHandlers(service)
//
//	v1 := router.Group("/v1")
//	query.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	q := rg.Group("/query")
	{
		q.POST("/route", handlers.HandleRoute)
		q.GET("/intents", handlers.HandleIntents)
		q.GET("/health", handlers.HandleHealth)
	}
}
