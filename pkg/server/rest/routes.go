// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-tracking.
//
// go-tracking is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AdminPrefix is the route group of the tracking admin API.
const AdminPrefix = "/api/folo/admin"

// EventsPath receives repository file events.
const EventsPath = "/api/folo/events"

// SetupRoutes configures all routes for the REST API. A nil metrics handler
// leaves /metrics unrouted.
func SetupRoutes(router *gin.Engine, handler *Handler, metrics http.Handler) {
	router.GET("/health", handler.HealthCheck)
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	router.POST(EventsPath, handler.IngestEvent)

	admin := router.Group(AdminPrefix)
	{
		admin.GET("/:id/report", handler.GetRecord)

		record := admin.Group("/:id/record")
		{
			record.GET("", handler.GetRecord)
			record.PUT("", handler.InitRecord)
			record.POST("", handler.SealRecord)
			record.DELETE("", handler.DeleteRecord)
			record.GET("/recalculate", handler.RecalculateRecord)
			record.GET("/zip", handler.RecordZip)
		}

		admin.GET("/:id/artifactRecord/*path", handler.RecordArtifact)

		report := admin.Group("/report")
		{
			report.GET("/ids/:type", handler.TrackingIDs)
			report.GET("/export", handler.ExportRecords)
			report.PUT("/import", handler.ImportRecords)
		}

		admin.POST("/batch/delete", handler.BatchDelete)
	}
}
