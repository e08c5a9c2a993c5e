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
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jeremyhahn/go-tracking/pkg/adapters"
	"github.com/jeremyhahn/go-tracking/pkg/audit"
	"github.com/jeremyhahn/go-tracking/pkg/client"
	"github.com/jeremyhahn/go-tracking/pkg/events"
	"github.com/jeremyhahn/go-tracking/pkg/server"
	"github.com/jeremyhahn/go-tracking/pkg/service"
	"github.com/jeremyhahn/go-tracking/pkg/tracking"
	"github.com/jeremyhahn/go-tracking/pkg/version"
)

// BatchDeleter removes tracked uploads from a store after the guard check.
type BatchDeleter interface {
	Delete(ctx context.Context, req client.BatchDeleteRequest) (client.BatchDeleteRequest, error)
}

// EventHandler ingests repository file events.
type EventHandler interface {
	Handle(ctx context.Context, ev events.FileEvent) events.Result
}

// Handler serves the tracking admin API.
type Handler struct {
	service *service.Service
	deleter BatchDeleter
	events  EventHandler
	logger  adapters.Logger
}

// HandlerConfig wires a Handler. Service is required; a nil Deleter or
// Events disables the matching endpoints.
type HandlerConfig struct {
	Service *service.Service
	Deleter BatchDeleter
	Events  EventHandler
	Logger  adapters.Logger
}

// NewHandler creates a Handler.
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	if cfg.Service == nil {
		return nil, errors.New("rest: service is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = adapters.NewNoOpLogger()
	}
	return &Handler{
		service: cfg.Service,
		deleter: cfg.Deleter,
		events:  cfg.Events,
		logger:  logger,
	}, nil
}

// HealthCheck reports liveness.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Version: version.Get()})
}

// GetRecord returns the record of :id, falling back to the legacy table.
// An id with no records anywhere yields an empty report.
func (h *Handler) GetRecord(c *gin.Context) {
	id := c.Param("id")
	content, err := h.service.Get(c.Request.Context(), id)
	if errors.Is(err, tracking.ErrNotFound) {
		content = tracking.NewTrackedContent(tracking.TrackingKey(id))
		err = nil
	}
	if err != nil {
		respondWithDomainError(c, h.logger, err)
		return
	}

	audit.Annotate(c, id, "", len(content.Uploads)+len(content.Downloads))
	c.JSON(http.StatusOK, h.service.Render(c.Request.Context(), content))
}

// InitRecord acknowledges a new tracking session. Records are created by the
// first tracked transfer, so nothing is written.
func (h *Handler) InitRecord(c *gin.Context) {
	if err := tracking.ValidateTrackingID(c.Param("id")); err != nil {
		respondWithDomainError(c, h.logger, err)
		return
	}
	c.Status(http.StatusCreated)
}

// SealRecord seals :id and returns the sealed record.
func (h *Handler) SealRecord(c *gin.Context) {
	id := c.Param("id")
	content, err := h.service.Seal(c.Request.Context(), id)
	if err != nil {
		respondWithDomainError(c, h.logger, err)
		return
	}

	audit.Annotate(c, id, "", len(content.Uploads)+len(content.Downloads))
	c.JSON(http.StatusOK, h.service.Render(c.Request.Context(), content))
}

// DeleteRecord removes every record of :id.
func (h *Handler) DeleteRecord(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondWithDomainError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RecalculateRecord re-derives the metadata of every entry of :id.
func (h *Handler) RecalculateRecord(c *gin.Context) {
	id := c.Param("id")
	content, err := h.service.Recalculate(c.Request.Context(), id)
	if err != nil {
		respondWithDomainError(c, h.logger, err)
		return
	}

	audit.Annotate(c, id, "", len(content.Uploads)+len(content.Downloads))
	c.JSON(http.StatusOK, h.service.Render(c.Request.Context(), content))
}

// RecordZip streams a zip of the artifacts tracked under :id.
func (h *Handler) RecordZip(c *gin.Context) {
	id := c.Param("id")
	body, err := h.service.RepositoryZip(c.Request.Context(), id)
	if err != nil {
		respondWithDomainError(c, h.logger, err)
		return
	}
	defer body.Close()

	c.DataFromReader(http.StatusOK, -1, "application/zip", body, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", id+"-repository.zip"),
	})
}

// RecordArtifact records one native download of *path under :id. It answers
// 404 when the entry was not written, for example because the session is
// sealed.
func (h *Handler) RecordArtifact(c *gin.Context) {
	entry, err := artifactEntry(c)
	if err != nil {
		respondWithDomainError(c, h.logger, err)
		return
	}

	audit.Annotate(c, entry.TrackingKey.ID(), entry.StoreKey.String(), 1)
	if !h.service.RecordArtifact(c.Request.Context(), entry) {
		RespondWithError(c, http.StatusNotFound, "artifact not recorded")
		return
	}
	c.Status(http.StatusOK)
}

func artifactEntry(c *gin.Context) (tracking.TrackedContentEntry, error) {
	storeType, err := tracking.ParseStoreType(c.Query("type"))
	if err != nil {
		return tracking.TrackedContentEntry{}, err
	}

	var size int64
	if raw := c.Query("size"); raw != "" {
		size, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return tracking.TrackedContentEntry{}, fmt.Errorf("%w: size: %v", tracking.ErrValidation, err)
		}
	}

	packageType := c.DefaultQuery("packageType", tracking.PackageTypeMaven)
	entry := tracking.TrackedContentEntry{
		TrackingKey:   tracking.TrackingKey(c.Param("id")),
		StoreKey:      tracking.NewStoreKey(packageType, storeType, c.Query("name")),
		AccessChannel: tracking.AccessChannelNative,
		OriginURL:     c.Query("originalUrl"),
		Path:          strings.TrimPrefix(c.Param("path"), "/"),
		Effect:        tracking.EffectDownload,
		Size:          size,
		MD5:           c.Query("md5"),
		SHA1:          c.Query("sha1"),
		SHA256:        c.Query("sha256"),
	}
	return entry, entry.Validate()
}

// TrackingIDs lists tracking ids of kind :type.
func (h *Handler) TrackingIDs(c *gin.Context) {
	kind, err := service.ParseIDKind(c.Param("type"))
	if err != nil {
		respondWithDomainError(c, h.logger, err)
		return
	}

	ids, err := h.service.TrackingIDs(c.Request.Context(), kind)
	if err != nil {
		respondWithDomainError(c, h.logger, err)
		return
	}
	if ids.IsEmpty() {
		RespondWithError(c, http.StatusNotFound, "no tracking ids found")
		return
	}

	audit.Annotate(c, "", "", len(ids.Sealed)+len(ids.InProgress))
	c.JSON(http.StatusOK, ids)
}

// ExportRecords returns an archive of every ledger record.
func (h *Handler) ExportRecords(c *gin.Context) {
	data, n, err := h.service.ExportBytes(c.Request.Context())
	if err != nil {
		respondWithDomainError(c, h.logger, err)
		return
	}

	audit.Annotate(c, "", "", n)
	c.Header("Content-Disposition", `attachment; filename="folo-sealed.zip"`)
	c.Data(http.StatusOK, "application/zip", data)
}

// ImportRecords replaces ledger records with those in the request archive.
func (h *Handler) ImportRecords(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RespondWithError(c, http.StatusRequestEntityTooLarge, "archive too large")
			return
		}
		RespondWithError(c, http.StatusBadRequest, "failed to read archive")
		return
	}

	n, err := h.service.ImportAll(c.Request.Context(), data)
	audit.Annotate(c, "", "", n)
	if err != nil {
		respondWithDomainError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, ImportResponse{Imported: n})
}

// BatchDelete removes tracked uploads from the content store once the
// deletion guard allows it.
func (h *Handler) BatchDelete(c *gin.Context) {
	if h.deleter == nil {
		respondWithDomainError(c, h.logger, fmt.Errorf("%w: batch delete is not configured", tracking.ErrUnsupported))
		return
	}

	var req client.BatchDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, http.StatusBadRequest, "invalid batch delete request")
		return
	}
	if len(req.Paths) > server.MaxBatchDeletePaths {
		RespondWithError(c, http.StatusBadRequest,
			fmt.Sprintf("at most %d paths per batch delete", server.MaxBatchDeletePaths))
		return
	}

	done, err := h.deleter.Delete(c.Request.Context(), req)
	audit.Annotate(c, req.TrackingID, req.StoreKey.String(), len(done.Paths))
	if err != nil {
		respondWithDomainError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, done)
}

// IngestEvent hands one repository file event to the listener. Processing
// failures are the listener's concern, so any well-formed event is accepted.
func (h *Handler) IngestEvent(c *gin.Context) {
	if h.events == nil {
		respondWithDomainError(c, h.logger, fmt.Errorf("%w: event ingestion is not configured", tracking.ErrUnsupported))
		return
	}

	var ev events.FileEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		RespondWithError(c, http.StatusBadRequest, "invalid file event")
		return
	}

	result := h.events.Handle(c.Request.Context(), ev)
	c.JSON(http.StatusAccepted, EventResponse{Result: string(result)})
}
