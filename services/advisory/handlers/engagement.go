// Copyright (C) 2026 FinHaven Technologies (dev@finhaven.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers contains the advisory service's HTTP and websocket
// handlers. Handlers are thin: bind, authenticate, delegate to the
// coordinator or registry, translate errors to status codes.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/finhaven/finhaven/services/advisory/datatypes"
	"github.com/finhaven/finhaven/services/advisory/engagement"
	"github.com/finhaven/finhaven/services/advisory/middleware"
)

// writeEngagementError maps the engagement error taxonomy onto HTTP status
// codes. Conflict-class codes (duplicate pending, already assigned, already
// resolved) all map to 409 with the code in the body so clients can
// distinguish them.
func writeEngagementError(c *gin.Context, err error) {
	code, ok := engagement.CodeOf(err)
	if !ok {
		slog.Error("engagement operation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engagement.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engagement.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, engagement.ErrDuplicatePending),
		errors.Is(err, engagement.ErrAlreadyAssigned),
		errors.Is(err, engagement.ErrAlreadyResolved):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": string(code)})
}

// RequestAdvisor handles POST /v1/advisory/requests.
func RequestAdvisor(coord *engagement.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input datatypes.RequestAdvisorInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		req, err := coord.RequestAdvisor(c.Request.Context(),
			middleware.Principal(c), input.AdvisorID, input.Message)
		if err != nil {
			writeEngagementError(c, err)
			return
		}
		c.JSON(http.StatusCreated, req)
	}
}

// PendingRequests handles GET /v1/advisory/requests/pending. Returns the
// advisor's queue, oldest first.
func PendingRequests(coord *engagement.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		pending, err := coord.PendingRequests(c.Request.Context(), middleware.Principal(c))
		if err != nil {
			writeEngagementError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"requests": pending})
	}
}

// RespondToRequest handles POST /v1/advisory/requests/:requestId/respond.
func RespondToRequest(coord *engagement.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input datatypes.RespondInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		resolved, err := coord.Respond(c.Request.Context(), middleware.Principal(c),
			c.Param("requestId"), engagement.Action(input.Action))
		if err != nil {
			writeEngagementError(c, err)
			return
		}
		c.JSON(http.StatusOK, resolved)
	}
}

// CancelRequest handles DELETE /v1/advisory/requests/:requestId.
func CancelRequest(coord *engagement.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		resolved, err := coord.Cancel(c.Request.Context(), middleware.Principal(c),
			c.Param("requestId"))
		if err != nil {
			writeEngagementError(c, err)
			return
		}
		c.JSON(http.StatusOK, resolved)
	}
}

// EngagementStatus handles GET /v1/advisory/status. The client's view: its
// current assignment (if any) plus pending requests.
func EngagementStatus(coord *engagement.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, err := coord.Status(c.Request.Context(), middleware.Principal(c))
		if err != nil {
			writeEngagementError(c, err)
			return
		}
		c.JSON(http.StatusOK, status)
	}
}

// AdvisorStats handles GET /v1/advisory/stats.
func AdvisorStats(coord *engagement.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := coord.Stats(c.Request.Context(), middleware.Principal(c))
		if err != nil {
			writeEngagementError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}
