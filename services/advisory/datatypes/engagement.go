// Copyright (C) 2026 FinHaven Technologies (dev@finhaven.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes defines the wire and storage types for the advisory
// service: engagement requests, assignments, realtime messages and the HTTP
// request payloads.
package datatypes

import "time"

// RequestState is the lifecycle state of an engagement request.
//
// The state machine is strictly one-way:
//
//	REQUESTED ──advisor approves──▶ APPROVED
//	REQUESTED ──advisor declines──▶ DECLINED
//	REQUESTED ──client cancels────▶ CANCELLED
//
// Terminal states are immutable; a request leaves REQUESTED exactly once.
type RequestState string

const (
	StateRequested RequestState = "REQUESTED"
	StateApproved  RequestState = "APPROVED"
	StateDeclined  RequestState = "DECLINED"
	StateCancelled RequestState = "CANCELLED"
)

// Terminal reports whether the state is final.
func (s RequestState) Terminal() bool {
	switch s {
	case StateApproved, StateDeclined, StateCancelled:
		return true
	}
	return false
}

// EngagementRequest is a client's proposal to be advised by a specific
// advisor. Timestamps are Unix milliseconds.
type EngagementRequest struct {
	ID        string       `json:"id"`
	ClientID  string       `json:"client_id"`
	AdvisorID string       `json:"advisor_id"`
	Message   string       `json:"message,omitempty"`
	State     RequestState `json:"state"`

	// RequestedAt orders pending requests for advisors (oldest first).
	RequestedAt int64 `json:"requested_at"`

	// ResolvedAt is set when the request reaches a terminal state.
	ResolvedAt int64 `json:"resolved_at,omitempty"`
}

// Pending reports whether the request is still awaiting a resolution.
func (r *EngagementRequest) Pending() bool {
	return r.State == StateRequested
}

// Assignment is the currently-active advisor/client pairing. It is derived
// state: it exists iff some request for ClientID reached APPROVED. At most
// one assignment exists per client at any time.
type Assignment struct {
	ClientID  string `json:"client_id"`
	AdvisorID string `json:"advisor_id"`
	Since     int64  `json:"since"`
}

// AdvisorStats summarizes an advisor's request history.
type AdvisorStats struct {
	Pending   int `json:"pending"`
	Approved  int `json:"approved"`
	Declined  int `json:"declined"`
	Cancelled int `json:"cancelled"`
}

// NowMillis returns the current time in Unix milliseconds, the timestamp
// unit used throughout the service.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// =============================================================================
// HTTP Payloads
// =============================================================================

// RequestAdvisorInput is the body of POST /v1/advisory/requests.
type RequestAdvisorInput struct {
	AdvisorID string `json:"advisor_id" binding:"required"`
	Message   string `json:"message" binding:"max=500"`
}

// RespondInput is the body of POST /v1/advisory/requests/:requestId/respond.
type RespondInput struct {
	Action string `json:"action" binding:"required,oneof=approve decline"`
}

// StatusResponse is the client-facing view of their advisory state: the
// active assignment (if any) plus all of their still-pending requests.
type StatusResponse struct {
	AssignedAdvisor *Assignment         `json:"assigned_advisor"`
	PendingRequests []EngagementRequest `json:"pending_requests"`
}
