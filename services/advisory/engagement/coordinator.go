// Copyright (C) 2026 FinHaven Technologies (dev@finhaven.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engagement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/finhaven/finhaven/pkg/identity"
	"github.com/finhaven/finhaven/services/advisory/datatypes"
	"github.com/finhaven/finhaven/services/advisory/observability"
)

// Action is an advisor's response to a pending request.
type Action string

const (
	ActionApprove Action = "approve"
	ActionDecline Action = "decline"
)

// Coordinator orchestrates store operations into the externally visible
// workflow: it owns the role and ownership checks, delegates the atomic
// parts to the store, and records metrics.
//
// Approving one request does NOT auto-cancel the client's other pending
// requests. Those stay REQUESTED (their approval will fail with
// ALREADY_ASSIGNED) and the client cancels them explicitly.
type Coordinator struct {
	store   *Store
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewCoordinator creates a coordinator. logger must not be nil; metrics may
// be nil (tests).
func NewCoordinator(store *Store, logger *slog.Logger, metrics *observability.Metrics) *Coordinator {
	return &Coordinator{store: store, logger: logger, metrics: metrics}
}

// RequestAdvisor creates a new engagement request from the principal to
// advisorID. Only clients may request.
func (c *Coordinator) RequestAdvisor(ctx context.Context, p *identity.Principal, advisorID, message string) (*datatypes.EngagementRequest, error) {
	if !p.Is(identity.RoleClient) {
		return nil, fmt.Errorf("only clients may request an advisor: %w", ErrForbidden)
	}

	req, err := c.store.CreateRequest(ctx, p.ID, advisorID, message)
	c.record("request", err)
	if err != nil {
		return nil, err
	}

	c.logger.Info("engagement requested",
		"request_id", req.ID,
		"client_id", req.ClientID,
		"advisor_id", req.AdvisorID,
	)
	return req, nil
}

// Respond applies an advisor's approve/decline decision to a pending
// request. The responding principal must be the request's advisor.
//
// Approval is atomic with assignment creation: when two advisors race to
// approve requests from the same client, exactly one wins and the other
// observes ALREADY_ASSIGNED with its request left REQUESTED.
func (c *Coordinator) Respond(ctx context.Context, p *identity.Principal, requestID string, action Action) (*datatypes.EngagementRequest, error) {
	if !p.Is(identity.RoleAdvisor) {
		return nil, fmt.Errorf("only advisors may respond: %w", ErrForbidden)
	}

	var outcome datatypes.RequestState
	switch action {
	case ActionApprove:
		outcome = datatypes.StateApproved
	case ActionDecline:
		outcome = datatypes.StateDeclined
	default:
		return nil, fmt.Errorf("unknown action %q", action)
	}

	req, err := c.store.GetRequest(ctx, requestID)
	if err != nil {
		c.record(string(action), err)
		return nil, err
	}
	if req.AdvisorID != p.ID && p.Role != identity.RoleAdmin {
		c.record(string(action), ErrForbidden)
		return nil, fmt.Errorf("request belongs to another advisor: %w", ErrForbidden)
	}

	resolved, err := c.store.Resolve(ctx, requestID, outcome)
	c.record(string(action), err)
	if err != nil {
		if errors.Is(err, ErrAlreadyAssigned) {
			c.logger.Info("approval lost to existing assignment",
				"request_id", requestID,
				"client_id", req.ClientID,
				"advisor_id", p.ID,
			)
		}
		return nil, err
	}

	c.metrics.RecordResolution(string(resolved.State),
		float64(resolved.ResolvedAt-resolved.RequestedAt)/1000.0)
	c.logger.Info("engagement resolved",
		"request_id", resolved.ID,
		"client_id", resolved.ClientID,
		"advisor_id", resolved.AdvisorID,
		"state", string(resolved.State),
	)
	return resolved, nil
}

// Cancel withdraws the principal's own pending request.
func (c *Coordinator) Cancel(ctx context.Context, p *identity.Principal, requestID string) (*datatypes.EngagementRequest, error) {
	if !p.Is(identity.RoleClient) {
		return nil, fmt.Errorf("only clients may cancel: %w", ErrForbidden)
	}

	req, err := c.store.GetRequest(ctx, requestID)
	if err != nil {
		c.record("cancel", err)
		return nil, err
	}
	if req.ClientID != p.ID && p.Role != identity.RoleAdmin {
		c.record("cancel", ErrForbidden)
		return nil, fmt.Errorf("request belongs to another client: %w", ErrForbidden)
	}

	resolved, err := c.store.Resolve(ctx, requestID, datatypes.StateCancelled)
	c.record("cancel", err)
	if err != nil {
		return nil, err
	}

	c.logger.Info("engagement cancelled",
		"request_id", resolved.ID,
		"client_id", resolved.ClientID,
	)
	return resolved, nil
}

// Status returns the client's current assignment and pending requests.
func (c *Coordinator) Status(ctx context.Context, p *identity.Principal) (*datatypes.StatusResponse, error) {
	if !p.Is(identity.RoleClient) {
		return nil, fmt.Errorf("status is a client view: %w", ErrForbidden)
	}

	assignment, err := c.store.GetAssignment(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	pending, err := c.store.ListPendingForClient(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		pending = []datatypes.EngagementRequest{}
	}
	return &datatypes.StatusResponse{
		AssignedAdvisor: assignment,
		PendingRequests: pending,
	}, nil
}

// PendingRequests returns the advisor's queue, oldest first.
func (c *Coordinator) PendingRequests(ctx context.Context, p *identity.Principal) ([]datatypes.EngagementRequest, error) {
	if !p.Is(identity.RoleAdvisor) {
		return nil, fmt.Errorf("pending queue is an advisor view: %w", ErrForbidden)
	}
	pending, err := c.store.ListPendingForAdvisor(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		pending = []datatypes.EngagementRequest{}
	}
	return pending, nil
}

// Stats returns the advisor's request history counts.
func (c *Coordinator) Stats(ctx context.Context, p *identity.Principal) (*datatypes.AdvisorStats, error) {
	if !p.Is(identity.RoleAdvisor) {
		return nil, fmt.Errorf("stats is an advisor view: %w", ErrForbidden)
	}
	return c.store.Stats(ctx, p.ID)
}

// record translates an operation result into an engagement_ops_total
// sample.
func (c *Coordinator) record(op string, err error) {
	outcome := observability.OutcomeOK
	if err != nil {
		if code, ok := CodeOf(err); ok {
			outcome = string(code)
		} else {
			outcome = observability.OutcomeError
		}
	}
	c.metrics.RecordEngagementOp(op, outcome)
}
