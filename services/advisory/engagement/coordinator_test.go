// Copyright (C) 2026 FinHaven Technologies (dev@finhaven.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engagement

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finhaven/finhaven/pkg/identity"
	"github.com/finhaven/finhaven/services/advisory/datatypes"
)

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCoordinator(newTestStore(t), logger, nil)
}

var (
	client  = &identity.Principal{ID: "client-1", Role: identity.RoleClient}
	advisor = &identity.Principal{ID: "advisor-1", Role: identity.RoleAdvisor}
)

func TestCoordinator_RequestAdvisor_RoleGate(t *testing.T) {
	coord := newTestCoordinator(t)
	ctx := context.Background()

	_, err := coord.RequestAdvisor(ctx, advisor, "advisor-2", "")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = coord.RequestAdvisor(ctx, nil, "advisor-1", "")
	assert.ErrorIs(t, err, ErrForbidden)

	req, err := coord.RequestAdvisor(ctx, client, "advisor-1", "hello")
	require.NoError(t, err)
	assert.Equal(t, datatypes.StateRequested, req.State)
}

func TestCoordinator_Respond_Approve(t *testing.T) {
	coord := newTestCoordinator(t)
	ctx := context.Background()

	req, err := coord.RequestAdvisor(ctx, client, advisor.ID, "")
	require.NoError(t, err)

	resolved, err := coord.Respond(ctx, advisor, req.ID, ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, datatypes.StateApproved, resolved.State)

	status, err := coord.Status(ctx, client)
	require.NoError(t, err)
	require.NotNil(t, status.AssignedAdvisor)
	assert.Equal(t, advisor.ID, status.AssignedAdvisor.AdvisorID)
	assert.Empty(t, status.PendingRequests)
}

func TestCoordinator_Respond_OwnershipForbidden(t *testing.T) {
	coord := newTestCoordinator(t)
	ctx := context.Background()

	req, err := coord.RequestAdvisor(ctx, client, advisor.ID, "")
	require.NoError(t, err)

	other := &identity.Principal{ID: "advisor-2", Role: identity.RoleAdvisor}
	_, err = coord.Respond(ctx, other, req.ID, ActionApprove)
	assert.ErrorIs(t, err, ErrForbidden)

	// The request is untouched by the rejected response.
	pending, err := coord.PendingRequests(ctx, advisor)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, req.ID, pending[0].ID)
}

func TestCoordinator_Respond_ClientCannotRespond(t *testing.T) {
	coord := newTestCoordinator(t)
	ctx := context.Background()

	req, err := coord.RequestAdvisor(ctx, client, advisor.ID, "")
	require.NoError(t, err)

	_, err = coord.Respond(ctx, client, req.ID, ActionDecline)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCoordinator_Respond_UnknownAction(t *testing.T) {
	coord := newTestCoordinator(t)
	ctx := context.Background()

	req, err := coord.RequestAdvisor(ctx, client, advisor.ID, "")
	require.NoError(t, err)

	_, err = coord.Respond(ctx, advisor, req.ID, Action("escalate"))
	assert.Error(t, err)
	_, ok := CodeOf(err)
	assert.False(t, ok)
}

func TestCoordinator_Cancel(t *testing.T) {
	coord := newTestCoordinator(t)
	ctx := context.Background()

	req, err := coord.RequestAdvisor(ctx, client, advisor.ID, "")
	require.NoError(t, err)

	// A different client cannot cancel it.
	other := &identity.Principal{ID: "client-2", Role: identity.RoleClient}
	_, err = coord.Cancel(ctx, other, req.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	resolved, err := coord.Cancel(ctx, client, req.ID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.StateCancelled, resolved.State)

	// Cancelling again reports the terminal state.
	_, err = coord.Cancel(ctx, client, req.ID)
	assert.ErrorIs(t, err, ErrAlreadyResolved)
}

// Two advisors with pending
// requests from the same client; the second approval fails and the client
// cancels the leftover manually.
func TestCoordinator_ApprovalRaceThenManualCancel(t *testing.T) {
	coord := newTestCoordinator(t)
	ctx := context.Background()

	advisorB := &identity.Principal{ID: "advisor-2", Role: identity.RoleAdvisor}

	reqA, err := coord.RequestAdvisor(ctx, client, advisor.ID, "")
	require.NoError(t, err)
	reqB, err := coord.RequestAdvisor(ctx, client, advisorB.ID, "")
	require.NoError(t, err)

	_, err = coord.Respond(ctx, advisor, reqA.ID, ActionApprove)
	require.NoError(t, err)

	_, err = coord.Respond(ctx, advisorB, reqB.ID, ActionApprove)
	assert.ErrorIs(t, err, ErrAlreadyAssigned)

	status, err := coord.Status(ctx, client)
	require.NoError(t, err)
	require.NotNil(t, status.AssignedAdvisor)
	assert.Equal(t, advisor.ID, status.AssignedAdvisor.AdvisorID)
	require.Len(t, status.PendingRequests, 1, "loser request stays pending")

	_, err = coord.Cancel(ctx, client, reqB.ID)
	require.NoError(t, err)

	status, err = coord.Status(ctx, client)
	require.NoError(t, err)
	assert.Empty(t, status.PendingRequests)
}

func TestCoordinator_AdvisorViews_RoleGates(t *testing.T) {
	coord := newTestCoordinator(t)
	ctx := context.Background()

	_, err := coord.PendingRequests(ctx, client)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = coord.Stats(ctx, client)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = coord.Status(ctx, advisor)
	assert.ErrorIs(t, err, ErrForbidden)

	// Admin passes every gate.
	admin := &identity.Principal{ID: "ops", Role: identity.RoleAdmin}
	_, err = coord.PendingRequests(ctx, admin)
	assert.NoError(t, err)
	_, err = coord.Status(ctx, admin)
	assert.NoError(t, err)
}

func TestCoordinator_Stats(t *testing.T) {
	coord := newTestCoordinator(t)
	ctx := context.Background()

	req, err := coord.RequestAdvisor(ctx, client, advisor.ID, "")
	require.NoError(t, err)
	_, err = coord.Respond(ctx, advisor, req.ID, ActionDecline)
	require.NoError(t, err)

	stats, err := coord.Stats(ctx, advisor)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Declined)
	assert.Zero(t, stats.Pending)
}
