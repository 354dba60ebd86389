// Copyright (C) 2026 FinHaven Technologies (dev@finhaven.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package realtime routes messages between the participants of a client's
// room and fans advisor broadcasts out to the shared updates feed.
//
// Rooms are ephemeral: a room exists only while at least one connection is
// joined, and carries no state beyond its in-memory member set. There is no
// capacity limit, no persistence and no retry buffer; a connection that
// drops simply rejoins; anything relayed while it was gone is lost.
//
// The registry performs no membership check against the engagement
// assignment. Authorization is the transport layer's job; the router
// deliberately trusts its caller.
package realtime

import (
	"log/slog"
	"sync"

	"github.com/finhaven/finhaven/services/advisory/datatypes"
	"github.com/finhaven/finhaven/services/advisory/observability"
)

// FeedRoom is the well-known room for advisor video broadcasts. Every
// dashboard session may join it; only advisors may publish to it.
const FeedRoom = "advisor_updates"

// Sink receives envelopes for one connection. Implementations must be safe
// for concurrent Deliver calls; the websocket sink serializes writes with a
// mutex.
type Sink interface {
	Deliver(env datatypes.WSEnvelope) error
}

// Member is a connection's membership in one room. Obtained from Join and
// retired with Leave.
type Member struct {
	room string
	sink Sink
}

// Room returns the room this member belongs to.
func (m *Member) Room() string {
	if m == nil {
		return ""
	}
	return m.room
}

// Registry is an injectable room table. It is a plain value with an owned
// lifecycle rather than a process-wide singleton, so every test (and every
// server instance) gets its own.
//
// All mutations are short, non-blocking map operations under one mutex;
// deliveries happen outside the lock against a snapshot of the member set.
type Registry struct {
	mu      sync.Mutex
	rooms   map[string]map[*Member]struct{}
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewRegistry creates an empty registry. logger must not be nil; metrics
// may be nil.
func NewRegistry(logger *slog.Logger, metrics *observability.Metrics) *Registry {
	return &Registry{
		rooms:   make(map[string]map[*Member]struct{}),
		logger:  logger,
		metrics: metrics,
	}
}

// Join adds a connection to the room and returns its membership. Joining
// the same sink twice yields two independent members (membership is per
// connection, not per user).
func (r *Registry) Join(room string, sink Sink) *Member {
	member := &Member{room: room, sink: sink}

	r.mu.Lock()
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[*Member]struct{})
		r.rooms[room] = members
	}
	members[member] = struct{}{}
	size := len(members)
	r.mu.Unlock()

	r.metrics.MemberJoined(!ok)
	r.logger.Debug("room joined", "room", room, "members", size)
	return member
}

// Leave removes the membership. Idempotent: leaving twice, leaving a nil
// member, or leaving a member the registry never saw is a no-op. Empty
// rooms are dropped from the table; no cleanup job exists or is needed.
func (r *Registry) Leave(member *Member) {
	if member == nil {
		return
	}

	r.mu.Lock()
	members, ok := r.rooms[member.room]
	if !ok {
		r.mu.Unlock()
		return
	}
	if _, joined := members[member]; !joined {
		r.mu.Unlock()
		return
	}
	delete(members, member)
	roomGone := len(members) == 0
	if roomGone {
		delete(r.rooms, member.room)
	}
	r.mu.Unlock()

	r.metrics.MemberLeft(roomGone)
	r.logger.Debug("room left", "room", member.room)
}

// Send relays msg to every other member of the sender's room. The sender
// never receives its own message back; its UI renders the optimistic local
// copy. Returns the number of members the message was delivered to.
func (r *Registry) Send(from *Member, msg *datatypes.ChatMessage) int {
	if from == nil {
		return 0
	}

	recipients := r.snapshot(from.room, from)

	env := datatypes.WSEnvelope{
		Action:  datatypes.ActionReceiveMessage,
		Message: msg,
	}
	delivered, dropped := deliverAll(recipients, env)

	r.metrics.RecordRelay(dropped)
	if dropped > 0 {
		r.logger.Warn("message deliveries dropped",
			"room", from.room, "dropped", dropped)
	}
	return delivered
}

// Broadcast fans a server-origin envelope out to every member of a room.
// Used for the advisor updates feed; an empty room is a no-op.
func (r *Registry) Broadcast(room string, env datatypes.WSEnvelope) int {
	recipients := r.snapshot(room, nil)

	delivered, dropped := deliverAll(recipients, env)

	r.metrics.RecordBroadcast(dropped)
	return delivered
}

// RoomSize returns the current member count of a room.
func (r *Registry) RoomSize(room string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms[room])
}

// snapshot copies a room's member list minus the excluded member, so
// deliveries run without holding the registry lock.
func (r *Registry) snapshot(room string, exclude *Member) []*Member {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := r.rooms[room]
	if len(members) == 0 {
		return nil
	}
	out := make([]*Member, 0, len(members))
	for m := range members {
		if m == exclude {
			continue
		}
		out = append(out, m)
	}
	return out
}

func deliverAll(recipients []*Member, env datatypes.WSEnvelope) (delivered, dropped int) {
	for _, m := range recipients {
		if err := m.sink.Deliver(env); err != nil {
			dropped++
			continue
		}
		delivered++
	}
	return delivered, dropped
}
