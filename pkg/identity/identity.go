// Copyright (C) 2026 FinHaven Technologies (dev@finhaven.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package identity defines the principal model and the pluggable identity
// provider surface for FinHaven services.
//
// Authentication mechanics (token issuance, password flows, OAuth) live
// outside this repository. Services consume identity exclusively through the
// Provider interface: a request carries an opaque token, the provider turns
// it into a Principal, and everything downstream makes decisions on the
// Principal's role.
//
// # Open Source Behavior
//
// The default NopProvider resolves every token to a "local-user" admin
// principal, which lets the service run without any identity infrastructure.
//
// # Hosted Behavior
//
// Hosted deployments implement Provider against their identity platform
// (session service, JWT validation, API gateway headers) and inject it at
// service construction time.
package identity

import (
	"context"
	"errors"
	"sync"
)

// ErrUnauthorized is returned when a token cannot be resolved to a principal.
// Provider implementations should wrap this error with additional context:
//
//	return nil, fmt.Errorf("token expired: %w", identity.ErrUnauthorized)
var ErrUnauthorized = errors.New("unauthorized")

// Role is the coarse-grained role attached to every principal.
type Role string

const (
	// RoleClient is an end user of the dashboard who can request an advisor.
	RoleClient Role = "client"

	// RoleAdvisor is a human advisor who responds to engagement requests.
	RoleAdvisor Role = "advisor"

	// RoleAdmin is a back-office operator. Admins pass every role gate.
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleAdvisor, RoleAdmin:
		return true
	}
	return false
}

// Principal is an authenticated actor.
//
// Principals are supplied by an external identity collaborator and are
// immutable for the duration of a request. ID is the only identity this
// repository ever keys on; profile data (names, emails, advisor bios) is the
// identity platform's concern.
type Principal struct {
	// ID uniquely identifies the actor. Never empty.
	ID string

	// Role drives every authorization decision in the advisory service.
	Role Role
}

// Is reports whether the principal holds the given role. Admins are
// considered to hold every role.
func (p *Principal) Is(role Role) bool {
	if p == nil {
		return false
	}
	return p.Role == role || p.Role == RoleAdmin
}

// Provider resolves an opaque request token to a Principal.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Provider interface {
	// Resolve validates token and returns the principal it belongs to.
	// Returns an error wrapping ErrUnauthorized if the token is invalid,
	// expired, or unknown.
	Resolve(ctx context.Context, token string) (*Principal, error)
}

// NopProvider resolves every token (including the empty one) to a local
// admin principal. It exists so the service can run without any identity
// infrastructure during local development.
type NopProvider struct{}

// Resolve always succeeds with the local admin principal.
func (NopProvider) Resolve(_ context.Context, _ string) (*Principal, error) {
	return &Principal{ID: "local-user", Role: RoleAdmin}, nil
}

// StaticProvider resolves tokens from a fixed in-memory table. It is the
// provider used by tests and by single-box demo deployments.
type StaticProvider struct {
	mu      sync.RWMutex
	byToken map[string]Principal
}

// NewStaticProvider creates an empty provider. Register principals with Add.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{byToken: make(map[string]Principal)}
}

// Add registers a token for the given principal, replacing any previous
// registration of the same token.
func (p *StaticProvider) Add(token string, principal Principal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byToken[token] = principal
}

// Resolve looks the token up in the table.
func (p *StaticProvider) Resolve(_ context.Context, token string) (*Principal, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	principal, ok := p.byToken[token]
	if !ok {
		return nil, ErrUnauthorized
	}
	return &principal, nil
}
