// Copyright (C) 2026 FinHaven Technologies (dev@finhaven.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package media manages the lifecycle of a session's capture resources:
// camera and microphone tracks acquired from a device, and the optional
// recording layered on top of them.
//
// The contract is strict single ownership. A session holds at most one
// active capture and at most one in-flight acquisition; acquiring on top of
// either is a caller bug and fails fast. Release is the one operation that
// is always safe: nil capture, released capture, release racing an
// in-flight acquisition — all of them converge on "every track stopped,
// nothing leaked". Device acquisition can take seconds (permission prompts,
// hardware spin-up), so a release that lands mid-acquisition cannot stop
// tracks that do not exist yet; it dooms the pending capture instead, and
// the tracks are stopped the moment the device resolves.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/finhaven/finhaven/services/advisory/observability"
)

// Code classifies device-origin acquisition failures.
type Code string

const (
	CodeDeviceUnavailable Code = "DEVICE_UNAVAILABLE"
	CodePermissionDenied  Code = "PERMISSION_DENIED"
)

// Error is a device-origin failure with a stable code. Device
// implementations wrap these so callers can distinguish "no camera" from
// "user said no".
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any *Error carrying the same code, so wrapped device errors
// still satisfy errors.Is against the sentinels below.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

var (
	ErrDeviceUnavailable = &Error{Code: CodeDeviceUnavailable, Message: "no capture device available"}
	ErrPermissionDenied  = &Error{Code: CodePermissionDenied, Message: "capture permission denied"}

	// Lifecycle contract violations. These indicate caller bugs rather
	// than environmental failures and are never retried.
	ErrAcquireInFlight  = errors.New("media: acquisition already in flight")
	ErrCaptureActive    = errors.New("media: a capture is already active")
	ErrCaptureReleased  = errors.New("media: capture released")
	ErrRecordingActive  = errors.New("media: a recording is already active")
	ErrRecordingStopped = errors.New("media: recording already stopped")
	ErrManagerClosed    = errors.New("media: manager closed")
)

// Constraints selects which kinds of tracks to open.
type Constraints struct {
	Video bool
	Audio bool
}

// Track is a single live media track. Stop must be idempotent; the manager
// may stop a track it never handed out (doomed acquisition) and Release may
// race a recording teardown.
type Track interface {
	Kind() string // "video" or "audio"
	Stop()
}

// Device opens tracks from the underlying capture hardware. Open blocks
// until the device resolves (hardware spin-up, permission prompt) or ctx is
// cancelled; on error no tracks are returned and nothing needs stopping.
type Device interface {
	Open(ctx context.Context, c Constraints) ([]Track, error)
}

// Capture is one acquired set of tracks. Obtained from Manager.Acquire and
// retired with Release.
type Capture struct {
	mu        sync.Mutex
	tracks    []Track
	released  bool
	recording *Recording
	onRelease func()
}

// Tracks returns the capture's tracks. Empty after Release.
func (c *Capture) Tracks() []Track {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return nil
	}
	return append([]Track(nil), c.tracks...)
}

// Released reports whether Release has run.
func (c *Capture) Released() bool {
	if c == nil {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released
}

// Release stops every track exactly once and force-stops any active
// recording first, so the recorder never observes writes on dead tracks.
// Safe on nil and on an already released capture.
func (c *Capture) Release() {
	if c == nil {
		return
	}

	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return
	}
	c.released = true
	rec := c.recording
	c.recording = nil
	tracks := c.tracks
	c.tracks = nil
	done := c.onRelease
	c.mu.Unlock()

	if rec != nil {
		rec.forceStop()
	}
	for _, t := range tracks {
		t.Stop()
	}
	if done != nil {
		done()
	}
}

// attach registers a recording on this capture. One recording at a time;
// none on a released capture.
func (c *Capture) attach(r *Recording) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return ErrCaptureReleased
	}
	if c.recording != nil {
		return ErrRecordingActive
	}
	c.recording = r
	return nil
}

// detach clears the recording slot after an orderly stop.
func (c *Capture) detach(r *Recording) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.recording == r {
		c.recording = nil
	}
}

// Manager enforces the one-capture-per-session contract.
type Manager struct {
	mu      sync.Mutex
	device  Device
	active  *Capture
	pending bool
	doomed  bool
	closed  bool

	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewManager creates a manager around a device. logger must not be nil;
// metrics may be nil.
func NewManager(device Device, logger *slog.Logger, metrics *observability.Metrics) *Manager {
	return &Manager{device: device, logger: logger, metrics: metrics}
}

// Acquire opens tracks per the constraints and returns the capture. Fails
// with ErrAcquireInFlight while another acquisition is pending and with
// ErrCaptureActive while a capture is live.
//
// The device call runs outside the manager lock. If Release or Shutdown
// lands while it is pending, the freshly opened tracks are stopped on
// arrival and Acquire returns ErrCaptureReleased.
func (m *Manager) Acquire(ctx context.Context, c Constraints) (*Capture, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	if m.pending {
		m.mu.Unlock()
		return nil, ErrAcquireInFlight
	}
	if m.active != nil {
		m.mu.Unlock()
		return nil, ErrCaptureActive
	}
	m.pending = true
	m.doomed = false
	m.mu.Unlock()

	tracks, err := m.device.Open(ctx, c)

	m.mu.Lock()
	m.pending = false
	if err != nil {
		m.doomed = false
		m.mu.Unlock()
		m.metrics.RecordAcquisition("error")
		m.logger.Warn("media acquisition failed", "error", err)
		return nil, err
	}
	if m.doomed || m.closed {
		m.doomed = false
		m.mu.Unlock()
		for _, t := range tracks {
			t.Stop()
		}
		m.metrics.RecordAcquisition("aborted")
		m.logger.Info("media acquisition released before device resolved",
			"tracks", len(tracks))
		return nil, ErrCaptureReleased
	}

	capture := &Capture{tracks: tracks, onRelease: m.captureEnded}
	m.active = capture
	m.mu.Unlock()

	m.metrics.RecordAcquisition("ok")
	m.metrics.CaptureStarted()
	m.logger.Info("media capture acquired",
		"video", c.Video, "audio", c.Audio, "tracks", len(tracks))
	return capture, nil
}

// Release tears down the session's capture. If an acquisition is pending it
// dooms it instead; either way every track ends up stopped. Always safe to
// call.
func (m *Manager) Release() {
	m.mu.Lock()
	if m.pending {
		m.doomed = true
		m.mu.Unlock()
		return
	}
	capture := m.active
	m.mu.Unlock()

	capture.Release()
}

// Active returns the live capture, or nil.
func (m *Manager) Active() *Capture {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Shutdown releases any capture and refuses further acquisitions.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.Release()
}

func (m *Manager) captureEnded() {
	m.mu.Lock()
	m.active = nil
	m.mu.Unlock()
	m.metrics.CaptureEnded()
}
