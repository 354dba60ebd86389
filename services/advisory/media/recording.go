// Copyright (C) 2026 FinHaven Technologies (dev@finhaven.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package media

import (
	"log/slog"
	"sync"
)

// Recorder starts recordings on live captures. One recording per capture at
// a time; a recording never outlives its capture, because Release
// force-stops it.
type Recorder struct {
	logger *slog.Logger
}

// NewRecorder creates a recorder. logger must not be nil.
func NewRecorder(logger *slog.Logger) *Recorder {
	return &Recorder{logger: logger}
}

// Start begins a recording on the capture. Fails with ErrCaptureReleased on
// a dead capture and ErrRecordingActive when one is already running.
func (r *Recorder) Start(capture *Capture) (*Recording, error) {
	if capture == nil {
		return nil, ErrCaptureReleased
	}
	rec := &Recording{capture: capture}
	if err := capture.attach(rec); err != nil {
		return nil, err
	}
	r.logger.Info("recording started")
	return rec, nil
}

// Recording accumulates media chunks until stopped. The capture pipeline
// appends encoded chunks as they arrive; Stop seals the recording and
// returns the blob.
type Recording struct {
	mu      sync.Mutex
	capture *Capture
	data    []byte
	sealed  bool // no further appends accepted
	stopped bool // blob already handed out
}

// Append adds an encoded chunk. Fails once the recording is sealed, whether
// by Stop or by the capture's release.
func (r *Recording) Append(chunk []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return ErrRecordingStopped
	}
	r.data = append(r.data, chunk...)
	return nil
}

// Stop seals the recording and returns everything appended so far. Calling
// Stop after the capture was released still returns the force-stopped blob;
// only a second Stop errors.
func (r *Recording) Stop() ([]byte, error) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil, ErrRecordingStopped
	}
	r.sealed = true
	r.stopped = true
	data := r.data
	capture := r.capture
	r.mu.Unlock()

	capture.detach(r)
	return data, nil
}

// Sealed reports whether the recording still accepts chunks.
func (r *Recording) Sealed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sealed
}

// forceStop seals the recording without consuming the blob; the owner's
// eventual Stop still collects it. Called from Capture.Release.
func (r *Recording) forceStop() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}
