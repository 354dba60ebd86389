// Copyright (C) 2026 FinHaven Technologies (dev@finhaven.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestRequestState_Terminal(t *testing.T) {
	if StateRequested.Terminal() {
		t.Error("REQUESTED must not be terminal")
	}
	for _, s := range []RequestState{StateApproved, StateDeclined, StateCancelled} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

func TestEngagementRequest_Pending(t *testing.T) {
	req := EngagementRequest{State: StateRequested}
	if !req.Pending() {
		t.Error("REQUESTED request should be pending")
	}
	req.State = StateDeclined
	if req.Pending() {
		t.Error("DECLINED request should not be pending")
	}
}

func TestEngagementRequest_OptionalFieldsOmitted(t *testing.T) {
	req := EngagementRequest{
		ID:          "r1",
		ClientID:    "c1",
		AdvisorID:   "a1",
		State:       StateRequested,
		RequestedAt: 1700000000000,
	}

	raw, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	out := string(raw)

	if strings.Contains(out, `"message"`) {
		t.Error("empty message should be omitted")
	}
	if strings.Contains(out, `"resolved_at"`) {
		t.Error("zero resolved_at should be omitted")
	}
}
