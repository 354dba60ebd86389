// Copyright (C) 2026 FinHaven Technologies (dev@finhaven.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// WebSocket actions. Inbound actions are sent by clients; outbound actions
// are sent by the service. The protocol is at-least-once and unordered:
// message IDs let the UI de-duplicate, nothing else is guaranteed.
const (
	// Inbound
	ActionJoinRoom       = "join_room"
	ActionSendMessage    = "send_message"
	ActionBroadcastVideo = "broadcast_video"

	// Outbound
	ActionRoomJoined     = "room_joined"
	ActionReceiveMessage = "receive_message"
	ActionReceiveVideo   = "receive_video"
	ActionError          = "error"
)

// ChatMessage is a single relayed room message. Messages are transient:
// the service never persists them.
type ChatMessage struct {
	ID         string `json:"id"`
	Room       string `json:"room"`
	Text       string `json:"text"`
	SenderRole string `json:"sender_role"`
	SentAt     int64  `json:"sent_at"`
}

// VideoUpdate is an advisor broadcast published to the shared updates feed.
type VideoUpdate struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	PostedAt int64  `json:"posted_at"`
}

// WSEnvelope is the single frame type exchanged on the realtime channel.
// Which fields are populated depends on Action; the validate tags cover the
// inbound actions.
type WSEnvelope struct {
	Action string `json:"action" validate:"required,oneof=join_room send_message broadcast_video"`

	// Room identifies the channel for join_room. Rooms are keyed by
	// client ID; the updates feed uses a well-known room name.
	Room string `json:"room,omitempty" validate:"required_if=Action join_room"`

	// Text is the chat payload for send_message.
	Text string `json:"text,omitempty" validate:"required_if=Action send_message"`

	// Title and URL describe a broadcast_video update.
	Title string `json:"title,omitempty" validate:"required_if=Action broadcast_video"`
	URL   string `json:"url,omitempty"`

	// Outbound-only fields.
	Message *ChatMessage `json:"message,omitempty"`
	Update  *VideoUpdate `json:"update,omitempty"`
	Error   string       `json:"error,omitempty"`
}
