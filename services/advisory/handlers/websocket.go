// Copyright (C) 2026 FinHaven Technologies (dev@finhaven.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/finhaven/finhaven/pkg/identity"
	"github.com/finhaven/finhaven/services/advisory/datatypes"
	"github.com/finhaven/finhaven/services/advisory/middleware"
	"github.com/finhaven/finhaven/services/advisory/realtime"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
}

// validate checks inbound envelopes. gin's binding validator only covers
// HTTP bodies; websocket frames are validated explicitly.
var validate = validator.New()

// wsSink adapts a websocket connection to the realtime.Sink interface.
// gorilla/websocket allows one concurrent writer, so every write — reader
// loop replies and registry fan-in alike — goes through the mutex here.
type wsSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSink) Deliver(env datatypes.WSEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(env)
}

// HandleRealtime handles GET /v1/advisory/ws. One connection holds at most
// one room membership; joining again moves it. The registry membership is
// torn down when the read loop exits, however the connection died.
//
// Inbound actions: join_room, send_message, broadcast_video (advisor only).
// Malformed or unauthorized frames get an error envelope back and the
// connection stays open.
func HandleRealtime(registry *realtime.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := middleware.Principal(c)
		if p == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("websocket upgrade failed", "error", err)
			return
		}
		defer ws.Close()
		slog.Info("realtime client connected", "user_id", p.ID, "role", string(p.Role))

		sink := &wsSink{conn: ws}
		var member *realtime.Member
		defer func() {
			registry.Leave(member)
		}()

		for {
			var env datatypes.WSEnvelope
			if err := ws.ReadJSON(&env); err != nil {
				slog.Info("realtime client disconnected", "user_id", p.ID, "error", err.Error())
				return
			}

			if err := validate.Struct(env); err != nil {
				if sendError(sink, env.Action, "invalid message: "+err.Error()) != nil {
					return
				}
				continue
			}

			switch env.Action {
			case datatypes.ActionJoinRoom:
				if !canJoin(p, env.Room) {
					if sendError(sink, env.Action, "cannot join room "+env.Room) != nil {
						return
					}
					continue
				}
				registry.Leave(member)
				member = registry.Join(env.Room, sink)
				if sink.Deliver(datatypes.WSEnvelope{
					Action: datatypes.ActionRoomJoined,
					Room:   env.Room,
				}) != nil {
					return
				}

			case datatypes.ActionSendMessage:
				if member == nil {
					if sendError(sink, env.Action, "join a room first") != nil {
						return
					}
					continue
				}
				msg := &datatypes.ChatMessage{
					ID:         uuid.New().String(),
					Room:       member.Room(),
					Text:       env.Text,
					SenderRole: string(p.Role),
					SentAt:     datatypes.NowMillis(),
				}
				registry.Send(member, msg)

			case datatypes.ActionBroadcastVideo:
				if !p.Is(identity.RoleAdvisor) {
					if sendError(sink, env.Action, "only advisors may broadcast") != nil {
						return
					}
					continue
				}
				update := &datatypes.VideoUpdate{
					ID:       uuid.New().String(),
					Title:    env.Title,
					URL:      env.URL,
					PostedAt: datatypes.NowMillis(),
				}
				n := registry.Broadcast(realtime.FeedRoom, datatypes.WSEnvelope{
					Action: datatypes.ActionReceiveVideo,
					Update: update,
				})
				slog.Info("advisor update broadcast",
					"advisor_id", p.ID, "update_id", update.ID, "delivered", n)
			}
		}
	}
}

// canJoin limits clients to their own room and the shared feed; advisors
// and admins join any room.
func canJoin(p *identity.Principal, room string) bool {
	if p.Is(identity.RoleAdvisor) {
		return true
	}
	return room == p.ID || room == realtime.FeedRoom
}

func sendError(sink *wsSink, action, msg string) error {
	err := sink.Deliver(datatypes.WSEnvelope{
		Action: datatypes.ActionError,
		Error:  msg,
	})
	if err != nil {
		slog.Warn("failed to write websocket error", "action", action, "error", err)
	}
	return err
}
