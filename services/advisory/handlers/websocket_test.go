// Copyright (C) 2026 FinHaven Technologies (dev@finhaven.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finhaven/finhaven/services/advisory/datatypes"
)

func dialWS(t *testing.T, server *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/advisory/ws"
	header := http.Header{"Authorization": {"Bearer " + token}}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) datatypes.WSEnvelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var env datatypes.WSEnvelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func joinRoom(t *testing.T, conn *websocket.Conn, room string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(datatypes.WSEnvelope{
		Action: datatypes.ActionJoinRoom,
		Room:   room,
	}))
	env := readEnvelope(t, conn)
	require.Equal(t, datatypes.ActionRoomJoined, env.Action)
	require.Equal(t, room, env.Room)
}

// A client and its advisor share the client's room; the sender never sees
// its own message echoed back.
func TestRealtime_RelayExcludesSender(t *testing.T) {
	router := newTestRouter(t)
	server := httptest.NewServer(router)
	defer server.Close()

	clientConn := dialWS(t, server, clientToken)
	advisorConn := dialWS(t, server, advisorToken)

	joinRoom(t, clientConn, "client-1")
	joinRoom(t, advisorConn, "client-1")

	require.NoError(t, clientConn.WriteJSON(datatypes.WSEnvelope{
		Action: datatypes.ActionSendMessage,
		Text:   "how risky is this fund?",
	}))

	env := readEnvelope(t, advisorConn)
	assert.Equal(t, datatypes.ActionReceiveMessage, env.Action)
	require.NotNil(t, env.Message)
	assert.Equal(t, "how risky is this fund?", env.Message.Text)
	assert.Equal(t, "client", env.Message.SenderRole)
	assert.NotEmpty(t, env.Message.ID)

	// Nothing comes back to the sender; the next frame it sees is a reply,
	// not its own message.
	require.NoError(t, advisorConn.WriteJSON(datatypes.WSEnvelope{
		Action: datatypes.ActionSendMessage,
		Text:   "moderate risk, well diversified",
	}))
	env = readEnvelope(t, clientConn)
	require.NotNil(t, env.Message)
	assert.Equal(t, "moderate risk, well diversified", env.Message.Text)
}

func TestRealtime_SendBeforeJoin(t *testing.T) {
	router := newTestRouter(t)
	server := httptest.NewServer(router)
	defer server.Close()

	conn := dialWS(t, server, clientToken)
	require.NoError(t, conn.WriteJSON(datatypes.WSEnvelope{
		Action: datatypes.ActionSendMessage,
		Text:   "anyone there?",
	}))

	env := readEnvelope(t, conn)
	assert.Equal(t, datatypes.ActionError, env.Action)
	assert.Contains(t, env.Error, "join a room")
}

func TestRealtime_ClientCannotJoinForeignRoom(t *testing.T) {
	router := newTestRouter(t)
	server := httptest.NewServer(router)
	defer server.Close()

	conn := dialWS(t, server, clientToken)
	require.NoError(t, conn.WriteJSON(datatypes.WSEnvelope{
		Action: datatypes.ActionJoinRoom,
		Room:   "client-2",
	}))

	env := readEnvelope(t, conn)
	assert.Equal(t, datatypes.ActionError, env.Action)
}

func TestRealtime_BroadcastVideo(t *testing.T) {
	router := newTestRouter(t)
	server := httptest.NewServer(router)
	defer server.Close()

	clientConn := dialWS(t, server, clientToken)
	advisorConn := dialWS(t, server, advisorToken)

	joinRoom(t, clientConn, "advisor_updates")

	// Only advisors may broadcast.
	require.NoError(t, clientConn.WriteJSON(datatypes.WSEnvelope{
		Action: datatypes.ActionBroadcastVideo,
		Title:  "not allowed",
	}))
	env := readEnvelope(t, clientConn)
	assert.Equal(t, datatypes.ActionError, env.Action)

	require.NoError(t, advisorConn.WriteJSON(datatypes.WSEnvelope{
		Action: datatypes.ActionBroadcastVideo,
		Title:  "Market update for Q3",
		URL:    "https://videos.example.com/q3-update",
	}))

	env = readEnvelope(t, clientConn)
	assert.Equal(t, datatypes.ActionReceiveVideo, env.Action)
	require.NotNil(t, env.Update)
	assert.Equal(t, "Market update for Q3", env.Update.Title)
	assert.NotZero(t, env.Update.PostedAt)
}

func TestRealtime_UnauthenticatedDialRejected(t *testing.T) {
	router := newTestRouter(t)
	server := httptest.NewServer(router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/advisory/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	if conn != nil {
		_ = conn.Close()
	}
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRealtime_InvalidEnvelope(t *testing.T) {
	router := newTestRouter(t)
	server := httptest.NewServer(router)
	defer server.Close()

	conn := dialWS(t, server, clientToken)
	require.NoError(t, conn.WriteJSON(datatypes.WSEnvelope{Action: "no_such_action"}))

	env := readEnvelope(t, conn)
	assert.Equal(t, datatypes.ActionError, env.Action)
	assert.Contains(t, env.Error, "invalid message")
}
