package server

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageHandlers_SendAndList(t *testing.T) {
	_, app := newTestServer(t, nil)
	ownerToken, _ := signupUser(t, app, "owner@example.com", "password123", "Owner")
	memberToken, _ := signupUser(t, app, "member@example.com", "password123", "Member")
	strangerToken, _ := signupUser(t, app, "stranger@example.com", "password123", "Stranger")

	roomID := createRoomID(t, app, ownerToken, "General")
	resp, _ := doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/rooms/%d/join", roomID), memberToken, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/rooms/%d/messages", roomID), memberToken,
		map[string]string{"content": "  hello room  "})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "hello room", body["content"])
	assert.Equal(t, "member", body["username"])
	firstID := uint(body["id"].(float64))

	// Visitors cannot post.
	resp, _ = doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/rooms/%d/messages", roomID), strangerToken,
		map[string]string{"content": "let me in"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/rooms/%d/messages", roomID), memberToken,
		map[string]string{"content": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Replies carry a snapshot of the quoted message.
	resp, body = doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/rooms/%d/messages", roomID), ownerToken,
		map[string]any{"content": "welcome!", "reply_to_id": firstID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, float64(firstID), body["reply_to_id"])
	assert.Equal(t, "hello room", body["reply_to_content"])
	assert.Equal(t, "member", body["reply_to_username"])

	resp, body = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/rooms/%d/messages", roomID), memberToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	messages := body["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "hello room", messages[0].(map[string]any)["content"])
	assert.Equal(t, "welcome!", messages[1].(map[string]any)["content"])

	// Visitors cannot read either.
	resp, _ = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/rooms/%d/messages", roomID), strangerToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestMessageHandlers_DeleteScopes(t *testing.T) {
	_, app := newTestServer(t, nil)
	ownerToken, _ := signupUser(t, app, "owner@example.com", "password123", "Owner")
	memberToken, _ := signupUser(t, app, "member@example.com", "password123", "Member")

	roomID := createRoomID(t, app, ownerToken, "General")
	resp, _ := doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/rooms/%d/join", roomID), memberToken, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/rooms/%d/messages", roomID), memberToken,
		map[string]string{"content": "first"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	firstID := uint(body["id"].(float64))

	resp, body = doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/rooms/%d/messages", roomID), memberToken,
		map[string]string{"content": "second"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	secondID := uint(body["id"].(float64))

	// Default scope hides the message only for the caller.
	resp, _ = doJSON(t, app, http.MethodDelete, fmt.Sprintf("/api/messages/%d", firstID), ownerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/rooms/%d/messages", roomID), ownerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ownerView := body["messages"].([]any)
	assert.Equal(t, true, ownerView[0].(map[string]any)["view_deleted"])

	resp, body = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/rooms/%d/messages", roomID), memberToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	memberView := body["messages"].([]any)
	assert.Equal(t, false, memberView[0].(map[string]any)["view_deleted"])

	// Only the author or a moderator may delete for everyone.
	resp, _ = doJSON(t, app, http.MethodDelete,
		fmt.Sprintf("/api/messages/%d?scope=everyone", secondID), memberToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/rooms/%d/messages", roomID), memberToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	memberView = body["messages"].([]any)
	second := memberView[1].(map[string]any)
	assert.Equal(t, true, second["view_deleted"])
	assert.Equal(t, "everyone", second["view_deleted_for"])

	// Deleting for everyone twice conflicts.
	resp, _ = doJSON(t, app, http.MethodDelete,
		fmt.Sprintf("/api/messages/%d?scope=everyone", secondID), memberToken, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodDelete,
		fmt.Sprintf("/api/messages/%d?scope=bogus", secondID), memberToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMessageHandlers_ModeratorDeletesOthersMessage(t *testing.T) {
	_, app := newTestServer(t, nil)
	ownerToken, _ := signupUser(t, app, "owner@example.com", "password123", "Owner")
	memberToken, _ := signupUser(t, app, "member@example.com", "password123", "Member")

	roomID := createRoomID(t, app, ownerToken, "General")
	resp, _ := doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/rooms/%d/join", roomID), memberToken, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/rooms/%d/messages", roomID), memberToken,
		map[string]string{"content": "rule-breaking"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	msgID := uint(body["id"].(float64))

	resp, _ = doJSON(t, app, http.MethodDelete,
		fmt.Sprintf("/api/messages/%d?scope=everyone", msgID), ownerToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMessageHandlers_DefaultReadWindow(t *testing.T) {
	_, app := newTestServer(t, nil)
	ownerToken, _ := signupUser(t, app, "owner@example.com", "password123", "Owner")

	roomID := createRoomID(t, app, ownerToken, "Firehose")

	for i := 1; i <= 105; i++ {
		resp, _ := doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/rooms/%d/messages", roomID), ownerToken,
			map[string]string{"content": fmt.Sprintf("msg %d", i)})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	// Without a limit the newest 100 come back, oldest first.
	resp, body := doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/rooms/%d/messages", roomID), ownerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	messages := body["messages"].([]any)
	require.Len(t, messages, 100)
	assert.Equal(t, "msg 6", messages[0].(map[string]any)["content"])
	assert.Equal(t, "msg 105", messages[99].(map[string]any)["content"])
}
