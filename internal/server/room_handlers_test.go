package server

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createRoomID(t *testing.T, app *fiber.App, token, name string) uint {
	t.Helper()
	resp, body := doJSON(t, app, http.MethodPost, "/api/rooms", token, map[string]string{"name": name})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "create room failed: %v", body)
	return uint(body["id"].(float64))
}

func TestRoomHandlers_CreateAndList(t *testing.T) {
	_, app := newTestServer(t, nil)
	token, userID := signupUser(t, app, "owner@example.com", "password123", "Owner")

	resp, body := doJSON(t, app, http.MethodPost, "/api/rooms", token, map[string]string{
		"name":        "  General  ",
		"description": "All hands",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "General", body["name"])
	assert.Equal(t, float64(userID), body["owner_id"])
	roomID := uint(body["id"].(float64))

	resp, body = doJSON(t, app, http.MethodGet, "/api/rooms", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rooms := body["rooms"].([]any)
	require.Len(t, rooms, 1)
	summary := rooms[0].(map[string]any)
	assert.Equal(t, "General", summary["name"])
	assert.Equal(t, "owner", summary["owner_username"])
	assert.Equal(t, float64(1), summary["member_count"])

	// The single-room view carries the same enrichment as the listing.
	resp, body = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/rooms/%d", roomID), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "All hands", body["description"])
	assert.Equal(t, "owner", body["owner_username"])
	assert.Equal(t, float64(1), body["member_count"])

	resp, _ = doJSON(t, app, http.MethodGet, "/api/rooms/999", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodGet, "/api/rooms/not-a-number", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "Invalid")
}

func TestRoomHandlers_NameTooLong(t *testing.T) {
	_, app := newTestServer(t, nil)
	token, _ := signupUser(t, app, "owner@example.com", "password123", "Owner")

	long := make([]byte, 101)
	for i := range long {
		long[i] = 'a'
	}

	resp, body := doJSON(t, app, http.MethodPost, "/api/rooms", token, map[string]string{"name": string(long)})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "NAME_TOO_LONG", body["code"])
	assert.Equal(t, float64(101), body["length"])
}

func TestRoomHandlers_JoinAndMembers(t *testing.T) {
	_, app := newTestServer(t, nil)
	ownerToken, _ := signupUser(t, app, "owner@example.com", "password123", "Owner")
	memberToken, memberID := signupUser(t, app, "member@example.com", "password123", "Member")

	roomID := createRoomID(t, app, ownerToken, "General")

	resp, body := doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/rooms/%d/join", roomID), memberToken, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "member", body["role"])
	assert.Equal(t, float64(memberID), body["user_id"])

	// Joining twice conflicts.
	resp, _ = doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/rooms/%d/join", roomID), memberToken, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/rooms/%d/members", roomID), memberToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	members := body["members"].([]any)
	assert.Len(t, members, 2)
}

func TestRoomHandlers_RoleResolution(t *testing.T) {
	_, app := newTestServer(t, nil)
	ownerToken, _ := signupUser(t, app, "owner@example.com", "password123", "Owner")
	visitorToken, _ := signupUser(t, app, "visitor@example.com", "password123", "Visitor")
	rootToken, _ := signupUser(t, app, "root@example.com", "password123", "Root")

	roomID := createRoomID(t, app, ownerToken, "General")

	resp, body := doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/rooms/%d/role", roomID), ownerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "owner", body["role"])

	resp, body = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/rooms/%d/role", roomID), visitorToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "visitor", body["role"])

	// Platform admins act with owner powers everywhere.
	resp, body = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/rooms/%d/role", roomID), rootToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "owner", body["role"])

	resp, _ = doJSON(t, app, http.MethodGet, "/api/rooms/424242/role", ownerToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
