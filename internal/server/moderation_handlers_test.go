package server

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModerationHandlers_PromoteAndKick(t *testing.T) {
	_, app := newTestServer(t, nil)
	ownerToken, _ := signupUser(t, app, "owner@example.com", "password123", "Owner")
	memberToken, memberID := signupUser(t, app, "member@example.com", "password123", "Member")
	_, targetID := signupUser(t, app, "target@example.com", "password123", "Target")

	roomID := createRoomID(t, app, ownerToken, "General")
	for _, tok := range []string{memberToken} {
		resp, _ := doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/rooms/%d/join", roomID), tok, nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	// A plain member cannot promote anyone.
	resp, _ := doJSON(t, app, http.MethodPost,
		fmt.Sprintf("/api/rooms/%d/members/%d/promote", roomID, targetID), memberToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodPost,
		fmt.Sprintf("/api/rooms/%d/members/%d/promote", roomID, memberID), ownerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "admin", body["role"])

	resp, _ = doJSON(t, app, http.MethodPost,
		fmt.Sprintf("/api/rooms/%d/members/%d/kick", roomID, memberID), ownerToken,
		map[string]string{"reason": "spamming"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Kicked users lose their membership.
	resp, body = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/rooms/%d/role", roomID), memberToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "visitor", body["role"])

	// And cannot immediately rejoin.
	resp, body = doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/rooms/%d/join", roomID), memberToken, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "RATE_LIMIT", body["code"])
}

func TestModerationHandlers_BlockAndUnblock(t *testing.T) {
	_, app := newTestServer(t, nil)
	ownerToken, _ := signupUser(t, app, "owner@example.com", "password123", "Owner")
	memberToken, memberID := signupUser(t, app, "member@example.com", "password123", "Member")

	roomID := createRoomID(t, app, ownerToken, "General")
	resp, _ := doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/rooms/%d/join", roomID), memberToken, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost,
		fmt.Sprintf("/api/rooms/%d/members/%d/block", roomID, memberID), ownerToken,
		map[string]string{"reason": "harassment"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/rooms/%d/role", roomID), memberToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "blocked", body["role"])

	// Blocked users cannot read messages or rejoin.
	resp, _ = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/rooms/%d/messages", roomID), memberToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/rooms/%d/join", roomID), memberToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodDelete,
		fmt.Sprintf("/api/rooms/%d/members/%d/block", roomID, memberID), ownerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/rooms/%d/role", roomID), memberToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "visitor", body["role"])
}

func TestModerationHandlers_Mutes(t *testing.T) {
	_, app := newTestServer(t, nil)
	ownerToken, _ := signupUser(t, app, "owner@example.com", "password123", "Owner")
	memberToken, memberID := signupUser(t, app, "member@example.com", "password123", "Member")

	roomID := createRoomID(t, app, ownerToken, "General")
	resp, _ := doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/rooms/%d/join", roomID), memberToken, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodPost,
		fmt.Sprintf("/api/rooms/%d/mutes/%d", roomID, memberID), ownerToken,
		map[string]any{"reason": "cooldown"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, float64(memberID), body["user_id"])

	// Muted members cannot post.
	resp, _ = doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/rooms/%d/messages", roomID), memberToken,
		map[string]string{"content": "hello"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/rooms/%d/mutes", roomID), ownerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["mutes"].([]any), 1)

	// Only moderators may see the mute list.
	resp, _ = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/rooms/%d/mutes", roomID), memberToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodDelete,
		fmt.Sprintf("/api/rooms/%d/mutes/%d", roomID, memberID), ownerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/rooms/%d/messages", roomID), memberToken,
		map[string]string{"content": "hello again"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestAdminHandlers_BanGate(t *testing.T) {
	_, app := newTestServer(t, nil)
	rootToken, _ := signupUser(t, app, "root@example.com", "password123", "Root")
	userToken, userID := signupUser(t, app, "mallory@example.com", "password123", "Mallory")

	// Only platform admins reach the admin surface.
	resp, _ := doJSON(t, app, http.MethodGet, "/api/admin/users", userToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodGet, "/api/admin/users", rootToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["users"].([]any), 2)

	resp, _ = doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/admin/users/%d/ban", userID), rootToken,
		map[string]string{"reason": "abuse"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Every authenticated request from a banned account is refused.
	resp, body = doJSON(t, app, http.MethodGet, "/api/rooms", userToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "BANNED", body["code"])

	// And a banned account cannot log back in.
	resp, _ = doJSON(t, app, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "mallory@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/admin/users/%d/unban", userID), rootToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/api/rooms", userToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdminHandlers_AuditLogs(t *testing.T) {
	_, app := newTestServer(t, nil)
	rootToken, _ := signupUser(t, app, "root@example.com", "password123", "Root")
	_, userID := signupUser(t, app, "noisy@example.com", "password123", "Noisy")

	resp, _ := doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/admin/users/%d/ban", userID), rootToken,
		map[string]string{"reason": "spam"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodGet, "/api/admin/audit-logs?action=ban_user", rootToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	logs := body["audit_logs"].([]any)
	require.NotEmpty(t, logs)
	entry := logs[0].(map[string]any)
	assert.Equal(t, "ban_user", entry["action"])
	assert.Equal(t, float64(userID), entry["target_user_id"])
}
