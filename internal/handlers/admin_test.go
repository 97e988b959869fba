package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/fanvault/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminRoleGating(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "alice", "alice@example.com", "sw0rdfish42")
	moderator := env.registerWithRole(t, "mod", "mod@example.com", "sw0rdfish42", types.RoleModerator)

	rr := env.do(t, http.MethodGet, "/api/admin/reports", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/admin/reports", user.Token, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "Moderator access required", errorMessage(t, rr))

	rr = env.do(t, http.MethodGet, "/api/admin/reports", moderator.Token, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	// role changes are admin-only
	rr = env.do(t, http.MethodPatch, fmt.Sprintf("/api/admin/users/%d/role", user.User.ID), moderator.Token, map[string]string{"role": "moderator"})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "Admin access required", errorMessage(t, rr))
}

func TestReportLifecycle(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice", "alice@example.com", "sw0rdfish42")
	bob := env.register(t, "bob", "bob@example.com", "sw0rdfish42")
	moderator := env.registerWithRole(t, "mod", "mod@example.com", "sw0rdfish42", types.RoleModerator)

	fanwork := env.seedFanwork(t, alice.Token, map[string]string{
		"type": "artwork", "rating": "all-ages", "title": "Harbor Lights",
	})

	rr := env.do(t, http.MethodPost, "/api/reports", bob.Token, map[string]any{
		"target_type": "fanwork",
		"target_id":   fanwork.ID,
		"reason":      "stolen artwork",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var report types.Report
	decodeBody(t, rr, &report)
	assert.Equal(t, types.ReportPending, report.Status)
	assert.Equal(t, "bob", report.ReporterUsername)
	assert.Equal(t, "fanwork", report.TargetType)
	assert.Equal(t, fanwork.ID, report.TargetID)
	assert.Nil(t, report.ReviewedBy)

	// filing needs a signed-in account
	rr = env.do(t, http.MethodPost, "/api/reports", "", map[string]any{
		"target_type": "fanwork", "target_id": fanwork.ID, "reason": "x",
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/reports", bob.Token, map[string]any{
		"target_type": "website", "target_id": 1, "reason": "x",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, fieldErrorFields(t, rr), "target_type")

	var reports []types.Report
	rr = env.do(t, http.MethodGet, "/api/admin/reports", moderator.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	decodeBody(t, rr, &reports)
	require.Len(t, reports, 1)

	rr = env.do(t, http.MethodGet, "/api/admin/reports?status=reviewed", moderator.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	decodeBody(t, rr, &reports)
	assert.Empty(t, reports)

	rr = env.do(t, http.MethodGet, "/api/admin/reports?status=bogus", moderator.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid status filter", errorMessage(t, rr))

	reviewPath := fmt.Sprintf("/api/admin/reports/%d", report.ID)
	rr = env.do(t, http.MethodPatch, reviewPath, moderator.Token, map[string]string{
		"status":            "reviewed",
		"moderation_action": "hid fanwork",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var reviewed types.Report
	decodeBody(t, rr, &reviewed)
	assert.Equal(t, types.ReportReviewed, reviewed.Status)
	assert.Equal(t, "hid fanwork", reviewed.ModerationAction)
	require.NotNil(t, reviewed.ReviewedBy)
	assert.Equal(t, moderator.User.ID, *reviewed.ReviewedBy)
	assert.NotNil(t, reviewed.ReviewedAt)

	rr = env.do(t, http.MethodGet, "/api/admin/reports?status=pending", moderator.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	decodeBody(t, rr, &reports)
	assert.Empty(t, reports)

	rr = env.do(t, http.MethodPatch, reviewPath, moderator.Token, map[string]string{"status": "closed"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, fieldErrorFields(t, rr), "status")

	rr = env.do(t, http.MethodPatch, "/api/admin/reports/999", moderator.Token, map[string]string{"status": "dismissed"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Report not found", errorMessage(t, rr))
}

func TestBanAndUnban(t *testing.T) {
	env := newTestEnv(t)
	troll := env.register(t, "troll", "troll@example.com", "sw0rdfish42")
	moderator := env.registerWithRole(t, "mod", "mod@example.com", "sw0rdfish42", types.RoleModerator)

	banPath := fmt.Sprintf("/api/admin/users/%d/ban", troll.User.ID)

	rr := env.do(t, http.MethodPost, banPath, moderator.Token, map[string]string{"reason": "spam"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var banned types.User
	decodeBody(t, rr, &banned)
	assert.True(t, banned.IsBanned)

	// banning twice is a no-op
	rr = env.do(t, http.MethodPost, banPath, moderator.Token, map[string]string{"reason": "again"})
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "troll@example.com", "password": "sw0rdfish42",
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Account suspended", errorMessage(t, rr))

	rr = env.do(t, http.MethodPost, fmt.Sprintf("/api/admin/users/%d/unban", troll.User.ID), moderator.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var unbanned types.User
	decodeBody(t, rr, &unbanned)
	assert.False(t, unbanned.IsBanned)

	env.login(t, "troll@example.com", "sw0rdfish42")
}

func TestBanWithoutBody(t *testing.T) {
	env := newTestEnv(t)
	troll := env.register(t, "troll", "troll@example.com", "sw0rdfish42")
	moderator := env.registerWithRole(t, "mod", "mod@example.com", "sw0rdfish42", types.RoleModerator)

	rr := env.do(t, http.MethodPost, fmt.Sprintf("/api/admin/users/%d/ban", troll.User.ID), moderator.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func TestBanRespectsRoleRank(t *testing.T) {
	env := newTestEnv(t)
	moderator := env.registerWithRole(t, "mod", "mod@example.com", "sw0rdfish42", types.RoleModerator)
	peer := env.registerWithRole(t, "mod2", "mod2@example.com", "sw0rdfish42", types.RoleModerator)
	admin := env.registerWithRole(t, "root", "root@example.com", "sw0rdfish42", types.RoleAdmin)

	// a moderator cannot ban a peer or an admin
	rr := env.do(t, http.MethodPost, fmt.Sprintf("/api/admin/users/%d/ban", peer.User.ID), moderator.Token, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "Cannot ban an account with an equal or higher role", errorMessage(t, rr))

	rr = env.do(t, http.MethodPost, fmt.Sprintf("/api/admin/users/%d/ban", admin.User.ID), moderator.Token, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	// an admin can ban a moderator
	rr = env.do(t, http.MethodPost, fmt.Sprintf("/api/admin/users/%d/ban", peer.User.ID), admin.Token, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/admin/users/999/ban", admin.Token, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "User not found", errorMessage(t, rr))
}

func TestChangeRole(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice", "alice@example.com", "sw0rdfish42")
	admin := env.registerWithRole(t, "root", "root@example.com", "sw0rdfish42", types.RoleAdmin)

	rolePath := fmt.Sprintf("/api/admin/users/%d/role", alice.User.ID)

	rr := env.do(t, http.MethodPatch, rolePath, admin.Token, map[string]string{"role": "moderator"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var updated types.User
	decodeBody(t, rr, &updated)
	assert.Equal(t, types.RoleModerator, updated.Role)

	// the promoted account passes the moderator gate after a fresh login
	promoted := env.login(t, "alice@example.com", "sw0rdfish42")
	rr = env.do(t, http.MethodGet, "/api/admin/reports", promoted.Token, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodPatch, rolePath, admin.Token, map[string]string{"role": "overlord"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, fieldErrorFields(t, rr), "role")

	rr = env.do(t, http.MethodPatch, "/api/admin/users/999/role", admin.Token, map[string]string{"role": "user"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHideAndUnhideFanwork(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice", "alice@example.com", "sw0rdfish42")
	moderator := env.registerWithRole(t, "mod", "mod@example.com", "sw0rdfish42", types.RoleModerator)

	fanwork := env.seedFanwork(t, alice.Token, map[string]string{
		"type": "artwork", "rating": "all-ages", "title": "Harbor Lights",
	})
	hidePath := fmt.Sprintf("/api/admin/fanworks/%d/hide", fanwork.ID)

	// a reason is required
	rr := env.do(t, http.MethodPatch, hidePath, moderator.Token, map[string]string{"reason": "  "})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, fieldErrorFields(t, rr), "reason")

	rr = env.do(t, http.MethodPatch, hidePath, moderator.Token, map[string]string{"reason": "reported as stolen"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var hidden types.Fanwork
	decodeBody(t, rr, &hidden)
	assert.True(t, hidden.Hidden)
	assert.Equal(t, "reported as stolen", hidden.ModerationReason)

	rr = env.do(t, http.MethodPatch, fmt.Sprintf("/api/admin/fanworks/%d/unhide", fanwork.ID), moderator.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var restored types.Fanwork
	decodeBody(t, rr, &restored)
	assert.False(t, restored.Hidden)
	assert.Empty(t, restored.ModerationReason)

	rr = env.do(t, http.MethodGet, fmt.Sprintf("/api/fanworks/%d", fanwork.ID), "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodPatch, "/api/admin/fanworks/999/hide", moderator.Token, map[string]string{"reason": "x"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeleteFanwork(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice", "alice@example.com", "sw0rdfish42")
	moderator := env.registerWithRole(t, "mod", "mod@example.com", "sw0rdfish42", types.RoleModerator)

	rr := env.doMultipart(t, "/api/fanworks", alice.Token, map[string]string{
		"type": "artwork", "rating": "all-ages", "title": "Harbor Lights",
	}, "harbor.png", pngBytes)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var fanwork types.Fanwork
	decodeBody(t, rr, &fanwork)
	require.Equal(t, 1, env.media.size())

	rr = env.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/fanworks/%d", fanwork.ID), moderator.Token, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	// the row and the stored media are both gone
	rr = env.do(t, http.MethodGet, fmt.Sprintf("/api/fanworks/%d", fanwork.ID), "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, 0, env.media.size())

	rr = env.do(t, http.MethodDelete, "/api/admin/fanworks/999", moderator.Token, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
