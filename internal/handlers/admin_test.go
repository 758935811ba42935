package handlers

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/result-system/apiserver/internal/services"
	"github.com/result-system/apiserver/types"
)

func TestAdminRoutesRequireAdmin(t *testing.T) {
	env := newTestEnv(t)
	student := env.seedUser(t, "2024-3-1000", types.RoleStudent)

	rec := env.do(jsonRequest(http.MethodGet, "/api/v1/admin/users", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := jsonRequest(http.MethodGet, "/api/v1/admin/users", nil)
	req.Header.Set("Authorization", "Bearer "+env.accessToken(t, student))
	rec = env.do(req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminListGetDeleteUsers(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedUser(t, "A-2000", types.RoleAdmin)
	teacher := env.seedUser(t, "T-10001", types.RoleTeacher)
	env.seedUser(t, "2024-3-1002", types.RoleStudent)
	bearer := "Bearer " + env.accessToken(t, admin)

	req := jsonRequest(http.MethodGet, "/api/v1/admin/users?page=1&limit=1", nil)
	req.Header.Set("Authorization", bearer)
	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var page services.UserPage
	decodeData(t, rec, &page)
	assert.Equal(t, 2, page.Total)
	assert.Len(t, page.Users, 1)
	require.NotNil(t, page.PageInfo)
	assert.True(t, page.PageInfo.HasNext)
	assert.Equal(t, 2, page.PageInfo.TotalPages)

	req = jsonRequest(http.MethodGet, "/api/v1/admin/users?page=zero", nil)
	req.Header.Set("Authorization", bearer)
	assert.Equal(t, http.StatusUnprocessableEntity, env.do(req).Code)

	req = jsonRequest(http.MethodGet, "/api/v1/admin/users/"+teacher.ID, nil)
	req.Header.Set("Authorization", bearer)
	rec = env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	var got types.User
	decodeData(t, rec, &got)
	assert.Equal(t, "T-10001", got.Username)
	assert.NotContains(t, rec.Body.String(), "argon2")

	req = jsonRequest(http.MethodGet, "/api/v1/admin/users/not-a-uuid", nil)
	req.Header.Set("Authorization", bearer)
	assert.Equal(t, http.StatusBadRequest, env.do(req).Code)

	req = jsonRequest(http.MethodDelete, "/api/v1/admin/users/"+teacher.ID, nil)
	req.Header.Set("Authorization", bearer)
	assert.Equal(t, http.StatusNoContent, env.do(req).Code)

	req = jsonRequest(http.MethodDelete, "/api/v1/admin/users/"+teacher.ID, nil)
	req.Header.Set("Authorization", bearer)
	rec = env.do(req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, rec).Code)

	req = jsonRequest(http.MethodGet, "/api/v1/admin/users/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", bearer)
	assert.Equal(t, http.StatusNotFound, env.do(req).Code)
}

func TestAdminCreateClass(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedUser(t, "A-2000", types.RoleAdmin)
	teacher := env.seedUser(t, "T-10001", types.RoleTeacher)
	bearer := "Bearer " + env.accessToken(t, admin)

	req := jsonRequest(http.MethodPost, "/api/v1/admin/classes", CreateClassRequest{Name: "Class 10", TeacherID: &teacher.ID})
	req.Header.Set("Authorization", bearer)
	rec := env.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var class types.ClassRoom
	decodeData(t, rec, &class)
	assert.Equal(t, "Class 10", class.Name)
	assert.NotEmpty(t, class.ID)

	req = jsonRequest(http.MethodPost, "/api/v1/admin/classes", CreateClassRequest{})
	req.Header.Set("Authorization", bearer)
	assert.Equal(t, http.StatusUnprocessableEntity, env.do(req).Code)
}
