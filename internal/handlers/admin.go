package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/result-system/apiserver/internal/apperr"
	"github.com/result-system/apiserver/internal/services"
	"github.com/result-system/apiserver/types"
)

// AdminHandler serves the ADMIN-only user and class endpoints.
type AdminHandler struct {
	users   *services.UserService
	classes *services.ClassService
	log     *zap.Logger
}

func NewAdminHandler(users *services.UserService, classes *services.ClassService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{users: users, classes: classes, log: log}
}

// AdminRouter registers admin routes. Every route requires an ADMIN principal.
func AdminRouter(r chi.Router, handler *AdminHandler, requireAuth func(http.Handler) http.Handler) {
	r.Use(requireAuth, RequireRoles(handler.log, types.RoleAdmin))

	r.Get("/users", handler.ListUsers)
	r.Get("/users/{userID}", handler.GetUser)
	r.Delete("/users/{userID}", handler.DeleteUser)
	r.Post("/classes", handler.CreateClass)
}

type CreateClassRequest struct {
	Name      string  `json:"name"`
	TeacherID *string `json:"teacherId"`
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, limit, err := parsePagination(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	result, err := h.users.List(r.Context(), page, limit)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	writeData(w, http.StatusOK, result)
}

func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	writeData(w, http.StatusOK, user)
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(r.Context(), chi.URLParam(r, "userID")); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) CreateClass(w http.ResponseWriter, r *http.Request) {
	var req CreateClassRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, h.log, apperr.BadRequest("Invalid request body."))
		return
	}

	class, err := h.classes.Create(r.Context(), req.Name, req.TeacherID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	writeData(w, http.StatusCreated, class)
}

// parsePagination reads the 1-based page and the page size. Missing values
// fall back to defaults; malformed ones are a validation error.
func parsePagination(r *http.Request) (page, limit int, err error) {
	page = 1
	limit = services.DefaultPageLimit

	var v validation
	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			v.add("page must be a positive integer")
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			v.add("limit must be a positive integer")
		}
	}
	if err := v.err(); err != nil {
		return 0, 0, err
	}

	if limit > services.MaxPageLimit {
		limit = services.MaxPageLimit
	}
	return page, limit, nil
}
