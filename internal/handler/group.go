package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alarm-messenger/relay-server-go/internal/audit"
	"github.com/alarm-messenger/relay-server-go/internal/model"
	"github.com/alarm-messenger/relay-server-go/internal/service"
)

type GroupHandler struct {
	groups *service.GroupService
}

func NewGroupHandler(groups *service.GroupService) *GroupHandler {
	return &GroupHandler{groups: groups}
}

// Routes expects the caller to mount it behind the API key check.
func (h *GroupHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/device/{deviceId}", h.ListByDevice)
	r.Put("/device/{deviceId}", h.AssignDevice)
	r.Get("/{code}", h.Get)
	r.Put("/{code}", h.Update)
	r.Delete("/{code}", h.Delete)

	return r
}

func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	groups, err := h.groups.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if groups == nil {
		groups = []model.Group{}
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	g, err := h.groups.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

type createGroupRequest struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	g, err := h.groups.Create(r.Context(), model.CreateGroupParams{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventGroupCreate,
		Details: map[string]interface{}{"code": g.Code},
	})
	writeJSON(w, http.StatusCreated, g)
}

type updateGroupRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (h *GroupHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateGroupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	g, err := h.groups.Update(r.Context(), chi.URLParam(r, "code"), model.UpdateGroupParams{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if err := h.groups.Delete(r.Context(), code); err != nil {
		writeError(w, r, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventGroupDelete,
		Details: map[string]interface{}{"code": code},
	})
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *GroupHandler) ListByDevice(w http.ResponseWriter, r *http.Request) {
	groups, err := h.groups.ListByDevice(r.Context(), chi.URLParam(r, "deviceId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if groups == nil {
		groups = []model.Group{}
	}
	writeJSON(w, http.StatusOK, groups)
}

type assignGroupsRequest struct {
	GroupCodes groupsField `json:"groupCodes"`
}

// PUT /api/groups/device/{deviceId} replaces the device's memberships.
func (h *GroupHandler) AssignDevice(w http.ResponseWriter, r *http.Request) {
	var req assignGroupsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	deviceID := chi.URLParam(r, "deviceId")
	codes, err := h.groups.AssignDevice(r.Context(), deviceID, req.GroupCodes)
	if err != nil {
		writeError(w, r, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventGroupAssign,
		DeviceID: deviceID,
		Details:  map[string]interface{}{"groups": codes},
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"deviceId":   deviceID,
		"groupCodes": codes,
	})
}
