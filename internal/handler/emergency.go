package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alarm-messenger/relay-server-go/internal/audit"
	"github.com/alarm-messenger/relay-server-go/internal/model"
	"github.com/alarm-messenger/relay-server-go/internal/service"
)

type EmergencyHandler struct {
	emergencies *service.EmergencyService
	responses   *service.ResponseService
	requireKey  func(http.Handler) http.Handler
}

func NewEmergencyHandler(
	emergencies *service.EmergencyService,
	responses *service.ResponseService,
	requireKey func(http.Handler) http.Handler,
) *EmergencyHandler {
	return &EmergencyHandler{
		emergencies: emergencies,
		responses:   responses,
		requireKey:  requireKey,
	}
}

func (h *EmergencyHandler) Routes() chi.Router {
	r := chi.NewRouter()

	// Devices catch up on alerts they missed while offline.
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/responses", h.SubmitResponse)

	r.Group(func(r chi.Router) {
		r.Use(h.requireKey)
		r.Post("/", h.Create)
		r.Post("/{id}/deactivate", h.Deactivate)
		r.Get("/{id}/responses", h.ListResponses)
		r.Get("/{id}/participants", h.ListParticipants)
	})

	return r
}

// groupsField accepts "A,B" as well as ["A","B"].
type groupsField []string

func (g *groupsField) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*g = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*g = groupsField{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("groups must be a string or an array of strings")
	}
	*g = list
	return nil
}

type createEmergencyRequest struct {
	EmergencyNumber      string      `json:"emergencyNumber"`
	EmergencyDate        string      `json:"emergencyDate"`
	EmergencyKeyword     string      `json:"emergencyKeyword"`
	EmergencyDescription string      `json:"emergencyDescription"`
	EmergencyLocation    string      `json:"emergencyLocation"`
	Groups               groupsField `json:"groups"`
}

// POST /api/emergencies
func (h *EmergencyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createEmergencyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	e, err := h.emergencies.Create(r.Context(), service.CreateEmergencyInput{
		Number:      req.EmergencyNumber,
		Date:        req.EmergencyDate,
		Keyword:     req.EmergencyKeyword,
		Description: req.EmergencyDescription,
		Location:    req.EmergencyLocation,
		Groups:      req.Groups,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:        audit.EventEmergencyCreate,
		EmergencyID: e.ID,
		Details: map[string]interface{}{
			"keyword": e.Keyword,
			"groups":  e.GroupList(),
		},
	})
	writeJSON(w, http.StatusCreated, e)
}

// GET /api/emergencies
func (h *EmergencyHandler) List(w http.ResponseWriter, r *http.Request) {
	p := ParsePagination(r)
	items, total, err := h.emergencies.List(r.Context(), parseBool(r, "includeInactive"), p.Limit, p.Offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []model.Emergency{}
	}
	writeList(w, total, items)
}

// GET /api/emergencies/{id}
func (h *EmergencyHandler) Get(w http.ResponseWriter, r *http.Request) {
	e, err := h.emergencies.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// POST /api/emergencies/{id}/deactivate
func (h *EmergencyHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	e, err := h.emergencies.Deactivate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:        audit.EventEmergencyDeactivate,
		EmergencyID: e.ID,
	})
	writeJSON(w, http.StatusOK, e)
}

type submitResponseRequest struct {
	DeviceID      string `json:"deviceId"`
	Participating bool   `json:"participating"`
}

// POST /api/emergencies/{id}/responses
func (h *EmergencyHandler) SubmitResponse(w http.ResponseWriter, r *http.Request) {
	var req submitResponseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	resp, err := h.responses.Submit(r.Context(), chi.URLParam(r, "id"), req.DeviceID, req.Participating)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/emergencies/{id}/responses
func (h *EmergencyHandler) ListResponses(w http.ResponseWriter, r *http.Request) {
	details, err := h.responses.List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if details == nil {
		details = []model.ResponseDetail{}
	}
	writeJSON(w, http.StatusOK, details)
}

// GET /api/emergencies/{id}/participants
func (h *EmergencyHandler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	details, err := h.responses.Participants(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if details == nil {
		details = []model.ResponseDetail{}
	}
	writeJSON(w, http.StatusOK, details)
}
