package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/alarm-messenger/relay-server-go/internal/audit"
	"github.com/alarm-messenger/relay-server-go/internal/model"
	"github.com/alarm-messenger/relay-server-go/internal/service"
	"github.com/alarm-messenger/relay-server-go/internal/util"
)

// ConnectedLister reports which devices hold a live session.
type ConnectedLister interface {
	ListConnected() []string
}

type DeviceHandler struct {
	devices    *service.DeviceService
	sessions   ConnectedLister
	serverURL  string
	requireKey func(http.Handler) http.Handler
}

func NewDeviceHandler(
	devices *service.DeviceService,
	sessions ConnectedLister,
	serverURL string,
	requireKey func(http.Handler) http.Handler,
) *DeviceHandler {
	return &DeviceHandler{
		devices:    devices,
		sessions:   sessions,
		serverURL:  serverURL,
		requireKey: requireKey,
	}
}

func (h *DeviceHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/register", h.Register)

	r.Group(func(r chi.Router) {
		r.Use(h.requireKey)
		r.Post("/registration-token", h.RegistrationToken)
		r.Get("/", h.List)
		r.Get("/connected", h.Connected)
		r.Get("/{id}", h.Get)
		r.Delete("/{id}", h.Deactivate)
	})

	return r
}

type registerDeviceRequest struct {
	DeviceToken       string               `json:"deviceToken"`
	RegistrationToken string               `json:"registrationToken"`
	Platform          string               `json:"platform"`
	FirstName         *string              `json:"firstName"`
	LastName          *string              `json:"lastName"`
	Qualifications    model.Qualifications `json:"qualifications"`
	LeadershipRole    string               `json:"leadershipRole"`
}

// POST /api/devices/register
func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerDeviceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	d, err := h.devices.Register(r.Context(), service.RegisterDeviceInput{
		DeviceToken:       req.DeviceToken,
		RegistrationToken: req.RegistrationToken,
		Platform:          req.Platform,
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		Qualifications:    req.Qualifications,
		LeadershipRole:    req.LeadershipRole,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventDeviceRegister,
		DeviceID: d.ID,
		Details: map[string]interface{}{
			"platform":    string(d.Platform),
			"deviceToken": util.MaskToken(d.DeviceToken),
		},
	})
	writeJSON(w, http.StatusOK, d)
}

// POST /api/devices/registration-token hands out a fresh device token
// and the server URL for onboarding a new handset.
func (h *DeviceHandler) RegistrationToken(w http.ResponseWriter, r *http.Request) {
	token := uuid.NewString()
	writeJSON(w, http.StatusOK, map[string]any{
		"deviceToken": token,
		"registrationData": map[string]string{
			"token":     token,
			"serverUrl": h.serverURL,
		},
	})
}

// GET /api/devices
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	p := ParsePagination(r)
	devices, total, err := h.devices.List(r.Context(), p.Limit, p.Offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if devices == nil {
		devices = []model.Device{}
	}
	writeList(w, total, devices)
}

// GET /api/devices/connected
func (h *DeviceHandler) Connected(w http.ResponseWriter, r *http.Request) {
	ids := h.sessions.ListConnected()
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":     len(ids),
		"deviceIds": ids,
	})
}

// GET /api/devices/{id}
func (h *DeviceHandler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.devices.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// DELETE /api/devices/{id}
func (h *DeviceHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.devices.Deactivate(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventDeviceDeactivate,
		DeviceID: id,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
