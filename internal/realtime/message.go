package realtime

import (
	"encoding/json"
	"fmt"
)

const (
	TypeRegister     = "register"
	TypeRegistered   = "registered"
	TypeNotification = "notification"

	NotificationKindEmergency = "emergency_alert"
)

// Envelope is the common header of every frame on the wire.
type Envelope struct {
	Type     string `json:"type"`
	DeviceID string `json:"deviceId,omitempty"`
}

type NotificationData struct {
	Type                 string `json:"type"`
	EmergencyID          string `json:"emergencyId"`
	EmergencyNumber      string `json:"emergencyNumber"`
	EmergencyDate        string `json:"emergencyDate"`
	EmergencyKeyword     string `json:"emergencyKeyword"`
	EmergencyDescription string `json:"emergencyDescription"`
	EmergencyLocation    string `json:"emergencyLocation"`
	Groups               string `json:"groups"`
}

type NotificationBody struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// NotificationFrame is the server-to-client push message.
type NotificationFrame struct {
	Type         string           `json:"type"`
	Notification NotificationBody `json:"notification"`
	Data         NotificationData `json:"data"`
}

// Notification is built once per dispatch and never mutated afterwards.
type Notification struct {
	Title string
	Body  string
	Data  NotificationData
}

func (n Notification) Encode() ([]byte, error) {
	return json.Marshal(NotificationFrame{
		Type:         TypeNotification,
		Notification: NotificationBody{Title: n.Title, Body: n.Body},
		Data:         n.Data,
	})
}

func EncodeRegistered(deviceID string) ([]byte, error) {
	return json.Marshal(Envelope{Type: TypeRegistered, DeviceID: deviceID})
}

func EncodeRegister(deviceID string) ([]byte, error) {
	return json.Marshal(Envelope{Type: TypeRegister, DeviceID: deviceID})
}

func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing type")
	}
	return env, nil
}
