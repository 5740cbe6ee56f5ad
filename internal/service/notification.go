package service

import (
	"github.com/alarm-messenger/relay-server-go/internal/model"
	"github.com/alarm-messenger/relay-server-go/internal/realtime"
)

const alertTitlePrefix = "EINSATZ: "

func BuildNotification(e *model.Emergency) realtime.Notification {
	return realtime.Notification{
		Title: alertTitlePrefix + e.Keyword,
		Body:  e.Location + " - " + e.Description,
		Data: realtime.NotificationData{
			Type:                 realtime.NotificationKindEmergency,
			EmergencyID:          e.ID,
			EmergencyNumber:      e.Number,
			EmergencyDate:        e.Date,
			EmergencyKeyword:     e.Keyword,
			EmergencyDescription: e.Description,
			EmergencyLocation:    e.Location,
			Groups:               e.GroupList(),
		},
	}
}
