package notify

import (
	"fmt"
	"time"

	"github.com/travigo/corridor/pkg/ctdf"
	"github.com/travigo/corridor/pkg/util"
)

const QueueName = "notify-queue"

// Messages are also sent as a single SMS
const maxMessageLength = 160

// Notification is what the SMS and push services pick up from the queue
type Notification struct {
	IncidentID string               `json:"accidentId"`
	EntityID   string               `json:"entityId,omitempty"`
	Status     ctdf.CaseStatusValue `json:"status"`
	Hospital   *ctdf.Hospital       `json:"hospital,omitempty"`
	Timestamp  time.Time            `json:"timestamp"`

	Title   string `json:"title"`
	Message string `json:"message"`
}

func NewNotification(status ctdf.CaseStatus) Notification {
	notification := Notification{
		IncidentID: status.IncidentID,
		EntityID:   status.EntityID,
		Status:     status.Status,
		Hospital:   status.Hospital,
		Timestamp:  status.Timestamp,
	}

	hospitalName := "the nearest hospital"
	if status.Hospital != nil && status.Hospital.Name != "" {
		hospitalName = status.Hospital.Name
	}

	switch status.Status {
	case ctdf.CaseStatusArrived:
		notification.Title = "Ambulance on scene"
		notification.Message = fmt.Sprintf("Ambulance %s has reached incident %s and will take the patient to %s.", status.EntityID, status.IncidentID, hospitalName)
	case ctdf.CaseStatusToHospital:
		notification.Title = "Patient in transit"
		notification.Message = fmt.Sprintf("Ambulance %s is on the way to %s.", status.EntityID, hospitalName)
	case ctdf.CaseStatusAtHospital:
		notification.Title = "Arrived at hospital"
		notification.Message = fmt.Sprintf("Ambulance %s has arrived at %s.", status.EntityID, hospitalName)
	case ctdf.CaseStatusHospitalSet:
		notification.Title = "Hospital assigned"
		notification.Message = fmt.Sprintf("Incident %s will be received by %s.", status.IncidentID, hospitalName)
	case ctdf.CaseStatusCancelled:
		notification.Title = "Incident cancelled"
		notification.Message = fmt.Sprintf("Incident %s has been cancelled.", status.IncidentID)
	default:
		notification.Title = "Incident update"
		notification.Message = fmt.Sprintf("Incident %s is now %s.", status.IncidentID, status.Status)
	}

	notification.Message = util.TrimString(notification.Message, maxMessageLength)

	return notification
}
