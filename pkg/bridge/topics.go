package bridge

import (
	"fmt"
	"strings"

	"github.com/travigo/corridor/pkg/ctdf"
)

const (
	patternSOS            = "sos/+"
	patternSOSCancel      = "sos/+/cancel"
	patternCaseStatus     = "case/+/status"
	patternCorridorSignal = "corridor/+/signal"
)

var locationPatterns = []string{
	"ambulance/+/location",
	"responder/+/location",
	"victim/+/location",
}

func TopicSOS(incidentID string) string {
	return fmt.Sprintf("sos/%s", incidentID)
}

func TopicSOSCancel(incidentID string) string {
	return fmt.Sprintf("sos/%s/cancel", incidentID)
}

func TopicCaseStatus(incidentID string) string {
	return fmt.Sprintf("case/%s/status", incidentID)
}

func TopicCorridorSignal(incidentID string) string {
	return fmt.Sprintf("corridor/%s/signal", incidentID)
}

func TopicSignalCommand(signalID string) string {
	return fmt.Sprintf("signal/%s/command", signalID)
}

func TopicLocation(entityType ctdf.EntityType, entityID string) string {
	return fmt.Sprintf("%s/%s/location", strings.ToLower(string(entityType)), entityID)
}

// topicLevel returns the n-th slash separated level of topic
func topicLevel(topic string, n int) string {
	levels := strings.Split(topic, "/")
	if n >= len(levels) {
		return ""
	}
	return levels[n]
}
