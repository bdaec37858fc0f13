package notify

import (
	"fmt"
	"strings"
	"time"

	"ecoiq/internal/models"
)

// Format renders the notification for an alert. The content derives only
// from the alert itself; no extra state lookups are required. Subject
// format: "EcoIQ Alert: <SEVERITY> - <message>".
func Format(alert models.Alert, recipient string) Notification {
	return Notification{
		Subject:   fmt.Sprintf("EcoIQ Alert: %s - %s", strings.ToUpper(string(alert.Severity)), alert.Message),
		Body:      formatBody(alert),
		Recipient: recipient,
	}
}

func formatBody(alert models.Alert) string {
	var b strings.Builder

	b.WriteString("<html><body>\n")
	b.WriteString("<h2>EcoIQ Alert Notification</h2>\n")
	fmt.Fprintf(&b, "<h3>%s</h3>\n", alert.Message)
	fmt.Fprintf(&b, "<p><strong>Room:</strong> %s</p>\n", alert.RoomID)
	fmt.Fprintf(&b, "<p><strong>Type:</strong> %s</p>\n", alert.Type)
	fmt.Fprintf(&b, "<p><strong>Severity:</strong> %s</p>\n", alert.Severity)
	fmt.Fprintf(&b, "<p><strong>Time:</strong> %s</p>\n", alert.Timestamp.Format(time.RFC1123))

	if line := detailLine(alert.Details); line != "" {
		fmt.Fprintf(&b, "<p>%s</p>\n", line)
	}

	b.WriteString("<p>Please log in to the EcoIQ Dashboard to acknowledge this alert and take appropriate action.</p>\n")
	b.WriteString("</body></html>")

	return b.String()
}

// detailLine renders the type-specific detail. The switch is exhaustive
// over the closed details variant; a new alert type will not compile past
// the formatter without a case here.
func detailLine(details models.AlertDetails) string {
	switch d := details.(type) {
	case models.ModeChangeDetails:
		return fmt.Sprintf("Mode changed from %s to %s", d.OldMode, d.NewMode)
	case models.SystemFaultDetails:
		return fmt.Sprintf("Fault code: %s", d.FaultCode)
	case models.HighOccupancyDetails:
		return fmt.Sprintf("Current occupancy: %d people", d.Occupancy)
	case models.TemperatureDetails:
		return fmt.Sprintf("Current temperature: %.1f°C", d.Temperature)
	case nil:
		return ""
	default:
		return ""
	}
}
