package gateway

import "strings"

// Stream names this system declares at startup. ELIGIBILITY is reserved
// for a future consumer; no route in RouteEvent targets it.
const (
	StreamCommands    = "COMMANDS"
	StreamEvents      = "EVENTS"
	StreamEligibility = "ELIGIBILITY"
)

var staticSubjects = map[string]string{
	"interaction.create": "commands.interaction",
	"guild.join":          "events.guild.join",
	"guild.leave":         "events.guild.leave",
	"guild.update":        "events.guild.update",
	"member.join":         "events.member.join",
	"member.leave":        "events.member.leave",
	"member.update":       "events.member.update",
}

// RouteEvent maps an envelope's event_type to the broker subject it
// should be published under. Unrecognised types fall back to
// events.<type with '.' replaced by '_'>, so every event type has a home
// stream even if it isn't one this system specifically serializes.
func RouteEvent(eventType string) string {
	if subject, ok := staticSubjects[eventType]; ok {
		return subject
	}

	return "events." + strings.ReplaceAll(eventType, ".", "_")
}
