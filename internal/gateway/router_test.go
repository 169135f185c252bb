package gateway

import "testing"

func TestRouteEvent(t *testing.T) {
	cases := map[string]string{
		"interaction.create": "commands.interaction",
		"guild.join":         "events.guild.join",
		"guild.leave":        "events.guild.leave",
		"guild.update":       "events.guild.update",
		"member.join":        "events.member.join",
		"member.leave":       "events.member.leave",
		"member.update":      "events.member.update",
		"a.b.c":              "events.a_b_c",
		"unknown":            "events.unknown",
	}

	for eventType, want := range cases {
		if got := RouteEvent(eventType); got != want {
			t.Errorf("RouteEvent(%q) = %q, want %q", eventType, got, want)
		}
	}
}
