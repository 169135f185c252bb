package gateway

import (
	"bytes"
	"os"
	"testing"

	"github.com/0xHoneyJar/loa-freeside/structs"
)

// TestGuildJoinFixtureIsByteStable pins the wire format for a guild.join
// envelope against a committed fixture. This is the cross-language
// contract: any field reorder, rename, or null/omission change here would
// break consumers that were not rebuilt with this file.
func TestGuildJoinFixtureIsByteStable(t *testing.T) {
	guildID := "123456789012345678"

	env := &structs.Envelope{
		EventID:   "00000000-0000-4000-8000-000000000001",
		EventType: "guild.join",
		ShardID:   0,
		Timestamp: 1700000000000,
		GuildID:   &guildID,
		ChannelID: nil,
		UserID:    nil,
		Data: structs.GuildJoinData{
			Name:        "Test Guild",
			MemberCount: 42,
			OwnerID:     "111111111111111111",
		},
	}

	got, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	want, err := os.ReadFile("testdata/guild-join.json")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	if !bytes.Equal(got, bytes.TrimRight(want, "\n")) {
		t.Fatalf("envelope bytes do not match fixture:\n got:  %s\n want: %s", got, want)
	}

	if RouteEvent(env.EventType) != "events.guild.join" {
		t.Fatalf("expected guild.join to route to events.guild.join, got %s", RouteEvent(env.EventType))
	}
}
