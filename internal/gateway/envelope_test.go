package gateway

import (
	"strings"
	"testing"
)

func TestSerializeEventDropsUnforwardedTypes(t *testing.T) {
	dropped := []Event{
		&ReadyEvent{},
		&ResumedEvent{},
		&HeartbeatAckEvent{},
	}

	for _, ev := range dropped {
		if _, ok := SerializeEvent(ev, 0); ok {
			t.Errorf("expected %T to be dropped", ev)
		}
	}
}

func TestSerializeEventGuildJoin(t *testing.T) {
	env, ok := SerializeEvent(&GuildCreateEvent{
		GuildID:     "123456789012345678",
		Name:        "Test Guild",
		MemberCount: 42,
		OwnerID:     "111111111111111111",
	}, 0)
	if !ok {
		t.Fatal("expected guild.join to be forwarded")
	}

	if env.EventType != "guild.join" {
		t.Errorf("event_type = %q, want guild.join", env.EventType)
	}

	if env.GuildID == nil || *env.GuildID != "123456789012345678" {
		t.Errorf("guild_id = %v, want 123456789012345678", env.GuildID)
	}

	if env.ChannelID != nil || env.UserID != nil {
		t.Errorf("expected channel_id and user_id to be nil for guild.join")
	}
}

func TestSerializeEventInteractionUsesTokenFieldName(t *testing.T) {
	guildID := "1"
	env, ok := SerializeEvent(&InteractionCreateEvent{
		InteractionID:   "999",
		InteractionType: 2,
		Token:           "secret-token",
		GuildID:         &guildID,
	}, 0)
	if !ok {
		t.Fatal("expected interaction.create to be forwarded")
	}

	payload, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	body := string(payload)

	if !strings.Contains(body, `"interaction_token":"secret-token"`) {
		t.Fatalf("expected data.interaction_token in payload, got %s", body)
	}

	if strings.Contains(body, `"token":`) {
		t.Fatalf("expected no bare \"token\" field in payload, got %s", body)
	}
}

func TestSerializeEventUnknownEventIsNotForwarded(t *testing.T) {
	type unknownEvent struct{ Event }

	if _, ok := SerializeEvent(unknownEvent{}, 0); ok {
		t.Fatal("expected an unrecognised event to be dropped")
	}
}
