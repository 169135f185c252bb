package gateway

import (
	"time"

	"github.com/google/uuid"

	"github.com/0xHoneyJar/loa-freeside/structs"
)

// SerializeEvent maps an incoming gateway Event to the uniform wire
// envelope this system publishes. The second return value is false for
// events that must not be forwarded (heartbeats, hello, Ready, and any
// event type this system does not know about).
func SerializeEvent(ev Event, shardID uint32) (*structs.Envelope, bool) {
	var (
		eventType string
		guildID   *string
		channelID *string
		userID    *string
		data      interface{}
	)

	switch e := ev.(type) {
	case *GuildCreateEvent:
		eventType = "guild.join"
		guildID = strPtr(e.GuildID)
		data = structs.GuildJoinData{
			Name:        e.Name,
			MemberCount: e.MemberCount,
			OwnerID:     e.OwnerID,
		}
	case *GuildDeleteEvent:
		eventType = "guild.leave"
		guildID = strPtr(e.GuildID)
		data = structs.GuildLeaveData{Unavailable: e.Unavailable}
	case *MemberAddEvent:
		eventType = "member.join"
		guildID = strPtr(e.GuildID)
		userID = strPtr(e.UserID)
		data = structs.MemberJoinData{
			Username:      e.Username,
			Discriminator: e.Discriminator,
		}
	case *MemberRemoveEvent:
		eventType = "member.leave"
		guildID = strPtr(e.GuildID)
		userID = strPtr(e.UserID)
		data = nil
	case *MemberUpdateEvent:
		eventType = "member.update"
		guildID = strPtr(e.GuildID)
		userID = strPtr(e.UserID)
		data = structs.MemberUpdateData{Roles: e.Roles, Nick: e.Nick}
	case *InteractionCreateEvent:
		eventType = "interaction.create"
		guildID = normalizePtr(e.GuildID)
		channelID = normalizePtr(e.ChannelID)
		userID = normalizePtr(e.UserID)
		data = structs.InteractionCreateData{
			InteractionID:    e.InteractionID,
			InteractionType:  e.InteractionType,
			InteractionToken: e.Token,
		}
	default:
		// Heartbeats, acks, hello, invalidate-session, reconnect hints,
		// Ready and Resumed are observed by the runner for health and
		// guild-count bookkeeping but are never forwarded.
		return nil, false
	}

	return &structs.Envelope{
		EventID:   uuid.NewString(),
		EventType: eventType,
		ShardID:   shardID,
		Timestamp: time.Now().UTC().UnixMilli(),
		GuildID:   guildID,
		ChannelID: channelID,
		UserID:    userID,
		Data:      data,
	}, true
}

// strPtr normalizes a Discord ID string into the envelope's nullable-ID
// representation, running it through parseSnowflake so a well-formed ID
// reaches the wire format as a plain decimal string; a malformed ID is
// passed through unchanged.
func strPtr(s string) *string {
	if s == "" {
		return nil
	}

	v := parseSnowflake(s)

	return &v
}

// normalizePtr applies strPtr's normalization to an already-nullable ID.
func normalizePtr(s *string) *string {
	if s == nil {
		return nil
	}

	return strPtr(*s)
}
