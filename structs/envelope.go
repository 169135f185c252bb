package structs

// Envelope is the uniform record published to the broker for every
// forwarded gateway event. Field order is part of the wire contract and
// must not change: downstream consumers in other languages depend on it
// being byte-stable.
type Envelope struct {
	EventID   string      `json:"event_id"`
	EventType string      `json:"event_type"`
	ShardID   uint32      `json:"shard_id"`
	Timestamp int64       `json:"timestamp"`
	GuildID   *string     `json:"guild_id"`
	ChannelID *string     `json:"channel_id"`
	UserID    *string     `json:"user_id"`
	Data      interface{} `json:"data"`
}

// GuildJoinData is the data payload for a guild.join event.
type GuildJoinData struct {
	Name        string `json:"name"`
	MemberCount int    `json:"member_count"`
	OwnerID     string `json:"owner_id"`
}

// GuildLeaveData is the data payload for a guild.leave event.
type GuildLeaveData struct {
	Unavailable bool `json:"unavailable"`
}

// MemberJoinData is the data payload for a member.join event.
type MemberJoinData struct {
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
}

// MemberUpdateData is the data payload for a member.update event.
type MemberUpdateData struct {
	Roles []string `json:"roles"`
	Nick  *string  `json:"nick"`
}

// InteractionCreateData is the data payload for an interaction.create event.
type InteractionCreateData struct {
	InteractionID    string `json:"interaction_id"`
	InteractionType  int    `json:"interaction_type"`
	InteractionToken string `json:"interaction_token"`
}
