package gateway

// Event is the closed set of gateway dispatches the shard runner and
// envelope serializer understand. Concrete gateway clients decode the raw
// dispatch payload into one of the types below.
type Event interface {
	isEvent()
}

// ReadyEvent is the first dispatch a shard receives after a successful
// identify. Guilds is the set of guild IDs in the initial ready payload;
// member/guild data for them arrives later as separate dispatches.
type ReadyEvent struct {
	Guilds []string
}

// ResumedEvent confirms a successful session resume.
type ResumedEvent struct{}

// HeartbeatAckEvent confirms the gateway received the last heartbeat.
type HeartbeatAckEvent struct{}

// GuildCreateEvent fires when a guild becomes available to this shard,
// either at startup or after an outage.
type GuildCreateEvent struct {
	GuildID     string
	Name        string
	MemberCount int
	OwnerID     string
}

// GuildDeleteEvent fires when a guild is removed or becomes unavailable.
type GuildDeleteEvent struct {
	GuildID     string
	Unavailable bool
}

// MemberAddEvent fires when a member joins a guild.
type MemberAddEvent struct {
	GuildID       string
	UserID        string
	Username      string
	Discriminator string
}

// MemberRemoveEvent fires when a member leaves a guild.
type MemberRemoveEvent struct {
	GuildID string
	UserID  string
}

// MemberUpdateEvent fires when a member's roles or nickname change.
type MemberUpdateEvent struct {
	GuildID string
	UserID  string
	Roles   []string
	Nick    *string
}

// InteractionCreateEvent fires when a user invokes a slash command,
// button, or other interaction.
type InteractionCreateEvent struct {
	InteractionID   string
	InteractionType int
	Token           string
	GuildID         *string
	ChannelID       *string
	UserID          *string
}

func (*ReadyEvent) isEvent()              {}
func (*ResumedEvent) isEvent()            {}
func (*HeartbeatAckEvent) isEvent()       {}
func (*GuildCreateEvent) isEvent()        {}
func (*GuildDeleteEvent) isEvent()        {}
func (*MemberAddEvent) isEvent()          {}
func (*MemberRemoveEvent) isEvent()       {}
func (*MemberUpdateEvent) isEvent()       {}
func (*InteractionCreateEvent) isEvent()  {}
