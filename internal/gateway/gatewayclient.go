package gateway

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/TheRockettek/czlib"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"golang.org/x/xerrors"
	"nhooyr.io/websocket"
)

const (
	discordGatewayURL     = "wss://gateway.discord.gg/?v=10&encoding=json&compress=zlib-stream"
	websocketReadLimit    = 512 << 20
	gatewayConnectTimeout = 10 * time.Second
	identifyRatelimit     = 5500 * time.Millisecond
)

// gatewayOp mirrors the Discord gateway opcode space this client needs to
// understand. Incoming dispatch, hello, heartbeat ack, invalid-session, and
// reconnect payloads are handled; a heartbeat request from the gateway is
// ignored, and heartbeats go out only on the regular interval.
type gatewayOp int

const (
	opDispatch gatewayOp = iota
	opHeartbeat
	opIdentify
	opStatusUpdate
	opVoiceStateUpdate
	_
	opResume
	opReconnect
	opRequestGuildMembers
	opInvalidSession
	opHello
	opHeartbeatACK
)

type gatewayPayload struct {
	Op       gatewayOp           `json:"op"`
	Data     jsoniter.RawMessage `json:"d"`
	Sequence int64               `json:"s,omitempty"`
	Type     string              `json:"t,omitempty"`
}

// fatalCloseError wraps a websocket close code Discord sends when the
// session cannot be continued (bad token, invalid shard, etc). It is the
// FatalError this package's circuit breaker checks for.
type fatalCloseError struct {
	Code websocket.StatusCode
	Err  error
}

func (e *fatalCloseError) Error() string {
	return fmt.Sprintf("gateway closed with fatal code %d: %s", e.Code, e.Err)
}

func (e *fatalCloseError) Fatal() bool { return true }

func (e *fatalCloseError) Unwrap() error { return e.Err }

// Discord close codes that mean "do not reconnect with this token/shard
// configuration", matching the set the teacher treats as unrecoverable.
var fatalCloseCodes = map[websocket.StatusCode]bool{
	4004: true, // authentication failed
	4010: true, // invalid shard
	4011: true, // sharding required
	4012: true, // invalid API version
	4013: true, // invalid intents
	4014: true, // disallowed intents
}

// DiscordShard is the concrete GatewayShard backed by a real websocket
// connection to the Discord gateway. It owns its own heartbeat loop.
type DiscordShard struct {
	id      uint32
	token   string
	intents uint64
	total   uint64
	logger  zerolog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	seq     atomic.Int64
	session string

	heartbeatInterval time.Duration
	lastAckMu         sync.Mutex
	lastAck           time.Time

	events chan Event
	errs   chan error
}

// NewDiscordShard builds a shard client for the given ID. It does not
// connect until Connect is called.
func NewDiscordShard(id uint32, token string, intents, totalShards uint64, logger zerolog.Logger) *DiscordShard {
	return &DiscordShard{
		id:      id,
		token:   token,
		intents: intents,
		total:   totalShards,
		logger:  logger.With().Uint32("shard_id", id).Logger(),
		events:  make(chan Event, 64),
		errs:    make(chan error, 1),
	}
}

func (d *DiscordShard) ID() uint32 { return d.id }

// Connect dials the gateway, waits for Hello, starts the heartbeat loop,
// and identifies (or resumes, if a prior session is known).
func (d *DiscordShard) Connect(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, gatewayConnectTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, discordGatewayURL, nil)
	if err != nil {
		return xerrors.Errorf("dial gateway: %w", err)
	}

	conn.SetReadLimit(websocketReadLimit)

	d.mu.Lock()
	d.conn = conn
	d.mu.Unlock()

	go d.readLoop(ctx)

	hello, err := d.awaitHello(ctx)
	if err != nil {
		return err
	}

	d.heartbeatInterval = hello
	go d.heartbeatLoop(ctx)

	if d.session != "" {
		return d.resume(ctx)
	}

	return d.identify(ctx)
}

func (d *DiscordShard) awaitHello(ctx context.Context) (time.Duration, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case err := <-d.errs:
		return 0, err
	case ev := <-d.events:
		hello, ok := ev.(*helloEvent)
		if !ok {
			return 0, xerrors.Errorf("expected hello, got %T", ev)
		}

		return hello.Interval, nil
	}
}

// helloEvent is internal to this file. awaitHello consumes it during
// Connect; NextEvent does not filter it, and SerializeEvent drops it like
// any other type it does not know.
type helloEvent struct {
	Interval time.Duration
}

func (*helloEvent) isEvent() {}

func (d *DiscordShard) readLoop(ctx context.Context) {
	for {
		d.mu.Lock()
		conn := d.conn
		d.mu.Unlock()

		if conn == nil {
			return
		}

		mt, buf, err := conn.Read(ctx)
		if err != nil {
			var closeErr websocket.CloseError
			if xerrors.As(err, &closeErr) && fatalCloseCodes[closeErr.Code] {
				d.errs <- &fatalCloseError{Code: closeErr.Code, Err: err}

				return
			}

			d.errs <- xerrors.Errorf("read: %w", err)

			return
		}

		if mt == websocket.MessageBinary {
			buf, err = czlib.Decompress(buf)
			if err != nil {
				d.errs <- xerrors.Errorf("decompress: %w", err)

				return
			}
		}

		payload, err := decodePayload(buf)
		if err != nil {
			d.logger.Warn().Err(err).Msg("failed to decode gateway payload")

			continue
		}

		d.seq.Store(payload.Sequence)

		if ev := d.translate(payload); ev != nil {
			d.events <- ev
		}
	}
}

func (d *DiscordShard) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(d.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.sendHeartbeat(ctx); err != nil {
				d.errs <- xerrors.Errorf("heartbeat: %w", err)

				return
			}
		}
	}
}

func (d *DiscordShard) sendHeartbeat(ctx context.Context) error {
	return d.send(ctx, opHeartbeat, d.seq.Load())
}

func (d *DiscordShard) identify(ctx context.Context) error {
	// Discord allows one IDENTIFY per max_concurrency bucket every five
	// seconds; a flat sleep here is the simple, single-shard-process
	// version of the bucket wait the teacher's rate limiter implements
	// across a whole ShardGroup.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(identifyRatelimit):
	}

	payload := map[string]interface{}{
		"token": d.token,
		"properties": map[string]string{
			"os":      "linux",
			"browser": "loa-freeside",
			"device":  "loa-freeside",
		},
		"compress": true,
		"shard":    [2]int{int(d.id), int(d.total)},
		"intents":  d.intents,
	}

	return d.send(ctx, opIdentify, payload)
}

func (d *DiscordShard) resume(ctx context.Context) error {
	payload := map[string]interface{}{
		"token":      d.token,
		"session_id": d.session,
		"seq":        d.seq.Load(),
	}

	return d.send(ctx, opResume, payload)
}

func (d *DiscordShard) send(ctx context.Context, op gatewayOp, data interface{}) error {
	d.mu.Lock()
	conn := d.conn
	d.mu.Unlock()

	if conn == nil {
		return xerrors.Errorf("send: no active connection")
	}

	body, err := json.Marshal(map[string]interface{}{"op": op, "d": data})
	if err != nil {
		return xerrors.Errorf("send marshal: %w", err)
	}

	return conn.Write(ctx, websocket.MessageText, body)
}

// NextEvent blocks until the next public event or error is available.
func (d *DiscordShard) NextEvent(ctx context.Context) (Event, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-d.errs:
		return nil, err
	case ev := <-d.events:
		return ev, nil
	}
}

// Close tears down the websocket connection.
func (d *DiscordShard) Close(ctx context.Context) error {
	d.mu.Lock()
	conn := d.conn
	d.conn = nil
	d.mu.Unlock()

	if conn == nil {
		return nil
	}

	return conn.Close(websocket.StatusNormalClosure, "")
}

func decodePayload(buf []byte) (*gatewayPayload, error) {
	var p gatewayPayload
	if err := json.Unmarshal(buf, &p); err != nil {
		return nil, err
	}

	return &p, nil
}

// translate converts a raw gateway payload into the public Event set.
// Dispatch sub-types this system doesn't serialize (presence updates,
// typing, voice state, etc.) yield nil and are dropped silently.
func (d *DiscordShard) translate(p *gatewayPayload) Event {
	switch p.Op {
	case opHello:
		var body struct {
			HeartbeatInterval int64 `json:"heartbeat_interval"`
		}

		if err := json.Unmarshal(p.Data, &body); err != nil {
			return nil
		}

		return &helloEvent{Interval: time.Duration(body.HeartbeatInterval) * time.Millisecond}
	case opHeartbeatACK:
		d.lastAckMu.Lock()
		d.lastAck = time.Now().UTC()
		d.lastAckMu.Unlock()

		return &HeartbeatAckEvent{}
	case opInvalidSession:
		resumable := false
		_ = json.Unmarshal(p.Data, &resumable)

		if !resumable {
			d.session = ""
			d.seq.Store(0)
		}
		// Not fatal: the circuit breaker's normal error accounting
		// covers a shard that keeps getting its session invalidated.
		d.errs <- xerrors.Errorf("invalid session (resumable=%t)", resumable)

		return nil
	case opReconnect:
		d.errs <- xerrors.Errorf("gateway requested reconnect")

		return nil
	case opDispatch:
		return d.translateDispatch(p)
	default:
		return nil
	}
}

func (d *DiscordShard) translateDispatch(p *gatewayPayload) Event {
	switch p.Type {
	case "READY":
		var body struct {
			SessionID string `json:"session_id"`
			Guilds    []struct {
				ID string `json:"id"`
			} `json:"guilds"`
		}

		if err := json.Unmarshal(p.Data, &body); err != nil {
			return nil
		}

		d.session = body.SessionID

		ids := make([]string, len(body.Guilds))
		for i, g := range body.Guilds {
			ids[i] = g.ID
		}

		return &ReadyEvent{Guilds: ids}
	case "RESUMED":
		return &ResumedEvent{}
	case "GUILD_CREATE":
		var body struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			OwnerID     string `json:"owner_id"`
			MemberCount int    `json:"member_count"`
		}

		if err := json.Unmarshal(p.Data, &body); err != nil {
			return nil
		}

		return &GuildCreateEvent{GuildID: body.ID, Name: body.Name, OwnerID: body.OwnerID, MemberCount: body.MemberCount}
	case "GUILD_DELETE":
		var body struct {
			ID          string `json:"id"`
			Unavailable bool   `json:"unavailable"`
		}

		if err := json.Unmarshal(p.Data, &body); err != nil {
			return nil
		}

		return &GuildDeleteEvent{GuildID: body.ID, Unavailable: body.Unavailable}
	case "GUILD_MEMBER_ADD":
		var body struct {
			GuildID string `json:"guild_id"`
			User    struct {
				ID            string `json:"id"`
				Username      string `json:"username"`
				Discriminator string `json:"discriminator"`
			} `json:"user"`
		}

		if err := json.Unmarshal(p.Data, &body); err != nil {
			return nil
		}

		return &MemberAddEvent{
			GuildID:       body.GuildID,
			UserID:        body.User.ID,
			Username:      body.User.Username,
			Discriminator: body.User.Discriminator,
		}
	case "GUILD_MEMBER_REMOVE":
		var body struct {
			GuildID string `json:"guild_id"`
			User    struct {
				ID string `json:"id"`
			} `json:"user"`
		}

		if err := json.Unmarshal(p.Data, &body); err != nil {
			return nil
		}

		return &MemberRemoveEvent{GuildID: body.GuildID, UserID: body.User.ID}
	case "GUILD_MEMBER_UPDATE":
		var body struct {
			GuildID string   `json:"guild_id"`
			Roles   []string `json:"roles"`
			Nick    *string  `json:"nick"`
			User    struct {
				ID string `json:"id"`
			} `json:"user"`
		}

		if err := json.Unmarshal(p.Data, &body); err != nil {
			return nil
		}

		return &MemberUpdateEvent{GuildID: body.GuildID, UserID: body.User.ID, Roles: body.Roles, Nick: body.Nick}
	case "INTERACTION_CREATE":
		var body struct {
			ID        string  `json:"id"`
			Type      int     `json:"type"`
			Token     string  `json:"token"`
			GuildID   *string `json:"guild_id"`
			ChannelID *string `json:"channel_id"`
			Member    *struct {
				User struct {
					ID string `json:"id"`
				} `json:"user"`
			} `json:"member"`
		}

		if err := json.Unmarshal(p.Data, &body); err != nil {
			return nil
		}

		var userID *string
		if body.Member != nil {
			userID = &body.Member.User.ID
		}

		return &InteractionCreateEvent{
			InteractionID:   body.ID,
			InteractionType: body.Type,
			Token:           body.Token,
			GuildID:         body.GuildID,
			ChannelID:       body.ChannelID,
			UserID:          userID,
		}
	default:
		return nil
	}
}
