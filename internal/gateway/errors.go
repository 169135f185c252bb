package gateway

import (
	"errors"
	"fmt"

	"golang.org/x/xerrors"
)

// Stable metric labels, duplicated here as constants so call sites that
// only need the label (not a constructed error) don't have to build one.
const (
	labelCircuitBroken   = "circuit_broken"
	labelReconnectFailed = "reconnect_failed"
	labelNatsPublish     = "nats_publish"
	labelNatsConnection  = "nats_connection"
	labelSerialization   = "serialization"
	labelConfig          = "config"
	labelShardOverflow   = "shard_overflow"
)

// ErrShardIDOverflow is returned when total_shards does not fit a uint32.
var ErrShardIDOverflow = errors.New("total shards does not fit in 32 bits")

// ErrNoPublisher names the no-publisher condition. No function in this
// package returns it: a shard runner started without a publisher skips
// forwarding rather than treating it as an error.
var ErrNoPublisher = errors.New("no publisher configured")

// ConfigError wraps an invalid or missing configuration value.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Label returns the stable metric label for this error kind.
func (e *ConfigError) Label() string { return labelConfig }

// ShardIDOverflowError is raised when a shard ID or total_shards value
// exceeds the 32-bit range this system is built against.
type ShardIDOverflowError struct {
	Value uint64
}

func (e *ShardIDOverflowError) Error() string {
	return fmt.Sprintf("shard id overflow: %d does not fit in 32 bits", e.Value)
}

func (e *ShardIDOverflowError) Label() string { return labelShardOverflow }

func (e *ShardIDOverflowError) Unwrap() error { return ErrShardIDOverflow }

// ShardCircuitBrokenError is raised when a shard accumulates
// MaxConsecutiveErrors consecutive receive errors without an intervening
// success.
type ShardCircuitBrokenError struct {
	ShardID uint32
	Count   int
	Max     int
}

func (e *ShardCircuitBrokenError) Error() string {
	return fmt.Sprintf("shard %d circuit broken after %d consecutive errors (max %d)", e.ShardID, e.Count, e.Max)
}

func (e *ShardCircuitBrokenError) Label() string { return labelCircuitBroken }

// ShardReconnectFailedError is raised when the gateway client reports a
// receive error that is fatal to the connection (no point retrying).
type ShardReconnectFailedError struct {
	ShardID uint32
	Cause   error
}

func (e *ShardReconnectFailedError) Error() string {
	return fmt.Sprintf("shard %d reconnect failed: %s", e.ShardID, e.Cause)
}

func (e *ShardReconnectFailedError) Label() string { return labelReconnectFailed }

func (e *ShardReconnectFailedError) Unwrap() error { return e.Cause }

// PublishFailedError is raised when a publish to the broker does not
// complete (submit failure or ack failure). It is always recovered by the
// caller; the triggering event is dropped.
type PublishFailedError struct {
	Subject string
	Cause   error
}

func (e *PublishFailedError) Error() string {
	return fmt.Sprintf("publish to %q failed: %s", e.Subject, e.Cause)
}

func (e *PublishFailedError) Label() string { return labelNatsPublish }

func (e *PublishFailedError) Unwrap() error { return e.Cause }

// NatsConnectionError is raised when the initial connection to the broker
// cannot be established.
type NatsConnectionError struct {
	Cause error
}

func (e *NatsConnectionError) Error() string {
	return fmt.Sprintf("nats connection failed: %s", e.Cause)
}

func (e *NatsConnectionError) Label() string { return labelNatsConnection }

func (e *NatsConnectionError) Unwrap() error { return e.Cause }

// SerializationFailedError is raised when an envelope cannot be marshalled
// to bytes prior to publish.
type SerializationFailedError struct {
	EventType string
	ShardID   uint32
	Cause     error
}

func (e *SerializationFailedError) Error() string {
	return fmt.Sprintf("serialize %s for shard %d: %s", e.EventType, e.ShardID, e.Cause)
}

func (e *SerializationFailedError) Label() string { return labelSerialization }

func (e *SerializationFailedError) Unwrap() error { return e.Cause }

// labeled is implemented by every error type above; used by metrics
// recording and by the error-label-uniqueness test.
type labeled interface {
	error
	Label() string
}

var (
	_ labeled = (*ConfigError)(nil)
	_ labeled = (*ShardIDOverflowError)(nil)
	_ labeled = (*ShardCircuitBrokenError)(nil)
	_ labeled = (*ShardReconnectFailedError)(nil)
	_ labeled = (*PublishFailedError)(nil)
	_ labeled = (*NatsConnectionError)(nil)
	_ labeled = (*SerializationFailedError)(nil)
)

// wrapf mirrors the teacher's xerrors.Errorf("...: %w", err) wrapping
// idiom for the handful of call sites that don't need a structured type.
func wrapf(format string, args ...interface{}) error {
	return xerrors.Errorf(format, args...)
}
