package gateway

import (
	"strconv"

	"github.com/TheRockettek/snowflake"
)

// parseSnowflake validates a Discord ID string is a well-formed uint64
// before it is attached to an outgoing envelope. An empty or malformed ID
// degrades to the raw string rather than dropping the event: a bad ID
// from Discord shouldn't stop the rest of the payload from being
// forwarded.
func parseSnowflake(raw string) string {
	if raw == "" {
		return raw
	}

	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return raw
	}

	return snowflakeString(snowflake.ID(value))
}

// snowflakeString renders a snowflake.ID the way this system's wire
// format expects IDs: as a decimal string, never a JSON number (Discord
// IDs exceed float64's safe integer range).
func snowflakeString(id snowflake.ID) string {
	return strconv.FormatUint(uint64(id), 10)
}
