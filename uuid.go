package cqldata

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

// UUID is a thin wrapper over github.com/google/uuid.UUID to keep the adapters decoupled from the external package.
// Log entry IDs are version 1 (time based) UUIDs, i.e. CQL timeuuid values.
type UUID uuid.UUID

// ParseUUID converts a string to a UUID. It returns an error if the input is not a valid UUID.
func ParseUUID(id string) (UUID, error) {
	u, err := uuid.Parse(id)
	return UUID(u), err
}

// NewUUID returns a new randomly generated UUID. It retries on error with a 1ms backoff up to 10 times
// and panics only if all attempts fail (which should never happen under normal conditions).
func NewUUID() UUID {
	var err error
	for i := 0; i < 10; i++ {
		var id uuid.UUID
		id, err = uuid.NewRandom()
		if err == nil {
			return UUID(id)
		}
		time.Sleep(time.Duration(1 * time.Millisecond))
	}
	panic(err)
}

// NilUUID is the zero-value UUID.
var NilUUID UUID

// IsNil reports whether the UUID equals the zero-value UUID.
func (id UUID) IsNil() bool {
	return bytes.Equal(id[:], NilUUID[:])
}

// String returns the canonical string representation of the UUID.
func (id UUID) String() string {
	return uuid.UUID(id).String()
}

// Time returns the timestamp embedded in a version 1 UUID. For other versions the result is meaningless.
func (id UUID) Time() time.Time {
	sec, nsec := uuid.UUID(id).Time().UnixTime()
	return time.Unix(sec, nsec).UTC()
}

// CompareTime orders two time based UUIDs by their embedded timestamp, then by their bytes.
// This matches how the store orders a timeuuid clustering column.
func (x UUID) CompareTime(y UUID) int {
	tx, ty := uuid.UUID(x).Time(), uuid.UUID(y).Time()
	switch {
	case tx < ty:
		return -1
	case tx > ty:
		return 1
	}
	return bytes.Compare(x[:], y[:])
}

// MarshalText renders the UUID in its canonical form, e.g. in JSON payloads.
func (id UUID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText parses the canonical UUID form.
func (id *UUID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	if err != nil {
		return err
	}
	*id = UUID(u)
	return nil
}
