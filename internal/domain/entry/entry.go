// Package entry defines the envelope stored in every cache tier.
//
// The envelope carries its own expiry because the shared L2 store only
// supports bucket-level TTLs; the authoritative per-entry deadline
// travels with the value.
package entry

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Entry is a cached value plus its lifecycle timestamps.
// Entries are overwritten wholesale, never partially updated.
type Entry struct {
	Value     []byte    `msgpack:"v"`
	StoredAt  time.Time `msgpack:"s"`
	ExpiresAt time.Time `msgpack:"e"`
}

// New stamps value with the given TTL starting at now.
// A zero TTL produces an entry that never expires on its own.
func New(value []byte, ttl time.Duration, now time.Time) Entry {
	e := Entry{Value: value, StoredAt: now}
	if ttl > 0 {
		e.ExpiresAt = now.Add(ttl)
	}
	return e
}

// Expired reports whether the entry must no longer be served.
func (e Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Encode serializes the entry with msgpack.
func (e Entry) Encode() ([]byte, error) {
	data, err := msgpack.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode entry: %w", err)
	}
	return data, nil
}

// Decode deserializes an envelope produced by Encode.
func Decode(data []byte) (Entry, error) {
	var e Entry
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("decode entry: %w", err)
	}
	return e, nil
}
