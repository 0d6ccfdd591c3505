package broker

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/axmq/broker/packet"
	"github.com/axmq/broker/store"
)

// OverflowEntry is what gets spilled to durable storage when a client's
// in-flight QoS registries are full — enough to re-encode and resend the
// PUBLISH once the client catches up and the entry is evicted back in.
type OverflowEntry struct {
	Topic   string
	Payload []byte
}

func overflowKey(clientID string, id packet.PacketID) string {
	return clientID + ":" + hex.EncodeToString(id[:])
}

// PebbleOverflow spills over-capacity QoS 1/2 entries to an on-disk Pebble
// database instead of rejecting them outright. It is opt-in: a broker with
// a zero Config.MaxInFlightPerClient never touches it.
type PebbleOverflow struct {
	store *store.PebbleStore[OverflowEntry]
}

// NewPebbleOverflow opens (or creates) a Pebble database at path to back
// the overflow spill.
func NewPebbleOverflow(path string) (*PebbleOverflow, error) {
	s, err := store.NewPebbleStore[OverflowEntry](store.PebbleStoreConfig{Path: path, Prefix: "qos-overflow:"})
	if err != nil {
		return nil, err
	}
	return &PebbleOverflow{store: s}, nil
}

// Spill saves the entry under a key scoped to the client and packet ID so
// Evict can retrieve the same entry after the registry has room again.
func (o *PebbleOverflow) Spill(clientID, topic string, id packet.PacketID, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return o.store.Save(ctx, overflowKey(clientID, id), OverflowEntry{Topic: topic, Payload: payload})
}

// Evict retrieves and removes a previously spilled entry, for replay once
// the client's in-flight registry has room again.
func (o *PebbleOverflow) Evict(clientID string, id packet.PacketID) (OverflowEntry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	key := overflowKey(clientID, id)
	entry, err := o.store.Load(ctx, key)
	if err != nil {
		return OverflowEntry{}, err
	}
	if err := o.store.Delete(ctx, key); err != nil {
		return OverflowEntry{}, err
	}
	return entry, nil
}

// Close releases the underlying Pebble database.
func (o *PebbleOverflow) Close() error {
	return o.store.Close()
}

// RedisFleetAdmission caps the total number of in-flight QoS 1/2 entries
// across an entire fleet of broker processes sharing one Redis instance,
// on top of (not instead of) each broker's own per-client cap. It is the
// multi-node answer to the same admission question Config.MaxInFlightPerClient
// answers for a single process.
type RedisFleetAdmission struct {
	store *store.RedisStore[int64]
	limit int64
}

// NewRedisFleetAdmission connects to addr and enforces a fleet-wide cap of
// limit outstanding QoS 1/2 entries.
func NewRedisFleetAdmission(addr string, limit int64) (*RedisFleetAdmission, error) {
	s, err := store.NewRedisStore[int64](store.RedisStoreConfig{Addr: addr, Prefix: "qos-fleet:"})
	if err != nil {
		return nil, err
	}
	return &RedisFleetAdmission{store: s, limit: limit}, nil
}

// TryAdmit increments the shared counter and reports whether the fleet is
// still under its limit. Call Release on the corresponding ack.
func (r *RedisFleetAdmission) TryAdmit(ctx context.Context) (bool, error) {
	count, err := r.store.Load(ctx, "inflight")
	if err != nil && err != store.ErrNotFound {
		return false, err
	}
	if count >= r.limit {
		return false, nil
	}
	return true, r.store.Save(ctx, "inflight", count+1)
}

// Release decrements the shared counter on ack or eviction.
func (r *RedisFleetAdmission) Release(ctx context.Context) error {
	count, err := r.store.Load(ctx, "inflight")
	if err != nil {
		if err == store.ErrNotFound {
			return nil
		}
		return err
	}
	if count <= 0 {
		return nil
	}
	return r.store.Save(ctx, "inflight", count-1)
}

// Close releases the underlying Redis client.
func (r *RedisFleetAdmission) Close() error {
	return r.store.Close()
}

// MemoryOverflow is the zero-dependency default Overflow: it spills
// over-capacity QoS 1/2 entries into an in-process map instead of Pebble or
// Redis. Entries do not survive a process restart, unlike PebbleOverflow,
// so it suits single-node brokers and tests that want admission-capacity
// behavior exercised without standing up external storage.
type MemoryOverflow struct {
	store *store.MemoryStore[OverflowEntry]
}

// NewMemoryOverflow constructs an in-memory overflow spill.
func NewMemoryOverflow() *MemoryOverflow {
	return &MemoryOverflow{store: store.NewMemoryStore[OverflowEntry]()}
}

// Spill saves the entry under a key scoped to the client and packet ID so
// Evict can retrieve the same entry after the registry has room again.
func (o *MemoryOverflow) Spill(clientID, topic string, id packet.PacketID, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return o.store.Save(ctx, overflowKey(clientID, id), OverflowEntry{Topic: topic, Payload: payload})
}

// Evict retrieves and removes a previously spilled entry, for replay once
// the client's in-flight registry has room again.
func (o *MemoryOverflow) Evict(clientID string, id packet.PacketID) (OverflowEntry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	key := overflowKey(clientID, id)
	entry, err := o.store.Load(ctx, key)
	if err != nil {
		return OverflowEntry{}, err
	}
	if err := o.store.Delete(ctx, key); err != nil {
		return OverflowEntry{}, err
	}
	return entry, nil
}

// Close releases the underlying in-memory store.
func (o *MemoryOverflow) Close() error {
	return o.store.Close()
}
