package broker

import (
	"context"
	"time"
)

// retransmitJob is one (bytes, recipient) pair to resend, captured under
// the broker lock and then written outside it.
type retransmitJob struct {
	clientID string
	bytes    []byte
}

// pruneAndCollect intersects every InFlightQoS1 entry's pending set, and
// every InFlightQoS2Delivery list entry's pending set, against the live
// client registry — a subscriber that disconnected without acking is
// dropped from the bookkeeping here rather than retried forever — and
// returns one retransmit job per (entry, still-pending subscriber) pair
// that survives.
func (b *Broker) pruneAndCollect() []retransmitJob {
	b.mu.Lock()
	defer b.mu.Unlock()

	var jobs []retransmitJob

	for id, entry := range b.qos1 {
		for clientID := range entry.pending {
			if _, connected := b.clients[clientID]; !connected {
				delete(entry.pending, clientID)
				continue
			}
			jobs = append(jobs, retransmitJob{clientID: clientID, bytes: entry.bytes})
		}
		if len(entry.pending) == 0 {
			delete(b.qos1, id)
		}
	}

	for id, list := range b.qos2Del {
		kept := list[:0]
		for _, entry := range list {
			for clientID := range entry.pending {
				if _, connected := b.clients[clientID]; !connected {
					delete(entry.pending, clientID)
					continue
				}
				jobs = append(jobs, retransmitJob{clientID: clientID, bytes: entry.bytes})
			}
			if len(entry.pending) > 0 {
				kept = append(kept, entry)
			}
		}
		if len(kept) == 0 {
			delete(b.qos2Del, id)
		} else {
			b.qos2Del[id] = kept
		}
	}

	return jobs
}

// RetransmitTick runs one prune-and-resend sweep: every in-flight QoS 1/2
// entry whose pending set has drained (because its subscribers
// disconnected) is dropped, and every surviving entry's stored bytes are
// resent verbatim to each still-pending subscriber's writer. A write
// failure to one subscriber does not abort the sweep for the others —
// that subscriber's own session will eventually clean up its registration.
func (b *Broker) RetransmitTick() {
	for _, job := range b.pruneAndCollect() {
		if _, err := b.DeliverTo(job.clientID, job.bytes); err != nil {
			b.cfg.Logger.Warn("retransmit write failed", "client", job.clientID, "err", err)
		}
	}
}

// RetransmitLoop calls RetransmitTick on a fixed cadence until ctx is
// canceled. There is no backoff or retry cap: a blind 2-second (by
// default) sweep that only stops when ctx is canceled.
func (b *Broker) RetransmitLoop(ctx context.Context) {
	ticker := time.NewTicker(b.cfg.RetransmitInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.RetransmitTick()
		}
	}
}
