package mqtt

import "log"

// pending is a serialized MQTT message waiting for the connection to return.
type pending struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// backlog is a fixed-capacity FIFO of messages queued while disconnected.
// When full, the oldest message is overwritten.
// Not safe for concurrent use; RealPublisher guards it with its mutex.
type backlog struct {
	slots   []pending
	next    int // next write position
	size    int
	dropped int // messages overwritten since the last flush
}

func newBacklog(capacity int) *backlog {
	if capacity < 1 {
		capacity = 1
	}
	return &backlog{slots: make([]pending, capacity)}
}

func (b *backlog) add(msg pending) {
	if b.size == len(b.slots) {
		if b.dropped == 0 {
			log.Printf("mqtt: backlog full (%d messages), dropping oldest", len(b.slots))
		}
		b.dropped++
	} else {
		b.size++
	}
	b.slots[b.next] = msg
	b.next = (b.next + 1) % len(b.slots)
}

// take removes and returns every queued message, oldest first.
func (b *backlog) take() []pending {
	if b.size == 0 {
		return nil
	}
	out := make([]pending, 0, b.size)
	first := (b.next - b.size + len(b.slots)) % len(b.slots)
	for i := 0; i < b.size; i++ {
		out = append(out, b.slots[(first+i)%len(b.slots)])
	}
	if b.dropped > 0 {
		log.Printf("mqtt: %d queued messages were dropped while offline", b.dropped)
	}
	*b = backlog{slots: b.slots}
	return out
}

func (b *backlog) len() int {
	return b.size
}
