package notify

import "sync"

// Event is one frame on a trip's live notification stream.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

const subscriberBuffer = 16

// Bus is a per-trip broadcast channel registry. Channels are created lazily on
// first publish or first subscribe and retained for the process lifetime;
// publishing with no subscribers is a no-op and never blocks.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe registers a listener for tripID. Only events published after the
// call are delivered; history is not replayed. The returned cancel func must
// be called when the listener goes away.
func (b *Bus) Subscribe(tripID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	set, ok := b.subs[tripID]
	if !ok {
		set = make(map[chan Event]struct{})
		b.subs[tripID] = set
	}
	set[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if set, ok := b.subs[tripID]; ok {
			if _, live := set[ch]; live {
				delete(set, ch)
				close(ch)
			}
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish broadcasts ev to every current subscriber of tripID. A subscriber
// that cannot keep up has the frame dropped rather than blocking the caller.
func (b *Bus) Publish(tripID string, ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[tripID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers reports the current listener count for tripID.
func (b *Bus) Subscribers(tripID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[tripID])
}
