package services

import "sync"

// publisher fans state snapshots out to subscribers. Every subscriber channel
// holds at most one pending snapshot; an unread snapshot is replaced by a newer
// one so a slow reader never blocks the controller.
type publisher struct {
	mu        sync.Mutex
	delivered uint64
	nextID    int
	subs      map[int]chan State
}

func newPublisher() *publisher {
	return &publisher{subs: make(map[int]chan State)}
}

// subscribe takes the initial snapshot while holding the publisher lock so no
// publication can slip between the snapshot and the registration.
func (p *publisher) subscribe(snapshot func() State) (<-chan State, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan State, 1)
	ch <- snapshot()

	id := p.nextID
	p.nextID++
	p.subs[id] = ch

	var once sync.Once

	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()

			if sub, ok := p.subs[id]; ok {
				delete(p.subs, id)
				close(sub)
			}
		})
	}
}

func (p *publisher) publish(state State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if state.Version <= p.delivered {
		return
	}

	p.delivered = state.Version

	for _, ch := range p.subs {
		select {
		case <-ch:
		default:
		}

		ch <- state
	}
}

func (p *publisher) close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, ch := range p.subs {
		delete(p.subs, id)
		close(ch)
	}
}
