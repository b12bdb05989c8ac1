package core

import (
	"sort"

	"github.com/samber/lo"
)

// Presence tracks live connections per identity and who is typing.
// Owned by the hub goroutine.
type Presence struct {
	active int
	conns  map[string]int
	typing map[string]struct{}
}

// NewPresence constructs empty presence state.
func NewPresence() *Presence {
	return &Presence{
		conns:  make(map[string]int),
		typing: make(map[string]struct{}),
	}
}

// Connect counts one more connection for identity and returns the active count.
func (p *Presence) Connect(identity string) int {
	p.active++
	p.conns[identity]++
	return p.active
}

// Disconnect counts one connection less for identity. It reports whether
// that was the identity's last connection. Unknown identities are ignored,
// so the count never goes negative.
func (p *Presence) Disconnect(identity string) (last bool) {
	n, ok := p.conns[identity]
	if !ok {
		return false
	}
	p.active--
	if n <= 1 {
		delete(p.conns, identity)
		return true
	}
	p.conns[identity] = n - 1
	return false
}

// SetTyping adds or removes identity from the typing set and reports
// whether the set changed.
func (p *Presence) SetTyping(identity string, typing bool) bool {
	_, was := p.typing[identity]
	if typing == was {
		return false
	}
	if typing {
		p.typing[identity] = struct{}{}
	} else {
		delete(p.typing, identity)
	}
	return true
}

// Active is the number of live connections.
func (p *Presence) Active() int {
	return p.active
}

// Typing returns the typing identities, sorted.
func (p *Presence) Typing() []string {
	return sorted(lo.Keys(p.typing))
}

// Online returns identities with at least one connection, sorted.
func (p *Presence) Online() []string {
	return sorted(lo.Keys(p.conns))
}

// Reset forgets everything, e.g. after every connection was force closed.
func (p *Presence) Reset() {
	p.active = 0
	clear(p.conns)
	clear(p.typing)
}

func sorted(s []string) []string {
	sort.Strings(s)
	return s
}
