package core

// ConnID is a stable handle for an admitted connection. Handles are never
// reused, so a stale handle simply misses.
type ConnID uint64

// noConn excludes nobody from a broadcast.
const noConn ConnID = 0

// Registry is the set of admitted connections and the fan-out target for
// every broadcast. It is owned by the hub goroutine and is not safe for
// concurrent use on its own.
type Registry struct {
	next    ConnID
	clients map[ConnID]*Client
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[ConnID]*Client)}
}

// Admit registers c under identity and returns its new handle.
func (r *Registry) Admit(c *Client, identity string) ConnID {
	r.next++
	id := r.next
	c.admit(id, identity)
	r.clients[id] = c
	return id
}

// Remove deregisters a handle. Removing an unknown or already removed
// handle is a no-op and reports false.
func (r *Registry) Remove(id ConnID) (*Client, bool) {
	c, ok := r.clients[id]
	if !ok {
		return nil, false
	}
	delete(r.clients, id)
	return c, true
}

// Get looks up a live handle.
func (r *Registry) Get(id ConnID) (*Client, bool) {
	c, ok := r.clients[id]
	return c, ok
}

// Len returns the number of admitted connections.
func (r *Registry) Len() int {
	return len(r.clients)
}

// Send delivers ev to one connection. A removed handle is a silent no-op;
// false means the connection exists but its queue is full.
func (r *Registry) Send(id ConnID, ev *Event) bool {
	c, ok := r.clients[id]
	if !ok {
		return true
	}
	return c.deliver(ev)
}

// Broadcast delivers ev to every admitted connection except the one
// addressed by except, and returns the handles whose queue was full.
func (r *Registry) Broadcast(ev *Event, except ConnID) []ConnID {
	var full []ConnID
	for id, c := range r.clients {
		if id == except {
			continue
		}
		if !c.deliver(ev) {
			full = append(full, id)
		}
	}
	return full
}

// Each calls fn for every admitted connection.
func (r *Registry) Each(fn func(ConnID, *Client)) {
	for id, c := range r.clients {
		fn(id, c)
	}
}
