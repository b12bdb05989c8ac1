package core

import "time"

// Message is the domain model for a chat message.
type Message struct {
	Author string
	Body   string
	SentAt time.Time
}
