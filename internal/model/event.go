package model

import "github.com/google/uuid"

// Event is a domain event written to the outbox together with the state
// change that produced it.
type Event struct {
	ID            uuid.UUID
	RoutingKey    string
	AggregateType string
	AggregateID   string
	Payload       any
}
