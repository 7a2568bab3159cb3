package notify

import (
	"context"
	"fmt"
)

// Event is the payload delivered to every subscriber and sink.
type Event struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Publisher accepts events for asynchronous delivery. Publish never blocks
// and never reports delivery failures to the caller.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// InterventionCreated describes a newly recorded intervention. An empty
// assignee means nobody was assigned.
func InterventionCreated(description, assignee string) Event {
	target := "unassigned"
	if assignee != "" {
		target = "assigned to " + assignee
	}
	return Event{
		Title:   "New intervention",
		Message: fmt.Sprintf("%s (%s)", description, target),
	}
}

// RespondantCount reports the current respondant population.
func RespondantCount(n int) Event {
	return Event{
		Title:   "Respondants",
		Message: fmt.Sprintf("%d respondants registered", n),
	}
}

// Discard drops every event. Used when notifications are not wired.
type Discard struct{}

func (Discard) Publish(context.Context, Event) {}
