package dispatch

import (
	"context"

	"github.com/set-night/memoirbot/internal/domain"
)

// Event is one inbound chat message.
type Event struct {
	UserID string
	// ChatID is where replies and pushes go.
	ChatID string
	// GroupID is set for messages sent in a group chat.
	GroupID string
	// MessageID is the reply handle of the inbound message.
	MessageID int
	Text      string
	// Image is the object store URL of an uploaded photo.
	Image string
}

// Owner is the owner of files produced for this event.
func (e Event) Owner() domain.Owner {
	if e.GroupID != "" {
		return domain.GroupOwner(e.GroupID)
	}
	return domain.UserOwner(e.UserID)
}

func (e Event) Requester() domain.Requester {
	return domain.Requester{UserID: e.UserID, GroupID: e.GroupID}
}

type Message struct {
	Text    string
	Links   []Link
	Actions []Action
}

// Link is a button that opens a URL.
type Link struct {
	Label string
	URL   string
}

// Action is a button that comes back as a text event carrying Text.
type Action struct {
	Label string
	Text  string
}

// Messenger delivers outbound messages. Reply answers an inbound event and
// falls back to Push when the reply handle is no longer usable.
type Messenger interface {
	Reply(ctx context.Context, ev Event, msg Message) error
	Push(ctx context.Context, chatID string, msg Message) error
}

// Alerter mirrors operational failures to an operator channel.
type Alerter interface {
	LogError(err error, context string)
}
