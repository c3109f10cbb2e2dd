package domain

import (
	"regexp"
	"strings"
	"time"
)

// InboundMessage is one received short message, assembled from all of its
// fragments and normalized.
type InboundMessage struct {
	Sender     string    `json:"sender"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Fragment is one raw part of an inbound message as delivered by the source.
type Fragment struct {
	Sender string `json:"sender,omitempty"`
	Body   string `json:"body"`
}

var blankRuns = regexp.MustCompile(`\n{2,}`)

// Normalize strips carriage returns, collapses runs of newlines into one and
// trims surrounding whitespace. Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = blankRuns.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}

// BuildInbound concatenates fragments in order and normalizes the result.
// The last non-empty fragment sender wins.
func BuildInbound(fragments []Fragment, receivedAt time.Time) InboundMessage {
	var sb strings.Builder
	var sender string
	for _, f := range fragments {
		if f.Sender != "" {
			sender = f.Sender
		}
		sb.WriteString(f.Body)
	}
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}
	return InboundMessage{
		Sender:     sender,
		Body:       Normalize(sb.String()),
		ReceivedAt: receivedAt,
	}
}

// ForwardContent renders the text delivered to every channel: an origin line
// followed by the normalized body, separated by a single newline.
func ForwardContent(prefix string, msg InboundMessage) string {
	return prefix + msg.Sender + "\n" + msg.Body
}
