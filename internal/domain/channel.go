package domain

import "strings"

// ChannelKind is the closed set of forwarding channel variants.
type ChannelKind string

const (
	KindWebhook ChannelKind = "webhook"
	KindSMS     ChannelKind = "sms"
)

// legacyKinds maps persisted kind names (including the historical per-vendor
// webhook names) onto the two supported variants.
var legacyKinds = map[string]ChannelKind{
	"webhook":         KindWebhook,
	"wechat":          KindWebhook,
	"dingtalk":        KindWebhook,
	"generic_webhook": KindWebhook,
	"sms":             KindSMS,
}

// ParseChannelKind resolves a stored kind name. Unknown or empty names fall
// back to KindWebhook rather than failing.
func ParseChannelKind(s string) ChannelKind {
	if k, ok := legacyKinds[strings.ToLower(strings.TrimSpace(s))]; ok {
		return k
	}
	return KindWebhook
}

// Valid reports whether k is one of the supported variants.
func (k ChannelKind) Valid() bool {
	return k == KindWebhook || k == KindSMS
}

// Channel is a configured forwarding destination.
type Channel struct {
	ID     string      `json:"id" yaml:"id"`
	Name   string      `json:"name" yaml:"name"`
	Kind   ChannelKind `json:"type" yaml:"type"`
	Target string      `json:"target" yaml:"target"` // URL for webhook, phone number for SMS
	SIM    string      `json:"simId,omitempty" yaml:"simId,omitempty"`
}

// Label returns the display name, falling back to the target.
func (c Channel) Label() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Target
}

// Rule (a keyword config) binds a keyword filter to one channel.
// An empty keyword matches every message.
type Rule struct {
	ID        string `json:"id" yaml:"id"`
	Keyword   string `json:"keyword" yaml:"keyword"`
	ChannelID string `json:"channelId" yaml:"channelId"`
}

// MatchAll reports whether the rule matches every message.
func (r Rule) MatchAll() bool {
	return strings.TrimSpace(r.Keyword) == ""
}
