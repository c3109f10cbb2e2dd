package routing

import (
	"strings"

	"github.com/soyeahso/smsrelay/internal/domain"
)

// Pair is one matched rule together with the channel it resolves to.
type Pair struct {
	Channel domain.Channel
	Rule    domain.Rule
}

// Match returns the (channel, rule) pairs whose rule matches msg, in rule
// order. An empty keyword matches everything; otherwise the trimmed keyword
// must occur in the body, ignoring case. Rules whose channel is missing from
// channels are skipped. Several rules may resolve to the same channel and
// each produces its own pair.
func Match(msg domain.InboundMessage, channels []domain.Channel, rules []domain.Rule) []Pair {
	if len(channels) == 0 || len(rules) == 0 {
		return nil
	}

	byID := make(map[string]domain.Channel, len(channels))
	for _, ch := range channels {
		if _, dup := byID[ch.ID]; !dup {
			byID[ch.ID] = ch
		}
	}

	body := strings.ToLower(msg.Body)
	seen := make(map[string]bool, len(rules))
	var pairs []Pair
	for _, rule := range rules {
		if !Matches(rule, body) {
			continue
		}
		ch, ok := byID[rule.ChannelID]
		if !ok {
			continue
		}
		if rule.ID != "" {
			key := rule.ID + "\x00" + ch.ID
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		pairs = append(pairs, Pair{Channel: ch, Rule: rule})
	}
	return pairs
}

// Matches reports whether rule accepts a body that has already been
// lower-cased.
func Matches(rule domain.Rule, lowerBody string) bool {
	if rule.MatchAll() {
		return true
	}
	kw := strings.ToLower(strings.TrimSpace(rule.Keyword))
	return strings.Contains(lowerBody, kw)
}
