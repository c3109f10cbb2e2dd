package routing

import (
	"strings"
	"testing"

	"github.com/soyeahso/smsrelay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msgWith(body string) domain.InboundMessage {
	return domain.InboundMessage{Sender: "10086", Body: body}
}

func webhookChannel(id string) domain.Channel {
	return domain.Channel{ID: id, Name: "hook-" + id, Kind: domain.KindWebhook, Target: "https://example.com/" + id}
}

func TestMatch_EmptyKeywordAlwaysMatches(t *testing.T) {
	channels := []domain.Channel{webhookChannel("A")}
	for _, kw := range []string{"", "   ", "\t"} {
		rules := []domain.Rule{{ID: "r1", Keyword: kw, ChannelID: "A"}}
		for _, body := range []string{"hello", "", "anything at all"} {
			pairs := Match(msgWith(body), channels, rules)
			require.Len(t, pairs, 1, "keyword %q body %q", kw, body)
			assert.Equal(t, "A", pairs[0].Channel.ID)
		}
	}
}

func TestMatch_CaseInsensitiveContainment(t *testing.T) {
	channels := []domain.Channel{webhookChannel("B")}

	tests := []struct {
		keyword string
		body    string
		want    bool
	}{
		{"code", "your code is 123", true},
		{"CODE", "your code is 123", true},
		{"code", "YOUR CODE IS 123", true},
		{"CoDe", "yOuR cOdE is 123", true},
		{"  code ", "your code is 123", true},
		{"code", "no match here", false},
		{"验证码", "您的验证码是 1234", true},
		{"bank alert", "Bank  Alert", false},
	}

	for _, tt := range tests {
		t.Run(tt.keyword+"/"+tt.body, func(t *testing.T) {
			rules := []domain.Rule{{ID: "r", Keyword: tt.keyword, ChannelID: "B"}}
			pairs := Match(msgWith(tt.body), channels, rules)
			if tt.want {
				assert.Len(t, pairs, 1)
			} else {
				assert.Empty(t, pairs)
			}
		})
	}
}

func TestMatch_CasePermutationInvariant(t *testing.T) {
	channels := []domain.Channel{webhookChannel("B")}
	body := "Your Verification Code is 998877"
	variants := []string{strings.ToUpper(body), strings.ToLower(body), body}
	keywords := []string{"verification", "VERIFICATION", "Verification"}

	for _, b := range variants {
		for _, kw := range keywords {
			pairs := Match(msgWith(b), channels, []domain.Rule{{ID: "r", Keyword: kw, ChannelID: "B"}})
			assert.Len(t, pairs, 1, "keyword %q body %q", kw, b)
		}
	}
}

func TestMatch_DanglingChannelSkipped(t *testing.T) {
	channels := []domain.Channel{webhookChannel("A")}
	rules := []domain.Rule{
		{ID: "r1", Keyword: "", ChannelID: "deleted"},
		{ID: "r2", Keyword: "", ChannelID: "A"},
	}

	pairs := Match(msgWith("hello"), channels, rules)
	require.Len(t, pairs, 1)
	assert.Equal(t, "r2", pairs[0].Rule.ID)
}

func TestMatch_PreservesRuleOrder(t *testing.T) {
	channels := []domain.Channel{webhookChannel("A"), webhookChannel("B"), webhookChannel("C")}
	rules := []domain.Rule{
		{ID: "r3", Keyword: "x", ChannelID: "C"},
		{ID: "r1", Keyword: "", ChannelID: "A"},
		{ID: "r2", Keyword: "nomatch", ChannelID: "B"},
		{ID: "r4", Keyword: "X", ChannelID: "B"},
	}

	pairs := Match(msgWith("x marks the spot"), channels, rules)
	ids := make([]string, len(pairs))
	for i, p := range pairs {
		ids[i] = p.Rule.ID
	}
	assert.Equal(t, []string{"r3", "r1", "r4"}, ids)
}

func TestMatch_SameChannelFromTwoRules(t *testing.T) {
	channels := []domain.Channel{webhookChannel("C")}
	rules := []domain.Rule{
		{ID: "r1", Keyword: "code", ChannelID: "C"},
		{ID: "r2", Keyword: "123", ChannelID: "C"},
	}

	pairs := Match(msgWith("your code is 123"), channels, rules)
	require.Len(t, pairs, 2)
	assert.Equal(t, "C", pairs[0].Channel.ID)
	assert.Equal(t, "C", pairs[1].Channel.ID)
	assert.NotEqual(t, pairs[0].Rule.ID, pairs[1].Rule.ID)
}

func TestMatch_RepeatedRuleCollapses(t *testing.T) {
	channels := []domain.Channel{webhookChannel("A")}
	rule := domain.Rule{ID: "r1", Keyword: "", ChannelID: "A"}

	pairs := Match(msgWith("hi"), channels, []domain.Rule{rule, rule})
	assert.Len(t, pairs, 1)
}

func TestMatch_EmptyInputs(t *testing.T) {
	assert.Empty(t, Match(msgWith("hi"), nil, []domain.Rule{{ID: "r", ChannelID: "A"}}))
	assert.Empty(t, Match(msgWith("hi"), []domain.Channel{webhookChannel("A")}, nil))
}

func TestMatch_Deterministic(t *testing.T) {
	channels := []domain.Channel{webhookChannel("A"), webhookChannel("B")}
	rules := []domain.Rule{
		{ID: "r1", Keyword: "a", ChannelID: "A"},
		{ID: "r2", Keyword: "", ChannelID: "B"},
	}
	first := Match(msgWith("banana"), channels, rules)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Match(msgWith("banana"), channels, rules))
	}
}
