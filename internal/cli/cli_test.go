package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/soyeahso/smsrelay/internal/outcome"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHome points SMSRELAY_HOME at a fresh directory and clears the env
// overrides the config loader honours.
func testHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("SMSRELAY_HOME", home)
	for _, key := range []string{
		"SMSRELAY_GATEWAY_PORT",
		"SMSRELAY_GATEWAY_BIND",
		"SMSRELAY_GATEWAY_TOKEN",
		"SMSRELAY_GATEWAY_PASSWORD",
		"SMSRELAY_LOG_LEVEL",
		"SMSRELAY_STORE_PATH",
		"SMSRELAY_FORWARDING_ENABLED",
	} {
		t.Setenv(key, "")
	}
	return home
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--log-level", "silent"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	require.NoError(t, err, "smsrelay %s", strings.Join(args, " "))
	return out
}

func TestVersionCmd(t *testing.T) {
	testHome(t)
	out := mustRun(t, "version")
	assert.True(t, strings.HasPrefix(out, "smsrelay "))
}

func TestChannelAndRuleLifecycle(t *testing.T) {
	testHome(t)

	out := mustRun(t, "channel", "add", "--id", "ops", "--name", "Ops", "--target", "https://hooks.example.com/ops")
	assert.Contains(t, out, "Saved channel ops (Ops)")
	mustRun(t, "channel", "add", "--id", "phone", "--type", "SMS", "--target", "+15550100", "--sim", "1")

	out = mustRun(t, "channel", "list")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "ops")
	assert.Contains(t, lines[0], "webhook")
	assert.Contains(t, lines[1], "sms")
	assert.Contains(t, lines[1], "sim=1")

	out = mustRun(t, "rule", "add", "--id", "r1", "--keyword", "code", "--channel", "ops")
	assert.Contains(t, out, `Saved rule r1 ("code" -> ops)`)
	mustRun(t, "rule", "add", "--id", "all", "--channel", "gone")

	out = mustRun(t, "rule", "list")
	assert.Contains(t, out, `r1  "code"`)
	assert.Contains(t, out, "(all messages)")
	assert.Contains(t, out, "gone (missing)")

	mustRun(t, "channel", "rm", "ops")
	out = mustRun(t, "rule", "list")
	assert.Contains(t, out, "ops (missing)")

	_, err := run(t, "channel", "rm", "ops")
	assert.EqualError(t, err, `channel "ops" not found`)
	_, err = run(t, "rule", "rm", "nope")
	assert.EqualError(t, err, `rule "nope" not found`)
}

func TestChannelAdd_RequiresTarget(t *testing.T) {
	testHome(t)
	_, err := run(t, "channel", "add", "--name", "x")
	assert.EqualError(t, err, "--target is required")
}

func TestRuleImport(t *testing.T) {
	home := testHome(t)
	file := filepath.Join(home, "rules.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
channels:
  - {id: ops, name: ops, type: webhook, target: "https://hooks.example.com/x"}
  - {id: phone, name: phone, type: SMS, target: "+15550100", simId: "2"}
rules:
  - {keyword: code, channelId: ops}
  - {id: everything, keyword: "", channelId: phone}
`), 0o600))

	out := mustRun(t, "rule", "import", file)
	assert.Contains(t, out, "Imported 2 channel(s) and 2 rule(s)")

	out = mustRun(t, "rule", "list")
	assert.Contains(t, out, `"code"`)
	assert.Contains(t, out, "everything")
	assert.NotContains(t, out, "missing")

	out = mustRun(t, "channel", "list")
	assert.Contains(t, out, "sim=2")
}

func TestRuleImport_BadYAML(t *testing.T) {
	home := testHome(t)
	file := filepath.Join(home, "rules.yaml")
	require.NoError(t, os.WriteFile(file, []byte("channels: [unclosed"), 0o600))

	_, err := run(t, "rule", "import", file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing")
}

func TestInject_ForwardsToWebhook(t *testing.T) {
	testHome(t)

	var (
		mu       sync.Mutex
		received []string
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Text struct {
				Content string `json:"content"`
			} `json:"text"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		received = append(received, body.Text.Content)
		mu.Unlock()
	}))
	defer hook.Close()

	mustRun(t, "channel", "add", "--id", "ops", "--name", "ops", "--target", hook.URL)
	mustRun(t, "rule", "add", "--keyword", "code", "--channel", "ops")
	mustRun(t, "rule", "add", "--keyword", "invoice", "--channel", "ops")

	out := mustRun(t, "inject", "--from", "+15550100", "Your login ", "code is 4321")
	assert.Contains(t, out, "forwarded OK — from: +15550100 -> ops (rule: code)")
	assert.Contains(t, out, "matched=1 delivered=1 failed=0 pending=0")

	mu.Lock()
	assert.Equal(t, []string{"From: +15550100\nYour login code is 4321"}, received)
	mu.Unlock()

	out = mustRun(t, "logs", "latest")
	assert.Contains(t, out, "forwarded OK")
}

func TestInject_BudgetExpiryIsNotAnError(t *testing.T) {
	testHome(t)

	release := make(chan struct{})
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer hook.Close()
	defer close(release)

	mustRun(t, "config", "set", "forwarding.waitBudgetMs", "100")
	mustRun(t, "config", "set", "forwarding.maxAttempts", "1")
	mustRun(t, "channel", "add", "--id", "slow", "--name", "slow", "--target", hook.URL)
	mustRun(t, "rule", "add", "--channel", "slow")

	out, err := run(t, "inject", "--from", "+15550100", "hello")
	require.NoError(t, err)
	assert.Contains(t, out, "some forwards timed out (returned after waiting 100ms)")
	assert.Contains(t, out, "matched=1 delivered=0 failed=0 pending=1")
}

func TestInject_InvalidWebhookIsLogged(t *testing.T) {
	testHome(t)
	mustRun(t, "channel", "add", "--id", "bad", "--name", "bad", "--target", "ftp://nowhere")
	mustRun(t, "rule", "add", "--channel", "bad")

	out := mustRun(t, "inject", "-q", "--from", "+1", "hello")
	assert.NotContains(t, out, "invalid webhook URL")
	assert.Contains(t, out, "matched=1 delivered=0 failed=1")

	out = mustRun(t, "logs")
	assert.Contains(t, out, "channel bad has invalid webhook URL: ftp://nowhere")
}

func TestInject_NothingConfigured(t *testing.T) {
	testHome(t)
	out := mustRun(t, "inject", "--from", "+15550100", "hello")
	assert.Contains(t, out, "no channels or keyword rules configured")
	assert.Contains(t, out, "matched=0")
}

func TestInject_Validation(t *testing.T) {
	testHome(t)

	_, err := run(t, "inject", "hello")
	assert.EqualError(t, err, "--from is required")

	_, err = run(t, "inject", "--from", "+1")
	assert.Error(t, err)

	t.Setenv("SMSRELAY_FORWARDING_ENABLED", "false")
	_, err = run(t, "inject", "--from", "+1", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forwarding is disabled")
}

func TestLogs_EmptyAndClear(t *testing.T) {
	testHome(t)

	out := mustRun(t, "logs")
	assert.Equal(t, "No outcome entries.\n", out)
	out = mustRun(t, "logs", "latest")
	assert.Equal(t, outcome.EmptyMessage+"\n", out)

	mustRun(t, "inject", "--from", "+1", "a")
	mustRun(t, "inject", "--from", "+1", "b")
	out = mustRun(t, "logs", "-n", "1")
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 1)

	assert.Equal(t, "Outcome log cleared.\n", mustRun(t, "logs", "clear"))
	assert.Equal(t, "No outcome entries.\n", mustRun(t, "logs"))
}

func TestConfigCmd(t *testing.T) {
	testHome(t)

	out := mustRun(t, "config", "set", "forwarding.maxAttempts", "3")
	assert.Equal(t, "Set forwarding.maxAttempts = 3\n", out)
	mustRun(t, "config", "set", "sms.sims.1.url", "http://phone.lan:8080/send")

	assert.Equal(t, "3\n", mustRun(t, "config", "get", "forwarding.maxAttempts"))
	assert.Contains(t, mustRun(t, "config", "get", "sms.sims"), "url: http://phone.lan:8080/send")

	assert.Equal(t, "Config OK\n", mustRun(t, "config", "validate"))

	mustRun(t, "config", "unset", "forwarding.maxAttempts")
	_, err := run(t, "config", "get", "forwarding.maxAttempts")
	assert.EqualError(t, err, `key "forwarding.maxAttempts" not found`)

	_, err = run(t, "config", "get", "__proto__.x")
	assert.Error(t, err)

	out = mustRun(t, "config", "path")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "config.yaml"))
}

func TestConfigValidate_ReportsIssues(t *testing.T) {
	testHome(t)
	mustRun(t, "config", "set", "gateway.bind", "everywhere")

	out, err := run(t, "config", "validate")
	require.Error(t, err)
	assert.Contains(t, out, "gateway.bind")

	_, err = run(t, "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestBrokenConfigStillEditable(t *testing.T) {
	home := testHome(t)
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte("gateway: [oops"), 0o600))

	_, err := run(t, "channel", "list")
	require.Error(t, err)

	out := mustRun(t, "status")
	assert.Contains(t, out, "error loading")
}

func TestStatusCmd(t *testing.T) {
	testHome(t)
	mustRun(t, "channel", "add", "--id", "ops", "--target", "https://hooks.example.com/x")
	mustRun(t, "config", "set", "sms.default.url", "http://phone.lan:8080/send")

	out := mustRun(t, "status")
	assert.Contains(t, out, "Gateway:    port=18790 bind=loopback auth=token")
	assert.Contains(t, out, "Forwarding: enabled")
	assert.Contains(t, out, "SMS:        default=http://phone.lan:8080/send")
	assert.Contains(t, out, "(1 channel(s), 0 rule(s))")
	assert.Contains(t, out, "Latest:")
	assert.NotContains(t, out, "Validation issues")
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"true", true},
		{"FALSE", false},
		{"42", 42},
		{"-7", -7},
		{"1.5", 1.5},
		{"+15550100", "+15550100"},
		{"0123", "0123"},
		{"NaN", "NaN"},
		{"1.2.3", "1.2.3"},
		{"http://x", "http://x"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseValue(tt.in))
		})
	}
}
