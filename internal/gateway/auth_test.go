package gateway

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/soyeahso/smsrelay/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestSafeEqual(t *testing.T) {
	assert.True(t, safeEqual("secret", "secret"))
	assert.True(t, safeEqual("", ""))
	assert.False(t, safeEqual("secret", "wrong"))
	assert.False(t, safeEqual("short", "longer-string"))
	assert.False(t, safeEqual("secret", ""))
}

func TestResolveAuth(t *testing.T) {
	t.Setenv("SMSRELAY_GATEWAY_TOKEN", "")
	t.Setenv("SMSRELAY_GATEWAY_PASSWORD", "")

	auth := ResolveAuth(config.GatewayAuth{Mode: "token", Token: "config-token"})
	assert.Equal(t, "token", auth.Mode)
	assert.Equal(t, "config-token", auth.Token)

	auth = ResolveAuth(config.GatewayAuth{Token: "t"})
	assert.Equal(t, "token", auth.Mode)

	auth = ResolveAuth(config.GatewayAuth{Password: "p"})
	assert.Equal(t, "password", auth.Mode)
}

func TestResolveAuth_Env(t *testing.T) {
	t.Setenv("SMSRELAY_GATEWAY_TOKEN", "env-token")
	t.Setenv("SMSRELAY_GATEWAY_PASSWORD", "env-pass")

	auth := ResolveAuth(config.GatewayAuth{Mode: "token"})
	assert.Equal(t, "env-token", auth.Token)
	assert.Equal(t, "env-pass", auth.Password)

	auth = ResolveAuth(config.GatewayAuth{Mode: "token", Token: "config-token"})
	assert.Equal(t, "config-token", auth.Token)
}

func TestAuthorize(t *testing.T) {
	tokenAuth := ResolvedAuth{Mode: "token", Token: "tok"}
	passAuth := ResolvedAuth{Mode: "password", Password: "pw"}

	tests := []struct {
		name   string
		server ResolvedAuth
		client *ConnectAuth
		ok     bool
		reason string
	}{
		{"token ok", tokenAuth, &ConnectAuth{Token: "tok"}, true, ""},
		{"token mismatch", tokenAuth, &ConnectAuth{Token: "bad"}, false, "token_mismatch"},
		{"token empty", tokenAuth, &ConnectAuth{}, false, "token required"},
		{"server token unset", ResolvedAuth{Mode: "token"}, &ConnectAuth{Token: "x"}, false, "server token not configured"},
		{"password ok", passAuth, &ConnectAuth{Password: "pw"}, true, ""},
		{"password mismatch", passAuth, &ConnectAuth{Password: "no"}, false, "password_mismatch"},
		{"password empty", passAuth, &ConnectAuth{}, false, "password required"},
		{"server password unset", ResolvedAuth{Mode: "password"}, &ConnectAuth{Password: "x"}, false, "server password not configured"},
		{"nil credentials", tokenAuth, nil, false, "no credentials provided"},
		{"mode none", ResolvedAuth{Mode: "none"}, nil, true, ""},
		{"unknown mode", ResolvedAuth{Mode: "oauth"}, &ConnectAuth{Token: "x"}, false, "unknown auth mode: oauth"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Authorize(tt.server, tt.client)
			assert.Equal(t, tt.ok, res.OK)
			assert.Equal(t, tt.reason, res.Reason)
		})
	}
}

func TestAuthorizeRequest(t *testing.T) {
	req := func(header string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/v1/logs", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		return r
	}

	tokenAuth := ResolvedAuth{Mode: "token", Token: "tok"}
	assert.True(t, AuthorizeRequest(tokenAuth, req("Bearer tok")).OK)
	assert.False(t, AuthorizeRequest(tokenAuth, req("Bearer nope")).OK)
	assert.False(t, AuthorizeRequest(tokenAuth, req("Basic tok")).OK)
	assert.Equal(t, "bearer token required", AuthorizeRequest(tokenAuth, req("")).Reason)

	passAuth := ResolvedAuth{Mode: "password", Password: "pw"}
	res := AuthorizeRequest(passAuth, req("Bearer pw"))
	assert.True(t, res.OK)
	assert.Equal(t, "password", res.Method)

	assert.True(t, AuthorizeRequest(ResolvedAuth{Mode: "none"}, req("")).OK)
}

func TestSignature(t *testing.T) {
	body := []byte(`{"body":"hi"}`)
	sig := Sign("k", body)

	assert.Regexp(t, `^sha256=[0-9a-f]{64}$`, sig)
	assert.True(t, VerifySignature("k", body, sig))
	assert.False(t, VerifySignature("other", body, sig))
	assert.False(t, VerifySignature("k", []byte(`{"body":"hj"}`), sig))
	assert.False(t, VerifySignature("k", body, ""))
}

func TestAuthRateLimiter(t *testing.T) {
	l := newAuthRateLimiter()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("10.0.0.1:1234"))
	for i := 0; i < authRateMaxFails-1; i++ {
		l.recordFailure(fmt.Sprintf("10.0.0.1:%d", 1000+i))
	}
	assert.True(t, l.allow("10.0.0.1:9999"))

	l.recordFailure("10.0.0.1:1")
	assert.False(t, l.allow("10.0.0.1:2"))
	assert.True(t, l.allow("10.0.0.2:2"), "other hosts are unaffected")

	l.recordFailure("unix-socket")
	assert.True(t, l.allow("unix-socket"))

	now = now.Add(authRateWindow + time.Second)
	assert.True(t, l.allow("10.0.0.1:2"))

	l.prune()
	l.mu.Lock()
	assert.Empty(t, l.failures)
	l.mu.Unlock()
}

func TestCheckWebSocketOrigin(t *testing.T) {
	withOrigin := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	assert.True(t, checkWebSocketOrigin(nil)(withOrigin("")))
	assert.False(t, checkWebSocketOrigin(nil)(withOrigin("https://evil.example")))
	assert.True(t, checkWebSocketOrigin([]string{"*"})(withOrigin("https://any.example")))

	allowed := checkWebSocketOrigin([]string{"https://a.example", "https://b.example"})
	assert.True(t, allowed(withOrigin("https://b.example")))
	assert.False(t, allowed(withOrigin("https://c.example")))
}
