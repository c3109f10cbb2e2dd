// Package webhook implements the JSON webhook forwarding sender.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/soyeahso/smsrelay/internal/channel"
	"github.com/soyeahso/smsrelay/internal/domain"
	"github.com/soyeahso/smsrelay/internal/logging"
)

const contentType = "application/json; charset=utf-8"

// Config controls the webhook sender's HTTP behavior.
type Config struct {
	OriginPrefix   string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	TotalTimeout   time.Duration
}

// DefaultConfig returns the standard timeouts (10s connect, 20s read, 20s total).
func DefaultConfig() Config {
	return Config{
		OriginPrefix:   "From: ",
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    20 * time.Second,
		TotalTimeout:   20 * time.Second,
	}
}

// Payload is the JSON body posted to the webhook.
type Payload struct {
	MsgType string `json:"msgtype"`
	Text    Text   `json:"text"`
}

// Text is the text section of Payload.
type Text struct {
	Content string `json:"content"`
}

// StatusError is returned when the webhook answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("webhook responded %d", e.Code)
	}
	return fmt.Sprintf("webhook responded %d: %s", e.Code, e.Body)
}

// Sender posts messages to webhook channels.
type Sender struct {
	cfg    Config
	client *http.Client
	log    *logging.Logger
}

// New creates a webhook sender with its own pooled HTTP client.
func New(cfg Config, log *logging.Logger) *Sender {
	def := DefaultConfig()
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.TotalTimeout <= 0 {
		cfg.TotalTimeout = def.TotalTimeout
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
	}

	return &Sender{
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.TotalTimeout,
			Transport: transport,
		},
		log: log.Sub("webhook"),
	}
}

// Kind implements channel.Sender.
func (s *Sender) Kind() domain.ChannelKind { return domain.KindWebhook }

// Available implements channel.Sender. Webhooks need no device capability.
func (s *Sender) Available() bool { return true }

// Deliver posts one message. Malformed targets fail permanently before any
// network activity.
func (s *Sender) Deliver(ctx context.Context, ch domain.Channel, msg domain.InboundMessage) error {
	if err := ValidateURL(ch.Target); err != nil {
		return channel.Invalid(ch, err.Error())
	}

	body, err := json.Marshal(BuildPayload(s.cfg.OriginPrefix, msg))
	if err != nil {
		return channel.Failed(ch, fmt.Errorf("encoding payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ch.Target, bytes.NewReader(body))
	if err != nil {
		return channel.Invalid(ch, err.Error())
	}
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return channel.Failed(ch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return channel.Failed(ch, &StatusError{Code: resp.StatusCode, Body: string(snippet)})
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	s.log.Debug().
		Str("channel", ch.ID).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("webhook delivered")
	return nil
}

// BuildPayload renders the webhook body for msg.
func BuildPayload(prefix string, msg domain.InboundMessage) Payload {
	return Payload{
		MsgType: "text",
		Text:    Text{Content: domain.ForwardContent(prefix, msg)},
	}
}

// ValidateURL accepts only absolute http(s) URLs with a non-empty host.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("malformed url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
