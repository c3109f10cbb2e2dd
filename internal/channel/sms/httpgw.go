package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// GatewayConfig configures an HTTP SMS gateway transport.
type GatewayConfig struct {
	URL     string
	Token   string
	SIM     string
	Timeout time.Duration
}

// gatewayRequest is the JSON body posted to the SMS gateway.
type gatewayRequest struct {
	To        string   `json:"to"`
	Parts     []string `json:"parts"`
	Multipart bool     `json:"multipart"`
	SIM       string   `json:"sim,omitempty"`
}

// HTTPGateway sends messages by posting them to an SMS gateway endpoint
// bound to one SIM (for example a phone running a gateway app, or a modem
// bridge).
type HTTPGateway struct {
	cfg    GatewayConfig
	client *http.Client
}

// NewHTTPGateway creates a gateway transport. Availability is decided once,
// here, from the configuration.
func NewHTTPGateway(cfg GatewayConfig) *HTTPGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &HTTPGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Available implements Transport.
func (g *HTTPGateway) Available() bool { return g.cfg.URL != "" }

// Divide implements Transport.
func (g *HTTPGateway) Divide(text string) []string { return Divide(text) }

// SendText implements Transport.
func (g *HTTPGateway) SendText(ctx context.Context, to, text string) error {
	return g.post(ctx, gatewayRequest{To: to, Parts: []string{text}, SIM: g.cfg.SIM})
}

// SendMultipart implements Transport.
func (g *HTTPGateway) SendMultipart(ctx context.Context, to string, parts []string) error {
	return g.post(ctx, gatewayRequest{To: to, Parts: parts, Multipart: true, SIM: g.cfg.SIM})
}

func (g *HTTPGateway) post(ctx context.Context, body gatewayRequest) error {
	if !g.Available() {
		return ErrTransportUnavailable
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+g.cfg.Token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("sms gateway responded %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return nil
}
