package sms

import (
	"context"
	"errors"
	"sort"
)

// ErrTransportUnavailable is returned when no usable transport exists.
var ErrTransportUnavailable = errors.New("sms transport unavailable")

// Transport sends short messages through one SIM.
type Transport interface {
	// Available reports whether this transport was found usable when it
	// was configured.
	Available() bool

	// Divide splits text into transport-sized parts.
	Divide(text string) []string

	// SendText sends a single-part message.
	SendText(ctx context.Context, to, text string) error

	// SendMultipart sends a linked multipart message that the recipient
	// reassembles.
	SendMultipart(ctx context.Context, to string, parts []string) error
}

// TransportSet resolves transports by SIM selector.
type TransportSet interface {
	ForSIM(selector string) (Transport, bool)
	Default() Transport
}

// Transports is a fixed TransportSet built at startup.
type Transports struct {
	def  Transport
	sims map[string]Transport
}

// NewTransports builds a TransportSet. def may be nil.
func NewTransports(def Transport, sims map[string]Transport) *Transports {
	m := make(map[string]Transport, len(sims))
	for k, v := range sims {
		if v != nil {
			m[k] = v
		}
	}
	return &Transports{def: def, sims: m}
}

// ForSIM returns the transport for a SIM selector.
func (t *Transports) ForSIM(selector string) (Transport, bool) {
	tr, ok := t.sims[selector]
	return tr, ok
}

// Default returns the device default transport, or nil.
func (t *Transports) Default() Transport { return t.def }

// SIMs returns the configured selectors in sorted order.
func (t *Transports) SIMs() []string {
	out := make([]string, 0, len(t.sims))
	for k := range t.sims {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Any reports whether at least one transport is available.
func (t *Transports) Any() bool {
	if t.def != nil && t.def.Available() {
		return true
	}
	for _, tr := range t.sims {
		if tr.Available() {
			return true
		}
	}
	return false
}
