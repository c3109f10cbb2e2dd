package channel

import (
	"context"
	"sync"
	"testing"

	"github.com/soyeahso/smsrelay/internal/domain"
	"github.com/soyeahso/smsrelay/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logging.Logger {
	return logging.New(nil, "silent")
}

// mockSender is a test double for Sender. errs is consumed one entry per
// attempt; once exhausted every attempt succeeds.
type mockSender struct {
	kind        domain.ChannelKind
	unavailable bool

	mu    sync.Mutex
	errs  []error
	calls int
}

func (m *mockSender) Kind() domain.ChannelKind { return m.kind }
func (m *mockSender) Available() bool          { return !m.unavailable }
func (m *mockSender) Deliver(_ context.Context, _ domain.Channel, _ domain.InboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.errs) == 0 {
		return nil
	}
	err := m.errs[0]
	m.errs = m.errs[1:]
	return err
}

func (m *mockSender) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register(&mockSender{kind: domain.KindWebhook})

	got, ok := reg.Get(domain.KindWebhook)
	require.True(t, ok)
	assert.Equal(t, domain.KindWebhook, got.Kind())

	_, ok = reg.Get(domain.KindSMS)
	assert.False(t, ok)
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	reg := NewRegistry(testLogger())
	first := &mockSender{kind: domain.KindSMS}
	second := &mockSender{kind: domain.KindSMS}
	reg.Register(first)
	reg.Register(second)

	got, ok := reg.Get(domain.KindSMS)
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, 1, reg.Count())
}

func TestRegistry_Kinds(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register(&mockSender{kind: domain.KindWebhook})
	reg.Register(&mockSender{kind: domain.KindSMS})

	assert.Equal(t, []domain.ChannelKind{domain.KindSMS, domain.KindWebhook}, reg.Kinds())
}

func TestRegistry_Status(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register(&mockSender{kind: domain.KindWebhook})
	reg.Register(&mockSender{kind: domain.KindSMS, unavailable: true})

	statuses := reg.Status()
	require.Len(t, statuses, 2)
	assert.Equal(t, SenderStatus{Kind: domain.KindSMS, Available: false}, statuses[0])
	assert.Equal(t, SenderStatus{Kind: domain.KindWebhook, Available: true}, statuses[1])
}

func TestRegistry_Resolve(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register(&mockSender{kind: domain.KindWebhook})
	reg.Register(&mockSender{kind: domain.KindSMS, unavailable: true})

	s, err := reg.Resolve(domain.Channel{ID: "a", Kind: domain.KindWebhook})
	require.NoError(t, err)
	assert.Equal(t, domain.KindWebhook, s.Kind())

	_, err = reg.Resolve(domain.Channel{ID: "b", Kind: domain.KindSMS})
	require.Error(t, err)
	assert.False(t, IsPermanent(err))
	assert.Contains(t, err.Error(), "unavailable")

	_, err = reg.Resolve(domain.Channel{ID: "c", Kind: domain.ChannelKind("fax")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no sender registered")
}

func TestIsPermanent(t *testing.T) {
	ch := domain.Channel{ID: "a", Name: "hook", Kind: domain.KindWebhook}

	assert.False(t, IsPermanent(nil))
	assert.False(t, IsPermanent(assert.AnError))
	assert.False(t, IsPermanent(Failed(ch, assert.AnError)))
	assert.True(t, IsPermanent(Invalid(ch, "bad url")))
	assert.True(t, IsPermanent(ErrInvalidTarget))
}

func TestDeliveryError_Message(t *testing.T) {
	ch := domain.Channel{ID: "a", Name: "hook", Kind: domain.KindWebhook}
	err := Invalid(ch, "missing host")

	assert.ErrorIs(t, err, ErrInvalidTarget)
	var de *DeliveryError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "hook", de.Channel)
	assert.Contains(t, err.Error(), "webhook delivery to hook")
	assert.Contains(t, err.Error(), "missing host")
}
