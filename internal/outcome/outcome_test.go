package outcome

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/soyeahso/smsrelay/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixed = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func fixedClock() time.Time { return fixed }

func TestFormat(t *testing.T) {
	assert.Equal(t, "[2026-03-04 05:06:07] hello", Format(fixed, "hello", 10))
}

func TestFormat_Truncates(t *testing.T) {
	line := strings.Repeat("验", 12)
	got := Format(fixed, line, 10)
	assert.Equal(t, "[2026-03-04 05:06:07] "+strings.Repeat("验", 10)+"…(truncated)", got)
}

func TestFormat_ExactLengthUntouched(t *testing.T) {
	line := strings.Repeat("a", 10)
	assert.Equal(t, "[2026-03-04 05:06:07] "+line, Format(fixed, line, 10))
}

func TestLog_NewestFirst(t *testing.T) {
	l := NewLog(NewMemory(10), 0, WithClock(fixedClock))
	l.Append("one")
	l.Append("two")
	l.Append("three")

	entries, err := l.Entries(0)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"[2026-03-04 05:06:07] three",
		"[2026-03-04 05:06:07] two",
		"[2026-03-04 05:06:07] one",
	}, entries)

	limited, err := l.Entries(2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestLog_Retention(t *testing.T) {
	l := NewLog(NewMemory(3), 0, WithClock(fixedClock))
	for i := 0; i < 5; i++ {
		l.Append(fmt.Sprintf("line %d", i))
	}
	entries, err := l.Entries(0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Contains(t, entries[0], "line 4")
	assert.Contains(t, entries[2], "line 2")
}

func TestLog_DefaultRetention(t *testing.T) {
	l := NewLog(NewMemory(0), 0)
	for i := 0; i < DefaultRetention+25; i++ {
		l.Append("x")
	}
	entries, err := l.Entries(0)
	require.NoError(t, err)
	assert.Len(t, entries, DefaultRetention)
}

func TestLog_LatestAndClear(t *testing.T) {
	l := NewLog(NewMemory(10), 0, WithClock(fixedClock))
	assert.Equal(t, EmptyMessage, l.Latest())

	l.Append("first")
	l.Append("second")
	assert.Equal(t, "[2026-03-04 05:06:07] second", l.Latest())

	require.NoError(t, l.Clear())
	assert.Equal(t, EmptyMessage, l.Latest())
}

func TestLog_Subscribe(t *testing.T) {
	l := NewLog(NewMemory(10), 0, WithClock(fixedClock))

	var got []string
	unsubscribe := l.Subscribe(func(entry string) { got = append(got, entry) })
	l.Append("seen")
	unsubscribe()
	l.Append("unseen")

	assert.Equal(t, []string{"[2026-03-04 05:06:07] seen"}, got)
}

type failingBackend struct{ Memory }

func (f *failingBackend) Insert(string) error { return errors.New("disk full") }

func TestLog_BackendError(t *testing.T) {
	var reported error
	l := NewLog(&failingBackend{}, 0, WithErrorHandler(func(err error) { reported = err }))

	notified := false
	l.Subscribe(func(string) { notified = true })
	l.Append("lost")

	require.Error(t, reported)
	assert.False(t, notified)
}

func TestLog_ConcurrentAppends(t *testing.T) {
	l := NewLog(NewMemory(1000), 0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l.Append(fmt.Sprintf("task %d", i))
		}(i)
	}
	wg.Wait()

	entries, err := l.Entries(0)
	require.NoError(t, err)
	assert.Len(t, entries, 50)
}

// recorder is a Reporter that captures lines.
type recorder struct {
	mu    sync.Mutex
	lines []string
	block chan struct{}
}

func (r *recorder) Append(line string) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

func (r *recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func TestQueue_DrainsInOrder(t *testing.T) {
	rec := &recorder{}
	q := NewQueue(rec, 10, 0, logging.New(nil, "silent"))
	q.Append("a")
	q.Append("b")
	q.Close()

	assert.Equal(t, []string{"a", "b"}, rec.Lines())
}

func TestQueue_AppendAfterCloseIsDirect(t *testing.T) {
	rec := &recorder{}
	q := NewQueue(rec, 10, 0, logging.New(nil, "silent"))
	q.Close()
	q.Close()
	q.Append("late")

	assert.Equal(t, []string{"late"}, rec.Lines())
}

func TestQueue_FullBufferDoesNotLoseLines(t *testing.T) {
	rec := &recorder{block: make(chan struct{})}
	q := NewQueue(rec, 1, 10*time.Millisecond, logging.New(nil, "silent"))

	done := make(chan struct{})
	go func() {
		// The drain goroutine blocks on the first line and the buffer
		// holds the second, so the third falls through to the target.
		q.Append("1")
		q.Append("2")
		q.Append("3")
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	close(rec.block)
	<-done
	q.Close()

	assert.ElementsMatch(t, []string{"1", "2", "3"}, rec.Lines())
}

func TestQueue_KeepsReportTime(t *testing.T) {
	mem := NewMemory(0)
	log := NewLog(mem, 0, WithClock(func() time.Time {
		return fixed.Add(time.Hour)
	}))

	q := NewQueue(log, 10, 0, logging.New(nil, "silent"))
	q.now = fixedClock
	q.Append("reported early")
	q.AppendAt(fixed.Add(2*time.Second), "reported later")
	q.Close()

	entries, err := log.Entries(0)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"[2026-03-04 05:06:09] reported later",
		"[2026-03-04 05:06:07] reported early",
	}, entries)
}

func TestQueue_PlainReporterTarget(t *testing.T) {
	rec := &recorder{}
	q := NewQueue(rec, 10, 0, logging.New(nil, "silent"))
	q.AppendAt(fixed, "x")
	q.Close()

	assert.Equal(t, []string{"x"}, rec.Lines())
}
