package notify

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmgsl/mapa-od/internal/survey"
)

// mockReader serves queued messages, then reports the reader as closed
type mockReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	errs      []error
	committed []kafka.Message
	closed    bool
}

func (m *mockReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return kafka.Message{}, err
	}
	if len(m.messages) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := m.messages[0]
	m.messages = m.messages[1:]
	return msg, nil
}

func (m *mockReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.committed = append(m.committed, msgs...)
	return nil
}

func (m *mockReader) Close() error {
	m.closed = true
	return nil
}

func TestListener_HandlesAndCommitsEveryMessage(t *testing.T) {
	reader := &mockReader{messages: []kafka.Message{
		{Offset: 0, Value: []byte("od-2025")},
		{Offset: 1, Key: []byte("od-2023")},
		{Offset: 2, Value: []byte("  ")},
		{Offset: 3, Value: []byte("broken")},
	}}

	var handled []string
	l := NewListenerWithReader(reader, func(_ context.Context, id string) error {
		handled = append(handled, id)
		if id == "broken" {
			return errors.New("load failed")
		}
		return nil
	})

	require.NoError(t, l.Run(context.Background()))

	assert.Equal(t, []string{"od-2025", "od-2023", "broken"}, handled)
	assert.Len(t, reader.committed, 4, "failed and empty messages are still committed")

	require.NoError(t, l.Close())
	assert.True(t, reader.closed)
}

func TestListener_RetriesAfterReadError(t *testing.T) {
	reader := &mockReader{
		errs:     []error{errors.New("broker unavailable")},
		messages: []kafka.Message{{Value: []byte("od")}},
	}
	var handled []string
	l := NewListenerWithReader(reader, func(_ context.Context, id string) error {
		handled = append(handled, id)
		return nil
	})
	l.backoff = time.Millisecond

	require.NoError(t, l.Run(context.Background()))
	assert.Equal(t, []string{"od"}, handled)
}

func TestListener_StopsOnCancel(t *testing.T) {
	reader := &mockReader{errs: []error{errors.New("broker unavailable")}}
	l := NewListenerWithReader(reader, func(context.Context, string) error { return nil })
	l.backoff = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop after cancel")
	}
}

type fakeReloader struct {
	reloaded []string
	all      int
	failAll  map[string]error
}

func (f *fakeReloader) Reload(_ context.Context, id string) (*survey.Table, error) {
	f.reloaded = append(f.reloaded, id)
	if id == "missing" {
		return nil, &survey.SourceNotFoundError{ID: id}
	}
	return &survey.Table{SourceID: id}, nil
}

func (f *fakeReloader) ReloadAll(context.Context) map[string]error {
	f.all++
	return f.failAll
}

func TestReloadHandler(t *testing.T) {
	r := &fakeReloader{}
	handle := ReloadHandler(r)

	assert.NoError(t, handle(context.Background(), "od"))
	assert.True(t, survey.IsNotFound(handle(context.Background(), "missing")))
	assert.NoError(t, handle(context.Background(), AllSources))
	assert.Equal(t, []string{"od", "missing"}, r.reloaded)
	assert.Equal(t, 1, r.all)

	r.failAll = map[string]error{"od": errors.New("boom")}
	assert.Error(t, handle(context.Background(), AllSources))
}
