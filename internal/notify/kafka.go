// Package notify listens for "source changed" messages and reloads the
// affected survey sources.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/rmgsl/mapa-od/internal/survey"
)

var log = logrus.WithField("module", "notify")

// AllSources is the message value that reloads every source
const AllSources = "*"

// Reader is the part of kafka.Reader the listener uses. It allows mocking
// in unit tests.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Handler is called with the source ID named by a message
type Handler func(ctx context.Context, sourceID string) error

// Listener consumes reload messages one at a time and commits each offset
// after its handler returns
type Listener struct {
	reader  Reader
	handle  Handler
	backoff time.Duration
}

// NewListener creates a consumer group reader on topic
func NewListener(broker, topic, groupID string, handle Handler) *Listener {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: []string{broker},
		Topic:   topic,
		GroupID: groupID,
		// Offsets are committed explicitly after each reload
		CommitInterval: 0,
		MinBytes:       1,
		MaxBytes:       1e6,
	})
	return NewListenerWithReader(reader, handle)
}

// NewListenerWithReader wraps an existing reader
func NewListenerWithReader(reader Reader, handle Handler) *Listener {
	return &Listener{reader: reader, handle: handle, backoff: time.Second}
}

// Run consumes until ctx is cancelled or the reader is closed
func (l *Listener) Run(ctx context.Context) error {
	log.Info("Starting reload listener...")
	for {
		msg, err := l.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				log.Info("Reload listener stopped")
				return nil
			}
			log.Errorf("Error reading message: %v", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(l.backoff):
			}
			continue
		}

		id := SourceID(msg)
		if id == "" {
			log.Warnf("Ignoring reload message without source id (partition=%d, offset=%d)", msg.Partition, msg.Offset)
		} else if err := l.handle(ctx, id); err != nil {
			log.Errorf("Reload of %s failed: %v", id, err)
		}

		if err := l.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Errorf("Failed to commit offset %d: %v", msg.Offset, err)
		}
	}
}

// Close closes the underlying reader
func (l *Listener) Close() error {
	return l.reader.Close()
}

// SourceID reads the source named by a message: its value, or its key when
// the value is empty
func SourceID(msg kafka.Message) string {
	if id := strings.TrimSpace(string(msg.Value)); id != "" {
		return id
	}
	return strings.TrimSpace(string(msg.Key))
}

// Reloader is implemented by cache.Cache
type Reloader interface {
	Reload(ctx context.Context, id string) (*survey.Table, error)
	ReloadAll(ctx context.Context) map[string]error
}

// ReloadHandler reloads the named source, or every source for AllSources
func ReloadHandler(r Reloader) Handler {
	return func(ctx context.Context, sourceID string) error {
		if sourceID == AllSources {
			failed := r.ReloadAll(ctx)
			if len(failed) > 0 {
				return fmt.Errorf("%d sources failed to reload", len(failed))
			}
			return nil
		}
		_, err := r.Reload(ctx, sourceID)
		return err
	}
}
