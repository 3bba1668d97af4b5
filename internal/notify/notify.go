// Package notify carries fire-and-forget notices to presentation channels.
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"kasirpos/backend/internal/xid"
)

type Kind string

const (
	KindCheckoutSucceeded Kind = "checkout.succeeded"
	KindCheckoutFailed    Kind = "checkout.failed"
	KindDraftAvailable    Kind = "draft.available"
	KindDraftRestored     Kind = "draft.restored"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

type Notice struct {
	ID      string            `json:"id"`
	Kind    Kind              `json:"kind"`
	Level   Level             `json:"level"`
	Message string            `json:"message"`
	At      time.Time         `json:"at"`
	Data    map[string]string `json:"data,omitempty"`
}

// Sink never reports failure back to the caller.
type Sink interface {
	Notify(ctx context.Context, notice Notice)
}

func New(kind Kind, level Level, message string, data map[string]string) Notice {
	return Notice{
		ID:      xid.New("ntc"),
		Kind:    kind,
		Level:   level,
		Message: message,
		At:      time.Now().UTC(),
		Data:    data,
	}
}

type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.Named("notify")}
}

func (s *LogSink) Notify(_ context.Context, notice Notice) {
	fields := []zap.Field{
		zap.String("kind", string(notice.Kind)),
		zap.String("level", string(notice.Level)),
	}
	for k, v := range notice.Data {
		fields = append(fields, zap.String(k, v))
	}
	s.logger.Info(notice.Message, fields...)
}

// Feed keeps the most recent notices in memory, newest first.
type Feed struct {
	mu      sync.RWMutex
	limit   int
	notices []Notice
}

func NewFeed(limit int) *Feed {
	if limit < 1 {
		limit = 50
	}
	return &Feed{limit: limit}
}

func (f *Feed) Notify(_ context.Context, notice Notice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append([]Notice{notice}, f.notices...)
	if len(f.notices) > f.limit {
		f.notices = f.notices[:f.limit]
	}
}

func (f *Feed) Recent(limit int) []Notice {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if limit < 1 || limit > len(f.notices) {
		limit = len(f.notices)
	}
	out := make([]Notice, limit)
	copy(out, f.notices[:limit])
	return out
}

type Multi []Sink

func (m Multi) Notify(ctx context.Context, notice Notice) {
	for _, sink := range m {
		if sink != nil {
			sink.Notify(ctx, notice)
		}
	}
}

type Nop struct{}

func (Nop) Notify(context.Context, Notice) {}
