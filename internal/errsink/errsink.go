package errsink

import (
	"context"
	"fmt"
	"strings"

	"github.com/gorandp/utn-frsn-news/internal/domain"
	"github.com/gorandp/utn-frsn-news/internal/logger"
)

// Sink records or forwards pipeline failures. Reporting must never fail the
// caller; sinks swallow their own errors.
type Sink interface {
	Report(ctx context.Context, f domain.DeliveryFailure)
}

// Fanout forwards each failure to every registered sink.
type Fanout struct {
	sinks []Sink
}

// NewFanout builds a sink that fans failures out across sinks.
func NewFanout(sinks ...Sink) *Fanout {
	cp := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s == nil {
			continue
		}
		cp = append(cp, s)
	}
	return &Fanout{sinks: cp}
}

// Report forwards the failure to every registered sink.
func (f *Fanout) Report(ctx context.Context, failure domain.DeliveryFailure) {
	if f == nil {
		return
	}
	for _, s := range f.sinks {
		s.Report(ctx, failure)
	}
}

// Size returns the number of active sinks.
func (f *Fanout) Size() int {
	if f == nil {
		return 0
	}
	return len(f.sinks)
}

// logSink writes failures to the structured log.
type logSink struct {
	log logger.Logger
}

// NewLogSink builds a sink logging failures through the given logger.
func NewLogSink(log logger.Logger) Sink {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &logSink{log: log}
}

func (s *logSink) Report(_ context.Context, f domain.DeliveryFailure) {
	s.log.ErrorObj("pipeline task failed", "task_failure", map[string]any{
		"stage":       f.Stage,
		"item_id":     f.ItemID,
		"source_url":  f.SourceURL,
		"message":     f.Message,
		"occurred_at": f.OccurredAt,
	})
}

// messenger is the delivery surface the operator-channel sink needs.
type messenger interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// telegramSink mirrors failures to the operator chat, distinct from the
// public delivery channel.
type telegramSink struct {
	messenger messenger
	chatID    string
	log       logger.Logger
}

// NewTelegramSink builds a sink alerting the given operator chat.
func NewTelegramSink(m messenger, chatID string, log logger.Logger) Sink {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &telegramSink{messenger: m, chatID: chatID, log: log}
}

func (s *telegramSink) Report(ctx context.Context, f domain.DeliveryFailure) {
	text := fmt.Sprintf("[%s ERROR] [%s] %s", strings.ToUpper(f.Stage), f.Key(), f.Message)
	if err := s.messenger.SendMessage(ctx, s.chatID, text); err != nil {
		s.log.ErrorObj("operator alert delivery failed", "alert_error", map[string]any{
			"stage": f.Stage,
			"error": err.Error(),
		})
	}
}
