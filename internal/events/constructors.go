package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// New creates an event with a fresh id and the current time. data may be nil
// or any JSON-serialisable struct (one of the *Data types).
func New(eventType EventType, runID string, severity EventSeverity, message string, data interface{}) (*Event, error) {
	event := &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		RunID:     runID,
		Severity:  severity,
		Message:   message,
		Data:      make(map[string]interface{}),
	}
	if data != nil {
		dataMap, err := structToMap(data)
		if err != nil {
			return nil, fmt.Errorf("failed to convert %T: %w", data, err)
		}
		event.Data = dataMap
	}
	return event, nil
}

// DataAs decodes the event's Data into T.
func DataAs[T any](e *Event) (*T, error) {
	var data T
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse %T: %w", data, err)
	}
	return &data, nil
}

// Emit builds an event and hands it to rec. Recording failures are logged and
// never interrupt the caller; a nil recorder is allowed.
func Emit(ctx context.Context, rec Recorder, eventType EventType, runID string, severity EventSeverity, message string, data interface{}) {
	if rec == nil {
		return
	}
	event, err := New(eventType, runID, severity, message, data)
	if err != nil {
		slog.Warn("failed to build event", "type", eventType, "error", err)
		return
	}
	if err := rec.Record(ctx, event); err != nil {
		slog.Warn("failed to record event", "type", eventType, "error", err)
	}
}

// Multi fans events out to every non-nil recorder. The first error is
// returned after all recorders have been called.
func Multi(recorders ...Recorder) Recorder {
	var live []Recorder
	for _, r := range recorders {
		if r != nil {
			live = append(live, r)
		}
	}
	return RecorderFunc(func(ctx context.Context, event *Event) error {
		var first error
		for _, r := range live {
			if err := r.Record(ctx, event); err != nil && first == nil {
				first = err
			}
		}
		return first
	})
}

// LogRecorder writes every event to the default slog logger.
var LogRecorder Recorder = RecorderFunc(func(ctx context.Context, e *Event) error {
	level := slog.LevelDebug
	switch e.Severity {
	case SeverityWarning:
		level = slog.LevelWarn
	case SeverityError:
		level = slog.LevelError
	}
	slog.Log(ctx, level, e.Message, "event", e.Type, "run", e.RunID)
	return nil
})

func structToMap(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func mapToStruct(m map[string]interface{}, v interface{}) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
