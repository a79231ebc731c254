// Package trace implements rulemorph's append-only JSONL audit trail for a
// transform run: one event per record processed, one per warning raised,
// and one for the finalize stage. Adapted from the teacher's kernel trace
// writer (mutex-protected io.Writer + json.Encoder, one Emit per event
// kind) to the transform/finalize domain instead of runbook step
// execution.
package trace

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates all rulemorph trace event types.
type EventType string

const (
	EventRunStart        EventType = "run_start"
	EventRunComplete     EventType = "run_complete"
	EventRecordStart     EventType = "record_start"
	EventRecordSkipped   EventType = "record_skipped"
	EventRecordComplete  EventType = "record_complete"
	EventRecordError     EventType = "record_error"
	EventMappingWarning  EventType = "mapping_warning"
	EventFinalizeApplied EventType = "finalize_applied"
)

// Event is a single trace event written to the JSONL stream.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id"`
	Data      map[string]any `json:"data,omitempty"`
}

// Writer writes trace events to an append-only JSONL stream.
type Writer struct {
	mu    sync.Mutex
	w     io.Writer
	runID string
	enc   *json.Encoder
}

// NewWriter creates a trace writer over w. A blank runID mints a fresh
// uuid.v4, matching the teacher's per-run ID convention.
func NewWriter(w io.Writer, runID string) *Writer {
	if runID == "" {
		runID = uuid.NewString()
	}
	return &Writer{w: w, runID: runID, enc: json.NewEncoder(w)}
}

// NewFileWriter creates a trace writer that appends to a JSONL file.
func NewFileWriter(path, runID string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("trace: open %s: %w", path, err)
	}
	return NewWriter(f, runID), nil
}

// RunID returns the run identifier events are tagged with.
func (tw *Writer) RunID() string { return tw.runID }

// Emit writes a single trace event.
func (tw *Writer) Emit(eventType EventType, data map[string]any) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.enc.Encode(Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		RunID:     tw.runID,
		Data:      data,
	})
}

// EmitRunStart emits a run_start event naming the rule file and input.
func (tw *Writer) EmitRunStart(ruleName, inputFormat string) error {
	return tw.Emit(EventRunStart, map[string]any{
		"rule":         ruleName,
		"input_format": inputFormat,
	})
}

// EmitRunComplete emits a run_complete event.
func (tw *Writer) EmitRunComplete(recordCount int, duration time.Duration) error {
	return tw.Emit(EventRunComplete, map[string]any{
		"record_count": recordCount,
		"duration":     duration.String(),
	})
}

// EmitRecordStart emits a record_start event for the record at index idx.
func (tw *Writer) EmitRecordStart(idx int) error {
	return tw.Emit(EventRecordStart, map[string]any{"index": idx})
}

// EmitRecordSkipped emits a record_skipped event (record_when/branch
// rejection).
func (tw *Writer) EmitRecordSkipped(idx int, reason string) error {
	return tw.Emit(EventRecordSkipped, map[string]any{"index": idx, "reason": reason})
}

// EmitRecordComplete emits a record_complete event.
func (tw *Writer) EmitRecordComplete(idx int, warningCount int) error {
	return tw.Emit(EventRecordComplete, map[string]any{"index": idx, "warning_count": warningCount})
}

// EmitRecordError emits a record_error event, used by streaming mode to
// continue past a single record's runtime failure per spec §7.
func (tw *Writer) EmitRecordError(idx int, code, message string) error {
	return tw.Emit(EventRecordError, map[string]any{"index": idx, "code": code, "message": message})
}

// EmitMappingWarning emits a mapping_warning event for a non-fatal type
// cast failure.
func (tw *Writer) EmitMappingWarning(idx int, code, message, path string) error {
	return tw.Emit(EventMappingWarning, map[string]any{
		"index": idx, "code": code, "message": message, "path": path,
	})
}

// EmitFinalizeApplied emits a finalize_applied event.
func (tw *Writer) EmitFinalizeApplied(inCount, outCount int) error {
	return tw.Emit(EventFinalizeApplied, map[string]any{
		"in_count": inCount, "out_count": outCount,
	})
}
