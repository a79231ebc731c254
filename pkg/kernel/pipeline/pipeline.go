// Package pipeline wires input ingestion, per-record transform, and
// finalize into the batch and streaming entrypoints the CLI and MCP front
// ends drive. It is the host-level orchestration spec §1 calls out as
// outside the core engine proper — the core pieces (transform, finalize)
// stay ignorant of trace/streaming concerns.
package pipeline

import (
	"time"

	"github.com/vinhphatfsg/rulemorph/pkg/kernel/finalize"
	"github.com/vinhphatfsg/rulemorph/pkg/kernel/schema"
	"github.com/vinhphatfsg/rulemorph/pkg/kernel/trace"
	"github.com/vinhphatfsg/rulemorph/pkg/kernel/transform"
)

// RecordOutcome is one record's transform result, surfaced so streaming
// callers can isolate a single record's failure per spec §7 ("Record-scoped
// vs batch-scoped").
type RecordOutcome struct {
	Index    int
	Output   map[string]any
	Skipped  bool
	Warnings []transform.Warning
	Err      error
}

// Batch runs every record through rf.Transform in input order, then applies
// finalize once over the surviving outputs. It stops at the first record
// error — batch mode has no per-record isolation (spec §7: "in
// single-record mode an error aborts the call; in batch/stream mode an
// error aborts that record only" — Batch is the single-call, abort-on-first
// variant; Stream is the isolating one).
func Batch(rf *schema.RuleFile, records []map[string]any, context map[string]any, tw *trace.Writer) (any, []transform.Warning, error) {
	start := time.Now()
	if tw != nil {
		tw.EmitRunStart(rf.SourcePath, string(rf.Input.Format))
	}

	var outputs []map[string]any
	var warnings []transform.Warning
	for i, rec := range records {
		if tw != nil {
			tw.EmitRecordStart(i)
		}
		res, err := transform.Record(rf, rec, context)
		if err != nil {
			if tw != nil {
				if te, ok := err.(*transform.Error); ok {
					tw.EmitRecordError(i, te.Code, te.Message)
				}
			}
			return nil, warnings, err
		}
		warnings = append(warnings, res.Warnings...)
		if res.Skipped {
			if tw != nil {
				tw.EmitRecordSkipped(i, "record_when")
			}
			continue
		}
		if tw != nil {
			tw.EmitRecordComplete(i, len(res.Warnings))
			for _, w := range res.Warnings {
				tw.EmitMappingWarning(i, w.Code, w.Message, w.Path)
			}
		}
		outputs = append(outputs, res.Output)
	}

	result, err := finalize.Apply(rf.Finalize, outputs)
	if err != nil {
		return nil, warnings, err
	}
	if tw != nil {
		tw.EmitFinalizeApplied(len(outputs), finalCount(result))
		tw.EmitRunComplete(len(records), time.Since(start))
	}
	return result, warnings, nil
}

// Stream runs every record independently, in input order, and reports each
// one's outcome through emit — a failing record surfaces as a RecordOutcome
// with Err set, and processing continues with the next record, per spec
// §7's streaming host choice. Stream does not apply finalize: pagination
// and wrap are whole-batch operations that a streaming consumer applies
// itself once it has collected the records it wants.
func Stream(rf *schema.RuleFile, records []map[string]any, context map[string]any, tw *trace.Writer, emit func(RecordOutcome)) {
	start := time.Now()
	if tw != nil {
		tw.EmitRunStart(rf.SourcePath, string(rf.Input.Format))
	}
	for i, rec := range records {
		if tw != nil {
			tw.EmitRecordStart(i)
		}
		res, err := transform.Record(rf, rec, context)
		outcome := RecordOutcome{Index: i, Output: res.Output, Skipped: res.Skipped, Warnings: res.Warnings, Err: err}
		if err != nil {
			if tw != nil {
				if te, ok := err.(*transform.Error); ok {
					tw.EmitRecordError(i, te.Code, te.Message)
				}
			}
			emit(outcome)
			continue
		}
		if res.Skipped {
			if tw != nil {
				tw.EmitRecordSkipped(i, "record_when")
			}
			emit(outcome)
			continue
		}
		if tw != nil {
			tw.EmitRecordComplete(i, len(res.Warnings))
		}
		emit(outcome)
	}
	if tw != nil {
		tw.EmitRunComplete(len(records), time.Since(start))
	}
}

func finalCount(v any) int {
	if arr, ok := v.([]any); ok {
		return len(arr)
	}
	return 1
}
