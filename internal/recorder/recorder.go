// Package recorder consolidates the activity sample stream into segments.
//
// The recorder is a single-owner state machine: at most one open segment
// exists at any time, held in memory and extended while consecutive
// samples carry the same identity key. A key change flushes the previous
// segment and opens a new one. Idle samples carry how long the user has
// already been idle, so the recorder back-dates the idle segment's start
// and retroactively truncates active rows that claimed time now known to
// be idle.
//
// Every Ingest call runs to completion, storage transaction included,
// before the next sample is taken; there is no internal parallelism.
package recorder

import (
	"database/sql"
	"time"

	"github.com/timelit/timelit/internal/monitor"
	"github.com/timelit/timelit/internal/storage"
)

// segmentKey groups consecutive samples that belong to the same activity
// run. Two samples extend the same segment iff their keys are equal.
// PIDCreateTime is part of the key so a recycled pid belonging to a
// different process lifetime never merges with an earlier run.
//
// All fields are comparable, so key equality is plain ==.
type segmentKey struct {
	appID         sql.NullInt64
	titleID       sql.NullInt64
	isIdle        bool
	pid           sql.NullInt64
	pidCreateTime sql.NullInt64
}

// openSegment is the single in-flight segment, not yet durably written.
type openSegment struct {
	startTS int64
	endTS   int64
	key     segmentKey
}

// Recorder turns activity samples into persisted segments.
type Recorder struct {
	store           *storage.Store
	current         *openSegment
	rotateEverySecs int64
}

// New creates a Recorder writing to store. rotateEvery bounds how long a
// single open segment can grow before being flushed and reopened; zero
// disables rotation.
func New(store *storage.Store, rotateEvery time.Duration) *Recorder {
	return &Recorder{
		store:           store,
		rotateEverySecs: int64(rotateEvery / time.Second),
	}
}

// Ingest consumes one sample. Storage errors are returned to the caller
// and leave the recorder ready for the next sample; losing one sample is
// the worst case.
func (r *Recorder) Ingest(sample monitor.Sample) error {
	key, segmentStartTS, trimCutoff, err := r.classify(sample)
	if err != nil {
		return err
	}

	// Once idleness is recognized, no already-written active row may
	// claim time past the moment idleness actually began. This has to
	// happen before any segment bookkeeping below.
	if trimCutoff != nil {
		if err := r.store.TruncateActiveSegmentsFrom(*trimCutoff); err != nil {
			return err
		}
	}

	if r.current != nil && r.current.key == key {
		r.current.endTS = sample.TS

		// Rotation bounds both the unflushed tail lost on a crash and
		// the row granularity for later querying.
		if r.rotateEverySecs > 0 && r.current.endTS-r.current.startTS >= r.rotateEverySecs {
			flushed := *r.current
			r.current = nil
			if err := r.flushSegment(&flushed); err != nil {
				return err
			}
			r.current = &openSegment{startTS: sample.TS, endTS: sample.TS, key: key}
		}
		return nil
	}

	if previous := r.current; previous != nil {
		r.current = nil

		// On an active->idle transition, clamp the closing active
		// segment so it stops where idleness began. The store-side
		// truncation already corrected flushed rows; this covers the
		// in-memory one.
		if key.isIdle && !previous.key.isIdle && previous.endTS > segmentStartTS {
			previous.endTS = segmentStartTS
		}
		if err := r.flushSegment(previous); err != nil {
			return err
		}
	}

	r.current = &openSegment{startTS: segmentStartTS, endTS: sample.TS, key: key}
	return nil
}

// FlushAndClose flushes the open segment, extending it to nowTS, and
// clears state. Called once at shutdown; a second call is a no-op.
func (r *Recorder) FlushAndClose(nowTS int64) error {
	if r.current == nil {
		return nil
	}

	current := r.current
	r.current = nil
	if nowTS > current.endTS {
		current.endTS = nowTS
	}
	return r.flushSegment(current)
}

// classify derives the segment key, the candidate start timestamp, and an
// optional truncation cutoff from one sample.
//
// For idle samples the start is back-dated by the reported idle time:
// that reconstructs when idleness actually began, not when it crossed the
// detection threshold.
func (r *Recorder) classify(sample monitor.Sample) (segmentKey, int64, *int64, error) {
	if sample.Kind == monitor.KindIdle {
		idleSecs := sample.IdleMS / 1000
		idleStartTS := sample.TS - idleSecs
		return idleKey(), idleStartTS, &idleStartTS, nil
	}

	window := sample.Window
	appID, err := r.store.UpsertApp(window.ExeName, window.ProcessPath)
	if err != nil {
		return segmentKey{}, 0, nil, err
	}

	var titleID sql.NullInt64
	if window.WindowTitle != "" {
		id, err := r.store.UpsertTitle(window.WindowTitle)
		if err != nil {
			return segmentKey{}, 0, nil, err
		}
		titleID = sql.NullInt64{Int64: id, Valid: true}
	}

	key := segmentKey{
		appID:   sql.NullInt64{Int64: appID, Valid: true},
		titleID: titleID,
		isIdle:  false,
		pid:     sql.NullInt64{Int64: window.PID, Valid: true},
	}
	if window.PIDCreateTime != nil {
		key.pidCreateTime = sql.NullInt64{Int64: *window.PIDCreateTime, Valid: true}
	}
	return key, sample.TS, nil, nil
}

// idleKey is the shared identity of all idle segments.
func idleKey() segmentKey {
	return segmentKey{isIdle: true}
}

func (r *Recorder) flushSegment(segment *openSegment) error {
	return r.store.InsertSegment(&storage.SegmentInsert{
		StartTS:       segment.startTS,
		EndTS:         segment.endTS,
		AppID:         segment.key.appID,
		TitleID:       segment.key.titleID,
		IsIdle:        segment.key.isIdle,
		PID:           segment.key.pid,
		PIDCreateTime: segment.key.pidCreateTime,
	})
}
