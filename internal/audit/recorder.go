package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"auditdesk.org/internal/ids"
	"auditdesk.org/internal/obs"
)

// ErrWriteFailure marks a failed audit append. A mutation that sees it
// must not commit.
var ErrWriteFailure = errors.New("audit: write failure")

// WriteError wraps the underlying store failure for one action.
type WriteError struct {
	Action Action
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("audit: record %s: %v", e.Action, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

func (e *WriteError) Is(target error) bool { return target == ErrWriteFailure }

// Appender persists records. Inside a unit of work it is the
// transaction-scoped audit store.
type Appender interface {
	Append(ctx context.Context, rec *Record) error
}

// Recorder builds and appends audit records.
type Recorder struct {
	now   func() time.Time
	newID func() string
	last  atomic.Int64
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithRecorderClock injects the time source.
func WithRecorderClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIDGenerator overrides record id generation.
func WithIDGenerator(fn func() string) RecorderOption {
	return func(r *Recorder) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// NewRecorder returns a Recorder with ULID ids and the wall clock.
func NewRecorder(opts ...RecorderOption) *Recorder {
	r := &Recorder{now: time.Now, newID: ids.New}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends one record through dst and returns it. Any failure is a
// *WriteError.
func (r *Recorder) Record(ctx context.Context, dst Appender, action Action, performedBy, target string) (*Record, error) {
	rec, err := r.append(ctx, dst, action, performedBy, target)
	if err != nil {
		obs.AuditRecorded(string(action), "failed")
		return nil, err
	}
	obs.AuditRecorded(string(action), "written")
	return rec, nil
}

// RecordRead records a read-only operation. Failures are logged and
// counted as dropped but never reach the caller.
func (r *Recorder) RecordRead(ctx context.Context, dst Appender, action Action, performedBy, target string) {
	if _, err := r.append(ctx, dst, action, performedBy, target); err != nil {
		obs.AuditRecorded(string(action), "dropped")
		obs.Logger().WithFields(logrus.Fields{
			"action":       string(action),
			"performed_by": performedBy,
			"target":       target,
			"error":        err.Error(),
		}).Warn("audit record for read dropped")
		return
	}
	obs.AuditRecorded(string(action), "written")
}

func (r *Recorder) append(ctx context.Context, dst Appender, action Action, performedBy, target string) (*Record, error) {
	rec, err := r.build(action, performedBy, target)
	if err != nil {
		return nil, &WriteError{Action: action, Err: err}
	}
	if err := dst.Append(ctx, rec); err != nil {
		return nil, &WriteError{Action: action, Err: err}
	}
	_ = LogEvent(ctx, string(action), map[string]any{
		"audit_id":     rec.ID,
		"performed_by": rec.PerformedBy,
		"target":       rec.TargetResource,
	})
	return rec, nil
}

func (r *Recorder) build(action Action, performedBy, target string) (*Record, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("unknown action %q", action)
	}
	if strings.TrimSpace(performedBy) == "" {
		return nil, errors.New("performedBy is required")
	}
	if strings.TrimSpace(target) == "" {
		return nil, errors.New("targetResource is required")
	}
	return &Record{
		ID:             r.newID(),
		Action:         action,
		PerformedBy:    performedBy,
		PerformedAt:    r.stamp(),
		TargetResource: target,
	}, nil
}

// stamp returns the current time, never earlier than the previous stamp
// handed out by this recorder.
func (r *Recorder) stamp() time.Time {
	now := r.now().UTC().Truncate(time.Microsecond).UnixNano()
	for {
		last := r.last.Load()
		next := now
		if next < last {
			next = last
		}
		if r.last.CompareAndSwap(last, next) {
			return time.Unix(0, next).UTC()
		}
	}
}
