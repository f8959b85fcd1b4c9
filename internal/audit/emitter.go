package audit

import (
	"context"
	"crypto/rand"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/courseloom/platform/internal"
	"github.com/courseloom/platform/internal/transport"
)

// Store persists audit records and resolves actor roles for denormalized
// storage.
type Store interface {
	Insert(ctx context.Context, record *Record) error
	ActorRole(ctx context.Context, userID int64) (string, error)
}

// Emitter writes security-relevant events. Emit is fire-and-forget: a failed
// write is logged and counted but never reaches the caller, so callers can
// invoke it without affecting their own outcome.
type Emitter struct {
	store        Store
	logger       *slog.Logger
	writeTimeout time.Duration
}

func NewEmitter(store Store, logger *slog.Logger) *Emitter {
	return &Emitter{
		store:        store,
		logger:       logger,
		writeTimeout: 5 * time.Second,
	}
}

// Emit dispatches the write on a detached goroutine. The caller's context
// values survive but its cancellation does not, so an already-answered
// request cannot cancel its own audit trail.
func (e *Emitter) Emit(ctx context.Context, entry Entry) {
	detached := context.WithoutCancel(ctx)
	go e.write(detached, entry)
}

// EmitSync writes before returning, for paths that must have the row durably
// recorded before responding (login failures, permission denials). Failures
// are still swallowed.
func (e *Emitter) EmitSync(ctx context.Context, entry Entry) {
	e.write(ctx, entry)
}

func (e *Emitter) write(ctx context.Context, entry Entry) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("audit write panicked", "action", entry.Action, "panic", r)
			transport.RecordAuditDrop()
		}
	}()

	ctx, cancel := internal.WithTimeout(ctx, e.writeTimeout)
	defer cancel()

	record := &Record{
		ID:           ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String(),
		TenantID:     entry.TenantID,
		UserID:       entry.UserID,
		ActorRole:    entry.ActorRole,
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		Details:      entry.Details,
		Severity:     entry.Severity,
		IPAddress:    entry.IPAddress,
		UserAgent:    entry.UserAgent,
		CreatedAt:    time.Now().UTC(),
	}
	if record.Severity == "" {
		record.Severity = SeverityInfo
	}

	if record.ActorRole == "" && entry.UserID != nil {
		role, err := e.store.ActorRole(ctx, *entry.UserID)
		if err != nil {
			e.logger.Warn("audit: could not resolve actor role", "user_id", *entry.UserID, "error", err)
		} else {
			record.ActorRole = role
		}
	}

	if err := e.store.Insert(ctx, record); err != nil {
		e.logger.Error("audit write failed",
			"action", record.Action,
			"severity", record.Severity,
			"error", err)
		transport.RecordAuditDrop()
	}
}
