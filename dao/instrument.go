package dao

import (
	"context"
	"log/slog"
	"time"

	"github.com/Skryldev/people/internal/errors"
	"github.com/Skryldev/people/models"
)

// OperationRecorder receives one call per store operation.
type OperationRecorder interface {
	RecordOperation(backend, operation, outcome string, d time.Duration)
}

// Instrumented decorates a Store with per-operation metrics and debug logs.
// It always implements Counter, falling back to ReadAll when the wrapped
// store cannot count on its own.
type Instrumented struct {
	inner    Store
	kind     Kind
	recorder OperationRecorder
	logger   *slog.Logger
}

// Instrument wraps s. A nil recorder only logs.
func Instrument(s Store, kind Kind, recorder OperationRecorder, logger *slog.Logger) *Instrumented {
	if logger == nil {
		logger = slog.Default()
	}
	return &Instrumented{inner: s, kind: kind, recorder: recorder, logger: logger}
}

// Unwrap returns the decorated store.
func (s *Instrumented) Unwrap() Store { return s.inner }

func (s *Instrumented) Read(ctx context.Context, nif string) (p *models.Person, err error) {
	defer s.observe(ctx, "read", time.Now(), &err)
	return s.inner.Read(ctx, nif)
}

func (s *Instrumented) ReadAll(ctx context.Context) (people []*models.Person, err error) {
	defer s.observe(ctx, "read_all", time.Now(), &err)
	return s.inner.ReadAll(ctx)
}

func (s *Instrumented) Insert(ctx context.Context, p *models.Person) (err error) {
	defer s.observe(ctx, "insert", time.Now(), &err)
	return s.inner.Insert(ctx, p)
}

func (s *Instrumented) Update(ctx context.Context, p *models.Person) (err error) {
	defer s.observe(ctx, "update", time.Now(), &err)
	return s.inner.Update(ctx, p)
}

func (s *Instrumented) Delete(ctx context.Context, nif string) (err error) {
	defer s.observe(ctx, "delete", time.Now(), &err)
	return s.inner.Delete(ctx, nif)
}

func (s *Instrumented) DeleteAll(ctx context.Context) (err error) {
	defer s.observe(ctx, "delete_all", time.Now(), &err)
	return s.inner.DeleteAll(ctx)
}

func (s *Instrumented) Count(ctx context.Context) (n int, err error) {
	defer s.observe(ctx, "count", time.Now(), &err)
	if c, ok := s.inner.(Counter); ok {
		return c.Count(ctx)
	}
	people, err := s.inner.ReadAll(ctx)
	return len(people), err
}

func (s *Instrumented) Close() error { return s.inner.Close() }

func (s *Instrumented) observe(ctx context.Context, op string, start time.Time, errp *error) {
	elapsed := time.Since(start)
	outcome := outcomeOf(*errp)
	if s.recorder != nil {
		s.recorder.RecordOperation(string(s.kind), op, outcome, elapsed)
	}
	s.logger.DebugContext(ctx, "store operation",
		slog.String("backend", string(s.kind)),
		slog.String("op", op),
		slog.String("outcome", outcome),
		slog.Duration("elapsed", elapsed),
	)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrDuplicate):
		return "duplicate"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

var (
	_ Store   = (*Instrumented)(nil)
	_ Counter = (*Instrumented)(nil)
)
