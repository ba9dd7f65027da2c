package migrate

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"botsupport/internal/db"
	"botsupport/internal/secret"
)

type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// State is the lifecycle of the most recent apply attempt.
type State string

const (
	StateIdle     State = "idle"
	StateApplying State = "applying"
	StateApplied  State = "applied"
	StateFailed   State = "failed"
)

// Result is the success outcome of Apply.
type Result struct {
	RunID  uuid.UUID `json:"run_id"`
	Tables []string  `json:"tables"`
	Count  int       `json:"count"`
}

type Options struct {
	// Schema is the catalog schema to verify; "public" when empty.
	Schema string
	// Prefix namespaces this application's tables within the schema.
	Prefix string
	// Observe, when set, receives the outcome kind ("" on success) and the
	// duration of every attempt that reached the store.
	Observe func(kind Kind, elapsed time.Duration)
}

// Applier runs a migration script against a target store and verifies the
// resulting catalog. It holds no connection between calls.
type Applier struct {
	open    db.OpenFunc
	logger  Logger
	schema  string
	prefix  string
	observe func(Kind, time.Duration)

	mu    sync.Mutex
	state State
}

func New(open db.OpenFunc, logger Logger, opts Options) *Applier {
	if opts.Schema == "" {
		opts.Schema = "public"
	}
	observe := opts.Observe
	if observe == nil {
		observe = func(Kind, time.Duration) {}
	}
	return &Applier{
		open:    open,
		logger:  logger,
		schema:  opts.Schema,
		prefix:  opts.Prefix,
		observe: observe,
		state:   StateIdle,
	}
}

func (a *Applier) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Applier) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// Apply executes script as one batch over a connection scoped to this call,
// then lists the prefixed tables present in the catalog. It returns either a
// Result or an *Error, never both. No retries are attempted.
func (a *Applier) Apply(ctx context.Context, descriptor string, script Script) (*Result, error) {
	if strings.TrimSpace(descriptor) == "" {
		return nil, &Error{Kind: KindConfigMissing, Message: "no database connection string configured"}
	}
	if strings.TrimSpace(script.Body) == "" {
		return nil, &Error{Kind: KindOtherSQL, Message: "migration script is empty"}
	}

	runID := uuid.New()
	start := time.Now()
	state := StateFailed
	a.setState(StateApplying)
	defer func() { a.setState(state) }()

	a.logger.Info("migration apply started",
		"run_id", runID,
		"script", script.Name,
		"provider", db.ProviderFor(descriptor),
		"target", secret.Redact(descriptor),
	)

	conn, err := a.open(ctx, descriptor)
	if err != nil {
		return nil, a.fail(runID, start, &Error{Kind: KindConnection, Message: err.Error(), Err: err})
	}
	defer func() {
		if err := conn.Close(); err != nil {
			a.logger.Error("close migration connection", "run_id", runID, "error", err)
		}
	}()

	if err := conn.ExecScript(ctx, script.Body); err != nil {
		failure := &Error{Kind: Classify(err), Message: err.Error(), Err: err}
		if failure.Kind == KindAlreadyExists {
			if tables, listErr := conn.ListTables(ctx, a.schema, a.prefix); listErr == nil {
				failure.Tables = tables
			}
		}
		return nil, a.fail(runID, start, failure)
	}

	tables, err := conn.ListTables(ctx, a.schema, a.prefix)
	if err != nil {
		kind := Classify(err)
		if kind == KindAlreadyExists {
			kind = KindOtherSQL
		}
		return nil, a.fail(runID, start, &Error{Kind: kind, Message: "verify catalog: " + err.Error(), Err: err})
	}

	state = StateApplied
	elapsed := time.Since(start)
	a.observe("", elapsed)
	a.logger.Info("migration applied",
		"run_id", runID,
		"script", script.Name,
		"tables", len(tables),
		"duration_ms", elapsed.Milliseconds(),
	)
	return &Result{RunID: runID, Tables: tables, Count: len(tables)}, nil
}

func (a *Applier) fail(runID uuid.UUID, start time.Time, e *Error) *Error {
	elapsed := time.Since(start)
	a.observe(e.Kind, elapsed)
	a.logger.Error("migration apply failed",
		"run_id", runID,
		"kind", e.Kind,
		"error", e.Message,
		"duration_ms", elapsed.Milliseconds(),
	)
	return e
}
