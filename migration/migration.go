// Package migration runs one-shot setup scripts against a freshly opened
// docstore database and always closes the client afterwards.
package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/jacentio/docstore/store"
)

// ErrInvalidScript is returned when a script has no ticket or no body, or
// when two scripts share a ticket.
var ErrInvalidScript = errors.New("migration: invalid script")

// Script is one idempotent migration step.
type Script struct {
	// Ticket identifies the change request the script belongs to.
	Ticket string

	// Description is logged when the script runs.
	Description string

	// Order sorts scripts before they run, lowest first. Scripts with the
	// same order keep the order they were passed in.
	Order int

	// RunAt lists the environments the script runs in. Empty means all.
	RunAt []string

	// Run performs the migration. It must be safe to run more than once.
	Run func(ctx context.Context, db *store.Database) error
}

// runsIn reports whether s applies to env. A runner without an environment
// runs every script.
func (s Script) runsIn(env string) bool {
	return env == "" || len(s.RunAt) == 0 || slices.Contains(s.RunAt, env)
}

// Runner opens a client, runs scripts and closes the client.
type Runner struct {
	client      *store.Client
	config      store.Config
	logger      *slog.Logger
	environment string
}

// NewRunner creates a runner that opens client with cfg. If logger is nil,
// slog.Default() is used.
func NewRunner(client *store.Client, cfg store.Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		client: client,
		config: cfg,
		logger: logger,
	}
}

// SetEnvironment restricts the runner to scripts whose RunAt includes env,
// e.g. "dev", "uat", "staging" or "prod".
func (r *Runner) SetEnvironment(env string) {
	r.environment = env
}

// Migrate runs scripts sorted by Order and stops at the first failure. The client
// is closed on every path; errors are logged and returned.
func (r *Runner) Migrate(ctx context.Context, scripts ...Script) (err error) {
	runID := uuid.NewString()
	logger := r.logger.With("runID", runID)
	if r.environment != "" {
		logger = logger.With("environment", r.environment)
	}

	if err := validateScripts(scripts); err != nil {
		logger.Error("migration rejected", "error", err)
		return err
	}

	db, err := r.client.Open(ctx, r.config)
	if err != nil {
		logger.Error("migration failed to open database", "error", err)
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if cerr := r.client.Close(); cerr != nil {
			logger.Error("failed to close database", "error", cerr)
			if err == nil {
				err = cerr
			}
		}
	}()

	ordered := slices.Clone(scripts)
	slices.SortStableFunc(ordered, func(a, b Script) int { return a.Order - b.Order })

	start := time.Now()
	logger.Info("migration started", "database", db.Name(), "scripts", len(scripts))
	for _, s := range ordered {
		if !s.runsIn(r.environment) {
			logger.Info("skipping script", "ticket", s.Ticket, "runAt", s.RunAt)
			continue
		}
		logger.Info("running script", "ticket", s.Ticket, "description", s.Description)
		if err := s.Run(ctx, db); err != nil {
			logger.Error("migration failed",
				"ticket", s.Ticket,
				"error", err,
			)
			return fmt.Errorf("script %s: %w", s.Ticket, err)
		}
	}
	logger.Info("migration completed",
		"database", db.Name(),
		"scripts", len(scripts),
		"elapsed", time.Since(start),
	)
	return nil
}

func validateScripts(scripts []Script) error {
	seen := make(map[string]struct{}, len(scripts))
	for i, s := range scripts {
		if s.Ticket == "" {
			return fmt.Errorf("%w: script %d has no ticket", ErrInvalidScript, i)
		}
		if s.Run == nil {
			return fmt.Errorf("%w: script %s has no body", ErrInvalidScript, s.Ticket)
		}
		if _, dup := seen[s.Ticket]; dup {
			return fmt.Errorf("%w: duplicate ticket %s", ErrInvalidScript, s.Ticket)
		}
		seen[s.Ticket] = struct{}{}
	}
	return nil
}
