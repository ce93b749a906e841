// Package backup implements the database_backup step: a cron-scheduled
// pg_dump with retention pruning, plus the immediate backup and restore
// operations behind the CLI commands.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fawz-io/kcmanage/internal/domain/step"
	"github.com/fawz-io/kcmanage/internal/ports"
)

// StepName is the progress-state identifier.
const StepName = "database_backup"

// Defaults for the backup variables.
const (
	DefaultSchedule      = "0 3 * * *"
	DefaultRetentionDays = 30
)

const postgresContainer = "keycloak-postgres"

// Step installs the scheduled backup job and carries the immediate
// backup/restore operations.
type Step struct {
	runner     ports.CommandRunner
	logger     ports.Logger
	installDir string
	cronPath   string
	binaryPath string
	now        func() time.Time
}

// Option configures the step.
type Option func(*Step)

// WithCronPath overrides the cron file path. Used in tests.
func WithCronPath(path string) Option {
	return func(s *Step) { s.cronPath = path }
}

// WithBinaryPath overrides the path the cron line invokes.
func WithBinaryPath(path string) Option {
	return func(s *Step) { s.binaryPath = path }
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Step) { s.now = now }
}

// New creates the backup step rooted at installDir.
func New(runner ports.CommandRunner, logger ports.Logger, installDir string, opts ...Option) *Step {
	s := &Step{
		runner:     runner,
		logger:     logger,
		installDir: installDir,
		cronPath:   "/etc/cron.d/kcmanage-db-backup",
		binaryPath: "/usr/local/bin/kcmanage",
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements step.Step.
func (s *Step) Name() string { return StepName }

// CanCleanup implements step.Step.
func (s *Step) CanCleanup() bool { return true }

// RequiredVariables implements step.Step.
func (s *Step) RequiredVariables() []step.VariableSpec {
	return []step.VariableSpec{
		step.RequiredVar("BACKUP_STORAGE_PATH", "Directory for database dumps",
			filepath.Join(s.installDir, "backups")),
		step.RequiredVar("BACKUP_SCHEDULE", "Cron schedule for database backups", DefaultSchedule),
		step.RequiredVar("BACKUP_RETENTION_DAYS", "Days to keep database dumps",
			strconv.Itoa(DefaultRetentionDays)),
		step.RequiredVar("POSTGRES_DB", "PostgreSQL database name", "keycloak"),
		step.RequiredVar("POSTGRES_USER", "PostgreSQL user", "keycloak"),
	}
}

// CheckDependencies verifies the docker CLI is available; pg_dump runs
// inside the postgres container.
func (s *Step) CheckDependencies(context.Context) (bool, error) {
	if !s.runner.LookPath("docker") {
		return false, step.ToolUnavailable("docker", "run the docker_setup step first")
	}
	return true, nil
}

// InstallDependencies implements step.Step.
func (s *Step) InstallDependencies(context.Context) error { return nil }

// Execute creates the storage directory and installs the cron job. The job
// invokes this binary's backup command, so scheduled and manual backups
// share one code path.
func (s *Step) Execute(_ context.Context, env step.Environment) error {
	storage := env.Get("BACKUP_STORAGE_PATH")
	if err := os.MkdirAll(storage, 0o700); err != nil {
		return err
	}

	line := fmt.Sprintf("%s root %s backup >> /var/log/kcmanage-backup.log 2>&1\n",
		env.Get("BACKUP_SCHEDULE"), s.binaryPath)

	if err := os.MkdirAll(filepath.Dir(s.cronPath), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(s.cronPath, []byte(line), 0o644); err != nil {
		return err
	}

	s.logger.Info("backup schedule installed",
		ports.F("schedule", env.Get("BACKUP_SCHEDULE")),
		ports.F("storage", storage))
	return nil
}

// Cleanup removes the cron job. Existing dumps stay.
func (s *Step) Cleanup(context.Context) error {
	if err := os.Remove(s.cronPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// RunNow takes an immediate dump into the storage path and prunes dumps
// older than the retention period.
func (s *Step) RunNow(ctx context.Context, env step.Environment) (string, error) {
	storage := env.Get("BACKUP_STORAGE_PATH")
	if err := os.MkdirAll(storage, 0o700); err != nil {
		return "", err
	}

	res, err := s.runner.Run(ctx, "docker", "exec", postgresContainer,
		"pg_dump", "-U", env.Get("POSTGRES_USER"), env.Get("POSTGRES_DB"))
	if err != nil {
		return "", err
	}
	if !res.Success() {
		return "", fmt.Errorf("%w: pg_dump: %s", step.ErrExecutionFailed, res.Stderr)
	}

	name := fmt.Sprintf("%s-%s.sql", env.Get("POSTGRES_DB"), s.now().Format("20060102T150405"))
	path := filepath.Join(storage, name)
	if err := os.WriteFile(path, []byte(res.Stdout), 0o600); err != nil {
		return "", err
	}

	if err := s.prune(storage, retentionDays(env, s.logger)); err != nil {
		return "", err
	}

	s.logger.Info("database backup written", ports.F("path", path))
	return path, nil
}

// Restore stops keycloak, replays the dump with psql, and starts keycloak
// again.
func (s *Step) Restore(ctx context.Context, env step.Environment, dumpPath string) error {
	dump, err := os.ReadFile(dumpPath)
	if err != nil {
		return fmt.Errorf("read dump: %w", err)
	}

	res, err := s.runner.Run(ctx, "docker", "stop", "keycloak")
	if err != nil {
		return err
	}
	if !res.Success() {
		s.logger.Warn("keycloak stop before restore failed",
			ports.F("stderr", strings.TrimSpace(res.Stderr)))
	}

	res, err = s.runner.RunInput(ctx, string(dump), "docker", "exec", "-i", postgresContainer,
		"psql", "-U", env.Get("POSTGRES_USER"), "-d", env.Get("POSTGRES_DB"))
	if err != nil {
		return err
	}
	if !res.Success() {
		return fmt.Errorf("%w: psql restore: %s", step.ErrExecutionFailed, res.Stderr)
	}

	res, err = s.runner.Run(ctx, "docker", "start", "keycloak")
	if err != nil {
		return err
	}
	if !res.Success() {
		return fmt.Errorf("restart keycloak after restore: %s", res.Stderr)
	}

	s.logger.Info("database restored", ports.F("dump", dumpPath))
	return nil
}

// prune removes dumps older than the retention period, by mtime.
func (s *Step) prune(storage string, days int) error {
	cutoff := s.now().Add(-time.Duration(days) * 24 * time.Hour)

	entries, err := os.ReadDir(storage)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return err
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(storage, e.Name())); err != nil {
				return err
			}
			s.logger.Debug("pruned old dump", ports.F("dump", e.Name()))
		}
	}
	return nil
}

func retentionDays(env step.Environment, logger ports.Logger) int {
	raw, ok := env.Lookup("BACKUP_RETENTION_DAYS")
	if !ok || raw == "" {
		return DefaultRetentionDays
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		logger.Warn("invalid BACKUP_RETENTION_DAYS, using default", ports.F("value", raw))
		return DefaultRetentionDays
	}
	return n
}

// Ensure Step satisfies the interface.
var _ step.Step = (*Step)(nil)
