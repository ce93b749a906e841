// Package certificate implements the certificate_management step: certbot
// issuance for the Keycloak domain, strict validation of the result, rotating
// backups of the previous material, and a renewal cron job.
package certificate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fawz-io/kcmanage/internal/domain/step"
	"github.com/fawz-io/kcmanage/internal/ports"
)

// StepName is the progress-state identifier.
const StepName = "certificate_management"

// DefaultBackupMax bounds the rotating backup set when CERT_BACKUP_MAX is
// not configured.
const DefaultBackupMax = 5

const renewCron = "0 4 * * * root certbot renew --quiet --deploy-hook \"docker restart keycloak\"\n"

// Step obtains and validates the TLS certificate for the deployment.
type Step struct {
	runner    ports.CommandRunner
	logger    ports.Logger
	liveRoot  string // certbot live directory root
	backupDir string
	cronPath  string
	now       func() time.Time
}

// Option configures the step.
type Option func(*Step)

// WithLiveRoot overrides the certbot live directory root. Used in tests.
func WithLiveRoot(dir string) Option {
	return func(s *Step) { s.liveRoot = dir }
}

// WithBackupDir overrides the backup directory. Used in tests.
func WithBackupDir(dir string) Option {
	return func(s *Step) { s.backupDir = dir }
}

// WithCronPath overrides the renewal cron file path. Used in tests.
func WithCronPath(path string) Option {
	return func(s *Step) { s.cronPath = path }
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Step) { s.now = now }
}

// New creates the certificate management step rooted at installDir.
func New(runner ports.CommandRunner, logger ports.Logger, installDir string, opts ...Option) *Step {
	s := &Step{
		runner:    runner,
		logger:    logger,
		liveRoot:  "/etc/letsencrypt/live",
		backupDir: filepath.Join(installDir, "cert-backups"),
		cronPath:  "/etc/cron.d/kcmanage-cert-renew",
		now:       time.Now,
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
		step.RequiredVar("KEYCLOAK_DOMAIN", "Fully qualified domain for Keycloak", ""),
		step.RequiredVar("CERTBOT_EMAIL", "Email for Let's Encrypt registration and expiry notices", ""),
		step.Var("CERT_BACKUP_MAX", "Maximum number of certificate backups to keep", strconv.Itoa(DefaultBackupMax)),
	}
}

// CheckDependencies reports whether certbot is installed.
func (s *Step) CheckDependencies(context.Context) (bool, error) {
	return s.runner.LookPath("certbot"), nil
}

// InstallDependencies installs certbot from the distribution repositories.
func (s *Step) InstallDependencies(ctx context.Context) error {
	res, err := s.runner.Run(ctx, "apt-get", "install", "-y", "-qq", "certbot")
	if err != nil {
		return err
	}
	if !res.Success() {
		return fmt.Errorf("install certbot: %s", res.Stderr)
	}
	return nil
}

// Execute backs up any existing material, requests a certificate, validates
// it, and installs the renewal cron job. A certificate that fails any
// validation check is rejected and the step fails.
func (s *Step) Execute(ctx context.Context, env step.Environment) error {
	domain := env.Get("KEYCLOAK_DOMAIN")
	email := env.Get("CERTBOT_EMAIL")
	maxBackups := backupMax(env, s.logger)

	liveDir := filepath.Join(s.liveRoot, domain)
	material := certPaths(liveDir)

	if material.exists() {
		s.logger.Info("backing up existing certificate", ports.F("domain", domain))
		if _, err := s.backup(material, maxBackups); err != nil {
			return fmt.Errorf("backup existing certificate: %w", err)
		}
	}

	res, err := s.runner.Run(ctx, "certbot", "certonly",
		"--standalone",
		"--non-interactive",
		"--agree-tos",
		"-m", email,
		"-d", domain)
	if err != nil {
		return err
	}
	if !res.Success() {
		return fmt.Errorf("certbot certonly for %s: %s", domain, res.Stderr)
	}

	if err := s.validate(material, domain); err != nil {
		return err
	}

	if err := s.installRenewalCron(); err != nil {
		return err
	}

	s.logger.Info("certificate issued and validated", ports.F("domain", domain))
	return nil
}

// Cleanup restores the most recent backup over the live material.
func (s *Step) Cleanup(ctx context.Context) error {
	// Without the domain the live dir is unknown; restore targets the
	// directory the latest backup recorded.
	return s.restoreLatest()
}

func (s *Step) installRenewalCron() error {
	if err := os.MkdirAll(filepath.Dir(s.cronPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.cronPath, []byte(renewCron), 0o644)
}

func backupMax(env step.Environment, logger ports.Logger) int {
	raw, ok := env.Lookup("CERT_BACKUP_MAX")
	if !ok || raw == "" {
		return DefaultBackupMax
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		logger.Warn("invalid CERT_BACKUP_MAX, using default", ports.F("value", raw))
		return DefaultBackupMax
	}
	return n
}

// certMaterial locates the two files certbot manages for a domain.
type certMaterial struct {
	dir       string
	fullchain string
	privkey   string
}

func certPaths(liveDir string) certMaterial {
	return certMaterial{
		dir:       liveDir,
		fullchain: filepath.Join(liveDir, "fullchain.pem"),
		privkey:   filepath.Join(liveDir, "privkey.pem"),
	}
}

func (m certMaterial) exists() bool {
	_, errCert := os.Stat(m.fullchain)
	_, errKey := os.Stat(m.privkey)
	return errCert == nil && errKey == nil
}

// Ensure Step satisfies the interface.
var _ step.Step = (*Step)(nil)
