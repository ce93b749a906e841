// Package summary generates the installation summary written at the end of
// a fully successful deployment. The document is write-only: it is produced
// for the operator and never parsed back.
package summary

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fawz-io/kcmanage/internal/domain/step"
	"github.com/fawz-io/kcmanage/internal/ports"
)

// FileName is the summary file name inside the installation directory.
const FileName = "installation-summary.md"

// Generator assembles the summary from the resolved environment and live
// probes (certificate expiry, container status, last backup).
type Generator struct {
	installDir string
	runner     ports.CommandRunner
	logger     ports.Logger
	now        func() time.Time
}

// NewGenerator creates a Generator writing into installDir.
func NewGenerator(installDir string, runner ports.CommandRunner, logger ports.Logger) *Generator {
	return &Generator{
		installDir: installDir,
		runner:     runner,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the time source. Used in tests.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Emit renders the summary and writes it with owner-only permissions, since
// it contains the admin and database passwords. It returns the file path.
func (g *Generator) Emit(ctx context.Context, env step.Environment, completed []string) (string, error) {
	vars := make(map[string]string, len(env)+8)
	for k, v := range env {
		vars[k] = v
	}

	vars["INSTALL_DATE"] = g.now().Format("2006-01-02 15:04:05")
	vars["RUN_ID"] = uuid.NewString()
	vars["INSTALL_DIR"] = g.installDir
	vars["SSL_EXPIRY_DATE"] = g.probeCertExpiry(ctx, env.Get("KEYCLOAK_DOMAIN"))
	vars["SERVICE_STATUS"] = g.probeServices(ctx)
	vars["LAST_BACKUP"] = g.probeLastBackup(env.Get("BACKUP_STORAGE_PATH"))
	vars["COMPLETED_STEPS"] = formatCompleted(completed)

	content := Expand(markdownTemplate, vars)

	if err := os.MkdirAll(g.installDir, 0o755); err != nil {
		return "", fmt.Errorf("create install dir: %w", err)
	}

	path := filepath.Join(g.installDir, FileName)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}

	g.logger.Info("installation summary written", ports.F("path", path))
	return path, nil
}

// Expand substitutes ${NAME} placeholders from vars. Unknown names render
// as "n/a" rather than leaking raw placeholders into the document.
func Expand(template string, vars map[string]string) string {
	return os.Expand(template, func(name string) string {
		if v, ok := vars[name]; ok && v != "" {
			return v
		}
		return "n/a"
	})
}

func (g *Generator) probeCertExpiry(ctx context.Context, domain string) string {
	if domain == "" {
		return ""
	}
	certPath := filepath.Join("/etc/letsencrypt/live", domain, "fullchain.pem")
	result, err := g.runner.Run(ctx, "openssl", "x509", "-enddate", "-noout", "-in", certPath)
	if err != nil || !result.Success() {
		return "certificate not readable"
	}
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(result.Stdout), "notAfter="))
}

func (g *Generator) probeServices(ctx context.Context) string {
	result, err := g.runner.Run(ctx, "docker", "ps",
		"--filter", "label=io.fawz.kcmanage",
		"--format", "{{.Names}}\t{{.Status}}")
	if err != nil || !result.Success() {
		return "docker not reachable"
	}

	out := strings.TrimSpace(result.Stdout)
	if out == "" {
		return "no managed containers running"
	}

	var b strings.Builder
	for _, line := range strings.Split(out, "\n") {
		b.WriteString("- ")
		b.WriteString(strings.ReplaceAll(line, "\t", ": "))
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}

func (g *Generator) probeLastBackup(storagePath string) string {
	if storagePath == "" {
		return ""
	}

	entries, err := os.ReadDir(storagePath)
	if err != nil {
		return "backup directory not found"
	}

	var latest time.Time
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
	}

	if latest.IsZero() {
		return "no backups yet"
	}
	return latest.Format("2006-01-02 15:04:05")
}

func formatCompleted(completed []string) string {
	if len(completed) == 0 {
		return "none"
	}
	var b strings.Builder
	for _, name := range completed {
		b.WriteString("- ")
		b.WriteString(name)
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}
