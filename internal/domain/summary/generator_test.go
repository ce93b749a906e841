package summary_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fawz-io/kcmanage/internal/adapters/logging"
	"github.com/fawz-io/kcmanage/internal/domain/step"
	"github.com/fawz-io/kcmanage/internal/domain/summary"
	"github.com/fawz-io/kcmanage/internal/ports"
	"github.com/fawz-io/kcmanage/internal/testutil/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand_SubstitutesAndDefaults(t *testing.T) {
	t.Parallel()

	out := summary.Expand("host=${KEYCLOAK_DOMAIN} admin=${KEYCLOAK_ADMIN_USER}", map[string]string{
		"KEYCLOAK_DOMAIN": "auth.example.com",
	})

	assert.Equal(t, "host=auth.example.com admin=n/a", out)
}

func TestGenerator_Emit(t *testing.T) {
	t.Parallel()

	installDir := t.TempDir()

	runner := mocks.NewCommandRunner()
	runner.AddResult("openssl", []string{"x509", "-enddate", "-noout", "-in", "/etc/letsencrypt/live/auth.example.com/fullchain.pem"},
		ports.CommandResult{ExitCode: 0, Stdout: "notAfter=Dec  1 12:00:00 2026 GMT\n"})
	runner.AddResult("docker", []string{"ps", "--filter", "label=io.fawz.kcmanage", "--format", "{{.Names}}\t{{.Status}}"},
		ports.CommandResult{ExitCode: 0, Stdout: "keycloak\tUp 2 hours (healthy)\nkeycloak-db\tUp 2 hours (healthy)\n"})

	backupDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(backupDir, "keycloak-20260825.sql.gz"), []byte("dump"), 0o600))

	gen := summary.NewGenerator(installDir, runner, logging.NewNopLogger()).
		WithClock(func() time.Time { return time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC) })

	// The environment carries exactly the names the pipeline steps declare.
	env := step.Environment{
		"KEYCLOAK_DOMAIN":         "auth.example.com",
		"KEYCLOAK_ADMIN_USER":     "admin",
		"KEYCLOAK_ADMIN_PASSWORD": "hunter2",
		"POSTGRES_DB":             "keycloak",
		"POSTGRES_USER":           "kcuser",
		"POSTGRES_PASSWORD":       "pg-secret",
		"GRAFANA_ADMIN_PASSWORD":  "gf-secret",
		"MONITORING_ALERT_EMAIL":  "alerts@example.com",
		"BACKUP_STORAGE_PATH":     backupDir,
		"BACKUP_SCHEDULE":         "0 3 * * *",
	}

	path, err := gen.Emit(context.Background(), env, []string{"system_preparation", "docker_setup"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(installDir, summary.FileName), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "Keycloak URL: https://auth.example.com")
	assert.Contains(t, content, "Admin user: admin")
	assert.Contains(t, content, "Database: keycloak")
	assert.Contains(t, content, "User: kcuser")
	assert.Contains(t, content, "Password: pg-secret")
	assert.Contains(t, content, "Alert email: alerts@example.com")
	assert.Contains(t, content, "Dec  1 12:00:00 2026 GMT")
	assert.Contains(t, content, "keycloak: Up 2 hours (healthy)")
	assert.Contains(t, content, "- system_preparation")
	assert.Contains(t, content, "hunter2", "summary file carries real secrets")
	assert.Contains(t, content, "Generated: 2026-08-25 10:00:00")
	assert.Contains(t, content, filepath.Join(installDir, "settings.env"))
	assert.Contains(t, content, filepath.Join(installDir, ".deploy-progress"))
	assert.Contains(t, content, filepath.Join(installDir, "kcmanage.log"))
	assert.NotContains(t, content, "n/a", "every placeholder a deploy resolves must render")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm(), "summary holds secrets")
}

func TestGenerator_Emit_DegradedProbes(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	runner.AddPrefixResult("openssl", ports.CommandResult{ExitCode: 1, Stderr: "unable to load certificate"})
	runner.AddPrefixResult("docker", ports.CommandResult{ExitCode: 1, Stderr: "cannot connect to the Docker daemon"})

	gen := summary.NewGenerator(t.TempDir(), runner, logging.NewNopLogger())

	path, err := gen.Emit(context.Background(), step.Environment{"KEYCLOAK_DOMAIN": "auth.example.com"}, nil)
	require.NoError(t, err, "probe failures degrade the document, not the run")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "certificate not readable")
	assert.Contains(t, string(data), "docker not reachable")
	assert.Contains(t, string(data), "none")
}
