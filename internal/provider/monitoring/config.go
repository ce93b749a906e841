package monitoring

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/fawz-io/kcmanage/internal/domain/step"
	"github.com/fawz-io/kcmanage/internal/ports"
)

type prometheusConfig struct {
	Global        globalConfig   `yaml:"global"`
	ScrapeConfigs []scrapeConfig `yaml:"scrape_configs"`
}

type globalConfig struct {
	ScrapeInterval string `yaml:"scrape_interval"`
}

type scrapeConfig struct {
	JobName       string         `yaml:"job_name"`
	MetricsPath   string         `yaml:"metrics_path,omitempty"`
	StaticConfigs []staticConfig `yaml:"static_configs"`
}

type staticConfig struct {
	Targets []string `yaml:"targets"`
}

type grafanaDatasources struct {
	APIVersion  int                 `yaml:"apiVersion"`
	Datasources []grafanaDatasource `yaml:"datasources"`
}

type grafanaDatasource struct {
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	Access    string `yaml:"access"`
	URL       string `yaml:"url"`
	IsDefault bool   `yaml:"isDefault"`
}

type grafanaNotifiers struct {
	Notifiers []grafanaNotifier `yaml:"notifiers"`
}

type grafanaNotifier struct {
	Name     string         `yaml:"name"`
	Type     string         `yaml:"type"`
	UID      string         `yaml:"uid"`
	Settings map[string]any `yaml:"settings"`
}

// renderConfig writes prometheus.yml and the Grafana provisioning tree,
// backing up any file it is about to overwrite.
func (s *Step) renderConfig(env step.Environment) error {
	prom := prometheusConfig{
		Global: globalConfig{ScrapeInterval: "15s"},
		ScrapeConfigs: []scrapeConfig{
			{
				JobName:       "keycloak",
				MetricsPath:   "/metrics",
				StaticConfigs: []staticConfig{{Targets: []string{"keycloak:9000"}}},
			},
			{
				JobName:       "postgres",
				StaticConfigs: []staticConfig{{Targets: []string{"postgres-exporter:9187"}}},
			},
			{
				JobName:       "node",
				StaticConfigs: []staticConfig{{Targets: []string{"node-exporter:9100"}}},
			},
		},
	}
	if err := s.writeYAML(filepath.Join(s.configDir, "prometheus.yml"), prom); err != nil {
		return err
	}

	datasources := grafanaDatasources{
		APIVersion: 1,
		Datasources: []grafanaDatasource{{
			Name:      "Prometheus",
			Type:      "prometheus",
			Access:    "proxy",
			URL:       "http://" + PrometheusContainer + ":9090",
			IsDefault: true,
		}},
	}
	dsPath := filepath.Join(s.configDir, "grafana", "provisioning", "datasources", "datasource.yml")
	if err := s.writeYAML(dsPath, datasources); err != nil {
		return err
	}

	notifiers := grafanaNotifiers{}
	if email := env.Get("MONITORING_ALERT_EMAIL"); email != "" {
		notifiers.Notifiers = append(notifiers.Notifiers, grafanaNotifier{
			Name:     "Email",
			Type:     "email",
			UID:      "kcmanage-email",
			Settings: map[string]any{"addresses": email},
		})
	}
	if url := env.Get("MONITORING_WEBHOOK_URL"); url != "" {
		notifiers.Notifiers = append(notifiers.Notifiers, grafanaNotifier{
			Name:     "Webhook",
			Type:     "webhook",
			UID:      "kcmanage-webhook",
			Settings: map[string]any{"url": url},
		})
	}
	if len(notifiers.Notifiers) > 0 {
		nfPath := filepath.Join(s.configDir, "grafana", "provisioning", "notifiers", "notifiers.yml")
		if err := s.writeYAML(nfPath, notifiers); err != nil {
			return err
		}
	}

	return nil
}

func (s *Step) writeYAML(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := backupFile(path); err != nil {
		return err
	}

	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}

	s.logger.Debug("wrote monitoring config", ports.F("path", path))
	return nil
}

// backupFile keeps a single .bak copy of a file about to be overwritten.
func backupFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return os.WriteFile(path+".bak", data, 0o644)
}
