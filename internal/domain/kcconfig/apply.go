package kcconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fawz-io/kcmanage/internal/domain/step"
	"github.com/fawz-io/kcmanage/internal/ports"
)

const (
	kcadmPath = "/opt/keycloak/bin/kcadm.sh"
	serverURL = "http://localhost:8080"
)

// Applier pushes a planned document set into a running Keycloak container
// through kcadm. Every kcadm invocation goes through `docker exec -i` so the
// host never needs the admin CLI installed.
type Applier struct {
	runner    ports.CommandRunner
	logger    ports.Logger
	container string
	realm     string
	adminUser string
	adminPass string
}

// ApplierOption configures an Applier.
type ApplierOption func(*Applier)

// WithContainer overrides the Keycloak container name.
func WithContainer(name string) ApplierOption {
	return func(a *Applier) { a.container = name }
}

// NewApplier creates an Applier targeting the given realm with the given
// admin credentials.
func NewApplier(runner ports.CommandRunner, logger ports.Logger, realm, adminUser, adminPass string, opts ...ApplierOption) *Applier {
	a := &Applier{
		runner:    runner,
		logger:    logger,
		container: "keycloak",
		realm:     realm,
		adminUser: adminUser,
		adminPass: adminPass,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply logs in and applies each document in order. The first failure stops
// the run: later documents may depend on earlier ones having landed.
func (a *Applier) Apply(ctx context.Context, docs []Document) error {
	if err := a.login(ctx); err != nil {
		return err
	}

	for _, doc := range docs {
		a.logger.Info("applying document", ports.F("kind", string(doc.Kind)))

		var err error
		switch doc.Kind {
		case KindRealm:
			err = a.applyRealm(ctx, doc)
		case KindSecurity, KindEvents, KindThemes:
			err = a.updateRealm(ctx, doc.Body)
		case KindMonitoring:
			err = a.applyMonitoring(ctx, doc)
		case KindSMTP:
			err = a.updateRealm(ctx, map[string]any{"smtpServer": doc.Body})
		case KindClients:
			err = a.applyClients(ctx, doc)
		case KindRoles:
			err = a.applyRoles(ctx, doc)
		case KindAuthentication:
			err = a.applyAuthentication(ctx, doc)
		default:
			err = fmt.Errorf("no apply handler for document kind %s", doc.Kind)
		}

		if err != nil {
			return fmt.Errorf("apply %s: %w", doc.Kind, err)
		}
	}

	return nil
}

func (a *Applier) login(ctx context.Context) error {
	res, err := a.kcadm(ctx, "",
		"config", "credentials",
		"--server", serverURL,
		"--realm", "master",
		"--user", a.adminUser,
		"--password", a.adminPass)
	if err != nil {
		return err
	}
	if !res.Success() {
		return fmt.Errorf("%w: kcadm login failed: %s", step.ErrExecutionFailed, res.Stderr)
	}
	return nil
}

// applyRealm creates the realm, falling back to an update when it already
// exists so re-running configuration is idempotent.
func (a *Applier) applyRealm(ctx context.Context, doc Document) error {
	payload, err := json.Marshal(doc.Body)
	if err != nil {
		return err
	}

	res, err := a.kcadm(ctx, string(payload), "create", "realms", "-f", "-")
	if err != nil {
		return err
	}
	if res.Success() {
		return nil
	}
	if !alreadyExists(res) {
		return fmt.Errorf("%w: create realm: %s", step.ErrExecutionFailed, res.Stderr)
	}

	a.logger.Debug("realm exists, updating", ports.F("realm", a.realm))
	return a.updateRealm(ctx, doc.Body)
}

func (a *Applier) updateRealm(ctx context.Context, body map[string]any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	res, err := a.kcadm(ctx, string(payload), "update", "realms/"+a.realm, "-f", "-")
	if err != nil {
		return err
	}
	if !res.Success() {
		return fmt.Errorf("%w: update realm %s: %s", step.ErrExecutionFailed, a.realm, res.Stderr)
	}
	return nil
}

// applyMonitoring maps the monitoring document onto realm attributes. The
// actual metrics and health endpoints are enabled on the server at container
// start; the attributes only record what the deployment expects.
func (a *Applier) applyMonitoring(ctx context.Context, doc Document) error {
	attrs := make(map[string]any, len(doc.Body))
	for k, v := range doc.Body {
		attrs[k] = fmt.Sprintf("%v", v)
	}
	return a.updateRealm(ctx, map[string]any{"attributes": attrs})
}

func (a *Applier) applyClients(ctx context.Context, doc Document) error {
	clients, _ := doc.Body["clients"].([]any)

	for _, raw := range clients {
		client, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		clientID, _ := client["clientId"].(string)

		payload, err := json.Marshal(client)
		if err != nil {
			return err
		}

		res, err := a.kcadm(ctx, string(payload), "create", "clients", "-r", a.realm, "-f", "-")
		if err != nil {
			return err
		}
		if res.Success() {
			continue
		}
		if !alreadyExists(res) {
			return fmt.Errorf("%w: create client %s: %s", step.ErrExecutionFailed, clientID, res.Stderr)
		}

		id, err := a.clientUUID(ctx, clientID)
		if err != nil {
			return err
		}
		res, err = a.kcadm(ctx, string(payload), "update", "clients/"+id, "-r", a.realm, "-f", "-")
		if err != nil {
			return err
		}
		if !res.Success() {
			return fmt.Errorf("%w: update client %s: %s", step.ErrExecutionFailed, clientID, res.Stderr)
		}
	}

	return nil
}

// clientUUID resolves a clientId to the internal id kcadm needs for updates.
func (a *Applier) clientUUID(ctx context.Context, clientID string) (string, error) {
	res, err := a.kcadm(ctx, "",
		"get", "clients", "-r", a.realm,
		"-q", "clientId="+clientID,
		"--fields", "id", "--format", "csv", "--noquotes")
	if err != nil {
		return "", err
	}
	if !res.Success() {
		return "", fmt.Errorf("%w: look up client %s: %s", step.ErrExecutionFailed, clientID, res.Stderr)
	}

	id := strings.TrimSpace(res.Stdout)
	if id == "" {
		return "", fmt.Errorf("%w: client %s not found after create reported it exists",
			step.ErrExecutionFailed, clientID)
	}
	if i := strings.IndexByte(id, '\n'); i >= 0 {
		id = strings.TrimSpace(id[:i])
	}
	return id, nil
}

func (a *Applier) applyRoles(ctx context.Context, doc Document) error {
	realmRoles, _ := doc.Body["realmRoles"].([]any)

	for _, raw := range realmRoles {
		role, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := role["name"].(string)

		payload, err := json.Marshal(role)
		if err != nil {
			return err
		}

		res, err := a.kcadm(ctx, string(payload), "create", "roles", "-r", a.realm, "-f", "-")
		if err != nil {
			return err
		}
		if res.Success() {
			continue
		}
		if !alreadyExists(res) {
			return fmt.Errorf("%w: create role %s: %s", step.ErrExecutionFailed, name, res.Stderr)
		}

		res, err = a.kcadm(ctx, string(payload), "update", "roles/"+name, "-r", a.realm, "-f", "-")
		if err != nil {
			return err
		}
		if !res.Success() {
			return fmt.Errorf("%w: update role %s: %s", step.ErrExecutionFailed, name, res.Stderr)
		}
	}

	if clientRoles, ok := doc.Body["clientRoles"].(map[string]any); ok {
		for clientID, raw := range clientRoles {
			roles, ok := raw.([]any)
			if !ok {
				continue
			}
			if err := a.applyClientRoles(ctx, clientID, roles); err != nil {
				return err
			}
		}
	}

	return nil
}

func (a *Applier) applyClientRoles(ctx context.Context, clientID string, roles []any) error {
	id, err := a.clientUUID(ctx, clientID)
	if err != nil {
		return err
	}

	for _, raw := range roles {
		role, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := role["name"].(string)

		payload, err := json.Marshal(role)
		if err != nil {
			return err
		}

		res, err := a.kcadm(ctx, string(payload), "create", "clients/"+id+"/roles", "-r", a.realm, "-f", "-")
		if err != nil {
			return err
		}
		if res.Success() || alreadyExists(res) {
			continue
		}
		return fmt.Errorf("%w: create client role %s/%s: %s", step.ErrExecutionFailed, clientID, name, res.Stderr)
	}

	return nil
}

func (a *Applier) applyAuthentication(ctx context.Context, doc Document) error {
	flows, _ := doc.Body["flows"].([]any)

	for _, raw := range flows {
		flow, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		alias, _ := flow["alias"].(string)

		payload, err := json.Marshal(flow)
		if err != nil {
			return err
		}

		res, err := a.kcadm(ctx, string(payload), "create", "authentication/flows", "-r", a.realm, "-f", "-")
		if err != nil {
			return err
		}
		if res.Success() {
			continue
		}
		if alreadyExists(res) {
			a.logger.Debug("authentication flow exists", ports.F("alias", alias))
			continue
		}
		return fmt.Errorf("%w: create flow %s: %s", step.ErrExecutionFailed, alias, res.Stderr)
	}

	if otp, ok := doc.Body["otpPolicy"].(map[string]any); ok {
		update := map[string]any{}
		if v, ok := otp["type"]; ok {
			update["otpPolicyType"] = v
		}
		if v, ok := otp["algorithm"]; ok {
			update["otpPolicyAlgorithm"] = v
		}
		if v, ok := otp["digits"]; ok {
			update["otpPolicyDigits"] = v
		}
		if v, ok := otp["period"]; ok {
			update["otpPolicyPeriod"] = v
		}
		if len(update) > 0 {
			if err := a.updateRealm(ctx, update); err != nil {
				return err
			}
		}
	}

	return nil
}

func (a *Applier) kcadm(ctx context.Context, stdin string, args ...string) (ports.CommandResult, error) {
	full := append([]string{"exec", "-i", a.container, kcadmPath}, args...)
	if stdin == "" {
		return a.runner.Run(ctx, "docker", full...)
	}
	return a.runner.RunInput(ctx, stdin, "docker", full...)
}

// alreadyExists recognizes kcadm's 409 conflict message so create-then-update
// stays idempotent.
func alreadyExists(res ports.CommandResult) bool {
	return strings.Contains(res.Stderr, "already exists") ||
		strings.Contains(res.Stderr, "409")
}
