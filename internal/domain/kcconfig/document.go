// Package kcconfig loads, validates, orders, and applies the Keycloak
// configuration document set through the admin CLI of a running Keycloak
// container.
package kcconfig

// Kind identifies one configuration document.
type Kind string

// The document kinds, matching the YAML file names in the config directory.
const (
	KindRealm          Kind = "realm"
	KindSecurity       Kind = "security"
	KindClients        Kind = "clients"
	KindRoles          Kind = "roles"
	KindAuthentication Kind = "authentication"
	KindEvents         Kind = "events"
	KindMonitoring     Kind = "monitoring"
	KindThemes         Kind = "themes"
	KindSMTP           Kind = "smtp"
)

// Document is one loaded, substituted configuration document.
type Document struct {
	Kind      Kind
	Required  bool
	DependsOn []Kind
	Body      map[string]any
	Source    string
}

// catalogEntry declares a document kind: its file, whether it must be
// present, and which documents must have been applied before it.
type catalogEntry struct {
	kind      Kind
	file      string
	required  bool
	dependsOn []Kind
}

// catalog is the full document set in application order: required documents
// first, optional ones after, dependencies always ahead of their dependents.
var catalog = []catalogEntry{
	{kind: KindRealm, file: "realm.yaml", required: true},
	{kind: KindSecurity, file: "security.yaml", required: true, dependsOn: []Kind{KindRealm}},
	{kind: KindClients, file: "clients.yaml", required: true, dependsOn: []Kind{KindRealm}},
	{kind: KindRoles, file: "roles.yaml", required: true, dependsOn: []Kind{KindRealm}},
	{kind: KindAuthentication, file: "authentication.yaml", required: true, dependsOn: []Kind{KindRealm, KindSecurity}},
	{kind: KindEvents, file: "events.yaml", required: true, dependsOn: []Kind{KindRealm}},
	{kind: KindMonitoring, file: "monitoring.yaml", dependsOn: []Kind{KindRealm, KindEvents}},
	{kind: KindThemes, file: "themes.yaml", dependsOn: []Kind{KindRealm}},
	{kind: KindSMTP, file: "smtp.yaml", dependsOn: []Kind{KindRealm}},
}

// Kinds returns every known document kind in application order.
func Kinds() []Kind {
	out := make([]Kind, len(catalog))
	for i, e := range catalog {
		out[i] = e.kind
	}
	return out
}
