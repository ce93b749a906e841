package step

// VariableSpec declares one configuration value a step needs. Names are
// shared across steps by convention (for example KEYCLOAK_DOMAIN is declared
// by both the certificate and deployment steps); the last persisted writer
// wins in the settings file.
type VariableSpec struct {
	// Name is the variable key, e.g. "KEYCLOAK_DOMAIN".
	Name string

	// Prompt is the human question shown when the value must be asked for.
	Prompt string

	// Default is the suggested value. Empty is allowed.
	Default string

	// Required marks a variable that must not resolve to empty. In batch
	// mode a required variable without a default fails resolution.
	Required bool

	// Secret marks values that must be masked in console output and the
	// installation summary.
	Secret bool
}

// Var builds a plain VariableSpec.
func Var(name, prompt, def string) VariableSpec {
	return VariableSpec{Name: name, Prompt: prompt, Default: def}
}

// RequiredVar builds a required VariableSpec.
func RequiredVar(name, prompt, def string) VariableSpec {
	return VariableSpec{Name: name, Prompt: prompt, Default: def, Required: true}
}

// SecretVar builds a required, masked VariableSpec.
func SecretVar(name, prompt string) VariableSpec {
	return VariableSpec{Name: name, Prompt: prompt, Required: true, Secret: true}
}
