package config

// SecretStore abstracts credential storage. The default backend keeps
// secrets in the config file; platform keychains can slot in behind
// the same interface.
type SecretStore interface {
	// Get retrieves a secret by config key.
	Get(key string) (string, error)
	// Set stores a secret for the given config key.
	Set(key string, value string) error
	// Delete removes a secret by config key.
	Delete(key string) error
	// Available reports whether this backend is usable.
	Available() bool
}

// PlaintextStore keeps secrets in the loaded config file. The file is
// written with mode 0600.
type PlaintextStore struct{}

// NewSecretStore returns the secret store for this platform.
func NewSecretStore() SecretStore {
	return &PlaintextStore{}
}

// Get reads a secret from the loaded configuration.
func (p *PlaintextStore) Get(key string) (string, error) {
	return GetString(key), nil
}

// Set writes a secret through the configuration layer, persisting it
// when a config file is loaded.
func (p *PlaintextStore) Set(key string, value string) error {
	return Set(key, value)
}

// Delete clears a secret.
func (p *PlaintextStore) Delete(key string) error {
	return Set(key, "")
}

// Available reports true, the plaintext store always works.
func (p *PlaintextStore) Available() bool {
	return true
}
