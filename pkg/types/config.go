// Package types defines the Store and Remote interfaces, the Snippet
// entity, filters, sync reports and standard errors for snip.
package types

import "errors"

// Config holds backend selection and parameters for Store.Attach.
type Config struct {
	Backend string `json:"backend" yaml:"backend"`
	DataDir string `json:"data_dir" yaml:"data_dir"`
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
)

// Config validation errors.
var (
	ErrBackendEmpty   = errors.New("backend must not be empty")
	ErrBackendUnknown = errors.New("unknown backend")
	ErrTokenMissing   = errors.New("github token is not set")
	ErrWorkersInvalid = errors.New("sync workers must be positive")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite: true,
}

// Validate checks that the Config is well-formed.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	return nil
}

// SyncConfig carries everything the sync side needs. It is filled at the
// command boundary and passed in explicitly.
type SyncConfig struct {
	GistID  string `json:"gist_id" yaml:"gist_id"`
	Token   string `json:"-" yaml:"github_token"`
	APIURL  string `json:"api_url" yaml:"github_api_url"`
	Workers int    `json:"workers" yaml:"sync_workers"`
}

// Validate checks the sync configuration.
func (c SyncConfig) Validate() error {
	if c.Token == "" {
		return ErrTokenMissing
	}
	if c.Workers < 0 {
		return ErrWorkersInvalid
	}
	return nil
}
