// Config loading for the snip CLI.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	// envPrefix scopes environment overrides, e.g. SNIP_GITHUB_TOKEN.
	envPrefix = "SNIP"

	cfgKeyDataDir     = "data_dir"
	cfgKeyGistID      = "gist_id"
	cfgKeyGitHubToken = "github_token"
	cfgKeyAPIURL      = "github_api_url"
	cfgKeySyncWorkers = "sync_workers"
	cfgKeyLogFile     = "log_file"

	defaultSyncWorkers = 4
	defaultLogFile     = "snip.log"
)

// configKeys lists the keys that "config get" reports, in display order.
var configKeys = []string{
	cfgKeyDataDir,
	cfgKeyGistID,
	cfgKeyGitHubToken,
	cfgKeyAPIURL,
	cfgKeySyncWorkers,
	cfgKeyLogFile,
}

// defaultConfigYAML is the content written to config.yaml on first run.
const defaultConfigYAML = `# snip configuration

# Data directory (optional; overridable by --data-dir and SNIP_DATA_DIR)
# data_dir:

# Gist used by "snip sync". Filled in when sync creates the gist.
# gist_id:

# GitHub token with the gist scope. Prefer SNIP_GITHUB_TOKEN.
# github_token:

# GitHub API base URL (GitHub Enterprise installs).
# github_api_url: https://api.github.com

# Concurrent remote writes during sync.
sync_workers: 4

# Log file; relative paths are resolved against the data directory.
# log_file: snip.log
`

// loadConfig reads config.yaml from the config directory using Viper,
// creating the directory and a default file on first run. SNIP_* variables
// override file values.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := ensureConfigDir(configDir); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeySyncWorkers, defaultSyncWorkers)
	v.SetDefault(cfgKeyLogFile, defaultLogFile)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	for _, key := range configKeys {
		// SNIP_DATA_DIR ranks below the file value; paths resolves it.
		if key == cfgKeyDataDir {
			continue
		}
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// ensureConfigDir creates the config directory if it does not exist.
func ensureConfigDir(configDir string) error {
	return os.MkdirAll(configDir, 0o755)
}

// ensureDefaultConfigFile creates a default config.yaml if the file does not
// exist in the config directory.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o600)
}

// saveConfigValue writes key into config.yaml. A fresh Viper reads the file
// so that environment overrides, the token in particular, are not written
// back.
func saveConfigValue(configDir, key string, value any) error {
	v := viper.New()
	v.SetConfigFile(filepath.Join(configDir, configFileExt))
	v.SetConfigPermissions(0o600)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	v.Set(key, value)
	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// logPath resolves the log file against the data directory.
func logPath(cfg *viper.Viper, dataDir string) string {
	p := cfg.GetString(cfgKeyLogFile)
	if p == "" {
		p = defaultLogFile
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dataDir, p)
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or reset the configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "get [key]",
			Short: "Print the effective configuration",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				values := map[string]string{
					"config_dir":  a.configDir,
					"config_file": filepath.Join(a.configDir, configFileExt),
				}
				for _, key := range configKeys {
					values[key] = a.cfg.GetString(key)
				}
				values[cfgKeyDataDir] = a.dataDir
				values[cfgKeyLogFile] = logPath(a.cfg, a.dataDir)
				if values[cfgKeyGitHubToken] != "" {
					values[cfgKeyGitHubToken] = "(set)"
				}

				if len(args) == 1 {
					key := strings.ToLower(args[0])
					val, ok := values[key]
					if !ok {
						return userError("unknown config key %q", args[0])
					}
					fmt.Fprintln(cmd.OutOrStdout(), val)
					return nil
				}
				return a.printer(cmd).config(values, append([]string{"config_dir", "config_file"}, configKeys...))
			},
		},
		&cobra.Command{
			Use:   "default",
			Short: "Print the default config.yaml",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				_, err := fmt.Fprint(cmd.OutOrStdout(), defaultConfigYAML)
				return err
			},
		},
	)
	return cmd
}
