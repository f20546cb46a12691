package cli

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the content of config.yaml.
type Settings struct {
	Server      string `yaml:"server"`
	APIPath     string `yaml:"api_path"`
	WSPath      string `yaml:"ws_path"`
	Timeout     string `yaml:"timeout"`
	ExpansionDB string `yaml:"expansion_db,omitempty"`
}

// DefaultSettings returns the settings written on first run.
func DefaultSettings() Settings {
	return Settings{
		Server:  "http://localhost:8080",
		APIPath: "/build/api",
		WSPath:  "/ws",
		Timeout: "30s",
	}
}

// LoadSettings reads config.yaml, fills unset keys from DefaultSettings and
// applies the --server override.
func LoadSettings() (Settings, error) {
	s := DefaultSettings()

	data, err := os.ReadFile(GetConfigPath())
	if err != nil && !os.IsNotExist(err) {
		return s, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		var file Settings
		if err := yaml.Unmarshal(data, &file); err != nil {
			return s, fmt.Errorf("failed to parse config: %w", err)
		}
		s.merge(file)
	}

	if GlobalConfig.Server != "" {
		s.Server = GlobalConfig.Server
	}
	if s.ExpansionDB == "" {
		s.ExpansionDB = filepath.Join(GetConfigDir(), "expansion.db")
	} else if !filepath.IsAbs(s.ExpansionDB) {
		s.ExpansionDB = filepath.Join(GetConfigDir(), s.ExpansionDB)
	}

	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

func (s *Settings) merge(o Settings) {
	if o.Server != "" {
		s.Server = o.Server
	}
	if o.APIPath != "" {
		s.APIPath = o.APIPath
	}
	if o.WSPath != "" {
		s.WSPath = o.WSPath
	}
	if o.Timeout != "" {
		s.Timeout = o.Timeout
	}
	if o.ExpansionDB != "" {
		s.ExpansionDB = o.ExpansionDB
	}
}

// Validate checks the server URL, paths and timeout.
func (s Settings) Validate() error {
	u, err := url.Parse(s.Server)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid server URL %q: must be http(s)://host[:port]", s.Server)
	}
	if !strings.HasPrefix(s.APIPath, "/") {
		return fmt.Errorf("api_path must start with /: %q", s.APIPath)
	}
	if !strings.HasPrefix(s.WSPath, "/") {
		return fmt.Errorf("ws_path must start with /: %q", s.WSPath)
	}
	if _, err := s.TimeoutDuration(); err != nil {
		return err
	}
	return nil
}

// TimeoutDuration parses the timeout setting.
func (s Settings) TimeoutDuration() (time.Duration, error) {
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", s.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("timeout must be positive, got %s", s.Timeout)
	}
	return d, nil
}
