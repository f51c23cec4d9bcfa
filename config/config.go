package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ServerSettings controls the HTTP listener.
type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// ProxySettings tunes the embed proxy.
type ProxySettings struct {
	// RequestTimeoutSeconds applies to every upstream fetch; mirrors are
	// unreliable and must never hang an inbound request.
	RequestTimeoutSeconds int `json:"requestTimeoutSeconds"`
	// ExtraBlockedDomains extends the built-in domain blocklist.
	ExtraBlockedDomains []string `json:"extraBlockedDomains,omitempty"`
}

// StreamSettings toggles the direct-stream extraction providers.
type StreamSettings struct {
	VidLinkEnabled     bool `json:"vidlinkEnabled"`
	VidSrcEnabled      bool `json:"vidsrcEnabled"`
	RateLimitPerMinute int  `json:"rateLimitPerMinute"`
}

// LogSettings configures optional file logging. An empty File logs to
// stderr only.
type LogSettings struct {
	File       string `json:"file,omitempty"`
	MaxSizeMB  int    `json:"maxSizeMb"`
	MaxBackups int    `json:"maxBackups"`
}

// Settings is the full persisted configuration.
type Settings struct {
	Server  ServerSettings `json:"server"`
	Proxy   ProxySettings  `json:"proxy"`
	Streams StreamSettings `json:"streams"`
	Logging LogSettings    `json:"logging"`
}

func defaultSettings() Settings {
	return Settings{
		Server:  ServerSettings{Host: "0.0.0.0", Port: 5000},
		Proxy:   ProxySettings{RequestTimeoutSeconds: 20},
		Streams: StreamSettings{VidLinkEnabled: true, VidSrcEnabled: true, RateLimitPerMinute: 30},
		Logging: LogSettings{MaxSizeMB: 10, MaxBackups: 3},
	}
}

// Manager loads and persists Settings as a JSON file. Safe for concurrent use.
type Manager struct {
	mu   sync.Mutex
	path string
}

func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Load reads settings from disk, applying defaults for missing fields. A
// missing file yields pure defaults, not an error.
func (m *Manager) Load() (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := defaultSettings()
	data, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return s, fmt.Errorf("read settings: %w", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return defaultSettings(), fmt.Errorf("parse settings: %w", err)
	}
	applyDefaults(&s)
	return s, nil
}

// Save writes settings to disk, creating parent directories as needed.
func (m *Manager) Save(s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if dir := filepath.Dir(m.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create settings dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return os.Rename(tmp, m.path)
}

func applyDefaults(s *Settings) {
	def := defaultSettings()
	if s.Server.Host == "" {
		s.Server.Host = def.Server.Host
	}
	if s.Server.Port == 0 {
		s.Server.Port = def.Server.Port
	}
	if s.Proxy.RequestTimeoutSeconds <= 0 {
		s.Proxy.RequestTimeoutSeconds = def.Proxy.RequestTimeoutSeconds
	}
	if s.Streams.RateLimitPerMinute <= 0 {
		s.Streams.RateLimitPerMinute = def.Streams.RateLimitPerMinute
	}
	if s.Logging.MaxSizeMB <= 0 {
		s.Logging.MaxSizeMB = def.Logging.MaxSizeMB
	}
	if s.Logging.MaxBackups <= 0 {
		s.Logging.MaxBackups = def.Logging.MaxBackups
	}
}
