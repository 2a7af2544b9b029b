// Package config implements configuration and session persistence for the
// Pokéchat console: connection profiles in a yaml file under the user's
// config directory, and the small session state (encrypted access token,
// last active conversation) that lets a restart resume where it left off.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/pokedex-chat/console/internal/interfaces"
	"github.com/pokedex-chat/console/internal/logging"
)

// Profile describes how to reach one backend.
type Profile struct {
	Name  string `yaml:"name"`
	Host  string `yaml:"host"`
	Theme string `yaml:"theme,omitempty"`
}

// fileConfig is the on-disk profiles file.
type fileConfig struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

// sessionState is the on-disk session file. The access token is stored
// encrypted; everything else is plain.
type sessionState struct {
	AccessToken          string `yaml:"accessToken,omitempty"`
	TokenType            string `yaml:"tokenType,omitempty"`
	ActiveConversationID *int64 `yaml:"activeConversationId,omitempty"`
}

// Manager loads profiles and persists session state. It implements
// interfaces.SessionStateStore.
type Manager struct {
	configPath  string
	sessionPath string
	securityMgr SecurityManager
	logger      *logging.Logger

	mu           sync.Mutex
	cachedConfig *fileConfig
}

// NewManager creates a configuration manager rooted at the OS-appropriate
// config directory.
func NewManager() (*Manager, error) {
	configDir, err := configDirectory()
	if err != nil {
		return nil, err
	}
	securityMgr, err := NewSecurityManager()
	if err != nil {
		return nil, fmt.Errorf("initializing security manager: %w", err)
	}
	return newManagerAt(configDir, securityMgr)
}

func newManagerAt(configDir string, securityMgr SecurityManager) (*Manager, error) {
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("creating config directory %s: %w", configDir, err)
	}
	return &Manager{
		configPath:  filepath.Join(configDir, "profiles.yaml"),
		sessionPath: filepath.Join(configDir, "session.yaml"),
		securityMgr: securityMgr,
		logger:      logging.GetConfigLogger(),
	}, nil
}

func configDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "pokechat"), nil
	}
	return filepath.Join(homeDir, ".config", "pokechat"), nil
}

// LoadProfile retrieves a profile by name, creating the default profile file
// on first run.
func (m *Manager) LoadProfile(name string) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	config, err := m.loadConfigLocked()
	if err != nil {
		return nil, err
	}

	profile, exists := config.Profiles[name]
	if !exists {
		return nil, fmt.Errorf("profile %q not found", name)
	}
	profile.Name = name
	if err := validateProfile(&profile); err != nil {
		return nil, fmt.Errorf("profile %q is invalid: %w", name, err)
	}
	return &profile, nil
}

// SaveProfile persists a profile.
func (m *Manager) SaveProfile(profile *Profile) error {
	if err := validateProfile(profile); err != nil {
		return fmt.Errorf("cannot save invalid profile: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	config, err := m.loadConfigLocked()
	if err != nil {
		return err
	}
	if config.Profiles == nil {
		config.Profiles = make(map[string]Profile)
	}
	config.Profiles[profile.Name] = *profile
	return m.saveConfigLocked(config)
}

// ListProfiles returns all profile names.
func (m *Manager) ListProfiles() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	config, err := m.loadConfigLocked()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(config.Profiles))
	for name := range config.Profiles {
		names = append(names, name)
	}
	return names, nil
}

// ConfigPath returns the path of the profiles file.
func (m *Manager) ConfigPath() string {
	return m.configPath
}

// SaveCredential persists the credential with the token encrypted at rest.
func (m *Manager) SaveCredential(cred interfaces.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.loadSessionLocked()
	if err != nil {
		state = &sessionState{}
	}

	encrypted, err := m.securityMgr.EncryptCredential(cred.AccessToken)
	if err != nil {
		return fmt.Errorf("encrypting access token: %w", err)
	}
	state.AccessToken = encrypted
	state.TokenType = cred.TokenType
	return m.saveSessionLocked(state)
}

// LoadCredential loads the persisted credential, if any.
func (m *Manager) LoadCredential() (interfaces.Credential, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.loadSessionLocked()
	if err != nil || state.AccessToken == "" {
		return interfaces.Credential{}, false, err
	}

	token, err := m.securityMgr.DecryptCredential(state.AccessToken)
	if err != nil {
		// An undecryptable token is unusable; treat as no session.
		m.logger.Warn("Discarding undecryptable persisted token", "error", err.Error())
		return interfaces.Credential{}, false, nil
	}
	return interfaces.Credential{AccessToken: token, TokenType: state.TokenType}, true, nil
}

// SaveActiveConversation persists the last active conversation id.
func (m *Manager) SaveActiveConversation(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.loadSessionLocked()
	if err != nil {
		state = &sessionState{}
	}
	state.ActiveConversationID = &id
	return m.saveSessionLocked(state)
}

// LoadActiveConversation returns the persisted active conversation id.
func (m *Manager) LoadActiveConversation() (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.loadSessionLocked()
	if err != nil || state.ActiveConversationID == nil {
		return 0, false
	}
	return *state.ActiveConversationID, true
}

// ClearSession removes all persisted session state.
func (m *Manager) ClearSession() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.Remove(m.sessionPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing session file: %w", err)
	}
	return nil
}

func (m *Manager) loadConfigLocked() (*fileConfig, error) {
	if m.cachedConfig != nil {
		return m.cachedConfig, nil
	}

	if _, err := os.Stat(m.configPath); os.IsNotExist(err) {
		config := defaultConfig()
		if err := m.saveConfigLocked(config); err != nil {
			return nil, fmt.Errorf("creating default configuration: %w", err)
		}
		return config, nil
	}

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return nil, fmt.Errorf("reading configuration file: %w", err)
	}
	var config fileConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing configuration file: %w", err)
	}
	m.cachedConfig = &config
	return &config, nil
}

func (m *Manager) saveConfigLocked(config *fileConfig) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling configuration: %w", err)
	}
	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		return fmt.Errorf("writing configuration file: %w", err)
	}
	m.cachedConfig = config
	return nil
}

func (m *Manager) loadSessionLocked() (*sessionState, error) {
	data, err := os.ReadFile(m.sessionPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &sessionState{}, nil
		}
		return nil, fmt.Errorf("reading session file: %w", err)
	}
	var state sessionState
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing session file: %w", err)
	}
	return &state, nil
}

func (m *Manager) saveSessionLocked(state *sessionState) error {
	data, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling session state: %w", err)
	}
	if err := os.WriteFile(m.sessionPath, data, 0600); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}
	return nil
}

func defaultConfig() *fileConfig {
	return &fileConfig{
		Profiles: map[string]Profile{
			"default": {
				Name:  "default",
				Host:  "localhost:8000",
				Theme: "pokedex",
			},
		},
	}
}

func validateProfile(profile *Profile) error {
	if profile == nil {
		return fmt.Errorf("profile cannot be nil")
	}
	if strings.TrimSpace(profile.Name) == "" {
		return fmt.Errorf("profile name cannot be empty")
	}
	if strings.TrimSpace(profile.Host) == "" {
		return fmt.Errorf("profile host cannot be empty")
	}
	return nil
}
