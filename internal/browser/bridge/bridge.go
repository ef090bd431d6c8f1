// internal/browser/bridge/bridge.go
package bridge

import (
	_ "embed"
	"fmt"
	"strings"

	json "github.com/json-iterator/go"
)

const (
	// ConfigPlaceholder is the string replaced in the JS template with the JSON configuration.
	ConfigPlaceholder = "/*{{E2E_BRIDGE_CONFIG}}*/"
	// GlobalName is the window property the script installs itself under.
	GlobalName = "__e2eBridge"
	// Version changes whenever the wire protocol does; a loaded bridge with the
	// same version is not reinstalled.
	Version = "1"
)

//go:embed bridge.js
var bridgeTemplate string

// Config is serialized into the script.
type Config struct {
	Version         string `json:"version"`
	TestIDAttribute string `json:"testIdAttribute"`
}

// Template returns the embedded bridge.js template.
func Template() (string, error) {
	if bridgeTemplate == "" {
		return "", fmt.Errorf("embedded bridge.js template is empty or failed to load")
	}
	return bridgeTemplate, nil
}

// Render injects cfg into template.
func Render(template string, cfg Config) (string, error) {
	if template == "" {
		return "", fmt.Errorf("template is empty")
	}
	if !strings.Contains(template, ConfigPlaceholder) {
		return "", fmt.Errorf("template does not contain the required placeholder: %s", ConfigPlaceholder)
	}
	if cfg.Version == "" {
		cfg.Version = Version
	}
	if cfg.TestIDAttribute == "" {
		return "", fmt.Errorf("bridge config requires a test id attribute")
	}

	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal bridge config: %w", err)
	}
	return strings.Replace(template, ConfigPlaceholder, string(configJSON), 1), nil
}

// Build renders the embedded template with cfg.
func Build(cfg Config) (string, error) {
	template, err := Template()
	if err != nil {
		return "", err
	}
	return Render(template, cfg)
}
