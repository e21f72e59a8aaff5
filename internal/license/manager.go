package license

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Manager reads and writes the local license file used by the scheduler
// daemon. Constructed explicitly with a path and passed in as a dependency.
type Manager struct {
	path   string
	cached *File
}

// NewManager creates a Manager for the given license file path.
func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Load reads the license file. Returns (nil, nil) if no license is installed.
func (m *Manager) Load() (*File, error) {
	if m.cached != nil {
		return m.cached, nil
	}

	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading license file: %w", err)
	}

	var lic File
	if err := json.Unmarshal(data, &lic); err != nil {
		return nil, fmt.Errorf("parsing license file: %w", err)
	}
	if lic.Token == "" {
		return nil, fmt.Errorf("invalid license file: missing token")
	}
	if !lic.PlanTier.Valid() {
		lic.PlanTier = TierFree
	}

	m.cached = &lic
	return m.cached, nil
}

// Save writes a license file, creating parent directories as needed.
func (m *Manager) Save(lic *File) error {
	if lic.CreatedAt.IsZero() {
		lic.CreatedAt = time.Now().UTC()
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("creating license directory: %w", err)
	}

	data, err := json.MarshalIndent(lic, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling license: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0o600); err != nil {
		return fmt.Errorf("writing license file: %w", err)
	}

	m.cached = lic
	return nil
}

// Capabilities resolves the plan capabilities for the installed license.
// A missing or unreadable license means the free tier.
func (m *Manager) Capabilities() PlanCapabilities {
	lic, err := m.Load()
	if err != nil || lic == nil {
		return CapabilitiesFor(TierFree)
	}
	return CapabilitiesFor(lic.PlanTier)
}

// MintToken produces an opaque license token in the remind_<tier>_<random>
// format. Not a cryptographic credential, just a unique identifier.
func MintToken(tier PlanTier) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return fmt.Sprintf("remind_%s_%s", tier, hex.EncodeToString(buf)), nil
}
