// Package auth supplies the credentials attached to outbound realtime frames
// and telemetry requests.
//
// Token storage and CSRF issuance live elsewhere in the application; this
// package only exposes the current values through a pull-based Provider.
package auth

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// Anonymous is the identity used when no user is known.
const Anonymous = "anonymous"

// Credentials is a point-in-time view of the session's auth material.
type Credentials struct {
	Token  string // bearer token, empty when logged out
	CSRF   string // CSRF value, empty when not issued
	UserID string // explicit user ID; derived from Token when empty
}

// Identity returns the user ID for these credentials: the explicit UserID,
// else the token's subject claim, else "".
func (c Credentials) Identity() string {
	if c.UserID != "" {
		return c.UserID
	}
	if c.Token == "" {
		return ""
	}
	id, err := UserIDFromToken(c.Token)
	if err != nil {
		return ""
	}
	return id
}

// Provider returns the current credentials. Implementations must be safe
// for concurrent use.
type Provider interface {
	Credentials() Credentials
}

// Static always returns the same credentials.
type Static Credentials

// Credentials implements Provider.
func (s Static) Credentials() Credentials { return Credentials(s) }

// Mutable holds credentials the application updates on login and logout.
type Mutable struct {
	mu    sync.RWMutex
	creds Credentials
}

// NewMutable creates a provider seeded with creds.
func NewMutable(creds Credentials) *Mutable {
	return &Mutable{creds: creds}
}

// Credentials implements Provider.
func (m *Mutable) Credentials() Credentials {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds
}

// Set replaces the credentials.
func (m *Mutable) Set(creds Credentials) {
	m.mu.Lock()
	m.creds = creds
	m.mu.Unlock()
}

// Clear drops all credentials (logout).
func (m *Mutable) Clear() {
	m.Set(Credentials{})
}

// FileProvider reads the bearer token from a file, re-reading it whenever the
// file's modification time changes.
type FileProvider struct {
	path string
	csrf string

	mu      sync.Mutex
	token   string
	modTime time.Time
}

// NewFileProvider loads the token at path. The file must exist.
func NewFileProvider(path, csrf string) (*FileProvider, error) {
	if path == "" {
		return nil, fmt.Errorf("token path is required")
	}
	p := &FileProvider{path: path, csrf: csrf}
	if err := p.reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Credentials implements Provider. A read failure keeps the last token.
func (p *FileProvider) Credentials() Credentials {
	p.mu.Lock()
	defer p.mu.Unlock()

	if info, err := os.Stat(p.path); err == nil && !info.ModTime().Equal(p.modTime) {
		_ = p.reloadLocked()
	}
	return Credentials{Token: p.token, CSRF: p.csrf}
}

func (p *FileProvider) reload() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reloadLocked()
}

func (p *FileProvider) reloadLocked() error {
	info, err := os.Stat(p.path)
	if err != nil {
		return fmt.Errorf("stat token file: %w", err)
	}
	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("read token file: %w", err)
	}
	p.token = strings.TrimSpace(string(data))
	p.modTime = info.ModTime()
	return nil
}
