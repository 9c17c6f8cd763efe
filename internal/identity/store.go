// Package identity persists the local player profile: display name and the
// opaque player_auth_id token presented on every channel handshake.
package identity

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile is the persisted player identity.
type Profile struct {
	PlayerName string    `yaml:"player_name"`
	AuthID     string    `yaml:"player_auth_id"`
	UpdatedAt  time.Time `yaml:"updated_at,omitempty"`
}

// Store holds the current Profile and writes every change to disk.
// An empty path keeps the profile in memory only.
type Store struct {
	path string

	mu      sync.RWMutex
	profile Profile
}

// Open loads the profile at path. A missing file yields an empty profile.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read profile: %w", err)
	}

	if err := yaml.Unmarshal(data, &s.profile); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}

	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// AuthID returns the current identity token, or "" if none was issued.
func (s *Store) AuthID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile.AuthID
}

// PlayerName returns the stored display name.
func (s *Store) PlayerName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile.PlayerName
}

// Profile returns a copy of the stored profile.
func (s *Store) Profile() Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// SetAuthID replaces the identity token.
func (s *Store) SetAuthID(id string) error {
	return s.update(func(p *Profile) { p.AuthID = id })
}

// SetPlayerName replaces the display name.
func (s *Store) SetPlayerName(name string) error {
	return s.update(func(p *Profile) { p.PlayerName = name })
}

// Set replaces name and token together.
func (s *Store) Set(name, id string) error {
	return s.update(func(p *Profile) {
		p.PlayerName = name
		p.AuthID = id
	})
}

// Clear forgets the identity token, keeping the name.
func (s *Store) Clear() error {
	return s.SetAuthID("")
}

func (s *Store) update(fn func(*Profile)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.profile
	fn(&next)
	next.UpdatedAt = time.Now().UTC()

	if err := s.save(next); err != nil {
		return err
	}
	s.profile = next
	return nil
}

// save writes p using a temp-file-then-rename so readers never see a
// partial profile. Must be called with s.mu held.
func (s *Store) save(p Profile) error {
	if s.path == "" {
		return nil
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".profile-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename profile: %w", err)
	}
	committed = true

	return nil
}
