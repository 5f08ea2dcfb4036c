// Package auth stores named cookie sessions (consent, region or login
// cookies) that are injected into the browser before the first navigation.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name for keyring storage
	KeyringService = "revscrape"
	// FallbackDir is the directory for file-based session storage (when keyring fails)
	FallbackDir = ".revscrape/sessions"

	manifestKey = "_manifest"
	probeKey    = "_test_keyring_access_"
)

var (
	ErrEmptyName       = errors.New("session name cannot be empty")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// SessionData represents a stored cookie session
type SessionData struct {
	Name      string            `json:"name"`
	URL       string            `json:"url"`
	Cookies   []Cookie          `json:"cookies"`
	Headers   map[string]string `json:"headers,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at,omitempty"`
}

// Expired reports whether the session's earliest cookie expiry has passed
func (s *SessionData) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Store persists sessions in the OS keyring, or as files under Dir when no
// keyring is reachable (CI, containers).
type Store struct {
	Service string
	Dir     string

	once    sync.Once
	useFile bool
	forced  bool
}

// NewStore returns a Store that probes the keyring on first use
func NewStore() *Store {
	dir := FallbackDir
	if home, err := os.UserHomeDir(); err == nil {
		dir = filepath.Join(home, FallbackDir)
	}
	return &Store{Service: KeyringService, Dir: dir}
}

// NewFileStore returns a Store that only uses files under dir
func NewFileStore(dir string) *Store {
	return &Store{Service: KeyringService, Dir: dir, useFile: true, forced: true}
}

func (s *Store) fileBased() bool {
	if s.forced {
		return true
	}
	s.once.Do(func() {
		if os.Getenv("CODESPACES") != "" || os.Getenv("CI") != "" {
			s.useFile = true
			return
		}
		if err := keyring.Set(s.Service, probeKey, "test"); err != nil {
			log.Debug().Err(err).Msg("Keyring unavailable, using file-based sessions")
			s.useFile = true
			return
		}
		_ = keyring.Delete(s.Service, probeKey)
	})
	return s.useFile
}

func (s *Store) path(name string) (string, error) {
	if err := os.MkdirAll(s.Dir, 0700); err != nil {
		return "", fmt.Errorf("create session dir: %w", err)
	}
	return filepath.Join(s.Dir, name+".json"), nil
}

// Save stores session under its name and records it in the manifest
func (s *Store) Save(session *SessionData) error {
	if session.Name == "" {
		return ErrEmptyName
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}

	if s.fileBased() {
		path, err := s.path(session.Name)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0600); err != nil {
			return fmt.Errorf("failed to save session file: %w", err)
		}
		return nil
	}

	if err := keyring.Set(s.Service, session.Name, string(data)); err != nil {
		return fmt.Errorf("failed to save to keyring: %w", err)
	}
	return s.updateManifest(session.Name, true)
}

// Load returns the named session. Expired sessions return ErrSessionExpired.
func (s *Store) Load(name string) (*SessionData, error) {
	if name == "" {
		return nil, ErrEmptyName
	}

	var data string
	if s.fileBased() {
		path, err := s.path(name)
		if err != nil {
			return nil, err
		}
		b, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, name)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load session file: %w", err)
		}
		data = string(b)
	} else {
		v, err := keyring.Get(s.Service, name)
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, name)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load from keyring: %w", err)
		}
		data = v
	}

	var session SessionData
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to deserialize session: %w", err)
	}
	if session.Expired(time.Now()) {
		return nil, fmt.Errorf("%w: %s", ErrSessionExpired, name)
	}
	return &session, nil
}

// Delete removes the named session
func (s *Store) Delete(name string) error {
	if name == "" {
		return ErrEmptyName
	}

	if s.fileBased() {
		path, err := s.path(name)
		if err != nil {
			return err
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete session file: %w", err)
		}
		return nil
	}

	if err := keyring.Delete(s.Service, name); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return s.updateManifest(name, false)
}

// List returns the stored session names, sorted
func (s *Store) List() ([]string, error) {
	var names []string

	if s.fileBased() {
		entries, err := os.ReadDir(s.Dir)
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if !entry.IsDir() && filepath.Ext(entry.Name()) == ".json" {
				names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
			}
		}
	} else {
		manifest, err := keyring.Get(s.Service, manifestKey)
		if err != nil {
			return []string{}, nil
		}
		if err := json.Unmarshal([]byte(manifest), &names); err != nil {
			return nil, fmt.Errorf("failed to deserialize manifest: %w", err)
		}
	}

	sort.Strings(names)
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// updateManifest adds or removes a name from the keyring manifest
func (s *Store) updateManifest(name string, add bool) error {
	names, err := s.List()
	if err != nil {
		return err
	}

	kept := names[:0]
	for _, n := range names {
		if n != name {
			kept = append(kept, n)
		}
	}
	if add {
		kept = append(kept, name)
	}

	data, err := json.Marshal(kept)
	if err != nil {
		return err
	}
	return keyring.Set(s.Service, manifestKey, string(data))
}
