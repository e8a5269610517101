// Package prefs persists the user's display preferences.
package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

var bucketPreferences = []byte("preferences")

// KeyDarkMode stores "true" or "false".
const KeyDarkMode = "darkMode"

// FileName is the default preference database name.
const FileName = "prefs.db"

// Store holds preferences in a bbolt file. An empty path gives a memory-only
// store that forgets everything on exit.
type Store struct {
	db *bolt.DB

	mu  sync.Mutex
	mem map[string]string
}

// Open opens or creates the preference database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return &Store{mem: map[string]string{}}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("creating preference directory: %w", err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open preference db %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketPreferences)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the database file.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) get(key string) (string, bool, error) {
	if s.db == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		v, ok := s.mem[key]
		return v, ok, nil
	}
	var (
		val   string
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		if raw := tx.Bucket(bucketPreferences).Get([]byte(key)); raw != nil {
			val, found = string(raw), true
		}
		return nil
	})
	return val, found, err
}

func (s *Store) put(key, value string) error {
	if s.db == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.mem[key] = value
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPreferences).Put([]byte(key), []byte(value))
	})
}

// DarkMode returns the stored flag and whether one has been stored at all.
func (s *Store) DarkMode() (dark bool, set bool, err error) {
	v, found, err := s.get(KeyDarkMode)
	if err != nil || !found {
		return false, false, err
	}
	return v == "true", true, nil
}

// SetDarkMode stores the flag.
func (s *Store) SetDarkMode(dark bool) error {
	v := "false"
	if dark {
		v = "true"
	}
	if err := s.put(KeyDarkMode, v); err != nil {
		return fmt.Errorf("saving %s: %w", KeyDarkMode, err)
	}
	log.WithField(KeyDarkMode, dark).Debug("Preference saved")
	return nil
}

// ToggleDarkMode flips the effective flag, stores it and returns the new value.
func (s *Store) ToggleDarkMode() (bool, error) {
	next := !s.EffectiveDarkMode()
	return next, s.SetDarkMode(next)
}

// EffectiveDarkMode is the stored flag, or the terminal's background when
// nothing has been stored yet. Read errors fall back the same way.
func (s *Store) EffectiveDarkMode() bool {
	dark, set, err := s.DarkMode()
	if err != nil {
		log.WithError(err).Warn("Could not read dark mode preference")
	}
	if err != nil || !set {
		return systemDark()
	}
	return dark
}

// systemDark is swapped out in tests.
var systemDark = lipgloss.HasDarkBackground
