package sessions

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/thand-io/skypost/internal/models"
)

// Store keeps the session bundle in a single JSON file.
type Store struct {
	lock sync.Mutex // Ensure thread-safe access
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Load returns the cached session, or nil when there is none to use. A
// missing, unreadable or malformed file is not an error: the caller falls
// back to a fresh login.
func (s *Store) Load() (*models.SessionData, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	logrus.WithFields(logrus.Fields{
		"path": s.path,
	}).Debugln("Checking for saved session data")

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logrus.WithError(err).WithField("path", s.path).Warnln("Failed to read session file, ignoring it")
		}
		return nil, nil
	}

	if len(data) == 0 {
		return nil, nil
	}

	var session models.SessionData
	if err := json.Unmarshal(data, &session); err != nil {
		logrus.WithError(err).WithField("path", s.path).Warnln("Failed to parse session file, ignoring it")
		return nil, nil
	}

	if session.IsZero() {
		return nil, nil
	}

	return &session, nil
}

// Save overwrites the session file with the given bundle.
func (s *Store) Save(session models.SessionData) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	logrus.WithFields(logrus.Fields{
		"path":   s.path,
		"handle": session.Handle,
		"did":    session.Did,
	}).Debugln("Saving session data")

	if dir := filepath.Dir(s.path); len(dir) > 0 {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return models.NewIOError("create session directory", err)
		}
	}

	// Only allow read/write access to the owner
	file, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return models.NewIOError("open session file", err)
	}
	defer file.Close()

	// Truncate the file to ensure clean write
	if err := file.Truncate(0); err != nil {
		return models.NewIOError("truncate session file", err)
	}

	if _, err := file.Seek(0, 0); err != nil {
		return models.NewIOError("seek session file", err)
	}

	if err := json.NewEncoder(file).Encode(session); err != nil {
		return models.NewIOError("write session file", err)
	}

	if err := file.Sync(); err != nil {
		return models.NewIOError("sync session file", err)
	}

	return nil
}

// Remove deletes the session file. A missing file is not an error.
func (s *Store) Remove() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	logrus.WithField("path", s.path).Debugln("Removing session data")

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return models.NewIOError("remove session file", err)
	}
	return nil
}

// SessionListener is notified whenever the session changes.
type SessionListener interface {
	OnSessionChange(event models.SessionEvent, session *models.SessionData) error
}

// SessionListenerFunc adapts a function to SessionListener.
type SessionListenerFunc func(event models.SessionEvent, session *models.SessionData) error

func (f SessionListenerFunc) OnSessionChange(event models.SessionEvent, session *models.SessionData) error {
	return f(event, session)
}

// Persister returns a listener that writes every new or refreshed session
// through to the store before it is used.
func Persister(store *Store) SessionListener {
	return SessionListenerFunc(func(event models.SessionEvent, session *models.SessionData) error {

		if !event.CarriesSession() {
			logrus.WithFields(logrus.Fields{
				"event": event,
			}).Debugln("Session event carries no data to persist")
			return nil
		}

		if session == nil || session.IsZero() {
			return models.NewAuthError(string(event), models.ErrNoSessionData)
		}

		if err := store.Save(*session); err != nil {
			return fmt.Errorf("failed to persist session: %w", err)
		}

		return nil
	})
}
