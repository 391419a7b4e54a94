package poster

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	appbsky "github.com/bluesky-social/indigo/api/bsky"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thand-io/skypost/internal/bsky/bskytest"
	"github.com/thand-io/skypost/internal/config"
	"github.com/thand-io/skypost/internal/models"
	"github.com/thand-io/skypost/internal/sessions"
)

type scenario struct {
	server  *bskytest.Server
	cfg     *config.Config
	stdout  *bytes.Buffer
	stderr  *bytes.Buffer
	session string
}

func newScenario(t *testing.T) *scenario {
	t.Helper()

	server := bskytest.NewServer(t)

	cfg := config.DefaultConfig()
	cfg.SetServiceUrl(server.URL)
	cfg.Session.Path = filepath.Join(t.TempDir(), "session.json")
	cfg.Bluesky.Username = "alice.test"
	cfg.Bluesky.Password = bskytest.Password

	return &scenario{
		server:  server,
		cfg:     cfg,
		stdout:  &bytes.Buffer{},
		stderr:  &bytes.Buffer{},
		session: cfg.Session.Path,
	}
}

func (s *scenario) run(stdin string) error {
	return New(s.cfg, strings.NewReader(stdin), s.stdout, s.stderr, nil).Run(context.Background())
}

func (s *scenario) records(t *testing.T) []appbsky.FeedPost {
	t.Helper()
	var records []appbsky.FeedPost
	for _, raw := range s.server.Records() {
		var record appbsky.FeedPost
		require.NoError(t, json.Unmarshal(raw, &record))
		records = append(records, record)
	}
	return records
}

// No session file: log in, persist the session, post the text.
func TestRun_FreshLoginAndPost(t *testing.T) {
	s := newScenario(t)

	require.NoError(t, s.run("hello world\n"))

	assert.Equal(t, 1, s.server.Calls("com.atproto.server.createSession"))

	data, err := os.ReadFile(s.session)
	require.NoError(t, err)
	var saved models.SessionData
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, s.server.Account, saved)

	records := s.records(t)
	require.Len(t, records, 1)
	assert.Equal(t, "hello world", records[0].Text)

	assert.Contains(t, s.stdout.String(), "No Saved Session Data. Logging In...")
	assert.Contains(t, s.stdout.String(), "Successfully Posted")
	assert.Empty(t, s.stderr.String())
}

// Valid session file, blank input: resume only, nothing posted.
func TestRun_EmptyInputAfterResume(t *testing.T) {
	s := newScenario(t)
	require.NoError(t, sessions.NewStore(s.session).Save(s.server.Account))

	err := s.run("\n")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrValidation))

	assert.Equal(t, 1, s.server.Calls("com.atproto.server.getSession"))
	assert.Equal(t, 0, s.server.Calls("com.atproto.server.createSession"))
	assert.Equal(t, 0, s.server.Calls("com.atproto.repo.createRecord"))

	assert.Contains(t, s.stderr.String(), "ERROR :")
	assert.Contains(t, s.stderr.String(), models.ErrEmptyInput.Error())
	assert.NotContains(t, s.stdout.String(), "Successfully Posted")
}

type spySource struct {
	reads int
}

func (s *spySource) ReadOne(ctx context.Context) (string, error) {
	s.reads++
	return "never posted", nil
}

// Expired session file: auth error before any input is read.
func TestRun_ExpiredSessionStopsBeforeInput(t *testing.T) {
	s := newScenario(t)
	expired := s.server.Account
	expired.AccessJwt = "stale"
	expired.RefreshJwt = "stale-refresh"
	s.server.ExpiredAccess["stale"] = true
	require.NoError(t, sessions.NewStore(s.session).Save(expired))

	source := &spySource{}
	err := New(s.cfg, nil, s.stdout, s.stderr, source).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrAuth))

	assert.Equal(t, 0, source.reads)
	assert.Equal(t, 0, s.server.Calls("com.atproto.server.createSession"))
	assert.Empty(t, s.server.Records())
	assert.Contains(t, s.stderr.String(), "ERROR :")
}

func TestRun_PostsWithCachedSession(t *testing.T) {
	s := newScenario(t)
	require.NoError(t, sessions.NewStore(s.session).Save(s.server.Account))
	s.cfg.Input.Mode = config.InputModeAll
	s.cfg.Post.Langs = []string{"en"}

	require.NoError(t, s.run("  two\nlines  \n"))

	records := s.records(t)
	require.Len(t, records, 1)
	assert.Equal(t, "two\nlines", records[0].Text)
	assert.Equal(t, []string{"en"}, records[0].Langs)
	assert.NotContains(t, s.stdout.String(), "Logging In")
}

func TestRun_TooLongPostIsValidationError(t *testing.T) {
	s := newScenario(t)
	s.cfg.Post.MaxGraphemes = 5

	err := s.run("longer than five\n")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrPostTooLong))
	assert.Empty(t, s.server.Records())

	// Authentication already happened and its session is kept
	_, statErr := os.Stat(s.session)
	assert.NoError(t, statErr)
}
