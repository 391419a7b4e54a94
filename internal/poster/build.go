package poster

import (
	"io"

	"github.com/sirupsen/logrus"
	"github.com/thand-io/skypost/internal/auth"
	"github.com/thand-io/skypost/internal/bsky"
	"github.com/thand-io/skypost/internal/common"
	"github.com/thand-io/skypost/internal/config"
	"github.com/thand-io/skypost/internal/input"
	"github.com/thand-io/skypost/internal/models"
	"github.com/thand-io/skypost/internal/publisher"
	"github.com/thand-io/skypost/internal/sessions"
)

func NewClient(cfg *config.Config) *bsky.Client {
	userAgent := cfg.Service.UserAgent
	if len(userAgent) == 0 {
		userAgent = common.UserAgent()
	}
	return bsky.NewClient(
		cfg.GetServiceUrl(),
		bsky.WithTimeout(cfg.Service.Timeout),
		bsky.WithUserAgent(userAgent),
	)
}

// NewAuthenticator wires the session file into the authenticator: the
// cached session is loaded from it and every renewal is written back.
func NewAuthenticator(cfg *config.Config, client *bsky.Client, progress io.Writer) *auth.Authenticator {

	store := sessions.NewStore(cfg.Session.Path)

	authenticator := auth.NewAuthenticator(client, store, cfg.GetCredentials(), auth.Options{
		FallbackToLogin: cfg.Auth.FallbackToLogin,
		Progress:        progress,
	})

	authenticator.Subscribe(sessions.SessionListenerFunc(logSessionEvent))
	authenticator.Subscribe(sessions.Persister(store))

	return authenticator
}

func logSessionEvent(event models.SessionEvent, data *models.SessionData) error {
	entry := logrus.WithField("event", event)
	if data != nil {
		entry = entry.WithField("handle", data.Handle)
	}
	entry.Debugln("Session event")
	return nil
}

// New builds a runner from configuration. Post text comes from source when
// given, otherwise from in according to the input settings.
func New(cfg *config.Config, in io.Reader, out io.Writer, errOut io.Writer, source TextSource) *Runner {

	client := NewClient(cfg)

	if source == nil {
		source = input.NewReader(in, input.Options{
			Mode:           cfg.Input.Mode,
			MaxBytes:       cfg.Input.MaxBytes,
			CloseAfterRead: cfg.Input.CloseAfterRead,
		})
	}

	runner := NewRunner(
		NewAuthenticator(cfg, client, out),
		source,
		publisher.NewPublisher(client, publisher.Options{
			MaxGraphemes: cfg.Post.MaxGraphemes,
			Langs:        cfg.Post.Langs,
		}),
	)
	runner.SetOutput(out, errOut)

	return runner
}
