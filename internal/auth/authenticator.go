package auth

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/thand-io/skypost/internal/bsky"
	"github.com/thand-io/skypost/internal/models"
	"github.com/thand-io/skypost/internal/sessions"
)

// SessionService is the subset of the XRPC client used to authenticate.
type SessionService interface {
	Service() string
	CreateSession(ctx context.Context, credentials models.Credentials) (*models.SessionData, error)
	GetSession(ctx context.Context, accessJwt string) (*models.SessionData, error)
	RefreshSession(ctx context.Context, refreshJwt string) (*models.SessionData, error)
}

// SessionLoader supplies the cached session, if any.
type SessionLoader interface {
	Load() (*models.SessionData, error)
}

type Options struct {
	// Log in with the credentials when a cached session is rejected.
	FallbackToLogin bool
	// Progress receives human readable status lines. Nil discards them.
	Progress io.Writer
}

// Authenticator resumes a cached session or logs in, and tells its
// listeners about every session change before returning.
type Authenticator struct {
	service     SessionService
	loader      SessionLoader
	credentials models.Credentials
	options     Options
	listeners   []sessions.SessionListener
}

func NewAuthenticator(
	service SessionService,
	loader SessionLoader,
	credentials models.Credentials,
	options Options,
) *Authenticator {
	if options.Progress == nil {
		options.Progress = io.Discard
	}
	return &Authenticator{
		service:     service,
		loader:      loader,
		credentials: credentials,
		options:     options,
	}
}

// Subscribe registers a listener for session changes.
func (a *Authenticator) Subscribe(listener sessions.SessionListener) {
	a.listeners = append(a.listeners, listener)
}

// Authenticate returns a usable session, resuming the cached one when
// present and logging in otherwise.
func (a *Authenticator) Authenticate(ctx context.Context) (*models.AuthenticatedSession, error) {

	cached, err := a.loader.Load()
	if err != nil {
		return nil, models.NewIOError("load session", err)
	}

	if cached == nil {
		fmt.Fprintln(a.options.Progress, "No Saved Session Data. Logging In...")
		return a.Login(ctx)
	}

	logrus.WithFields(logrus.Fields{
		"handle": cached.Handle,
		"did":    cached.Did,
	}).Debugln("Found saved session data. Resuming session...")

	session, err := a.Resume(ctx, *cached)
	if err == nil {
		return session, nil
	}

	if a.options.FallbackToLogin && bsky.IsAuthRejected(err) {
		logrus.WithError(err).Warnln("Saved session was rejected, logging in again")
		return a.Login(ctx)
	}

	return nil, err
}

// Login runs the fresh login path with the configured credentials.
func (a *Authenticator) Login(ctx context.Context) (*models.AuthenticatedSession, error) {

	logrus.WithFields(logrus.Fields{
		"identifier": a.credentials.Identifier,
		"service":    a.service.Service(),
	}).Debugln("Logging in")

	data, err := a.service.CreateSession(ctx, a.credentials)
	if err != nil {
		event := models.SessionEventCreateFailed
		if errors.Is(err, models.ErrNetwork) {
			event = models.SessionEventNetworkError
		}
		if notifyErr := a.notify(event, nil); notifyErr != nil {
			logrus.WithError(notifyErr).Warnln("Session listener failed")
		}
		return nil, models.NewAuthError("login", err)
	}

	if !data.Valid() {
		// The service answered but issued no usable session. Listeners
		// decide how fatal that is; with nothing to use we fail anyway.
		if err := a.notify(models.SessionEventCreate, nil); err != nil {
			return nil, err
		}
		return nil, models.NewAuthError("login", models.ErrNoSessionData)
	}

	if err := a.notify(models.SessionEventCreate, data); err != nil {
		return nil, err
	}

	return a.authenticated(*data), nil
}

// Resume validates a cached session, refreshing it once if the access
// token has expired.
func (a *Authenticator) Resume(ctx context.Context, cached models.SessionData) (*models.AuthenticatedSession, error) {

	account, err := a.service.GetSession(ctx, cached.AccessJwt)

	if err == nil {
		// The cached tokens stay current. A handle change reported by the
		// service is written back.
		merged := cached
		if len(account.Handle) > 0 {
			merged.Handle = account.Handle
		}
		if merged.Handle != cached.Handle {
			if err := a.notify(models.SessionEventUpdate, &merged); err != nil {
				return nil, err
			}
		}
		return a.authenticated(merged), nil
	}

	if !bsky.IsExpiredToken(err) {
		return nil, a.resumeFailed(err)
	}

	logrus.Debugln("Access token expired, refreshing session")

	refreshed, err := a.service.RefreshSession(ctx, cached.RefreshJwt)
	if err != nil {
		return nil, a.resumeFailed(err)
	}

	merged := fillMissing(*refreshed, cached)
	if !merged.Valid() {
		if err := a.notify(models.SessionEventUpdate, nil); err != nil {
			return nil, err
		}
		return nil, models.NewAuthError("refresh session", models.ErrNoSessionData)
	}

	if err := a.notify(models.SessionEventUpdate, &merged); err != nil {
		return nil, err
	}

	return a.authenticated(merged), nil
}

func (a *Authenticator) resumeFailed(err error) error {
	event := models.SessionEventExpired
	if errors.Is(err, models.ErrNetwork) {
		event = models.SessionEventNetworkError
	}
	if notifyErr := a.notify(event, nil); notifyErr != nil {
		logrus.WithError(notifyErr).Warnln("Session listener failed")
	}
	return models.NewAuthError("resume session", err)
}

func (a *Authenticator) notify(event models.SessionEvent, data *models.SessionData) error {

	logrus.WithFields(logrus.Fields{
		"event": event,
	}).Debugln("Session changed")

	for _, listener := range a.listeners {
		if err := listener.OnSessionChange(event, data); err != nil {
			return err
		}
	}
	return nil
}

func (a *Authenticator) authenticated(data models.SessionData) *models.AuthenticatedSession {
	return &models.AuthenticatedSession{
		Service: a.service.Service(),
		Data:    data,
	}
}

// fillMissing copies account fields the service left out of base.
func fillMissing(base models.SessionData, from models.SessionData) models.SessionData {
	if len(base.Handle) == 0 {
		base.Handle = from.Handle
	}
	if len(base.Did) == 0 {
		base.Did = from.Did
	}
	if len(base.Email) == 0 {
		base.Email = from.Email
	}
	return base
}
