package models

import (
	"strings"
)

// SessionData is the session bundle issued by the personal data server.
// Field names match the server's session payload so the cached file can be
// shared with other AT Protocol clients.
type SessionData struct {
	AccessJwt       string `json:"accessJwt" yaml:"accessJwt"`
	RefreshJwt      string `json:"refreshJwt" yaml:"refreshJwt"`
	Handle          string `json:"handle" yaml:"handle"`
	Did             string `json:"did" yaml:"did"`
	Email           string `json:"email,omitempty" yaml:"email,omitempty"`
	EmailConfirmed  *bool  `json:"emailConfirmed,omitempty" yaml:"emailConfirmed,omitempty"`
	EmailAuthFactor *bool  `json:"emailAuthFactor,omitempty" yaml:"emailAuthFactor,omitempty"`
	Active          *bool  `json:"active,omitempty" yaml:"active,omitempty"`
	Status          string `json:"status,omitempty" yaml:"status,omitempty"`
}

// IsZero reports whether no field carries a value.
func (s *SessionData) IsZero() bool {
	return s == nil || (len(s.AccessJwt) == 0 &&
		len(s.RefreshJwt) == 0 &&
		len(s.Handle) == 0 &&
		len(s.Did) == 0)
}

// Valid reports whether the bundle can authenticate requests and scope
// record creation.
func (s *SessionData) Valid() bool {
	return s != nil &&
		len(s.AccessJwt) > 0 &&
		len(s.RefreshJwt) > 0 &&
		strings.HasPrefix(s.Did, "did:")
}

// Redacted returns a copy with the tokens masked, for display.
func (s SessionData) Redacted() SessionData {
	s.AccessJwt = redact(s.AccessJwt)
	s.RefreshJwt = redact(s.RefreshJwt)
	return s
}

func redact(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// AuthenticatedSession is what the auth client hands to the publisher.
type AuthenticatedSession struct {
	Service string      `json:"service"`
	Data    SessionData `json:"data"`
}

func (a *AuthenticatedSession) GetDid() string {
	if a == nil {
		return ""
	}
	return a.Data.Did
}

func (a *AuthenticatedSession) GetHandle() string {
	if a == nil {
		return ""
	}
	return a.Data.Handle
}

func (a *AuthenticatedSession) GetAccessToken() string {
	if a == nil {
		return ""
	}
	return a.Data.AccessJwt
}

// Credentials used by the fresh login path.
type Credentials struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// SessionEvent names a change in session state.
type SessionEvent string

const (
	SessionEventCreate       SessionEvent = "create"
	SessionEventCreateFailed SessionEvent = "create-failed"
	SessionEventUpdate       SessionEvent = "update"
	SessionEventExpired      SessionEvent = "expired"
	SessionEventNetworkError SessionEvent = "network-error"
)

// CarriesSession reports whether listeners should expect a payload.
func (e SessionEvent) CarriesSession() bool {
	return e == SessionEventCreate || e == SessionEventUpdate
}
