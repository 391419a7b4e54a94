// Package publisher turns a piece of text into an app.bsky.feed.post record
// and writes it to the authenticated account's repository.
package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/bluesky-social/indigo/api/atproto"
	lexutil "github.com/bluesky-social/indigo/lex/util"
	"github.com/sirupsen/logrus"
	"github.com/thand-io/skypost/internal/config"
	"github.com/thand-io/skypost/internal/models"
	"github.com/thand-io/skypost/internal/richtext"
)

// RecordService is the part of the XRPC client the publisher needs.
type RecordService interface {
	ResolveHandle(ctx context.Context, accessJwt string, handle string) (string, error)
	CreateRecord(ctx context.Context, accessJwt string, input *atproto.RepoCreateRecord_Input) (*models.PostResult, error)
}

type Options struct {
	MaxGraphemes int
	Langs        []string
	// Defaults to time.Now
	Clock func() time.Time
}

type Publisher struct {
	service      RecordService
	maxGraphemes int
	langs        []string
	clock        func() time.Time
}

func NewPublisher(service RecordService, options Options) *Publisher {
	if options.MaxGraphemes <= 0 {
		options.MaxGraphemes = config.DefaultMaxGraphemes
	}
	if options.Clock == nil {
		options.Clock = time.Now
	}
	return &Publisher{
		service:      service,
		maxGraphemes: options.MaxGraphemes,
		langs:        options.Langs,
		clock:        options.Clock,
	}
}

// Publish creates one post. It makes a single attempt.
func (p *Publisher) Publish(ctx context.Context, text string, session *models.AuthenticatedSession) (*models.PostResult, error) {

	if session == nil || !session.Data.Valid() {
		return nil, models.NewAuthError("publish", models.ErrNoSessionData)
	}

	rt, err := p.Prepare(ctx, text, session)
	if err != nil {
		return nil, err
	}

	record := models.NewPostRecord(rt.Text, rt.Facets, p.langs, p.clock())

	logrus.WithFields(logrus.Fields{
		"did":       session.GetDid(),
		"facets":    len(record.Facets),
		"createdAt": record.CreatedAt,
	}).Debugln("Creating post record")

	result, err := p.service.CreateRecord(ctx, session.GetAccessToken(), &atproto.RepoCreateRecord_Input{
		Repo:       session.GetDid(),
		Collection: models.FeedPostCollection,
		Record:     &lexutil.LexiconTypeDecoder{Val: record},
	})
	if err != nil {
		return nil, models.NewNetworkError("create post", err)
	}

	logrus.WithFields(logrus.Fields{
		"uri": result.Uri,
		"cid": result.Cid,
	}).Debugln("Post created")

	return result, nil
}

// Prepare normalizes the text, checks its length and detects facets. No
// record is written.
func (p *Publisher) Prepare(ctx context.Context, text string, session *models.AuthenticatedSession) (*richtext.RichText, error) {

	length := richtext.GraphemeLength(text)
	if length > p.maxGraphemes {
		return nil, models.NewValidationError("publish", fmt.Errorf(
			"%w: %d graphemes, limit is %d", models.ErrPostTooLong, length, p.maxGraphemes))
	}

	accessJwt := session.GetAccessToken()
	resolver := richtext.HandleResolverFunc(func(ctx context.Context, handle string) (string, error) {
		return p.service.ResolveHandle(ctx, accessJwt, handle)
	})

	return richtext.NewDetector(resolver).Detect(ctx, text)
}
