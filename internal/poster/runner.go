// Package poster runs one authenticate, read, publish cycle.
package poster

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/thand-io/skypost/internal/models"
)

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)
)

type Authenticator interface {
	Authenticate(ctx context.Context) (*models.AuthenticatedSession, error)
}

// TextSource yields the text of the post. The stdin reader and the
// interactive composer both satisfy it.
type TextSource interface {
	ReadOne(ctx context.Context) (string, error)
}

type Publisher interface {
	Publish(ctx context.Context, text string, session *models.AuthenticatedSession) (*models.PostResult, error)
}

type Runner struct {
	authenticator Authenticator
	source        TextSource
	publisher     Publisher

	out    io.Writer
	errOut io.Writer
}

func NewRunner(authenticator Authenticator, source TextSource, publisher Publisher) *Runner {
	return &Runner{
		authenticator: authenticator,
		source:        source,
		publisher:     publisher,
		out:           os.Stdout,
		errOut:        os.Stderr,
	}
}

// SetOutput redirects the success and error lines.
func (r *Runner) SetOutput(out io.Writer, errOut io.Writer) {
	r.out = out
	r.errOut = errOut
}

// Run performs a single post. Any failure is reported once on the error
// stream and returned.
func (r *Runner) Run(ctx context.Context) error {

	log := logrus.WithField("run", uuid.NewString())

	result, err := r.run(ctx, log)
	if err != nil {
		kind, _ := models.KindOf(err)
		log.WithError(err).WithField("kind", kind).Debugln("Run failed")
		fmt.Fprintln(r.errOut, errorStyle.Render("ERROR :"), err)
		return err
	}

	log.WithFields(logrus.Fields{
		"uri": result.Uri,
		"cid": result.Cid,
	}).Debugln("Posted")

	fmt.Fprintln(r.out, successStyle.Render("Successfully Posted"))
	return nil
}

func (r *Runner) run(ctx context.Context, log *logrus.Entry) (*models.PostResult, error) {

	session, err := r.authenticator.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	log = log.WithField("handle", session.GetHandle())
	log.Debugln("Authenticated")

	text, err := r.source.ReadOne(ctx)
	if err != nil {
		return nil, err
	}

	log.WithField("length", len(text)).Debugln("Read post text")

	return r.publisher.Publish(ctx, text, session)
}
