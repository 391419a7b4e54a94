package cli

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/thand-io/skypost/internal/input"
	"github.com/thand-io/skypost/internal/models"
	"github.com/thand-io/skypost/internal/richtext"
)

// composer asks for the post text in a terminal form instead of reading
// standard input.
type composer struct {
	maxGraphemes int
}

func newComposer(maxGraphemes int) *composer {
	return &composer{maxGraphemes: maxGraphemes}
}

func (c *composer) ReadOne(ctx context.Context) (string, error) {
	var text string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title("What's up?").
				Description(fmt.Sprintf("Up to %d characters. Mentions, links and #tags are detected.", c.maxGraphemes)).
				Validate(c.validate).
				Value(&text),
		),
	)

	if err := form.RunWithContext(ctx); err != nil {
		return "", models.NewIOError("compose post", err)
	}

	return input.Validate(text)
}

func (c *composer) validate(text string) error {
	if _, err := input.Validate(text); err != nil {
		return err
	}
	if length := richtext.GraphemeLength(text); length > c.maxGraphemes {
		return fmt.Errorf("%d characters, the limit is %d", length, c.maxGraphemes)
	}
	return nil
}
