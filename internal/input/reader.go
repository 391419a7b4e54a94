package input

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/thand-io/skypost/internal/config"
	"github.com/thand-io/skypost/internal/models"
)

// ErrAbandoned is returned by every read after one was cancelled. The
// cancelled read may still be blocked on the source, so the reader cannot
// hand the source out again.
var ErrAbandoned = errors.New("input source abandoned by a cancelled read")

// Reader reads the text of one post from a stream. A Reader is single-use
// once a read has been cancelled.
type Reader struct {
	source         io.Reader
	mode           config.InputMode
	maxBytes       int
	closeAfterRead bool

	lock      sync.Mutex // one read holds the source at a time
	abandoned bool
}

type Options struct {
	Mode     config.InputMode
	MaxBytes int
	// Close the source once the read completes, when it is an io.Closer.
	CloseAfterRead bool
}

func NewReader(source io.Reader, options Options) *Reader {
	if len(options.Mode) == 0 {
		options.Mode = config.InputModeLine
	}
	if options.MaxBytes <= 0 {
		options.MaxBytes = config.DefaultMaxInput
	}
	return &Reader{
		source:         source,
		mode:           options.Mode,
		maxBytes:       options.MaxBytes,
		closeAfterRead: options.CloseAfterRead,
	}
}

type readResult struct {
	data string
	err  error
}

// ReadOne waits for input according to the configured mode and returns it
// trimmed. Whitespace-only input, and input longer than the configured
// limit, are validation errors.
func (r *Reader) ReadOne(ctx context.Context) (string, error) {

	r.lock.Lock()
	defer r.release()

	if r.abandoned {
		return "", models.NewIOError("read input", ErrAbandoned)
	}

	logrus.WithFields(logrus.Fields{
		"mode":     r.mode,
		"maxBytes": r.maxBytes,
	}).Debugln("Waiting for input")

	results := make(chan readResult, 1)
	go func() {
		data, err := r.read()
		results <- readResult{data, err}
	}()

	var result readResult
	select {
	case <-ctx.Done():
		r.abandoned = true
		return "", models.NewIOError("read input", ctx.Err())
	case result = <-results:
	}

	if errors.Is(result.err, models.ErrValidation) {
		return "", result.err
	}
	if result.err != nil {
		return "", models.NewIOError("read input", result.err)
	}

	return Validate(result.data)
}

func (r *Reader) release() {
	if r.closeAfterRead {
		if closer, ok := r.source.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				logrus.WithError(err).Debugln("Failed to close input source")
			}
		}
	}
	r.lock.Unlock()
}

// read pulls at most one byte past the limit so that overlong input is
// reported instead of cut.
func (r *Reader) read() (string, error) {
	limited := io.LimitReader(r.source, int64(r.maxBytes)+1)

	switch r.mode {
	case config.InputModeChunk:
		buf := make([]byte, r.maxBytes+1)
		n, err := limited.Read(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		if n > r.maxBytes {
			return "", r.tooLong()
		}
		return string(buf[:n]), nil

	case config.InputModeLine:
		line, err := bufio.NewReaderSize(limited, 4096).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		// The newline itself does not count against the limit
		if !strings.HasSuffix(line, "\n") && len(line) > r.maxBytes {
			return "", r.tooLong()
		}
		return line, nil

	case config.InputModeAll:
		data, err := io.ReadAll(limited)
		if err != nil {
			return "", err
		}
		if len(data) > r.maxBytes {
			return "", r.tooLong()
		}
		return string(data), nil

	default:
		return "", fmt.Errorf("unsupported input mode: %s", r.mode)
	}
}

func (r *Reader) tooLong() error {
	return models.NewValidationError("read input",
		fmt.Errorf("%w: more than %d bytes", models.ErrInputTooLong, r.maxBytes))
}

// Validate applies the same rule ReadOne does to text from another source,
// such as the interactive composer.
func Validate(text string) (string, error) {
	text = strings.TrimSpace(text)
	if len(text) == 0 {
		return "", models.NewValidationError("read input", models.ErrEmptyInput)
	}
	return text, nil
}
