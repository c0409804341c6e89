package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/oshokin/patch-updater/internal/domain/update"
	"github.com/oshokin/patch-updater/internal/logger"
)

// Console reads answers from in and writes questions to out.
// A single goroutine owns in; every question takes its answer from lines.
type Console struct {
	// in buffers the answers.
	in *bufio.Reader
	// startReader launches the reading goroutine on first use.
	startReader sync.Once
	// lines carries answers and is closed once in is exhausted.
	lines chan string
	// readErr is why in stopped, valid after lines is closed.
	readErr error
	// out receives questions.
	out io.Writer
	// terminal is true when in is an interactive terminal.
	terminal bool
	// program is the executable name shown in instructions.
	program string
}

// New creates a console. program names the executable in instructions.
func New(in io.Reader, out io.Writer, program string) *Console {
	return &Console{
		in:       bufio.NewReader(in),
		lines:    make(chan string),
		out:      out,
		terminal: isTerminal(in),
		program:  program,
	}
}

// IsTerminal reports whether answers come from an interactive terminal.
func (c *Console) IsTerminal() bool {
	return c.terminal
}

// Prompt explains how to provide an image and reads one answer.
// It returns early with the context error when ctx is done.
func (c *Console) Prompt(ctx context.Context) (string, error) {
	c.printf("This updater requires an unmodified image in order to auto-update.\n")
	c.printf("Please do one of the following:\n")
	c.printf("  - Exit this application and drag and drop your image onto %s\n", c.program)
	c.printf("  - Enter the file path to your local copy of the image\n")
	c.printf("  - Move the image to this folder and restart %s\n", c.program)
	c.printf("  - Enter a link to a download of the image\n\n")
	c.printf("Input: ")

	return c.readLineContext(ctx)
}

// ChooseRelease lists releases newest first and reads the chosen index.
// Anything that is not a number selects the newest release.
func (c *Console) ChooseRelease(ctx context.Context, releases []update.Release) (int, error) {
	for i, release := range releases {
		c.printf("%d: %s\n", i, release.Version)
	}

	c.printf("Enter the number of the wished release: ")

	answer, err := c.readLineContext(ctx)
	if err != nil {
		return 0, err
	}

	index, err := strconv.Atoi(strings.TrimSpace(answer))
	if err != nil {
		logger.WarnKV(ctx, "Not a release number, using the newest release", "input", answer)
		return 0, nil
	}

	return index, nil
}

// Pause waits for Enter so a console window opened by double-click stays visible.
func (c *Console) Pause() {
	c.printf("\nPress enter to exit...")

	_, _ = c.readLineContext(context.Background())
}

// readLineContext waits for the next answer or for ctx to be done.
// An answer that arrives after ctx is done is kept for the next question.
func (c *Console) readLineContext(ctx context.Context) (string, error) {
	c.startReader.Do(func() {
		go c.readLoop()
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-c.lines:
		if !ok {
			return "", c.readErr
		}

		return line, nil
	}
}

// readLoop feeds lines until in fails.
func (c *Console) readLoop() {
	defer close(c.lines)

	for {
		line, err := c.readLine()
		if err != nil {
			c.readErr = err
			return
		}

		c.lines <- line
	}
}

// readLine returns one line without its terminator.
// A final line without a newline is returned before io.EOF.
func (c *Console) readLine() (string, error) {
	line, err := c.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}

	return strings.TrimRight(line, "\r\n"), nil
}

func (c *Console) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}

// isTerminal detects interactive terminals, including Cygwin/MSYS ptys.
func isTerminal(r io.Reader) bool {
	file, ok := r.(*os.File)
	if !ok {
		return false
	}

	fd := file.Fd()

	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
