package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

var errNotInteractive = errors.New("stdin is not a terminal")

// linePrompter asks on Out and reads one line from In.
type linePrompter struct {
	app *App
}

func (p *linePrompter) Prompt(ctx context.Context, question string) (string, error) {
	if !p.app.interactive() {
		return "", errNotInteractive
	}
	fmt.Fprint(p.app.Out, question)
	return readLine(ctx, p.app)
}

// readLine returns the next line without its newline. io.EOF is returned only
// when nothing was read.
func readLine(ctx context.Context, a *App) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	line, err := a.lines().ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
