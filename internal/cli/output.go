package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/LynxShu/ST-var-manager/internal/presentation/tui"
	"golang.org/x/term"
)

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// PrintMarkdown writes md to w, rendered with glamour when w is a terminal.
func PrintMarkdown(w io.Writer, md string, plain bool) error {
	if plain || !IsTerminal(w) {
		_, err := io.WriteString(w, md)
		return err
	}
	out, err := tui.NewRenderer()(md)
	if err != nil {
		return fmt.Errorf("failed to render output: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}
