package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// confirm asks a yes/no question on w and reads the answer from r. The
// default is no; only "y" or "yes" in any case accepts.
func confirm(w io.Writer, r io.Reader, question string) bool {
	_, _ = fmt.Fprintf(w, "%s [y/N] ", question)

	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		_, _ = fmt.Fprintln(w)
		return false
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
