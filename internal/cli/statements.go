package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// readStatements reads DQL statements, one per line. Blank lines and lines
// starting with "--" or "#" are skipped; a line ending with a backslash
// continues on the next one.
func readStatements(r io.Reader) ([]string, error) {
	var (
		stmts []string
		cur   strings.Builder
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if cur.Len() == 0 && (line == "" || strings.HasPrefix(line, "--") || strings.HasPrefix(line, "#")) {
			continue
		}
		if cont, ok := strings.CutSuffix(line, `\`); ok {
			cur.WriteString(strings.TrimSpace(cont))
			cur.WriteByte(' ')
			continue
		}
		cur.WriteString(line)
		stmts = append(stmts, strings.TrimSuffix(strings.TrimSpace(cur.String()), ";"))
		cur.Reset()
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if cur.Len() > 0 {
		stmts = append(stmts, strings.TrimSpace(cur.String()))
	}
	return stmts, nil
}

// statements returns the statements given as arguments, or read from file
// ("-" for stdin).
func statements(args []string, file string, stdin io.Reader) ([]string, error) {
	if file == "" {
		if len(args) == 0 {
			return nil, NewExitError(ExitCommandError, "no statements: pass them as arguments or with --file")
		}
		return args, nil
	}
	if len(args) > 0 {
		return nil, NewExitError(ExitCommandError, "statements given both as arguments and with --file")
	}
	r := stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "reading statements", err)
		}
		defer f.Close()
		r = f
	}
	stmts, err := readStatements(r)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "reading statements", err)
	}
	if len(stmts) == 0 {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("no statements in %s", file))
	}
	return stmts, nil
}
