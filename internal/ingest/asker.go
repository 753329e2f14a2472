package ingest

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Asker supplies operator answers to pipeline questions. Implementations
// return the answer with surrounding whitespace removed; validation is the
// caller's job so questions can be re-asked.
type Asker interface {
	Ask(question string) (string, error)
}

// TerminalAsker writes each question to out and reads one answer line from
// in. It is the interactive implementation wired to stdin/stdout by the
// CLI; tests script the dialogue with their own Asker.
type TerminalAsker struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTerminalAsker returns an Asker reading from r and prompting on w.
func NewTerminalAsker(r io.Reader, w io.Writer) *TerminalAsker {
	return &TerminalAsker{in: bufio.NewReader(r), out: w}
}

// Ask prints the question and returns the next input line. A final line
// without a trailing newline still counts as an answer; end of input with
// nothing on the line is an error so prompt loops terminate.
func (a *TerminalAsker) Ask(question string) (string, error) {
	if _, err := fmt.Fprint(a.out, question); err != nil {
		return "", err
	}
	line, err := a.in.ReadString('\n')
	answer := strings.TrimSpace(line)
	if err != nil {
		if err == io.EOF && answer != "" {
			return answer, nil
		}
		return "", err
	}
	return answer, nil
}
