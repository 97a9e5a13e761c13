package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// promptPassword reads a secret without echo when stdin is a terminal.
// Piped input is read as a plain line.
func promptPassword(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		data, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	return readLine(bufio.NewReader(os.Stdin))
}

// promptLine prints label and reads one trimmed line.
func promptLine(reader *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	return readLine(reader)
}

func readLine(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// lineConfirmer asks for a y/N answer on a line-oriented stream.
type lineConfirmer struct {
	reader *bufio.Reader
	out    io.Writer
}

func (c *lineConfirmer) Confirm(ctx context.Context, count int) bool {
	answer, err := promptLine(c.reader, c.out, fmt.Sprintf("Are you sure you want to delete %d file(s)? [y/N]: ", count))
	if err != nil || ctx.Err() != nil {
		return false
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes"
}
