package cli

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dshills/flowsync/pkg/versiongate"
)

const maxSecretSize = 1 << 20 // 1MB limit for all secret inputs

// readPassword reads a line without echo. Tests replace it.
var readPassword = func() ([]byte, error) {
	return term.ReadPassword(int(os.Stdin.Fd()))
}

// isOnlyWhitespace checks if a byte slice contains only Unicode whitespace characters
// without allocating strings. Returns true if empty or whitespace-only.
func isOnlyWhitespace(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			return false
		}
		if !unicode.IsSpace(r) {
			return false
		}
		i += size
	}
	return true
}

// secretInput describes where a token or API key comes from.
type secretInput struct {
	label    string // shown in prompts and errors, e.g. "token"
	flag     string // flag carrying the value, e.g. "token"
	value    string
	useStdin bool
}

// read returns the secret from the flag, stdin or a hidden prompt, in that
// order of preference.
func (in secretInput) read(cmd *cobra.Command) (string, error) {
	switch {
	case in.useStdin:
		return readSecretStdin(cmd.InOrStdin(), in.label)

	case in.value != "":
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: passing the %s as a flag exposes it in shell history.\n", in.label)
		if len(in.value) > maxSecretSize {
			return "", fmt.Errorf("%s exceeds maximum size of %d bytes", in.label, maxSecretSize)
		}
		if strings.TrimSpace(in.value) == "" {
			return "", fmt.Errorf("%s cannot contain only whitespace characters", in.label)
		}
		return in.value, nil
	}

	if !stdinIsTerminal() {
		return "", fmt.Errorf("%s is required (use --%s or --stdin)", in.label, in.flag)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Enter %s: ", in.label)
	secret, err := readPassword()
	_, _ = fmt.Fprintln(cmd.OutOrStdout())
	defer func() {
		for i := range secret {
			secret[i] = 0
		}
	}()
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", in.label, err)
	}
	if len(secret) > maxSecretSize {
		return "", fmt.Errorf("%s exceeds maximum size of %d bytes", in.label, maxSecretSize)
	}
	if isOnlyWhitespace(secret) {
		return "", fmt.Errorf("%s cannot be empty", in.label)
	}
	return string(secret), nil
}

func readSecretStdin(r io.Reader, label string) (string, error) {
	input, err := io.ReadAll(io.LimitReader(r, maxSecretSize+1))
	defer func() {
		for i := range input {
			input[i] = 0
		}
	}()
	if err != nil {
		return "", fmt.Errorf("failed to read from stdin: %w", err)
	}
	if len(input) > maxSecretSize {
		return "", fmt.Errorf("%s exceeds maximum size of %d bytes", label, maxSecretSize)
	}

	trimmed := bytes.TrimRight(input, "\r\n")
	if isOnlyWhitespace(trimmed) {
		return "", fmt.Errorf("%s cannot be empty", label)
	}
	return string(trimmed), nil
}

// promptConfirmer asks on the terminal before a flow tested against another
// version is applied.
type promptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

// ConfirmVersionMismatch implements versiongate.Confirmer.
func (c *promptConfirmer) ConfirmVersionMismatch(m versiongate.Mismatch) (bool, error) {
	_, _ = fmt.Fprintf(c.out, "Flow %q was last tested with Langflow %s but the environment runs %s.\n",
		m.Subject, m.LastTested, m.Environment)
	_, _ = fmt.Fprint(c.out, "Continue anyway? [y/N]: ")

	line, err := c.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// confirmerFor returns an interactive confirmer when stdin is a terminal and
// nil otherwise, which makes version mismatches block.
func confirmerFor(cmd *cobra.Command) versiongate.Confirmer {
	if !stdinIsTerminal() {
		return nil
	}
	return &promptConfirmer{in: bufio.NewReader(cmd.InOrStdin()), out: cmd.OutOrStdout()}
}
