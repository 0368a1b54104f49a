package passphrase

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// ErrMismatch is returned when the confirmation prompt does not match.
var ErrMismatch = errors.New("passphrases do not match")

// Source resolves a keystore passphrase from an environment variable or an
// interactive prompt, caching the first result.
type Source struct {
	envVar  string
	prompt  string
	confirm bool

	lookupEnv func(string) (string, bool)
	read      func() ([]byte, error)
	out       io.Writer

	once  sync.Once
	value string
	err   error
}

// NewSource checks envVar before prompting on the terminal with prompt.
func NewSource(envVar, prompt string) *Source {
	if prompt == "" {
		prompt = "Enter keystore passphrase: "
	}
	fd := int(os.Stdin.Fd())
	return &Source{
		envVar:    strings.TrimSpace(envVar),
		prompt:    prompt,
		lookupEnv: os.LookupEnv,
		read: func() ([]byte, error) {
			if !term.IsTerminal(fd) {
				return nil, errNoTerminal
			}
			return term.ReadPassword(fd)
		},
		out: os.Stderr,
	}
}

var errNoTerminal = errors.New("no terminal available")

// WithConfirm asks twice when prompting. Use it when creating a keystore.
func (s *Source) WithConfirm() *Source {
	s.confirm = true
	return s
}

// Get returns the cached passphrase or resolves it on first use. Whitespace
// only values are rejected.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		s.value, s.err = s.resolve()
	})
	return s.value, s.err
}

func (s *Source) resolve() (string, error) {
	if s.envVar != "" {
		if value, ok := s.lookupEnv(s.envVar); ok {
			if strings.TrimSpace(value) == "" {
				return "", fmt.Errorf("%s is set but empty", s.envVar)
			}
			return value, nil
		}
	}
	first, err := s.ask(s.prompt)
	if err != nil {
		return "", err
	}
	if s.confirm {
		second, err := s.ask("Confirm passphrase: ")
		if err != nil {
			return "", err
		}
		if first != second {
			return "", ErrMismatch
		}
	}
	return first, nil
}

func (s *Source) ask(prompt string) (string, error) {
	fmt.Fprint(s.out, prompt)
	raw, err := s.read()
	fmt.Fprintln(s.out)
	if errors.Is(err, errNoTerminal) {
		if s.envVar != "" {
			return "", fmt.Errorf("keystore passphrase required; set %s or run interactively", s.envVar)
		}
		return "", errors.New("keystore passphrase required and no terminal available")
	}
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	value := string(raw)
	if strings.TrimSpace(value) == "" {
		return "", errors.New("keystore passphrase cannot be empty")
	}
	return value, nil
}
