package passphrase

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func scripted(env map[string]string, answers ...string) *Source {
	s := NewSource("TEST_PASS", "")
	s.lookupEnv = func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	s.read = func() ([]byte, error) {
		if len(answers) == 0 {
			return nil, errNoTerminal
		}
		next := answers[0]
		answers = answers[1:]
		return []byte(next), nil
	}
	s.out = io.Discard
	return s
}

func TestEnvironmentWins(t *testing.T) {
	s := scripted(map[string]string{"TEST_PASS": "from-env"}, "typed")
	got, err := s.Get()
	if err != nil || got != "from-env" {
		t.Fatalf("expected env value, got %q err %v", got, err)
	}
}

func TestEmptyEnvironmentRejected(t *testing.T) {
	s := scripted(map[string]string{"TEST_PASS": "  "})
	if _, err := s.Get(); err == nil || !strings.Contains(err.Error(), "set but empty") {
		t.Fatalf("expected empty env error, got %v", err)
	}
}

func TestPromptCached(t *testing.T) {
	s := scripted(nil, "secret")
	for i := 0; i < 2; i++ {
		got, err := s.Get()
		if err != nil || got != "secret" {
			t.Fatalf("call %d: got %q err %v", i, got, err)
		}
	}
}

func TestConfirmMismatch(t *testing.T) {
	s := scripted(nil, "one", "two").WithConfirm()
	if _, err := s.Get(); !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
}

func TestNoTerminalNamesVariable(t *testing.T) {
	s := scripted(nil)
	_, err := s.Get()
	if err == nil || !strings.Contains(err.Error(), "TEST_PASS") {
		t.Fatalf("expected hint naming TEST_PASS, got %v", err)
	}
}
