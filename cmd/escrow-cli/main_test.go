package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"marketescrow/core"
	"marketescrow/crypto"
	"marketescrow/rpc"
	"marketescrow/storage"
)

func newTestApp(t *testing.T, endpoint string) (*app, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	return &app{
		stdout:     stdout,
		stderr:     stderr,
		client:     newClient(endpoint, "cli-token"),
		passphrase: func(bool) (string, error) { return "correct horse", nil },
	}, stdout, stderr
}

func unreachable(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected RPC call to %s", r.URL.Path)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestCommandArgValidation(t *testing.T) {
	cases := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "usage", args: nil, wantErr: "Usage: escrow-cli"},
		{name: "unknown", args: []string{"teleport"}, wantErr: "Unknown command: teleport"},
		{name: "escrow_usage", args: []string{"escrow"}, wantErr: "Usage: escrow-cli escrow"},
		{name: "create_missing_marketplace", args: []string{"escrow", "create", "--quantity", "1"}, wantErr: "--marketplace is required"},
		{name: "get_bad_id", args: []string{"escrow", "get", "--id", "0x1234"}, wantErr: "--id:"},
		{name: "resolve_bad_favor", args: []string{"escrow", "resolve", "--id", sampleAddress(t), "--favor", "nobody"}, wantErr: "--favor must be seller or buyer"},
		{name: "query_bad_json", args: []string{"query", "escrow_get", "{"}, wantErr: "params must be valid JSON"},
		{name: "keygen_without_path", args: []string{"keygen"}, wantErr: "--keystore is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a, _, stderr := newTestApp(t, unreachable(t))
			if code := a.run(tc.args); code != 1 {
				t.Fatalf("expected exit 1 got %d", code)
			}
			if !strings.Contains(stderr.String(), tc.wantErr) {
				t.Fatalf("expected %q in stderr, got %q", tc.wantErr, stderr.String())
			}
		})
	}
}

func sampleAddress(t *testing.T) string {
	t.Helper()
	var key [20]byte
	key[0] = 7
	return crypto.FromKey(key).String()
}

func TestSignedFlowAgainstHost(t *testing.T) {
	node, err := core.NewNode(storage.NewMemDB(), core.Options{})
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	srv := httptest.NewServer(rpc.NewServer(node, rpc.ServerConfig{AuthToken: "cli-token"}).Handler())
	t.Cleanup(srv.Close)

	keystore := filepath.Join(t.TempDir(), "seller.keystore")
	a, stdout, stderr := newTestApp(t, srv.URL)
	if code := a.run([]string{"keygen", "--keystore", keystore}); code != 0 {
		t.Fatalf("keygen failed: %s", stderr.String())
	}
	address := strings.TrimSpace(stdout.String())

	stdout.Reset()
	if code := a.run([]string{"address", "--keystore", keystore}); code != 0 {
		t.Fatalf("address failed: %s", stderr.String())
	}
	if got := strings.TrimSpace(stdout.String()); got != address {
		t.Fatalf("address mismatch: %s vs %s", got, address)
	}

	if code := a.run([]string{"credit", "--address", address, "--amount", "2000000"}); code != 0 {
		t.Fatalf("credit failed: %s", stderr.String())
	}
	if code := a.run([]string{"call", "marketplace_initialize", `{"feeBasisPoints":100}`, "--keystore", keystore}); code != 0 {
		t.Fatalf("initialize failed: %s", stderr.String())
	}
	if code := a.run([]string{"call", "reputation_initialize", `{}`, "--keystore", keystore}); code != 0 {
		t.Fatalf("reputation failed: %s", stderr.String())
	}

	stdout.Reset()
	if code := a.run([]string{"nonce", address}); code != 0 {
		t.Fatalf("nonce failed: %s", stderr.String())
	}
	var nonce struct {
		Nonce uint64 `json:"nonce"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &nonce); err != nil {
		t.Fatalf("decode nonce: %v (%s)", err, stdout.String())
	}
	if nonce.Nonce != 2 {
		t.Fatalf("expected nonce 2 got %d", nonce.Nonce)
	}

	if code := a.run([]string{"call", "reputation_initialize", `{}`, "--keystore", keystore, "--nonce", "1"}); code != 1 {
		t.Fatalf("expected replayed nonce to fail")
	}
	if !strings.Contains(stderr.String(), "6018") {
		t.Fatalf("expected nonce replay code in stderr, got %q", stderr.String())
	}
}

func TestCreditRequiresToken(t *testing.T) {
	a, _, stderr := newTestApp(t, unreachable(t))
	a.client.token = ""
	if code := a.run([]string{"credit", "--address", sampleAddress(t), "--amount", "5"}); code != 1 {
		t.Fatalf("expected failure without token")
	}
	if !strings.Contains(stderr.String(), tokenEnv) {
		t.Fatalf("expected hint naming %s, got %q", tokenEnv, stderr.String())
	}
}
