package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"marketescrow/cmd/internal/passphrase"
	"marketescrow/crypto"
)

const (
	endpointEnv     = "ESCROW_RPC_URL"
	tokenEnv        = "ESCROW_RPC_TOKEN"
	keyPassEnv      = "ESCROW_KEY_PASS"
	defaultEndpoint = "http://127.0.0.1:8545"
)

type app struct {
	stdout io.Writer
	stderr io.Writer
	client *client
	// passphrase resolves the keystore passphrase; confirm is set for new keys.
	passphrase func(confirm bool) (string, error)
}

func main() {
	a := &app{
		stdout: os.Stdout,
		stderr: os.Stderr,
		passphrase: func(confirm bool) (string, error) {
			src := passphrase.NewSource(keyPassEnv, "")
			if confirm {
				src.WithConfirm()
			}
			return src.Get()
		},
	}
	os.Exit(a.run(os.Args[1:]))
}

func (a *app) run(args []string) int {
	endpoint := os.Getenv(endpointEnv)
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	global := flag.NewFlagSet("escrow-cli", flag.ContinueOnError)
	global.SetOutput(a.stderr)
	global.StringVar(&endpoint, "rpc", endpoint, "JSON-RPC endpoint")
	if err := global.Parse(args); err != nil {
		return 1
	}
	if a.client == nil {
		a.client = newClient(endpoint, strings.TrimSpace(os.Getenv(tokenEnv)))
	}
	rest := global.Args()
	if len(rest) == 0 {
		fmt.Fprintln(a.stderr, usage())
		return 1
	}
	switch rest[0] {
	case "keygen":
		return a.keygen(rest[1:])
	case "address":
		return a.address(rest[1:])
	case "nonce":
		return a.nonce(rest[1:])
	case "query":
		return a.query(rest[1:])
	case "call":
		return a.call(rest[1:])
	case "credit":
		return a.credit(rest[1:])
	case "escrow":
		return a.escrow(rest[1:])
	case "help", "-h", "--help":
		fmt.Fprintln(a.stdout, usage())
		return 0
	default:
		fmt.Fprintf(a.stderr, "Unknown command: %s\n", rest[0])
		fmt.Fprintln(a.stderr, usage())
		return 1
	}
}

func usage() string {
	return strings.TrimSpace(`
Usage: escrow-cli [--rpc URL] <command> [flags]

Commands:
  keygen  --keystore PATH                       create an encrypted key
  address --keystore PATH                       print the key's address
  nonce   ADDRESS                               print the last accepted nonce
  query   METHOD JSON                           unsigned read call
  call    METHOD JSON --keystore PATH [--nonce] signed call
  credit  --address A --currency C --amount N   operator credit (needs ESCROW_RPC_TOKEN)
  escrow  <create|fund|ship|confirm|dispute|cancel|resolve|get|list|custody>
`)
}

func (a *app) fail(format string, args ...interface{}) int {
	fmt.Fprintf(a.stderr, "Error: "+format+"\n", args...)
	return 1
}

func (a *app) print(result json.RawMessage) int {
	var pretty interface{}
	if err := json.Unmarshal(result, &pretty); err != nil {
		fmt.Fprintln(a.stdout, string(result))
		return 0
	}
	out, _ := json.MarshalIndent(pretty, "", "  ")
	fmt.Fprintln(a.stdout, string(out))
	return 0
}

func (a *app) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func (a *app) loadKey(path string) (*crypto.PrivateKey, error) {
	if path == "" {
		return nil, fmt.Errorf("--keystore is required")
	}
	pass, err := a.passphrase(false)
	if err != nil {
		return nil, err
	}
	return crypto.LoadFromKeystore(path, pass)
}

func (a *app) keygen(args []string) int {
	fs := a.flagSet("keygen")
	path := fs.String("keystore", "", "keystore file to create")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *path == "" {
		return a.fail("--keystore is required")
	}
	if _, err := os.Stat(*path); err == nil {
		return a.fail("%s already exists", *path)
	}
	pass, err := a.passphrase(true)
	if err != nil {
		return a.fail("%v", err)
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return a.fail("%v", err)
	}
	if err := crypto.SaveToKeystore(*path, key, pass); err != nil {
		return a.fail("%v", err)
	}
	fmt.Fprintln(a.stdout, key.PubKey().Address().String())
	return 0
}

func (a *app) address(args []string) int {
	fs := a.flagSet("address")
	path := fs.String("keystore", "", "keystore file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := a.loadKey(*path)
	if err != nil {
		return a.fail("%v", err)
	}
	fmt.Fprintln(a.stdout, key.PubKey().Address().String())
	return 0
}

func (a *app) nonce(args []string) int {
	if len(args) != 1 {
		return a.fail("nonce takes exactly one address")
	}
	if _, err := crypto.ParseKey(args[0]); err != nil {
		return a.fail("%v", err)
	}
	result, err := a.client.query("account_nonce", map[string]string{"address": args[0]})
	if err != nil {
		return a.fail("%v", err)
	}
	return a.print(result)
}

func (a *app) query(args []string) int {
	if len(args) != 2 {
		return a.fail("query takes METHOD and a JSON object")
	}
	if !json.Valid([]byte(args[1])) {
		return a.fail("params must be valid JSON")
	}
	result, err := a.client.call(args[0], []json.RawMessage{json.RawMessage(args[1])}, false)
	if err != nil {
		return a.fail("%v", err)
	}
	return a.print(result)
}

func (a *app) call(args []string) int {
	if len(args) < 2 {
		return a.fail("call takes METHOD and a JSON object")
	}
	method, params := args[0], args[1]
	fs := a.flagSet("call")
	path := fs.String("keystore", "", "keystore file of the signer")
	nonce := fs.Uint64("nonce", 0, "request nonce (0 resolves from the host)")
	if err := fs.Parse(args[2:]); err != nil {
		return 1
	}
	var decoded interface{}
	if err := json.Unmarshal([]byte(params), &decoded); err != nil {
		return a.fail("params must be valid JSON: %v", err)
	}
	key, err := a.loadKey(*path)
	if err != nil {
		return a.fail("%v", err)
	}
	result, err := a.client.signed(key, method, json.RawMessage(params), *nonce)
	if err != nil {
		return a.fail("%v", err)
	}
	return a.print(result)
}

func (a *app) credit(args []string) int {
	fs := a.flagSet("credit")
	addr := fs.String("address", "", "recipient address")
	currency := fs.String("currency", "NATIVE", "NATIVE, USDC or USDT")
	amount := fs.String("amount", "", "amount in base units")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *addr == "" || *amount == "" {
		return a.fail("--address and --amount are required")
	}
	raw, err := json.Marshal(map[string]string{"address": *addr, "currency": *currency, "amount": *amount})
	if err != nil {
		return a.fail("%v", err)
	}
	result, err := a.client.call("admin_credit", []json.RawMessage{raw}, true)
	if err != nil {
		return a.fail("%v", err)
	}
	return a.print(result)
}
