package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"marketescrow/crypto"
	"marketescrow/rpc"
)

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("rpc error %d: %s (%s)", e.Code, e.Message, string(e.Data))
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type client struct {
	endpoint string
	token    string
	http     *http.Client
}

func newClient(endpoint, token string) *client {
	return &client{
		endpoint: strings.TrimRight(endpoint, "/"),
		token:    token,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *client) call(method string, params []json.RawMessage, requireAuth bool) (json.RawMessage, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, c.endpoint+"/rpc", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if requireAuth {
		if c.token == "" {
			return nil, fmt.Errorf("%s requires %s to be set", method, tokenEnv)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var decoded struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode response (HTTP %d): %w", resp.StatusCode, err)
	}
	if decoded.Error != nil {
		return nil, decoded.Error
	}
	return decoded.Result, nil
}

// query runs an unsigned read with a single params object.
func (c *client) query(method string, params interface{}) (json.RawMessage, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return c.call(method, []json.RawMessage{raw}, false)
}

// nextNonce returns one above the last nonce the host accepted from addr.
func (c *client) nextNonce(addr string) (uint64, error) {
	result, err := c.query("account_nonce", map[string]string{"address": addr})
	if err != nil {
		return 0, err
	}
	var out struct {
		Nonce uint64 `json:"nonce"`
	}
	if err := json.Unmarshal(result, &out); err != nil {
		return 0, err
	}
	return out.Nonce + 1, nil
}

// signed signs params with key and submits them. A zero nonce is resolved
// from the host.
func (c *client) signed(key *crypto.PrivateKey, method string, params interface{}, nonce uint64) (json.RawMessage, error) {
	if nonce == 0 {
		var err error
		if nonce, err = c.nextNonce(key.PubKey().Address().String()); err != nil {
			return nil, fmt.Errorf("resolve nonce: %w", err)
		}
	}
	signedParams, err := rpc.SignParams(key, method, params, nonce)
	if err != nil {
		return nil, err
	}
	return c.call(method, signedParams, false)
}
