package rpc

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"marketescrow/core"
	"marketescrow/core/types"
	"marketescrow/crypto"
)

// Envelope authenticates a mutating call. It travels as the second element of
// params; the signature covers the method name, the raw bytes of the first
// element and the nonce.
type Envelope struct {
	Signer    string `json:"signer"`
	Nonce     uint64 `json:"nonce"`
	Signature string `json:"signature"`
}

func signatureError(detail string) error {
	return &statusError{status: http.StatusUnauthorized, rpc: &RPCError{Code: codeInvalidSig, Message: "invalid signature", Data: detail}}
}

// authenticate decodes the method params into out and verifies the envelope.
func authenticate(req *RPCRequest, out interface{}) (core.Request, error) {
	if len(req.Params) != 2 {
		return core.Request{}, invalidParams("expected [params, envelope]")
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return core.Request{}, invalidParams("%v", err)
	}
	var env Envelope
	if err := json.Unmarshal(req.Params[1], &env); err != nil {
		return core.Request{}, invalidParams("envelope: %v", err)
	}
	signer, err := crypto.ParseKey(env.Signer)
	if err != nil {
		return core.Request{}, signatureError("signer: " + err.Error())
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(env.Signature), "0x"))
	if err != nil {
		return core.Request{}, signatureError("signature must be hex")
	}
	if err := crypto.VerifyRequest(signer, req.Method, req.Params[0], env.Nonce, sig); err != nil {
		return core.Request{}, signatureError(err.Error())
	}
	return core.Request{Signer: types.NewSigner(signer), Nonce: env.Nonce}, nil
}

// decodeParams decodes the single params object of a read-only call.
func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return invalidParams("exactly one parameter object expected")
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return invalidParams("%v", err)
	}
	return nil
}

// SignParams builds the params array for a signed call. Clients and tests use
// it to produce requests the server accepts.
func SignParams(key *crypto.PrivateKey, method string, params interface{}, nonce uint64) ([]json.RawMessage, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.SignRequest(key, method, raw, nonce)
	if err != nil {
		return nil, err
	}
	env, err := json.Marshal(Envelope{
		Signer:    key.PubKey().Address().String(),
		Nonce:     nonce,
		Signature: hex.EncodeToString(sig),
	})
	if err != nil {
		return nil, err
	}
	return []json.RawMessage{raw, env}, nil
}
