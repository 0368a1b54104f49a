package rpc

import (
	"context"
	"errors"
	"net/http"

	"marketescrow/core"
	errs "marketescrow/core/errors"
	nhbstate "marketescrow/core/state"
)

type errorData struct {
	Module string `json:"module,omitempty"`
	Kind   string `json:"kind,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// toRPCError maps a handler error onto an HTTP status and a JSON-RPC error.
// Coded errors keep their numeric code so clients can match on it.
func toRPCError(err error) (int, *RPCError) {
	var se *statusError
	if errors.As(err, &se) {
		return se.status, se.rpc
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable, &RPCError{Code: codeServerError, Message: "request cancelled", Data: err.Error()}
	}
	if errors.Is(err, core.ErrSignerRequired) {
		return http.StatusUnauthorized, &RPCError{Code: codeInvalidSig, Message: "signer required"}
	}
	coded, ok := errs.As(err)
	if !ok {
		return http.StatusInternalServerError, &RPCError{Code: codeServerError, Message: "internal error"}
	}
	data := errorData{Module: coded.Module(), Kind: coded.Kind().String(), Detail: err.Error()}
	rpcErr := &RPCError{Code: int(coded.Code()), Message: coded.Message(), Data: data}
	if errors.Is(err, nhbstate.ErrNonceReplayed) {
		return http.StatusConflict, rpcErr
	}
	return statusForKind(coded.Kind()), rpcErr
}

func statusForKind(kind errs.Kind) int {
	switch kind {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindState:
		return http.StatusConflict
	case errs.KindAuthorization:
		return http.StatusForbidden
	case errs.KindResource:
		return http.StatusUnprocessableEntity
	case errs.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
