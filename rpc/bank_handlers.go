package rpc

import (
	"net/http"

	"marketescrow/core/types"
)

const maxEventPage = 500

type openHoldingParams struct {
	Owner    string `json:"owner,omitempty"`
	Currency string `json:"currency"`
}

type addressParams struct {
	Address string `json:"address"`
}

type eventsParams struct {
	After uint64 `json:"after"`
	Limit int    `json:"limit,omitempty"`
}

type creditParams struct {
	Address  string `json:"address"`
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

type nonceResult struct {
	Address string `json:"address"`
	Nonce   uint64 `json:"nonce"`
}

type okResult struct {
	OK bool `json:"ok"`
}

func (s *Server) tokenOpenHolding(r *http.Request, req *RPCRequest) (interface{}, error) {
	var params openHoldingParams
	auth, err := authenticate(req, &params)
	if err != nil {
		return nil, err
	}
	owner := auth.Signer.Address()
	if params.Owner != "" {
		if owner, err = parseAddress("owner", params.Owner); err != nil {
			return nil, err
		}
	}
	currency, err := parseCurrency(params.Currency)
	if err != nil {
		return nil, err
	}
	if err := s.node.TokenOpenHolding(r.Context(), auth, owner, currency); err != nil {
		return nil, err
	}
	return okResult{OK: true}, nil
}

func (s *Server) balanceGet(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params addressParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	owner, err := parseAddress("address", params.Address)
	if err != nil {
		return nil, err
	}
	balances, err := s.node.Balances(owner)
	if err != nil {
		return nil, err
	}
	return formatBalances(owner, balances), nil
}

func (s *Server) accountNonce(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params addressParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	owner, err := parseAddress("address", params.Address)
	if err != nil {
		return nil, err
	}
	nonce, err := s.node.LastNonce(owner)
	if err != nil {
		return nil, err
	}
	return nonceResult{Address: addr(owner), Nonce: nonce}, nil
}

func (s *Server) eventsList(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params eventsParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	if params.Limit <= 0 || params.Limit > maxEventPage {
		params.Limit = maxEventPage
	}
	list, err := s.node.Events(params.After, params.Limit)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []types.Event{}
	}
	return list, nil
}

func (s *Server) adminCredit(r *http.Request, req *RPCRequest) (interface{}, error) {
	var params creditParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	owner, err := parseAddress("address", params.Address)
	if err != nil {
		return nil, err
	}
	currency, err := parseCurrency(params.Currency)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.node.Credit(r.Context(), owner, currency, amount); err != nil {
		return nil, err
	}
	balances, err := s.node.Balances(owner)
	if err != nil {
		return nil, err
	}
	return formatBalances(owner, balances), nil
}
