package rpc

import (
	"net/http"

	"marketescrow/core"
	"marketescrow/native/escrow"
)

type escrowCreateParams struct {
	Marketplace string `json:"marketplace"`
	Product     string `json:"product"`
	Quantity    int64  `json:"quantity"`
}

type escrowIDParams struct {
	ID string `json:"id"`
}

type escrowShipParams struct {
	ID         string `json:"id"`
	TrackingID string `json:"trackingId"`
}

type escrowDisputeParams struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

type escrowResolveParams struct {
	ID          string `json:"id"`
	FavorSeller bool   `json:"favorSeller"`
}

type custodyParams struct {
	Marketplace string `json:"marketplace"`
	Buyer       string `json:"buyer"`
	Product     string `json:"product"`
}

type custodyResult struct {
	ID        string `json:"id"`
	Bump      uint8  `json:"bump"`
	ProgramID string `json:"programId"`
}

type listByPartyParams struct {
	Party string `json:"party"`
	Limit int    `json:"limit,omitempty"`
}

func (s *Server) escrowCreate(r *http.Request, req *RPCRequest) (interface{}, error) {
	var params escrowCreateParams
	auth, err := authenticate(req, &params)
	if err != nil {
		return nil, err
	}
	marketID, err := parseAddress("marketplace", params.Marketplace)
	if err != nil {
		return nil, err
	}
	productID, err := parseAddress("product", params.Product)
	if err != nil {
		return nil, err
	}
	esc, err := s.node.EscrowCreate(r.Context(), auth, marketID, productID, params.Quantity)
	if err != nil {
		return nil, err
	}
	return formatEscrow(esc), nil
}

// escrowByID runs a signed transition that only needs the escrow id.
func (s *Server) escrowByID(r *http.Request, req *RPCRequest, apply func(core.Request, [20]byte) (*escrow.Escrow, error)) (interface{}, error) {
	var params escrowIDParams
	auth, err := authenticate(req, &params)
	if err != nil {
		return nil, err
	}
	id, err := parseAddress("id", params.ID)
	if err != nil {
		return nil, err
	}
	esc, err := apply(auth, id)
	if err != nil {
		return nil, err
	}
	return formatEscrow(esc), nil
}

func (s *Server) escrowFund(r *http.Request, req *RPCRequest) (interface{}, error) {
	return s.escrowByID(r, req, func(auth core.Request, id [20]byte) (*escrow.Escrow, error) {
		return s.node.EscrowFund(r.Context(), auth, id)
	})
}

func (s *Server) escrowConfirmDelivery(r *http.Request, req *RPCRequest) (interface{}, error) {
	return s.escrowByID(r, req, func(auth core.Request, id [20]byte) (*escrow.Escrow, error) {
		return s.node.EscrowConfirmDelivery(r.Context(), auth, id)
	})
}

func (s *Server) escrowCancel(r *http.Request, req *RPCRequest) (interface{}, error) {
	return s.escrowByID(r, req, func(auth core.Request, id [20]byte) (*escrow.Escrow, error) {
		return s.node.EscrowCancel(r.Context(), auth, id)
	})
}

func (s *Server) escrowMarkShipped(r *http.Request, req *RPCRequest) (interface{}, error) {
	var params escrowShipParams
	auth, err := authenticate(req, &params)
	if err != nil {
		return nil, err
	}
	id, err := parseAddress("id", params.ID)
	if err != nil {
		return nil, err
	}
	esc, err := s.node.EscrowMarkShipped(r.Context(), auth, id, params.TrackingID)
	if err != nil {
		return nil, err
	}
	return formatEscrow(esc), nil
}

func (s *Server) escrowDispute(r *http.Request, req *RPCRequest) (interface{}, error) {
	var params escrowDisputeParams
	auth, err := authenticate(req, &params)
	if err != nil {
		return nil, err
	}
	id, err := parseAddress("id", params.ID)
	if err != nil {
		return nil, err
	}
	esc, err := s.node.EscrowDispute(r.Context(), auth, id, params.Reason)
	if err != nil {
		return nil, err
	}
	return formatEscrow(esc), nil
}

func (s *Server) escrowResolve(r *http.Request, req *RPCRequest) (interface{}, error) {
	var params escrowResolveParams
	auth, err := authenticate(req, &params)
	if err != nil {
		return nil, err
	}
	id, err := parseAddress("id", params.ID)
	if err != nil {
		return nil, err
	}
	esc, err := s.node.EscrowResolve(r.Context(), auth, id, params.FavorSeller)
	if err != nil {
		return nil, err
	}
	return formatEscrow(esc), nil
}

func (s *Server) escrowGet(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params escrowIDParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	id, err := parseAddress("id", params.ID)
	if err != nil {
		return nil, err
	}
	esc, err := s.node.EscrowGet(id)
	if err != nil {
		return nil, err
	}
	return formatEscrow(esc), nil
}

func (s *Server) escrowCustodyAddress(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params custodyParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	marketID, err := parseAddress("marketplace", params.Marketplace)
	if err != nil {
		return nil, err
	}
	buyer, err := parseAddress("buyer", params.Buyer)
	if err != nil {
		return nil, err
	}
	productID, err := parseAddress("product", params.Product)
	if err != nil {
		return nil, err
	}
	id, bump, err := s.node.CustodyAddress(marketID, buyer, productID)
	if err != nil {
		return nil, err
	}
	return custodyResult{ID: addr(id), Bump: bump, ProgramID: addr(s.node.ProgramID())}, nil
}

func (s *Server) escrowListByParty(r *http.Request, req *RPCRequest) (interface{}, error) {
	var params listByPartyParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	party, err := parseAddress("party", params.Party)
	if err != nil {
		return nil, err
	}
	if params.Limit < 0 {
		return nil, invalidParams("limit must not be negative")
	}
	list, err := s.node.EscrowsByParty(r.Context(), party, params.Limit)
	if err != nil {
		return nil, err
	}
	out := make([]escrowJSON, 0, len(list))
	for _, esc := range list {
		out = append(out, formatEscrow(esc))
	}
	return out, nil
}
