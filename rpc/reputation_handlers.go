package rpc

import (
	"net/http"
)

type reviewParams struct {
	Recipient      string `json:"recipient"`
	Rating         uint8  `json:"rating"`
	Comment        string `json:"comment,omitempty"`
	TransactionRef string `json:"transactionRef,omitempty"`
}

type verifyParams struct {
	Marketplace string `json:"marketplace"`
	User        string `json:"user"`
}

type userParams struct {
	User string `json:"user"`
}

func (s *Server) reputationInitialize(r *http.Request, req *RPCRequest) (interface{}, error) {
	var params struct{}
	auth, err := authenticate(req, &params)
	if err != nil {
		return nil, err
	}
	rep, err := s.node.ReputationInitialize(r.Context(), auth)
	if err != nil {
		return nil, err
	}
	return formatReputation(rep, nil), nil
}

func (s *Server) reputationReview(r *http.Request, req *RPCRequest) (interface{}, error) {
	var params reviewParams
	auth, err := authenticate(req, &params)
	if err != nil {
		return nil, err
	}
	recipient, err := parseAddress("recipient", params.Recipient)
	if err != nil {
		return nil, err
	}
	ref, err := parseOptionalAddress("transactionRef", params.TransactionRef)
	if err != nil {
		return nil, err
	}
	review, err := s.node.ReputationReview(r.Context(), auth, recipient, params.Rating, params.Comment, ref)
	if err != nil {
		return nil, err
	}
	view := reviewJSON{Author: addr(review.Author), Rating: review.Rating, Comment: review.Comment, CreatedAt: review.CreatedAt}
	if review.TransactionRef != ([20]byte{}) {
		view.TransactionRef = addr(review.TransactionRef)
	}
	return view, nil
}

func (s *Server) reputationVerify(r *http.Request, req *RPCRequest) (interface{}, error) {
	var params verifyParams
	auth, err := authenticate(req, &params)
	if err != nil {
		return nil, err
	}
	marketID, err := parseAddress("marketplace", params.Marketplace)
	if err != nil {
		return nil, err
	}
	user, err := parseAddress("user", params.User)
	if err != nil {
		return nil, err
	}
	rep, err := s.node.ReputationVerify(r.Context(), auth, marketID, user)
	if err != nil {
		return nil, err
	}
	return formatReputation(rep, nil), nil
}

func (s *Server) reputationGet(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params userParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	user, err := parseAddress("user", params.User)
	if err != nil {
		return nil, err
	}
	rep, reviews, err := s.node.Reputation(user)
	if err != nil {
		return nil, err
	}
	return formatReputation(rep, reviews), nil
}
