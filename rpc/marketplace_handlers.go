package rpc

import (
	"net/http"

	"marketescrow/native/marketplace"
)

type marketplaceInitParams struct {
	FeeBasisPoints uint16 `json:"feeBasisPoints"`
	FeeDestination string `json:"feeDestination,omitempty"`
}

type marketplacePauseParams struct {
	ID     string `json:"id"`
	Paused bool   `json:"paused"`
}

type productCreateParams struct {
	Marketplace string `json:"marketplace"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Price       string `json:"price"`
	Quantity    uint64 `json:"quantity"`
	Currency    string `json:"currency"`
	MetadataURI string `json:"metadataUri,omitempty"`
	Category    string `json:"category,omitempty"`
}

type productUpdateParams struct {
	ID          string  `json:"id"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Price       *string `json:"price,omitempty"`
	Quantity    *uint64 `json:"quantity,omitempty"`
	MetadataURI *string `json:"metadataUri,omitempty"`
	Status      *string `json:"status,omitempty"`
}

type productPurchaseParams struct {
	ID       string `json:"id"`
	Quantity uint64 `json:"quantity"`
}

type idParams struct {
	ID string `json:"id"`
}

func (s *Server) marketplaceInitialize(r *http.Request, req *RPCRequest) (interface{}, error) {
	var params marketplaceInitParams
	auth, err := authenticate(req, &params)
	if err != nil {
		return nil, err
	}
	dest, err := parseOptionalAddress("feeDestination", params.FeeDestination)
	if err != nil {
		return nil, err
	}
	if dest == ([20]byte{}) {
		dest = auth.Signer.Address()
	}
	m, err := s.node.MarketplaceInitialize(r.Context(), auth, params.FeeBasisPoints, dest)
	if err != nil {
		return nil, err
	}
	return formatMarketplace(m), nil
}

func (s *Server) marketplaceSetPaused(r *http.Request, req *RPCRequest) (interface{}, error) {
	var params marketplacePauseParams
	auth, err := authenticate(req, &params)
	if err != nil {
		return nil, err
	}
	id, err := parseAddress("id", params.ID)
	if err != nil {
		return nil, err
	}
	m, err := s.node.MarketplaceSetPaused(r.Context(), auth, id, params.Paused)
	if err != nil {
		return nil, err
	}
	return formatMarketplace(m), nil
}

func (s *Server) marketplaceGet(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params idParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	id, err := parseAddress("id", params.ID)
	if err != nil {
		return nil, err
	}
	m, err := s.node.Marketplace(id)
	if err != nil {
		return nil, err
	}
	return formatMarketplace(m), nil
}

func (s *Server) productCreate(r *http.Request, req *RPCRequest) (interface{}, error) {
	var params productCreateParams
	auth, err := authenticate(req, &params)
	if err != nil {
		return nil, err
	}
	marketID, err := parseAddress("marketplace", params.Marketplace)
	if err != nil {
		return nil, err
	}
	price, err := parseAmount("price", params.Price)
	if err != nil {
		return nil, err
	}
	currency, err := parseCurrency(params.Currency)
	if err != nil {
		return nil, err
	}
	p, err := s.node.ProductCreate(r.Context(), auth, marketID, marketplace.ProductListing{
		Title:       params.Title,
		Description: params.Description,
		Price:       price,
		Quantity:    params.Quantity,
		Currency:    currency,
		MetadataURI: params.MetadataURI,
		Category:    params.Category,
	})
	if err != nil {
		return nil, err
	}
	return formatProduct(p), nil
}

func (s *Server) productUpdate(r *http.Request, req *RPCRequest) (interface{}, error) {
	var params productUpdateParams
	auth, err := authenticate(req, &params)
	if err != nil {
		return nil, err
	}
	id, err := parseAddress("id", params.ID)
	if err != nil {
		return nil, err
	}
	update := marketplace.ProductUpdate{
		Title:       params.Title,
		Description: params.Description,
		Quantity:    params.Quantity,
		MetadataURI: params.MetadataURI,
	}
	if params.Price != nil {
		price, err := parseAmount("price", *params.Price)
		if err != nil {
			return nil, err
		}
		update.Price = &price
	}
	if params.Status != nil {
		status, err := marketplace.ParseProductStatus(*params.Status)
		if err != nil {
			return nil, invalidParams("status: %v", err)
		}
		update.Status = &status
	}
	p, err := s.node.ProductUpdate(r.Context(), auth, id, update)
	if err != nil {
		return nil, err
	}
	return formatProduct(p), nil
}

func (s *Server) productPurchase(r *http.Request, req *RPCRequest) (interface{}, error) {
	var params productPurchaseParams
	auth, err := authenticate(req, &params)
	if err != nil {
		return nil, err
	}
	id, err := parseAddress("id", params.ID)
	if err != nil {
		return nil, err
	}
	p, err := s.node.ProductPurchase(r.Context(), auth, id, params.Quantity)
	if err != nil {
		return nil, err
	}
	return formatProduct(p), nil
}

func (s *Server) productGet(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params idParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	id, err := parseAddress("id", params.ID)
	if err != nil {
		return nil, err
	}
	p, err := s.node.Product(id)
	if err != nil {
		return nil, err
	}
	return formatProduct(p), nil
}
