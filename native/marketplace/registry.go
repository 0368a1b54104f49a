// Package marketplace keeps marketplace configuration and product listings.
// The escrow lifecycle reads from it but never writes to it.
package marketplace

import (
	"errors"
	"fmt"
	"time"

	"marketescrow/core/events"
	"marketescrow/core/types"
	"marketescrow/native/bank"
)

// storage abstracts the subset of state manager functionality required by the
// registry.
type storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

func marketplaceKey(id [20]byte) []byte {
	return append([]byte("marketplace/"), id[:]...)
}

func productKey(id [20]byte) []byte {
	return append([]byte("marketplace/product/"), id[:]...)
}

// Registry persists marketplaces and products.
type Registry struct {
	store   storage
	emitter events.Emitter
	nowFn   func() int64
}

// NewRegistry constructs a registry bound to the provided storage backend.
func NewRegistry(store storage) *Registry {
	return &Registry{
		store:   store,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetEmitter configures the event sink. Passing nil discards events.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	r.emitter = emitter
}

// SetNowFunc overrides the wall clock, primarily for tests.
func (r *Registry) SetNowFunc(now func() int64) {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	r.nowFn = now
}

func (r *Registry) now() uint64 {
	ts := r.nowFn()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func (r *Registry) emit(evt *types.Event) {
	r.emitter.Emit(marketplaceEvent{evt: evt})
}

// Marketplace loads a marketplace by id.
func (r *Registry) Marketplace(id [20]byte) (*Marketplace, error) {
	if r == nil || r.store == nil {
		return nil, errors.New("marketplace: storage unavailable")
	}
	var m Marketplace
	ok, err := r.store.KVGet(marketplaceKey(id), &m)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrMarketplaceNotFound
	}
	return &m, nil
}

// Product loads a product by id.
func (r *Registry) Product(id [20]byte) (*Product, error) {
	if r == nil || r.store == nil {
		return nil, errors.New("marketplace: storage unavailable")
	}
	var p Product
	ok, err := r.store.KVGet(productKey(id), &p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrProductNotFound
	}
	return &p, nil
}

// InitializeMarketplace creates the marketplace owned by signer. Each
// authority owns at most one marketplace.
func (r *Registry) InitializeMarketplace(signer types.Signer, feeBasisPoints uint16, feeDestination [20]byte) (*Marketplace, error) {
	if signer.IsZero() {
		return nil, ErrNotAuthority
	}
	if feeBasisPoints > MaxFeeBasisPoints {
		return nil, ErrFeesTooHigh
	}
	id := MarketplaceID(signer.Address())
	if _, err := r.Marketplace(id); err == nil {
		return nil, ErrMarketplaceExists
	} else if !errors.Is(err, ErrMarketplaceNotFound) {
		return nil, err
	}
	m := &Marketplace{
		ID:             id,
		Authority:      signer.Address(),
		FeeBasisPoints: feeBasisPoints,
		FeeDestination: feeDestination,
		CreatedAt:      r.now(),
	}
	if err := r.store.KVPut(marketplaceKey(id), m); err != nil {
		return nil, err
	}
	r.emit(newMarketplaceEvent(EventTypeMarketplaceInitialized, m))
	return m, nil
}

// SetPaused toggles the marketplace pause flag. Paused marketplaces accept no
// new listings or purchases.
func (r *Registry) SetPaused(signer types.Signer, id [20]byte, paused bool) (*Marketplace, error) {
	m, err := r.Marketplace(id)
	if err != nil {
		return nil, err
	}
	if !signer.Authorizes(m.Authority) {
		return nil, ErrNotAuthority
	}
	m.Paused = paused
	if err := r.store.KVPut(marketplaceKey(id), m); err != nil {
		return nil, err
	}
	r.emit(newMarketplaceEvent(EventTypeMarketplacePaused, m))
	return m, nil
}

func validateText(title, description, metadataURI, category string) error {
	switch {
	case len(title) > MaxTitleLength:
		return ErrTitleTooLong
	case len(description) > MaxDescriptionLength:
		return ErrDescriptionTooLong
	case len(metadataURI) > MaxMetadataURILength:
		return ErrMetadataURITooLong
	case len(category) > MaxCategoryLength:
		return ErrCategoryTooLong
	}
	return nil
}

// CreateProduct lists a product for signer on the marketplace.
func (r *Registry) CreateProduct(signer types.Signer, marketplaceID [20]byte, listing ProductListing) (*Product, error) {
	if signer.IsZero() {
		return nil, ErrNotProductOwner
	}
	m, err := r.Marketplace(marketplaceID)
	if err != nil {
		return nil, err
	}
	if m.Paused {
		return nil, ErrMarketplacePaused
	}
	if listing.Price == 0 {
		return nil, ErrInvalidPrice
	}
	if listing.Quantity == 0 {
		return nil, ErrInvalidQuantity
	}
	if !listing.Currency.Valid() {
		return nil, fmt.Errorf("%w: %s", bank.ErrUnsupportedCurrency, listing.Currency)
	}
	if err := validateText(listing.Title, listing.Description, listing.MetadataURI, listing.Category); err != nil {
		return nil, err
	}
	now := r.now()
	p := &Product{
		ID:          ProductID(m.ID, signer.Address(), m.ProductCount),
		Marketplace: m.ID,
		Seller:      signer.Address(),
		Index:       m.ProductCount,
		Price:       listing.Price,
		Quantity:    listing.Quantity,
		Currency:    listing.Currency,
		Title:       listing.Title,
		Description: listing.Description,
		MetadataURI: listing.MetadataURI,
		Category:    listing.Category,
		Status:      ProductActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.ProductCount++
	if err := r.store.KVPut(productKey(p.ID), p); err != nil {
		return nil, err
	}
	if err := r.store.KVPut(marketplaceKey(m.ID), m); err != nil {
		return nil, err
	}
	r.emit(newProductEvent(EventTypeProductCreated, p))
	return p, nil
}

// UpdateProduct applies the non-nil fields of update. Only the seller may
// update a listing.
func (r *Registry) UpdateProduct(signer types.Signer, id [20]byte, update ProductUpdate) (*Product, error) {
	p, err := r.Product(id)
	if err != nil {
		return nil, err
	}
	if !signer.Authorizes(p.Seller) {
		return nil, ErrNotProductOwner
	}
	next := *p
	if update.Title != nil {
		next.Title = *update.Title
	}
	if update.Description != nil {
		next.Description = *update.Description
	}
	if update.MetadataURI != nil {
		next.MetadataURI = *update.MetadataURI
	}
	if err := validateText(next.Title, next.Description, next.MetadataURI, next.Category); err != nil {
		return nil, err
	}
	if update.Price != nil {
		if *update.Price == 0 {
			return nil, ErrInvalidPrice
		}
		next.Price = *update.Price
	}
	if update.Quantity != nil {
		next.Quantity = *update.Quantity
	}
	if update.Status != nil {
		if !update.Status.Valid() {
			return nil, ErrInvalidStatus
		}
		next.Status = *update.Status
	}
	next.UpdatedAt = r.now()
	if err := r.store.KVPut(productKey(id), &next); err != nil {
		return nil, err
	}
	r.emit(newProductEvent(EventTypeProductUpdated, &next))
	return &next, nil
}

// PurchaseProduct decrements inventory, marking the listing sold out when it
// reaches zero.
func (r *Registry) PurchaseProduct(signer types.Signer, id [20]byte, quantity uint64) (*Product, error) {
	if signer.IsZero() {
		return nil, errors.New("marketplace: buyer required")
	}
	if quantity == 0 {
		return nil, ErrInvalidQuantity
	}
	p, err := r.Product(id)
	if err != nil {
		return nil, err
	}
	m, err := r.Marketplace(p.Marketplace)
	if err != nil {
		return nil, err
	}
	if m.Paused {
		return nil, ErrMarketplacePaused
	}
	if p.Status != ProductActive {
		return nil, ErrProductNotActive
	}
	if p.Quantity < quantity {
		return nil, fmt.Errorf("%w: %d available", ErrInsufficientInventory, p.Quantity)
	}
	p.Quantity -= quantity
	if p.Quantity == 0 {
		p.Status = ProductSoldOut
	}
	p.UpdatedAt = r.now()
	if err := r.store.KVPut(productKey(id), p); err != nil {
		return nil, err
	}
	r.emit(newProductEvent(EventTypeProductPurchased, p))
	return p, nil
}
