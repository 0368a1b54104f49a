package escrow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"marketescrow/core/events"
	"marketescrow/core/types"
	"marketescrow/native/bank"
	"marketescrow/native/custody"
)

var (
	errNilState   = errors.New("escrow engine: state not configured")
	errNilGateway = errors.New("escrow engine: transfer gateway not configured")
)

type engineState interface {
	EscrowGet(id [20]byte) (*Escrow, bool, error)
	EscrowPut(*Escrow) error
	NativeBalance(addr [20]byte) (uint64, error)
	Holding(owner [20]byte, currency types.Currency) (uint64, bool, error)
}

type transferGateway interface {
	Transfer(ctx context.Context, t bank.Transfer) error
}

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e escrowEvent) Event() *types.Event { return e.evt }

// Engine runs the escrow lifecycle. It holds no locks: the host serialises
// operations and discards all writes when an operation returns an error.
type Engine struct {
	state   engineState
	gateway transferGateway
	deriver *custody.Deriver
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine creates an escrow engine with a no-op emitter. State and gateway
// must be configured before any operation runs.
func NewEngine(deriver *custody.Deriver) *Engine {
	return &Engine{
		deriver: deriver,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetGateway configures the transfer gateway used for every value movement.
func (e *Engine) SetGateway(gateway transferGateway) { e.gateway = gateway }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(escrowEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.gateway == nil {
		return errNilGateway
	}
	return nil
}

// CustodyAddress returns the custody address and nonce for the seed tuple. The
// address doubles as the escrow identifier.
func (e *Engine) CustodyAddress(marketplace, buyer, product [20]byte) ([20]byte, uint8, error) {
	return e.deriver.Derive(custody.Seeds{Marketplace: marketplace, Buyer: buyer, Product: product})
}

func (e *Engine) loadEscrow(id [20]byte) (*Escrow, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	esc, ok, err := e.state.EscrowGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrEscrowNotFound
	}
	return esc, nil
}

func (e *Engine) storeEscrow(esc *Escrow) error {
	esc.UpdatedAt = e.now()
	return e.state.EscrowPut(esc)
}

// release moves the escrowed amount out of custody using the proof rebuilt from
// the stored nonce.
func (e *Engine) release(ctx context.Context, esc *Escrow, to [20]byte) error {
	proof, err := e.deriver.Prove(esc.Seeds(), esc.Bump)
	if err != nil {
		return fmt.Errorf("%w: %v", bank.ErrInvalidAuthority, err)
	}
	if proof.Address() != esc.ID {
		return fmt.Errorf("%w: proof does not match escrow", bank.ErrInvalidAuthority)
	}
	return e.gateway.Transfer(ctx, bank.Transfer{
		Currency:  esc.Currency,
		Amount:    esc.Amount,
		From:      esc.ID,
		To:        to,
		Authority: proof,
	})
}

// Create records a new escrow for signer buying quantity units of product. The
// amount is fixed here and never recomputed.
func (e *Engine) Create(ctx context.Context, signer types.Signer, market Marketplace, product Product, quantity int64) (*Escrow, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if signer.IsZero() {
		return nil, ErrUnauthorizedBuyer
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if product.Marketplace != market.ID {
		return nil, fmt.Errorf("%w: product belongs to another marketplace", ErrInvalidEscrowAccount)
	}
	if !product.Currency.Valid() {
		return nil, fmt.Errorf("%w: %s", bank.ErrUnsupportedCurrency, product.Currency)
	}
	amount, err := totalPrice(product.Price, uint64(quantity))
	if err != nil {
		return nil, err
	}
	buyer := signer.Address()
	id, bump, err := e.CustodyAddress(market.ID, buyer, product.ID)
	if err != nil {
		return nil, err
	}
	if _, exists, err := e.state.EscrowGet(id); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrEscrowExists
	}
	if err := e.requireEmptyCustody(id); err != nil {
		return nil, err
	}
	now := e.now()
	esc := &Escrow{
		ID:          id,
		Marketplace: market.ID,
		Buyer:       buyer,
		Seller:      product.Seller,
		Product:     product.ID,
		Quantity:    uint64(quantity),
		Amount:      amount,
		Currency:    product.Currency,
		Status:      EscrowCreated,
		CreatedAt:   now,
		Bump:        bump,
	}
	if err := e.storeEscrow(esc); err != nil {
		return nil, err
	}
	e.emit(NewCreatedEvent(esc))
	return esc.Clone(), nil
}

// requireEmptyCustody rejects a custody address that already holds value in
// any currency. Zero-balance token holdings are allowed so they can be opened
// before the escrow is funded.
func (e *Engine) requireEmptyCustody(id [20]byte) error {
	native, err := e.state.NativeBalance(id)
	if err != nil {
		return err
	}
	if native > 0 {
		return fmt.Errorf("%w: native balance %d", ErrCustodyNotEmpty, native)
	}
	for _, cur := range types.TokenCurrencies() {
		bal, _, err := e.state.Holding(id, cur)
		if err != nil {
			return err
		}
		if bal > 0 {
			return fmt.Errorf("%w: %s balance %d", ErrCustodyNotEmpty, cur, bal)
		}
	}
	return nil
}

func totalPrice(price, quantity uint64) (uint64, error) {
	total, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(price), uint256.NewInt(quantity))
	if overflow || !total.IsUint64() {
		return 0, fmt.Errorf("%w: %d x %d", ErrCalculation, price, quantity)
	}
	return total.Uint64(), nil
}

// Fund moves the amount from the buyer into custody.
func (e *Engine) Fund(ctx context.Context, signer types.Signer, id [20]byte) (*Escrow, error) {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return nil, err
	}
	if !IsBuyer(signer, esc) {
		return nil, ErrUnauthorizedBuyer
	}
	if esc.Status != EscrowCreated {
		return nil, fmt.Errorf("%w: cannot fund in status %s", ErrInvalidEscrowState, esc.Status)
	}
	if err := e.gateway.Transfer(ctx, bank.Transfer{
		Currency:         esc.Currency,
		Amount:           esc.Amount,
		From:             esc.Buyer,
		To:               esc.ID,
		Authority:        signer,
		RequireRetention: true,
	}); err != nil {
		return nil, err
	}
	esc.Status = EscrowFunded
	if err := e.storeEscrow(esc); err != nil {
		return nil, err
	}
	e.emit(NewFundedEvent(esc))
	return esc.Clone(), nil
}

// MarkShipped records the seller's shipment. The tracking id is optional.
func (e *Engine) MarkShipped(ctx context.Context, signer types.Signer, id [20]byte, trackingID string) (*Escrow, error) {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return nil, err
	}
	if !IsSeller(signer, esc) {
		return nil, ErrUnauthorizedSeller
	}
	if esc.Status != EscrowFunded {
		return nil, fmt.Errorf("%w: cannot ship in status %s", ErrInvalidEscrowState, esc.Status)
	}
	if len(trackingID) > MaxTrackingIDLength {
		return nil, ErrTrackingIDTooLong
	}
	esc.TrackingID = trackingID
	esc.Status = EscrowShipped
	if err := e.storeEscrow(esc); err != nil {
		return nil, err
	}
	e.emit(NewShippedEvent(esc))
	return esc.Clone(), nil
}

// ConfirmDelivery pays the seller out of custody.
func (e *Engine) ConfirmDelivery(ctx context.Context, signer types.Signer, id [20]byte) (*Escrow, error) {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return nil, err
	}
	if !IsBuyer(signer, esc) {
		return nil, ErrUnauthorizedBuyer
	}
	if esc.Status != EscrowShipped {
		return nil, fmt.Errorf("%w: cannot confirm in status %s", ErrInvalidEscrowState, esc.Status)
	}
	if err := e.release(ctx, esc, esc.Seller); err != nil {
		return nil, err
	}
	esc.Status = EscrowCompleted
	if err := e.storeEscrow(esc); err != nil {
		return nil, err
	}
	e.emit(NewCompletedEvent(esc))
	return esc.Clone(), nil
}

// Dispute freezes a funded or shipped escrow until the marketplace authority
// resolves it. Either party may raise it.
func (e *Engine) Dispute(ctx context.Context, signer types.Signer, id [20]byte, reason string) (*Escrow, error) {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return nil, err
	}
	if !IsEitherParty(signer, esc) {
		return nil, ErrUnauthorized
	}
	if esc.Status != EscrowFunded && esc.Status != EscrowShipped {
		return nil, fmt.Errorf("%w: cannot dispute in status %s", ErrInvalidEscrowState, esc.Status)
	}
	if len(reason) > MaxDisputeReasonLength {
		return nil, ErrDisputeReasonTooLong
	}
	esc.DisputeReason = reason
	esc.DisputedBy = signer.Address()
	esc.Status = EscrowDisputed
	if err := e.storeEscrow(esc); err != nil {
		return nil, err
	}
	e.emit(NewDisputedEvent(esc))
	return esc.Clone(), nil
}

// Cancel aborts an escrow before shipment, refunding the buyer when custody
// already holds the funds.
func (e *Engine) Cancel(ctx context.Context, signer types.Signer, id [20]byte) (*Escrow, error) {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return nil, err
	}
	if !IsBuyer(signer, esc) {
		return nil, ErrUnauthorizedBuyer
	}
	switch esc.Status {
	case EscrowCreated:
	case EscrowFunded:
		if err := e.release(ctx, esc, esc.Buyer); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: cannot cancel in status %s", ErrInvalidEscrowState, esc.Status)
	}
	esc.Status = EscrowCancelled
	if err := e.storeEscrow(esc); err != nil {
		return nil, err
	}
	e.emit(NewCancelledEvent(esc))
	return esc.Clone(), nil
}

// Resolve settles a dispute. favorSeller pays the seller and completes the
// escrow; otherwise the buyer is refunded.
func (e *Engine) Resolve(ctx context.Context, signer types.Signer, id [20]byte, market Marketplace, favorSeller bool) (*Escrow, error) {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return nil, err
	}
	if market.ID != esc.Marketplace {
		return nil, fmt.Errorf("%w: escrow belongs to another marketplace", ErrInvalidEscrowAccount)
	}
	if !IsMarketplaceAuthority(signer, market) {
		return nil, ErrUnauthorizedAuthority
	}
	if esc.Status != EscrowDisputed {
		return nil, fmt.Errorf("%w: cannot resolve in status %s", ErrInvalidEscrowState, esc.Status)
	}
	to, next, outcome := esc.Buyer, EscrowRefunded, "buyer"
	if favorSeller {
		to, next, outcome = esc.Seller, EscrowCompleted, "seller"
	}
	if err := e.release(ctx, esc, to); err != nil {
		return nil, err
	}
	esc.Status = next
	if err := e.storeEscrow(esc); err != nil {
		return nil, err
	}
	e.emit(NewResolvedEvent(esc, outcome))
	return esc.Clone(), nil
}
