package bank

import (
	"context"
	"fmt"

	"marketescrow/core/types"
)

// TokenLedger is the fungible-token accounting service. Holdings must be
// opened explicitly before they can send or receive.
type TokenLedger struct {
	store HoldingStore
}

func NewTokenLedger(store HoldingStore) *TokenLedger {
	return &TokenLedger{store: store}
}

// OpenHolding provisions a zero-balance holding. Opening an existing holding is
// a no-op.
func (l *TokenLedger) OpenHolding(owner [20]byte, currency types.Currency) error {
	if !currency.IsToken() {
		return fmt.Errorf("%w: %s has no token holdings", ErrUnsupportedCurrency, currency)
	}
	_, exists, err := l.store.Holding(owner, currency)
	if err != nil || exists {
		return err
	}
	return l.store.SetHolding(owner, currency, 0)
}

// Balance returns the holding balance.
func (l *TokenLedger) Balance(owner [20]byte, currency types.Currency) (uint64, error) {
	bal, exists, err := l.store.Holding(owner, currency)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("%w: %s", ErrHoldingNotFound, currency)
	}
	return bal, nil
}

// Mint credits an opened holding. It is used by genesis and operator tooling.
func (l *TokenLedger) Mint(owner [20]byte, currency types.Currency, amount uint64) error {
	bal, err := l.Balance(owner, currency)
	if err != nil {
		return err
	}
	next, ok := addChecked(bal, amount)
	if !ok {
		return fmt.Errorf("bank: token balance overflow")
	}
	return l.store.SetHolding(owner, currency, next)
}

// Transfer moves amount between two opened holdings on behalf of authority.
func (l *TokenLedger) Transfer(currency types.Currency, from, to [20]byte, authority Authority, amount uint64) error {
	if authority == nil || !authority.Authorizes(from) {
		return ErrInvalidAuthority
	}
	fromBal, fromOK, err := l.store.Holding(from, currency)
	if err != nil {
		return err
	}
	if !fromOK {
		return fmt.Errorf("%w: source %s holding", ErrHoldingNotFound, currency)
	}
	toBal, toOK, err := l.store.Holding(to, currency)
	if err != nil {
		return err
	}
	if !toOK {
		return fmt.Errorf("%w: destination %s holding", ErrHoldingNotFound, currency)
	}
	if fromBal < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, fromBal, amount)
	}
	if from == to {
		return nil
	}
	credited, ok := addChecked(toBal, amount)
	if !ok {
		return fmt.Errorf("bank: token balance overflow")
	}
	if err := l.store.SetHolding(from, currency, fromBal-amount); err != nil {
		return err
	}
	return l.store.SetHolding(to, currency, credited)
}

// TokenRail routes one token currency through the shared ledger.
type TokenRail struct {
	currency types.Currency
	ledger   *TokenLedger
}

func NewTokenRail(currency types.Currency, ledger *TokenLedger) *TokenRail {
	return &TokenRail{currency: currency, ledger: ledger}
}

func (r *TokenRail) Currency() types.Currency { return r.currency }

func (r *TokenRail) Transfer(_ context.Context, t Transfer) error {
	return r.ledger.Transfer(r.currency, t.From, t.To, t.Authority, t.Amount)
}
