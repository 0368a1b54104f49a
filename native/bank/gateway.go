// Package bank moves value between accounts over one rail per currency. It
// holds no state of its own; balances live behind the store interfaces.
package bank

import (
	"context"
	"fmt"
	"math/bits"

	"marketescrow/core/types"
)

// DefaultMinimumBalance is the native amount a funding account must retain on
// top of the transferred amount.
const DefaultMinimumBalance uint64 = 890880

// Authority is proof that the caller may debit an address. types.Signer and
// custody.ReleaseProof both satisfy it.
type Authority interface {
	Authorizes(addr [20]byte) bool
}

// Transfer describes a single value movement.
type Transfer struct {
	Currency  types.Currency
	Amount    uint64
	From      [20]byte
	To        [20]byte
	Authority Authority
	// RequireRetention makes the native rail check that the source keeps the
	// minimum balance after the debit. Only escrow funding sets it.
	RequireRetention bool
}

// Rail executes transfers for one currency.
type Rail interface {
	Currency() types.Currency
	Transfer(ctx context.Context, t Transfer) error
}

// NativeStore exposes native account balances.
type NativeStore interface {
	NativeBalance(addr [20]byte) (uint64, error)
	SetNativeBalance(addr [20]byte, amount uint64) error
}

// HoldingStore exposes per-currency token holdings. The boolean reports whether
// the holding has been opened.
type HoldingStore interface {
	Holding(owner [20]byte, currency types.Currency) (uint64, bool, error)
	SetHolding(owner [20]byte, currency types.Currency, amount uint64) error
}

// Gateway dispatches transfers to the rail registered for their currency.
type Gateway struct {
	rails map[types.Currency]Rail
}

// NewGateway registers the supplied rails. A later rail for the same currency
// replaces an earlier one.
func NewGateway(rails ...Rail) *Gateway {
	g := &Gateway{rails: make(map[types.Currency]Rail, len(rails))}
	for _, rail := range rails {
		if rail != nil {
			g.rails[rail.Currency()] = rail
		}
	}
	return g
}

// NewDefaultGateway wires the native rail and the USDC and USDT token rails
// over the supplied stores.
func NewDefaultGateway(native NativeStore, holdings HoldingStore, minimumBalance uint64) *Gateway {
	ledger := NewTokenLedger(holdings)
	return NewGateway(
		NewNativeRail(native, minimumBalance),
		NewTokenRail(types.CurrencyUSDC, ledger),
		NewTokenRail(types.CurrencyUSDT, ledger),
	)
}

// Transfer validates the request and hands it to the currency's rail.
func (g *Gateway) Transfer(ctx context.Context, t Transfer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.Amount == 0 {
		return ErrInvalidAmount
	}
	if t.Authority == nil || !t.Authority.Authorizes(t.From) {
		return ErrInvalidAuthority
	}
	rail, ok := g.rails[t.Currency]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedCurrency, t.Currency)
	}
	return rail.Transfer(ctx, t)
}

func addChecked(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}
