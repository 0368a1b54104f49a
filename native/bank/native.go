package bank

import (
	"context"
	"fmt"

	"marketescrow/core/types"
)

// NativeRail moves value directly between native account balances.
type NativeRail struct {
	store          NativeStore
	minimumBalance uint64
}

func NewNativeRail(store NativeStore, minimumBalance uint64) *NativeRail {
	return &NativeRail{store: store, minimumBalance: minimumBalance}
}

func (r *NativeRail) Currency() types.Currency { return types.CurrencyNative }

// MinimumBalance returns the retention amount enforced on funding transfers.
func (r *NativeRail) MinimumBalance() uint64 { return r.minimumBalance }

func (r *NativeRail) Transfer(_ context.Context, t Transfer) error {
	fromBal, err := r.store.NativeBalance(t.From)
	if err != nil {
		return err
	}
	required := t.Amount
	if t.RequireRetention {
		var ok bool
		required, ok = addChecked(t.Amount, r.minimumBalance)
		if !ok {
			return fmt.Errorf("%w: required amount overflows", ErrInsufficientFunds)
		}
	}
	if fromBal < required {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, fromBal, required)
	}
	if t.From == t.To {
		return nil
	}
	toBal, err := r.store.NativeBalance(t.To)
	if err != nil {
		return err
	}
	credited, ok := addChecked(toBal, t.Amount)
	if !ok {
		return fmt.Errorf("bank: native balance overflow")
	}
	if err := r.store.SetNativeBalance(t.From, fromBal-t.Amount); err != nil {
		return err
	}
	return r.store.SetNativeBalance(t.To, credited)
}
