package types

import (
	"fmt"
	"strings"
)

// Currency identifies the payment rail used to move value for a listing or
// escrow. The zero value is the native currency.
type Currency uint8

const (
	CurrencyNative Currency = iota
	CurrencyUSDC
	CurrencyUSDT
)

// Valid reports whether the currency tag is one of the supported rails.
func (c Currency) Valid() bool {
	switch c {
	case CurrencyNative, CurrencyUSDC, CurrencyUSDT:
		return true
	default:
		return false
	}
}

// TokenCurrencies lists the currencies held in token holdings.
func TokenCurrencies() []Currency {
	return []Currency{CurrencyUSDC, CurrencyUSDT}
}

// IsToken reports whether the currency settles through the token ledger rather
// than native account balances.
func (c Currency) IsToken() bool {
	return c == CurrencyUSDC || c == CurrencyUSDT
}

func (c Currency) String() string {
	switch c {
	case CurrencyNative:
		return "NATIVE"
	case CurrencyUSDC:
		return "USDC"
	case CurrencyUSDT:
		return "USDT"
	default:
		return fmt.Sprintf("Currency(%d)", uint8(c))
	}
}

// ParseCurrency normalises a currency symbol into its tag. "SOL" is accepted as
// an alias for the native currency.
func ParseCurrency(symbol string) (Currency, error) {
	switch strings.ToUpper(strings.TrimSpace(symbol)) {
	case "NATIVE", "SOL":
		return CurrencyNative, nil
	case "USDC":
		return CurrencyUSDC, nil
	case "USDT":
		return CurrencyUSDT, nil
	default:
		return 0, fmt.Errorf("unsupported currency: %s", symbol)
	}
}
