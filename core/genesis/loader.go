package genesis

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"marketescrow/core/state"
	"marketescrow/core/types"
	"marketescrow/crypto"
	"marketescrow/native/bank"
	"marketescrow/native/marketplace"
	"marketescrow/native/reputation"
	"marketescrow/storage"
)

var (
	appliedKey = []byte("genesis/applied")

	// ErrAlreadyApplied is returned when the database was seeded before.
	ErrAlreadyApplied = errors.New("genesis: already applied")
)

// Result lists the records created while applying a genesis spec.
type Result struct {
	Marketplaces [][20]byte
	Products     [][20]byte
}

// Applied reports whether db has been seeded.
func Applied(db storage.Database) (bool, error) {
	var ts uint64
	return state.NewManager(db).KVGet(appliedKey, &ts)
}

// Apply seeds db from spec inside one journal. Nothing is written unless
// every allocation succeeds.
func Apply(spec *GenesisSpec, db storage.Database) (*Result, error) {
	if spec == nil {
		return nil, fmt.Errorf("genesis spec must not be nil")
	}
	if db == nil {
		return nil, fmt.Errorf("database must not be nil")
	}
	if applied, err := Applied(db); err != nil {
		return nil, err
	} else if applied {
		return nil, ErrAlreadyApplied
	}

	journal := state.NewJournal(db)
	manager := state.NewManager(journal)
	ts := spec.GenesisTimestamp().Unix()
	nowFn := func() int64 { return ts }

	// 1) Native balances (sorted)
	for _, addr := range sortedKeys(spec.Balances) {
		key, err := crypto.ParseKey(addr)
		if err != nil {
			return nil, fmt.Errorf("balances[%q]: %w", addr, err)
		}
		if err := manager.SetNativeBalance(key, spec.Balances[addr]); err != nil {
			return nil, fmt.Errorf("balances[%q]: %w", addr, err)
		}
	}

	// 2) Token holdings (outer: addresses sorted; inner: symbols sorted)
	tokens := bank.NewTokenLedger(manager)
	for _, addr := range sortedKeys(spec.Holdings) {
		key, err := crypto.ParseKey(addr)
		if err != nil {
			return nil, fmt.Errorf("holdings[%q]: %w", addr, err)
		}
		symbols := make([]string, 0, len(spec.Holdings[addr]))
		for symbol := range spec.Holdings[addr] {
			symbols = append(symbols, symbol)
		}
		sort.Strings(symbols)
		for _, symbol := range symbols {
			cur, err := types.ParseCurrency(symbol)
			if err != nil {
				return nil, fmt.Errorf("holdings[%q]: %w", addr, err)
			}
			if err := tokens.OpenHolding(key, cur); err != nil {
				return nil, fmt.Errorf("holdings[%q][%q]: %w", addr, symbol, err)
			}
			if amount := spec.Holdings[addr][symbol]; amount > 0 {
				if err := tokens.Mint(key, cur, amount); err != nil {
					return nil, fmt.Errorf("holdings[%q][%q]: %w", addr, symbol, err)
				}
			}
		}
	}

	// 3) Marketplaces and their products, in file order so product
	// indexes are stable.
	registry := marketplace.NewRegistry(manager)
	registry.SetNowFunc(nowFn)
	result := &Result{}
	for i, ms := range spec.Marketplaces {
		authority, err := crypto.ParseKey(ms.Authority)
		if err != nil {
			return nil, fmt.Errorf("marketplaces[%d]: %w", i, err)
		}
		feeDestination := authority
		if strings.TrimSpace(ms.FeeDestination) != "" {
			if feeDestination, err = crypto.ParseKey(ms.FeeDestination); err != nil {
				return nil, fmt.Errorf("marketplaces[%d]: %w", i, err)
			}
		}
		m, err := registry.InitializeMarketplace(types.NewSigner(authority), ms.FeeBasisPoints, feeDestination)
		if err != nil {
			return nil, fmt.Errorf("marketplaces[%d]: %w", i, err)
		}
		result.Marketplaces = append(result.Marketplaces, m.ID)
		for j, ps := range ms.Products {
			seller, err := crypto.ParseKey(ps.Seller)
			if err != nil {
				return nil, fmt.Errorf("marketplaces[%d].products[%d]: %w", i, j, err)
			}
			p, err := registry.CreateProduct(types.NewSigner(seller), m.ID, marketplace.ProductListing{
				Title:       ps.Title,
				Description: ps.Description,
				Price:       ps.Price,
				Quantity:    ps.Quantity,
				Currency:    ps.currency,
				MetadataURI: ps.MetadataURI,
				Category:    ps.Category,
			})
			if err != nil {
				return nil, fmt.Errorf("marketplaces[%d].products[%d]: %w", i, j, err)
			}
			result.Products = append(result.Products, p.ID)
		}
	}

	// 4) Reputation records (sorted)
	users := append([]string(nil), spec.Users...)
	sort.Strings(users)
	ledger := reputation.NewLedger(manager)
	ledger.SetNowFunc(nowFn)
	for _, user := range users {
		key, err := crypto.ParseKey(user)
		if err != nil {
			return nil, fmt.Errorf("users[%q]: %w", user, err)
		}
		if _, err := ledger.InitializeUser(types.NewSigner(key)); err != nil {
			return nil, fmt.Errorf("users[%q]: %w", user, err)
		}
	}

	if err := manager.KVPut(appliedKey, uint64(ts)); err != nil {
		return nil, err
	}
	if err := journal.Commit(); err != nil {
		return nil, fmt.Errorf("commit genesis: %w", err)
	}
	return result, nil
}
