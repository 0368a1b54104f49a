package genesis

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"marketescrow/core/state"
	"marketescrow/core/types"
	"marketescrow/crypto"
	"marketescrow/native/marketplace"
	"marketescrow/storage"
)

func addr(b byte) string {
	var key [20]byte
	for i := range key {
		key[i] = b
	}
	return crypto.FromKey(key).String()
}

func key(b byte) [20]byte {
	var k [20]byte
	for i := range k {
		k[i] = b
	}
	return k
}

func sampleSpec() GenesisSpec {
	return GenesisSpec{
		GenesisTime: "2024-01-01T00:00:00Z",
		Balances:    map[string]uint64{addr(1): 5_000_000, addr(2): 1_000_000},
		Holdings:    map[string]map[string]uint64{addr(1): {"USDC": 700, "USDT": 0}},
		Marketplaces: []MarketplaceSpec{{
			Authority:      addr(3),
			FeeBasisPoints: 250,
			Products: []ProductSpec{
				{Seller: addr(2), Title: "Lamp", Price: 100, Quantity: 5, Currency: "NATIVE"},
				{Seller: addr(2), Title: "Chair", Price: 40, Quantity: 1, Currency: "USDC"},
			},
		}},
		Users: []string{addr(1), addr(2)},
	}
}

func writeSpec(t *testing.T, name string, spec GenesisSpec) string {
	t.Helper()
	raw, err := json.Marshal(spec)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	return path
}

func TestLoadGenesisSpecAndApply(t *testing.T) {
	path := writeSpec(t, "genesis.json", sampleSpec())
	spec, err := LoadGenesisSpec(path)
	require.NoError(t, err)
	require.Equal(t, int64(1704067200), spec.GenesisTimestamp().Unix())

	db := storage.NewMemDB()
	result, err := Apply(spec, db)
	require.NoError(t, err)
	require.Len(t, result.Marketplaces, 1)
	require.Len(t, result.Products, 2)

	manager := state.NewManager(db)
	bal, err := manager.NativeBalance(key(1))
	require.NoError(t, err)
	require.Equal(t, uint64(5_000_000), bal)

	usdc, ok, err := manager.Holding(key(1), types.CurrencyUSDC)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(700), usdc)
	_, ok, err = manager.Holding(key(1), types.CurrencyUSDT)
	require.NoError(t, err)
	require.True(t, ok, "zero-amount holdings are still opened")
	_, ok, err = manager.Holding(key(2), types.CurrencyUSDC)
	require.NoError(t, err)
	require.False(t, ok)

	registry := marketplace.NewRegistry(manager)
	m, err := registry.Marketplace(result.Marketplaces[0])
	require.NoError(t, err)
	require.Equal(t, key(3), m.Authority)
	require.Equal(t, uint64(2), m.ProductCount)
	require.Equal(t, marketplace.MarketplaceID(key(3)), m.ID)

	chair, err := registry.Product(result.Products[1])
	require.NoError(t, err)
	require.Equal(t, types.CurrencyUSDC, chair.Currency)
	require.Equal(t, uint64(1704067200), chair.CreatedAt)

	applied, err := Applied(db)
	require.NoError(t, err)
	require.True(t, applied)

	_, err = Apply(spec, db)
	require.ErrorIs(t, err, ErrAlreadyApplied)
}

func TestLoadGenesisSpecYAML(t *testing.T) {
	contents := "genesisTime: \"2024-01-01T00:00:00Z\"\n" +
		"balances:\n  " + addr(1) + ": 42\n" +
		"marketplaces:\n" +
		"  - authority: " + addr(3) + "\n" +
		"    feeBasisPoints: 0\n" +
		"    products:\n" +
		"      - seller: " + addr(2) + "\n" +
		"        title: Lamp\n" +
		"        price: 10\n" +
		"        quantity: 1\n" +
		"        currency: SOL\n"
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	spec, err := LoadGenesisSpec(path)
	require.NoError(t, err)
	require.Equal(t, uint64(42), spec.Balances[addr(1)])
	require.Equal(t, types.CurrencyNative, spec.Marketplaces[0].Products[0].currency)
}

func TestLoadGenesisSpecRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"genesisTime":"2024-01-01T00:00:00Z","validators":[]}`), 0o600))
	_, err := LoadGenesisSpec(path)
	require.Error(t, err)
}

func TestGenesisValidation(t *testing.T) {
	cases := map[string]func(*GenesisSpec){
		"missing time":     func(s *GenesisSpec) { s.GenesisTime = "" },
		"bad balance addr": func(s *GenesisSpec) { s.Balances = map[string]uint64{"nope": 1} },
		"native holding":   func(s *GenesisSpec) { s.Holdings = map[string]map[string]uint64{addr(1): {"NATIVE": 1}} },
		"fee too high":     func(s *GenesisSpec) { s.Marketplaces[0].FeeBasisPoints = marketplace.MaxFeeBasisPoints + 1 },
		"bad currency":     func(s *GenesisSpec) { s.Marketplaces[0].Products[0].Currency = "DOGE" },
		"duplicate market": func(s *GenesisSpec) { s.Marketplaces = append(s.Marketplaces, s.Marketplaces[0]) },
		"bad user":         func(s *GenesisSpec) { s.Users = []string{"x"} },
		"foreign prefix":   func(s *GenesisSpec) { s.Balances = map[string]uint64{mustForeign(t): 1} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			spec := sampleSpec()
			mutate(&spec)
			require.Error(t, spec.validate())
		})
	}
}

func TestApplyIsAtomic(t *testing.T) {
	spec := sampleSpec()
	spec.Marketplaces[0].Products[1].Price = 0
	require.NoError(t, spec.validate())

	db := storage.NewMemDB()
	_, err := Apply(&spec, db)
	require.ErrorIs(t, err, marketplace.ErrInvalidPrice)

	bal, err := state.NewManager(db).NativeBalance(key(1))
	require.NoError(t, err)
	require.Zero(t, bal)
	applied, err := Applied(db)
	require.NoError(t, err)
	require.False(t, applied)
}

func mustForeign(t *testing.T) string {
	a, err := crypto.NewAddress("nhb", make([]byte, 20))
	require.NoError(t, err)
	return a.String()
}
