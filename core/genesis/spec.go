// Package genesis seeds an empty state database with balances, token
// holdings, marketplaces and products.
package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"marketescrow/core/types"
	"marketescrow/crypto"
	"marketescrow/native/marketplace"
)

type GenesisSpec struct {
	GenesisTime  string                       `json:"genesisTime" yaml:"genesisTime"`
	Balances     map[string]uint64            `json:"balances" yaml:"balances"` // addr -> native amount
	Holdings     map[string]map[string]uint64 `json:"holdings" yaml:"holdings"` // addr -> token -> amount
	Marketplaces []MarketplaceSpec            `json:"marketplaces" yaml:"marketplaces"`
	Users        []string                     `json:"users,omitempty" yaml:"users,omitempty"`

	genesisTimestamp time.Time
}

type MarketplaceSpec struct {
	Authority      string        `json:"authority" yaml:"authority"`
	FeeBasisPoints uint16        `json:"feeBasisPoints" yaml:"feeBasisPoints"`
	FeeDestination string        `json:"feeDestination,omitempty" yaml:"feeDestination,omitempty"`
	Products       []ProductSpec `json:"products" yaml:"products"`
}

type ProductSpec struct {
	Seller      string `json:"seller" yaml:"seller"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Price       uint64 `json:"price" yaml:"price"`
	Quantity    uint64 `json:"quantity" yaml:"quantity"`
	Currency    string `json:"currency" yaml:"currency"`
	MetadataURI string `json:"metadataUri,omitempty" yaml:"metadataUri,omitempty"`
	Category    string `json:"category,omitempty" yaml:"category,omitempty"`

	currency types.Currency
}

// LoadGenesisSpec reads a genesis file. Files ending in .yaml or .yml are
// decoded as YAML, everything else as JSON. Unknown fields are rejected.
func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	var spec GenesisSpec
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&spec); err != nil {
			return nil, fmt.Errorf("decode genesis spec %q: %w", path, err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&spec); err != nil {
			return nil, fmt.Errorf("decode genesis spec %q: %w", path, err)
		}
	}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis spec %q: %w", path, err)
	}
	return &spec, nil
}

func (s *GenesisSpec) GenesisTimestamp() time.Time { return s.genesisTimestamp }

func (s *GenesisSpec) validate() error {
	parsedTime, err := parseGenesisTime(s.GenesisTime)
	if err != nil {
		return err
	}
	s.genesisTimestamp = parsedTime

	for _, addr := range sortedKeys(s.Balances) {
		if _, err := crypto.ParseKey(addr); err != nil {
			return fmt.Errorf("balances[%q]: %w", addr, err)
		}
	}
	for _, addr := range sortedKeys(s.Holdings) {
		if _, err := crypto.ParseKey(addr); err != nil {
			return fmt.Errorf("holdings[%q]: %w", addr, err)
		}
		for symbol := range s.Holdings[addr] {
			cur, err := types.ParseCurrency(symbol)
			if err != nil {
				return fmt.Errorf("holdings[%q]: %w", addr, err)
			}
			if !cur.IsToken() {
				return fmt.Errorf("holdings[%q][%q]: native balances belong in balances", addr, symbol)
			}
		}
	}
	seen := make(map[string]struct{}, len(s.Marketplaces))
	for i := range s.Marketplaces {
		m := &s.Marketplaces[i]
		if _, err := crypto.ParseKey(m.Authority); err != nil {
			return fmt.Errorf("marketplaces[%d].authority: %w", i, err)
		}
		if _, dup := seen[m.Authority]; dup {
			return fmt.Errorf("marketplaces[%d]: duplicate authority %s", i, m.Authority)
		}
		seen[m.Authority] = struct{}{}
		if m.FeeBasisPoints > marketplace.MaxFeeBasisPoints {
			return fmt.Errorf("marketplaces[%d].feeBasisPoints must be <= %d", i, marketplace.MaxFeeBasisPoints)
		}
		if strings.TrimSpace(m.FeeDestination) != "" {
			if _, err := crypto.ParseKey(m.FeeDestination); err != nil {
				return fmt.Errorf("marketplaces[%d].feeDestination: %w", i, err)
			}
		}
		for j := range m.Products {
			p := &m.Products[j]
			if _, err := crypto.ParseKey(p.Seller); err != nil {
				return fmt.Errorf("marketplaces[%d].products[%d].seller: %w", i, j, err)
			}
			cur, err := types.ParseCurrency(p.Currency)
			if err != nil {
				return fmt.Errorf("marketplaces[%d].products[%d]: %w", i, j, err)
			}
			p.currency = cur
		}
	}
	for _, user := range s.Users {
		if _, err := crypto.ParseKey(user); err != nil {
			return fmt.Errorf("users[%q]: %w", user, err)
		}
	}
	return nil
}

func parseGenesisTime(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("genesisTime must be provided")
	}
	ts, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid genesisTime %q: %w", value, err)
	}
	return ts.UTC(), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
