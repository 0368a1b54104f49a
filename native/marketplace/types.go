package marketplace

import (
	"encoding/binary"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"marketescrow/core/types"
)

const (
	MaxFeeBasisPoints    = 1000
	MaxTitleLength       = 50
	MaxDescriptionLength = 1000
	MaxMetadataURILength = 200
	MaxCategoryLength    = 20
)

// ProductStatus tracks whether a listing can still be purchased.
type ProductStatus uint8

const (
	ProductActive ProductStatus = iota
	ProductSoldOut
	ProductDeactivated
	ProductFlagged
)

func (s ProductStatus) Valid() bool { return s <= ProductFlagged }

func (s ProductStatus) String() string {
	switch s {
	case ProductActive:
		return "active"
	case ProductSoldOut:
		return "sold_out"
	case ProductDeactivated:
		return "deactivated"
	case ProductFlagged:
		return "flagged"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// ParseProductStatus accepts the names returned by String.
func ParseProductStatus(name string) (ProductStatus, error) {
	for s := ProductActive; s <= ProductFlagged; s++ {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("marketplace: unknown product status %q", name)
}

// Marketplace is the configuration record owned by a marketplace authority.
// Timestamps are unsigned so the record stays RLP encodable.
type Marketplace struct {
	ID             [20]byte
	Authority      [20]byte
	ProductCount   uint64
	FeeBasisPoints uint16
	FeeDestination [20]byte
	Paused         bool
	CreatedAt      uint64
}

// Product is a listing offered by a seller on one marketplace.
type Product struct {
	ID          [20]byte
	Marketplace [20]byte
	Seller      [20]byte
	Index       uint64
	Price       uint64
	Quantity    uint64
	Currency    types.Currency
	Title       string
	Description string
	MetadataURI string
	Category    string
	Status      ProductStatus
	CreatedAt   uint64
	UpdatedAt   uint64
}

// ProductListing carries the fields supplied when creating a product.
type ProductListing struct {
	Title       string
	Description string
	Price       uint64
	Quantity    uint64
	Currency    types.Currency
	MetadataURI string
	Category    string
}

// ProductUpdate carries optional replacements; nil fields are left unchanged.
type ProductUpdate struct {
	Title       *string
	Description *string
	Price       *uint64
	Quantity    *uint64
	MetadataURI *string
	Status      *ProductStatus
}

// MarketplaceID derives the marketplace address for an authority.
func MarketplaceID(authority [20]byte) [20]byte {
	var id [20]byte
	copy(id[:], ethcrypto.Keccak256([]byte("marketplace"), authority[:])[12:])
	return id
}

// ProductID derives the product address from the marketplace, seller and the
// marketplace's product counter at creation time.
func ProductID(marketplace, seller [20]byte, index uint64) [20]byte {
	var id [20]byte
	counter := binary.LittleEndian.AppendUint64(nil, index)
	copy(id[:], ethcrypto.Keccak256([]byte("product"), marketplace[:], seller[:], counter)[12:])
	return id
}
