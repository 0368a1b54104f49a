package rpc

import (
	"strconv"
	"strings"

	"marketescrow/core"
	"marketescrow/core/types"
	"marketescrow/crypto"
	"marketescrow/native/escrow"
	"marketescrow/native/marketplace"
	"marketescrow/native/reputation"
)

func addr(key [20]byte) string { return crypto.FromKey(key).String() }

func parseAddress(field, value string) ([20]byte, error) {
	key, err := crypto.ParseKey(strings.TrimSpace(value))
	if err != nil {
		return [20]byte{}, invalidParams("%s: %v", field, err)
	}
	return key, nil
}

func parseOptionalAddress(field, value string) ([20]byte, error) {
	if strings.TrimSpace(value) == "" {
		return [20]byte{}, nil
	}
	return parseAddress(field, value)
}

// parseAmount accepts decimal strings so values above 2^53 survive JSON.
func parseAmount(field, value string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, invalidParams("%s: %v", field, err)
	}
	return v, nil
}

func parseCurrency(value string) (types.Currency, error) {
	cur, err := types.ParseCurrency(value)
	if err != nil {
		return 0, invalidParams("%v", err)
	}
	return cur, nil
}

type escrowJSON struct {
	ID            string `json:"id"`
	Marketplace   string `json:"marketplace"`
	Buyer         string `json:"buyer"`
	Seller        string `json:"seller"`
	Product       string `json:"product"`
	Quantity      uint64 `json:"quantity"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
	CreatedAt     int64  `json:"createdAt"`
	UpdatedAt     int64  `json:"updatedAt"`
	Bump          uint8  `json:"bump"`
	TrackingID    string `json:"trackingId,omitempty"`
	DisputeReason string `json:"disputeReason,omitempty"`
	DisputedBy    string `json:"disputedBy,omitempty"`
}

func formatEscrow(e *escrow.Escrow) escrowJSON {
	out := escrowJSON{
		ID:            addr(e.ID),
		Marketplace:   addr(e.Marketplace),
		Buyer:         addr(e.Buyer),
		Seller:        addr(e.Seller),
		Product:       addr(e.Product),
		Quantity:      e.Quantity,
		Amount:        strconv.FormatUint(e.Amount, 10),
		Currency:      e.Currency.String(),
		Status:        e.Status.String(),
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
		Bump:          e.Bump,
		TrackingID:    e.TrackingID,
		DisputeReason: e.DisputeReason,
	}
	if e.DisputedBy != ([20]byte{}) {
		out.DisputedBy = addr(e.DisputedBy)
	}
	return out
}

type marketplaceJSON struct {
	ID             string `json:"id"`
	Authority      string `json:"authority"`
	ProductCount   uint64 `json:"productCount"`
	FeeBasisPoints uint16 `json:"feeBasisPoints"`
	FeeDestination string `json:"feeDestination"`
	Paused         bool   `json:"paused"`
	CreatedAt      uint64 `json:"createdAt"`
}

func formatMarketplace(m *marketplace.Marketplace) marketplaceJSON {
	return marketplaceJSON{
		ID:             addr(m.ID),
		Authority:      addr(m.Authority),
		ProductCount:   m.ProductCount,
		FeeBasisPoints: m.FeeBasisPoints,
		FeeDestination: addr(m.FeeDestination),
		Paused:         m.Paused,
		CreatedAt:      m.CreatedAt,
	}
}

type productJSON struct {
	ID          string `json:"id"`
	Marketplace string `json:"marketplace"`
	Seller      string `json:"seller"`
	Price       string `json:"price"`
	Quantity    uint64 `json:"quantity"`
	Currency    string `json:"currency"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	MetadataURI string `json:"metadataUri,omitempty"`
	Category    string `json:"category,omitempty"`
	Status      string `json:"status"`
	CreatedAt   uint64 `json:"createdAt"`
	UpdatedAt   uint64 `json:"updatedAt"`
}

func formatProduct(p *marketplace.Product) productJSON {
	return productJSON{
		ID:          addr(p.ID),
		Marketplace: addr(p.Marketplace),
		Seller:      addr(p.Seller),
		Price:       strconv.FormatUint(p.Price, 10),
		Quantity:    p.Quantity,
		Currency:    p.Currency.String(),
		Title:       p.Title,
		Description: p.Description,
		MetadataURI: p.MetadataURI,
		Category:    p.Category,
		Status:      p.Status.String(),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type reviewJSON struct {
	Author         string `json:"author"`
	Rating         uint8  `json:"rating"`
	Comment        string `json:"comment,omitempty"`
	TransactionRef string `json:"transactionRef,omitempty"`
	CreatedAt      uint64 `json:"createdAt"`
}

type reputationJSON struct {
	User           string       `json:"user"`
	AverageRating  float64      `json:"averageRating"`
	ReviewCount    uint64       `json:"reviewCount"`
	TotalSales     uint64       `json:"totalSales"`
	TotalPurchases uint64       `json:"totalPurchases"`
	Verified       bool         `json:"verified"`
	CreatedAt      uint64       `json:"createdAt"`
	Reviews        []reviewJSON `json:"reviews,omitempty"`
}

func formatReputation(rep *reputation.UserReputation, reviews []reputation.Review) reputationJSON {
	out := reputationJSON{
		User:           addr(rep.User),
		AverageRating:  rep.AverageRating(),
		ReviewCount:    rep.ReviewCount,
		TotalSales:     rep.TotalSales,
		TotalPurchases: rep.TotalPurchases,
		Verified:       rep.Verified,
		CreatedAt:      rep.CreatedAt,
	}
	for _, r := range reviews {
		view := reviewJSON{Author: addr(r.Author), Rating: r.Rating, Comment: r.Comment, CreatedAt: r.CreatedAt}
		if r.TransactionRef != ([20]byte{}) {
			view.TransactionRef = addr(r.TransactionRef)
		}
		out.Reviews = append(out.Reviews, view)
	}
	return out
}

type balanceJSON struct {
	Address  string            `json:"address"`
	Native   string            `json:"native"`
	Holdings map[string]string `json:"holdings"`
}

func formatBalances(owner [20]byte, b *core.Balances) balanceJSON {
	out := balanceJSON{Address: addr(owner), Native: strconv.FormatUint(b.Native, 10), Holdings: map[string]string{}}
	for cur, amount := range b.Holdings {
		out.Holdings[cur.String()] = strconv.FormatUint(amount, 10)
	}
	return out
}
