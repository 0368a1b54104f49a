package reputation

import (
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"

	"marketescrow/core/types"
)

type memoryStore struct {
	data map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string][]byte)}
}

func (m *memoryStore) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.data[string(key)] = encoded
	return nil
}

func (m *memoryStore) KVGet(key []byte, out interface{}) (bool, error) {
	encoded, ok := m.data[string(key)]
	if !ok {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(encoded, out); err != nil {
		return false, err
	}
	return true, nil
}

func addr(b byte) [20]byte {
	var a [20]byte
	a[0] = b
	return a
}

func TestInitializeAndReview(t *testing.T) {
	ledger := NewLedger(newMemoryStore())
	ledger.SetNowFunc(func() int64 { return 100 })
	seller := types.NewSigner(addr(1))
	buyer := types.NewSigner(addr(2))

	if _, err := ledger.CreateReview(buyer, seller.Address(), 5, "great", [20]byte{}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected missing user, got %v", err)
	}
	if _, err := ledger.InitializeUser(seller); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if _, err := ledger.InitializeUser(seller); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected exists, got %v", err)
	}
	if _, err := ledger.CreateReview(buyer, seller.Address(), 5, "great", addr(9)); err != nil {
		t.Fatalf("review: %v", err)
	}
	if _, err := ledger.CreateReview(buyer, seller.Address(), 2, "", [20]byte{}); err != nil {
		t.Fatalf("review: %v", err)
	}
	rep, err := ledger.User(seller.Address())
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	if rep.ReviewCount != 2 || rep.TotalRating != 7 || rep.AverageRating() != 3.5 {
		t.Fatalf("unexpected aggregate %+v", rep)
	}
	reviews, err := ledger.Reviews(seller.Address())
	if err != nil {
		t.Fatalf("reviews: %v", err)
	}
	if len(reviews) != 2 || reviews[0].TransactionRef != addr(9) || reviews[1].Rating != 2 {
		t.Fatalf("unexpected reviews %+v", reviews)
	}
}

func TestReviewValidation(t *testing.T) {
	ledger := NewLedger(newMemoryStore())
	seller := types.NewSigner(addr(1))
	if _, err := ledger.InitializeUser(seller); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	buyer := types.NewSigner(addr(2))
	for _, rating := range []uint8{0, 6} {
		if _, err := ledger.CreateReview(buyer, seller.Address(), rating, "", [20]byte{}); !errors.Is(err, ErrInvalidRating) {
			t.Fatalf("rating %d: expected invalid rating, got %v", rating, err)
		}
	}
	if _, err := ledger.CreateReview(buyer, seller.Address(), 3, strings.Repeat("c", 501), [20]byte{}); !errors.Is(err, ErrCommentTooLong) {
		t.Fatalf("expected comment error, got %v", err)
	}
	if _, err := ledger.CreateReview(buyer, seller.Address(), 3, strings.Repeat("c", 500), [20]byte{}); err != nil {
		t.Fatalf("comment at limit: %v", err)
	}
	if _, err := ledger.CreateReview(seller, seller.Address(), 5, "", [20]byte{}); !errors.Is(err, ErrSelfReview) {
		t.Fatalf("expected self review error, got %v", err)
	}
}

func TestAuthorityCounters(t *testing.T) {
	ledger := NewLedger(newMemoryStore())
	user := types.NewSigner(addr(1))
	authority := types.NewSigner(addr(7))
	if _, err := ledger.InitializeUser(user); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if _, err := ledger.RecordSale(user, authority.Address(), user.Address()); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := ledger.RecordSale(authority, authority.Address(), user.Address()); err != nil {
		t.Fatalf("record sale: %v", err)
	}
	if _, err := ledger.RecordPurchase(authority, authority.Address(), user.Address()); err != nil {
		t.Fatalf("record purchase: %v", err)
	}
	rep, err := ledger.VerifyUser(authority, authority.Address(), user.Address())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !rep.Verified || rep.TotalSales != 1 || rep.TotalPurchases != 1 {
		t.Fatalf("unexpected reputation %+v", rep)
	}
	if _, err := ledger.RecordSale(authority, authority.Address(), addr(3)); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected missing user, got %v", err)
	}
}
