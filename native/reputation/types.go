package reputation

import "encoding/binary"

const (
	MinRating        = 1
	MaxRating        = 5
	MaxCommentLength = 500
)

// UserReputation aggregates the reviews and completed trades of one user.
type UserReputation struct {
	User           [20]byte
	TotalRating    uint64
	ReviewCount    uint64
	TotalSales     uint64
	TotalPurchases uint64
	Verified       bool
	CreatedAt      uint64
}

// AverageRating returns total rating divided by review count, or zero when the
// user has no reviews.
func (u *UserReputation) AverageRating() float64 {
	if u == nil || u.ReviewCount == 0 {
		return 0
	}
	return float64(u.TotalRating) / float64(u.ReviewCount)
}

// Review is a single rating left by author for recipient. TransactionRef
// optionally points at the escrow the review is about.
type Review struct {
	Author         [20]byte
	Recipient      [20]byte
	Rating         uint8
	Comment        string
	TransactionRef [20]byte
	CreatedAt      uint64
}

func userKey(user [20]byte) []byte {
	return append([]byte("reputation/user/"), user[:]...)
}

func reviewKey(recipient [20]byte, index uint64) []byte {
	key := append([]byte("reputation/review/"), recipient[:]...)
	return binary.BigEndian.AppendUint64(key, index)
}
