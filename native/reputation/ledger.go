// Package reputation tracks review ratings, verification and completed trade
// counters per user.
package reputation

import (
	"errors"
	"math"
	"time"

	"marketescrow/core/events"
	"marketescrow/core/types"
)

// storage abstracts the subset of state manager functionality required by the
// reputation ledger.
type storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Ledger persists user reputations and reviews.
type Ledger struct {
	store   storage
	emitter events.Emitter
	nowFn   func() int64
}

// NewLedger constructs a ledger bound to the provided storage backend.
func NewLedger(store storage) *Ledger {
	return &Ledger{
		store:   store,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetNowFunc overrides the wall clock. Primarily leveraged in tests to provide
// deterministic timestamps.
func (l *Ledger) SetNowFunc(now func() int64) {
	if l == nil {
		return
	}
	if now == nil {
		l.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	l.nowFn = now
}

// SetEmitter configures the event sink. Passing nil discards events.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	l.emitter = emitter
}

func (l *Ledger) now() uint64 {
	ts := l.nowFn()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func (l *Ledger) emit(evt *types.Event) {
	l.emitter.Emit(reputationEvent{evt: evt})
}

func (l *Ledger) ready() error {
	if l == nil || l.store == nil {
		return errors.New("reputation: storage unavailable")
	}
	return nil
}

// User loads the reputation record of user.
func (l *Ledger) User(user [20]byte) (*UserReputation, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	var rep UserReputation
	ok, err := l.store.KVGet(userKey(user), &rep)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUserNotFound
	}
	return &rep, nil
}

func (l *Ledger) putUser(rep *UserReputation) error {
	return l.store.KVPut(userKey(rep.User), rep)
}

// InitializeUser opens the reputation record for the signer.
func (l *Ledger) InitializeUser(signer types.Signer) (*UserReputation, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	if signer.IsZero() {
		return nil, ErrUnauthorized
	}
	if _, err := l.User(signer.Address()); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	rep := &UserReputation{User: signer.Address(), CreatedAt: l.now()}
	if err := l.putUser(rep); err != nil {
		return nil, err
	}
	l.emit(newUserEvent(EventTypeUserInitialized, rep))
	return rep, nil
}

// CreateReview records a rating by the signer for recipient and folds it into
// the recipient's aggregate.
func (l *Ledger) CreateReview(signer types.Signer, recipient [20]byte, rating uint8, comment string, transactionRef [20]byte) (*Review, error) {
	if rating < MinRating || rating > MaxRating {
		return nil, ErrInvalidRating
	}
	if len(comment) > MaxCommentLength {
		return nil, ErrCommentTooLong
	}
	if signer.IsZero() {
		return nil, ErrUnauthorized
	}
	if signer.Address() == recipient {
		return nil, ErrSelfReview
	}
	rep, err := l.User(recipient)
	if err != nil {
		return nil, err
	}
	if rep.ReviewCount == math.MaxUint64 || rep.TotalRating > math.MaxUint64-uint64(rating) {
		return nil, errors.New("reputation: rating counters overflow")
	}
	review := &Review{
		Author:         signer.Address(),
		Recipient:      recipient,
		Rating:         rating,
		Comment:        comment,
		TransactionRef: transactionRef,
		CreatedAt:      l.now(),
	}
	if err := l.store.KVPut(reviewKey(recipient, rep.ReviewCount), review); err != nil {
		return nil, err
	}
	rep.TotalRating += uint64(rating)
	rep.ReviewCount++
	if err := l.putUser(rep); err != nil {
		return nil, err
	}
	l.emit(NewReviewCreatedEvent(review))
	return review, nil
}

// Reviews returns the reviews received by recipient in creation order.
func (l *Ledger) Reviews(recipient [20]byte) ([]Review, error) {
	rep, err := l.User(recipient)
	if err != nil {
		return nil, err
	}
	out := make([]Review, 0, rep.ReviewCount)
	for i := uint64(0); i < rep.ReviewCount; i++ {
		var review Review
		ok, err := l.store.KVGet(reviewKey(recipient, i), &review)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, review)
		}
	}
	return out, nil
}

// VerifyUser marks user as verified. Only the marketplace authority may do so.
func (l *Ledger) VerifyUser(signer types.Signer, authority, user [20]byte) (*UserReputation, error) {
	return l.mutate(signer, authority, user, EventTypeUserVerified, func(rep *UserReputation) error {
		rep.Verified = true
		return nil
	})
}

// RecordSale increments the completed sale counter of user.
func (l *Ledger) RecordSale(signer types.Signer, authority, user [20]byte) (*UserReputation, error) {
	return l.mutate(signer, authority, user, EventTypeSaleRecorded, func(rep *UserReputation) error {
		if rep.TotalSales == math.MaxUint64 {
			return errors.New("reputation: sale counter overflow")
		}
		rep.TotalSales++
		return nil
	})
}

// RecordPurchase increments the completed purchase counter of user.
func (l *Ledger) RecordPurchase(signer types.Signer, authority, user [20]byte) (*UserReputation, error) {
	return l.mutate(signer, authority, user, EventTypePurchaseRecord, func(rep *UserReputation) error {
		if rep.TotalPurchases == math.MaxUint64 {
			return errors.New("reputation: purchase counter overflow")
		}
		rep.TotalPurchases++
		return nil
	})
}

func (l *Ledger) mutate(signer types.Signer, authority, user [20]byte, eventType string, fn func(*UserReputation) error) (*UserReputation, error) {
	if !signer.Authorizes(authority) {
		return nil, ErrUnauthorized
	}
	rep, err := l.User(user)
	if err != nil {
		return nil, err
	}
	if err := fn(rep); err != nil {
		return nil, err
	}
	if err := l.putUser(rep); err != nil {
		return nil, err
	}
	l.emit(newUserEvent(eventType, rep))
	return rep, nil
}
