package core

import (
	"context"
	"fmt"
	"log/slog"

	"marketescrow/core/types"
	"marketescrow/crypto"
	"marketescrow/native/bank"
	"marketescrow/native/escrow"
	"marketescrow/native/marketplace"
	"marketescrow/native/reputation"
)

func (n *Node) MarketplaceInitialize(ctx context.Context, req Request, feeBasisPoints uint16, feeDestination [20]byte) (*marketplace.Marketplace, error) {
	var out *marketplace.Marketplace
	err := n.execute(ctx, ModuleMarketplace, "marketplace_initialize", &req, func(tx *txn) (err error) {
		out, err = tx.registry().InitializeMarketplace(req.Signer, feeBasisPoints, feeDestination)
		return err
	})
	if err != nil {
		return nil, err
	}
	n.logger.Info("marketplace initialized", slog.String("marketplace", crypto.FromKey(out.ID).String()))
	return out, nil
}

func (n *Node) MarketplaceSetPaused(ctx context.Context, req Request, id [20]byte, paused bool) (*marketplace.Marketplace, error) {
	var out *marketplace.Marketplace
	err := n.execute(ctx, ModuleMarketplace, "marketplace_setPaused", &req, func(tx *txn) (err error) {
		out, err = tx.registry().SetPaused(req.Signer, id, paused)
		return err
	})
	return out, err
}

func (n *Node) ProductCreate(ctx context.Context, req Request, marketplaceID [20]byte, listing marketplace.ProductListing) (*marketplace.Product, error) {
	var out *marketplace.Product
	err := n.execute(ctx, ModuleMarketplace, "product_create", &req, func(tx *txn) (err error) {
		out, err = tx.registry().CreateProduct(req.Signer, marketplaceID, listing)
		return err
	})
	return out, err
}

func (n *Node) ProductUpdate(ctx context.Context, req Request, id [20]byte, update marketplace.ProductUpdate) (*marketplace.Product, error) {
	var out *marketplace.Product
	err := n.execute(ctx, ModuleMarketplace, "product_update", &req, func(tx *txn) (err error) {
		out, err = tx.registry().UpdateProduct(req.Signer, id, update)
		return err
	})
	return out, err
}

func (n *Node) ProductPurchase(ctx context.Context, req Request, id [20]byte, quantity uint64) (*marketplace.Product, error) {
	var out *marketplace.Product
	err := n.execute(ctx, ModuleMarketplace, "product_purchase", &req, func(tx *txn) (err error) {
		out, err = tx.registry().PurchaseProduct(req.Signer, id, quantity)
		return err
	})
	return out, err
}

// TokenOpenHolding provisions a zero-balance token holding for owner. Any
// signer may open a holding on someone's behalf.
func (n *Node) TokenOpenHolding(ctx context.Context, req Request, owner [20]byte, currency types.Currency) error {
	return n.execute(ctx, ModuleBank, "token_openHolding", &req, func(tx *txn) error {
		return tx.tokens().OpenHolding(owner, currency)
	})
}

// Credit adds amount to owner's balance in currency. It is an operator
// action and carries no signer; the RPC layer gates it behind the admin
// token.
func (n *Node) Credit(ctx context.Context, owner [20]byte, currency types.Currency, amount uint64) error {
	if amount == 0 {
		return bank.ErrInvalidAmount
	}
	return n.execute(ctx, ModuleBank, "admin_credit", nil, func(tx *txn) error {
		if _, found, err := tx.manager.EscrowGet(owner); err != nil {
			return err
		} else if found {
			return escrow.ErrCustodyAccount
		}
		if currency.IsToken() {
			ledger := tx.tokens()
			if err := ledger.OpenHolding(owner, currency); err != nil {
				return err
			}
			return ledger.Mint(owner, currency, amount)
		}
		if currency != types.CurrencyNative {
			return fmt.Errorf("%w: %s", bank.ErrUnsupportedCurrency, currency)
		}
		bal, err := tx.manager.NativeBalance(owner)
		if err != nil {
			return err
		}
		if bal+amount < bal {
			return fmt.Errorf("core: native balance overflow")
		}
		return tx.manager.SetNativeBalance(owner, bal+amount)
	})
}

func (n *Node) ReputationInitialize(ctx context.Context, req Request) (*reputation.UserReputation, error) {
	var out *reputation.UserReputation
	err := n.execute(ctx, ModuleReputation, "reputation_initialize", &req, func(tx *txn) (err error) {
		out, err = tx.reputation().InitializeUser(req.Signer)
		return err
	})
	return out, err
}

func (n *Node) ReputationReview(ctx context.Context, req Request, recipient [20]byte, rating uint8, comment string, transactionRef [20]byte) (*reputation.Review, error) {
	var out *reputation.Review
	err := n.execute(ctx, ModuleReputation, "reputation_review", &req, func(tx *txn) (err error) {
		out, err = tx.reputation().CreateReview(req.Signer, recipient, rating, comment, transactionRef)
		return err
	})
	return out, err
}

// ReputationVerify marks user verified on behalf of the marketplace's
// authority.
func (n *Node) ReputationVerify(ctx context.Context, req Request, marketplaceID, user [20]byte) (*reputation.UserReputation, error) {
	var out *reputation.UserReputation
	err := n.execute(ctx, ModuleReputation, "reputation_verify", &req, func(tx *txn) error {
		m, err := tx.registry().Marketplace(marketplaceID)
		if err != nil {
			return err
		}
		out, err = tx.reputation().VerifyUser(req.Signer, m.Authority, user)
		return err
	})
	return out, err
}

// --- Read-only queries ---

func (n *Node) Marketplace(id [20]byte) (*marketplace.Marketplace, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return marketplace.NewRegistry(n.reader()).Marketplace(id)
}

func (n *Node) Product(id [20]byte) (*marketplace.Product, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return marketplace.NewRegistry(n.reader()).Product(id)
}

func (n *Node) Reputation(user [20]byte) (*reputation.UserReputation, []reputation.Review, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	ledger := reputation.NewLedger(n.reader())
	rep, err := ledger.User(user)
	if err != nil {
		return nil, nil, err
	}
	reviews, err := ledger.Reviews(user)
	if err != nil {
		return nil, nil, err
	}
	return rep, reviews, nil
}

// Balances reports the native balance and every opened token holding of addr.
type Balances struct {
	Native   uint64
	Holdings map[types.Currency]uint64
}

func (n *Node) Balances(addr [20]byte) (*Balances, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	manager := n.reader()
	native, err := manager.NativeBalance(addr)
	if err != nil {
		return nil, err
	}
	out := &Balances{Native: native, Holdings: make(map[types.Currency]uint64)}
	for _, cur := range types.TokenCurrencies() {
		bal, ok, err := manager.Holding(addr, cur)
		if err != nil {
			return nil, err
		}
		if ok {
			out.Holdings[cur] = bal
		}
	}
	return out, nil
}

// Events returns committed events with sequence greater than after.
func (n *Node) Events(after uint64, limit int) ([]types.Event, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.reader().Events(after, limit)
}

// LastNonce returns the highest nonce accepted from signer.
func (n *Node) LastNonce(signer [20]byte) (uint64, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.reader().LastNonce(signer)
}
