package core

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"marketescrow/core/types"
	"marketescrow/native/common"
	"marketescrow/native/escrow"
	"marketescrow/native/marketplace"
	"marketescrow/native/reputation"
	"marketescrow/observability"
)

func toEscrowMarketplace(m *marketplace.Marketplace) escrow.Marketplace {
	return escrow.Marketplace{ID: m.ID, Authority: m.Authority}
}

func toEscrowProduct(p *marketplace.Product) escrow.Product {
	return escrow.Product{
		ID:          p.ID,
		Marketplace: p.Marketplace,
		Seller:      p.Seller,
		Price:       p.Price,
		Currency:    p.Currency,
	}
}

// chargeQuota applies the per-signer escrow quota for a new escrow. The
// request count spans all currencies; the value cap is tracked per currency
// since base units are not comparable across them.
func (t *txn) chargeQuota(signer [20]byte, currency types.Currency, amount uint64) error {
	q := t.node.quota
	if !q.Enabled() {
		return nil
	}
	epoch := q.Epoch(t.node.nowFn())
	reqKey := append(append([]byte{}, quotaPrefix...), signer[:]...)
	if err := t.quotaCharge(reqKey, common.Quota{MaxRequestsPerEpoch: q.MaxRequestsPerEpoch}, epoch, 1, 0); err != nil {
		return err
	}
	valueKey := append(append(append([]byte{}, quotaPrefix...), signer[:]...), []byte("/"+currency.String())...)
	return t.quotaCharge(valueKey, common.Quota{MaxValuePerEpoch: q.MaxValuePerEpoch}, epoch, 0, amount)
}

func (t *txn) quotaCharge(key []byte, q common.Quota, epoch uint64, reqs uint32, value uint64) error {
	var prev common.QuotaNow
	if _, err := t.manager.KVGet(key, &prev); err != nil {
		return err
	}
	next, err := common.CheckQuota(q, epoch, prev, reqs, value)
	if err != nil {
		observability.ModuleMetrics().RecordThrottle(ModuleEscrow, "quota_exceeded")
		return err
	}
	return t.manager.KVPut(key, next)
}

// notifyTrade records the completed trade on both parties' reputations,
// acting for the marketplace authority. Parties without a reputation record
// are skipped.
func (t *txn) notifyTrade(esc *escrow.Escrow) error {
	if !t.node.notifyReputation {
		return nil
	}
	m, err := t.registry().Marketplace(esc.Marketplace)
	if err != nil {
		return err
	}
	ledger := t.reputation()
	authority := types.NewSigner(m.Authority)
	if _, err := ledger.RecordSale(authority, m.Authority, esc.Seller); err != nil && !errors.Is(err, reputation.ErrUserNotFound) {
		return err
	}
	if _, err := ledger.RecordPurchase(authority, m.Authority, esc.Buyer); err != nil && !errors.Is(err, reputation.ErrUserNotFound) {
		return err
	}
	return nil
}

// transition loads the escrow, applies op and records custody movement.
func (n *Node) transition(ctx context.Context, op string, req Request, id [20]byte, apply func(*txn, *escrow.Engine) (*escrow.Escrow, error)) (*escrow.Escrow, error) {
	var out *escrow.Escrow
	err := n.execute(ctx, ModuleEscrow, op, &req, func(tx *txn) error {
		prev, _, err := tx.manager.EscrowGet(id)
		if err != nil {
			return err
		}
		esc, err := apply(tx, tx.escrowEngine())
		if err != nil {
			return err
		}
		if esc.Status == escrow.EscrowCompleted {
			if err := tx.notifyTrade(esc); err != nil {
				return fmt.Errorf("notify reputation: %w", err)
			}
		}
		tx.touched = append(tx.touched, esc)
		out = esc
		if prev != nil {
			recordCustody(prev.Status, esc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	n.logger.Info("escrow transition committed",
		slog.String("method", op),
		slog.String("escrow", hex.EncodeToString(out.ID[:])),
		slog.String("status", out.Status.String()))
	return out, nil
}

func recordCustody(before escrow.EscrowStatus, after *escrow.Escrow) {
	metrics := observability.Escrow()
	switch {
	case !before.HoldsFunds() && after.Status.HoldsFunds():
		metrics.RecordTransfer(after.Currency.String(), "in", after.Amount)
		metrics.FundsHeld(1)
	case before.HoldsFunds() && !after.Status.HoldsFunds():
		metrics.RecordTransfer(after.Currency.String(), "out", after.Amount)
		metrics.FundsHeld(-1)
	}
}

// EscrowCreate opens an escrow for the signer buying quantity units of the
// product.
func (n *Node) EscrowCreate(ctx context.Context, req Request, marketplaceID, productID [20]byte, quantity int64) (*escrow.Escrow, error) {
	var out *escrow.Escrow
	err := n.execute(ctx, ModuleEscrow, "escrow_create", &req, func(tx *txn) error {
		registry := tx.registry()
		m, err := registry.Marketplace(marketplaceID)
		if err != nil {
			return err
		}
		if m.Paused {
			return marketplace.ErrMarketplacePaused
		}
		p, err := registry.Product(productID)
		if err != nil {
			return err
		}
		esc, err := tx.escrowEngine().Create(tx.ctx, req.Signer, toEscrowMarketplace(m), toEscrowProduct(p), quantity)
		if err != nil {
			return err
		}
		if err := tx.chargeQuota(req.Signer.Address(), esc.Currency, esc.Amount); err != nil {
			return err
		}
		tx.touched = append(tx.touched, esc)
		out = esc
		return nil
	})
	if err != nil {
		return nil, err
	}
	n.logger.Info("escrow created",
		slog.String("escrow", hex.EncodeToString(out.ID[:])),
		slog.String("currency", out.Currency.String()),
		slog.Uint64("amount", out.Amount))
	return out, nil
}

func (n *Node) EscrowFund(ctx context.Context, req Request, id [20]byte) (*escrow.Escrow, error) {
	return n.transition(ctx, "escrow_fund", req, id, func(tx *txn, e *escrow.Engine) (*escrow.Escrow, error) {
		return e.Fund(tx.ctx, req.Signer, id)
	})
}

func (n *Node) EscrowMarkShipped(ctx context.Context, req Request, id [20]byte, trackingID string) (*escrow.Escrow, error) {
	return n.transition(ctx, "escrow_markShipped", req, id, func(tx *txn, e *escrow.Engine) (*escrow.Escrow, error) {
		return e.MarkShipped(tx.ctx, req.Signer, id, trackingID)
	})
}

func (n *Node) EscrowConfirmDelivery(ctx context.Context, req Request, id [20]byte) (*escrow.Escrow, error) {
	return n.transition(ctx, "escrow_confirmDelivery", req, id, func(tx *txn, e *escrow.Engine) (*escrow.Escrow, error) {
		return e.ConfirmDelivery(tx.ctx, req.Signer, id)
	})
}

func (n *Node) EscrowDispute(ctx context.Context, req Request, id [20]byte, reason string) (*escrow.Escrow, error) {
	return n.transition(ctx, "escrow_dispute", req, id, func(tx *txn, e *escrow.Engine) (*escrow.Escrow, error) {
		return e.Dispute(tx.ctx, req.Signer, id, reason)
	})
}

func (n *Node) EscrowCancel(ctx context.Context, req Request, id [20]byte) (*escrow.Escrow, error) {
	return n.transition(ctx, "escrow_cancel", req, id, func(tx *txn, e *escrow.Engine) (*escrow.Escrow, error) {
		return e.Cancel(tx.ctx, req.Signer, id)
	})
}

// EscrowResolve settles a disputed escrow. The marketplace is looked up from
// the escrow record so callers cannot point at another authority.
func (n *Node) EscrowResolve(ctx context.Context, req Request, id [20]byte, favorSeller bool) (*escrow.Escrow, error) {
	return n.transition(ctx, "escrow_resolve", req, id, func(tx *txn, e *escrow.Engine) (*escrow.Escrow, error) {
		esc, found, err := tx.manager.EscrowGet(id)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, escrow.ErrEscrowNotFound
		}
		m, err := tx.registry().Marketplace(esc.Marketplace)
		if err != nil {
			return nil, err
		}
		return e.Resolve(tx.ctx, req.Signer, id, toEscrowMarketplace(m), favorSeller)
	})
}

// EscrowGet returns the stored escrow record.
func (n *Node) EscrowGet(id [20]byte) (*escrow.Escrow, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	esc, ok, err := n.reader().EscrowGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, escrow.ErrEscrowNotFound
	}
	return esc, nil
}

// CustodyAddress derives the custody address and nonce for the seeds without
// touching state.
func (n *Node) CustodyAddress(marketplaceID, buyer, productID [20]byte) ([20]byte, uint8, error) {
	return escrow.NewEngine(n.deriver).CustodyAddress(marketplaceID, buyer, productID)
}

// EscrowsByParty lists escrows where party is buyer or seller. With an index
// the listing is served from it and hydrated from state; without one the
// state is scanned.
func (n *Node) EscrowsByParty(ctx context.Context, party [20]byte, limit int) ([]*escrow.Escrow, error) {
	if limit <= 0 {
		limit = 100
	}
	if n.index != nil {
		entries, err := n.index.ListByParty(ctx, party, limit)
		if err != nil {
			return nil, err
		}
		out := make([]*escrow.Escrow, 0, len(entries))
		for _, entry := range entries {
			esc, err := n.EscrowGet(entry.ID)
			if err != nil {
				return nil, err
			}
			out = append(out, esc)
		}
		return out, nil
	}

	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	out := make([]*escrow.Escrow, 0)
	err := n.reader().Escrows(func(esc *escrow.Escrow) error {
		if len(out) < limit && (esc.Buyer == party || esc.Seller == party) {
			out = append(out, esc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
