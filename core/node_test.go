package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	nhbstate "marketescrow/core/state"
	"marketescrow/core/types"
	"marketescrow/indexer"
	"marketescrow/native/bank"
	"marketescrow/native/common"
	"marketescrow/native/escrow"
	"marketescrow/native/marketplace"
	"marketescrow/storage"
)

type pauseSet map[string]bool

func (p pauseSet) IsPaused(module string) bool { return p[module] }

func key(b byte) [20]byte {
	var k [20]byte
	k[0] = b
	k[19] = 0xEE
	return k
}

type harness struct {
	t         *testing.T
	node      *Node
	db        storage.Database
	ctx       context.Context
	nonces    map[[20]byte]uint64
	authority [20]byte
	buyer     [20]byte
	seller    [20]byte
	market    *marketplace.Marketplace
	product   *marketplace.Product
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	db := storage.NewMemDB()
	if opts.Now == nil {
		opts.Now = func() int64 { return 1_700_000_000 }
	}
	node, err := NewNode(db, opts)
	require.NoError(t, err)
	h := &harness{
		t:         t,
		node:      node,
		db:        db,
		ctx:       context.Background(),
		nonces:    make(map[[20]byte]uint64),
		authority: key(1),
		buyer:     key(2),
		seller:    key(3),
	}
	require.NoError(t, node.Credit(h.ctx, h.buyer, types.CurrencyNative, 10_000_000))
	require.NoError(t, node.Credit(h.ctx, h.seller, types.CurrencyNative, 1_000_000))

	h.market, err = node.MarketplaceInitialize(h.ctx, h.req(h.authority), 100, h.authority)
	require.NoError(t, err)
	h.product = h.listProduct(1_000, types.CurrencyNative)
	return h
}

func (h *harness) req(signer [20]byte) Request {
	h.nonces[signer]++
	return Request{Signer: types.NewSigner(signer), Nonce: h.nonces[signer]}
}

func (h *harness) listProduct(price uint64, currency types.Currency) *marketplace.Product {
	h.t.Helper()
	p, err := h.node.ProductCreate(h.ctx, h.req(h.seller), h.market.ID, marketplace.ProductListing{
		Title:    "Lamp",
		Price:    price,
		Quantity: 10,
		Currency: currency,
	})
	require.NoError(h.t, err)
	return p
}

func (h *harness) native(addr [20]byte) uint64 {
	h.t.Helper()
	b, err := h.node.Balances(addr)
	require.NoError(h.t, err)
	return b.Native
}

func (h *harness) eventTypes() []string {
	h.t.Helper()
	evts, err := h.node.Events(0, 0)
	require.NoError(h.t, err)
	out := make([]string, 0, len(evts))
	for _, e := range evts {
		out = append(out, e.Type)
	}
	return out
}

func TestNodeHappyPathNative(t *testing.T) {
	h := newHarness(t, Options{})

	esc, err := h.node.EscrowCreate(h.ctx, h.req(h.buyer), h.market.ID, h.product.ID, 2)
	require.NoError(t, err)
	require.Equal(t, uint64(2_000), esc.Amount)
	require.Equal(t, escrow.EscrowCreated, esc.Status)

	id, bump, err := h.node.CustodyAddress(h.market.ID, h.buyer, h.product.ID)
	require.NoError(t, err)
	require.Equal(t, esc.ID, id)
	require.Equal(t, esc.Bump, bump)

	_, err = h.node.EscrowFund(h.ctx, h.req(h.buyer), esc.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(10_000_000-2_000), h.native(h.buyer))
	require.Equal(t, uint64(2_000), h.native(esc.ID))

	_, err = h.node.EscrowMarkShipped(h.ctx, h.req(h.seller), esc.ID, "TRACK-1")
	require.NoError(t, err)
	done, err := h.node.EscrowConfirmDelivery(h.ctx, h.req(h.buyer), esc.ID)
	require.NoError(t, err)
	require.Equal(t, escrow.EscrowCompleted, done.Status)
	require.Equal(t, "TRACK-1", done.TrackingID)
	require.Zero(t, h.native(esc.ID))
	require.Equal(t, uint64(1_002_000), h.native(h.seller))

	stored, err := h.node.EscrowGet(esc.ID)
	require.NoError(t, err)
	require.Equal(t, escrow.EscrowCompleted, stored.Status)

	got := h.eventTypes()
	require.Equal(t, []string{
		marketplace.EventTypeMarketplaceInitialized,
		marketplace.EventTypeProductCreated,
		escrow.EventTypeEscrowCreated,
		escrow.EventTypeEscrowFunded,
		escrow.EventTypeEscrowShipped,
		escrow.EventTypeEscrowCompleted,
	}, got)
}

func TestNodeRejectsReplayedNonce(t *testing.T) {
	h := newHarness(t, Options{})
	req := h.req(h.buyer)
	_, err := h.node.EscrowCreate(h.ctx, req, h.market.ID, h.product.ID, 1)
	require.NoError(t, err)

	_, err = h.node.EscrowFund(h.ctx, req, h.product.ID)
	require.ErrorIs(t, err, nhbstate.ErrNonceReplayed)

	last, err := h.node.LastNonce(h.buyer)
	require.NoError(t, err)
	require.Equal(t, req.Nonce, last)
}

func TestNodeFailedOperationDiscardsWritesButBurnsNonce(t *testing.T) {
	h := newHarness(t, Options{})
	pricey := h.listProduct(5_000_000, types.CurrencyNative)
	esc, err := h.node.EscrowCreate(h.ctx, h.req(h.buyer), h.market.ID, pricey.ID, 2)
	require.NoError(t, err)

	before := h.eventTypes()
	req := h.req(h.buyer)
	_, err = h.node.EscrowFund(h.ctx, req, esc.ID)
	require.ErrorIs(t, err, bank.ErrInsufficientFunds)

	require.Equal(t, uint64(10_000_000), h.native(h.buyer))
	stored, err := h.node.EscrowGet(esc.ID)
	require.NoError(t, err)
	require.Equal(t, escrow.EscrowCreated, stored.Status)
	require.Equal(t, before, h.eventTypes())

	_, err = h.node.EscrowFund(h.ctx, req, esc.ID)
	require.ErrorIs(t, err, nhbstate.ErrNonceReplayed)
}

func TestNodeRequiresSigner(t *testing.T) {
	h := newHarness(t, Options{})
	_, err := h.node.EscrowCreate(h.ctx, Request{}, h.market.ID, h.product.ID, 1)
	require.ErrorIs(t, err, ErrSignerRequired)
}

func TestNodePausedModule(t *testing.T) {
	pauses := pauseSet{}
	h := newHarness(t, Options{Pauses: pauses})
	pauses[ModuleEscrow] = true

	_, err := h.node.EscrowCreate(h.ctx, h.req(h.buyer), h.market.ID, h.product.ID, 1)
	require.ErrorIs(t, err, common.ErrModulePaused)

	pauses[ModuleEscrow] = false
	_, err = h.node.EscrowCreate(h.ctx, h.req(h.buyer), h.market.ID, h.product.ID, 1)
	require.NoError(t, err)
}

func TestNodePausedMarketplaceRejectsCreate(t *testing.T) {
	h := newHarness(t, Options{})
	_, err := h.node.MarketplaceSetPaused(h.ctx, h.req(h.authority), h.market.ID, true)
	require.NoError(t, err)

	_, err = h.node.EscrowCreate(h.ctx, h.req(h.buyer), h.market.ID, h.product.ID, 1)
	require.ErrorIs(t, err, marketplace.ErrMarketplacePaused)
}

func TestNodeEscrowQuota(t *testing.T) {
	h := newHarness(t, Options{Quota: common.Quota{MaxRequestsPerEpoch: 1, EpochSeconds: 3600}})
	second := h.listProduct(10, types.CurrencyNative)

	_, err := h.node.EscrowCreate(h.ctx, h.req(h.buyer), h.market.ID, h.product.ID, 1)
	require.NoError(t, err)
	_, err = h.node.EscrowCreate(h.ctx, h.req(h.buyer), h.market.ID, second.ID, 1)
	require.ErrorIs(t, err, common.ErrQuotaRequestsExceeded)

	usdc := h.listProduct(50, types.CurrencyUSDC)
	_, err = h.node.EscrowCreate(h.ctx, h.req(h.buyer), h.market.ID, usdc.ID, 1)
	require.ErrorIs(t, err, common.ErrQuotaRequestsExceeded, "request count spans currencies")

	_, err = h.node.EscrowCreate(h.ctx, h.req(h.seller), h.market.ID, second.ID, 1)
	require.NoError(t, err, "quota is tracked per signer")
}

func TestNodeEscrowValueCapPerCurrency(t *testing.T) {
	h := newHarness(t, Options{Quota: common.Quota{MaxValuePerEpoch: 1_000, EpochSeconds: 3600}})
	second := h.listProduct(10, types.CurrencyNative)
	usdc := h.listProduct(600, types.CurrencyUSDC)

	_, err := h.node.EscrowCreate(h.ctx, h.req(h.buyer), h.market.ID, h.product.ID, 1)
	require.NoError(t, err)
	_, err = h.node.EscrowCreate(h.ctx, h.req(h.buyer), h.market.ID, second.ID, 1)
	require.ErrorIs(t, err, common.ErrQuotaValueCapExceeded)

	_, err = h.node.EscrowCreate(h.ctx, h.req(h.buyer), h.market.ID, usdc.ID, 1)
	require.NoError(t, err, "native usage does not count against USDC")
	more := h.listProduct(500, types.CurrencyUSDC)
	_, err = h.node.EscrowCreate(h.ctx, h.req(h.buyer), h.market.ID, more.ID, 1)
	require.ErrorIs(t, err, common.ErrQuotaValueCapExceeded)
}

func TestNodeDisputeResolvedByAuthority(t *testing.T) {
	h := newHarness(t, Options{})
	esc, err := h.node.EscrowCreate(h.ctx, h.req(h.buyer), h.market.ID, h.product.ID, 3)
	require.NoError(t, err)
	_, err = h.node.EscrowFund(h.ctx, h.req(h.buyer), esc.ID)
	require.NoError(t, err)
	_, err = h.node.EscrowDispute(h.ctx, h.req(h.seller), esc.ID, "buyer unreachable")
	require.NoError(t, err)

	_, err = h.node.EscrowResolve(h.ctx, h.req(h.buyer), esc.ID, false)
	require.ErrorIs(t, err, escrow.ErrUnauthorizedAuthority)

	resolved, err := h.node.EscrowResolve(h.ctx, h.req(h.authority), esc.ID, false)
	require.NoError(t, err)
	require.Equal(t, escrow.EscrowRefunded, resolved.Status)
	require.Equal(t, uint64(10_000_000), h.native(h.buyer))
	require.Zero(t, h.native(esc.ID))
}

func TestNodeCancelFundedRefunds(t *testing.T) {
	h := newHarness(t, Options{})
	esc, err := h.node.EscrowCreate(h.ctx, h.req(h.buyer), h.market.ID, h.product.ID, 1)
	require.NoError(t, err)
	_, err = h.node.EscrowFund(h.ctx, h.req(h.buyer), esc.ID)
	require.NoError(t, err)
	cancelled, err := h.node.EscrowCancel(h.ctx, h.req(h.buyer), esc.ID)
	require.NoError(t, err)
	require.Equal(t, escrow.EscrowCancelled, cancelled.Status)
	require.Equal(t, uint64(10_000_000), h.native(h.buyer))
}

func TestNodeTokenEscrowNeedsOpenedHoldings(t *testing.T) {
	h := newHarness(t, Options{})
	usdc := h.listProduct(50, types.CurrencyUSDC)
	require.NoError(t, h.node.Credit(h.ctx, h.buyer, types.CurrencyUSDC, 500))

	esc, err := h.node.EscrowCreate(h.ctx, h.req(h.buyer), h.market.ID, usdc.ID, 2)
	require.NoError(t, err)
	_, err = h.node.EscrowFund(h.ctx, h.req(h.buyer), esc.ID)
	require.ErrorIs(t, err, bank.ErrHoldingNotFound)

	require.NoError(t, h.node.TokenOpenHolding(h.ctx, h.req(h.buyer), esc.ID, types.CurrencyUSDC))
	_, err = h.node.EscrowFund(h.ctx, h.req(h.buyer), esc.ID)
	require.NoError(t, err)

	balances, err := h.node.Balances(esc.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(100), balances.Holdings[types.CurrencyUSDC])

	_, err = h.node.EscrowMarkShipped(h.ctx, h.req(h.seller), esc.ID, "")
	require.NoError(t, err)
	_, err = h.node.EscrowConfirmDelivery(h.ctx, h.req(h.buyer), esc.ID)
	require.ErrorIs(t, err, bank.ErrHoldingNotFound, "seller holding is never auto-provisioned")

	require.NoError(t, h.node.TokenOpenHolding(h.ctx, h.req(h.buyer), h.seller, types.CurrencyUSDC))
	_, err = h.node.EscrowConfirmDelivery(h.ctx, h.req(h.buyer), esc.ID)
	require.NoError(t, err)
	seller, err := h.node.Balances(h.seller)
	require.NoError(t, err)
	require.Equal(t, uint64(100), seller.Holdings[types.CurrencyUSDC])
}

func TestNodeNotifiesReputation(t *testing.T) {
	h := newHarness(t, Options{NotifyReputation: true})
	_, err := h.node.ReputationInitialize(h.ctx, h.req(h.seller))
	require.NoError(t, err)

	esc, err := h.node.EscrowCreate(h.ctx, h.req(h.buyer), h.market.ID, h.product.ID, 1)
	require.NoError(t, err)
	_, err = h.node.EscrowFund(h.ctx, h.req(h.buyer), esc.ID)
	require.NoError(t, err)
	_, err = h.node.EscrowMarkShipped(h.ctx, h.req(h.seller), esc.ID, "")
	require.NoError(t, err)
	_, err = h.node.EscrowConfirmDelivery(h.ctx, h.req(h.buyer), esc.ID)
	require.NoError(t, err, "buyer without a reputation record is skipped")

	rep, _, err := h.node.Reputation(h.seller)
	require.NoError(t, err)
	require.Equal(t, uint64(1), rep.TotalSales)

	_, err = h.node.ReputationVerify(h.ctx, h.req(h.authority), h.market.ID, h.seller)
	require.NoError(t, err)
	rep, _, err = h.node.Reputation(h.seller)
	require.NoError(t, err)
	require.True(t, rep.Verified)
}

func TestNodeEscrowsByParty(t *testing.T) {
	for _, withIndex := range []bool{false, true} {
		t.Run(map[bool]string{false: "scan", true: "index"}[withIndex], func(t *testing.T) {
			opts := Options{}
			if withIndex {
				store, err := indexer.Open(":memory:")
				require.NoError(t, err)
				t.Cleanup(func() { _ = store.Close() })
				opts.Index = store
			}
			h := newHarness(t, opts)
			second := h.listProduct(10, types.CurrencyNative)
			_, err := h.node.EscrowCreate(h.ctx, h.req(h.buyer), h.market.ID, h.product.ID, 1)
			require.NoError(t, err)
			esc, err := h.node.EscrowCreate(h.ctx, h.req(h.buyer), h.market.ID, second.ID, 1)
			require.NoError(t, err)
			_, err = h.node.EscrowFund(h.ctx, h.req(h.buyer), esc.ID)
			require.NoError(t, err)

			list, err := h.node.EscrowsByParty(h.ctx, h.seller, 0)
			require.NoError(t, err)
			require.Len(t, list, 2)
			statuses := map[[20]byte]escrow.EscrowStatus{}
			for _, e := range list {
				statuses[e.ID] = e.Status
			}
			require.Equal(t, escrow.EscrowFunded, statuses[esc.ID])

			none, err := h.node.EscrowsByParty(h.ctx, key(9), 0)
			require.NoError(t, err)
			require.Empty(t, none)

			n, err := h.node.RebuildIndex(h.ctx)
			require.NoError(t, err)
			if withIndex {
				require.Equal(t, 2, n)
			}
		})
	}
}

func TestNodeRebuildIndexReplaysEventLog(t *testing.T) {
	h := newHarness(t, Options{})
	esc, err := h.node.EscrowCreate(h.ctx, h.req(h.buyer), h.market.ID, h.product.ID, 1)
	require.NoError(t, err)
	_, err = h.node.EscrowFund(h.ctx, h.req(h.buyer), esc.ID)
	require.NoError(t, err)

	store, err := indexer.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	restarted, err := NewNode(h.db, Options{Index: store, Now: func() int64 { return 1_700_000_000 }})
	require.NoError(t, err)

	n, err := restarted.RebuildIndex(h.ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	recorded, err := store.EventTypes(h.ctx, esc.ID)
	require.NoError(t, err)
	require.Equal(t, []string{escrow.EventTypeEscrowCreated, escrow.EventTypeEscrowFunded}, recorded)

	evts, err := h.node.Events(0, 0)
	require.NoError(t, err)
	last, err := store.LastSequence(h.ctx)
	require.NoError(t, err)
	require.Equal(t, evts[len(evts)-1].Sequence, last)

	// A second rebuild has nothing left to replay.
	_, err = restarted.RebuildIndex(h.ctx)
	require.NoError(t, err)
	again, err := store.EventTypes(h.ctx, esc.ID)
	require.NoError(t, err)
	require.Equal(t, recorded, again)
}

func TestNodeCreditValidation(t *testing.T) {
	h := newHarness(t, Options{})
	require.ErrorIs(t, h.node.Credit(h.ctx, h.buyer, types.CurrencyNative, 0), bank.ErrInvalidAmount)
	err := h.node.Credit(h.ctx, h.buyer, types.Currency(9), 1)
	require.True(t, errors.Is(err, bank.ErrUnsupportedCurrency))
}

func TestNodeCustodyCannotBePrefunded(t *testing.T) {
	h := newHarness(t, Options{})
	id, _, err := h.node.CustodyAddress(h.market.ID, h.buyer, h.product.ID)
	require.NoError(t, err)
	require.NoError(t, h.node.Credit(h.ctx, id, types.CurrencyNative, 7))

	_, err = h.node.EscrowCreate(h.ctx, h.req(h.buyer), h.market.ID, h.product.ID, 1)
	require.ErrorIs(t, err, escrow.ErrCustodyNotEmpty)
	_, err = h.node.EscrowGet(id)
	require.ErrorIs(t, err, escrow.ErrEscrowNotFound)
}

func TestNodeCreditRejectsCustodyAccount(t *testing.T) {
	h := newHarness(t, Options{})
	esc, err := h.node.EscrowCreate(h.ctx, h.req(h.buyer), h.market.ID, h.product.ID, 1)
	require.NoError(t, err)

	err = h.node.Credit(h.ctx, esc.ID, types.CurrencyNative, 7)
	require.ErrorIs(t, err, escrow.ErrCustodyAccount)
	err = h.node.Credit(h.ctx, esc.ID, types.CurrencyUSDC, 7)
	require.ErrorIs(t, err, escrow.ErrCustodyAccount)

	_, err = h.node.EscrowCancel(h.ctx, h.req(h.buyer), esc.ID)
	require.NoError(t, err)
	require.Zero(t, h.native(esc.ID))
}

func TestNodeCancelledContext(t *testing.T) {
	h := newHarness(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.node.EscrowCreate(ctx, h.req(h.buyer), h.market.ID, h.product.ID, 1)
	require.ErrorIs(t, err, context.Canceled)
}
