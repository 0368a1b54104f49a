package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"marketescrow/core/events"
	nhbstate "marketescrow/core/state"
	"marketescrow/core/types"
	"marketescrow/indexer"
	"marketescrow/native/bank"
	"marketescrow/native/common"
	"marketescrow/native/custody"
	"marketescrow/native/escrow"
	"marketescrow/native/marketplace"
	"marketescrow/native/reputation"
	"marketescrow/observability"
	"marketescrow/observability/otel"
	"marketescrow/storage"
)

// Module names used by the pause guard.
const (
	ModuleEscrow      = "escrow"
	ModuleMarketplace = "marketplace"
	ModuleReputation  = "reputation"
	ModuleBank        = "bank"
)

var quotaPrefix = []byte("quota/escrow/")

const eventReplayPage = 500

// ErrSignerRequired is returned when a mutating request carries no signer.
var ErrSignerRequired = errors.New("core: signer required")

// EscrowIndex is the optional read projection fed after every commit.
type EscrowIndex interface {
	Record(ctx context.Context, e *escrow.Escrow) error
	RecordEvent(ctx context.Context, evt types.Event) error
	LastSequence(ctx context.Context) (uint64, error)
	ListByParty(ctx context.Context, party [20]byte, limit int) ([]indexer.Entry, error)
	Rebuild(ctx context.Context, walk func(func(*escrow.Escrow) error) error) (int, error)
}

// Options configure a Node. The zero value runs with the default program id,
// the default native minimum balance, no pauses, no quota and no index.
type Options struct {
	ProgramID        [20]byte
	MinimumBalance   uint64
	Pauses           common.PauseView
	Quota            common.Quota
	NotifyReputation bool
	Index            EscrowIndex
	Logger           *slog.Logger
	Now              func() int64
}

// Node is the host for the native modules. It serialises every mutating
// operation, runs it against a journal over the database and commits the
// journal only when the operation succeeds.
type Node struct {
	db               storage.Database
	stateMu          sync.Mutex
	deriver          *custody.Deriver
	minimumBalance   uint64
	pauses           common.PauseView
	quota            common.Quota
	notifyReputation bool
	index            EscrowIndex
	logger           *slog.Logger
	tracer           trace.Tracer
	nowFn            func() int64
}

func NewNode(db storage.Database, opts Options) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("core: database must not be nil")
	}
	if err := nhbstate.EnsureStateVersion(db, false); err != nil {
		return nil, err
	}
	programID := opts.ProgramID
	if programID == ([20]byte{}) {
		programID = custody.DefaultProgramID
	}
	minimum := opts.MinimumBalance
	if minimum == 0 {
		minimum = bank.DefaultMinimumBalance
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	return &Node{
		db:               db,
		deriver:          custody.NewDeriver(programID),
		minimumBalance:   minimum,
		pauses:           opts.Pauses,
		quota:            opts.Quota,
		notifyReputation: opts.NotifyReputation,
		index:            opts.Index,
		logger:           logger.With(slog.String("component", "node")),
		tracer:           otel.Tracer("marketescrow/core"),
		nowFn:            now,
	}, nil
}

// ProgramID returns the id custody addresses are scoped to.
func (n *Node) ProgramID() [20]byte { return n.deriver.ProgramID() }

// Request identifies the authenticated caller of a mutating operation.
type Request struct {
	Signer types.Signer
	Nonce  uint64
}

// txn is the per-operation view handed to operation bodies.
type txn struct {
	ctx     context.Context
	manager *nhbstate.Manager
	buffer  *events.Buffer
	touched []*escrow.Escrow
	node    *Node
}

func (t *txn) escrowEngine() *escrow.Engine {
	engine := escrow.NewEngine(t.node.deriver)
	engine.SetState(t.manager)
	engine.SetGateway(bank.NewDefaultGateway(t.manager, t.manager, t.node.minimumBalance))
	engine.SetEmitter(t.buffer)
	engine.SetNowFunc(t.node.nowFn)
	return engine
}

func (t *txn) registry() *marketplace.Registry {
	registry := marketplace.NewRegistry(t.manager)
	registry.SetEmitter(t.buffer)
	registry.SetNowFunc(t.node.nowFn)
	return registry
}

func (t *txn) reputation() *reputation.Ledger {
	ledger := reputation.NewLedger(t.manager)
	ledger.SetEmitter(t.buffer)
	ledger.SetNowFunc(t.node.nowFn)
	return ledger
}

func (t *txn) tokens() *bank.TokenLedger {
	return bank.NewTokenLedger(t.manager)
}

// execute runs body for module under the state lock. The request nonce is
// consumed even when body fails so a rejected request cannot be replayed
// later; everything else body wrote is discarded.
func (n *Node) execute(ctx context.Context, module, op string, req *Request, body func(*txn) error) error {
	ctx, span := n.tracer.Start(ctx, "node."+op, trace.WithAttributes(
		attribute.String("module", module),
		attribute.String("operation", op),
	))
	defer span.End()
	start := time.Now()

	err := n.run(ctx, module, req, body)
	if module == ModuleEscrow {
		observability.Escrow().Observe(op, time.Since(start), err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		n.logger.Debug("operation rejected", slog.String("method", op), slog.String("error", err.Error()))
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (n *Node) run(ctx context.Context, module string, req *Request, body func(*txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	if req != nil && req.Signer.IsZero() {
		return ErrSignerRequired
	}

	journal := nhbstate.NewJournal(n.db)
	tx := &txn{ctx: ctx, manager: nhbstate.NewManager(journal), buffer: &events.Buffer{}, node: n}
	if req != nil {
		if err := tx.manager.ConsumeNonce(req.Signer.Address(), req.Nonce); err != nil {
			return err
		}
	}

	bodyErr := common.Guard(n.pauses, module)
	if bodyErr == nil {
		bodyErr = body(tx)
	}
	if bodyErr != nil {
		journal.Discard()
		if req != nil {
			n.burnNonce(req)
		}
		return bodyErr
	}

	published := tx.buffer.Drain()
	for _, evt := range published {
		if _, err := tx.manager.AppendEvent(evt); err != nil {
			journal.Discard()
			return fmt.Errorf("core: append event: %w", err)
		}
	}
	if err := journal.Commit(); err != nil {
		journal.Discard()
		return fmt.Errorf("core: commit: %w", err)
	}
	n.publish(ctx, tx.touched, published)
	return nil
}

func (n *Node) burnNonce(req *Request) {
	journal := nhbstate.NewJournal(n.db)
	if err := nhbstate.NewManager(journal).ConsumeNonce(req.Signer.Address(), req.Nonce); err != nil {
		journal.Discard()
		return
	}
	if err := journal.Commit(); err != nil {
		n.logger.Warn("failed to persist rejected nonce", slog.String("error", err.Error()))
	}
}

// publish feeds committed state into the index and metrics. Failures here
// never undo the commit; the index can be rebuilt from state.
func (n *Node) publish(ctx context.Context, touched []*escrow.Escrow, published []*types.Event) {
	for _, evt := range published {
		observability.Events().RecordEvent(evt.Type)
	}
	if n.index == nil {
		return
	}
	for _, esc := range touched {
		if err := n.index.Record(ctx, esc); err != nil {
			n.logger.Warn("index escrow failed", slog.String("error", err.Error()))
		}
	}
	for _, evt := range published {
		if err := n.index.RecordEvent(ctx, *evt); err != nil {
			n.logger.Warn("index event failed", slog.Uint64("sequence", evt.Sequence), slog.String("error", err.Error()))
		}
	}
}

// RebuildIndex re-projects every stored escrow into the index and replays the
// committed events the index has not seen yet. It returns the number of
// escrows projected.
func (n *Node) RebuildIndex(ctx context.Context) (int, error) {
	if n.index == nil {
		return 0, nil
	}
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	reader := n.reader()
	count, err := n.index.Rebuild(ctx, reader.Escrows)
	if err != nil {
		return count, err
	}
	after, err := n.index.LastSequence(ctx)
	if err != nil {
		return count, fmt.Errorf("core: index last sequence: %w", err)
	}
	replayed := 0
	for {
		page, err := reader.Events(after, eventReplayPage)
		if err != nil {
			return count, err
		}
		if len(page) == 0 {
			break
		}
		for _, evt := range page {
			if err := n.index.RecordEvent(ctx, evt); err != nil {
				return count, fmt.Errorf("core: replay event %d: %w", evt.Sequence, err)
			}
			after = evt.Sequence
			replayed++
		}
	}
	if replayed > 0 {
		n.logger.Info("index caught up with event log", slog.Int("events", replayed), slog.Uint64("last_sequence", after))
	}
	return count, nil
}

func (n *Node) reader() *nhbstate.Manager {
	return nhbstate.NewManager(n.db)
}
