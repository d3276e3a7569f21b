package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"minidex/internal/amm"
	"minidex/internal/exchange"
	"minidex/internal/metrics"
	"minidex/internal/model"
	"minidex/internal/storage"
)

// RunConfig holds runtime settings for a simulation run.
type RunConfig struct {
	InputPath         string
	BatchSize         uint64
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	Namespace         common.Address
	// Initial seeds the exchange when no checkpoint exists.
	Initial *exchange.Snapshot
}

// Runner replays an operation script against an exchange and writes the
// resulting events to storage.
type Runner struct {
	cfg        RunConfig
	storage    storage.Storage
	recorder   *metrics.Recorder
	logger     *zap.Logger
	seen       map[uint64]struct{}
	firstSeen  map[string]FirstSeen
	checkpoint *CheckpointStore
	exchange   *exchange.Exchange
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, storageSink storage.Storage, recorder *metrics.Recorder, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		storage:    storageSink,
		recorder:   recorder,
		logger:     logger,
		seen:       make(map[uint64]struct{}),
		firstSeen:  make(map[string]FirstSeen),
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
	}
}

// Exchange returns the exchange of the last run, or nil before Run.
func (r *Runner) Exchange() *exchange.Exchange {
	return r.exchange
}

// Run executes the simulation loop.
func (r *Runner) Run(ctx context.Context) error {
	if r.storage == nil {
		return fmt.Errorf("storage is nil")
	}
	if r.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}

	exCfg := exchange.Config{Namespace: r.cfg.Namespace}
	var lastSeq uint64
	r.exchange = exchange.New(exCfg, nil, r.recorder, r.logger)

	cp, ok, err := r.checkpoint.Load()
	if err != nil {
		return err
	}
	if ok {
		restored, err := exchange.Restore(exCfg, cp.State, r.recorder, r.logger)
		if err != nil {
			return fmt.Errorf("restore checkpoint state: %w", err)
		}
		r.exchange = restored
		lastSeq = cp.LastProcessedSeq
		for pool, fs := range cp.FirstSeen {
			r.firstSeen[pool] = fs
		}
		r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", lastSeq), zap.Int("pools", len(cp.State.Pools)))
	} else if r.cfg.Initial != nil {
		seeded, err := exchange.Restore(exCfg, *r.cfg.Initial, r.recorder, r.logger)
		if err != nil {
			return fmt.Errorf("restore initial state: %w", err)
		}
		r.exchange = seeded
		r.logger.Info("start from initial state", zap.Int("pools", len(r.cfg.Initial.Pools)))
	}

	ops, err := ReadOperations(r.cfg.InputPath)
	if err != nil {
		return err
	}
	pending := ops[:0:0]
	for _, op := range ops {
		if ok && op.Seq <= lastSeq {
			continue
		}
		pending = append(pending, op)
	}
	if len(pending) == 0 {
		r.logger.Info("nothing to run", zap.Int("operations", len(ops)), zap.Uint64("last_processed", lastSeq))
		return nil
	}

	spans, err := SplitRange(0, uint64(len(pending)-1), r.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, span := range spans {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch := pending[span.From : span.To+1]
		ingestedAt := time.Now().UTC()
		events := make([]model.EventRecord, 0, len(batch))
		var rejections []model.Rejection
		for _, op := range batch {
			if r.isDuplicate(op.Seq) {
				r.logger.Warn("duplicate seq skipped", zap.Uint64("seq", op.Seq))
				continue
			}
			event, rejection := r.apply(op, ingestedAt)
			if rejection != nil {
				rejections = append(rejections, *rejection)
				continue
			}
			events = append(events, *event)
		}

		if err := r.store(ctx, events, rejections); err != nil {
			return err
		}

		last := batch[len(batch)-1].Seq
		if err := r.checkpoint.Save(last, r.exchange.Snapshot(), r.firstSeen); err != nil {
			return err
		}

		r.logger.Info("batch complete",
			zap.Int("events", len(events)),
			zap.Int("rejected", len(rejections)),
			zap.Uint64("from_seq", batch[0].Seq),
			zap.Uint64("to_seq", last),
		)
	}

	return nil
}

// store writes one batch to every sink. Each sink is retried on its own, so
// a sink that already accepted the batch is not written twice.
func (r *Runner) store(ctx context.Context, events []model.EventRecord, rejections []model.Rejection) error {
	var errs error
	for i, sink := range storage.Sinks(r.storage) {
		sink := sink
		err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
			err := sink.PutEventBatch(ctx, events)
			if err != nil {
				r.logger.Warn("store events failed", zap.Error(err), zap.Int("sink", i), zap.Int("events", len(events)))
			}
			return err
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("store events: %w", err))
			continue
		}

		err = withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
			err := sink.PutRejectionBatch(ctx, rejections)
			if err != nil {
				r.logger.Warn("store rejections failed", zap.Error(err), zap.Int("sink", i), zap.Int("rejections", len(rejections)))
			}
			return err
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("store rejections: %w", err))
		}
	}
	return errs
}

func (r *Runner) isDuplicate(seq uint64) bool {
	if _, ok := r.seen[seq]; ok {
		return true
	}
	r.seen[seq] = struct{}{}
	return false
}

// apply executes one operation and returns either its event or its
// rejection.
func (r *Runner) apply(op model.Operation, ingestedAt time.Time) (*model.EventRecord, *model.Rejection) {
	ts := op.Timestamp
	if ts == 0 {
		ts = uint64(ingestedAt.Unix())
	}

	event, err := r.execute(op)
	if err != nil {
		code, class := exchange.Classify(err)
		if code == "Unknown" && errors.Is(err, ErrInvalidOperation) {
			code, class = "InvalidOperation", string(amm.ClassInput)
		}
		return nil, &model.Rejection{
			Seq:       op.Seq,
			Timestamp: ts,
			Op:        op.Op,
			Pool:      op.Pool,
			Actor:     op.Actor,
			Code:      code,
			Class:     class,
			Error:     err.Error(),
		}
	}

	event.Seq = op.Seq
	event.Timestamp = ts
	event.IngestedAt = ingestedAt.Format(time.RFC3339Nano)
	if event.Kind == model.EventPoolCreated {
		r.firstSeen[event.Pool] = FirstSeen{Seq: event.Seq, Timestamp: ts}
	}
	return &event, nil
}

// PoolRecords lists the exchange's pools. First-seen fields are zero for
// pools that came from an initial snapshot rather than a create_pool
// operation.
func (r *Runner) PoolRecords() []model.PoolRecord {
	if r.exchange == nil {
		return nil
	}
	pools := r.exchange.Pools()
	out := make([]model.PoolRecord, 0, len(pools))
	for _, p := range pools {
		addr := p.Address.Hex()
		fs := r.firstSeen[addr]
		out = append(out, model.PoolRecord{
			Address:      addr,
			TokenA:       p.TokenA.Hex(),
			TokenB:       p.TokenB.Hex(),
			FeeRateBps:   p.FeeRateBps,
			FirstSeenSeq: fs.Seq,
			FirstSeenTS:  fs.Timestamp,
		})
	}
	return out
}

func (r *Runner) execute(op model.Operation) (model.EventRecord, error) {
	ex := r.exchange
	actor, err := ParseAddress("actor", op.Actor)
	if err != nil {
		return model.EventRecord{}, err
	}

	switch op.Op {
	case model.OpCredit:
		token, err := ParseAddress("token", op.Token)
		if err != nil {
			return model.EventRecord{}, err
		}
		if err := ex.Credit(token, actor, op.Amount); err != nil {
			return model.EventRecord{}, err
		}
		return model.EventRecord{Kind: model.EventCredit, Actor: actor.Hex(), Token: token.Hex(), Amount: op.Amount}, nil

	case model.OpCreatePool:
		tokenA, err := ParseAddress("token_a", op.TokenA)
		if err != nil {
			return model.EventRecord{}, err
		}
		tokenB, err := ParseAddress("token_b", op.TokenB)
		if err != nil {
			return model.EventRecord{}, err
		}
		pool, err := ex.CreatePool(actor, tokenA, tokenB, op.FeeRateBps)
		if err != nil {
			return model.EventRecord{}, err
		}
		return poolEvent(model.EventPoolCreated, actor, pool), nil

	case model.OpAddLiquidity:
		addr, err := r.resolvePool(op)
		if err != nil {
			return model.EventRecord{}, err
		}
		pool, res, err := ex.AddLiquidity(addr, amm.AddLiquidityParams{
			Provider:    actor,
			AmountA:     op.AmountA,
			AmountB:     op.AmountB,
			MinLPTokens: op.MinLPTokens,
		})
		if err != nil {
			return model.EventRecord{}, err
		}
		ev := poolEvent(model.EventLiquidityAdded, actor, pool)
		ev.AmountA, ev.AmountB, ev.LPTokens = op.AmountA, op.AmountB, res.LPMinted
		return ev, nil

	case model.OpRemoveLiquidity:
		addr, err := r.resolvePool(op)
		if err != nil {
			return model.EventRecord{}, err
		}
		pool, res, err := ex.RemoveLiquidity(addr, amm.RemoveLiquidityParams{
			Provider:   actor,
			LPTokens:   op.LPTokens,
			MinAmountA: op.MinAmountA,
			MinAmountB: op.MinAmountB,
		})
		if err != nil {
			return model.EventRecord{}, err
		}
		ev := poolEvent(model.EventLiquidityRemoved, actor, pool)
		ev.AmountA, ev.AmountB, ev.LPTokens = res.AmountA, res.AmountB, op.LPTokens
		return ev, nil

	case model.OpSwap:
		addr, err := r.resolvePool(op)
		if err != nil {
			return model.EventRecord{}, err
		}
		dir, err := amm.ParseDirection(op.Direction)
		if err != nil {
			return model.EventRecord{}, err
		}
		pool, res, err := ex.Swap(addr, amm.SwapParams{
			Trader:       actor,
			AmountIn:     op.Amount,
			MinAmountOut: op.MinAmountOut,
			Direction:    dir,
		})
		if err != nil {
			return model.EventRecord{}, err
		}
		ev := poolEvent(model.EventSwap, actor, pool)
		ev.Direction = dir.String()
		ev.AmountIn, ev.AmountOut, ev.Fee = op.Amount, res.AmountOut, res.Fee
		return ev, nil

	default:
		return model.EventRecord{}, fmt.Errorf("%w: unknown op %q", ErrInvalidOperation, op.Op)
	}
}

func (r *Runner) resolvePool(op model.Operation) (common.Address, error) {
	if op.Pool != "" {
		return ParseAddress("pool", op.Pool)
	}
	tokenA, err := ParseAddress("token_a", op.TokenA)
	if err != nil {
		return common.Address{}, err
	}
	tokenB, err := ParseAddress("token_b", op.TokenB)
	if err != nil {
		return common.Address{}, err
	}
	return r.exchange.PoolFor(tokenA, tokenB)
}

func poolEvent(kind model.EventKind, actor common.Address, pool amm.Pool) model.EventRecord {
	return model.EventRecord{
		Kind:          kind,
		Pool:          pool.Address.Hex(),
		Actor:         actor.Hex(),
		TokenA:        pool.TokenA.Hex(),
		TokenB:        pool.TokenB.Hex(),
		FeeRateBps:    pool.FeeRateBps,
		ReserveA:      pool.ReserveA,
		ReserveB:      pool.ReserveB,
		TotalLPSupply: pool.TotalLPSupply,
	}
}
