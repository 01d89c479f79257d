package orders

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/HexCommunity/solo/pkg/util"
)

// Config carries the engine's deployment-time parameters.
type Config struct {
	ChainID         *big.Int
	ContractAddress common.Address // verifying contract in the typed-hash domain
	Owner           common.Address // may toggle the operational flag
	LedgerCaller    common.Address // trusted caller for fills and delegated calls
}

// Engine validates signed canonical orders against fills proposed by the
// margin ledger and keeps the per-order fill accounting.
//
// Every external call runs under one exclusive lock and mutates state only
// after all checks pass, so a rejection leaves no partial state behind.
type Engine struct {
	mu     sync.Mutex
	cfg    Config
	hasher *Hasher
	store  *StateStore
	ledger Ledger
	clock  util.Clock
	logger *zap.Logger
	feed   *Feed

	active bool

	// stagedArgs is the transient trade-args slot: written by a delegated
	// call, consumed (and cleared) by the next successful fill whose inline
	// price is zero.
	stagedArgs *TradeArgs
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithClock overrides the wall clock, for expiry tests.
func WithClock(c util.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// NewEngine creates an engine in the active state.
func NewEngine(cfg Config, store *StateStore, ledger Ledger, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		cfg:    cfg,
		hasher: NewHasher(cfg.ChainID, cfg.ContractAddress),
		store:  store,
		ledger: ledger,
		clock:  util.RealClock{},
		logger: logger,
		feed:   NewFeed(),
		active: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Events returns the engine's event feed.
func (e *Engine) Events() *Feed { return e.feed }

// Hasher returns the engine's typed-hash engine, shared with clients that
// need to compute order identifiers.
func (e *Engine) Hasher() *Hasher { return e.hasher }

// Operational reports whether fills are currently allowed.
func (e *Engine) Operational() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// ShutDown disables all fills. Owner only.
func (e *Engine) ShutDown(caller common.Address) error {
	return e.setOperational(caller, false)
}

// StartUp re-enables fills. Owner only.
func (e *Engine) StartUp(caller common.Address) error {
	return e.setOperational(caller, true)
}

func (e *Engine) setOperational(caller common.Address, active bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.cfg.Owner {
		return fmt.Errorf("%w: caller %s is not the owner", ErrUnauthorized, caller.Hex())
	}

	e.active = active
	e.feed.Publish(StatusSetEvent{Active: active})
	e.logger.Info("operational status set", zap.Bool("active", active))
	return nil
}

// GetOrderStates returns the lifecycle state for a batch of order
// identifiers. Unreferenced orders report Null/0.
func (e *Engine) GetOrderStates(hashes []common.Hash) ([]OrderState, error) {
	return e.store.States(hashes)
}

// Approve marks an order fillable without a fresh signature on each fill.
// The caller must be the order's maker. Fails on canceled orders; idempotent
// when already approved.
func (e *Engine) Approve(caller common.Address, order *Order) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.approveLocked(caller, order)
}

// Cancel unconditionally marks an order canceled. The caller must be the
// order's maker. Idempotent; canceling an approved or already-canceled order
// simply re-asserts Canceled.
func (e *Engine) Cancel(caller common.Address, order *Order) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelLocked(caller, order)
}

func (e *Engine) approveLocked(caller common.Address, order *Order) error {
	if caller != order.MakerAccountOwner {
		return fmt.Errorf("%w: caller %s is not the order maker", ErrUnauthorized, caller.Hex())
	}

	hash, err := e.hasher.HashOrder(order)
	if err != nil {
		return err
	}

	state, err := e.store.State(hash)
	if err != nil {
		return fmt.Errorf("order %s: %w", hash.Hex(), err)
	}
	if state.Status == StatusCanceled {
		return rejectOrderf(ErrOrderCanceled, hash, "cannot approve a canceled order")
	}
	if err := e.store.SetStatus(hash, StatusApproved); err != nil {
		return err
	}

	e.feed.Publish(OrderApprovedEvent{
		Hash:        hash,
		Maker:       order.MakerAccountOwner,
		BaseMarket:  order.BaseMarket,
		QuoteMarket: order.QuoteMarket,
	})
	e.logger.Info("order approved",
		zap.String("hash", hash.Hex()),
		zap.String("maker", order.MakerAccountOwner.Hex()))
	return nil
}

func (e *Engine) cancelLocked(caller common.Address, order *Order) error {
	if caller != order.MakerAccountOwner {
		return fmt.Errorf("%w: caller %s is not the order maker", ErrUnauthorized, caller.Hex())
	}

	hash, err := e.hasher.HashOrder(order)
	if err != nil {
		return err
	}

	if err := e.store.SetStatus(hash, StatusCanceled); err != nil {
		return err
	}

	e.feed.Publish(OrderCanceledEvent{
		Hash:        hash,
		Maker:       order.MakerAccountOwner,
		BaseMarket:  order.BaseMarket,
		QuoteMarket: order.QuoteMarket,
	})
	e.logger.Info("order canceled",
		zap.String("hash", hash.Hex()),
		zap.String("maker", order.MakerAccountOwner.Hex()))
	return nil
}

// DelegatedCall dispatches an approve, cancel, or set-trade-args operation
// invoked through the trusted ledger caller, with the maker identity
// asserted by the ledger as sender. This lets a maker batch order management
// with other ledger operations in one request.
func (e *Engine) DelegatedCall(caller common.Address, sender Account, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.cfg.LedgerCaller {
		return fmt.Errorf("%w: caller %s is not the trusted ledger", ErrUnauthorized, caller.Hex())
	}

	call, err := DecodeCall(data)
	if err != nil {
		return err
	}

	switch call.Tag {
	case CallApprove:
		return e.approveLocked(sender.Owner, call.Order)
	case CallCancel:
		return e.cancelLocked(sender.Owner, call.Order)
	case CallSetTradeArgs:
		e.stagedArgs = call.Args
		return nil
	default:
		return fmt.Errorf("%w: unknown delegated call tag %d", ErrDecode, call.Tag)
	}
}

// Fill validates one fill attempt against a signed order and records the
// consumed amount. Callable only by the trusted ledger caller. On success it
// returns the signed output-market delta to apply to the maker's account;
// the sign is always opposite the input delta's.
func (e *Engine) Fill(caller common.Address, req FillRequest) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.cfg.LedgerCaller {
		return nil, fmt.Errorf("%w: caller %s is not the trusted ledger", ErrUnauthorized, caller.Hex())
	}

	// 1. Operational gate
	if !e.active {
		return nil, ErrModuleInactive
	}

	// 2. Decode order, trade args, optional signature
	order, args, sig, err := DecodeFill(req.Data)
	if err != nil {
		return nil, err
	}

	hash, err := e.hasher.HashOrder(&order)
	if err != nil {
		return nil, err
	}
	info := OrderInfo{Order: order, Args: args, Hash: hash}

	// Zero inline price: consume the transient trade-args staging slot. The
	// slot is only cleared on commit so a rejected fill leaves it intact.
	consumedStaged := false
	if info.Args.Price.Sign() == 0 {
		if e.stagedArgs != nil {
			info.Args = *e.stagedArgs
			consumedStaged = true
		}
		if info.Args.Price.Sign() == 0 {
			return nil, rejectOrderf(ErrStaleTradeArgs, hash, "resolved trade price is zero")
		}
	}

	// 3. Identity and authorization
	state, err := e.store.State(hash)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", hash.Hex(), err)
	}
	switch state.Status {
	case StatusCanceled:
		return nil, rejectOrder(ErrOrderCanceled, hash)
	case StatusNull:
		if sig == nil {
			return nil, rejectOrderf(ErrInvalidSignature, hash, "order is not approved and carries no signature")
		}
		signer, err := sig.Recover(hash)
		if err != nil {
			return nil, rejectOrderf(ErrInvalidSignature, hash, "%v", err)
		}
		if signer != info.Order.MakerAccountOwner {
			return nil, rejectOrderf(ErrInvalidSignature, hash,
				"recovered signer %s is not the maker", signer.Hex())
		}
	case StatusApproved:
		// Signature check skipped
	}

	// Business rules
	if err := e.validateFill(&info, req); err != nil {
		return nil, err
	}

	// Fill accounting
	inputIsBase := info.Order.BaseMarket.Cmp(req.InputMarket) == 0
	inputWei := new(big.Int).Abs(req.InputDelta)

	result, err := computeFill(&info.Order, &info.Args, inputIsBase, inputWei)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", hash.Hex(), err)
	}

	newTotal := new(big.Int).Add(state.FilledAmount, result.FillAmount)
	if newTotal.Cmp(info.Order.Amount) > 0 {
		return nil, rejectOrderf(ErrOverfill, hash, "%s + %s > %s",
			state.FilledAmount, result.FillAmount, info.Order.Amount)
	}

	// 11. Decrease-only guard, after the output amount is known
	if info.Order.Flags.IsDecreaseOnly {
		if err := e.checkDecreaseOnly(&info, req, result.OutputAmount); err != nil {
			return nil, err
		}
	}

	// Commit: persist the fill, consume the staged trade args, emit.
	if _, err := e.store.RecordFill(hash, result.FillAmount, info.Order.Amount); err != nil {
		return nil, rejectOrderf(ErrOverfill, hash, "%v", err)
	}
	if consumedStaged {
		e.stagedArgs = nil
	}

	e.feed.Publish(OrderFilledEvent{
		Hash:          hash,
		Maker:         info.Order.MakerAccountOwner,
		FillAmount:    result.FillAmount,
		TotalFilled:   newTotal,
		Price:         info.Args.Price,
		Fee:           info.Args.Fee,
		IsNegativeFee: info.Args.IsNegativeFee,
	})
	e.logger.Info("order filled",
		zap.String("hash", hash.Hex()),
		zap.String("maker", info.Order.MakerAccountOwner.Hex()),
		zap.String("fillAmount", result.FillAmount.String()),
		zap.String("totalFilled", newTotal.String()),
		zap.String("price", info.Args.Price.String()),
		zap.String("fee", info.Args.Fee.String()),
		zap.Bool("isNegativeFee", info.Args.IsNegativeFee))

	// The maker's balance moves opposite to the counterparty's.
	output := new(big.Int).Set(result.OutputAmount)
	if req.InputDelta.Sign() > 0 {
		output.Neg(output)
	}
	return output, nil
}

// validateFill enforces the per-fill business rules: price and fee bounds,
// trigger, expiry, account and taker identity, market orientation, and the
// input direction.
func (e *Engine) validateFill(info *OrderInfo, req FillRequest) error {
	order := &info.Order
	args := &info.Args
	hash := info.Hash

	// 4. Price admissibility
	if order.Flags.IsBuy {
		if args.Price.Cmp(order.LimitPrice) > 0 {
			return rejectOrderf(ErrPriceOutOfBounds, hash, "buy price %s > limit %s", args.Price, order.LimitPrice)
		}
	} else {
		if args.Price.Cmp(order.LimitPrice) < 0 {
			return rejectOrderf(ErrPriceOutOfBounds, hash, "sell price %s < limit %s", args.Price, order.LimitPrice)
		}
	}

	// 4. Fee admissibility. An order demanding a negative fee needs at least
	// that much rebate; otherwise any negative fee or a small enough
	// positive fee is acceptable.
	if order.Flags.IsNegativeFee {
		if !args.IsNegativeFee || args.Fee.Cmp(order.LimitFee) < 0 {
			return rejectOrderf(ErrFeeOutOfBounds, hash, "fee %s (negative=%v) below required rebate %s",
				args.Fee, args.IsNegativeFee, order.LimitFee)
		}
	} else {
		if !args.IsNegativeFee && args.Fee.Cmp(order.LimitFee) > 0 {
			return rejectOrderf(ErrFeeOutOfBounds, hash, "fee %s > limit %s", args.Fee, order.LimitFee)
		}
	}

	// 5. Trigger price
	if order.TriggerPrice.Sign() > 0 {
		current, err := ratioPrice(e.ledger, order.BaseMarket, order.QuoteMarket)
		if err != nil {
			return fmt.Errorf("order %s: %w", hash.Hex(), err)
		}
		if order.Flags.IsBuy {
			if current.Cmp(order.TriggerPrice) < 0 {
				return rejectOrderf(ErrNotTriggered, hash, "current %s < trigger %s", current, order.TriggerPrice)
			}
		} else {
			if current.Cmp(order.TriggerPrice) > 0 {
				return rejectOrderf(ErrNotTriggered, hash, "current %s > trigger %s", current, order.TriggerPrice)
			}
		}
	}

	// 6. Expiry
	if order.Expiration.Sign() != 0 {
		now := big.NewInt(e.clock.Now().Unix())
		if order.Expiration.Cmp(now) < 0 {
			return rejectOrderf(ErrExpired, hash, "expired at %s, now %s", order.Expiration, now)
		}
	}

	// 7. Maker account match
	maker := Account{Owner: order.MakerAccountOwner, Number: order.MakerAccountNumber}
	if !req.MakerAccount.Equals(maker) {
		return rejectOrder(ErrAccountMismatch, hash)
	}

	// 8. Counterparty restriction
	if order.Taker != (common.Address{}) && order.Taker != req.TakerAccount.Owner {
		return rejectOrderf(ErrTakerMismatch, hash, "restricted to %s, got %s",
			order.Taker.Hex(), req.TakerAccount.Owner.Hex())
	}

	// 9. Market correspondence, either orientation
	straight := req.InputMarket.Cmp(order.BaseMarket) == 0 && req.OutputMarket.Cmp(order.QuoteMarket) == 0
	flipped := req.InputMarket.Cmp(order.QuoteMarket) == 0 && req.OutputMarket.Cmp(order.BaseMarket) == 0
	if !straight && !flipped {
		return rejectOrder(ErrMarketMismatch, hash)
	}

	// 10. Direction and sign consistency
	if req.InputDelta.Sign() == 0 {
		return rejectOrder(ErrZeroInput, hash)
	}
	positiveInput := req.InputDelta.Sign() > 0
	if positiveInput != (straight == order.Flags.IsBuy) {
		return rejectOrder(ErrDirectionMismatch, hash)
	}

	return nil
}

// checkDecreaseOnly enforces the decrease-only constraint on both legs.
// The output-market balance is read from the ledger before this fill's
// effect and compared against the computed output magnitude; this exact
// evaluation order defines acceptance at the margin and must not change.
func (e *Engine) checkDecreaseOnly(info *OrderInfo, req FillRequest, outputAmount *big.Int) error {
	hash := info.Hash

	// Input market: the new balance is zero, or keeps its sign with a
	// magnitude no larger than before.
	newAbs := new(big.Int).Abs(req.NewInputWei)
	oldAbs := new(big.Int).Abs(req.OldInputWei)
	inputOK := req.NewInputWei.Sign() == 0 ||
		(newAbs.Cmp(oldAbs) <= 0 && req.NewInputWei.Sign() == req.OldInputWei.Sign())
	if !inputOK {
		return rejectOrderf(ErrDecreaseViolation, hash, "input balance %s -> %s grows the position",
			req.OldInputWei, req.NewInputWei)
	}

	// Output market: the delta may only move the pre-fill position toward
	// zero, never past it or away from it.
	if outputAmount.Sign() == 0 {
		return nil
	}
	balance, err := e.ledger.GetAccountWei(req.MakerAccount, req.OutputMarket)
	if err != nil {
		return fmt.Errorf("order %s: failed to get output balance: %w", hash.Hex(), err)
	}

	outputPositive := req.InputDelta.Sign() < 0 // output sign is opposite the input's
	balanceAbs := new(big.Int).Abs(balance)
	outputOK := outputAmount.Cmp(balanceAbs) <= 0 &&
		balance.Sign() != 0 &&
		outputPositive != (balance.Sign() > 0)
	if !outputOK {
		return rejectOrderf(ErrDecreaseViolation, hash, "output delta %s against balance %s grows the position",
			outputAmount, balance)
	}
	return nil
}
