package orders

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/HexCommunity/solo/pkg/crypto"
	"github.com/HexCommunity/solo/pkg/util"
)

var (
	testOwner        = common.HexToAddress("0x00000000000000000000000000000000000000AA")
	testLedgerCaller = common.HexToAddress("0x00000000000000000000000000000000000000BB")
	testTaker        = common.HexToAddress("0x00000000000000000000000000000000000000CC")
)

type harness struct {
	t      *testing.T
	engine *Engine
	ledger *StaticLedger
	store  *StateStore
	signer *crypto.Signer
	clock  *util.FakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	signer, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	store := NewStateStore()
	ledger := NewStaticLedger()
	clock := util.NewFakeClock(time.Unix(1_700_000_000, 0))

	engine := NewEngine(Config{
		ChainID:         big.NewInt(1337),
		ContractAddress: common.Address{},
		Owner:           testOwner,
		LedgerCaller:    testLedgerCaller,
	}, store, ledger, zap.NewNop(), WithClock(clock))

	return &harness{t: t, engine: engine, ledger: ledger, store: store, signer: signer, clock: clock}
}

func (h *harness) maker() common.Address { return h.signer.Address() }

// newOrder builds a buy order for 100 base at a limit of 2 quote per base,
// fee limit 1%, no trigger, no expiry, open taker.
func (h *harness) newOrder(mods ...func(*Order)) *Order {
	order := &Order{
		Flags:              OrderFlags{Salt: big.NewInt(12345), IsBuy: true},
		BaseMarket:         big.NewInt(0),
		QuoteMarket:        big.NewInt(1),
		Amount:             big.NewInt(100),
		LimitPrice:         price(2),
		TriggerPrice:       new(big.Int),
		LimitFee:           new(big.Int).Div(PriceBase, big.NewInt(100)),
		MakerAccountOwner:  h.maker(),
		MakerAccountNumber: new(big.Int),
		Expiration:         new(big.Int),
	}
	for _, mod := range mods {
		mod(order)
	}
	return order
}

func (h *harness) state(order *Order) OrderState {
	h.t.Helper()
	state, err := h.store.State(h.orderHash(order))
	if err != nil {
		h.t.Fatalf("failed to read order state: %v", err)
	}
	return state
}

func (h *harness) orderHash(order *Order) common.Hash {
	h.t.Helper()
	hash, err := h.engine.Hasher().HashOrder(order)
	if err != nil {
		h.t.Fatalf("failed to hash order: %v", err)
	}
	return hash
}

func (h *harness) signedData(order *Order, args *TradeArgs) []byte {
	h.t.Helper()
	sig, err := crypto.SignTyped(h.signer, h.orderHash(order), crypto.SigTypeDecimal)
	if err != nil {
		h.t.Fatalf("failed to sign order: %v", err)
	}
	return EncodeFill(order, args, sig)
}

func defaultArgs() *TradeArgs {
	return &TradeArgs{Price: price(2), Fee: new(big.Int)}
}

// quoteInputRequest proposes a fill with the quote asset as input. For a buy
// order the maker receives quote, so the input delta is negative.
func (h *harness) quoteInputRequest(order *Order, data []byte, inputDelta int64) FillRequest {
	return FillRequest{
		InputMarket:  order.QuoteMarket,
		OutputMarket: order.BaseMarket,
		MakerAccount: Account{Owner: order.MakerAccountOwner, Number: new(big.Int).Set(order.MakerAccountNumber)},
		TakerAccount: Account{Owner: testTaker, Number: new(big.Int)},
		OldInputWei:  big.NewInt(-100),
		NewInputWei:  big.NewInt(-50),
		InputDelta:   big.NewInt(inputDelta),
		Data:         data,
	}
}

func (h *harness) fill(req FillRequest) (*big.Int, error) {
	return h.engine.Fill(testLedgerCaller, req)
}

func TestFillQuoteInputScenario(t *testing.T) {
	h := newHarness(t)
	order := h.newOrder()
	data := h.signedData(order, defaultArgs())

	events, cancel := h.engine.Events().Subscribe(4)
	defer cancel()

	// 50 quote at price 2 buys 25 base
	output, err := h.fill(h.quoteInputRequest(order, data, -50))
	if err != nil {
		t.Fatalf("fill failed: %v", err)
	}
	if output.Cmp(big.NewInt(25)) != 0 {
		t.Errorf("output = %s, want 25", output)
	}

	state := h.state(order)
	if state.FilledAmount.Cmp(big.NewInt(25)) != 0 {
		t.Errorf("filled = %s, want 25", state.FilledAmount)
	}

	select {
	case ev := <-events:
		filled, ok := ev.(OrderFilledEvent)
		if !ok {
			t.Fatalf("event type = %T, want OrderFilledEvent", ev)
		}
		if filled.FillAmount.Cmp(big.NewInt(25)) != 0 || filled.TotalFilled.Cmp(big.NewInt(25)) != 0 {
			t.Errorf("event amounts = %s/%s, want 25/25", filled.FillAmount, filled.TotalFilled)
		}
		if filled.Maker != h.maker() {
			t.Errorf("event maker = %s, want %s", filled.Maker.Hex(), h.maker().Hex())
		}
	default:
		t.Error("no fill event emitted")
	}
}

func TestFillOverfillLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t)
	order := h.newOrder()
	data := h.signedData(order, defaultArgs())

	if _, err := h.fill(h.quoteInputRequest(order, data, -50)); err != nil {
		t.Fatalf("first fill failed: %v", err)
	}

	// 160 quote would fill 80 more; 25 + 80 > 100
	if _, err := h.fill(h.quoteInputRequest(order, data, -160)); !errors.Is(err, ErrOverfill) {
		t.Errorf("got %v, want ErrOverfill", err)
	}

	state := h.state(order)
	if state.FilledAmount.Cmp(big.NewInt(25)) != 0 {
		t.Errorf("filled after rejected fill = %s, want 25", state.FilledAmount)
	}
}

func TestFillBaseInputCountsFullInput(t *testing.T) {
	h := newHarness(t)
	order := h.newOrder()
	data := h.signedData(order, defaultArgs())

	req := h.quoteInputRequest(order, data, 10)
	req.InputMarket = order.BaseMarket
	req.OutputMarket = order.QuoteMarket

	output, err := h.fill(req)
	if err != nil {
		t.Fatalf("fill failed: %v", err)
	}
	// 10 base at price 2 owes 20 quote, negated against the positive input
	if output.Cmp(big.NewInt(-20)) != 0 {
		t.Errorf("output = %s, want -20", output)
	}

	state := h.state(order)
	if state.FilledAmount.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("filled = %s, want 10", state.FilledAmount)
	}
}

func TestPriceSymmetry(t *testing.T) {
	h := newHarness(t)

	// Buy at exactly the limit succeeds
	buy := h.newOrder()
	if _, err := h.fill(h.quoteInputRequest(buy, h.signedData(buy, defaultArgs()), -50)); err != nil {
		t.Errorf("buy at limit failed: %v", err)
	}

	// One above the limit fails
	buy2 := h.newOrder(func(o *Order) { o.Flags.Salt = big.NewInt(2) })
	args := defaultArgs()
	args.Price = new(big.Int).Add(price(2), big.NewInt(1))
	if _, err := h.fill(h.quoteInputRequest(buy2, h.signedData(buy2, args), -50)); !errors.Is(err, ErrPriceOutOfBounds) {
		t.Errorf("got %v, want ErrPriceOutOfBounds", err)
	}

	// Sell at exactly the limit succeeds; one below fails
	sell := h.newOrder(func(o *Order) { o.Flags.IsBuy = false; o.Flags.Salt = big.NewInt(3) })
	if _, err := h.fill(h.quoteInputRequest(sell, h.signedData(sell, defaultArgs()), 50)); err != nil {
		t.Errorf("sell at limit failed: %v", err)
	}

	sell2 := h.newOrder(func(o *Order) { o.Flags.IsBuy = false; o.Flags.Salt = big.NewInt(4) })
	args = defaultArgs()
	args.Price = new(big.Int).Sub(price(2), big.NewInt(1))
	if _, err := h.fill(h.quoteInputRequest(sell2, h.signedData(sell2, args), 50)); !errors.Is(err, ErrPriceOutOfBounds) {
		t.Errorf("got %v, want ErrPriceOutOfBounds", err)
	}
}

func TestFeeBounds(t *testing.T) {
	h := newHarness(t)
	twoPercent := new(big.Int).Div(PriceBase, big.NewInt(50))
	halfPercent := new(big.Int).Div(PriceBase, big.NewInt(200))

	// Positive fee above the limit fails
	order := h.newOrder()
	args := defaultArgs()
	args.Fee = twoPercent
	if _, err := h.fill(h.quoteInputRequest(order, h.signedData(order, args), -50)); !errors.Is(err, ErrFeeOutOfBounds) {
		t.Errorf("got %v, want ErrFeeOutOfBounds", err)
	}

	// A negative fee of any size satisfies a non-negative-fee order
	order2 := h.newOrder(func(o *Order) { o.Flags.Salt = big.NewInt(2) })
	args = defaultArgs()
	args.Fee = twoPercent
	args.IsNegativeFee = true
	if _, err := h.fill(h.quoteInputRequest(order2, h.signedData(order2, args), -50)); err != nil {
		t.Errorf("negative fee rejected: %v", err)
	}

	// An order demanding a rebate rejects positive fees outright
	demanding := h.newOrder(func(o *Order) { o.Flags.IsNegativeFee = true; o.Flags.Salt = big.NewInt(3) })
	args = defaultArgs()
	if _, err := h.fill(h.quoteInputRequest(demanding, h.signedData(demanding, args), -50)); !errors.Is(err, ErrFeeOutOfBounds) {
		t.Errorf("got %v, want ErrFeeOutOfBounds", err)
	}

	// ... and rebates smaller than its limit
	demanding2 := h.newOrder(func(o *Order) { o.Flags.IsNegativeFee = true; o.Flags.Salt = big.NewInt(4) })
	args = defaultArgs()
	args.Fee = halfPercent
	args.IsNegativeFee = true
	if _, err := h.fill(h.quoteInputRequest(demanding2, h.signedData(demanding2, args), -50)); !errors.Is(err, ErrFeeOutOfBounds) {
		t.Errorf("got %v, want ErrFeeOutOfBounds", err)
	}

	// ... but accepts a rebate at or above the limit
	demanding3 := h.newOrder(func(o *Order) { o.Flags.IsNegativeFee = true; o.Flags.Salt = big.NewInt(5) })
	args = defaultArgs()
	args.Fee = twoPercent
	args.IsNegativeFee = true
	if _, err := h.fill(h.quoteInputRequest(demanding3, h.signedData(demanding3, args), -50)); err != nil {
		t.Errorf("sufficient rebate rejected: %v", err)
	}
}

func TestTriggerPrice(t *testing.T) {
	h := newHarness(t)
	h.ledger.SetMarketPrice(big.NewInt(0), price(2)) // base
	h.ledger.SetMarketPrice(big.NewInt(1), price(1)) // quote; ratio = 2e18

	// Buy triggers when the price rises to the trigger
	buy := h.newOrder(func(o *Order) { o.TriggerPrice = price(3) })
	data := h.signedData(buy, defaultArgs())
	if _, err := h.fill(h.quoteInputRequest(buy, data, -50)); !errors.Is(err, ErrNotTriggered) {
		t.Errorf("got %v, want ErrNotTriggered", err)
	}

	h.ledger.SetMarketPrice(big.NewInt(0), price(3)) // ratio = 3e18
	if _, err := h.fill(h.quoteInputRequest(buy, data, -50)); err != nil {
		t.Errorf("triggered buy failed: %v", err)
	}

	// Sell triggers when the price falls to the trigger
	sell := h.newOrder(func(o *Order) {
		o.Flags.IsBuy = false
		o.Flags.Salt = big.NewInt(2)
		o.TriggerPrice = price(2)
	})
	data = h.signedData(sell, defaultArgs())
	if _, err := h.fill(h.quoteInputRequest(sell, data, 50)); !errors.Is(err, ErrNotTriggered) {
		t.Errorf("got %v, want ErrNotTriggered", err)
	}

	h.ledger.SetMarketPrice(big.NewInt(0), price(2))
	if _, err := h.fill(h.quoteInputRequest(sell, data, 50)); err != nil {
		t.Errorf("triggered sell failed: %v", err)
	}
}

func TestExpiry(t *testing.T) {
	h := newHarness(t)
	now := h.clock.Now().Unix()

	expired := h.newOrder(func(o *Order) { o.Expiration = big.NewInt(now - 1) })
	if _, err := h.fill(h.quoteInputRequest(expired, h.signedData(expired, defaultArgs()), -50)); !errors.Is(err, ErrExpired) {
		t.Errorf("got %v, want ErrExpired", err)
	}

	// Expiration exactly now is still valid
	edge := h.newOrder(func(o *Order) { o.Expiration = big.NewInt(now); o.Flags.Salt = big.NewInt(2) })
	if _, err := h.fill(h.quoteInputRequest(edge, h.signedData(edge, defaultArgs()), -50)); err != nil {
		t.Errorf("fill at expiration boundary failed: %v", err)
	}

	// Zero expiration never expires
	forever := h.newOrder(func(o *Order) { o.Flags.Salt = big.NewInt(3) })
	h.clock.Advance(1000 * time.Hour)
	if _, err := h.fill(h.quoteInputRequest(forever, h.signedData(forever, defaultArgs()), -50)); err != nil {
		t.Errorf("never-expiring order failed: %v", err)
	}
}

func TestSignatureRequiredWhenNull(t *testing.T) {
	h := newHarness(t)
	order := h.newOrder()
	data := EncodeFill(order, defaultArgs(), nil)

	if _, err := h.fill(h.quoteInputRequest(order, data, -50)); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("got %v, want ErrInvalidSignature", err)
	}
}

func TestSignatureWrongSigner(t *testing.T) {
	h := newHarness(t)
	order := h.newOrder()

	other, _ := crypto.GenerateKey()
	sig, err := crypto.SignTyped(other, h.orderHash(order), crypto.SigTypeDecimal)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	data := EncodeFill(order, defaultArgs(), sig)

	if _, err := h.fill(h.quoteInputRequest(order, data, -50)); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("got %v, want ErrInvalidSignature", err)
	}
}

func TestSignatureBitFlipRejected(t *testing.T) {
	h := newHarness(t)
	order := h.newOrder()
	data := h.signedData(order, defaultArgs())
	data[OrderBytes+5] ^= 0x01 // flip one bit of r

	if _, err := h.fill(h.quoteInputRequest(order, data, -50)); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("got %v, want ErrInvalidSignature", err)
	}
}

func TestApproveSkipsSignatureCheck(t *testing.T) {
	h := newHarness(t)
	order := h.newOrder()

	if err := h.engine.Approve(h.maker(), order); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	// Approving again is a no-op
	if err := h.engine.Approve(h.maker(), order); err != nil {
		t.Fatalf("second approve failed: %v", err)
	}

	data := EncodeFill(order, defaultArgs(), nil)
	if _, err := h.fill(h.quoteInputRequest(order, data, -50)); err != nil {
		t.Errorf("unsigned fill of approved order failed: %v", err)
	}
}

func TestCancelIsAbsorbing(t *testing.T) {
	h := newHarness(t)
	order := h.newOrder()
	data := h.signedData(order, defaultArgs())

	if err := h.engine.Cancel(h.maker(), order); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	// Idempotent
	if err := h.engine.Cancel(h.maker(), order); err != nil {
		t.Fatalf("second cancel failed: %v", err)
	}

	if _, err := h.fill(h.quoteInputRequest(order, data, -50)); !errors.Is(err, ErrOrderCanceled) {
		t.Errorf("got %v, want ErrOrderCanceled", err)
	}
	if err := h.engine.Approve(h.maker(), order); !errors.Is(err, ErrOrderCanceled) {
		t.Errorf("approve after cancel: got %v, want ErrOrderCanceled", err)
	}

	// Canceling an approved order still works
	approved := h.newOrder(func(o *Order) { o.Flags.Salt = big.NewInt(2) })
	if err := h.engine.Approve(h.maker(), approved); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if err := h.engine.Cancel(h.maker(), approved); err != nil {
		t.Fatalf("cancel of approved order failed: %v", err)
	}
	if got := h.state(approved).Status; got != StatusCanceled {
		t.Errorf("status = %s, want canceled", got)
	}
}

func TestApproveCancelUnauthorized(t *testing.T) {
	h := newHarness(t)
	order := h.newOrder()

	if err := h.engine.Approve(testTaker, order); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("approve: got %v, want ErrUnauthorized", err)
	}
	if err := h.engine.Cancel(testTaker, order); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("cancel: got %v, want ErrUnauthorized", err)
	}
}

func TestStructuralChecks(t *testing.T) {
	h := newHarness(t)

	// Maker account mismatch
	order := h.newOrder()
	req := h.quoteInputRequest(order, h.signedData(order, defaultArgs()), -50)
	req.MakerAccount.Number = big.NewInt(1)
	if _, err := h.fill(req); !errors.Is(err, ErrAccountMismatch) {
		t.Errorf("got %v, want ErrAccountMismatch", err)
	}

	// Taker restriction
	restricted := h.newOrder(func(o *Order) { o.Taker = testTaker; o.Flags.Salt = big.NewInt(2) })
	req = h.quoteInputRequest(restricted, h.signedData(restricted, defaultArgs()), -50)
	req.TakerAccount.Owner = common.HexToAddress("0xDD")
	if _, err := h.fill(req); !errors.Is(err, ErrTakerMismatch) {
		t.Errorf("got %v, want ErrTakerMismatch", err)
	}
	req.TakerAccount.Owner = testTaker
	if _, err := h.fill(req); err != nil {
		t.Errorf("restricted taker fill failed: %v", err)
	}

	// Market mismatch
	order3 := h.newOrder(func(o *Order) { o.Flags.Salt = big.NewInt(3) })
	req = h.quoteInputRequest(order3, h.signedData(order3, defaultArgs()), -50)
	req.InputMarket = big.NewInt(5)
	if _, err := h.fill(req); !errors.Is(err, ErrMarketMismatch) {
		t.Errorf("got %v, want ErrMarketMismatch", err)
	}

	// Zero input
	req = h.quoteInputRequest(order3, h.signedData(order3, defaultArgs()), 0)
	if _, err := h.fill(req); !errors.Is(err, ErrZeroInput) {
		t.Errorf("got %v, want ErrZeroInput", err)
	}

	// Direction mismatch: a buy taking quote as input needs a negative delta
	req = h.quoteInputRequest(order3, h.signedData(order3, defaultArgs()), 50)
	if _, err := h.fill(req); !errors.Is(err, ErrDirectionMismatch) {
		t.Errorf("got %v, want ErrDirectionMismatch", err)
	}
}

func TestTransientTradeArgs(t *testing.T) {
	h := newHarness(t)
	maker := Account{Owner: h.maker(), Number: new(big.Int)}

	// Zero price with an empty staging slot is stale
	order := h.newOrder()
	zeroArgs := &TradeArgs{Price: new(big.Int), Fee: new(big.Int)}
	data := h.signedData(order, zeroArgs)
	if _, err := h.fill(h.quoteInputRequest(order, data, -50)); !errors.Is(err, ErrStaleTradeArgs) {
		t.Errorf("got %v, want ErrStaleTradeArgs", err)
	}

	// Stage trade args through the delegated path
	callData, err := EncodeCall(&CallArgs{Tag: CallSetTradeArgs, Args: defaultArgs()})
	if err != nil {
		t.Fatalf("failed to encode call: %v", err)
	}
	if err := h.engine.DelegatedCall(testLedgerCaller, maker, callData); err != nil {
		t.Fatalf("delegated set trade args failed: %v", err)
	}

	// A failing fill must not consume the staged slot
	badReq := h.quoteInputRequest(order, data, -50)
	badReq.InputMarket = big.NewInt(5)
	if _, err := h.fill(badReq); !errors.Is(err, ErrMarketMismatch) {
		t.Fatalf("got %v, want ErrMarketMismatch", err)
	}

	// The staged price now resolves the zero-price fill
	output, err := h.fill(h.quoteInputRequest(order, data, -50))
	if err != nil {
		t.Fatalf("fill with staged args failed: %v", err)
	}
	if output.Cmp(big.NewInt(25)) != 0 {
		t.Errorf("output = %s, want 25", output)
	}

	// The slot was consumed: a second zero-price fill is stale again
	if _, err := h.fill(h.quoteInputRequest(order, data, -20)); !errors.Is(err, ErrStaleTradeArgs) {
		t.Errorf("got %v, want ErrStaleTradeArgs", err)
	}
}

func TestOperationalSwitch(t *testing.T) {
	h := newHarness(t)
	order := h.newOrder()
	data := h.signedData(order, defaultArgs())

	if err := h.engine.ShutDown(testTaker); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("got %v, want ErrUnauthorized", err)
	}

	if err := h.engine.ShutDown(testOwner); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	if h.engine.Operational() {
		t.Error("engine still operational after shutdown")
	}
	if _, err := h.fill(h.quoteInputRequest(order, data, -50)); !errors.Is(err, ErrModuleInactive) {
		t.Errorf("got %v, want ErrModuleInactive", err)
	}

	if err := h.engine.StartUp(testOwner); err != nil {
		t.Fatalf("startup failed: %v", err)
	}
	if _, err := h.fill(h.quoteInputRequest(order, data, -50)); err != nil {
		t.Errorf("fill after startup failed: %v", err)
	}
}

func TestFillUnauthorizedCaller(t *testing.T) {
	h := newHarness(t)
	order := h.newOrder()
	data := h.signedData(order, defaultArgs())

	if _, err := h.engine.Fill(testTaker, h.quoteInputRequest(order, data, -50)); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("got %v, want ErrUnauthorized", err)
	}
}

func TestDelegatedApproveAndCancel(t *testing.T) {
	h := newHarness(t)
	order := h.newOrder()
	maker := Account{Owner: h.maker(), Number: new(big.Int)}

	approveData, err := EncodeCall(&CallArgs{Tag: CallApprove, Order: order})
	if err != nil {
		t.Fatalf("failed to encode approve: %v", err)
	}

	// Only the trusted ledger may use the delegated path
	if err := h.engine.DelegatedCall(testTaker, maker, approveData); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("got %v, want ErrUnauthorized", err)
	}

	// The asserted sender must still be the maker
	stranger := Account{Owner: testTaker, Number: new(big.Int)}
	if err := h.engine.DelegatedCall(testLedgerCaller, stranger, approveData); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("got %v, want ErrUnauthorized", err)
	}

	if err := h.engine.DelegatedCall(testLedgerCaller, maker, approveData); err != nil {
		t.Fatalf("delegated approve failed: %v", err)
	}
	if got := h.state(order).Status; got != StatusApproved {
		t.Errorf("status = %s, want approved", got)
	}

	cancelData, err := EncodeCall(&CallArgs{Tag: CallCancel, Order: order})
	if err != nil {
		t.Fatalf("failed to encode cancel: %v", err)
	}
	if err := h.engine.DelegatedCall(testLedgerCaller, maker, cancelData); err != nil {
		t.Fatalf("delegated cancel failed: %v", err)
	}
	if got := h.state(order).Status; got != StatusCanceled {
		t.Errorf("status = %s, want canceled", got)
	}
}

func TestDecreaseOnlyInputViolation(t *testing.T) {
	h := newHarness(t)
	order := h.newOrder(func(o *Order) { o.Flags.IsDecreaseOnly = true })
	data := h.signedData(order, defaultArgs())

	// New input balance grows in magnitude with the same sign
	req := h.quoteInputRequest(order, data, -50)
	req.OldInputWei = big.NewInt(-10)
	req.NewInputWei = big.NewInt(-20)

	if _, err := h.fill(req); !errors.Is(err, ErrDecreaseViolation) {
		t.Errorf("got %v, want ErrDecreaseViolation", err)
	}
	if got := h.state(order).FilledAmount; got.Sign() != 0 {
		t.Errorf("filled after rejected fill = %s, want 0", got)
	}
}

func TestDecreaseOnlyOutputViolation(t *testing.T) {
	h := newHarness(t)
	order := h.newOrder(func(o *Order) { o.Flags.IsDecreaseOnly = true })
	data := h.signedData(order, defaultArgs())
	maker := Account{Owner: h.maker(), Number: new(big.Int)}

	// Output delta is +25 base; a positive pre-fill balance moves away from zero
	h.ledger.SetAccountWei(maker, order.BaseMarket, big.NewInt(10))
	if _, err := h.fill(h.quoteInputRequest(order, data, -50)); !errors.Is(err, ErrDecreaseViolation) {
		t.Errorf("same-sign balance: got %v, want ErrDecreaseViolation", err)
	}

	// A short position smaller than the output would be pushed past zero
	h.ledger.SetAccountWei(maker, order.BaseMarket, big.NewInt(-10))
	if _, err := h.fill(h.quoteInputRequest(order, data, -50)); !errors.Is(err, ErrDecreaseViolation) {
		t.Errorf("overshoot: got %v, want ErrDecreaseViolation", err)
	}
}

func TestDecreaseOnlyAccepted(t *testing.T) {
	h := newHarness(t)
	order := h.newOrder(func(o *Order) { o.Flags.IsDecreaseOnly = true })
	data := h.signedData(order, defaultArgs())
	maker := Account{Owner: h.maker(), Number: new(big.Int)}

	// Short 30 base; buying back 25 moves the position toward zero
	h.ledger.SetAccountWei(maker, order.BaseMarket, big.NewInt(-30))
	req := h.quoteInputRequest(order, data, -50)
	req.OldInputWei = big.NewInt(100)
	req.NewInputWei = big.NewInt(50)

	output, err := h.fill(req)
	if err != nil {
		t.Fatalf("decrease-only fill failed: %v", err)
	}
	if output.Cmp(big.NewInt(25)) != 0 {
		t.Errorf("output = %s, want 25", output)
	}
}

func TestGetOrderStates(t *testing.T) {
	h := newHarness(t)
	approved := h.newOrder()
	canceled := h.newOrder(func(o *Order) { o.Flags.Salt = big.NewInt(2) })

	if err := h.engine.Approve(h.maker(), approved); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if err := h.engine.Cancel(h.maker(), canceled); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	states, err := h.engine.GetOrderStates([]common.Hash{
		h.orderHash(approved),
		h.orderHash(canceled),
		common.HexToHash("0xEE"), // never referenced
	})
	if err != nil {
		t.Fatalf("failed to read order states: %v", err)
	}
	if states[0].Status != StatusApproved {
		t.Errorf("states[0] = %s, want approved", states[0].Status)
	}
	if states[1].Status != StatusCanceled {
		t.Errorf("states[1] = %s, want canceled", states[1].Status)
	}
	if states[2].Status != StatusNull || states[2].FilledAmount.Sign() != 0 {
		t.Errorf("states[2] = %s/%s, want null/0", states[2].Status, states[2].FilledAmount)
	}
}
