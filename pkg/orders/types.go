package orders

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PriceBase is the fixed-point scale for prices and fee rates (1e18).
var PriceBase = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Flag bits packed into the low end of the flags word. The remaining high
// bits carry a random salt so identical orders hash to distinct identifiers.
const (
	flagIsBuy          = 1 << 0
	flagIsDecreaseOnly = 1 << 1
	flagIsNegativeFee  = 1 << 2
	flagBits           = 3
)

// OrderFlags is the decoded form of the order's flags word.
type OrderFlags struct {
	Salt           *big.Int `json:"salt"`
	IsBuy          bool     `json:"isBuy"`
	IsDecreaseOnly bool     `json:"isDecreaseOnly"`
	IsNegativeFee  bool     `json:"isNegativeFee"`
}

// Pack encodes the flags back into a single 32-byte word.
func (f OrderFlags) Pack() common.Hash {
	word := new(big.Int).Lsh(f.Salt, flagBits)
	if f.IsBuy {
		word.Or(word, big.NewInt(flagIsBuy))
	}
	if f.IsDecreaseOnly {
		word.Or(word, big.NewInt(flagIsDecreaseOnly))
	}
	if f.IsNegativeFee {
		word.Or(word, big.NewInt(flagIsNegativeFee))
	}
	return common.BigToHash(word)
}

// UnpackFlags decodes a flags word. Done once at order ingestion; the word is
// reconstructed only for hashing and encoding.
func UnpackFlags(word common.Hash) OrderFlags {
	w := new(big.Int).SetBytes(word[:])
	bits := w.Bit(0) | w.Bit(1)<<1 | w.Bit(2)<<2
	return OrderFlags{
		Salt:           new(big.Int).Rsh(w, flagBits),
		IsBuy:          bits&flagIsBuy != 0,
		IsDecreaseOnly: bits&flagIsDecreaseOnly != 0,
		IsNegativeFee:  bits&flagIsNegativeFee != 0,
	}
}

// Account identifies a margin-ledger account: an owner address plus an
// account number under that owner.
type Account struct {
	Owner  common.Address `json:"owner"`
	Number *big.Int       `json:"number"`
}

// Equals reports field-wise equality.
func (a Account) Equals(b Account) bool {
	return a.Owner == b.Owner && a.Number.Cmp(b.Number) == 0
}

// Order is a signed, off-chain-constructed trade authorization. Immutable
// once signed; its identity is the EIP-712 typed hash of its fields.
type Order struct {
	Flags              OrderFlags
	BaseMarket         *big.Int
	QuoteMarket        *big.Int
	Amount             *big.Int // max fillable quantity
	LimitPrice         *big.Int // worst acceptable price, quote per base, 1e18 scale
	TriggerPrice       *big.Int // 0 = always active
	LimitFee           *big.Int // worst acceptable fee rate, 1e18 scale
	MakerAccountOwner  common.Address
	MakerAccountNumber *big.Int
	Taker              common.Address // zero = any counterparty
	Expiration         *big.Int       // unix seconds, 0 = never expires
}

// TradeArgs are the proposed execution terms for one fill attempt.
type TradeArgs struct {
	Price         *big.Int
	Fee           *big.Int // magnitude; sign carried by IsNegativeFee
	IsNegativeFee bool
}

// OrderInfo bundles an order with its trade terms and identifier for one
// fill attempt. Derived per attempt, never persisted.
type OrderInfo struct {
	Order Order
	Args  TradeArgs
	Hash  common.Hash
}

// OrderStatus is the approval lifecycle state of an order.
type OrderStatus uint8

const (
	StatusNull OrderStatus = iota
	StatusApproved
	StatusCanceled
)

func (s OrderStatus) String() string {
	switch s {
	case StatusNull:
		return "null"
	case StatusApproved:
		return "approved"
	case StatusCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// OrderState is the stored lifecycle state for one order identifier.
// FilledAmount only ever increases and never exceeds the order's amount.
type OrderState struct {
	Status       OrderStatus `json:"status"`
	FilledAmount *big.Int    `json:"filledAmount"`
}

// FillRequest carries one fill attempt from the trusted ledger caller.
// Balances and the delta refer to the maker's input-market position in Wei.
type FillRequest struct {
	InputMarket  *big.Int
	OutputMarket *big.Int
	MakerAccount Account
	TakerAccount Account
	OldInputWei  *big.Int // maker's input-market balance before the fill
	NewInputWei  *big.Int // maker's input-market balance after the fill
	InputDelta   *big.Int // signed input amount; never zero for a valid fill
	Data         []byte   // 448- or 514-byte order payload
}
