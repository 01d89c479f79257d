package orders

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/HexCommunity/solo/pkg/crypto"
)

// Wire sizes. An order payload is 14 contract-ABI words: eleven for the
// order, three for the trade args, optionally followed by a 66-byte detached
// typed signature.
const (
	wordSize = 32

	orderWords     = 11
	tradeArgsWords = 3

	OrderBodyBytes = orderWords * wordSize                    // 352
	TradeArgsBytes = tradeArgsWords * wordSize                // 96
	OrderBytes     = OrderBodyBytes + TradeArgsBytes          // 448
	SignedBytes    = OrderBytes + crypto.TypedSignatureLength // 514
)

func wordAt(data []byte, i int) []byte {
	return data[i*wordSize : (i+1)*wordSize]
}

func bigAt(data []byte, i int) *big.Int {
	return new(big.Int).SetBytes(wordAt(data, i))
}

func addrAt(data []byte, i int) common.Address {
	return common.BytesToAddress(wordAt(data, i))
}

func boolAt(data []byte, i int) bool {
	return bigAt(data, i).Sign() != 0
}

func putBig(data []byte, i int, v *big.Int) {
	word := common.BigToHash(v)
	copy(wordAt(data, i), word[:])
}

func putAddr(data []byte, i int, a common.Address) {
	copy(data[i*wordSize+12:(i+1)*wordSize], a[:])
}

func putBool(data []byte, i int, b bool) {
	if b {
		data[(i+1)*wordSize-1] = 1
	}
}

func decodeOrderBody(data []byte) Order {
	return Order{
		Flags:              UnpackFlags(common.BytesToHash(wordAt(data, 0))),
		BaseMarket:         bigAt(data, 1),
		QuoteMarket:        bigAt(data, 2),
		Amount:             bigAt(data, 3),
		LimitPrice:         bigAt(data, 4),
		TriggerPrice:       bigAt(data, 5),
		LimitFee:           bigAt(data, 6),
		MakerAccountOwner:  addrAt(data, 7),
		MakerAccountNumber: bigAt(data, 8),
		Taker:              addrAt(data, 9),
		Expiration:         bigAt(data, 10),
	}
}

func encodeOrderBody(data []byte, order *Order) {
	flags := order.Flags.Pack()
	copy(wordAt(data, 0), flags[:])
	putBig(data, 1, order.BaseMarket)
	putBig(data, 2, order.QuoteMarket)
	putBig(data, 3, order.Amount)
	putBig(data, 4, order.LimitPrice)
	putBig(data, 5, order.TriggerPrice)
	putBig(data, 6, order.LimitFee)
	putAddr(data, 7, order.MakerAccountOwner)
	putBig(data, 8, order.MakerAccountNumber)
	putAddr(data, 9, order.Taker)
	putBig(data, 10, order.Expiration)
}

func decodeTradeArgs(data []byte) TradeArgs {
	return TradeArgs{
		Price:         bigAt(data, 0),
		Fee:           bigAt(data, 1),
		IsNegativeFee: boolAt(data, 2),
	}
}

func encodeTradeArgs(data []byte, args *TradeArgs) {
	putBig(data, 0, args.Price)
	putBig(data, 1, args.Fee)
	putBool(data, 2, args.IsNegativeFee)
}

// DecodeFill parses a fill payload. Valid lengths are exactly OrderBytes or
// SignedBytes; anything else is a decode error. The signature is nil when
// absent, which is only acceptable for already-approved orders.
func DecodeFill(data []byte) (Order, TradeArgs, *crypto.TypedSignature, error) {
	if len(data) != OrderBytes && len(data) != SignedBytes {
		return Order{}, TradeArgs{}, nil,
			fmt.Errorf("%w: length %d, want %d or %d", ErrDecode, len(data), OrderBytes, SignedBytes)
	}

	order := decodeOrderBody(data[:OrderBodyBytes])
	args := decodeTradeArgs(data[OrderBodyBytes:OrderBytes])

	var sig *crypto.TypedSignature
	if len(data) == SignedBytes {
		parsed, err := crypto.ParseTypedSignature(data[OrderBytes:])
		if err != nil {
			return Order{}, TradeArgs{}, nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		sig = parsed
	}

	return order, args, sig, nil
}

// EncodeFill is the inverse of DecodeFill, used by clients and tests to
// produce calldata. A nil signature yields the short form.
func EncodeFill(order *Order, args *TradeArgs, sig *crypto.TypedSignature) []byte {
	size := OrderBytes
	if sig != nil {
		size = SignedBytes
	}
	data := make([]byte, size)
	encodeOrderBody(data[:OrderBodyBytes], order)
	encodeTradeArgs(data[OrderBodyBytes:OrderBytes], args)
	if sig != nil {
		copy(data[OrderBytes:], sig.Bytes())
	}
	return data
}

// CallTag discriminates delegated-call payloads.
type CallTag uint8

const (
	CallApprove      CallTag = 1
	CallCancel       CallTag = 2
	CallSetTradeArgs CallTag = 3
)

// CallArgs is the decoded form of a delegated-call payload: exactly one of
// Order (approve/cancel) or Args (set-trade-args) is set, per the tag.
type CallArgs struct {
	Tag   CallTag
	Order *Order
	Args  *TradeArgs
}

// DecodeCall parses a delegated-call payload: one discriminant word followed
// by the order body (approve/cancel) or the trade-args body.
func DecodeCall(data []byte) (*CallArgs, error) {
	if len(data) < wordSize {
		return nil, fmt.Errorf("%w: delegated call shorter than discriminant word", ErrDecode)
	}

	tagWord := bigAt(data, 0)
	if !tagWord.IsUint64() || tagWord.Uint64() > uint64(CallSetTradeArgs) || tagWord.Sign() == 0 {
		return nil, fmt.Errorf("%w: unknown delegated call tag %s", ErrDecode, tagWord)
	}
	tag := CallTag(tagWord.Uint64())
	body := data[wordSize:]

	switch tag {
	case CallApprove, CallCancel:
		if len(body) != OrderBodyBytes {
			return nil, fmt.Errorf("%w: order body length %d, want %d", ErrDecode, len(body), OrderBodyBytes)
		}
		order := decodeOrderBody(body)
		return &CallArgs{Tag: tag, Order: &order}, nil

	case CallSetTradeArgs:
		if len(body) != TradeArgsBytes {
			return nil, fmt.Errorf("%w: trade args length %d, want %d", ErrDecode, len(body), TradeArgsBytes)
		}
		args := decodeTradeArgs(body)
		return &CallArgs{Tag: tag, Args: &args}, nil

	default:
		return nil, fmt.Errorf("%w: unknown delegated call tag %d", ErrDecode, tag)
	}
}

// EncodeCall is the inverse of DecodeCall.
func EncodeCall(call *CallArgs) ([]byte, error) {
	switch call.Tag {
	case CallApprove, CallCancel:
		if call.Order == nil {
			return nil, fmt.Errorf("%w: missing order for tag %d", ErrDecode, call.Tag)
		}
		data := make([]byte, wordSize+OrderBodyBytes)
		putBig(data, 0, big.NewInt(int64(call.Tag)))
		encodeOrderBody(data[wordSize:], call.Order)
		return data, nil

	case CallSetTradeArgs:
		if call.Args == nil {
			return nil, fmt.Errorf("%w: missing trade args", ErrDecode)
		}
		data := make([]byte, wordSize+TradeArgsBytes)
		putBig(data, 0, big.NewInt(int64(call.Tag)))
		encodeTradeArgs(data[wordSize:], call.Args)
		return data, nil

	default:
		return nil, fmt.Errorf("%w: unknown delegated call tag %d", ErrDecode, call.Tag)
	}
}
