package orders

import (
	"fmt"
	"math/big"
)

// fillResult is the outcome of pricing one fill: the counter-asset amount
// owed (magnitude; sign applied by the engine) and the quantity counted
// toward the order's fillable amount.
type fillResult struct {
	OutputAmount *big.Int
	FillAmount   *big.Int
}

// adjustedPrice folds the fee into the trade price. A negative fee always
// moves the price in the maker's favor, a positive fee always against:
// subtract when (isBuy == isNegativeFee), add otherwise.
func adjustedPrice(isBuy bool, args *TradeArgs) *big.Int {
	fee := new(big.Int).Mul(args.Price, args.Fee)
	fee.Div(fee, PriceBase)

	adjusted := new(big.Int).Set(args.Price)
	if isBuy == args.IsNegativeFee {
		return adjusted.Sub(adjusted, fee)
	}
	return adjusted.Add(adjusted, fee)
}

// computeFill prices one fill attempt. inputWei is the magnitude of the
// input-market delta; inputIsBase selects the computation branch:
//
//   - quote input: output = fill = inputWei * PriceBase / adjustedPrice
//   - base input:  output = inputWei * adjustedPrice / PriceBase, and the
//     full input quantity counts toward the order's amount
func computeFill(order *Order, args *TradeArgs, inputIsBase bool, inputWei *big.Int) (fillResult, error) {
	adjusted := adjustedPrice(order.Flags.IsBuy, args)
	if adjusted.Sign() <= 0 {
		return fillResult{}, fmt.Errorf("%w: fee-adjusted price %s is not positive", ErrPriceOutOfBounds, adjusted)
	}

	if inputIsBase {
		output := new(big.Int).Mul(inputWei, adjusted)
		output.Div(output, PriceBase)
		return fillResult{
			OutputAmount: output,
			FillAmount:   new(big.Int).Set(inputWei),
		}, nil
	}

	output := new(big.Int).Mul(inputWei, PriceBase)
	output.Div(output, adjusted)
	return fillResult{
		OutputAmount: output,
		FillAmount:   new(big.Int).Set(output),
	}, nil
}
