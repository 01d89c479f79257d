package orders

import (
	"fmt"
	"math/big"
)

// Ledger is the margin-accounting collaborator. It supplies market prices
// and account balances; applying the computed output delta back to the
// maker's balance is the caller's job, atomically with the fill.
type Ledger interface {
	// GetMarketPrice returns the current price of a market, 1e18-scaled.
	GetMarketPrice(marketID *big.Int) (*big.Int, error)

	// GetAccountWei returns an account's signed balance on a market, in the
	// market's native unit.
	GetAccountWei(account Account, marketID *big.Int) (*big.Int, error)
}

// ratioPrice computes the current base/quote price (1e18-scaled) used for
// trigger evaluation: basePrice * PriceBase / quotePrice.
func ratioPrice(ledger Ledger, baseMarket, quoteMarket *big.Int) (*big.Int, error) {
	basePrice, err := ledger.GetMarketPrice(baseMarket)
	if err != nil {
		return nil, fmt.Errorf("failed to get base market price: %w", err)
	}
	quotePrice, err := ledger.GetMarketPrice(quoteMarket)
	if err != nil {
		return nil, fmt.Errorf("failed to get quote market price: %w", err)
	}
	if quotePrice.Sign() == 0 {
		return nil, fmt.Errorf("quote market %s has zero price", quoteMarket)
	}

	ratio := new(big.Int).Mul(basePrice, PriceBase)
	return ratio.Div(ratio, quotePrice), nil
}
