package orders

import (
	"fmt"
	"math/big"
	"sync"
)

// StaticLedger is a minimal in-memory Ledger with settable prices and
// balances. Serves as the price-feed/balance stub for local runs and test
// scaffolding; a production deployment wires the real margin ledger instead.
type StaticLedger struct {
	mu       sync.RWMutex
	prices   map[string]*big.Int
	balances map[string]*big.Int
}

func NewStaticLedger() *StaticLedger {
	return &StaticLedger{
		prices:   make(map[string]*big.Int),
		balances: make(map[string]*big.Int),
	}
}

func balanceKey(account Account, marketID *big.Int) string {
	return fmt.Sprintf("%s:%s:%s", account.Owner.Hex(), account.Number, marketID)
}

// SetMarketPrice sets a market's current price (1e18-scaled).
func (l *StaticLedger) SetMarketPrice(marketID, price *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prices[marketID.String()] = new(big.Int).Set(price)
}

// SetAccountWei sets an account's signed balance on a market.
func (l *StaticLedger) SetAccountWei(account Account, marketID, balance *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[balanceKey(account, marketID)] = new(big.Int).Set(balance)
}

func (l *StaticLedger) GetMarketPrice(marketID *big.Int) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	price, ok := l.prices[marketID.String()]
	if !ok {
		return nil, fmt.Errorf("no price for market %s", marketID)
	}
	return new(big.Int).Set(price), nil
}

func (l *StaticLedger) GetAccountWei(account Account, marketID *big.Int) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	balance, ok := l.balances[balanceKey(account, marketID)]
	if !ok {
		return new(big.Int), nil
	}
	return new(big.Int).Set(balance), nil
}

var _ Ledger = (*StaticLedger)(nil)
