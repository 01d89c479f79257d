package orders

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// EIP-712 domain parameters. Fixed at construction so off-chain signers and
// this engine agree bit-for-bit on every order identifier.
const (
	domainName    = "SoloOrders"
	domainVersion = "1.1"
	primaryType   = "CanonicalOrder"
)

var orderTypes = apitypes.Types{
	"EIP712Domain": []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	primaryType: []apitypes.Type{
		{Name: "flags", Type: "bytes32"},
		{Name: "baseMarket", Type: "uint256"},
		{Name: "quoteMarket", Type: "uint256"},
		{Name: "amount", Type: "uint256"},
		{Name: "limitPrice", Type: "uint256"},
		{Name: "triggerPrice", Type: "uint256"},
		{Name: "limitFee", Type: "uint256"},
		{Name: "makerAccountOwner", Type: "address"},
		{Name: "makerAccountNumber", Type: "uint256"},
		{Name: "taker", Type: "address"},
		{Name: "expiration", Type: "uint256"},
	},
}

// Hasher computes domain-separated typed hashes of orders. Pure function of
// order contents and the deployment-time domain parameters.
type Hasher struct {
	chainID           *big.Int
	verifyingContract common.Address
}

// NewHasher creates a Hasher bound to a chain and verifying contract.
func NewHasher(chainID *big.Int, verifyingContract common.Address) *Hasher {
	return &Hasher{
		chainID:           new(big.Int).Set(chainID),
		verifyingContract: verifyingContract,
	}
}

// HashOrder returns the order's unique identifier:
// keccak256(0x1901 || domainSeparator || structHash(order)).
func (h *Hasher) HashOrder(order *Order) (common.Hash, error) {
	flags := order.Flags.Pack()

	typedData := apitypes.TypedData{
		Types:       orderTypes,
		PrimaryType: primaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              domainName,
			Version:           domainVersion,
			ChainId:           (*math.HexOrDecimal256)(h.chainID),
			VerifyingContract: h.verifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"flags":              hexutil.Encode(flags[:]),
			"baseMarket":         order.BaseMarket.String(),
			"quoteMarket":        order.QuoteMarket.String(),
			"amount":             order.Amount.String(),
			"limitPrice":         order.LimitPrice.String(),
			"triggerPrice":       order.TriggerPrice.String(),
			"limitFee":           order.LimitFee.String(),
			"makerAccountOwner":  order.MakerAccountOwner.Hex(),
			"makerAccountNumber": order.MakerAccountNumber.String(),
			"taker":              order.Taker.Hex(),
			"expiration":         order.Expiration.String(),
		},
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash domain: %w", err)
	}

	structHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash order struct: %w", err)
	}

	return crypto.Keccak256Hash([]byte{0x19, 0x01}, domainSeparator, structHash), nil
}
