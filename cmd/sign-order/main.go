package main

import (
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"

	"github.com/HexCommunity/solo/pkg/crypto"
	"github.com/HexCommunity/solo/pkg/orders"
)

// Developer tool: generate a key, build a canonical order, sign its typed
// hash, and print the fill calldata ready to hand to the ledger caller.
func main() {
	signer, err := crypto.GenerateKey()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Address: %s\n", signer.Address().Hex())
	fmt.Printf("Private Key: %s (KEEP SECRET!)\n\n", signer.PrivateKeyHex())

	order := orders.Order{
		Flags: orders.OrderFlags{
			Salt:  big.NewInt(42),
			IsBuy: true,
		},
		BaseMarket:         big.NewInt(0),
		QuoteMarket:        big.NewInt(1),
		Amount:             big.NewInt(100),
		LimitPrice:         new(big.Int).Mul(big.NewInt(2), orders.PriceBase),
		TriggerPrice:       new(big.Int),
		LimitFee:           new(big.Int),
		MakerAccountOwner:  signer.Address(),
		MakerAccountNumber: new(big.Int),
		Taker:              common.Address{},
		Expiration:         new(big.Int),
	}
	args := orders.TradeArgs{
		Price: new(big.Int).Mul(big.NewInt(2), orders.PriceBase),
		Fee:   new(big.Int),
	}

	hasher := orders.NewHasher(big.NewInt(1337), common.Address{})
	hash, err := hasher.HashOrder(&order)
	if err != nil {
		fmt.Printf("Error hashing order: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Order hash: %s\n", hash.Hex())

	sig, err := crypto.SignTyped(signer, hash, crypto.SigTypeDecimal)
	if err != nil {
		fmt.Printf("Error signing: %v\n", err)
		os.Exit(1)
	}

	recovered, err := sig.Recover(hash)
	if err != nil || recovered != signer.Address() {
		fmt.Printf("Signature verification failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Signature verified against maker.")

	calldata := orders.EncodeFill(&order, &args, sig)
	fmt.Printf("\nFill calldata (%d bytes):\n0x%x\n", len(calldata), calldata)
}
