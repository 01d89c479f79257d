package main

import (
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/HexCommunity/solo/params"
	"github.com/HexCommunity/solo/pkg/api"
	"github.com/HexCommunity/solo/pkg/orders"
	"github.com/HexCommunity/solo/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	store, err := orders.NewPersistentStateStore(cfg.Node.DBPath)
	if err != nil {
		logger.Fatal("failed to open order state store", zap.Error(err))
	}
	defer store.Close()

	// Standalone runs use the static ledger stub; a real deployment wires
	// the margin ledger here.
	ledger := orders.NewStaticLedger()

	engine := orders.NewEngine(orders.Config{
		ChainID:         big.NewInt(cfg.Engine.ChainID),
		ContractAddress: common.HexToAddress(cfg.Engine.ContractAddress),
		Owner:           common.HexToAddress(cfg.Engine.Owner),
		LedgerCaller:    common.HexToAddress(cfg.Engine.LedgerCaller),
	}, store, ledger, logger)

	server := api.NewServer(engine, logger)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.Node.APIAddr)
	}()

	logger.Info("solo engine started",
		zap.Int64("chainId", cfg.Engine.ChainID),
		zap.String("owner", cfg.Engine.Owner),
		zap.String("ledgerCaller", cfg.Engine.LedgerCaller),
		zap.String("apiAddr", cfg.Node.APIAddr))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("api server stopped", zap.Error(err))
	}
}
