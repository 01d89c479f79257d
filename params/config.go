package params

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Engine struct {
	ChainID         int64
	ContractAddress string // verifying contract for the typed-hash domain
	Owner           string // address allowed to toggle the operational flag
	LedgerCaller    string // trusted margin-ledger caller
}

type Node struct {
	DBPath  string
	APIAddr string
}

type Config struct {
	Engine Engine
	Node   Node
}

func Default() Config {
	return Config{
		Engine: Engine{
			ChainID:         1337,
			ContractAddress: "0x0000000000000000000000000000000000000000",
			Owner:           "0x0000000000000000000000000000000000000001",
			LedgerCaller:    "0x0000000000000000000000000000000000000002",
		},
		Node: Node{
			DBPath:  "data/orderstate",
			APIAddr: ":8080",
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if chainID := os.Getenv("SOLO_CHAIN_ID"); chainID != "" {
		if id, err := strconv.ParseInt(chainID, 10, 64); err == nil {
			cfg.Engine.ChainID = id
		}
	}
	if addr := os.Getenv("SOLO_CONTRACT_ADDRESS"); addr != "" {
		cfg.Engine.ContractAddress = addr
	}
	if owner := os.Getenv("SOLO_OWNER"); owner != "" {
		cfg.Engine.Owner = owner
	}
	if ledger := os.Getenv("SOLO_LEDGER_CALLER"); ledger != "" {
		cfg.Engine.LedgerCaller = ledger
	}
	if dbPath := os.Getenv("SOLO_DB_PATH"); dbPath != "" {
		cfg.Node.DBPath = dbPath
	}
	if apiAddr := os.Getenv("SOLO_API_ADDR"); apiAddr != "" {
		cfg.Node.APIAddr = apiAddr
	}

	return cfg
}
