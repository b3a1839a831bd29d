package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Supported storage backends.
const (
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
	BackendMemory  = "memory"
)

type Config struct {
	ListenAddress string    `toml:"ListenAddress"`
	DataDir       string    `toml:"DataDir"`
	DBBackend     string    `toml:"DBBackend"`
	Env           string    `toml:"Env"`
	LogFile       string    `toml:"LogFile"`
	Staker        Staker    `toml:"Staker"`
	RPC           RPC       `toml:"RPC"`
	Indexer       Indexer   `toml:"Indexer"`
	Telemetry     Telemetry `toml:"Telemetry"`
	Dev           Dev       `toml:"Dev"`
}

// Default returns the configuration written on first start.
func Default() *Config {
	return &Config{
		ListenAddress: ":8547",
		DataDir:       "./staker-data",
		DBBackend:     BackendLevelDB,
		Env:           "local",
		Staker: Staker{
			Owner:                         "0x0000000000000000000000000000000000000001",
			EngineAddress:                 "0x000000000000000000000000000000000000057a",
			MaxIncentiveStartLeadTimeSecs: 30 * 24 * 3600,
			MaxIncentiveDurationSecs:      2 * 365 * 24 * 3600,
		},
		RPC: RPC{
			JWTSecretEnv:       "STAKER_JWT_SECRET",
			JWTIssuer:          "rangestaker",
			MutationsPerMinute: 120,
			MutationBurst:      20,
		},
		Indexer:   Indexer{Driver: "sqlite", DSN: "staker-events.db"},
		Telemetry: Telemetry{Endpoint: "localhost:4318", Insecure: true},
	}
}

// Load loads the configuration from the given path, writing the defaults
// there when the file does not exist yet.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.DBBackend = strings.ToLower(strings.TrimSpace(cfg.DBBackend))
	cfg.Indexer.Driver = strings.ToLower(strings.TrimSpace(cfg.Indexer.Driver))
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DBPath is the on-disk location of the state database.
func (c *Config) DBPath() string {
	switch c.DBBackend {
	case BackendBolt:
		return filepath.Join(c.DataDir, "state.db")
	case BackendMemory:
		return ""
	}
	return filepath.Join(c.DataDir, "state")
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
