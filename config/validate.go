package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Validate rejects configurations the daemon cannot start with.
func Validate(c *Config) error {
	if c == nil {
		return fmt.Errorf("config: nil")
	}
	switch c.DBBackend {
	case BackendLevelDB, BackendBolt, BackendMemory:
	default:
		return fmt.Errorf("config: unknown DBBackend %q", c.DBBackend)
	}
	if c.DBBackend != BackendMemory && strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir required for %s backend", c.DBBackend)
	}
	if err := validateAddress("Staker.Owner", c.Staker.Owner); err != nil {
		return err
	}
	if err := validateAddress("Staker.EngineAddress", c.Staker.EngineAddress); err != nil {
		return err
	}
	if c.Staker.MaxIncentiveStartLeadTimeSecs == 0 {
		return fmt.Errorf("config: Staker.MaxIncentiveStartLeadTimeSecs must be positive")
	}
	if c.Staker.MaxIncentiveDurationSecs == 0 {
		return fmt.Errorf("config: Staker.MaxIncentiveDurationSecs must be positive")
	}
	if strings.TrimSpace(c.RPC.JWTSecretEnv) == "" {
		return fmt.Errorf("config: RPC.JWTSecretEnv required")
	}
	if c.RPC.MutationsPerMinute == 0 || c.RPC.MutationBurst == 0 {
		return fmt.Errorf("config: RPC mutation limits must be positive")
	}
	switch c.Indexer.Driver {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unknown Indexer.Driver %q", c.Indexer.Driver)
	}
	if c.Indexer.Driver == "postgres" && strings.TrimSpace(c.Indexer.DSN) == "" {
		return fmt.Errorf("config: Indexer.DSN required for postgres")
	}
	return nil
}

func validateAddress(field, value string) error {
	if !common.IsHexAddress(strings.TrimSpace(value)) {
		return fmt.Errorf("config: %s is not a hex address: %q", field, value)
	}
	if common.HexToAddress(value) == (common.Address{}) {
		return fmt.Errorf("config: %s must not be the zero address", field)
	}
	return nil
}

// OwnerAddress returns the parsed initial owner.
func (s Staker) OwnerAddress() common.Address { return common.HexToAddress(strings.TrimSpace(s.Owner)) }

// Engine returns the parsed custody address of the engine.
func (s Staker) Engine() common.Address { return common.HexToAddress(strings.TrimSpace(s.EngineAddress)) }
