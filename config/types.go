package config

// Staker seeds the engine parameters on first start. Once persisted they are
// changed through staker_setParams and staker_transferOwnership.
type Staker struct {
	Owner                         string `toml:"Owner"`
	EngineAddress                 string `toml:"EngineAddress"`
	MaxIncentiveStartLeadTimeSecs uint64 `toml:"MaxIncentiveStartLeadTimeSecs"`
	MaxIncentiveDurationSecs      uint64 `toml:"MaxIncentiveDurationSecs"`
}

// RPC controls authentication and throttling of mutating calls.
type RPC struct {
	JWTSecretEnv       string `toml:"JWTSecretEnv"`
	JWTIssuer          string `toml:"JWTIssuer"`
	MutationsPerMinute uint32 `toml:"MutationsPerMinute"`
	MutationBurst      uint32 `toml:"MutationBurst"`
}

// Indexer selects where emitted events are journaled.
type Indexer struct {
	Driver string `toml:"Driver"`
	DSN    string `toml:"DSN"`
}

// Telemetry configures the OTLP trace exporter.
type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Traces   bool   `toml:"Traces"`
	Headers  string `toml:"Headers"`
}

// Dev enables the faucet and pool manipulation methods and an optional seed
// file of pools and positions.
type Dev struct {
	Enabled      bool   `toml:"Enabled"`
	PoolSeedFile string `toml:"PoolSeedFile"`
}
