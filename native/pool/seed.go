package pool

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"
)

// PoolSeed describes a pool to create at startup.
type PoolSeed struct {
	Address string `yaml:"address"`
	Token0  string `yaml:"token0"`
	Token1  string `yaml:"token1"`
	Fee     uint32 `yaml:"fee"`
	Tick    int32  `yaml:"tick"`
}

// PositionSeed describes a position to mint at startup.
type PositionSeed struct {
	Owner     string `yaml:"owner"`
	Pool      string `yaml:"pool"`
	TickLower int32  `yaml:"tickLower"`
	TickUpper int32  `yaml:"tickUpper"`
	Liquidity string `yaml:"liquidity"`
}

// Seed is the YAML document used to populate a development registry.
type Seed struct {
	Pools     []PoolSeed     `yaml:"pools"`
	Positions []PositionSeed `yaml:"positions"`
}

// LoadSeed reads a seed file from disk.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pool seed: read %s: %w", path, err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes a seed document.
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("pool seed: decode: %w", err)
	}
	return &seed, nil
}

func parseSeedAddress(field, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("pool seed: invalid %s %q", field, value)
	}
	return common.HexToAddress(value), nil
}

// Apply creates the seeded pools that do not exist yet and mints the seeded
// positions. Positions are only minted together with a freshly created pool so
// restarting against persisted state is a no-op.
func (s *Seed) Apply(r *Registry) ([]uint64, error) {
	if s == nil {
		return nil, nil
	}
	created := make(map[common.Address]bool)
	for _, p := range s.Pools {
		addr, err := parseSeedAddress("pool address", p.Address)
		if err != nil {
			return nil, err
		}
		if r.PoolExists(addr) {
			continue
		}
		token0, err := parseSeedAddress("token0", p.Token0)
		if err != nil {
			return nil, err
		}
		token1, err := parseSeedAddress("token1", p.Token1)
		if err != nil {
			return nil, err
		}
		if _, err := r.CreatePool(addr, token0, token1, p.Fee, p.Tick); err != nil {
			return nil, err
		}
		created[addr] = true
	}
	var minted []uint64
	for _, pos := range s.Positions {
		poolAddr, err := parseSeedAddress("position pool", pos.Pool)
		if err != nil {
			return nil, err
		}
		if !created[poolAddr] {
			continue
		}
		owner, err := parseSeedAddress("position owner", pos.Owner)
		if err != nil {
			return nil, err
		}
		liquidity, err := uint256.FromDecimal(pos.Liquidity)
		if err != nil {
			return nil, fmt.Errorf("pool seed: invalid liquidity %q: %w", pos.Liquidity, err)
		}
		position, err := r.Mint(owner, poolAddr, pos.TickLower, pos.TickUpper, liquidity)
		if err != nil {
			return nil, err
		}
		minted = append(minted, position.ID)
	}
	return minted, nil
}
