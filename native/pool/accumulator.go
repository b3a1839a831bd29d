package pool

import (
	"github.com/holiman/uint256"
)

// segment is a stretch of pool history during which the tick and the active
// liquidity stayed constant. It lasts until the next segment starts.
type segment struct {
	Start     uint64
	Tick      uint32
	Liquidity *uint256.Int
}

func (s segment) tick() int32 { return int32(s.Tick) }

// appendSegment records a new pool state starting at `at`. A change at the
// same second as the previous one replaces it and time never moves backwards.
func appendSegment(history []segment, at uint64, tick int32, liquidity *uint256.Int) []segment {
	next := segment{Start: at, Tick: uint32(tick), Liquidity: new(uint256.Int).Set(liquidity)}
	if n := len(history); n > 0 {
		last := history[n-1]
		if at <= last.Start {
			next.Start = last.Start
			history[n-1] = next
			return history
		}
	}
	return append(history, next)
}

// secondsPerLiquidityInside accumulates dt << 128 / max(liquidity, 1) over
// every second before `at` during which lower <= tick < upper.
func secondsPerLiquidityInside(history []segment, lower, upper int32, at uint64) *uint256.Int {
	total := new(uint256.Int)
	for i, seg := range history {
		if seg.Start >= at {
			break
		}
		end := at
		if i+1 < len(history) && history[i+1].Start < at {
			end = history[i+1].Start
		}
		tick := seg.tick()
		if tick < lower || tick >= upper {
			continue
		}
		total.Add(total, secondsPerLiquidity(end-seg.Start, seg.Liquidity))
	}
	return total
}

func secondsPerLiquidity(dt uint64, liquidity *uint256.Int) *uint256.Int {
	scaled := new(uint256.Int).Lsh(uint256.NewInt(dt), 128)
	divisor := uint256.NewInt(1)
	if liquidity != nil && !liquidity.IsZero() {
		divisor.Set(liquidity)
	}
	return scaled.Div(scaled, divisor)
}
