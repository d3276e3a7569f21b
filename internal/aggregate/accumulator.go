package aggregate

import (
	"fmt"
	"math/big"

	"minidex/internal/amm"
	"minidex/internal/model"
)

// Accumulator holds aggregate values for a pool window.
type Accumulator struct {
	PoolAddress     string
	TokenA          string
	TokenB          string
	FeeRateBps      uint16
	WindowStart     uint64
	WindowEnd       uint64
	SwapCount       uint64
	LiquidityEvents uint64
	VolumeA         *big.Int
	VolumeB         *big.Int
	FeeA            *big.Int
	FeeB            *big.Int
	ReserveA        uint64
	ReserveB        uint64
	LPSupply        uint64
	LastSeq         uint64
	FirstSeq        uint64
	FirstTS         uint64
}

func NewAccumulator(record model.EventRecord, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		PoolAddress: record.Pool,
		TokenA:      record.TokenA,
		TokenB:      record.TokenB,
		FeeRateBps:  record.FeeRateBps,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		VolumeA:     big.NewInt(0),
		VolumeB:     big.NewInt(0),
		FeeA:        big.NewInt(0),
		FeeB:        big.NewInt(0),
		FirstSeq:    record.Seq,
		FirstTS:     record.Timestamp,
	}
}

// AddEvent folds one event into the window. Reserves always follow the
// event with the highest seq seen so far.
func (a *Accumulator) AddEvent(record model.EventRecord) error {
	if record.Seq >= a.LastSeq {
		a.LastSeq = record.Seq
		a.ReserveA = record.ReserveA
		a.ReserveB = record.ReserveB
		a.LPSupply = record.TotalLPSupply
	}
	if record.Seq < a.FirstSeq {
		a.FirstSeq = record.Seq
		a.FirstTS = record.Timestamp
	}

	switch record.Kind {
	case model.EventSwap:
		return a.applySwap(record)
	case model.EventLiquidityAdded, model.EventLiquidityRemoved:
		a.LiquidityEvents++
	}
	return nil
}

func (a *Accumulator) applySwap(record model.EventRecord) error {
	dir, err := amm.ParseDirection(record.Direction)
	if err != nil {
		return fmt.Errorf("swap %d: %w", record.Seq, err)
	}

	in := new(big.Int).SetUint64(record.AmountIn)
	out := new(big.Int).SetUint64(record.AmountOut)
	fee := new(big.Int).SetUint64(record.Fee)
	if dir == amm.AToB {
		a.VolumeA.Add(a.VolumeA, in)
		a.VolumeB.Add(a.VolumeB, out)
		a.FeeA.Add(a.FeeA, fee)
	} else {
		a.VolumeB.Add(a.VolumeB, in)
		a.VolumeA.Add(a.VolumeA, out)
		a.FeeB.Add(a.FeeB, fee)
	}

	a.SwapCount++
	return nil
}
