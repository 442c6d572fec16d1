// Package chaos injects reproducible corruption into flat byte buffers to
// simulate transport and storage faults: bit flips, packet loss and byte
// erasures. Every operation re-derives its DSG state from the injector seed,
// so identical inputs always receive identical corruption.
package chaos

import (
	"errors"
	"fmt"
	"math"

	"github.com/23skdu/vsakit/dsg"
	kerrors "github.com/23skdu/vsakit/internal/errors"
	"github.com/23skdu/vsakit/internal/metrics"
	"github.com/23skdu/vsakit/internal/pool"
)

// DefaultProbability is the injection probability of a fresh Injector.
const DefaultProbability = 0.01

// erasureSeedOffset decorrelates erasure draws from the bit-flip stream.
const erasureSeedOffset = 12345

// Contract violations returned (wrapped) by the injector.
var (
	ErrInvalidRate       = errors.New("rate must be within [0, 1]")
	ErrInvalidPacketSize = errors.New("packet size must be positive")
	ErrNegativeCount     = errors.New("count must be non-negative")
)

// Injector is an immutable corruption configuration. The zero value is an
// injector with seed 0 and probability 0; use New for the defaults.
type Injector struct {
	seed        uint64
	probability float64
}

// New returns an injector with the given seed and DefaultProbability.
func New(seed uint64) Injector {
	return Injector{seed: seed, probability: DefaultProbability}
}

// WithProbability returns a copy with p clamped to [0, 1]. NaN becomes 0.
func (c Injector) WithProbability(p float64) Injector {
	switch {
	case math.IsNaN(p) || p < 0:
		p = 0
	case p > 1:
		p = 1
	}
	c.probability = p
	return c
}

// Seed returns the configured seed.
func (c Injector) Seed() uint64 { return c.seed }

// Probability returns the configured injection probability.
func (c Injector) Probability() float64 { return c.probability }

// CorruptBytes applies floor(len(data)*errorRate) bit-flip events in place and
// returns the number of events. Each event advances the DSG and flips bit
// (state>>8)%8 of byte state%len. The same bit may be hit more than once, so
// the number of differing bits can be lower than the event count.
func (c Injector) CorruptBytes(data []byte, errorRate float64) (int, error) {
	if err := checkRate("chaos.CorruptBytes", "error_rate", errorRate); err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, nil
	}

	n := uint64(len(data))
	numErrors := int(float64(len(data)) * errorRate)
	state := c.seed
	for i := 0; i < numErrors; i++ {
		state, _ = dsg.Next(state)
		pos := state % n
		bit := (state >> 8) % 8
		data[pos] ^= 1 << bit
	}

	metrics.ChaosEventsTotal.WithLabelValues("bitflip").Add(float64(numErrors))
	metrics.ChaosBytesTouchedTotal.WithLabelValues("bitflip").Add(float64(numErrors))
	return numErrors, nil
}

// Corrupt applies CorruptBytes at the injector's configured probability.
func (c Injector) Corrupt(data []byte) (int, error) {
	return c.CorruptBytes(data, c.probability)
}

// CorruptCopy returns a corrupted copy of data; data itself is never modified.
func (c Injector) CorruptCopy(data []byte, errorRate float64) ([]byte, error) {
	corrupted := make([]byte, len(data))
	copy(corrupted, data)
	if _, err := c.CorruptBytes(corrupted, errorRate); err != nil {
		return nil, err
	}
	return corrupted, nil
}

// SimulatePacketLoss splits data into ceil(len/packetSize) packets (the last
// may be short), draws floor(numPackets*lossRate) packet indices and zeroes
// every distinct packet drawn. Colliding draws are not resampled, so at most
// that many packets are dropped. The dropped indices are returned ascending.
func (c Injector) SimulatePacketLoss(data []byte, lossRate float64, packetSize int) ([]int, error) {
	const op = "chaos.SimulatePacketLoss"
	if err := checkRate(op, "loss_rate", lossRate); err != nil {
		return nil, err
	}
	if packetSize <= 0 {
		return nil, kerrors.Contract(ErrInvalidPacketSize, op, fmt.Sprintf("packet_size=%d", packetSize))
	}
	if len(data) == 0 {
		return nil, nil
	}

	numPackets := (len(data) + packetSize - 1) / packetSize
	packetsToDrop := int(float64(numPackets) * lossRate)

	dropped := pool.GetBitmap()
	defer pool.PutBitmap(dropped)

	state := c.seed
	for i := 0; i < packetsToDrop; i++ {
		state, _ = dsg.Next(state)
		dropped.Add(state % uint64(numPackets))
	}

	out := make([]int, 0, dropped.GetCardinality())
	zeroed := 0
	it := dropped.Iterator()
	for it.HasNext() {
		idx := int(it.Next())
		start := idx * packetSize
		end := min(start+packetSize, len(data))
		clear(data[start:end])
		zeroed += end - start
		out = append(out, idx)
	}

	metrics.ChaosEventsTotal.WithLabelValues("packet").Add(float64(len(out)))
	metrics.ChaosBytesTouchedTotal.WithLabelValues("packet").Add(float64(zeroed))
	return out, nil
}

// InjectErasures makes min(count, len(data)) draws and zeroes each drawn byte
// that is not already zero. It returns the distinct positions it changed, in
// draw order; repeats and already-zero bytes are not retried, so the result
// may be shorter than count.
func (c Injector) InjectErasures(data []byte, count int) ([]int, error) {
	if count < 0 {
		return nil, kerrors.Contract(ErrNegativeCount, "chaos.InjectErasures", fmt.Sprintf("count=%d", count))
	}
	if len(data) == 0 || count == 0 {
		return nil, nil
	}

	n := uint64(len(data))
	draws := min(count, len(data))
	erased := make([]int, 0, draws)
	state := c.seed + erasureSeedOffset
	for i := 0; i < draws; i++ {
		state, _ = dsg.Next(state)
		pos := state % n
		if data[pos] != 0 {
			data[pos] = 0
			erased = append(erased, int(pos))
		}
	}

	metrics.ChaosEventsTotal.WithLabelValues("erasure").Add(float64(len(erased)))
	metrics.ChaosBytesTouchedTotal.WithLabelValues("erasure").Add(float64(len(erased)))
	return erased, nil
}

func checkRate(op, field string, rate float64) error {
	if math.IsNaN(rate) || rate < 0 || rate > 1 {
		return kerrors.Contract(ErrInvalidRate, op, fmt.Sprintf("%s=%v", field, rate))
	}
	return nil
}
