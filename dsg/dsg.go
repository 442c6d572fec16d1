// Package dsg implements the deterministic sequence generator shared by every
// seeded component of the harness: a 64-bit linear congruential generator
// with Knuth's MMIX multiplier and an increment of 1.
//
// Fixtures built from the same seed are byte-identical no matter which
// component produced them, because all of them step the state through Next.
package dsg

const (
	// Multiplier is the LCG multiplier (Knuth MMIX).
	Multiplier uint64 = 6364136223846793005
	// Increment is the LCG increment.
	Increment uint64 = 1
)

// Next advances state once and returns the new state together with the word
// produced by the step. The word is the new state itself.
func Next(state uint64) (newState, word uint64) {
	newState = state*Multiplier + Increment
	return newState, newState
}

// Sequence is a small owned wrapper around Next for loops. It is not safe for
// concurrent use; give every goroutine its own Sequence.
type Sequence struct {
	state uint64
}

// New returns a Sequence whose first word is Next(seed).
func New(seed uint64) *Sequence {
	return &Sequence{state: seed}
}

// Uint64 advances the sequence and returns the next word.
func (s *Sequence) Uint64() uint64 {
	s.state, _ = Next(s.state)
	return s.state
}

// State returns the current state without advancing.
func (s *Sequence) State() uint64 {
	return s.state
}

// IntN returns word mod n. It returns 0 if n <= 0.
// The reduction is a plain modulo so results match the other seeded
// components draw for draw.
func (s *Sequence) IntN(n int) int {
	if n <= 0 {
		return 0
	}
	return int(s.Uint64() % uint64(n))
}
