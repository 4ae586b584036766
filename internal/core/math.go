package core

import "math"

// CheckedAdd returns a+b, or ErrArithmeticOverflow if the sum would wrap.
// Balances and counters are only ever mutated through these helpers;
// silent saturation or wrapping is never acceptable.
func CheckedAdd(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrArithmeticOverflow
	}
	return a + b, nil
}

// CheckedSub returns a-b, or ErrArithmeticUnderflow if b exceeds a.
func CheckedSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrArithmeticUnderflow
	}
	return a - b, nil
}

// CheckedAdd32 returns a+b for uint32 counters (participant counts).
func CheckedAdd32(a, b uint32) (uint32, error) {
	if a > math.MaxUint32-b {
		return 0, ErrArithmeticOverflow
	}
	return a + b, nil
}

// CheckedSub32 returns a-b for uint32 counters.
func CheckedSub32(a, b uint32) (uint32, error) {
	if b > a {
		return 0, ErrArithmeticUnderflow
	}
	return a - b, nil
}
