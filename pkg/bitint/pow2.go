// SPDX-License-Identifier: MIT
/*
Package bitint provides the power-of-two helpers used to size FFT windows
and ring buffers in the spectral engine.

Design Principles:
- Zero Allocations: All operations use stack memory only
- Predictable Performance: O(1) constant time operations
- Real-Time Safe: No locks, syscalls, or blocking operations

Usage:

	// Validate an analysis window size
	ok := bitint.IsPowerOfTwo(1024)

	// Round a requested ring capacity up
	slots := bitint.NextPowerOfTwo(60) // 64

	// Number of FFT stages
	stages := bitint.Log2(1024) // 10

NextPowerOfTwo subtracts one before taking the bit length so that exact
powers of two are preserved: bits.Len(7) = 3 and 1<<3 = 8, whereas
bits.Len(8) = 4 would double the input.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo checks if n is a power of 2. Powers of two have a single bit
// set, so n&(n-1) clears it and leaves zero.
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   Not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Log2 returns floor(log2(n)) for n > 0 and -1 otherwise.
func Log2(n int) int {
	if n <= 0 {
		return -1
	}
	return bits.Len(uint(n)) - 1
}

// InRange reports whether n is a power of two within [lo, hi].
func InRange(n, lo, hi int) bool {
	return IsPowerOfTwo(n) && n >= lo && n <= hi
}
