package utils

import "math/bits"

// IsPowerOfTwo checks if a number is a power of 2
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Log2 computes the base-2 logarithm of a power of 2
func Log2(n int) int {
	if !IsPowerOfTwo(n) {
		return -1
	}
	return bits.TrailingZeros(uint(n))
}

// NextPowerOfTwo returns the smallest power of 2 >= n
func NextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// CeilLog2 returns the smallest k with 2^k >= n
func CeilLog2(n int) int {
	return Log2(NextPowerOfTwo(n))
}

// Capacity returns 2^k, the number of rows of a circuit of size k
func Capacity(k int) int {
	return 1 << k
}

// CeilDiv returns ⌈a/b⌉ for positive b
func CeilDiv(a, b int) int {
	return (a + b - 1) / b
}
