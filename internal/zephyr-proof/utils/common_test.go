package utils

import "testing"

// TestIsPowerOfTwo tests the IsPowerOfTwo function
func TestIsPowerOfTwo(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		expected bool
	}{
		{"zero", 0, false},
		{"negative", -1, false},
		{"one", 1, true},
		{"two", 2, true},
		{"three", 3, false},
		{"sixteen", 16, true},
		{"chunk capacity", 1 << 14, true},
		{"one past capacity", 1<<14 + 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPowerOfTwo(tt.input); got != tt.expected {
				t.Errorf("IsPowerOfTwo(%d) = %v, expected %v", tt.input, got, tt.expected)
			}
		})
	}
}

// TestLog2 tests the Log2 function
func TestLog2(t *testing.T) {
	tests := []struct {
		input    int
		expected int
	}{
		{1, 0},
		{2, 1},
		{1024, 10},
		{1 << 24, 24},
		{3, -1},
		{0, -1},
		{-8, -1},
	}

	for _, tt := range tests {
		if got := Log2(tt.input); got != tt.expected {
			t.Errorf("Log2(%d) = %d, expected %d", tt.input, got, tt.expected)
		}
	}
}

// TestNextPowerOfTwo tests NextPowerOfTwo and CeilLog2
func TestNextPowerOfTwo(t *testing.T) {
	tests := []struct {
		input    int
		next     int
		ceilLog2 int
	}{
		{-3, 1, 0},
		{0, 1, 0},
		{1, 1, 0},
		{2, 2, 1},
		{3, 4, 2},
		{5, 8, 3},
		{1000, 1024, 10},
		{1024, 1024, 10},
		{1025, 2048, 11},
	}

	for _, tt := range tests {
		if got := NextPowerOfTwo(tt.input); got != tt.next {
			t.Errorf("NextPowerOfTwo(%d) = %d, expected %d", tt.input, got, tt.next)
		}
		if got := CeilLog2(tt.input); got != tt.ceilLog2 {
			t.Errorf("CeilLog2(%d) = %d, expected %d", tt.input, got, tt.ceilLog2)
		}
	}
}

func TestCapacityAndCeilDiv(t *testing.T) {
	if Capacity(4) != 16 {
		t.Errorf("Capacity(4) = %d", Capacity(4))
	}
	if CeilDiv(10, 4) != 3 || CeilDiv(8, 4) != 2 || CeilDiv(1, 4) != 1 {
		t.Error("CeilDiv rounds incorrectly")
	}
}
