// Package dataset generates the deterministic keys and values used by tests,
// benchmarks and the demo programs.
package dataset

import "strconv"

// ItemKey returns the key for index idx, formatted as "item-<idx>".
func ItemKey(idx int) string {
	return "item-" + strconv.Itoa(idx)
}

// ItemValue returns the value for n, formatted as "value-<n>".
func ItemValue(n uint32) string {
	return "value-" + strconv.FormatUint(uint64(n), 10)
}

// Fill calls put for the first n item keys in order, pairing item-i with value-i.
func Fill(n int, put func(key, value string)) {
	for i := 0; i < n; i++ {
		put(ItemKey(i), ItemValue(uint32(i)))
	}
}
