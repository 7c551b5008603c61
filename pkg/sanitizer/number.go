package sanitizer

import "sort"

// NormalizeSlotNumbers deduplicates and sorts requested slot numbers,
// dropping anything outside the 1..capacity range.
func NormalizeSlotNumbers(slots []int, capacity int) []int {
	seen := make(map[int]bool)
	result := make([]int, 0, len(slots))

	for _, n := range slots {
		if n < 1 || n > capacity {
			continue
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		result = append(result, n)
	}

	sort.Ints(result)
	return result
}
