// Package sysmem reports the physical memory of the host. The extractor
// uses it to bound how much node accumulation state a run plans for.
package sysmem

// FallbackBytes is assumed when the platform cannot report its memory.
const FallbackBytes uint64 = 4 << 30

// Total returns the physical memory in bytes. detected is false when
// FallbackBytes was substituted.
func Total() (bytes uint64, detected bool) {
	if b, ok := physicalMemory(); ok && b > 0 {
		return b, true
	}
	return FallbackBytes, false
}

// Budget is the share of physical memory a run may plan to hold: half,
// leaving the rest to the page cache that serves the input and outputs.
func Budget() uint64 {
	b, _ := Total()
	return b / 2
}
