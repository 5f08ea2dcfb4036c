package batch

import (
	"runtime"

	"github.com/law-makers/revscrape/internal/config"
)

// browserMB is the rough resident size of one headless Chrome session
const browserMB = 150

// OptimalConcurrency picks a session count from CPU and free memory, capped
// at config.DefaultMaxConcurrency.
func OptimalConcurrency() int {
	numCPU := runtime.NumCPU()
	optimal := numCPU

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	availMB := (m.Sys - m.Alloc) / 1024 / 1024
	maxByMemory := int(availMB / browserMB)

	if optimal > config.DefaultMaxConcurrency {
		optimal = config.DefaultMaxConcurrency
	}
	if maxByMemory > 0 && maxByMemory < optimal {
		optimal = maxByMemory
	}
	if optimal < 1 {
		optimal = 1
	}
	return optimal
}
