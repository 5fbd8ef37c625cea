package config

import (
	"os"
	"strconv"
	"strings"
)

// ZeroStaleCounters controls whether the reconcile pass resets per-type
// counters to 0 when a crew no longer holds any assigned unit of that type.
// Counters are never deleted, only zeroed.
//
// Set via env:
// - STOCK_ZERO_STALE_COUNTERS=true
func ZeroStaleCounters() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STOCK_ZERO_STALE_COUNTERS")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// LookupConcurrency bounds the registry-lookup fan-out inside the migration
// pass. Each stock record has a distinct target document, so completion
// order does not affect correctness.
//
// Set via env:
// - STOCK_LOOKUP_CONCURRENCY=8
func LookupConcurrency() int {
	v := strings.TrimSpace(os.Getenv("STOCK_LOOKUP_CONCURRENCY"))
	if v == "" {
		return 8
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 8
	}
	return n
}
