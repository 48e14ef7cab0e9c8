package domain

import "fmt"

// Strategy selects how a decrement is made consistent. Strategies are
// interchangeable per product but must never be mixed for the same product
// concurrently.
type Strategy string

const (
	// StrategyDirect decrements under an exclusive row lock.
	StrategyDirect Strategy = "direct"
	// StrategyOptimistic decrements with a version check and bounded retry.
	StrategyOptimistic Strategy = "optimistic"
	// StrategyQueued serializes decrements through a partitioned FIFO queue
	// into an atomic cache script.
	StrategyQueued Strategy = "queued"
)

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyDirect, StrategyOptimistic, StrategyQueued:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown strategy %q", s)
}
