package backtest

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"trading-engine/internal/market"
)

// RunGrid evaluates the same candle window across a grid of confluence
// thresholds, one independent run per threshold. Runs execute concurrently
// with a bounded worker count; result order matches the threshold order.
func (e *Engine) RunGrid(ctx context.Context, candles []market.Candle, symbol, timeframe string, thresholds []float64) ([]Result, error) {
	results := make([]Result, len(thresholds))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(runtime.GOMAXPROCS(0))
	for i, threshold := range thresholds {
		i, threshold := i, threshold
		group.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			results[i] = e.Run(candles, symbol, timeframe, threshold)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
