package backtest

import (
	"math"

	"perpmm/pkg/types"
)

// computeMetrics derives the BacktestResult from the filled-order history and
// equity curve accumulated during Run, per spec §4.9's metrics section.
func computeMetrics(
	filledHistory []*types.RestingOrder,
	equity []types.EquityPoint,
	spreads []float64,
	startBalance, endBalance float64,
	placed, filled int,
) types.BacktestResult {
	result := types.BacktestResult{
		StartBalance: startBalance,
		EndBalance:   endBalance,
		TotalPnl:     endBalance - startBalance,
	}

	if placed > 0 {
		result.FillRate = float64(filled) / float64(placed)
	}
	if len(spreads) > 0 {
		var sum float64
		for _, s := range spreads {
			sum += s
		}
		result.AvgSpread = sum / float64(len(spreads))
	}

	// Round-trip detection: consecutive filled orders on opposite sides close
	// a trade. prev.Size is the quantity closed (spec's accepted path-dependent
	// rule — see the open question on sequential same-bar fills).
	var wins, losses int
	var sumWins, sumLosses float64
	var largestWin, largestLoss float64

	for i := 1; i < len(filledHistory); i++ {
		prev, cur := filledHistory[i-1], filledHistory[i]
		if prev.Side == cur.Side {
			continue
		}
		result.TotalVolume += prev.Size * prev.FillPrice
		result.NumTrades++

		var pnl float64
		if prev.Side == types.Bid {
			pnl = prev.Size * (cur.FillPrice - prev.FillPrice)
		} else {
			pnl = prev.Size * (prev.FillPrice - cur.FillPrice)
		}

		if pnl >= 0 {
			wins++
			sumWins += pnl
			if pnl > largestWin {
				largestWin = pnl
			}
		} else {
			losses++
			sumLosses += -pnl
			if -pnl > largestLoss {
				largestLoss = -pnl
			}
		}
	}
	if len(filledHistory) > 0 {
		result.TotalVolume += filledHistory[len(filledHistory)-1].Size * filledHistory[len(filledHistory)-1].FillPrice
	}

	result.NumWins = wins
	result.NumLosses = losses
	if result.NumTrades > 0 {
		result.WinRate = float64(wins) / float64(result.NumTrades)
	}
	if wins > 0 {
		result.AvgWin = sumWins / float64(wins)
	}
	if losses > 0 {
		result.AvgLoss = sumLosses / float64(losses)
	}
	result.LargestWin = largestWin
	result.LargestLoss = largestLoss
	if sumLosses > 0 {
		result.ProfitFactor = sumWins / sumLosses
	}

	returns := make([]float64, 0, len(equity))
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, (equity[i].Equity-prev)/prev)
	}
	if len(returns) > 0 {
		mean, stddev := meanStddev(returns)
		if stddev > 0 {
			result.SharpeRatio = mean / stddev * math.Sqrt(252)
		}
	}

	maxDD, avgDD, longestDD := drawdownStats(equity)
	result.MaxDrawdown = maxDD
	result.AvgDrawdown = avgDD
	result.LongestDD = longestDD
	if maxDD > 0 && startBalance > 0 {
		totalReturn := (endBalance - startBalance) / startBalance
		result.Calmar = totalReturn / maxDD
	}

	return result
}

func meanStddev(xs []float64) (mean, stddev float64) {
	n := float64(len(xs))
	for _, x := range xs {
		mean += x
	}
	mean /= n
	var variance float64
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= n
	return mean, math.Sqrt(variance)
}

// drawdownStats walks the equity curve tracking the running peak. A
// drawdown interval runs from the bar after a new peak until equity
// recovers to that peak (or the series ends).
func drawdownStats(equity []types.EquityPoint) (maxDD, avgDD float64, longestDD int) {
	if len(equity) == 0 {
		return 0, 0, 0
	}

	peak := equity[0].Equity
	var inDrawdown bool
	var ddStart int
	var ddSum float64
	var ddCount int

	for i, p := range equity {
		if p.Equity >= peak {
			if inDrawdown {
				ddSum += (peak - minEquity(equity[ddStart:i])) / peak
				ddCount++
				if i-ddStart > longestDD {
					longestDD = i - ddStart
				}
				inDrawdown = false
			}
			peak = p.Equity
			continue
		}
		if !inDrawdown {
			inDrawdown = true
			ddStart = i
		}
		dd := (peak - p.Equity) / peak
		if dd > maxDD {
			maxDD = dd
		}
	}
	if inDrawdown {
		ddSum += (peak - minEquity(equity[ddStart:])) / peak
		ddCount++
		if len(equity)-ddStart > longestDD {
			longestDD = len(equity) - ddStart
		}
	}
	if ddCount > 0 {
		avgDD = ddSum / float64(ddCount)
	}
	return maxDD, avgDD, longestDD
}

func minEquity(points []types.EquityPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	min := points[0].Equity
	for _, p := range points[1:] {
		if p.Equity < min {
			min = p.Equity
		}
	}
	return min
}
