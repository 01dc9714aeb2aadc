package api

import (
	"math"
	"time"

	"perpmm/internal/config"
	"perpmm/internal/quoteengine"
	"perpmm/internal/venue"
)

// MarketSnapshotProvider is the read-only surface the dashboard needs from
// the running quote engine.
type MarketSnapshotProvider interface {
	Snapshot() []quoteengine.MarketSnapshot
	AccountSnapshot() venue.AccountInfo
}

// BuildSnapshot aggregates state from the quote engine and risk config into
// a dashboard snapshot.
func BuildSnapshot(provider MarketSnapshotProvider, cfg config.Config) DashboardSnapshot {
	marketSnaps := provider.Snapshot()
	acct := provider.AccountSnapshot()

	markets := make([]MarketStatus, 0, len(marketSnaps))
	var totalRealized, totalUnrealized float64
	for _, ms := range marketSnaps {
		status := convertMarketStatus(ms)
		totalRealized += status.Position.RealizedPnL
		totalUnrealized += status.Position.UnrealizedPnL
		markets = append(markets, status)
	}

	return DashboardSnapshot{
		Timestamp:       time.Now(),
		Markets:         markets,
		TotalRealized:   totalRealized,
		TotalUnrealized: totalUnrealized,
		TotalPnL:        totalRealized + totalUnrealized,
		Risk:            buildRiskSnapshot(acct, cfg.Risk),
		Config:          NewConfigSummary(cfg),
	}
}

func convertMarketStatus(ms quoteengine.MarketSnapshot) MarketStatus {
	status := MarketStatus{
		MarketID: ms.MarketID,
		Symbol:   ms.Symbol,
		State:    string(ms.State),
		TickSize: ms.TickSize,
		IsStale:  !ms.HasBook || ms.State == quoteengine.StateSuppressed,
		Position: PositionSnapshot{
			Size:          ms.Position.Size,
			EntryPrice:    ms.Position.EntryPrice,
			RealizedPnL:   ms.Position.RealizedPnL,
			UnrealizedPnL: ms.Position.UnrealizedPnL,
			ExposureUSD:   math.Abs(ms.Position.Size * ms.Position.EntryPrice),
		},
	}

	if ms.HasBook {
		if bid, ask, ok := ms.Book.BestBidAsk(); ok {
			status.BestBid = bid
			status.BestAsk = ask
			status.MidPrice = (bid + ask) / 2
			status.Spread = (ask - bid) / status.MidPrice
		}
		status.LastUpdated = ms.Book.Timestamp
	}

	if ms.LastQuote != nil {
		status.ActiveBid = &QuoteInfo{Price: ms.LastQuote.BestBid, Timestamp: ms.LastQuote.Timestamp}
		status.ActiveAsk = &QuoteInfo{Price: ms.LastQuote.BestAsk, Timestamp: ms.LastQuote.Timestamp}
	}

	return status
}

func buildRiskSnapshot(acct venue.AccountInfo, cfg config.RiskConfig) RiskSnapshot {
	var totalNotional float64
	for _, pos := range acct.Positions {
		totalNotional += math.Abs(pos.Size * pos.EntryPrice)
	}

	var exposurePct float64
	if acct.Balance.Total > 0 && cfg.MaxTotalExposure > 0 {
		exposurePct = (totalNotional / acct.Balance.Total) / cfg.MaxTotalExposure
	}

	return RiskSnapshot{
		Leverage:          acct.Leverage,
		MinMarginFraction: cfg.MinMarginFraction,

		AvailableBalance:  acct.Balance.Available,
		TotalBalance:      acct.Balance.Total,
		MinFreeCollateral: cfg.MinFreeCollateral,

		TotalNotional:    totalNotional,
		MaxTotalExposure: cfg.MaxTotalExposure,
		ExposurePct:      exposurePct,

		MaxExposurePerMarket: cfg.MaxExposurePerMarket,
	}
}
