package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"trading-engine/internal/backtest"
	"trading-engine/internal/database"
	"trading-engine/internal/learning"
	"trading-engine/internal/market"
)

// analyzeRequest carries candle windows keyed by timeframe label
type analyzeRequest struct {
	Symbol  string                     `json:"symbol" binding:"required"`
	Candles map[string][]market.Candle `json:"candles" binding:"required"`
}

// signalRequest runs the full analyze-then-generate pipeline
type signalRequest struct {
	Symbol       string                     `json:"symbol" binding:"required"`
	Candles      map[string][]market.Candle `json:"candles" binding:"required"`
	CurrentPrice float64                    `json:"current_price"`
}

// backtestRequest replays one candle series, optionally over a threshold grid
type backtestRequest struct {
	Symbol     string          `json:"symbol" binding:"required"`
	Timeframe  string          `json:"timeframe"`
	Candles    []market.Candle `json:"candles" binding:"required"`
	Threshold  float64         `json:"threshold"`
	Thresholds []float64       `json:"thresholds"`
}

func (s *Server) handleHealth(c *gin.Context) {
	state, _ := s.performance.State()
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"trading_state": state,
		"time":          time.Now().UTC(),
	})
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := s.confluence.Analyse(req.Symbol, req.Candles)
	s.eventBus.PublishAnalysisComplete(result.Symbol, string(result.Direction), result.ConfluenceScore)
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleSignal(c *gin.Context) {
	var req signalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	consensus := s.confluence.Analyse(req.Symbol, req.Candles)

	// The kill switch is advisory: the tracker only flags the pause, so
	// signal generation has to stop here.
	if s.performance.IsPaused() {
		c.JSON(http.StatusOK, gin.H{
			"signal":         nil,
			"consensus":      consensus,
			"trading_paused": true,
		})
		return
	}

	// Indicators from the fastest timeframe drive entry and stop placement
	vec := s.confluence.EntryVector(req.Candles)

	sig := s.generator.Generate(consensus, vec, req.CurrentPrice)
	if sig == nil {
		c.JSON(http.StatusOK, gin.H{
			"signal":         nil,
			"consensus":      consensus,
			"trading_paused": false,
		})
		return
	}

	s.eventBus.PublishSignalGenerated(sig.ID, sig.Symbol, string(sig.Direction),
		sig.EntryPrice, sig.StopLoss, sig.TakeProfit)

	c.JSON(http.StatusOK, gin.H{
		"signal":         sig,
		"consensus":      consensus,
		"trading_paused": false,
	})
}

func (s *Server) handleBacktest(c *gin.Context) {
	var req backtestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Timeframe == "" {
		req.Timeframe = market.TimeframeH1
	}
	if req.Threshold == 0 {
		req.Threshold = s.confluence.Threshold()
	}

	if len(req.Thresholds) > 0 {
		results, err := s.backtester.RunGrid(c.Request.Context(), req.Candles, req.Symbol, req.Timeframe, req.Thresholds)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		for i := range results {
			s.persistBacktest(c, results[i])
		}
		c.JSON(http.StatusOK, gin.H{"results": results})
		return
	}

	result := s.backtester.Run(req.Candles, req.Symbol, req.Timeframe, req.Threshold)
	s.persistBacktest(c, result)
	s.eventBus.PublishBacktestComplete(result.Symbol, result.Timeframe, result.TotalTrades, result.NetProfit)
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleOutcome(c *gin.Context) {
	var outcome learning.TradeOutcome
	if err := c.ShouldBindJSON(&outcome); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if outcome.Symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}
	if outcome.ExitTime.IsZero() {
		outcome.ExitTime = time.Now()
	}

	learnStatus := s.learner.RecordOutcome(outcome)
	mistakes := s.mistakes.Analyse(outcome)
	snapshot := s.performance.RecordTrade(outcome)

	// Mistake events come from the tracker's own observers
	s.eventBus.PublishTradeOutcome(outcome.Symbol, string(outcome.Direction), outcome.Result, outcome.PnL)
	if learnStatus == learning.StatusRetrained {
		s.eventBus.PublishModelRetrained(len(s.learner.BufferedOutcomes()))
	}

	state, reason := s.performance.State()
	if state == learning.StatePaused {
		s.eventBus.PublishTradingPaused(reason)
	}
	s.saveTrackerState(c)

	if s.repo != nil {
		if _, err := s.repo.SaveOutcome(c.Request.Context(), outcome); err != nil {
			s.logger.Error().Err(err).Msg("failed to persist outcome")
		}
		for _, m := range mistakes {
			if _, err := s.repo.SaveMistake(c.Request.Context(), m); err != nil {
				s.logger.Error().Err(err).Msg("failed to persist mistake")
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"learning_status": learnStatus,
		"mistakes":        mistakes,
		"performance":     snapshot,
		"trading_state":   state,
		"pause_reason":    reason,
	})
}

func (s *Server) handlePerformance(c *gin.Context) {
	state, reason := s.performance.State()
	balance, peak := s.performance.Balances()
	c.JSON(http.StatusOK, gin.H{
		"state":        state,
		"pause_reason": reason,
		"balance":      balance,
		"peak":         peak,
		"snapshot":     s.performance.Snapshot(),
	})
}

func (s *Server) handleResume(c *gin.Context) {
	s.performance.Resume()
	s.eventBus.PublishTradingResumed()
	s.saveTrackerState(c)

	state, _ := s.performance.State()
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (s *Server) handleMistakes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"summary": s.mistakes.Summary(),
		"history": s.mistakes.History(),
	})
}

// persistBacktest writes a run to the repository when one is configured
func (s *Server) persistBacktest(c *gin.Context, result backtest.Result) {
	if s.repo == nil {
		return
	}
	if _, err := s.repo.SaveBacktestRun(c.Request.Context(), result); err != nil {
		s.logger.Error().Err(err).Msg("failed to persist backtest run")
	}
}

// saveTrackerState snapshots the kill switch so a restart resumes in the
// same state
func (s *Server) saveTrackerState(c *gin.Context) {
	if s.stateStore == nil {
		return
	}
	state, reason := s.performance.State()
	balance, peak := s.performance.Balances()
	s.stateStore.Save(c.Request.Context(), database.TrackerState{
		State:       state,
		PauseReason: reason,
		Balance:     balance,
		Peak:        peak,
	})
}

func (s *Server) handleBacktestRuns(c *gin.Context) {
	if s.repo == nil {
		c.JSON(http.StatusOK, gin.H{"runs": []struct{}{}})
		return
	}
	runs, err := s.repo.RecentBacktestRuns(c.Request.Context(), c.Query("symbol"), 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}
