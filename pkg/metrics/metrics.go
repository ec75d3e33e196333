// Package metrics computes post-run performance statistics from a trade
// journal and equity curve. Statistical accumulators use float64; the
// conversion from exact decimal equity happens once at the boundary. Equity
// conservation itself is asserted in decimal elsewhere.
package metrics

import (
	"math"
	"sort"
	"time"

	"github.com/ridopark/JonBuhReplay/pkg/event"
	"github.com/ridopark/JonBuhReplay/pkg/portfolio"
	"github.com/shopspring/decimal"
)

// DefaultRiskFreeRate is the annual risk-free rate used by Sharpe/Sortino
// when the input leaves it unset.
const DefaultRiskFreeRate = 0.02

// DefaultRollingWindow is the rolling-Sharpe window in bars (one trading
// year of daily bars).
const DefaultRollingWindow = 252

// PeriodsPerYear derives the annualisation factor from a timeframe label.
func PeriodsPerYear(timeframe string) int {
	switch timeframe {
	case "1D", "1d":
		return 252
	case "1W", "1w":
		return 52
	case "1M":
		return 12
	case "1H", "1h":
		return 252 * 7
	default:
		return 252
	}
}

// Input is everything Compute needs. LogicalStartIndex cuts warm-up bars
// out of the measured horizon.
type Input struct {
	Fills             []event.Fill
	Equity            []portfolio.EquityPoint
	InitialCapital    decimal.Decimal
	PeriodsPerYear    int
	LogicalStartIndex int
	RiskFreeRate      float64 // annual; zero selects DefaultRiskFreeRate
	RollingWindow     int     // zero selects DefaultRollingWindow
}

// RollingPoint is one rolling-statistic observation.
type RollingPoint struct {
	Timestamp time.Time
	Value     float64
}

// Report is the full metrics dictionary.
type Report struct {
	// Insufficient flags empty inputs: all values are zero, not errors.
	Insufficient bool `json:"insufficient"`

	// Returns
	TotalReturnPct       float64 `json:"total_return_pct"`
	CAGR                 float64 `json:"cagr"`
	AnnualizedMeanReturn float64 `json:"annualized_mean_return"`

	// Risk
	AnnualizedVolatility float64         `json:"annualized_volatility"`
	SharpeRatio          float64         `json:"sharpe_ratio"`
	SortinoRatio         float64         `json:"sortino_ratio"`
	CalmarRatio          float64         `json:"calmar_ratio"`
	MaxDrawdown          decimal.Decimal `json:"max_drawdown"`
	MaxDrawdownPct       float64         `json:"max_drawdown_pct"`
	DrawdownDurationDays float64         `json:"drawdown_duration_days"`
	RecoveryDate         *time.Time      `json:"recovery_date,omitempty"`

	// Trade stats
	TotalTrades        int     `json:"total_trades"`
	WinningTrades      int     `json:"winning_trades"`
	LosingTrades       int     `json:"losing_trades"`
	WinRate            float64 `json:"win_rate"`
	ProfitFactor       float64 `json:"profit_factor"`
	AvgWin             float64 `json:"avg_win"`
	AvgLoss            float64 `json:"avg_loss"`
	LargestWin         float64 `json:"largest_win"`
	LargestLoss        float64 `json:"largest_loss"`
	AvgHoldingDays     float64 `json:"avg_holding_days"`

	// Time analysis
	MonthlyReturns map[int]map[time.Month]float64 `json:"monthly_returns"`
	YearlyReturns  map[int]float64                `json:"yearly_returns"`
	RollingSharpe  []RollingPoint                 `json:"rolling_sharpe"`

	// Advanced
	OmegaRatio float64 `json:"omega_ratio"`
	VaR95      float64 `json:"var_95"`
	VaR99      float64 `json:"var_99"`
	CVaR95     float64 `json:"cvar_95"`
	UlcerIndex float64 `json:"ulcer_index"`
}

// Compute builds the full report. Empty inputs yield a zero-valued report
// with the Insufficient flag set.
func Compute(in Input) *Report {
	report := &Report{
		MonthlyReturns: make(map[int]map[time.Month]float64),
		YearlyReturns:  make(map[int]float64),
	}

	if in.RiskFreeRate == 0 {
		in.RiskFreeRate = DefaultRiskFreeRate
	}
	if in.RollingWindow == 0 {
		in.RollingWindow = DefaultRollingWindow
	}
	if in.PeriodsPerYear == 0 {
		in.PeriodsPerYear = 252
	}

	equity := in.Equity
	if in.LogicalStartIndex > 0 && in.LogicalStartIndex < len(equity) {
		equity = equity[in.LogicalStartIndex:]
	}
	if len(equity) == 0 || !in.InitialCapital.IsPositive() {
		report.Insufficient = true
		return report
	}

	computeTradeStats(report, in.Fills)
	computeReturns(report, equity, in)
	computeDrawdown(report, equity)
	computeTimeAnalysis(report, equity, in)
	computeAdvanced(report, equity, in)

	if report.MaxDrawdownPct > 0 {
		report.CalmarRatio = report.CAGR / report.MaxDrawdownPct
	}
	return report
}

func periodReturns(equity []portfolio.EquityPoint) []float64 {
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Value.InexactFloat64()
		if prev <= 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, equity[i].Value.InexactFloat64()/prev-1)
	}
	return returns
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) <= 1 {
		return 0
	}
	m := mean(values)
	acc := 0.0
	for _, v := range values {
		acc += (v - m) * (v - m)
	}
	return math.Sqrt(acc / float64(len(values)-1))
}

func computeReturns(report *Report, equity []portfolio.EquityPoint, in Input) {
	initial := in.InitialCapital.InexactFloat64()
	final := equity[len(equity)-1].Value.InexactFloat64()
	report.TotalReturnPct = (final/initial - 1) * 100

	days := equity[len(equity)-1].Timestamp.Sub(equity[0].Timestamp).Hours() / 24
	if days > 0 && initial > 0 && final > 0 {
		report.CAGR = math.Pow(final/initial, 365.25/days) - 1
	}

	returns := periodReturns(equity)
	report.AnnualizedMeanReturn = mean(returns) * float64(in.PeriodsPerYear)
	report.AnnualizedVolatility = stddev(returns) * math.Sqrt(float64(in.PeriodsPerYear))

	if report.AnnualizedVolatility > 0 {
		report.SharpeRatio = (report.AnnualizedMeanReturn - in.RiskFreeRate) / report.AnnualizedVolatility
	}

	// Downside deviation over negative periods only.
	downAcc := 0.0
	downCount := 0
	for _, r := range returns {
		if r < 0 {
			downAcc += r * r
			downCount++
		}
	}
	if downCount > 0 {
		downside := math.Sqrt(downAcc/float64(downCount)) * math.Sqrt(float64(in.PeriodsPerYear))
		if downside > 0 {
			report.SortinoRatio = (report.AnnualizedMeanReturn - in.RiskFreeRate) / downside
		}
	}
}

func computeDrawdown(report *Report, equity []portfolio.EquityPoint) {
	peak := equity[0].Value
	peakTime := equity[0].Timestamp

	maxDD := decimal.Zero
	maxDDPct := 0.0
	var ddStart time.Time
	var recovery *time.Time
	duration := 0.0

	for _, point := range equity {
		if point.Value.GreaterThanOrEqual(peak) {
			if !ddStart.IsZero() {
				// Recovered from the deepest drawdown so far.
				if recovery == nil && maxDD.IsPositive() {
					t := point.Timestamp
					recovery = &t
				}
				ddStart = time.Time{}
			}
			peak = point.Value
			peakTime = point.Timestamp
			continue
		}

		dd := peak.Sub(point.Value)
		ddPct := 0.0
		if peak.IsPositive() {
			ddPct = dd.Div(peak).InexactFloat64()
		}
		if dd.GreaterThan(maxDD) {
			maxDD = dd
			maxDDPct = ddPct
			ddStart = peakTime
			recovery = nil
		}
		if !ddStart.IsZero() {
			d := point.Timestamp.Sub(ddStart).Hours() / 24
			if d > duration {
				duration = d
			}
		}
	}

	report.MaxDrawdown = maxDD
	report.MaxDrawdownPct = maxDDPct
	report.DrawdownDurationDays = duration
	report.RecoveryDate = recovery
}

func computeTradeStats(report *Report, fills []event.Fill) {
	trackers := make(map[string]*positionTracker)

	var totalWins, totalLosses float64
	var holdingAcc float64

	for _, fill := range fills {
		tracker, ok := trackers[fill.Symbol]
		if !ok {
			tracker = &positionTracker{}
			trackers[fill.Symbol] = tracker
		}
		for _, trip := range tracker.processFill(fill) {
			report.TotalTrades++
			holdingAcc += trip.HoldingDays
			if trip.PL > 0 {
				report.WinningTrades++
				totalWins += trip.PL
				if trip.PL > report.LargestWin {
					report.LargestWin = trip.PL
				}
			} else if trip.PL < 0 {
				report.LosingTrades++
				totalLosses += trip.PL
				if trip.PL < report.LargestLoss {
					report.LargestLoss = trip.PL
				}
			}
		}
	}

	if report.TotalTrades > 0 {
		report.WinRate = float64(report.WinningTrades) / float64(report.TotalTrades) * 100
		report.AvgHoldingDays = holdingAcc / float64(report.TotalTrades)
	}
	if report.WinningTrades > 0 {
		report.AvgWin = totalWins / float64(report.WinningTrades)
	}
	if report.LosingTrades > 0 {
		report.AvgLoss = totalLosses / float64(report.LosingTrades)
	}
	if totalLosses != 0 {
		report.ProfitFactor = totalWins / -totalLosses
	}
}

func computeTimeAnalysis(report *Report, equity []portfolio.EquityPoint, in Input) {
	// Month-end and year-end equity values, keyed chronologically.
	type periodKey struct {
		year  int
		month time.Month
	}
	lastOfMonth := make(map[periodKey]float64)
	monthOrder := make([]periodKey, 0)
	for _, point := range equity {
		key := periodKey{point.Timestamp.Year(), point.Timestamp.Month()}
		if _, seen := lastOfMonth[key]; !seen {
			monthOrder = append(monthOrder, key)
		}
		lastOfMonth[key] = point.Value.InexactFloat64()
	}

	prev := in.InitialCapital.InexactFloat64()
	for _, key := range monthOrder {
		value := lastOfMonth[key]
		if prev > 0 {
			if report.MonthlyReturns[key.year] == nil {
				report.MonthlyReturns[key.year] = make(map[time.Month]float64)
			}
			report.MonthlyReturns[key.year][key.month] = value/prev - 1
		}
		prev = value
	}

	lastOfYear := make(map[int]float64)
	yearOrder := make([]int, 0)
	for _, point := range equity {
		year := point.Timestamp.Year()
		if _, seen := lastOfYear[year]; !seen {
			yearOrder = append(yearOrder, year)
		}
		lastOfYear[year] = point.Value.InexactFloat64()
	}
	prev = in.InitialCapital.InexactFloat64()
	for _, year := range yearOrder {
		value := lastOfYear[year]
		if prev > 0 {
			report.YearlyReturns[year] = value/prev - 1
		}
		prev = value
	}

	// Rolling Sharpe over the configured window.
	returns := periodReturns(equity)
	window := in.RollingWindow
	if len(returns) >= window && window > 1 {
		annual := float64(in.PeriodsPerYear)
		for i := window; i <= len(returns); i++ {
			slice := returns[i-window : i]
			vol := stddev(slice) * math.Sqrt(annual)
			value := 0.0
			if vol > 0 {
				value = (mean(slice)*annual - in.RiskFreeRate) / vol
			}
			report.RollingSharpe = append(report.RollingSharpe, RollingPoint{
				Timestamp: equity[i].Timestamp,
				Value:     value,
			})
		}
	}
}

func computeAdvanced(report *Report, equity []portfolio.EquityPoint, in Input) {
	returns := periodReturns(equity)
	if len(returns) == 0 {
		return
	}

	gains := 0.0
	losses := 0.0
	for _, r := range returns {
		if r > 0 {
			gains += r
		} else {
			losses -= r
		}
	}
	if losses > 0 {
		report.OmegaRatio = gains / losses
	}

	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)
	report.VaR95 = -percentile(sorted, 0.05)
	report.VaR99 = -percentile(sorted, 0.01)

	// CVaR: mean of the worst 5% tail.
	cut := percentile(sorted, 0.05)
	tailAcc := 0.0
	tailCount := 0
	for _, r := range sorted {
		if r <= cut {
			tailAcc += r
			tailCount++
		}
	}
	if tailCount > 0 {
		report.CVaR95 = -tailAcc / float64(tailCount)
	}

	// Ulcer index: RMS of percentage drawdowns from the running peak.
	peak := equity[0].Value.InexactFloat64()
	acc := 0.0
	for _, point := range equity {
		value := point.Value.InexactFloat64()
		if value > peak {
			peak = value
		}
		if peak > 0 {
			ddPct := (peak - value) / peak * 100
			acc += ddPct * ddPct
		}
	}
	report.UlcerIndex = math.Sqrt(acc / float64(len(equity)))
}

// percentile returns the element at index floor(q*(n-1)) of a sorted slice;
// values are not interpolated.
func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Floor(q * float64(len(sorted)-1)))
	return sorted[idx]
}
