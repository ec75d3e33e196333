// Package indicator provides pure technical-analysis functions over ordered
// price series. Every function returns a series of the same length as its
// input, with invalid (insufficient-history) leading entries rather than a
// truncated slice. All price arithmetic is decimal; the only binary-float
// step is the square root inside standard deviation, re-quantized through
// decimal.NewFromFloat.
package indicator

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	two     = decimal.NewFromInt(2)
)

func valid(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

func checkInput(name string, length, period int) error {
	if period <= 0 {
		return fmt.Errorf("%s: period must be positive, got %d", name, period)
	}
	if length == 0 {
		return fmt.Errorf("%s: empty input series", name)
	}
	return nil
}

// SMA computes the simple moving average. Entries before index period-1 are
// invalid.
func SMA(values []decimal.Decimal, period int) ([]decimal.NullDecimal, error) {
	if err := checkInput("SMA", len(values), period); err != nil {
		return nil, err
	}

	out := make([]decimal.NullDecimal, len(values))
	sum := decimal.Zero
	for i, v := range values {
		sum = sum.Add(v)
		if i >= period {
			sum = sum.Sub(values[i-period])
		}
		if i >= period-1 {
			out[i] = valid(sum.Div(decimal.NewFromInt(int64(period))))
		}
	}
	return out, nil
}

// EMA computes the exponential moving average, seeded with the SMA of the
// first period values.
func EMA(values []decimal.Decimal, period int) ([]decimal.NullDecimal, error) {
	if err := checkInput("EMA", len(values), period); err != nil {
		return nil, err
	}

	out := make([]decimal.NullDecimal, len(values))
	if len(values) < period {
		return out, nil
	}

	multiplier := two.Div(decimal.NewFromInt(int64(period) + 1))
	one := decimal.NewFromInt(1)

	seed := decimal.Zero
	for _, v := range values[:period] {
		seed = seed.Add(v)
	}
	ema := seed.Div(decimal.NewFromInt(int64(period)))
	out[period-1] = valid(ema)

	for i := period; i < len(values); i++ {
		ema = values[i].Mul(multiplier).Add(ema.Mul(one.Sub(multiplier)))
		out[i] = valid(ema)
	}
	return out, nil
}

// WMA computes the linearly weighted moving average (weights 1..period,
// most recent heaviest).
func WMA(values []decimal.Decimal, period int) ([]decimal.NullDecimal, error) {
	if err := checkInput("WMA", len(values), period); err != nil {
		return nil, err
	}

	out := make([]decimal.NullDecimal, len(values))
	weightSum := decimal.NewFromInt(int64(period) * int64(period+1) / 2)
	for i := period - 1; i < len(values); i++ {
		acc := decimal.Zero
		for j := 0; j < period; j++ {
			weight := decimal.NewFromInt(int64(j + 1))
			acc = acc.Add(values[i-period+1+j].Mul(weight))
		}
		out[i] = valid(acc.Div(weightSum))
	}
	return out, nil
}

// RSI computes the Relative Strength Index with Wilder smoothing. When the
// average loss is zero the value is 100; when the average gain is zero it
// is 0.
func RSI(values []decimal.Decimal, period int) ([]decimal.NullDecimal, error) {
	if err := checkInput("RSI", len(values), period); err != nil {
		return nil, err
	}

	out := make([]decimal.NullDecimal, len(values))
	if len(values) <= period {
		return out, nil
	}

	periodDec := decimal.NewFromInt(int64(period))
	periodMinusOne := decimal.NewFromInt(int64(period) - 1)

	avgGain := decimal.Zero
	avgLoss := decimal.Zero
	for i := 1; i <= period; i++ {
		change := values[i].Sub(values[i-1])
		if change.IsPositive() {
			avgGain = avgGain.Add(change)
		} else {
			avgLoss = avgLoss.Add(change.Neg())
		}
	}
	avgGain = avgGain.Div(periodDec)
	avgLoss = avgLoss.Div(periodDec)
	out[period] = valid(rsiValue(avgGain, avgLoss))

	for i := period + 1; i < len(values); i++ {
		change := values[i].Sub(values[i-1])
		gain := decimal.Zero
		loss := decimal.Zero
		if change.IsPositive() {
			gain = change
		} else {
			loss = change.Neg()
		}
		avgGain = avgGain.Mul(periodMinusOne).Add(gain).Div(periodDec)
		avgLoss = avgLoss.Mul(periodMinusOne).Add(loss).Div(periodDec)
		out[i] = valid(rsiValue(avgGain, avgLoss))
	}
	return out, nil
}

func rsiValue(avgGain, avgLoss decimal.Decimal) decimal.Decimal {
	if avgLoss.IsZero() {
		return hundred
	}
	rs := avgGain.Div(avgLoss)
	return hundred.Sub(hundred.Div(decimal.NewFromInt(1).Add(rs)))
}

// MACD computes the Moving Average Convergence Divergence: the MACD line
// (fast EMA minus slow EMA), its signal line (EMA of the MACD line), and the
// histogram (line minus signal).
func MACD(values []decimal.Decimal, fastPeriod, slowPeriod, signalPeriod int) (line, signal, histogram []decimal.NullDecimal, err error) {
	if err := checkInput("MACD", len(values), fastPeriod); err != nil {
		return nil, nil, nil, err
	}
	if slowPeriod <= 0 || signalPeriod <= 0 {
		return nil, nil, nil, fmt.Errorf("MACD: periods must be positive, got %d/%d/%d", fastPeriod, slowPeriod, signalPeriod)
	}
	if fastPeriod >= slowPeriod {
		return nil, nil, nil, fmt.Errorf("MACD: fast period %d must be below slow period %d", fastPeriod, slowPeriod)
	}

	fast, err := EMA(values, fastPeriod)
	if err != nil {
		return nil, nil, nil, err
	}
	slow, err := EMA(values, slowPeriod)
	if err != nil {
		return nil, nil, nil, err
	}

	line = make([]decimal.NullDecimal, len(values))
	signal = make([]decimal.NullDecimal, len(values))
	histogram = make([]decimal.NullDecimal, len(values))

	lineValues := make([]decimal.Decimal, 0, len(values))
	firstLine := -1
	for i := range values {
		if fast[i].Valid && slow[i].Valid {
			if firstLine < 0 {
				firstLine = i
			}
			line[i] = valid(fast[i].Decimal.Sub(slow[i].Decimal))
			lineValues = append(lineValues, line[i].Decimal)
		}
	}
	if len(lineValues) == 0 {
		return line, signal, histogram, nil
	}

	signalOnLine, err := EMA(lineValues, signalPeriod)
	if err != nil {
		return nil, nil, nil, err
	}
	for j, s := range signalOnLine {
		if !s.Valid {
			continue
		}
		i := firstLine + j
		signal[i] = s
		histogram[i] = valid(line[i].Decimal.Sub(s.Decimal))
	}
	return line, signal, histogram, nil
}

// Bollinger computes Bollinger Bands: middle is the SMA, the outer bands sit
// stddevMult population standard deviations away.
func Bollinger(values []decimal.Decimal, period int, stddevMult decimal.Decimal) (upper, middle, lower []decimal.NullDecimal, err error) {
	if err := checkInput("Bollinger", len(values), period); err != nil {
		return nil, nil, nil, err
	}

	middle, err = SMA(values, period)
	if err != nil {
		return nil, nil, nil, err
	}

	upper = make([]decimal.NullDecimal, len(values))
	lower = make([]decimal.NullDecimal, len(values))
	periodDec := decimal.NewFromInt(int64(period))

	for i := period - 1; i < len(values); i++ {
		mean := middle[i].Decimal
		variance := decimal.Zero
		for j := i - period + 1; j <= i; j++ {
			diff := values[j].Sub(mean)
			variance = variance.Add(diff.Mul(diff))
		}
		variance = variance.Div(periodDec)
		stddev := decimal.NewFromFloat(math.Sqrt(variance.InexactFloat64()))
		band := stddev.Mul(stddevMult)
		upper[i] = valid(mean.Add(band))
		lower[i] = valid(mean.Sub(band))
	}
	return upper, middle, lower, nil
}

// trueRanges returns the true-range series; index 0 uses high-low since
// there is no previous close.
func trueRanges(highs, lows, closes []decimal.Decimal) []decimal.Decimal {
	trs := make([]decimal.Decimal, len(highs))
	for i := range highs {
		tr := highs[i].Sub(lows[i])
		if i > 0 {
			hc := highs[i].Sub(closes[i-1]).Abs()
			lc := lows[i].Sub(closes[i-1]).Abs()
			if hc.GreaterThan(tr) {
				tr = hc
			}
			if lc.GreaterThan(tr) {
				tr = lc
			}
		}
		trs[i] = tr
	}
	return trs
}

// ATR computes Wilder's Average True Range.
func ATR(highs, lows, closes []decimal.Decimal, period int) ([]decimal.NullDecimal, error) {
	if err := checkInput("ATR", len(highs), period); err != nil {
		return nil, err
	}
	if len(highs) != len(lows) || len(highs) != len(closes) {
		return nil, fmt.Errorf("ATR: mismatched series lengths %d/%d/%d", len(highs), len(lows), len(closes))
	}

	out := make([]decimal.NullDecimal, len(highs))
	if len(highs) < period {
		return out, nil
	}

	trs := trueRanges(highs, lows, closes)
	periodDec := decimal.NewFromInt(int64(period))
	periodMinusOne := decimal.NewFromInt(int64(period) - 1)

	atr := decimal.Zero
	for _, tr := range trs[:period] {
		atr = atr.Add(tr)
	}
	atr = atr.Div(periodDec)
	out[period-1] = valid(atr)

	for i := period; i < len(trs); i++ {
		atr = atr.Mul(periodMinusOne).Add(trs[i]).Div(periodDec)
		out[i] = valid(atr)
	}
	return out, nil
}

// Stochastic computes the stochastic oscillator: %K over kPeriod and %D as
// the dPeriod SMA of %K. A zero high-low range yields 50.
func Stochastic(highs, lows, closes []decimal.Decimal, kPeriod, dPeriod int) (k, d []decimal.NullDecimal, err error) {
	if err := checkInput("Stochastic", len(closes), kPeriod); err != nil {
		return nil, nil, err
	}
	if dPeriod <= 0 {
		return nil, nil, fmt.Errorf("Stochastic: period must be positive, got %d", dPeriod)
	}
	if len(highs) != len(lows) || len(highs) != len(closes) {
		return nil, nil, fmt.Errorf("Stochastic: mismatched series lengths %d/%d/%d", len(highs), len(lows), len(closes))
	}

	k = make([]decimal.NullDecimal, len(closes))
	d = make([]decimal.NullDecimal, len(closes))
	fifty := decimal.NewFromInt(50)

	kValues := make([]decimal.Decimal, 0, len(closes))
	firstK := -1
	for i := kPeriod - 1; i < len(closes); i++ {
		highest := highs[i]
		lowest := lows[i]
		for j := i - kPeriod + 1; j < i; j++ {
			if highs[j].GreaterThan(highest) {
				highest = highs[j]
			}
			if lows[j].LessThan(lowest) {
				lowest = lows[j]
			}
		}
		spread := highest.Sub(lowest)
		var kv decimal.Decimal
		if spread.IsZero() {
			kv = fifty
		} else {
			kv = closes[i].Sub(lowest).Div(spread).Mul(hundred)
		}
		k[i] = valid(kv)
		if firstK < 0 {
			firstK = i
		}
		kValues = append(kValues, kv)
	}
	if len(kValues) == 0 {
		return k, d, nil
	}

	dOnK, err := SMA(kValues, dPeriod)
	if err != nil {
		return nil, nil, err
	}
	for j, dv := range dOnK {
		if dv.Valid {
			d[firstK+j] = dv
		}
	}
	return k, d, nil
}

// OBV computes On-Balance Volume, starting from zero.
func OBV(closes []decimal.Decimal, volumes []int64) ([]decimal.NullDecimal, error) {
	if len(closes) == 0 {
		return nil, fmt.Errorf("OBV: empty input series")
	}
	if len(closes) != len(volumes) {
		return nil, fmt.Errorf("OBV: mismatched series lengths %d/%d", len(closes), len(volumes))
	}

	out := make([]decimal.NullDecimal, len(closes))
	obv := decimal.Zero
	out[0] = valid(obv)
	for i := 1; i < len(closes); i++ {
		switch {
		case closes[i].GreaterThan(closes[i-1]):
			obv = obv.Add(decimal.NewFromInt(volumes[i]))
		case closes[i].LessThan(closes[i-1]):
			obv = obv.Sub(decimal.NewFromInt(volumes[i]))
		}
		out[i] = valid(obv)
	}
	return out, nil
}

// ADX computes Wilder's Average Directional Index with its directional
// indicators. DI values become valid at index period, ADX at 2*period-1.
func ADX(highs, lows, closes []decimal.Decimal, period int) (adx, plusDI, minusDI []decimal.NullDecimal, err error) {
	if err := checkInput("ADX", len(highs), period); err != nil {
		return nil, nil, nil, err
	}
	if len(highs) != len(lows) || len(highs) != len(closes) {
		return nil, nil, nil, fmt.Errorf("ADX: mismatched series lengths %d/%d/%d", len(highs), len(lows), len(closes))
	}

	n := len(highs)
	adx = make([]decimal.NullDecimal, n)
	plusDI = make([]decimal.NullDecimal, n)
	minusDI = make([]decimal.NullDecimal, n)
	if n <= period {
		return adx, plusDI, minusDI, nil
	}

	trs := trueRanges(highs, lows, closes)
	plusDM := make([]decimal.Decimal, n)
	minusDM := make([]decimal.Decimal, n)
	for i := 1; i < n; i++ {
		upMove := highs[i].Sub(highs[i-1])
		downMove := lows[i-1].Sub(lows[i])
		plusDM[i] = decimal.Zero
		minusDM[i] = decimal.Zero
		if upMove.GreaterThan(downMove) && upMove.IsPositive() {
			plusDM[i] = upMove
		} else if downMove.GreaterThan(upMove) && downMove.IsPositive() {
			minusDM[i] = downMove
		}
	}

	periodDec := decimal.NewFromInt(int64(period))
	one := decimal.NewFromInt(1)

	// Wilder-smoothed sums, seeded from the first period movements.
	smTR := decimal.Zero
	smPlus := decimal.Zero
	smMinus := decimal.Zero
	for i := 1; i <= period; i++ {
		smTR = smTR.Add(trs[i])
		smPlus = smPlus.Add(plusDM[i])
		smMinus = smMinus.Add(minusDM[i])
	}

	dxValues := make([]decimal.Decimal, 0, n)
	dxIndex := make([]int, 0, n)
	for i := period; i < n; i++ {
		if i > period {
			smTR = smTR.Sub(smTR.Div(periodDec)).Add(trs[i])
			smPlus = smPlus.Sub(smPlus.Div(periodDec)).Add(plusDM[i])
			smMinus = smMinus.Sub(smMinus.Div(periodDec)).Add(minusDM[i])
		}

		pdi := decimal.Zero
		mdi := decimal.Zero
		if !smTR.IsZero() {
			pdi = smPlus.Div(smTR).Mul(hundred)
			mdi = smMinus.Div(smTR).Mul(hundred)
		}
		plusDI[i] = valid(pdi)
		minusDI[i] = valid(mdi)

		diSum := pdi.Add(mdi)
		dx := decimal.Zero
		if !diSum.IsZero() {
			dx = pdi.Sub(mdi).Abs().Div(diSum).Mul(hundred)
		}
		dxValues = append(dxValues, dx)
		dxIndex = append(dxIndex, i)
	}

	if len(dxValues) < period {
		return adx, plusDI, minusDI, nil
	}

	acc := decimal.Zero
	for _, dx := range dxValues[:period] {
		acc = acc.Add(dx)
	}
	adxVal := acc.Div(periodDec)
	adx[dxIndex[period-1]] = valid(adxVal)
	for j := period; j < len(dxValues); j++ {
		adxVal = adxVal.Mul(periodDec.Sub(one)).Add(dxValues[j]).Div(periodDec)
		adx[dxIndex[j]] = valid(adxVal)
	}
	return adx, plusDI, minusDI, nil
}
