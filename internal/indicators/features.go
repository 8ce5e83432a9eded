package indicators

import (
	"fmt"
	"time"

	"github.com/quantline/papertrader/internal/exchange"
)

// Standard periods for the feature battery
const (
	PeriodSMA      = 20
	PeriodEMAFast  = 20
	PeriodEMAMid   = 50
	PeriodEMASlow  = 200
	PeriodWMA      = 20
	PeriodHMA      = 9
	PeriodRSI      = 14
	PeriodStoch    = 14
	PeriodStochK   = 3
	PeriodROC      = 10
	PeriodATR      = 14
	PeriodBB       = 20
	BBStdDevs      = 2.0
	PeriodDonchian = 20
	PeriodCMF      = 20
	PeriodADX      = 14
	PeriodRVOL     = 20
)

// MaxLookback is the longest indicator lookback in the battery. The
// warm-up gate requires 3x this many bars before signals are evaluated.
const MaxLookback = PeriodEMASlow

// FeatureRow holds every indicator value for one closed bar. NaN fields
// mean the lookback was not yet satisfied at that bar.
type FeatureRow struct {
	TS     time.Time `json:"ts"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`

	SMA20  float64 `json:"sma_20"`
	EMA20  float64 `json:"ema_20"`
	EMA50  float64 `json:"ema_50"`
	EMA200 float64 `json:"ema_200"`
	WMA20  float64 `json:"wma_20"`
	HMA9   float64 `json:"hma_9"`

	RSI14     float64 `json:"rsi_14"`
	StochRSIK float64 `json:"stochrsi_k"`
	StochRSID float64 `json:"stochrsi_d"`
	ROC10     float64 `json:"roc_10"`

	ATR14   float64 `json:"atr_14"`
	BBUpper float64 `json:"bb_upper"`
	BBMid   float64 `json:"bb_mid"`
	BBLower float64 `json:"bb_lower"`

	DonchUpper float64 `json:"donch_upper"`
	DonchLower float64 `json:"donch_lower"`

	OBV    float64 `json:"obv"`
	CMF20  float64 `json:"cmf_20"`
	RVOL20 float64 `json:"rvol_20"`
	ADX14  float64 `json:"adx_14"`

	VWAPSession float64 `json:"vwap_session"`
	AVWAP       float64 `json:"avwap"`
}

// Compute assembles the full feature battery over closed candles.
// Candles must be ascending by time with no duplicates.
func Compute(candles []exchange.Candle) ([]FeatureRow, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("no candles to compute features over")
	}
	for i := 1; i < len(candles); i++ {
		if !candles[i].TS.After(candles[i-1].TS) {
			return nil, fmt.Errorf("candles not strictly ascending at index %d (%s)", i, candles[i].TS)
		}
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	sma20 := SMA(closes, PeriodSMA)
	ema20 := EMA(closes, PeriodEMAFast)
	ema50 := EMA(closes, PeriodEMAMid)
	ema200 := EMA(closes, PeriodEMASlow)
	wma20 := WMA(closes, PeriodWMA)
	hma9 := HMA(closes, PeriodHMA)

	rsi14 := RSI(closes, PeriodRSI)
	stochK, stochD := StochRSI(closes, PeriodRSI, PeriodStoch, PeriodStochK)
	roc10 := ROC(closes, PeriodROC)

	atr14 := ATR(candles, PeriodATR)
	bbMid, bbUpper, bbLower := Bollinger(closes, PeriodBB, BBStdDevs)
	donchUpper, donchLower := Donchian(candles, PeriodDonchian)

	obv := OBV(candles)
	cmf20 := CMF(candles, PeriodCMF)
	rvol20 := RVOL(candles, PeriodRVOL)
	adx14 := ADX(candles, PeriodADX)

	vwapSession := SessionVWAP(candles)
	avwap := AnchoredVWAP(candles, donchUpper)

	rows := make([]FeatureRow, len(candles))
	for i, c := range candles {
		rows[i] = FeatureRow{
			TS:     c.TS,
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Volume,

			SMA20:  sma20[i],
			EMA20:  ema20[i],
			EMA50:  ema50[i],
			EMA200: ema200[i],
			WMA20:  wma20[i],
			HMA9:   hma9[i],

			RSI14:     rsi14[i],
			StochRSIK: stochK[i],
			StochRSID: stochD[i],
			ROC10:     roc10[i],

			ATR14:   atr14[i],
			BBUpper: bbUpper[i],
			BBMid:   bbMid[i],
			BBLower: bbLower[i],

			DonchUpper: donchUpper[i],
			DonchLower: donchLower[i],

			OBV:    obv[i],
			CMF20:  cmf20[i],
			RVOL20: rvol20[i],
			ADX14:  adx14[i],

			VWAPSession: vwapSession[i],
			AVWAP:       avwap[i],
		}
	}
	return rows, nil
}
