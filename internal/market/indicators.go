package market

import (
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/marketoracle/internal/indicators"
)

// ComputeMomentumIndicators derives EMA/RSI/Bollinger-band features from a
// market's recent midpoint-price history, feeding the Microstructure and
// Price Action agents' grounding context the same way the teacher computed
// technical features before handing them to an LLM prompt. Each indicator
// is skipped (not zeroed) when history is too short for its period, so
// downstream agents can tell "not enough data" from "flat at zero".
func ComputeMomentumIndicators(svc *indicators.Service, priceHistory []float64) map[string]float64 {
	out := make(map[string]float64)
	if svc == nil || len(priceHistory) < 2 {
		return out
	}

	prices := make([]interface{}, len(priceHistory))
	for i, p := range priceHistory {
		prices[i] = p
	}

	emaPeriod := 5
	if emaPeriod <= len(priceHistory) {
		if res, err := svc.CalculateEMA(map[string]interface{}{"prices": prices, "period": emaPeriod}); err != nil {
			log.Debug().Err(err).Msg("market: EMA indicator skipped")
		} else if ema, ok := res.(*indicators.EMAResult); ok {
			out["ema"] = ema.Value
		}
	}

	rsiPeriod := 14
	if rsiPeriod <= len(priceHistory) {
		if res, err := svc.CalculateRSI(map[string]interface{}{"prices": prices, "period": rsiPeriod}); err != nil {
			log.Debug().Err(err).Msg("market: RSI indicator skipped")
		} else if rsi, ok := res.(*indicators.RSIResult); ok {
			out["rsi"] = rsi.Value
		}
	}

	bbPeriod := 20
	if bbPeriod <= len(priceHistory) {
		if res, err := svc.CalculateBollingerBands(map[string]interface{}{"prices": prices, "period": bbPeriod}); err != nil {
			log.Debug().Err(err).Msg("market: Bollinger Bands indicator skipped")
		} else if bb, ok := res.(*indicators.BollingerBandsResult); ok {
			out["bollingerUpper"] = bb.Upper
			out["bollingerLower"] = bb.Lower
			out["bollingerWidth"] = bb.Width
		}
	}

	return out
}
