package instrument

import "github.com/shopspring/decimal"

func crypto(name, symbol string, ref float64) Instrument {
	return Instrument{
		Name:           name,
		Category:       CategoryCrypto,
		Candidates:     []Candidate{{Provider: ProviderBybit, Symbol: symbol}},
		ReferencePrice: decimal.NewFromFloat(ref),
	}
}

func yahoo(name string, category Category, symbol string, ref float64) Instrument {
	return Instrument{
		Name:           name,
		Category:       category,
		Candidates:     []Candidate{{Provider: ProviderYahoo, Symbol: symbol}},
		ReferencePrice: decimal.NewFromFloat(ref),
	}
}

// Defaults is the built-in instrument table.
func Defaults() []Instrument {
	return []Instrument{
		crypto("BTC/USDT", "BTCUSDT", 65000),
		crypto("ETH/USDT", "ETHUSDT", 3200),
		crypto("SOL/USDT", "SOLUSDT", 150),
		crypto("BNB/USDT", "BNBUSDT", 580),
		crypto("XRP/USDT", "XRPUSDT", 0.55),
		crypto("ADA/USDT", "ADAUSDT", 0.45),
		crypto("DOGE/USDT", "DOGEUSDT", 0.12),

		yahoo("EUR/USD", CategoryForex, "EURUSD=X", 1.08),
		yahoo("GBP/USD", CategoryForex, "GBPUSD=X", 1.27),
		yahoo("USD/JPY", CategoryForex, "JPY=X", 150.5),
		yahoo("AUD/USD", CategoryForex, "AUDUSD=X", 0.66),
		yahoo("USD/CAD", CategoryForex, "CAD=X", 1.36),
		yahoo("USD/CHF", CategoryForex, "CHF=X", 0.88),
		yahoo("EUR/JPY", CategoryForex, "EURJPY=X", 162.4),
		yahoo("GBP/JPY", CategoryForex, "GBPJPY=X", 190.2),

		yahoo("XAU/USD", CategoryCommodity, "GC=F", 2350),
		yahoo("XAG/USD", CategoryCommodity, "SI=F", 28.5),
		yahoo("WTI/USD", CategoryCommodity, "CL=F", 78),
	}
}

// DefaultRegistry builds a registry from Defaults.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(Defaults())
	if err != nil {
		panic("invalid built-in instrument table: " + err.Error())
	}
	return r
}
