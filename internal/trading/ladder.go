package trading

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"trademon/internal/domain"
)

// Rounding used on generated orders: exchanges quote USD prices to cents and
// accept sizes to five decimal places.
const (
	pricePlaces = 2
	sizePlaces  = 5
)

// Spread factors applied around the configured entry and exit prices: buys
// ladder down to entry*0.9775, sells ladder up to exit*1.005.
const (
	buySpreadFactor  = 0.9775
	sellSpreadFactor = 1.005
)

// ScaleForm maps a scale step to a price between low and high. size is the
// per-step distance (high-low)/steps.
type ScaleForm func(low, high, s float64, idx int, size float64) float64

// LinearForm spaces prices evenly.
func LinearForm(low, high, s float64, idx int, size float64) float64 {
	return low + s*size
}

// Log10Form compresses later steps logarithmically.
func Log10Form(low, high, s float64, idx int, size float64) float64 {
	return low + s*float64(idx)*size
}

// Log10Scale returns log10(1)..log10(steps).
func Log10Scale(steps int) []float64 {
	scale := make([]float64, steps)
	for i := range scale {
		scale[i] = math.Log10(float64(i + 1))
	}
	return scale
}

// LinearScale returns 1..steps.
func LinearScale(steps int) []float64 {
	scale := make([]float64, steps)
	for i := range scale {
		scale[i] = float64(i + 1)
	}
	return scale
}

// PricesForScale maps each scale step to a price between low and high using
// the given form.
func PricesForScale(low, high float64, scale []float64, form ScaleForm) []float64 {
	size := (high - low) / float64(len(scale))
	prices := make([]float64, len(scale))
	for i, s := range scale {
		prices[i] = form(low, high, s, i, size)
	}
	return prices
}

// LadderConfig describes one two-leg trade ladder.
type LadderConfig struct {
	ProductID    string
	EntryPrice   float64 // top of the buy ladder
	ExitPrice    float64 // bottom of the sell ladder
	SourceAmount float64 // quote currency to spend, split across steps
	Steps        int     // number of pairs to generate
}

// BuildPairs generates the order pairs for a ladder: buy prices scaled
// logarithmically down from the entry price, sell prices up from the exit
// price, paired index-wise. Each step spends sourceAmount/steps at its buy
// price. All orders are post-only limit orders.
func BuildPairs(cfg LadderConfig) ([]*domain.OrderPair, error) {
	if cfg.ProductID == "" {
		return nil, fmt.Errorf("product id is required for ladder")
	}
	if cfg.Steps <= 0 {
		return nil, fmt.Errorf("ladder steps must be positive, got %d", cfg.Steps)
	}
	if cfg.EntryPrice <= 0 || cfg.ExitPrice <= 0 {
		return nil, fmt.Errorf("entry and exit prices must be positive")
	}
	if cfg.SourceAmount <= 0 {
		return nil, fmt.Errorf("source amount must be positive")
	}

	scale := Log10Scale(cfg.Steps)
	buyPrices := PricesForScale(cfg.EntryPrice, cfg.EntryPrice*buySpreadFactor, scale, Log10Form)
	sellPrices := PricesForScale(cfg.ExitPrice, cfg.ExitPrice*sellSpreadFactor, scale, Log10Form)

	perStep := cfg.SourceAmount / float64(cfg.Steps)
	pairs := make([]*domain.OrderPair, 0, cfg.Steps)
	for i, bp := range buyPrices {
		price := decimal.NewFromFloat(bp).Round(pricePlaces)
		size := decimal.NewFromFloat(perStep / bp).Round(sizePlaces)
		buy := domain.OrderSpec{
			Side:      domain.Buy,
			ProductID: cfg.ProductID,
			Price:     price,
			Size:      size,
			PostOnly:  true,
		}
		sell := domain.OrderSpec{
			Side:      domain.Sell,
			ProductID: cfg.ProductID,
			Price:     decimal.NewFromFloat(sellPrices[i]).Round(pricePlaces),
			Size:      size,
			PostOnly:  true,
		}
		pairs = append(pairs, domain.NewOrderPair(buy, sell))
	}
	return pairs, nil
}
