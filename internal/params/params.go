// Package params holds the flat, read-only table of named financial parameters
// (inflation, asset-class return rows, allocation models) supplied to each
// simulation call.
package params

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/iwvelando/goal-probability/internal/goal"
	"github.com/iwvelando/goal-probability/internal/simerr"
)

// Well-known key prefixes.
const (
	KeyInflation        = "inflation"
	PrefixAssetReturns  = "asset_returns"
	PrefixAllocation    = "allocation_models"
	defaultInflationPct = 0.06
)

// Value is one parameter entry. Numeric entries use Value (and optionally
// Volatility); categorical entries use Text.
type Value struct {
	Value         float64 `json:"value"`
	Volatility    float64 `json:"volatility,omitempty"`
	HasVolatility bool    `json:"has_volatility,omitempty"`
	Text          string  `json:"text,omitempty"`
}

// Set is an immutable parameter table. The zero value is an empty set.
type Set struct {
	entries map[string]Value
}

// NewSet copies entries into a new Set. Keys are lower-cased.
func NewSet(entries map[string]Value) Set {
	copied := make(map[string]Value, len(entries))
	for k, v := range entries {
		copied[strings.ToLower(k)] = v
	}
	return Set{entries: copied}
}

// Len returns the number of entries.
func (s Set) Len() int {
	return len(s.entries)
}

// Lookup returns the entry for key and whether it is present.
func (s Set) Lookup(key string) (Value, bool) {
	v, ok := s.entries[strings.ToLower(key)]
	return v, ok
}

// Float returns the numeric value for key and whether it is present.
func (s Set) Float(key string) (float64, bool) {
	v, ok := s.Lookup(key)
	if !ok {
		return 0, false
	}
	return v.Value, true
}

// FloatOr returns the numeric value for key, or def when absent.
func (s Set) FloatOr(key string, def float64) float64 {
	if v, ok := s.Float(key); ok {
		return v
	}
	return def
}

// Keys returns all keys in sorted order.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Entries returns a copy of the underlying table.
func (s Set) Entries() map[string]Value {
	out := make(map[string]Value, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// With returns a new Set with key overridden. s is unchanged.
func (s Set) With(key string, v Value) Set {
	out := s.Entries()
	out[strings.ToLower(key)] = v
	return Set{entries: out}
}

// Inflation returns the annual inflation rate, defaulting to 6%.
func (s Set) Inflation() float64 {
	return s.FloatOr(KeyInflation, defaultInflationPct)
}

// AssetReturn is an annual expected return and volatility pair for one asset class.
type AssetReturn struct {
	Asset          string
	ExpectedReturn float64
	Volatility     float64
}

// AssetReturn resolves the return row for asset under risk, trying
// asset_returns.<asset>.<risk>, then asset_returns.<asset>.moderate, then
// asset_returns.<asset>. Absence yields ok=false; a present row with a negative
// or non-finite volatility yields a ConfigurationError.
func (s Set) AssetReturn(asset string, risk goal.RiskProfile) (AssetReturn, bool, error) {
	candidates := []string{
		fmt.Sprintf("%s.%s.%s", PrefixAssetReturns, asset, risk.OrDefault()),
		fmt.Sprintf("%s.%s.%s", PrefixAssetReturns, asset, goal.RiskModerate),
		fmt.Sprintf("%s.%s", PrefixAssetReturns, asset),
	}
	for _, key := range candidates {
		v, ok := s.Lookup(key)
		if !ok {
			continue
		}
		if math.IsNaN(v.Value) || math.IsInf(v.Value, 0) {
			return AssetReturn{}, true, simerr.Configf(key, "expected return must be finite")
		}
		if v.Volatility < 0 || math.IsNaN(v.Volatility) || math.IsInf(v.Volatility, 0) {
			return AssetReturn{}, true, simerr.Configf(key, "volatility must be a non-negative number, got %v", v.Volatility)
		}
		return AssetReturn{Asset: asset, ExpectedReturn: v.Value, Volatility: v.Volatility}, true, nil
	}
	return AssetReturn{}, false, nil
}

// DefaultAllocation builds the allocation model for risk from
// allocation_models.<risk>.<asset> keys. ok is false when no model is present.
func (s Set) DefaultAllocation(risk goal.RiskProfile) (goal.Allocation, bool) {
	prefix := fmt.Sprintf("%s.%s.", PrefixAllocation, risk.OrDefault())
	alloc := goal.Allocation{}
	for _, key := range s.Keys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		asset := strings.TrimPrefix(key, prefix)
		if asset == "" || strings.Contains(asset, ".") {
			continue
		}
		alloc[asset] = s.entries[key].Value
	}
	if len(alloc) == 0 {
		return nil, false
	}
	return alloc, true
}

// ExpectedReturn returns the weighted expected annual return of alloc, using
// only asset classes with a resolvable return row.
func (s Set) ExpectedReturn(alloc goal.Allocation, risk goal.RiskProfile) (float64, error) {
	total := 0.0
	for _, asset := range alloc.AssetClasses() {
		row, ok, err := s.AssetReturn(asset, risk)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, simerr.Configf(PrefixAssetReturns+"."+asset, "no return parameters for asset class")
		}
		total += alloc[asset] * row.ExpectedReturn
	}
	return total, nil
}

// Defaults returns a parameter table suitable for Indian rupee goals when no
// parameter service is configured.
func Defaults() Set {
	rows := map[string]Value{
		KeyInflation: {Value: defaultInflationPct},

		"asset_returns.equity.conservative": {Value: 0.10, Volatility: 0.16, HasVolatility: true},
		"asset_returns.equity.moderate":     {Value: 0.12, Volatility: 0.18, HasVolatility: true},
		"asset_returns.equity.aggressive":   {Value: 0.14, Volatility: 0.22, HasVolatility: true},
		"asset_returns.debt.conservative":   {Value: 0.065, Volatility: 0.04, HasVolatility: true},
		"asset_returns.debt.moderate":       {Value: 0.07, Volatility: 0.05, HasVolatility: true},
		"asset_returns.debt.aggressive":     {Value: 0.075, Volatility: 0.06, HasVolatility: true},
		"asset_returns.gold":                {Value: 0.08, Volatility: 0.15, HasVolatility: true},
		"asset_returns.cash":                {Value: 0.04, Volatility: 0.01, HasVolatility: true},

		"allocation_models.conservative.equity": {Value: 0.3},
		"allocation_models.conservative.debt":   {Value: 0.6},
		"allocation_models.conservative.cash":   {Value: 0.1},
		"allocation_models.moderate.equity":     {Value: 0.6},
		"allocation_models.moderate.debt":       {Value: 0.35},
		"allocation_models.moderate.gold":       {Value: 0.05},
		"allocation_models.aggressive.equity":   {Value: 0.8},
		"allocation_models.aggressive.debt":     {Value: 0.15},
		"allocation_models.aggressive.gold":     {Value: 0.05},
	}
	return NewSet(rows)
}
