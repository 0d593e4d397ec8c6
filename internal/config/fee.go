package config

import (
	"fmt"

	"github.com/DanielPopoola/vpos-gateway/internal/core/fee"
	"github.com/shopspring/decimal"
)

// FeeConfig is the fee structure quoted by the fees endpoint. Values are
// decimal strings; an empty percent disables quoting.
type FeeConfig struct {
	Name    string `koanf:"name"`
	Percent string `koanf:"percent"`
	Min     string `koanf:"min"`
	Max     string `koanf:"max"`
	Plus    string `koanf:"plus"`
}

func (c FeeConfig) Descriptor() (fee.Descriptor, error) {
	d := fee.Descriptor{Name: c.Name}

	var err error
	if d.Percent, err = parseDecimal("fee.percent", c.Percent); err != nil {
		return fee.Descriptor{}, err
	}
	if d.Plus, err = parseDecimal("fee.plus", c.Plus); err != nil {
		return fee.Descriptor{}, err
	}
	if c.Min != "" {
		v, err := parseDecimal("fee.min", c.Min)
		if err != nil {
			return fee.Descriptor{}, err
		}
		d.Min = &v
	}
	if c.Max != "" {
		v, err := parseDecimal("fee.max", c.Max)
		if err != nil {
			return fee.Descriptor{}, err
		}
		d.Max = &v
	}
	return d, nil
}

func parseDecimal(key, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
