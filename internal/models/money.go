package models

import "math"

// Money is an amount in minor currency units (cents). Money never passes
// through floating point except at the single rounding step of a
// commission rate.
type Money int64

// MaxOrderTotal caps what the calculator accepts as a sane order total.
const MaxOrderTotal Money = 1_000_000_000

// CommissionRates is a configuration snapshot read at computation time.
// The three shares need not sum to 1.0: the business absorbs whatever
// remains after the platform and driver shares are rounded.
type CommissionRates struct {
	Platform float64 `json:"platform"`
	Business float64 `json:"business"`
	Driver   float64 `json:"driver"`
}

var DefaultCommissionRates = CommissionRates{
	Platform: 0.15,
	Business: 0.70,
	Driver:   0.15,
}

// CommissionSplit is the three-way division of an order total.
type CommissionSplit struct {
	Platform Money `json:"platform"`
	Business Money `json:"business"`
	Driver   Money `json:"driver"`
}

func (s CommissionSplit) Total() Money {
	return s.Platform + s.Business + s.Driver
}

// RoundShare rounds total*rate half away from zero.
func RoundShare(total Money, rate float64) Money {
	return Money(math.Round(float64(total) * rate))
}
