// Package feeschedule resolves per-participant fee and tax rate tables.
package feeschedule

import (
	"strings"

	"github.com/shopspring/decimal"
)

// BrokerageMode selects how brokerage is computed.
type BrokerageMode string

const (
	// BrokeragePercent charges rate x amount, capped per portion.
	BrokeragePercent BrokerageMode = "percent"
	// BrokerageFixed charges a flat fee per executed order.
	BrokerageFixed BrokerageMode = "fixed"
)

// STTRates splits the securities transaction tax by trade style.
type STTRates struct {
	Delivery decimal.Decimal
	Intraday decimal.Decimal
}

// Brokerage describes the participant's brokerage pricing.
type Brokerage struct {
	Mode  BrokerageMode
	Rate  decimal.Decimal
	Cap   decimal.Decimal
	Fixed decimal.Decimal
}

// StampDuty splits stamp duty by trade style. BuySideOnly restricts the
// charge to BUY rows; the default charges both sides.
type StampDuty struct {
	Delivery    decimal.Decimal
	Intraday    decimal.Decimal
	BuySideOnly bool
}

// Schedule is the immutable rate table for one participant.
type Schedule struct {
	Participant     string
	STT             STTRates
	Brokerage       Brokerage
	StampDuty       StampDuty
	DPCharges       decimal.Decimal
	GSTRate         decimal.Decimal
	SEBIRate        decimal.Decimal
	ExchangeCharges map[string]decimal.Decimal
}

// ExchangeRate returns the transaction charge rate for the exchange,
// zero when the exchange is not configured.
func (s Schedule) ExchangeRate(exchange string) decimal.Decimal {
	if len(s.ExchangeCharges) == 0 {
		return decimal.Zero
	}
	return s.ExchangeCharges[strings.ToUpper(strings.TrimSpace(exchange))]
}
