package feeschedule

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const scheduleFixture = `
participants:
  Zerodha:
    stt_rates:
      delivery: 0.001
      intraday: 0.00025
    brokerage:
      mode: percent
      rate: 0.0003
      cap: 20
    stamp_duty:
      delivery: 0.00015
      intraday: 0.00003
    dp_charges: 13.5
    gst_rate: 0.18
    sebi_charges: 0.000001
    exchange_transaction_charges:
      nse: 0.0000345
      bse: 0.0000375
  flatbroker:
    brokerage:
      mode: fixed
      fixed: 10
    gst_rate: 0.18
`

func TestParseAndResolve(t *testing.T) {
	provider, err := Parse([]byte(scheduleFixture))
	require.NoError(t, err)

	schedule, err := provider.Resolve("ZERODHA")
	require.NoError(t, err)

	require.True(t, schedule.STT.Delivery.Equal(decimal.NewFromFloat(0.001)))
	require.True(t, schedule.STT.Intraday.Equal(decimal.NewFromFloat(0.00025)))
	require.Equal(t, BrokeragePercent, schedule.Brokerage.Mode)
	require.True(t, schedule.Brokerage.Cap.Equal(decimal.NewFromInt(20)))
	require.True(t, schedule.DPCharges.Equal(decimal.NewFromFloat(13.5)))
	require.False(t, schedule.StampDuty.BuySideOnly)
	require.True(t, schedule.ExchangeRate("nse").Equal(decimal.NewFromFloat(0.0000345)))
	require.True(t, schedule.ExchangeRate("BSE").Equal(decimal.NewFromFloat(0.0000375)))
	require.True(t, schedule.ExchangeRate("MCX").IsZero())
}

func TestResolveFixedBrokerage(t *testing.T) {
	provider, err := Parse([]byte(scheduleFixture))
	require.NoError(t, err)

	schedule, err := provider.Resolve("flatbroker")
	require.NoError(t, err)
	require.Equal(t, BrokerageFixed, schedule.Brokerage.Mode)
	require.True(t, schedule.Brokerage.Fixed.Equal(decimal.NewFromInt(10)))
}

func TestResolveUnknownParticipant(t *testing.T) {
	provider, err := Parse([]byte(scheduleFixture))
	require.NoError(t, err)

	_, err = provider.Resolve("ghost")
	require.Error(t, err)
}

func TestParseRejectsEmptyDocument(t *testing.T) {
	_, err := Parse([]byte("participants: {}"))
	require.Error(t, err)
}

func TestParseRejectsUnknownBrokerageMode(t *testing.T) {
	doc := `
participants:
  broken:
    brokerage:
      mode: tiered
`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
}
