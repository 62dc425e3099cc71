package feeschedule

import (
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/foliostack/tradeledger/errs"
)

type scheduleDoc struct {
	Participants map[string]participantDoc `yaml:"participants"`
}

type participantDoc struct {
	STTRates struct {
		Delivery float64 `yaml:"delivery"`
		Intraday float64 `yaml:"intraday"`
	} `yaml:"stt_rates"`
	Brokerage struct {
		Mode  string  `yaml:"mode"`
		Rate  float64 `yaml:"rate"`
		Cap   float64 `yaml:"cap"`
		Fixed float64 `yaml:"fixed"`
	} `yaml:"brokerage"`
	StampDuty struct {
		Delivery    float64 `yaml:"delivery"`
		Intraday    float64 `yaml:"intraday"`
		BuySideOnly bool    `yaml:"buy_side_only"`
	} `yaml:"stamp_duty"`
	DPCharges                  float64            `yaml:"dp_charges"`
	GSTRate                    float64            `yaml:"gst_rate"`
	SEBICharges                float64            `yaml:"sebi_charges"`
	ExchangeTransactionCharges map[string]float64 `yaml:"exchange_transaction_charges"`
}

// Provider resolves fee schedules by participant name. Immutable after load.
type Provider struct {
	schedules map[string]Schedule
}

// LoadFile reads the participant rate table from a YAML file.
func LoadFile(path string) (*Provider, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.New("feeschedule", errs.CodeNotFound,
			errs.WithMessage("read schedule file"), errs.WithField("path", path), errs.WithCause(err))
	}
	return Parse(raw)
}

// Parse builds a Provider from raw YAML.
func Parse(raw []byte) (*Provider, error) {
	var doc scheduleDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, errs.New("feeschedule", errs.CodeInvalid,
			errs.WithMessage("parse schedule file"), errs.WithCause(err))
	}
	if len(doc.Participants) == 0 {
		return nil, errs.New("feeschedule", errs.CodeInvalid,
			errs.WithMessage("schedule file declares no participants"))
	}

	provider := new(Provider)
	provider.schedules = make(map[string]Schedule, len(doc.Participants))
	for name, p := range doc.Participants {
		key := normalizeName(name)
		if key == "" {
			continue
		}
		schedule, err := buildSchedule(key, p)
		if err != nil {
			return nil, err
		}
		provider.schedules[key] = schedule
	}
	return provider, nil
}

// Resolve returns the schedule for the participant, case-insensitive.
func (p *Provider) Resolve(participant string) (Schedule, error) {
	key := normalizeName(participant)
	schedule, ok := p.schedules[key]
	if !ok {
		return Schedule{}, errs.New("feeschedule", errs.CodeValidation,
			errs.WithMessage("unknown participant"), errs.WithField("participant", participant))
	}
	return schedule, nil
}

// Participants lists the configured participant keys.
func (p *Provider) Participants() []string {
	names := make([]string, 0, len(p.schedules))
	for name := range p.schedules {
		names = append(names, name)
	}
	return names
}

func buildSchedule(name string, doc participantDoc) (Schedule, error) {
	mode := BrokerageMode(strings.ToLower(strings.TrimSpace(doc.Brokerage.Mode)))
	switch mode {
	case "":
		mode = BrokeragePercent
	case BrokeragePercent, BrokerageFixed:
	default:
		return Schedule{}, errs.New("feeschedule", errs.CodeInvalid,
			errs.WithMessage("unknown brokerage mode"),
			errs.WithField("participant", name),
			errs.WithField("mode", string(mode)))
	}

	exchanges := make(map[string]decimal.Decimal, len(doc.ExchangeTransactionCharges))
	for exchange, rate := range doc.ExchangeTransactionCharges {
		exchanges[strings.ToUpper(strings.TrimSpace(exchange))] = decimal.NewFromFloat(rate)
	}

	return Schedule{
		Participant: name,
		STT: STTRates{
			Delivery: decimal.NewFromFloat(doc.STTRates.Delivery),
			Intraday: decimal.NewFromFloat(doc.STTRates.Intraday),
		},
		Brokerage: Brokerage{
			Mode:  mode,
			Rate:  decimal.NewFromFloat(doc.Brokerage.Rate),
			Cap:   decimal.NewFromFloat(doc.Brokerage.Cap),
			Fixed: decimal.NewFromFloat(doc.Brokerage.Fixed),
		},
		StampDuty: StampDuty{
			Delivery:    decimal.NewFromFloat(doc.StampDuty.Delivery),
			Intraday:    decimal.NewFromFloat(doc.StampDuty.Intraday),
			BuySideOnly: doc.StampDuty.BuySideOnly,
		},
		DPCharges:       decimal.NewFromFloat(doc.DPCharges),
		GSTRate:         decimal.NewFromFloat(doc.GSTRate),
		SEBIRate:        decimal.NewFromFloat(doc.SEBICharges),
		ExchangeCharges: exchanges,
	}, nil
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
