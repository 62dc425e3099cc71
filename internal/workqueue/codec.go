package workqueue

import (
	"github.com/goccy/go-json"

	"github.com/foliostack/tradeledger/errs"
)

// EncodeMessage serializes a message to its wire form.
func EncodeMessage(msg Message) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, errs.New("workqueue/codec", errs.CodeInvalid,
			errs.WithMessage("encode message"), errs.WithCause(err))
	}
	return payload, nil
}

// DecodeMessage parses a wire payload and validates it.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, errs.New("workqueue/codec", errs.CodeInvalid,
			errs.WithMessage("decode message"), errs.WithCause(err))
	}
	if err := msg.Validate(); err != nil {
		return Message{}, err
	}
	return msg, nil
}
