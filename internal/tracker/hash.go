package tracker

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/goccy/go-json"

	"github.com/foliostack/tradeledger/errs"
	"github.com/foliostack/tradeledger/internal/tabular"
)

type hashDocument struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// HashTable computes the content fingerprint of a raw table. Two tables
// with identical headers and rows in the same order hash equally.
func HashTable(table tabular.Table) (string, error) {
	doc := hashDocument{Header: table.Header, Rows: table.Rows}
	payload, err := json.Marshal(doc)
	if err != nil {
		return "", errs.New("tracker/hash", errs.CodeCompute,
			errs.WithMessage("encode table for hashing"), errs.WithCause(err))
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
