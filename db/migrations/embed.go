// Package dbmigrations exposes embedded SQL migrations for tradeledger binaries.
package dbmigrations

import "embed"

// Files contains the embedded SQL migrations bundled into tradeledger binaries.
//
//go:embed *.sql
var Files embed.FS
