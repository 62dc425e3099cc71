// Package telemetry provides semantic conventions for tradeledger observability.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Semantic convention attribute keys for tradeledger-specific telemetry.
// Following OpenTelemetry naming conventions: namespace.attribute_name
const (
	// Task attributes
	AttrTaskState   = attribute.Key("task.state")
	AttrBackendType = attribute.Key("backend.type")
	AttrStage       = attribute.Key("stage")

	// Ledger attributes
	AttrSymbol      = attribute.Key("symbol")
	AttrParticipant = attribute.Key("participant")
	AttrTradeType   = attribute.Key("trade.type")

	// Report attributes
	AttrSheet = attribute.Key("sheet")

	// Environment attribute
	AttrEnvironment = attribute.Key("environment")

	// Error attributes
	AttrErrorType = attribute.Key("error.type")
	AttrReason    = attribute.Key("reason")

	// Queue attributes
	AttrQueueName = attribute.Key("queue.name")
	AttrResult    = attribute.Key("result")
)

// Task state values
const (
	TaskStateReceived  = "received"
	TaskStateRunning   = "running"
	TaskStateCompleted = "completed"
	TaskStateFailed    = "failed"
)

// Stage values
const (
	StageIngest       = "ingest"
	StageEnrich       = "enrich"
	StageSecurityPnl  = "security_pnl"
	StageDailyPnl     = "daily_pnl"
	StageCapitalGains = "capital_gains"
	StagePersist      = "persist"
)

// Helper functions for creating common attribute sets

// TaskAttributes returns common attributes for task lifecycle metrics.
func TaskAttributes(environment, backendType, state string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrBackendType.String(backendType),
		AttrTaskState.String(state),
	}
}

// StageAttributes returns common attributes for pipeline stage metrics.
func StageAttributes(environment, stage string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrStage.String(stage),
	}
}

// ErrorAttributes returns attributes for error metrics.
func ErrorAttributes(environment, errorType, reason string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrErrorType.String(errorType),
		AttrReason.String(reason),
	}
}

// QueueAttributes returns attributes for work queue metrics.
func QueueAttributes(environment, queueName, result string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrQueueName.String(queueName),
		AttrResult.String(result),
	}
}

// SheetAttributes returns attributes for report sheet metrics.
func SheetAttributes(environment, sheet string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrSheet.String(sheet),
	}
}
