// Package observability provides metrics for pipeline runs.
package observability

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys
const (
	attrBackend = "backend"
	attrChannel = "channel"
	attrMatrix  = "matrix"
	attrReason  = "reason"
	attrStage   = "stage"
	attrSuccess = "success"
)

func backendAttr(backend string) attribute.KeyValue {
	return attribute.String(attrBackend, backend)
}

func channelAttr(channel string) attribute.KeyValue {
	return attribute.String(attrChannel, channel)
}

// matrixAttr carries the build-matrix cell. Cardinality stays low because the
// supported matrix is a small fixed grid.
func matrixAttr(matrix string) attribute.KeyValue {
	return attribute.String(attrMatrix, matrix)
}

func reasonAttr(reason string) attribute.KeyValue {
	return attribute.String(attrReason, reason)
}

func stageAttr(stage string) attribute.KeyValue {
	return attribute.String(attrStage, stage)
}

func successAttr(success bool) attribute.KeyValue {
	return attribute.Bool(attrSuccess, success)
}
