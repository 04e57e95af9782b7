package zrm

import (
	"log/slog"

	"github.com/hashicorp/go-metrics"
)

var (
	MetricZrmPublishCount         = []string{"zrm", "publish", "count"}
	MetricZrmPublishErrorCount    = []string{"zrm", "publish", "error", "count"}
	MetricZrmDeliverCount         = []string{"zrm", "deliver", "count"}
	MetricZrmDeliverDroppedCount  = []string{"zrm", "deliver", "dropped", "count"}
	MetricZrmTypeMismatchCount    = []string{"zrm", "type", "mismatch", "count"}
	MetricZrmCallCount            = []string{"zrm", "call", "count"}
	MetricZrmCallTimeoutCount     = []string{"zrm", "call", "timeout", "count"}
	MetricZrmCallAbortedCount     = []string{"zrm", "call", "aborted", "count"}
	MetricZrmCallStrayCount       = []string{"zrm", "call", "stray", "count"}
	MetricZrmAnnounceCount        = []string{"zrm", "graph", "announce", "count"}
	MetricZrmGraphNodePruneCount  = []string{"zrm", "graph", "node", "prune", "count"}
	MetricZrmGraphNodeDepartCount = []string{"zrm", "graph", "node", "depart", "count"}
)

type TelemetryLabel string

var (
	LabelError   TelemetryLabel = "error"
	LabelTopic   TelemetryLabel = "topic"
	LabelService TelemetryLabel = "service"
	LabelNode    TelemetryLabel = "node"
	LabelType    TelemetryLabel = "type"
	LabelCallID  TelemetryLabel = "call_id"
)

func (lab TelemetryLabel) M(val string) metrics.Label {
	return metrics.Label{Name: string(lab), Value: val}
}

func (lab TelemetryLabel) L(val any) slog.Attr {
	return slog.Attr{
		Key:   string(lab),
		Value: slog.AnyValue(val),
	}
}
