package telemetry

import (
	"context"

	"github.com/grafana/pyroscope-go"
)

// Profiling label keys attached to request goroutines.
const (
	ProfilingLabelRoute  = "route"
	ProfilingLabelMethod = "method"
)

const maxLabelValueLength = 128

// WithProfilingLabels runs fn with labels attached to its CPU samples.
// Empty keys and values are dropped; long values are truncated.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := make([]string, 0, len(labels)*2)
	for k, v := range labels {
		if k == "" || v == "" {
			continue
		}
		if len(v) > maxLabelValueLength {
			v = v[:maxLabelValueLength]
		}
		pairs = append(pairs, k, v)
	}
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}
