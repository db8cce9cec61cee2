package tracing

import (
	"fmt"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Values of telemetry.tracing.sampler.
const (
	SamplerAlways = "always"
	SamplerNever  = "never"
	SamplerRatio  = "ratio" // fraction of trace IDs, sample_ratio in [0, 1]
)

// createSampler maps the configured strategy onto an SDK sampler. An empty
// strategy means ratio. The result honours a remote parent's decision, which
// only matters for admin requests carrying a traceparent: connection spans
// are always roots.
func createSampler(strategy string, ratio float64) (sdktrace.Sampler, error) {
	var root sdktrace.Sampler
	switch strategy {
	case SamplerAlways:
		root = sdktrace.AlwaysSample()
	case SamplerNever:
		root = sdktrace.NeverSample()
	case SamplerRatio, "":
		if ratio < 0 || ratio > 1 {
			return nil, fmt.Errorf("sample ratio %g outside [0, 1]", ratio)
		}
		root = sdktrace.TraceIDRatioBased(ratio)
	default:
		return nil, fmt.Errorf("unknown sampler %q (want always, never or ratio)", strategy)
	}
	return sdktrace.ParentBased(root), nil
}
