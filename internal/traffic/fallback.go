package traffic

import (
	"math/rand"
	"time"
)

// FallbackFreeFlowSpeed is the free-flow speed of synthetic samples, in km/h.
const FallbackFreeFlowSpeed = 60

// FallbackSamples generates one synthetic sample per monitored point with a
// current speed uniform in [20, 60] km/h. A nil rng uses a time-seeded source.
func FallbackSamples(at time.Time, rng *rand.Rand) []Sample {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // synthetic data
	}

	samples := make([]Sample, len(MonitoredPoints))
	for i, p := range MonitoredPoints {
		samples[i] = NewSample(p, Flow{
			CurrentSpeed:  20 + rng.Float64()*40,
			FreeFlowSpeed: FallbackFreeFlowSpeed,
		}, at)
	}
	return samples
}
