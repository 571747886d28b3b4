package evaluation

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

// Estimate is the summary of one metric across resamples.
type Estimate struct {
	Metric string  `json:"metric"`
	Mean   float64 `json:"mean"`
	N      int     `json:"n"`
	StdErr float64 `json:"std_err"`
}

// MarshalJSON writes an undefined standard error as null.
func (e Estimate) MarshalJSON() ([]byte, error) {
	type estimate Estimate
	var stdErr *float64
	if !math.IsNaN(e.StdErr) {
		stdErr = &e.StdErr
	}
	return json.Marshal(struct {
		estimate
		StdErr *float64 `json:"std_err"`
	}{
		estimate: estimate(e),
		StdErr:   stdErr,
	})
}

// Aggregate summarises the metrics of each resample into mean and standard error.
// Undefined values are left out.
func Aggregate(resamples []Metrics) ([]Estimate, error) {
	values := make(map[string]stats.Float64Data)
	for _, m := range resamples {
		for name, v := range m {
			if math.IsNaN(v) {
				continue
			}
			values[name] = append(values[name], v)
		}
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	aggregates := make([]Estimate, len(names))
	for i, name := range names {
		data := values[name]
		mean, err := stats.Mean(data)
		if err != nil {
			return nil, fmt.Errorf("could not average %s: %w", name, err)
		}
		stdErr := math.NaN()
		if len(data) > 1 {
			sd, err := stats.StandardDeviationSample(data)
			if err != nil {
				return nil, fmt.Errorf("could not compute deviation of %s: %w", name, err)
			}
			stdErr = sd / math.Sqrt(float64(len(data)))
		}
		aggregates[i] = Estimate{
			Metric: name,
			Mean:   mean,
			N:      len(data),
			StdErr: stdErr,
		}
	}
	return aggregates, nil
}
