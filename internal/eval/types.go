package eval

// #region eval-config
// EvalConfig holds thresholds for the post-run structural check.
type EvalConfig struct {
	MaxDanglingRefs     int  // fail if more decisions point nowhere
	MaxUnreachable      int  // fail if more scenes cannot be reached from the intro
	UnreachableBlocking bool // when false, unreachable scenes are informational
}

// DefaultEvalConfig returns the standard thresholds.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		MaxDanglingRefs:     0,
		MaxUnreachable:      0,
		UnreachableBlocking: false,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single structural check result.
type EvalMetric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Pass  bool    `json:"pass"`
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of the structural check.
type EvalResult struct {
	Passed  bool         `json:"passed"`
	Metrics []EvalMetric `json:"metrics"`
	Reason  string       `json:"reason"`
}

// Metric returns the named metric.
func (r EvalResult) Metric(name string) (EvalMetric, bool) {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return EvalMetric{}, false
}

// #endregion eval-result
