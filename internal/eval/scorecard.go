package eval

import "sort"

// ScorecardRow summarizes one evaluation run, or one failed sweep cell.
type ScorecardRow struct {
	Label     string             `json:"label"`
	Variant   string             `json:"variant"`
	Namespace string             `json:"namespace"`
	Aggregate map[string]float64 `json:"aggregate,omitempty"`
	TraceLink string             `json:"trace_link,omitempty"`

	// Error is set for cells that failed before producing scores.
	Error string `json:"error,omitempty"`
}

// Scorecard is the comparison table across variants.
type Scorecard struct {
	Rows []ScorecardRow `json:"rows"`
}

// RowForRun converts a completed run into a scorecard row.
func RowForRun(run *EvaluationRun) ScorecardRow {
	return ScorecardRow{
		Label:     run.Label,
		Variant:   run.Variant.Key(),
		Namespace: run.Namespace,
		Aggregate: run.Aggregate,
		TraceLink: run.TraceLink,
	}
}

// SortBy orders rows by a metric descending. Rows missing the metric
// (failed or no-data cells) sink to the bottom; ties and sunk rows keep
// a stable label order.
func (s *Scorecard) SortBy(metric string) {
	sort.SliceStable(s.Rows, func(i, j int) bool {
		vi, oki := s.Rows[i].Aggregate[metric]
		vj, okj := s.Rows[j].Aggregate[metric]
		if oki != okj {
			return oki
		}
		if oki && okj && vi != vj {
			return vi > vj
		}
		return s.Rows[i].Label < s.Rows[j].Label
	})
}
