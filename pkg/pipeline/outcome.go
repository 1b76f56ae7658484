package pipeline

import "podcast-insights/pkg/domain"

// Status is the terminal state of one URL
type Status string

const (
	StatusPending   Status = "pending"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
	StatusCompleted Status = "completed"
)

// SkipReason explains a Skipped outcome
type SkipReason string

const (
	SkipDuplicate     SkipReason = "duplicate"
	SkipNoDescription SkipReason = "no-description"
)

// Outcome is the per-URL result returned instead of an error
type Outcome struct {
	URL        string
	Title      string
	Status     Status
	SkipReason SkipReason
	// Err is set for Failed outcomes
	Err error
	// Warnings holds extraction errors that were replaced by sentinel values
	Warnings []error
	// Record is set for Completed outcomes
	Record *domain.IngestRecord
}

func (o Outcome) skip(reason SkipReason) Outcome {
	o.Status = StatusSkipped
	o.SkipReason = reason
	return o
}

func (o Outcome) fail(err error) Outcome {
	o.Status = StatusFailed
	o.Err = err
	o.Record = nil
	return o
}

// Summary aggregates the outcomes of one run
type Summary struct {
	Outcomes  []Outcome
	Completed int
	Skipped   int
	Failed    int
}

func (s *Summary) add(o Outcome) {
	s.Outcomes = append(s.Outcomes, o)
	switch o.Status {
	case StatusCompleted:
		s.Completed++
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Failed++
	}
}

// Records returns the records stored during the run, in input order
func (s *Summary) Records() []domain.IngestRecord {
	var out []domain.IngestRecord
	for _, o := range s.Outcomes {
		if o.Record != nil {
			out = append(out, *o.Record)
		}
	}
	return out
}
