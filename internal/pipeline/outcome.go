package pipeline

import (
	"github.com/sells-group/leadsignal/internal/model"
)

// Status is the terminal state of one signal.
type Status string

const (
	StatusCreated Status = "created"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// SkipReason says why a signal produced no lead without being an error.
type SkipReason string

const (
	ReasonInvalidInput   SkipReason = "invalid_input"
	ReasonUnresolved     SkipReason = "unresolved_company"
	ReasonNoProducts     SkipReason = "no_products"
	ReasonBelowThreshold SkipReason = "below_threshold"
)

// Outcome is the result of processing one signal. Kind holds the model
// error class (ErrInvalidInput, ErrResolution, ErrPersistence) for skipped
// and failed outcomes; Err holds the cause.
type Outcome struct {
	Status    Status     `json:"status"`
	LeadID    int64      `json:"lead_id,omitempty"`
	CompanyID int64      `json:"company_id,omitempty"`
	OfficerID int64      `json:"officer_id,omitempty"`
	Score     float64    `json:"score,omitempty"`
	Reason    SkipReason `json:"reason,omitempty"`
	Kind      error      `json:"-"`
	Err       error      `json:"-"`
	Message   string     `json:"error,omitempty"`
	Notified  bool       `json:"notified"`
}

func skip(reason SkipReason, kind, err error) Outcome {
	return Outcome{Status: StatusSkipped, Reason: reason, Kind: kind, Err: err, Message: errMessage(err)}
}

func fail(err error) Outcome {
	return Outcome{Status: StatusFailed, Kind: model.ErrPersistence, Err: err, Message: errMessage(err)}
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// rollback reports whether the signal's writes must be discarded. Gate and
// no-product skips keep the company and source bookkeeping.
func (o Outcome) rollback() bool {
	switch o.Status {
	case StatusFailed:
		return true
	case StatusSkipped:
		return o.Reason == ReasonInvalidInput || o.Reason == ReasonUnresolved
	default:
		return false
	}
}

// BatchResult tallies a ProcessMany run.
type BatchResult struct {
	RunID     string    `json:"run_id"`
	Processed int       `json:"processed"`
	Created   int       `json:"created"`
	Skipped   int       `json:"skipped"`
	Errors    int       `json:"errors"`
	LeadIDs   []int64   `json:"lead_ids"`
	Outcomes  []Outcome `json:"outcomes,omitempty"`
}

func (b *BatchResult) add(o Outcome) {
	b.Processed++
	switch o.Status {
	case StatusCreated:
		b.Created++
		b.LeadIDs = append(b.LeadIDs, o.LeadID)
	case StatusSkipped:
		b.Skipped++
	case StatusFailed:
		b.Errors++
	}
	b.Outcomes = append(b.Outcomes, o)
}
