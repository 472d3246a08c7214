// Package doctor runs health checks over the bus's configuration and on-disk state.
package doctor

import "context"

// Status is the outcome of one checked item.
type Status int

const (
	StatusPass Status = iota
	StatusWarn
	StatusFail
	// StatusFixed marks a problem repaired during the run.
	StatusFixed
)

var statusNames = [...]string{"pass", "warn", "fail", "fixed"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// MarshalText renders the status by name in JSON output.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CheckItem is one line of a check's result. Fixable items are repaired by --fix.
type CheckItem struct {
	Label   string `json:"label"`
	Status  Status `json:"status"`
	Detail  string `json:"detail,omitempty"`
	Fixable bool   `json:"fixable,omitempty"`
}

// Result groups the items a check produced.
type Result struct {
	Name  string      `json:"name"`
	Items []CheckItem `json:"items"`
}

// Check inspects one area: configuration, subscribers or queues.
type Check interface {
	Name() string
	Run(ctx context.Context) Result
}

// RunAll runs checks in order.
func RunAll(ctx context.Context, checks []Check) []Result {
	results := make([]Result, 0, len(checks))
	for _, check := range checks {
		results = append(results, check.Run(ctx))
	}
	return results
}

// Tally counts items by outcome. Fixed items count as passed.
type Tally struct {
	Passed  int `json:"passed"`
	Warned  int `json:"warned"`
	Failed  int `json:"failed"`
	Fixable int `json:"fixable"`
}

// Healthy reports whether no item failed.
func (t Tally) Healthy() bool { return t.Failed == 0 }

// Count tallies the items of results.
func Count(results []Result) Tally {
	var t Tally
	for _, r := range results {
		for _, item := range r.Items {
			switch item.Status {
			case StatusPass, StatusFixed:
				t.Passed++
			case StatusWarn:
				t.Warned++
			case StatusFail:
				t.Failed++
			}
			if item.Fixable && item.Status != StatusPass && item.Status != StatusFixed {
				t.Fixable++
			}
		}
	}
	return t
}
