// Package result defines the Result record produced by the attack engine
// and the binary stream codec used to move it between subcommands.
package result

import "time"

// Result is the recorded outcome of one dispatched request. A successful
// Result has Error empty; a failed Result may carry Code 0 and a non-empty
// Error.
type Result struct {
	AttackName string
	Seq        uint64
	Timestamp  time.Time
	Latency    time.Duration
	BytesIn    uint64
	BytesOut   uint64
	Code       uint16
	URL        string
	Method     string
	Error      string
	Body       []byte
}

// Success reports whether r represents a successful exchange under the
// default classification: no error and a 2xx/3xx status code.
func (r *Result) Success() bool {
	return r.Error == "" && r.Code >= 200 && r.Code < 400
}

// Classifier decides whether a Result counts as successful. Callers may
// supply their own to the Aggregator; DefaultClassifier matches §4.6 of the
// specification.
type Classifier func(*Result) bool

// DefaultClassifier implements `error == "" && 200 <= status < 400`.
func DefaultClassifier(r *Result) bool { return r.Success() }
