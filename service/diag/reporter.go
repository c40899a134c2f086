// Package diag derives a connectivity health report from component state.
// The reporter is passive: callers feed it input snapshots, and the report
// is recomputed only when an input actually changed.
package diag

import (
	"sync"

	"github.com/ajohq/ajolink/service/metrics"
)

// Inputs is a point-in-time snapshot of everything the report depends on.
// Plain comparable fields only, so change detection is a struct compare.
type Inputs struct {
	ExtensionDetected bool
	Initialized       bool
	Paired            bool
	SignerAvailable   bool
	Network           string
	ReadHandleReady   bool
	WriteHandleReady  bool
	SessionPersisted  bool
}

// Check is one named pass/fail result with a remediation hint on failure.
type Check struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// Report is the full diagnostics result.
type Report struct {
	Healthy bool    `json:"healthy"`
	Checks  []Check `json:"checks"`
}

// Reporter computes diagnostics reports from input snapshots.
type Reporter struct {
	mu      sync.Mutex
	last    Inputs
	report  Report
	primed  bool
	metrics *metrics.Metrics
}

// NewReporter creates a reporter. metrics may be nil.
func NewReporter(m *metrics.Metrics) *Reporter {
	return &Reporter{metrics: m}
}

// Update feeds a new input snapshot. The report is recomputed only when the
// snapshot differs from the previous one; the return value reports whether a
// recompute happened.
func (r *Reporter) Update(in Inputs) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.primed && in == r.last {
		return false
	}
	r.last = in
	r.report = compute(in)
	r.primed = true
	if r.metrics != nil {
		r.metrics.RecordDiagRecompute()
	}
	return true
}

// Report returns the current report. Before the first Update it is the
// all-failing report for zero inputs.
func (r *Reporter) Report() Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.primed {
		return compute(Inputs{})
	}
	return r.report
}

func compute(in Inputs) Report {
	checks := []Check{
		check("wallet extension detected", in.ExtensionDetected,
			"install the wallet browser extension"),
		check("connector initialized", in.Initialized,
			"initialization has not completed; retry connect"),
		check("wallet paired", in.Paired,
			"no active pairing; run connect"),
		check("signer available", in.SignerAvailable,
			"no signer for the paired account"),
		check("network known", knownNetwork(in.Network),
			"session network is not a recognized network"),
		check("read handle ready", in.ReadHandleReady,
			"no RPC connection for contract reads"),
		check("write handle ready", in.WriteHandleReady,
			"transactions cannot be submitted until pairing completes"),
		check("session persisted", in.SessionPersisted,
			"pairing will not survive a restart"),
	}

	healthy := true
	for _, c := range checks {
		if !c.OK {
			healthy = false
			break
		}
	}
	return Report{Healthy: healthy, Checks: checks}
}

func check(name string, ok bool, detail string) Check {
	c := Check{Name: name, OK: ok}
	if !ok {
		c.Detail = detail
	}
	return c
}

func knownNetwork(network string) bool {
	switch network {
	case "mainnet", "testnet", "previewnet":
		return true
	}
	return false
}
