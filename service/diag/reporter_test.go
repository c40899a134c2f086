package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthyInputs() Inputs {
	return Inputs{
		ExtensionDetected: true,
		Initialized:       true,
		Paired:            true,
		SignerAvailable:   true,
		Network:           "testnet",
		ReadHandleReady:   true,
		WriteHandleReady:  true,
		SessionPersisted:  true,
	}
}

func TestReporter_HealthyWhenAllChecksPass(t *testing.T) {
	r := NewReporter(nil)
	r.Update(healthyInputs())

	report := r.Report()
	assert.True(t, report.Healthy)
	require.Len(t, report.Checks, 8)
	for _, c := range report.Checks {
		assert.True(t, c.OK, c.Name)
		assert.Empty(t, c.Detail, "passing checks carry no remediation hint")
	}
}

func TestReporter_FailingCheckCarriesDetail(t *testing.T) {
	in := healthyInputs()
	in.ExtensionDetected = false
	in.WriteHandleReady = false

	r := NewReporter(nil)
	r.Update(in)

	report := r.Report()
	assert.False(t, report.Healthy)

	var failed []string
	for _, c := range report.Checks {
		if !c.OK {
			failed = append(failed, c.Name)
			assert.NotEmpty(t, c.Detail, c.Name)
		}
	}
	assert.ElementsMatch(t, []string{"wallet extension detected", "write handle ready"}, failed)
}

func TestReporter_UnknownNetworkFails(t *testing.T) {
	in := healthyInputs()
	in.Network = "localnet"

	r := NewReporter(nil)
	r.Update(in)
	assert.False(t, r.Report().Healthy)
}

func TestReporter_RecomputesOnlyOnChange(t *testing.T) {
	r := NewReporter(nil)
	in := healthyInputs()

	assert.True(t, r.Update(in), "first snapshot always computes")
	assert.False(t, r.Update(in), "identical snapshot must not recompute")
	assert.False(t, r.Update(in))

	in.Paired = false
	assert.True(t, r.Update(in), "changed snapshot recomputes")
	assert.False(t, r.Update(in))
}

func TestReporter_ReportBeforeFirstUpdate(t *testing.T) {
	r := NewReporter(nil)
	report := r.Report()
	assert.False(t, report.Healthy)
	assert.Len(t, report.Checks, 8)
}
