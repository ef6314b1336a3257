package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func step(name string, critical bool, outcome Outcome, err error, calls *[]string) Step {
	return StepFunc{
		StepName:   name,
		IsCritical: critical,
		Fn: func(ctx context.Context) (Outcome, error) {
			*calls = append(*calls, name)
			return outcome, err
		},
	}
}

func TestRun_AllStepsInOrder(t *testing.T) {
	var calls []string
	o := NewOrchestrator(
		step("a", true, OutcomeDegraded, nil, &calls),
		step("b", false, OutcomeCommitted, nil, &calls),
		step("c", false, OutcomeWarning, nil, &calls),
	)

	report, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, calls)
	assert.Equal(t, OutcomeDegraded, report.Outcome("a"))
	assert.Equal(t, OutcomeCommitted, report.Outcome("b"))
	assert.Equal(t, OutcomeWarning, report.Outcome("c"))
}

func TestRun_NonCriticalFailureBecomesWarning(t *testing.T) {
	var calls []string
	boom := errors.New("batch insert failed")
	o := NewOrchestrator(
		step("a", true, OutcomeCommitted, nil, &calls),
		step("b", false, OutcomeCommitted, boom, &calls),
		step("c", false, OutcomeCommitted, nil, &calls),
	)

	report, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, calls)
	assert.Equal(t, OutcomeWarning, report.Outcome("b"))
	assert.ErrorIs(t, report.Results[1].Err, boom)
}

func TestRun_CriticalFailureStops(t *testing.T) {
	var calls []string
	boom := errors.New("schema incompatible")
	o := NewOrchestrator(
		step("a", true, OutcomeCommitted, boom, &calls),
		step("b", false, OutcomeCommitted, nil, &calls),
	)

	report, err := o.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a"}, calls)
	assert.Equal(t, OutcomeFailed, report.Outcome("a"))
	assert.Equal(t, OutcomeSkipped, report.Outcome("b"))
	assert.Equal(t, Outcome(""), report.Outcome("missing"))
}
