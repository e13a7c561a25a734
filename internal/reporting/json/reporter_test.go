package json

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olusolaa/cloud-reconciler/internal/core/domain"
	"github.com/olusolaa/cloud-reconciler/internal/log"
)

func newTestReporter(t *testing.T) (*Reporter, *bytes.Buffer) {
	t.Helper()
	logger, err := log.NewLoggerWithWriter(log.DefaultConfig(), io.Discard)
	require.NoError(t, err)
	buf := &bytes.Buffer{}
	return NewReporterWithWriter(Config{}, logger, buf), buf
}

func identity(name string) domain.ResourceIdentity {
	return domain.ResourceIdentity{Account: "123456789012", Group: "us-east-1a", Kind: domain.KindComputeInstance, Name: name}
}

func TestReporter_Report(t *testing.T) {
	r, buf := newTestReporter(t)

	results := []*domain.ReconciliationResult{
		{
			Identity: identity("web-1"),
			Plan:     domain.Plan{Structural: domain.Update, Power: domain.Start},
			Diff: &domain.DiffResult{Diffs: []domain.FieldDiff{
				{Path: "instance_type", Kind: domain.DiffSet, Desired: "t3.large", Actual: "t3.micro"},
			}},
			Changed: true,
			State:   domain.SpecTree{"id": "i-0abc"},
		},
		{
			Identity: identity("web-2"),
			Plan:     domain.Plan{Structural: domain.NoAction, Power: domain.NoAction},
		},
		{
			Identity: identity("web-3"),
			Plan:     domain.Plan{Structural: domain.Create, Power: domain.NoAction},
			Changed:  true,
			Outcomes: []domain.OperationOutcome{
				{Identity: identity("web-3"), Action: domain.Create, Err: fmt.Errorf("capacity exhausted")},
			},
		},
	}

	require.NoError(t, r.Report(context.Background(), results))

	var report jsonReport
	var json = jsoniter.ConfigCompatibleWithStandardLibrary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))

	assert.Equal(t, 3, report.Summary.TotalResources)
	assert.Equal(t, 1, report.Summary.Changed)
	assert.Equal(t, 1, report.Summary.Unchanged)
	assert.Equal(t, 1, report.Summary.Failed)
	assert.False(t, report.Summary.CheckMode)

	require.Len(t, report.Results, 3)

	web1 := report.Results[0]
	assert.Equal(t, identity("web-1").String(), web1.Resource)
	assert.Equal(t, domain.Update, web1.Structural)
	assert.Equal(t, domain.Start, web1.Power)
	require.Len(t, web1.Differences, 1)
	assert.Equal(t, "instance_type", web1.Differences[0].Path)
	assert.Equal(t, "t3.large", web1.Differences[0].Desired)
	assert.Equal(t, "i-0abc", web1.State["id"])

	web2 := report.Results[1]
	assert.False(t, web2.Changed)
	assert.Empty(t, web2.Power)
	assert.Empty(t, web2.Differences)

	web3 := report.Results[2]
	require.Len(t, web3.Operations, 1)
	assert.Equal(t, domain.Create, web3.Operations[0].Action)
	assert.Equal(t, "capacity exhausted", web3.Operations[0].Error)
}

func TestReporter_Report_CheckMode(t *testing.T) {
	r, buf := newTestReporter(t)

	results := []*domain.ReconciliationResult{
		{
			Identity:  identity("web-1"),
			Plan:      domain.Plan{Structural: domain.Create, Power: domain.NoAction},
			Changed:   true,
			CheckMode: true,
		},
	}

	require.NoError(t, r.Report(context.Background(), results))

	var report jsonReport
	var json = jsoniter.ConfigCompatibleWithStandardLibrary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	assert.True(t, report.Summary.CheckMode)
}

func TestReporter_Report_Empty(t *testing.T) {
	r, buf := newTestReporter(t)
	require.NoError(t, r.Report(context.Background(), nil))

	var report jsonReport
	var json = jsoniter.ConfigCompatibleWithStandardLibrary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	assert.Zero(t, report.Summary.TotalResources)
	assert.Empty(t, report.Results)
}
