package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/olusolaa/cloud-reconciler/internal/core/domain"
)

func diffWith(paths ...string) *domain.DiffResult {
	res := &domain.DiffResult{}
	for _, p := range paths {
		res.Diffs = append(res.Diffs, domain.FieldDiff{Path: p, Kind: domain.DiffSet})
	}
	return res
}

func TestPlan_Structural(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want domain.Action
	}{
		{"absent and desired present creates", Input{Exists: false, DesiredState: domain.StatePresent}, domain.Create},
		{"absent and desired absent is a no-op", Input{Exists: false, DesiredState: domain.StateAbsent}, domain.NoAction},
		{"present and desired absent deletes", Input{Exists: true, DesiredState: domain.StateAbsent}, domain.Delete},
		{"present with diff updates", Input{Exists: true, DesiredState: domain.StatePresent, Diff: diffWith("instance_type")}, domain.Update},
		{"present without diff is a no-op", Input{Exists: true, DesiredState: domain.StatePresent, Diff: &domain.DiffResult{}}, domain.NoAction},
		{"present with nil diff is a no-op", Input{Exists: true, DesiredState: domain.StatePresent}, domain.NoAction},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Plan(tc.in)
			assert.Equal(t, tc.want, got.Structural)
		})
	}
}

func TestPlan_Power(t *testing.T) {
	tests := []struct {
		name           string
		in             Input
		wantStructural domain.Action
		wantPower      domain.Action
	}{
		{
			"running resource asked to run needs nothing",
			Input{Exists: true, DesiredState: domain.StatePresent, CurrentPower: domain.PowerRunning, DesiredPower: domain.PowerRunning},
			domain.NoAction, domain.NoAction,
		},
		{
			"stopped resource asked to run starts",
			Input{Exists: true, DesiredState: domain.StatePresent, CurrentPower: domain.PowerStopped, DesiredPower: domain.PowerRunning},
			domain.NoAction, domain.Start,
		},
		{
			"running resource asked to stop stops",
			Input{Exists: true, DesiredState: domain.StatePresent, CurrentPower: domain.PowerRunning, DesiredPower: domain.PowerStopped},
			domain.NoAction, domain.Stop,
		},
		{
			"power accompanies a structural update",
			Input{Exists: true, DesiredState: domain.StatePresent, Diff: diffWith("instance_type"), CurrentPower: domain.PowerRunning, DesiredPower: domain.PowerStopped},
			domain.Update, domain.Stop,
		},
		{
			"new instances boot running without a power action",
			Input{Exists: false, DesiredState: domain.StatePresent, DesiredPower: domain.PowerRunning},
			domain.Create, domain.NoAction,
		},
		{
			"created instance desired stopped gets a stop",
			Input{Exists: false, DesiredState: domain.StatePresent, DesiredPower: domain.PowerStopped},
			domain.Create, domain.Stop,
		},
		{
			"power never accompanies delete",
			Input{Exists: true, DesiredState: domain.StateAbsent, CurrentPower: domain.PowerRunning, DesiredPower: domain.PowerStopped},
			domain.Delete, domain.NoAction,
		},
		{
			"unspecified power is left alone",
			Input{Exists: true, DesiredState: domain.StatePresent, CurrentPower: domain.PowerRunning},
			domain.NoAction, domain.NoAction,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Plan(tc.in)
			assert.Equal(t, tc.wantStructural, got.Structural)
			assert.Equal(t, tc.wantPower, got.Power)
		})
	}
}

func TestPlanAttachments(t *testing.T) {
	vol := domain.ResourceIdentity{Account: "a", Group: "g", Kind: domain.KindBlockVolume, Name: "data"}
	target := func(name string) domain.ResourceIdentity {
		return domain.ResourceIdentity{Account: "a", Group: "g", Kind: domain.KindComputeInstance, Name: name}
	}

	t.Run("attach missing and detach undeclared under purge", func(t *testing.T) {
		desired := []Attachment{
			{Target: target("web-1"), Attributes: domain.SpecTree{"device": "/dev/sdf"}},
			{Target: target("web-2")},
		}
		actual := []Attachment{
			{Target: target("web-2")},
			{Target: target("web-3")},
		}

		plans := PlanAttachments(vol, desired, actual, true)
		assert.Len(t, plans, 2)

		byTarget := map[string]domain.AttachmentPlan{}
		for _, p := range plans {
			byTarget[p.Target.Name] = p
		}
		assert.Equal(t, domain.AttachOnly, byTarget["web-1"].Action)
		assert.Equal(t, domain.SpecTree{"device": "/dev/sdf"}, byTarget["web-1"].Attributes)
		assert.Equal(t, domain.DetachOnly, byTarget["web-3"].Action)
	})

	t.Run("no purge keeps undeclared attachments", func(t *testing.T) {
		plans := PlanAttachments(vol, nil, []Attachment{{Target: target("web-3")}}, false)
		assert.Empty(t, plans)
	})

	t.Run("already converged plans nothing", func(t *testing.T) {
		desired := []Attachment{{Target: target("web-1")}}
		actual := []Attachment{{Target: target("web-1")}}
		assert.Empty(t, PlanAttachments(vol, desired, actual, true))
	})
}

func TestNormalizePowerState(t *testing.T) {
	assert.Equal(t, domain.PowerRunning, NormalizePowerState("running"))
	assert.Equal(t, domain.PowerRunning, NormalizePowerState("RUNNING"))
	assert.Equal(t, domain.PowerStopped, NormalizePowerState("stopped"))
	assert.Equal(t, domain.PowerUnspecified, NormalizePowerState("pending"))
	assert.Equal(t, domain.PowerUnspecified, NormalizePowerState(""))
}
