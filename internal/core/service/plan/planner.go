// Package plan selects the action for a reconcile pass from a closed
// set, given existence, declared intent, and the structural diff.
package plan

import (
	"fmt"

	"github.com/olusolaa/cloud-reconciler/internal/core/domain"
	"github.com/olusolaa/cloud-reconciler/pkg/compare"
)

// Input captures everything the planner looks at. The structural diff
// and the power flag are evaluated independently.
type Input struct {
	Exists       bool
	DesiredState domain.PresenceState
	Diff         *domain.DiffResult

	CurrentPower domain.PowerState
	DesiredPower domain.PowerState
}

// Plan resolves the structural action:
//
//	absent  + present → Create
//	absent  + absent  → NoAction
//	present + absent  → Delete
//	present + present → Update when the diff is non-empty, else NoAction
//
// A desired power state can add Start/Stop even when the structural
// action is NoAction. Power changes never accompany Delete.
func Plan(in Input) domain.Plan {
	p := domain.Plan{Structural: domain.NoAction, Power: domain.NoAction}

	switch {
	case !in.Exists && in.DesiredState == domain.StatePresent:
		p.Structural = domain.Create
	case !in.Exists && in.DesiredState == domain.StateAbsent:
		p.Structural = domain.NoAction
	case in.Exists && in.DesiredState == domain.StateAbsent:
		p.Structural = domain.Delete
	case in.Exists && !in.Diff.Empty():
		p.Structural = domain.Update
	default:
		p.Structural = domain.NoAction
	}

	if p.Structural == domain.Delete {
		return p
	}

	switch in.DesiredPower {
	case domain.PowerRunning:
		if in.Exists && in.CurrentPower != domain.PowerRunning {
			p.Power = domain.Start
		}
		if !in.Exists && p.Structural == domain.Create {
			// New instances boot running; no separate power action.
			p.Power = domain.NoAction
		}
	case domain.PowerStopped:
		if p.Structural == domain.Create || (in.Exists && in.CurrentPower != domain.PowerStopped) {
			p.Power = domain.Stop
		}
	}

	return p
}

// Attachment describes one (resource, target) relation.
type Attachment struct {
	Target     domain.ResourceIdentity
	Attributes domain.SpecTree
}

// PlanAttachments emits one AttachOnly/DetachOnly per (resource, target)
// pair: attach every desired target not currently attached, and detach
// every attached target absent from the desired set when purge is on.
// Attachment state is a relation, so no single Action covers a batch.
func PlanAttachments(resource domain.ResourceIdentity, desired, actual []Attachment, purge bool) []domain.AttachmentPlan {
	actualByTarget := make(map[string]Attachment, len(actual))
	for _, a := range actual {
		actualByTarget[a.Target.String()] = a
	}
	desiredByTarget := make(map[string]Attachment, len(desired))

	var plans []domain.AttachmentPlan
	for _, d := range desired {
		desiredByTarget[d.Target.String()] = d
		if _, attached := actualByTarget[d.Target.String()]; attached {
			continue
		}
		plans = append(plans, domain.AttachmentPlan{
			Action:     domain.AttachOnly,
			Resource:   resource,
			Target:     d.Target,
			Attributes: d.Attributes,
		})
	}

	if purge {
		for _, a := range actual {
			if _, declared := desiredByTarget[a.Target.String()]; declared {
				continue
			}
			plans = append(plans, domain.AttachmentPlan{
				Action:   domain.DetachOnly,
				Resource: resource,
				Target:   a.Target,
			})
		}
	}

	return plans
}

// NormalizePowerState maps provider state strings onto the power enum,
// case-insensitively. Unknown states map to PowerUnspecified.
func NormalizePowerState(raw string) domain.PowerState {
	for _, ps := range []domain.PowerState{domain.PowerRunning, domain.PowerStopped} {
		equal, _ := compare.Values(raw, string(ps), true, true, compare.Options{CaseInsensitive: true})
		if equal {
			return ps
		}
	}
	return domain.PowerUnspecified
}

func (in Input) String() string {
	return fmt.Sprintf("exists=%t desired=%s diffs=%d power=%s->%s",
		in.Exists, in.DesiredState, len(in.Diff.Paths()), in.CurrentPower, in.DesiredPower)
}
