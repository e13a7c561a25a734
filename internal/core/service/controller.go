package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/olusolaa/cloud-reconciler/internal/core/domain"
	"github.com/olusolaa/cloud-reconciler/internal/core/ports"
	"github.com/olusolaa/cloud-reconciler/internal/core/service/diff"
	"github.com/olusolaa/cloud-reconciler/internal/core/service/plan"
	"github.com/olusolaa/cloud-reconciler/internal/errors"
	"github.com/olusolaa/cloud-reconciler/pkg/backoff"
	"github.com/olusolaa/cloud-reconciler/pkg/convert"
)

// Options tune controller timing. Zero values select defaults.
type Options struct {
	Poll ports.PollOptions
	// DeleteSettle bounds the wait for eventually-consistent deletion to
	// become visible on reads after the delete operation itself settles.
	DeleteSettle backoff.Policy
}

func defaultDeleteSettle() backoff.Policy {
	return backoff.Policy{
		Initial:    2 * time.Second,
		Max:        15 * time.Second,
		Multiplier: 1.5,
		MaxElapsed: 5 * time.Minute,
	}
}

// Controller is the top-level reconciliation orchestrator: fetch, diff,
// plan, execute, poll, re-fetch. One desired-state pass per call.
type Controller struct {
	gateway  ports.ProviderGateway
	registry *ComponentRegistry
	differ   *diff.Engine
	poller   ports.OperationPoller
	logger   ports.Logger
	opts     Options
	locks    *identityLocks
}

var _ ports.Reconciler = (*Controller)(nil)

func NewController(
	gateway ports.ProviderGateway,
	registry *ComponentRegistry,
	differ *diff.Engine,
	poller ports.OperationPoller,
	logger ports.Logger,
	opts Options,
) (*Controller, error) {
	if gateway == nil {
		return nil, errors.New(errors.CodeConfigValidation, "provider gateway cannot be nil")
	}
	if registry == nil {
		return nil, errors.New(errors.CodeConfigValidation, "component registry cannot be nil")
	}
	if differ == nil {
		return nil, errors.New(errors.CodeConfigValidation, "diff engine cannot be nil")
	}
	if poller == nil {
		return nil, errors.New(errors.CodeConfigValidation, "operation poller cannot be nil")
	}
	if opts.DeleteSettle.Initial == 0 {
		opts.DeleteSettle = defaultDeleteSettle()
	}

	return &Controller{
		gateway:  gateway,
		registry: registry,
		differ:   differ,
		poller:   poller,
		logger:   logger,
		opts:     opts,
		locks:    newIdentityLocks(),
	}, nil
}

// Reconcile performs one desired-state pass. In check mode it fetches,
// diffs, and plans, but never issues a mutating call.
func (c *Controller) Reconcile(ctx context.Context, req ports.ReconcileRequest) (*domain.ReconciliationResult, error) {
	if err := req.Identity.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidIdentity, "invalid reconcile request")
	}
	if req.DesiredState == "" {
		req.DesiredState = domain.StatePresent
	}

	desc, err := c.registry.Descriptor(req.Identity.Kind)
	if err != nil {
		return nil, err
	}

	release := c.locks.acquire(req.Identity)
	defer release()

	log := c.logger.WithFields(map[string]any{
		"resource": req.Identity.String(),
		"kind":     string(req.Identity.Kind),
	})

	actual, exists, err := c.gateway.Get(ctx, req.Identity)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeProviderRequestError,
			fmt.Sprintf("fetching actual state of %s", req.Identity))
	}
	log.Debugf(ctx, "Fetched actual state (exists=%t)", exists)

	desired := req.Desired
	if desc.Normalize != nil && desired != nil {
		desired = desc.Normalize(desired.Clone())
	}

	var diffRes *domain.DiffResult
	if exists && req.DesiredState == domain.StatePresent {
		diffRes, err = c.differ.Diff(ctx, desired, actual, desc.Policies, desc.TagMode)
		if err != nil {
			// Immutable conflicts surface here, before any mutating call.
			return nil, err
		}
		log.Debugf(ctx, "Diff produced %d entries: %v", len(diffRes.Diffs), diffRes.Paths())
	}

	p := plan.Plan(plan.Input{
		Exists:       exists,
		DesiredState: req.DesiredState,
		Diff:         diffRes,
		CurrentPower: currentPower(actual),
		DesiredPower: req.Power,
	})
	log.Infof(ctx, "Planned action: structural=%s power=%s", p.Structural, p.Power)

	result := &domain.ReconciliationResult{
		Identity:  req.Identity,
		Plan:      p,
		Diff:      diffRes,
		Changed:   p.Changed(),
		CheckMode: req.CheckMode,
	}

	if req.CheckMode {
		if exists {
			result.State = actual
		}
		return result, nil
	}

	if err := c.execute(ctx, req, desired, p, result, log); err != nil {
		return result, err
	}

	return result, nil
}

func (c *Controller) execute(ctx context.Context, req ports.ReconcileRequest, desired domain.SpecTree, p domain.Plan, result *domain.ReconciliationResult, log ports.Logger) error {
	var handles []ports.OperationHandle

	switch p.Structural {
	case domain.Create:
		h, err := c.gateway.Create(ctx, req.Identity, desired)
		if err != nil {
			return errors.Wrap(err, errors.CodeProviderRequestError,
				fmt.Sprintf("creating %s", req.Identity))
		}
		if h != nil {
			handles = append(handles, h)
		}
	case domain.Update:
		hs, err := c.gateway.Update(ctx, req.Identity, desired, result.Diff)
		if err != nil {
			return errors.Wrap(err, errors.CodeProviderRequestError,
				fmt.Sprintf("updating %s", req.Identity))
		}
		handles = append(handles, hs...)
	case domain.Delete:
		h, err := c.gateway.Delete(ctx, req.Identity)
		if err != nil {
			return errors.Wrap(err, errors.CodeProviderRequestError,
				fmt.Sprintf("deleting %s", req.Identity))
		}
		if h != nil {
			handles = append(handles, h)
		}
	}

	if len(handles) > 0 {
		outcomes := c.poller.AwaitAll(ctx, handles, c.opts.Poll)
		result.Outcomes = append(result.Outcomes, outcomes...)
		for _, o := range outcomes {
			if o.Err != nil {
				// Single-resource flow: the first failed operation is fatal.
				return o.Err
			}
		}
	}

	if p.Power.Mutates() {
		if err := c.applyPower(ctx, req, p.Power, result); err != nil {
			return err
		}
	}

	switch p.Structural {
	case domain.Delete:
		if err := c.awaitAbsence(ctx, req.Identity, log); err != nil {
			return err
		}
		result.State = nil
	default:
		// Re-fetch so the result carries authoritative post-operation
		// state rather than the operation's own echo.
		if p.Structural.Mutates() || p.Power.Mutates() || result.State == nil {
			state, exists, err := c.gateway.Get(ctx, req.Identity)
			if err != nil {
				return errors.Wrap(err, errors.CodeProviderRequestError,
					fmt.Sprintf("re-fetching state of %s", req.Identity))
			}
			if exists {
				result.State = state
			}
		}
	}

	return nil
}

func (c *Controller) applyPower(ctx context.Context, req ports.ReconcileRequest, action domain.Action, result *domain.ReconciliationResult) error {
	target := domain.PowerStopped
	if action == domain.Start {
		target = domain.PowerRunning
	}

	h, err := c.gateway.SetPowerState(ctx, req.Identity, target)
	if err != nil {
		return errors.Wrap(err, errors.CodeProviderRequestError,
			fmt.Sprintf("applying power state '%s' to %s", target, req.Identity))
	}
	if h == nil {
		return nil
	}

	outcomes := c.poller.AwaitAll(ctx, []ports.OperationHandle{h}, c.opts.Poll)
	result.Outcomes = append(result.Outcomes, outcomes...)
	for _, o := range outcomes {
		if o.Err != nil {
			return o.Err
		}
	}
	return nil
}

// awaitAbsence waits for a deleted resource to stop appearing on reads.
// Providers are sometimes eventually consistent after the delete
// operation itself reports success.
func (c *Controller) awaitAbsence(ctx context.Context, id domain.ResourceIdentity, log ports.Logger) error {
	err := c.opts.DeleteSettle.Retry(ctx, func(ctx context.Context) (bool, error) {
		_, exists, err := c.gateway.Get(ctx, id)
		if err != nil {
			return false, errors.Wrap(err, errors.CodeProviderRequestError,
				fmt.Sprintf("checking deletion of %s", id))
		}
		if exists {
			log.Debugf(ctx, "Resource still visible after delete, waiting")
		}
		return !exists, nil
	})
	if _, timedOut := err.(*backoff.ErrBudgetExceeded); timedOut {
		return errors.Newf(errors.CodeOperationTimeout,
			"%s still visible after delete settled", id)
	}
	return err
}

func currentPower(actual domain.SpecTree) domain.PowerState {
	if actual == nil {
		return domain.PowerUnspecified
	}
	raw, _ := actual[domain.ComputeStateKey].(string)
	return plan.NormalizePowerState(raw)
}

// AttachmentRequest reconciles the attachment relation of one resource
// against a desired set of targets.
type AttachmentRequest struct {
	Resource  domain.ResourceIdentity
	Desired   []plan.Attachment
	Purge     bool
	CheckMode bool
}

// ReconcileAttachments fans out one attach/detach operation per
// (resource, target) pair and fans back in, reporting one outcome per
// pair. A failed pair never aborts its already-issued siblings;
// aggregation is left to the caller.
func (c *Controller) ReconcileAttachments(ctx context.Context, req AttachmentRequest) (*domain.ReconciliationResult, error) {
	if err := req.Resource.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidIdentity, "invalid attachment request")
	}

	release := c.locks.acquire(req.Resource)
	defer release()

	log := c.logger.WithFields(map[string]any{"resource": req.Resource.String()})

	actual, exists, err := c.gateway.Get(ctx, req.Resource)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeProviderRequestError,
			fmt.Sprintf("fetching actual state of %s", req.Resource))
	}
	if !exists {
		return nil, errors.Newf(errors.CodeResourceNotFound,
			"%s does not exist; cannot reconcile attachments", req.Resource)
	}

	current, err := attachmentsFromState(req.Resource, actual)
	if err != nil {
		return nil, err
	}

	plans := plan.PlanAttachments(req.Resource, req.Desired, current, req.Purge)
	log.Infof(ctx, "Planned %d attachment operations", len(plans))

	result := &domain.ReconciliationResult{
		Identity:  req.Resource,
		Changed:   len(plans) > 0,
		CheckMode: req.CheckMode,
		State:     actual,
	}
	if req.CheckMode || len(plans) == 0 {
		return result, nil
	}

	// Fan out: issue every operation before any blocking wait. Issuance
	// failures are recorded per pair and do not stop sibling issuance.
	type issued struct {
		plan   domain.AttachmentPlan
		handle ports.OperationHandle
	}
	issuedOps := make([]issued, len(plans))
	failed := make([]error, len(plans))

	g, issueCtx := errgroup.WithContext(ctx)
	for i, ap := range plans {
		g.Go(func() error {
			var h ports.OperationHandle
			var opErr error
			switch ap.Action {
			case domain.AttachOnly:
				h, opErr = c.gateway.Attach(issueCtx, ap.Resource, ap.Target, ap.Attributes)
			case domain.DetachOnly:
				h, opErr = c.gateway.Detach(issueCtx, ap.Resource, ap.Target)
			}
			if opErr != nil {
				failed[i] = errors.Wrap(opErr, errors.CodeProviderRequestError,
					fmt.Sprintf("issuing %s for %s -> %s", ap.Action, ap.Resource, ap.Target))
				return nil
			}
			issuedOps[i] = issued{plan: ap, handle: h}
			return nil
		})
	}
	_ = g.Wait()

	var handles []ports.OperationHandle
	handleIdx := make([]int, 0, len(plans))
	for i, op := range issuedOps {
		if failed[i] == nil && op.handle != nil {
			handles = append(handles, op.handle)
			handleIdx = append(handleIdx, i)
		}
	}

	polled := c.poller.AwaitAll(ctx, handles, c.opts.Poll)

	outcomes := make([]domain.OperationOutcome, len(plans))
	for i, ap := range plans {
		outcomes[i] = domain.OperationOutcome{
			Identity: ap.Resource,
			Target:   ap.Target,
			Action:   ap.Action,
			Err:      failed[i],
		}
	}
	for j, idx := range handleIdx {
		outcomes[idx].State = polled[j].State
		outcomes[idx].Err = polled[j].Err
	}
	result.Outcomes = outcomes

	state, stillExists, err := c.gateway.Get(ctx, req.Resource)
	if err != nil {
		return result, errors.Wrap(err, errors.CodeProviderRequestError,
			fmt.Sprintf("re-fetching state of %s", req.Resource))
	}
	if stillExists {
		result.State = state
	}
	return result, nil
}

func attachmentsFromState(resource domain.ResourceIdentity, actual domain.SpecTree) ([]plan.Attachment, error) {
	raw, ok := actual[domain.VolumeAttachmentsKey]
	if !ok || raw == nil {
		return nil, nil
	}
	items, err := convert.ToSliceOfMap(raw)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeTypeAssertionError,
			fmt.Sprintf("attachments of %s are not a list of objects", resource))
	}

	out := make([]plan.Attachment, 0, len(items))
	for _, item := range items {
		instanceID, _ := item[domain.AttachmentInstanceID].(string)
		if instanceID == "" {
			continue
		}
		out = append(out, plan.Attachment{
			Target: domain.ResourceIdentity{
				Account: resource.Account,
				Group:   resource.Group,
				Kind:    domain.KindComputeInstance,
				Name:    instanceID,
			},
			Attributes: domain.SpecTree(item),
		})
	}
	return out, nil
}
