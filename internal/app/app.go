package app

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/olusolaa/cloud-reconciler/internal/config"
	"github.com/olusolaa/cloud-reconciler/internal/core/domain"
	"github.com/olusolaa/cloud-reconciler/internal/core/ports"
	"github.com/olusolaa/cloud-reconciler/internal/core/service"
	"github.com/olusolaa/cloud-reconciler/internal/core/service/plan"
	"github.com/olusolaa/cloud-reconciler/internal/errors"
	"github.com/olusolaa/cloud-reconciler/pkg/convert"
)

// Application wires the spec source, the controller, and the reporter
// into one reconciliation run.
type Application struct {
	Controller *service.Controller
	Source     ports.SpecSource
	Reporter   ports.Reporter
	Logger     ports.Logger
	Config     *config.Config
}

// Run reconciles every declared resource and reports the results. A
// failed resource never stops its siblings; the aggregate error
// reflects how many resources failed.
func (a *Application) Run(ctx context.Context) error {
	a.Logger.Infof(ctx, "Starting reconciliation run (check_mode=%t)", a.Config.Settings.CheckMode)

	docs, err := a.Source.ListDocuments(ctx)
	if err != nil {
		a.Logger.Errorf(ctx, err, "Failed to load spec documents")
		return err
	}
	if len(docs) == 0 {
		a.Logger.Warnf(ctx, "Spec source produced no documents; nothing to reconcile")
	}

	var (
		mu      sync.Mutex
		results []*domain.ReconciliationResult
		failed  int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.Config.Settings.Concurrency)

	for _, doc := range docs {
		g.Go(func() error {
			res, runErr := a.reconcileOne(gctx, doc)
			mu.Lock()
			defer mu.Unlock()
			if res != nil {
				results = append(results, res)
			}
			if runErr != nil {
				failed++
				a.Logger.Errorf(gctx, runErr, "Reconciliation failed for %s", doc.Identity)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := a.Reporter.Report(ctx, results); err != nil {
		a.Logger.Errorf(ctx, err, "Failed to generate report")
		return err
	}

	if failed > 0 {
		return errors.Newf(errors.CodeProvisioningFailed,
			"%d of %d resources failed to reconcile", failed, len(docs))
	}
	a.Logger.Infof(ctx, "Reconciliation run completed successfully (%d resources)", len(docs))
	return nil
}

func (a *Application) reconcileOne(ctx context.Context, doc ports.SpecDocument) (*domain.ReconciliationResult, error) {
	desired := doc.Desired
	var attachments []plan.Attachment
	attachmentsDeclared := false

	// Attachment state is a relation reconciled per (resource, target)
	// pair, not a structural field of the volume itself.
	if doc.Identity.Kind == domain.KindBlockVolume && desired != nil {
		var err error
		attachments, err = desiredAttachments(doc)
		if err != nil {
			return nil, err
		}
		if attachments != nil {
			attachmentsDeclared = true
			desired = desired.Clone()
			delete(desired, domain.VolumeAttachmentsKey)
		}
	}

	res, err := a.Controller.Reconcile(ctx, ports.ReconcileRequest{
		Identity:     doc.Identity,
		Desired:      desired,
		DesiredState: doc.DesiredState,
		Power:        doc.Power,
		CheckMode:    a.Config.Settings.CheckMode,
	})
	if err != nil {
		if res == nil {
			res = &domain.ReconciliationResult{
				Identity:  doc.Identity,
				CheckMode: a.Config.Settings.CheckMode,
				Outcomes:  []domain.OperationOutcome{{Identity: doc.Identity, Err: err}},
			}
		}
		return res, err
	}

	// A declared-but-empty list still purges: the caller explicitly
	// asked for zero attachments.
	if !attachmentsDeclared || doc.DesiredState != domain.StatePresent {
		return res, nil
	}

	attRes, err := a.Controller.ReconcileAttachments(ctx, service.AttachmentRequest{
		Resource:  doc.Identity,
		Desired:   attachments,
		Purge:     true,
		CheckMode: a.Config.Settings.CheckMode,
	})
	if attRes != nil {
		res.Outcomes = append(res.Outcomes, attRes.Outcomes...)
		res.Changed = res.Changed || attRes.Changed
		if attRes.State != nil {
			res.State = attRes.State
		}
	}
	if err != nil {
		return res, err
	}
	if !res.FullySucceeded() {
		return res, errors.Newf(errors.CodeProvisioningFailed,
			"one or more attachment operations failed for %s", doc.Identity)
	}
	return res, nil
}

func desiredAttachments(doc ports.SpecDocument) ([]plan.Attachment, error) {
	raw, ok := doc.Desired[domain.VolumeAttachmentsKey]
	if !ok || raw == nil {
		return nil, nil
	}
	items, err := convert.ToSliceOfMap(raw)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeTypeAssertionError,
			"declared attachments are not a list of objects")
	}

	out := make([]plan.Attachment, 0, len(items))
	for _, item := range items {
		instanceName, _ := item[domain.AttachmentInstanceID].(string)
		if instanceName == "" {
			return nil, errors.Newf(errors.CodeSpecParseError,
				"attachment on %s is missing %s", doc.Identity, domain.AttachmentInstanceID)
		}
		out = append(out, plan.Attachment{
			Target: domain.ResourceIdentity{
				Account: doc.Identity.Account,
				Group:   doc.Identity.Group,
				Kind:    domain.KindComputeInstance,
				Name:    instanceName,
			},
			Attributes: domain.SpecTree(item),
		})
	}
	return out, nil
}
