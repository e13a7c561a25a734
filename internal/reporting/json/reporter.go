package json

import (
	"context"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/olusolaa/cloud-reconciler/internal/core/domain"
	"github.com/olusolaa/cloud-reconciler/internal/core/ports"
	"github.com/olusolaa/cloud-reconciler/internal/errors"
)

const ReporterTypeJSON = "json"

type Config struct{}

type Reporter struct {
	config Config
	writer io.Writer
	logger ports.Logger
}

func NewReporter(cfg Config, logger ports.Logger) (*Reporter, error) {
	return &Reporter{
		config: cfg,
		writer: os.Stdout,
		logger: logger,
	}, nil
}

// NewReporterWithWriter is for tests.
func NewReporterWithWriter(cfg Config, logger ports.Logger, w io.Writer) *Reporter {
	return &Reporter{config: cfg, writer: w, logger: logger}
}

type jsonReport struct {
	Summary jsonSummary      `json:"summary"`
	Results []jsonResultItem `json:"results"`
}

type jsonSummary struct {
	TotalResources int  `json:"total_resources"`
	Changed        int  `json:"changed"`
	Unchanged      int  `json:"unchanged"`
	Failed         int  `json:"failed"`
	CheckMode      bool `json:"check_mode"`
}

type jsonResultItem struct {
	Resource    string          `json:"resource"`
	Structural  domain.Action   `json:"structural_action"`
	Power       domain.Action   `json:"power_action,omitempty"`
	Changed     bool            `json:"changed"`
	Differences []jsonFieldDiff `json:"differences,omitempty"`
	Operations  []jsonOperation `json:"operations,omitempty"`
	State       map[string]any  `json:"state,omitempty"`
}

type jsonFieldDiff struct {
	Path    string          `json:"path"`
	Kind    domain.DiffKind `json:"kind"`
	Desired any             `json:"desired,omitempty"`
	Actual  any             `json:"actual,omitempty"`
}

type jsonOperation struct {
	Action domain.Action `json:"action"`
	Target string        `json:"target,omitempty"`
	Error  string        `json:"error,omitempty"`
}

func (r *Reporter) Report(ctx context.Context, results []*domain.ReconciliationResult) error {
	report := jsonReport{
		Summary: jsonSummary{TotalResources: len(results)},
		Results: make([]jsonResultItem, 0, len(results)),
	}

	for _, res := range results {
		if ctx.Err() != nil {
			r.logger.Warnf(ctx, "JSON report generation cancelled.")
			return ctx.Err()
		}

		report.Summary.CheckMode = report.Summary.CheckMode || res.CheckMode
		switch {
		case !res.FullySucceeded():
			report.Summary.Failed++
		case res.Changed:
			report.Summary.Changed++
		default:
			report.Summary.Unchanged++
		}

		item := jsonResultItem{
			Resource:   res.Identity.String(),
			Structural: res.Plan.Structural,
			Changed:    res.Changed,
			State:      res.State,
		}
		if res.Plan.Power.Mutates() {
			item.Power = res.Plan.Power
		}

		if !res.Diff.Empty() {
			item.Differences = make([]jsonFieldDiff, len(res.Diff.Diffs))
			for i, d := range res.Diff.Diffs {
				item.Differences[i] = jsonFieldDiff{
					Path:    d.Path,
					Kind:    d.Kind,
					Desired: d.Desired,
					Actual:  d.Actual,
				}
			}
		}

		for _, o := range res.Outcomes {
			op := jsonOperation{Action: o.Action}
			if o.Target.Name != "" {
				op.Target = o.Target.String()
			}
			if o.Err != nil {
				op.Error = o.Err.Error()
			}
			item.Operations = append(item.Operations, op)
		}

		report.Results = append(report.Results, item)
	}

	var json = jsoniter.ConfigCompatibleWithStandardLibrary
	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(report); err != nil {
		r.logger.Errorf(ctx, err, "Failed to encode JSON report")
		return errors.Wrap(err, errors.CodeInternal, "encoding JSON report")
	}

	r.logger.Debugf(ctx, "JSON report successfully generated.")
	return nil
}
