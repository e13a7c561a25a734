package text

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/olusolaa/cloud-reconciler/internal/core/domain"
	"github.com/olusolaa/cloud-reconciler/internal/core/ports"
)

const ReporterTypeText = "text"

type Config struct {
	NoColor bool `yaml:"no_color" mapstructure:"no_color"`
}

type Reporter struct {
	config Config
	writer io.Writer
	logger ports.Logger
}

func NewReporter(cfg Config, logger ports.Logger) (*Reporter, error) {
	if cfg.NoColor || !isTerminal(os.Stdout) {
		color.NoColor = true
	}

	return &Reporter{
		config: cfg,
		writer: os.Stdout,
		logger: logger,
	}, nil
}

// NewReporterWithWriter is for tests.
func NewReporterWithWriter(cfg Config, logger ports.Logger, w io.Writer) *Reporter {
	color.NoColor = true
	return &Reporter{config: cfg, writer: w, logger: logger}
}

func isTerminal(f *os.File) bool {
	stat, _ := f.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

func (r *Reporter) Report(ctx context.Context, results []*domain.ReconciliationResult) error {
	if len(results) == 0 {
		fmt.Fprintln(r.writer, "No resources processed.")
		return nil
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Identity.String() < results[j].Identity.String()
	})

	tw := tabwriter.NewWriter(r.writer, 0, 8, 2, ' ', 0)
	defer tw.Flush()

	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	title := "Reconciliation Report"
	if results[0].CheckMode {
		title = "Reconciliation Report (check mode, no changes applied)"
	}
	fmt.Fprintln(tw, title)
	fmt.Fprintln(tw, strings.Repeat("=", len(title)))
	fmt.Fprintln(tw, "Action\tResource\tDetails")
	fmt.Fprintln(tw, "------\t--------\t-------")

	changedCount := 0
	unchangedCount := 0
	failedCount := 0

	for _, res := range results {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		actionStr := formatPlan(res.Plan)
		details := r.formatDetails(res)

		switch {
		case !res.FullySucceeded():
			failedCount++
			actionStr = red(actionStr)
		case res.Changed:
			changedCount++
			switch res.Plan.Structural {
			case domain.Delete, domain.DetachOnly:
				actionStr = yellow(actionStr)
			default:
				actionStr = cyan(actionStr)
			}
		default:
			unchangedCount++
			actionStr = green(actionStr)
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\n", actionStr, res.Identity, details)
	}

	fmt.Fprintln(tw, "\nSummary:")
	fmt.Fprintln(tw, "-------")
	fmt.Fprintf(tw, "Total Resources:\t%d\n", len(results))
	fmt.Fprintf(tw, "Changed:\t%s\n", cyan(changedCount))
	fmt.Fprintf(tw, "Unchanged:\t%s\n", green(unchangedCount))
	fmt.Fprintf(tw, "Failed:\t%s\n", red(failedCount))

	return nil
}

func formatPlan(p domain.Plan) string {
	if p.Power.Mutates() && p.Structural != domain.NoAction {
		return fmt.Sprintf("[%s+%s]", p.Structural, p.Power)
	}
	if p.Power.Mutates() {
		return fmt.Sprintf("[%s]", p.Power)
	}
	return fmt.Sprintf("[%s]", p.Structural)
}

func (r *Reporter) formatDetails(res *domain.ReconciliationResult) string {
	var parts []string

	if !res.Diff.Empty() {
		parts = append(parts, r.formatDiff(res.Diff))
	}
	for _, o := range res.Outcomes {
		if o.Err != nil {
			parts = append(parts, fmt.Sprintf("%s failed: %v", o.Action, o.Err))
		}
	}
	if len(parts) == 0 {
		if res.Plan.Structural == domain.NoAction && !res.Plan.Power.Mutates() {
			return "In sync."
		}
		return ""
	}
	return strings.Join(parts, "; ")
}

func (r *Reporter) formatDiff(diff *domain.DiffResult) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("%d fields differ: ", len(diff.Diffs)))
	for i, d := range diff.Diffs {
		if i > 0 {
			builder.WriteString("; ")
		}
		switch d.Kind {
		case domain.DiffClear, domain.DiffRemove:
			builder.WriteString(fmt.Sprintf("%s=[removed, was: %v]", d.Path, r.formatValue(d.Actual)))
		default:
			builder.WriteString(fmt.Sprintf("%s=[desired: %v, actual: %v]",
				d.Path, r.formatValue(d.Desired), r.formatValue(d.Actual)))
		}
	}
	return builder.String()
}

func (r *Reporter) formatValue(value any) string {
	const maxLen = 100
	str := fmt.Sprintf("%v", value)
	if len(str) > maxLen {
		return str[:maxLen-3] + "..."
	}
	return str
}
