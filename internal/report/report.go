// Package report renders plain-text exports of projects, ROI projections
// and audit trails.
package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/citymind/urbanlink/internal/domain/roi"
	"github.com/citymind/urbanlink/internal/model"
)

const dateLayout = "2006-01-02"

// ProjectData is everything the project status report prints
type ProjectData struct {
	Project     model.ProjectDetail
	Budget      model.BudgetSummary
	Tasks       []model.Task
	Compliance  model.ComplianceSummary
	Milestones  []model.Milestone
	GeneratedAt time.Time
}

// ProjectFilename is the attachment name for a project report
func ProjectFilename(d *ProjectData) string {
	return "project-" + slug(d.Project.Name) + "-" + d.GeneratedAt.Format(dateLayout) + ".txt"
}

// ROIFilename is the attachment name for an ROI report
func ROIFilename(generated time.Time) string {
	return "roi-" + generated.Format(dateLayout) + ".txt"
}

// ProjectStatus writes the project status report
func ProjectStatus(w io.Writer, d *ProjectData) error {
	out := newWriter(w)
	p := d.Project

	out.title("PROJECT STATUS REPORT: " + p.Name)
	out.line("Generated: %s", d.GeneratedAt.UTC().Format(time.RFC3339))
	out.blank()

	out.kv("Status", string(p.Status))
	out.kv("Progress", fmt.Sprintf("%.1f%% (%d of %d tasks done)", p.Progress, p.TasksDone, p.TasksTotal))
	if p.StartDate != nil {
		out.kv("Start date", p.StartDate.Format(dateLayout))
	}
	if p.EndDate != nil {
		out.kv("End date", p.EndDate.Format(dateLayout))
	}
	out.blank()

	out.section("BUDGET")
	b := d.Budget
	out.kv("Budget total", money(b.BudgetTotal))
	out.kv("Planned", money(b.TotalPlanned))
	out.kv("Actual", money(b.TotalActual))
	out.kv("Variance", money(b.Variance))
	out.kv("Utilization", fmt.Sprintf("%.1f%%", b.UtilizationPercent))
	out.kv("Remaining", money(b.Remaining))
	if b.OverBudget {
		out.line("** OVER BUDGET **")
	}
	if len(b.ByCategory) > 0 {
		out.blank()
		out.table([]string{"Category", "Planned", "Actual", "Variance"}, func(row func(...string)) {
			for _, c := range b.ByCategory {
				row(string(c.Category), money(c.Planned), money(c.Actual), money(c.Variance))
			}
		})
	}
	out.blank()

	out.section("TASKS")
	byStatus := make(map[model.TaskStatus]int, len(model.TaskStatuses))
	var overdue []model.Task
	for _, t := range d.Tasks {
		byStatus[t.Status]++
		if t.IsOverdue(d.GeneratedAt) {
			overdue = append(overdue, t)
		}
	}
	for _, s := range model.TaskStatuses {
		out.kv(string(s), fmt.Sprint(byStatus[s]))
	}
	if len(overdue) > 0 {
		out.blank()
		out.line("Overdue:")
		for _, t := range overdue {
			out.line("  - %s (due %s)", t.Title, t.DueDate.Format(dateLayout))
		}
	}
	out.blank()

	out.section("COMPLIANCE")
	c := d.Compliance
	out.kv("Requirements", fmt.Sprint(c.Total))
	out.kv("Score", fmt.Sprintf("%.1f%%", c.Score))
	for _, s := range model.ComplianceStatuses {
		out.kv(string(s), fmt.Sprint(c.ByStatus[s]))
	}
	out.blank()

	out.section("MILESTONES")
	if len(d.Milestones) == 0 {
		out.line("none")
	}
	for _, m := range d.Milestones {
		mark := " "
		if m.Completed {
			mark = "x"
		}
		out.line("[%s] %s  %s", mark, m.DueDate.Format(dateLayout), m.Name)
	}
	return out.flush()
}

// ROI writes an ROI projection
func ROI(w io.Writer, r *roi.Result) error {
	out := newWriter(w)
	in := r.Input

	out.title("ROI PROJECTION")
	out.blank()
	out.section("INPUTS")
	out.kv("Initial investment", money(in.InitialInvestment))
	out.kv("Annual operating cost", money(in.AnnualOperatingCost))
	out.kv("Years", fmt.Sprint(in.Years))
	out.kv("Discount rate", fmt.Sprintf("%.2f%%", in.DiscountRate*100))
	out.kv("Benefit growth", fmt.Sprintf("%.2f%%", in.BenefitGrowthRate*100))
	for _, s := range r.Breakdown {
		out.kv("Benefit: "+s.Category, fmt.Sprintf("%s (%.1f%%)", money(s.Amount), s.Percent))
	}
	out.blank()

	out.section("TOTALS")
	out.kv("Total cost", money(r.TotalCost))
	out.kv("Total benefit", money(r.TotalBenefit))
	out.kv("Net benefit", money(r.NetBenefit))
	out.kv("ROI", fmt.Sprintf("%.1f%%", r.ROIPercent))
	out.kv("NPV", money(r.NPV))
	if r.PaybackMonths != nil {
		out.kv("Payback", fmt.Sprintf("%.1f months", *r.PaybackMonths))
	} else {
		out.kv("Payback", "not reached")
	}
	out.blank()

	out.section("BY YEAR")
	out.table([]string{"Year", "Benefit", "Operating", "Net", "Cumulative", "Discounted"}, func(row func(...string)) {
		for _, y := range r.Years {
			row(fmt.Sprint(y.Year), money(y.Benefit), money(y.OperatingCost), money(y.Net),
				money(y.CumulativeNet), money(y.DiscountedNet))
		}
	})
	return out.flush()
}

// AuditLog writes audit entries oldest first as received
func AuditLog(w io.Writer, entries []model.AuditLog) error {
	out := newWriter(w)
	out.title("AUDIT LOG")
	out.blank()
	out.table([]string{"Time", "Actor", "Action", "Entity", "Details"}, func(row func(...string)) {
		for _, e := range entries {
			row(e.CreatedAt.UTC().Format(time.RFC3339), e.ActorID.String(), e.Action,
				e.EntityType+"/"+e.EntityID.String(), string(e.Details))
		}
	})
	return out.flush()
}

// writer remembers the first error so callers check once at flush
type writer struct {
	bw  *bufio.Writer
	err error
}

func newWriter(w io.Writer) *writer {
	return &writer{bw: bufio.NewWriter(w)}
}

func (w *writer) line(format string, args ...any) {
	if w.err != nil {
		return
	}
	_, w.err = fmt.Fprintf(w.bw, format+"\n", args...)
}

func (w *writer) blank() { w.line("") }

func (w *writer) title(s string) {
	w.line("%s", s)
	w.line("%s", strings.Repeat("=", len(s)))
}

func (w *writer) section(s string) {
	w.line("%s", s)
	w.line("%s", strings.Repeat("-", len(s)))
}

func (w *writer) kv(key, value string) {
	w.line("%-24s %s", key+":", value)
}

func (w *writer) table(header []string, rows func(row func(...string))) {
	if w.err != nil {
		return
	}
	tw := tabwriter.NewWriter(w.bw, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")
	rows(func(cells ...string) {
		fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
	})
	w.err = tw.Flush()
}

func (w *writer) flush() error {
	if w.err != nil {
		return w.err
	}
	return w.bw.Flush()
}

func money(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	whole := fmt.Sprintf("%.2f", v)
	intPart, frac := whole[:len(whole)-3], whole[len(whole)-3:]
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String() + frac
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
