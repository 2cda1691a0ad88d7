package output

import (
	"fmt"
	"io"

	"github.com/pgdta/dta/internal/model"
	"github.com/pgdta/dta/internal/pgdriver"
)

// MarkdownRenderer produces markdown output for documentation/tickets.
type MarkdownRenderer struct {
	w io.Writer
}

func (r *MarkdownRenderer) RenderSession(sess *model.Session) {
	fmt.Fprintf(r.w, "# dta — workload analysis\n\n")
	fmt.Fprintf(r.w, "**Source:** %s\n\n", sess.WorkloadSource)

	fmt.Fprintf(r.w, "| Property | Value |\n|---|---|\n")
	fmt.Fprintf(r.w, "| Session | `%s` |\n", sess.ID)
	fmt.Fprintf(r.w, "| Queries analyzed | %d |\n", len(sess.Workload))
	fmt.Fprintf(r.w, "| Budget | %s |\n\n", budgetLabel(sess.BudgetMB))

	if sess.Err != nil {
		fmt.Fprintf(r.w, "## Error\n\n%s\n", sess.Err.Error())
		return
	}

	if len(sess.Recommendations) == 0 {
		fmt.Fprintf(r.w, "## Recommendations\n\nNone — the workload is already well served.\n")
		return
	}

	fmt.Fprintf(r.w, "## Recommendations\n\n")
	fmt.Fprintf(r.w, "| # | Definition | Size | Progressive gain | Individual gain |\n|---|---|---|---|---|\n")
	for i, rec := range sess.Recommendations {
		fmt.Fprintf(r.w, "| %d | `%s` | %s | %s | %s |\n",
			i+1, rec.Definition, humanBytes(rec.EstimatedSizeBytes),
			improvementLabel(rec.ProgressiveImprovementMultiple()),
			improvementLabel(rec.IndividualImprovementMultiple()))
	}
	fmt.Fprintln(r.w)
}

func (r *MarkdownRenderer) RenderConnection(cfg pgdriver.ConnectionConfig, version pgdriver.ServerVersion, hypopgInstalled bool) {
	fmt.Fprintf(r.w, "# dta — connection info\n\n")
	fmt.Fprintf(r.w, "| Property | Value |\n|---|---|\n")
	fmt.Fprintf(r.w, "| Host | %s:%d |\n", cfg.Host, cfg.Port)
	fmt.Fprintf(r.w, "| Database | %s |\n", cfg.Database)
	fmt.Fprintf(r.w, "| Server version | %s |\n", version.String())
	fmt.Fprintf(r.w, "| hypopg installed | %v |\n", hypopgInstalled)
}
