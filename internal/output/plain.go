package output

import (
	"fmt"
	"io"

	"github.com/pgdta/dta/internal/model"
	"github.com/pgdta/dta/internal/pgdriver"
)

// PlainRenderer produces unformatted text output safe for piping.
type PlainRenderer struct {
	w io.Writer
}

func (r *PlainRenderer) RenderSession(sess *model.Session) {
	fmt.Fprintf(r.w, "=== dta — workload analysis (%s) ===\n\n", sess.WorkloadSource)
	fmt.Fprintf(r.w, "Session:       %s\n", sess.ID)
	fmt.Fprintf(r.w, "Queries:       %d\n", len(sess.Workload))
	fmt.Fprintf(r.w, "Budget:        %s\n\n", budgetLabel(sess.BudgetMB))

	if sess.Err != nil {
		fmt.Fprintf(r.w, "ERROR: %s\n", sess.Err.Error())
		return
	}

	if len(sess.Recommendations) == 0 {
		fmt.Fprintln(r.w, "No recommendations.")
		return
	}

	for i, rec := range sess.Recommendations {
		fmt.Fprintf(r.w, "--- Recommendation %d ---\n", i+1)
		fmt.Fprintf(r.w, "Definition:    %s\n", rec.Definition)
		fmt.Fprintf(r.w, "Size:          %s\n", humanBytes(rec.EstimatedSizeBytes))
		fmt.Fprintf(r.w, "Progressive:   %s\n", improvementLabel(rec.ProgressiveImprovementMultiple()))
		fmt.Fprintf(r.w, "Individual:    %s\n\n", improvementLabel(rec.IndividualImprovementMultiple()))
	}
}

func (r *PlainRenderer) RenderConnection(cfg pgdriver.ConnectionConfig, version pgdriver.ServerVersion, hypopgInstalled bool) {
	fmt.Fprintf(r.w, "Connected to:    %s:%d/%s\n", cfg.Host, cfg.Port, cfg.Database)
	fmt.Fprintf(r.w, "Server version:  %s\n", version.String())
	fmt.Fprintf(r.w, "hypopg installed: %v\n", hypopgInstalled)
}
