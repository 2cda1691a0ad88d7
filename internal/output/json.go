package output

import (
	"encoding/json"
	"io"

	"github.com/pgdta/dta/internal/model"
	"github.com/pgdta/dta/internal/pgdriver"
)

// JSONRenderer produces machine-readable JSON output.
type JSONRenderer struct {
	w io.Writer
}

type jsonSessionOutput struct {
	SessionID       string                  `json:"session_id"`
	WorkloadSource  string                  `json:"workload_source"`
	QueryCount      int                     `json:"query_count"`
	BudgetMB        int                     `json:"budget_mb"`
	Error           string                  `json:"error,omitempty"`
	Recommendations []jsonRecommendation    `json:"recommendations,omitempty"`
	Trace           []string                `json:"trace,omitempty"`
}

type jsonRecommendation struct {
	Definition                  string   `json:"definition"`
	Table                       string   `json:"table"`
	Columns                     []string `json:"columns"`
	Method                      string   `json:"access_method"`
	EstimatedSizeBytes          int64    `json:"estimated_size_bytes"`
	EstimatedSizeHuman          string   `json:"estimated_size_human"`
	IndividualBaseCost          float64  `json:"individual_base_cost"`
	IndividualRecommendedCost   float64  `json:"individual_recommended_cost"`
	IndividualImprovementMultiple float64 `json:"individual_improvement_multiple"`
	ProgressiveBaseCost         float64  `json:"progressive_base_cost"`
	ProgressiveRecommendedCost  float64  `json:"progressive_recommended_cost"`
	ProgressiveImprovementMultiple float64 `json:"progressive_improvement_multiple"`
	ProblematicReason           string   `json:"problematic_reason,omitempty"`
	Queries                     []string `json:"queries,omitempty"`
}

func (r *JSONRenderer) RenderSession(sess *model.Session) {
	out := jsonSessionOutput{
		SessionID:      sess.ID,
		WorkloadSource: sess.WorkloadSource,
		QueryCount:     len(sess.Workload),
		BudgetMB:       sess.BudgetMB,
		Trace:          sess.Trace,
	}
	if sess.Err != nil {
		out.Error = sess.Err.Error()
	}
	for _, rec := range sess.Recommendations {
		out.Recommendations = append(out.Recommendations, jsonRecommendation{
			Definition:                     rec.Definition,
			Table:                          rec.Index.Table,
			Columns:                        rec.Index.Columns,
			Method:                         string(rec.Index.Method),
			EstimatedSizeBytes:             rec.EstimatedSizeBytes,
			EstimatedSizeHuman:             humanBytes(rec.EstimatedSizeBytes),
			IndividualBaseCost:             rec.IndividualBaseCost,
			IndividualRecommendedCost:      rec.IndividualRecommendedCost,
			IndividualImprovementMultiple:  rec.IndividualImprovementMultiple(),
			ProgressiveBaseCost:            rec.ProgressiveBaseCost,
			ProgressiveRecommendedCost:     rec.ProgressiveRecommendedCost,
			ProgressiveImprovementMultiple: rec.ProgressiveImprovementMultiple(),
			ProblematicReason:              rec.Index.ProblematicReason,
			Queries:                        rec.Queries,
		})
	}

	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}

func (r *JSONRenderer) RenderConnection(cfg pgdriver.ConnectionConfig, version pgdriver.ServerVersion, hypopgInstalled bool) {
	out := map[string]any{
		"host":             cfg.Host,
		"port":             cfg.Port,
		"database":         cfg.Database,
		"server_version":   version.String(),
		"hypopg_installed": hypopgInstalled,
	}
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}
