package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/pgdta/dta/internal/model"
	"github.com/pgdta/dta/internal/pgdriver"
)

// TextRenderer produces Lip Gloss styled terminal output.
type TextRenderer struct {
	w io.Writer
}

func (r *TextRenderer) RenderSession(sess *model.Session) {
	width := 64
	fmt.Fprintln(r.w)

	header := TitleStyle.Render(fmt.Sprintf("dta — workload analysis (%s)", sess.WorkloadSource))
	summaryLines := []string{
		r.labelValue("Session:", sess.ID),
		r.labelValue("Queries analyzed:", fmt.Sprintf("%d", len(sess.Workload))),
		r.labelValue("Budget:", budgetLabel(sess.BudgetMB)),
	}
	fmt.Fprintln(r.w, BoxStyle.Width(width).Render(header+"\n"+strings.Join(summaryLines, "\n")))

	if sess.Err != nil {
		box := DangerBoxStyle.Width(width).Render(
			DangerText.Render(IconDanger+" Session error") + "\n" + sess.Err.Error(),
		)
		fmt.Fprintln(r.w, box)
		return
	}

	if len(sess.Recommendations) == 0 {
		box := GoodBoxStyle.Width(width).Render(
			GoodText.Render(IconGood+" No recommendations") + "\n" +
				"The workload is already well served by the current indexes (or no analyzable query produced a benefit).",
		)
		fmt.Fprintln(r.w, box)
		return
	}

	for i, rec := range sess.Recommendations {
		r.renderRecommendation(width, i+1, rec)
	}

	var totalSize int64
	for _, rec := range sess.Recommendations {
		totalSize += rec.EstimatedSizeBytes
	}
	fmt.Fprintln(r.w, MutedText.Render(fmt.Sprintf("%d index(es) recommended, %s total", len(sess.Recommendations), humanBytes(totalSize))))
	fmt.Fprintln(r.w)
}

func (r *TextRenderer) renderRecommendation(width, n int, rec model.IndexRecommendation) {
	multiple := rec.ProgressiveImprovementMultiple()
	style := GoodBoxStyle
	icon := IconGood
	switch {
	case multiple <= 0:
		style, icon = WarningBoxStyle, IconWarning
	case multiple < 2:
		style, icon = WarningBoxStyle, IconWarning
	}

	lines := []string{
		r.labelValue("Definition:", rec.Definition),
		r.labelValue("Size:", humanBytes(rec.EstimatedSizeBytes)),
		r.labelValue("Progressive gain:", improvementLabel(multiple)),
		r.labelValue("Individual gain:", improvementLabel(rec.IndividualImprovementMultiple())),
	}
	if len(rec.Queries) > 0 {
		lines = append(lines, r.labelValue("Queries:", fmt.Sprintf("%d", len(rec.Queries))))
	}

	title := TitleStyle.Render(fmt.Sprintf("%s Recommendation %d", icon, n))
	fmt.Fprintln(r.w, style.Width(width).Render(title+"\n"+strings.Join(lines, "\n")))
}

func (r *TextRenderer) RenderConnection(cfg pgdriver.ConnectionConfig, version pgdriver.ServerVersion, hypopgInstalled bool) {
	width := 64
	fmt.Fprintln(r.w)

	lines := []string{
		r.labelValue("Connected to:", fmt.Sprintf("%s:%d/%s", cfg.Host, cfg.Port, cfg.Database)),
		r.labelValue("Server version:", version.String()),
		r.labelValue("hypopg installed:", fmt.Sprintf("%v", hypopgInstalled)),
	}

	style := GoodBoxStyle
	if !hypopgInstalled {
		style = WarningBoxStyle
	}
	title := TitleStyle.Render("dta — connection info")
	fmt.Fprintln(r.w, style.Width(width).Render(title+"\n"+strings.Join(lines, "\n")))
	fmt.Fprintln(r.w)
}

func (r *TextRenderer) labelValue(label, value string) string {
	return LabelStyle.Render(label) + " " + ValueStyle.Render(value)
}

func budgetLabel(mb int) string {
	if mb < 0 {
		return "unbounded"
	}
	return fmt.Sprintf("%d MB", mb)
}
