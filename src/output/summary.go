package output

import (
	"io"
	"time"
)

// RunSummary renders the per-job outcome table at the end of a run.
func RunSummary(w io.Writer, jobs []JobRow, elapsed time.Duration, color bool) {
	sec := NewSection(w, "Summary", 0, color)
	status := "success"
	for _, j := range jobs {
		detail := j.Detail
		if j.Duration > 0 {
			detail += Dimmed(" ("+formatElapsed(j.Duration)+")", color)
		}
		SummaryRow(w, j.Name, j.Status, detail, color)
		if j.Status != "success" {
			status = "failed"
		}
	}
	sec.Separator()
	SummaryTotal(w, elapsed, status, color)
	sec.Close()
}
