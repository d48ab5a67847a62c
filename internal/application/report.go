package app

import (
	"fmt"
	"io"
	"strings"

	"grid-annotator/internal/domain/entity"
)

const (
	reportLabelWidth = 18
	reportValueWidth = 8
)

// FormatReport печатает пропускную способность этапов и суммарную.
// Этап с нулевой длительностью печатается как n/a.
func FormatReport(w io.Writer, run *entity.RunSummary) error {
	var b strings.Builder
	for _, st := range run.Stages {
		writeReportLine(&b, st.Stage.Label(), st.Throughput, st.Valid)
	}
	writeReportLine(&b, "Total", run.CombinedThroughput, run.CombinedValid)

	_, err := io.WriteString(w, b.String())
	return err
}

func writeReportLine(b *strings.Builder, label string, fps float64, valid bool) {
	label += ":"
	if !valid {
		fmt.Fprintf(b, "%-*s%*s\n", reportLabelWidth, label, reportValueWidth, "n/a")
		return
	}
	fmt.Fprintf(b, "%-*s%*d fps\n", reportLabelWidth, label, reportValueWidth, int(fps+0.5))
}

// FormatSummary — короткий текст отчёта для уведомлений.
func FormatSummary(run *entity.RunSummary) string {
	var b strings.Builder
	status := "ok"
	if !run.Succeeded() {
		status = "failed: " + run.Err
	}
	fmt.Fprintf(&b, "Run %s %s\n", run.ID, status)
	fmt.Fprintf(&b, "%s -> %s\n", run.Input, run.Output)
	fmt.Fprintf(&b, "Frames: %d, annotated: %d, detection failures: %d\n",
		run.Frames, run.AnnotatedFrames, run.DetectionFailures)
	_ = FormatReport(&b, run)
	return b.String()
}
