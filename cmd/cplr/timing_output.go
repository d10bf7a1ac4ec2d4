package main

import (
	"fmt"
	"io"
	"time"

	"cplr/internal/buildpipeline"
	"cplr/internal/observ"
)

func printStageTimings(out io.Writer, timings buildpipeline.Timings) {
	if out == nil {
		return
	}
	labels := map[buildpipeline.Stage]string{
		buildpipeline.StageGenerate: "generated",
		buildpipeline.StageCompile:  "compiled",
		buildpipeline.StageLink:     "linked",
	}
	for _, stage := range buildpipeline.Stages {
		if !timings.Has(stage) {
			continue
		}
		fmt.Fprintf(out, "%s %.1f ms\n", labels[stage], toMillis(timings.Duration(stage)))
	}
}

func printGeneratorTimings(out io.Writer, report observ.Report) {
	if out == nil || len(report.Steps) == 0 {
		return
	}
	fmt.Fprintf(out, "assembly %.1f ms\n", report.TotalMS)
	for _, step := range report.Steps {
		if step.Note != "" {
			fmt.Fprintf(out, "  %-8s %.1f ms (%s)\n", step.Name, step.DurationMS, step.Note)
			continue
		}
		fmt.Fprintf(out, "  %-8s %.1f ms\n", step.Name, step.DurationMS)
	}
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
