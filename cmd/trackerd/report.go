package main

import (
	"context"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"

	"go.igtrack.org/tracking/controller"
)

// errorHistory is how many reported samples the mean error of a tool is taken over.
const errorHistory = 20

// poseReporter prints every tool relative to the reference tool, or to the tracker when there
// is none, as one table per report.
type poseReporter struct {
	errors map[string][]float64
}

func newPoseReporter() *poseReporter {
	return &poseReporter{errors: map[string][]float64{}}
}

func (r *poseReporter) record(key string, value float64) stats.Float64Data {
	history := append(r.errors[key], value)
	if len(history) > errorHistory {
		history = history[len(history)-errorHistory:]
	}
	r.errors[key] = history
	return history
}

func (r *poseReporter) report(ctx context.Context, running []*controller.Controller, out io.Writer) {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.AppendHeader(table.Row{"Tracker", "Tool", "Relative to", "X", "Y", "Z", "Error", "Mean error", "Max error"})
	for _, ctrl := range running {
		tr, err := ctrl.RequestGetTracker(ctx)
		if err != nil {
			continue
		}
		ref, err := ctrl.RequestGetReferenceTool(ctx)
		if err != nil {
			continue
		}
		tools, err := ctrl.RequestGetNonReferenceToolList(ctx)
		if err != nil {
			continue
		}
		target := tr.CoordinateSystem()
		if ref != nil {
			target = ref.CoordinateSystem()
		}
		for _, tool := range tools {
			tf, err := tr.ComputeTransform(tool.CoordinateSystem(), target)
			if err != nil || !tf.IsValidNow() {
				tw.AppendRow(table.Row{tr.Name(), tool.Name(), target.Name(), "-", "-", "-", "not tracked", "", ""})
				continue
			}
			history := r.record(tr.Name()+"/"+tool.Name(), tf.Error())
			mean, _ := history.Mean()
			maxErr, _ := history.Max()
			p := tf.Translation()
			tw.AppendRow(table.Row{
				tr.Name(), tool.Name(), target.Name(),
				mm(p.X), mm(p.Y), mm(p.Z), mm(tf.Error()), mm(mean), mm(maxErr),
			})
		}
	}
	tw.Render()
}

func mm(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
