package httpapi

import (
	"github.com/smilemakc/printflow/internal/catalog"
	"github.com/smilemakc/printflow/internal/graph"
	"github.com/smilemakc/printflow/internal/ports"
	"github.com/smilemakc/printflow/internal/report"
)

func toWorkflowRecord(title string, wf *graph.Workflow) ports.WorkflowRecord {
	nodes := make([]ports.WorkflowNodeRecord, len(wf.Nodes))
	for i, n := range wf.Nodes {
		nodes[i] = ports.WorkflowNodeRecord{Kind: n.Step.Kind, NumCores: n.Step.NumCores, Prev: n.Prev, Next: n.Next}
	}
	return ports.WorkflowRecord{Title: title, Nodes: nodes}
}

func fromWorkflowRecord(rec ports.WorkflowRecord) *graph.Workflow {
	nodes := make([]graph.Node, len(rec.Nodes))
	for i, n := range rec.Nodes {
		nodes[i] = graph.Node{
			Step: catalog.Step{Kind: n.Kind, NumCores: n.NumCores},
			Prev: n.Prev,
			Next: n.Next,
		}
	}
	return &graph.Workflow{Title: rec.Title, Nodes: nodes}
}

func toWorkflowResponse(rec ports.WorkflowRecord) workflowResponse {
	steps := make([]workflowStepWire, len(rec.Nodes))
	for i, n := range rec.Nodes {
		data, _ := catalog.Serialize(catalog.Step{Kind: n.Kind, NumCores: n.NumCores})
		steps[i] = workflowStepWire{Data: data, Prev: n.Prev, Next: n.Next}
	}
	return workflowResponse{ID: rec.ID, Title: rec.Title, Steps: steps}
}

func toReportRecord(rep report.SimulationReport) ports.SimulationReportRecord {
	return ports.SimulationReportRecord{
		PrintJobID:     rep.PrintJobID,
		WorkflowID:     rep.WorkflowID,
		CreationTime:   rep.CreationTime,
		TotalTimeTaken: rep.TotalTimeTaken,
		StepTimes:      rep.StepTimes,
	}
}
