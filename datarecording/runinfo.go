package datarecording

import (
	"os"
	"strings"
	"time"
)

const timeLayout = "2006-01-02 15:04:05.000000000"

// TableRunInfo is the table written by a RunRecorder.
const TableRunInfo = "run_info"

// RunInfo is a property of the recorded run.
type RunInfo struct {
	Property string
	Value    string
}

// RunRecorder records when and how pgtrace was invoked.
type RunRecorder struct {
	tableName string
	recorder  DataRecorder
	entries   []RunInfo
}

// NewRunRecorder creates the run_info table in the given recorder.
func NewRunRecorder(recorder DataRecorder) *RunRecorder {
	r := &RunRecorder{
		tableName: TableRunInfo,
		recorder:  recorder,
	}

	recorder.CreateTable(r.tableName, RunInfo{})

	return r
}

// Start remembers the start time and the command line.
func (r *RunRecorder) Start() {
	r.entries = append(r.entries,
		RunInfo{"Start Time", time.Now().Format(timeLayout)},
		RunInfo{"Command", strings.Join(os.Args, " ")},
	)

	cwd, err := os.Getwd()
	if err == nil {
		r.entries = append(r.entries, RunInfo{"Working Directory", cwd})
	}
}

// Set records an arbitrary property, such as a workload parameter.
func (r *RunRecorder) Set(property, value string) {
	r.entries = append(r.entries, RunInfo{property, value})
}

// End writes the properties together with the end time.
func (r *RunRecorder) End() {
	r.entries = append(r.entries,
		RunInfo{"End Time", time.Now().Format(timeLayout)})

	for _, entry := range r.entries {
		r.recorder.InsertData(r.tableName, entry)
	}

	r.entries = nil

	r.recorder.Flush()
}
