package telemetry

import (
	"strings"
	"sync"
)

// Report is a single call made against a RecorderAPI.
type Report struct {
	Kind   string
	Id     string
	Params []any
}

// RecorderAPI implements API by keeping every report in memory, it exists so that tests can
// assert that something was (or was not) reported.
type RecorderAPI struct {
	mu      sync.Mutex
	reports []Report
}

func (r *RecorderAPI) record(kind, id string, params []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, Report{Kind: kind, Id: id, Params: params})
}

func (r *RecorderAPI) ReportBroken(id string, params ...any) {
	r.record("broken", id, params)
}

func (r *RecorderAPI) ReportWarning(id string, params ...any) {
	r.record("warning", id, params)
}

func (r *RecorderAPI) ReportDebug(msg string, params ...any) {
	r.record("debug", msg, params)
}

func (r *RecorderAPI) ReportCount(id string, count int64) {
	r.record("count", id, []any{count})
}

// Reports returns the reports of a given kind ("broken", "warning", "debug", "count")
// whose id contains `substr`.
func (r *RecorderAPI) Reports(kind, substr string) []Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Report
	for _, report := range r.reports {
		if report.Kind == kind && strings.Contains(report.Id, substr) {
			out = append(out, report)
		}
	}
	return out
}
