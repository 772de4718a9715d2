package correlation

import (
	"testing"

	"github.com/sanketsnayak/netheal/internal/model"
)

func TestPriorityFor(t *testing.T) {
	cases := []struct {
		name    string
		sev     model.Severity
		count   int
		want    model.Priority
	}{
		{"critical always p1", model.SeverityCritical, 1, model.P1},
		{"major under threshold", model.SeverityMajor, 5, model.P2},
		{"major escalates at 20", model.SeverityMajor, 20, model.P1},
		{"minor under threshold", model.SeverityMinor, 3, model.P3},
		{"minor escalates at 10", model.SeverityMinor, 10, model.P2},
		{"warning is p4", model.SeverityWarning, 1, model.P4},
		{"info is p4", model.SeverityInfo, 1, model.P4},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := priorityFor(c.sev, c.count); got != c.want {
				t.Errorf("priorityFor(%v, %d) = %v, want %v", c.sev, c.count, got, c.want)
			}
		})
	}
}
