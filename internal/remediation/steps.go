package remediation

import (
	"strings"
	"time"

	"github.com/sanketsnayak/netheal/internal/model"
)

const defaultStepTimeout = 30 * time.Second

// substitute replaces "{param}" placeholders in s with values from
// params. Unresolved placeholders are left verbatim (a missing
// parameter is a policy/template authoring bug, not a runtime panic).
func substitute(s string, params map[string]string) string {
	for k, v := range params {
		s = strings.ReplaceAll(s, "{"+k+"}", v)
	}
	return s
}

// buildSteps expands a template's step templates into a numbered,
// parameter-substituted Action step sequence: pre-checks (critical),
// then main commands, then verification steps (non-critical), per
// spec §4.4 "Step generation".
func buildSteps(t ActionTemplate, params map[string]string) (preChecks, commands, verifications []model.ActionStep) {
	seq := 1
	for _, st := range t.PreChecks {
		preChecks = append(preChecks, resolveStep(st, params, seq, true))
		seq++
	}
	for _, st := range t.Commands {
		commands = append(commands, resolveStep(st, params, seq, st.Critical))
		seq++
	}
	for _, st := range t.VerificationSteps {
		verifications = append(verifications, resolveStep(st, params, seq, false))
		seq++
	}
	return preChecks, commands, verifications
}

func resolveStep(st StepTemplate, params map[string]string, seq int, critical bool) model.ActionStep {
	timeout := st.Timeout
	if timeout <= 0 {
		timeout = defaultStepTimeout
	}
	return model.ActionStep{
		Sequence:       seq,
		Description:    substitute(st.Description, params),
		Command:        substitute(st.Command, params),
		Critical:       critical,
		Timeout:        timeout,
		ExpectedResult: st.ExpectedResult,
		Status:         model.StepPending,
	}
}

// buildRollback constructs a RollbackPlan from a template's rollback
// command templates, or an empty non-automatic plan if the template
// has none (e.g. restart_bgp_session's soft clear is not reversible).
func buildRollback(t ActionTemplate, params map[string]string, automatic bool) model.RollbackPlan {
	if len(t.RollbackCommands) == 0 {
		return model.RollbackPlan{Automatic: false}
	}
	steps := make([]model.ActionStep, 0, len(t.RollbackCommands))
	for i, st := range t.RollbackCommands {
		steps = append(steps, resolveStep(st, params, i+1, true))
	}
	return model.RollbackPlan{Automatic: automatic, Steps: steps}
}
