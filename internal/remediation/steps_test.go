package remediation

import (
	"testing"

	"github.com/sanketsnayak/netheal/internal/model"
)

func TestBuildSteps_OrderAndSubstitution(t *testing.T) {
	tmpl, ok := Template("enable_interface")
	if !ok {
		t.Fatal("expected enable_interface template to exist")
	}
	params := map[string]string{"interface_name": "GigabitEthernet0/1"}

	preChecks, commands, verifications := buildSteps(tmpl, params)

	if len(preChecks) == 0 || len(commands) == 0 || len(verifications) == 0 {
		t.Fatal("expected enable_interface to have pre-checks, commands, and verifications")
	}

	if preChecks[0].Sequence != 1 {
		t.Errorf("expected first pre-check sequence 1, got %d", preChecks[0].Sequence)
	}
	if !preChecks[0].Critical {
		t.Error("expected pre-checks to be critical")
	}
	if verifications[0].Critical {
		t.Error("expected verification steps to be non-critical by default")
	}

	lastPreSeq := preChecks[len(preChecks)-1].Sequence
	if commands[0].Sequence != lastPreSeq+1 {
		t.Errorf("expected commands to continue the sequence after pre-checks, got %d after %d", commands[0].Sequence, lastPreSeq)
	}

	for _, s := range commands {
		if containsPlaceholder(s.Command) {
			t.Errorf("expected all placeholders substituted, got %q", s.Command)
		}
	}
}

func containsPlaceholder(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '{' {
			return true
		}
	}
	return false
}

func TestBuildRollback_EmptyWhenTemplateHasNone(t *testing.T) {
	tmpl, _ := Template("restart_bgp_session")
	plan := buildRollback(tmpl, map[string]string{"neighbor_ip": "10.0.0.1"}, true)
	if plan.Automatic {
		t.Error("expected no automatic rollback when template defines no rollback commands")
	}
	if len(plan.Steps) != 0 {
		t.Error("expected zero rollback steps")
	}
}

func TestBuildRollback_PopulatedWhenTemplateHasCommands(t *testing.T) {
	tmpl, _ := Template("enable_interface")
	plan := buildRollback(tmpl, map[string]string{"interface_name": "Eth0/1"}, true)
	if !plan.Automatic {
		t.Error("expected automatic=true to carry through")
	}
	if len(plan.Steps) != len(tmpl.RollbackCommands) {
		t.Errorf("expected %d rollback steps, got %d", len(tmpl.RollbackCommands), len(plan.Steps))
	}
}

func TestSelectMethod_PrefersNetconfThenCLI(t *testing.T) {
	tmpl, _ := Template("enable_interface")

	m, ok := selectMethod(tmpl, model.Capabilities{NETCONF: true, SSH: true})
	if !ok || m != model.MethodNETCONF {
		t.Errorf("expected netconf preferred when both available, got %v/%v", m, ok)
	}

	m, ok = selectMethod(tmpl, model.Capabilities{SSH: true})
	if !ok || m != model.MethodCLI {
		t.Errorf("expected cli fallback when netconf unsupported, got %v/%v", m, ok)
	}

	_, ok = selectMethod(tmpl, model.Capabilities{})
	if ok {
		t.Error("expected no method selectable with no capabilities")
	}
}
