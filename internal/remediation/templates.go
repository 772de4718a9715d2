package remediation

import (
	"time"

	"github.com/sanketsnayak/netheal/internal/model"
)

// StepTemplate is the unresolved shape of a single ActionStep: Command
// and Description may contain "{param_name}" placeholders filled in by
// substitute() at step-generation time.
type StepTemplate struct {
	Description    string
	Command        string
	Critical       bool
	Timeout        time.Duration
	ExpectedResult string
}

// ActionTemplate is one of the fixed remediation playbooks a Policy may
// reference by name.
type ActionTemplate struct {
	Name       string
	Category   string
	RiskLevel  model.RiskLevel
	// Methods lists the transports this template supports; method
	// selection prefers netconf, then cli, then rest_api among them.
	Methods           []model.ActionMethod
	RequiresApproval  bool
	PreChecks         []StepTemplate
	Commands          []StepTemplate
	VerificationSteps []StepTemplate
	RollbackCommands  []StepTemplate
	EstimatedDuration time.Duration
}

// AutoApprovable reports whether this template is eligible for
// auto-approval regardless of its own RequiresApproval flag, per the
// fixed low-risk allowlist (spec §4.4 "Queueing and approval").
func (t ActionTemplate) AutoApprovable() bool {
	return t.RiskLevel == model.RiskLow &&
		(t.Name == "clear_interface_counters" || t.Name == "enable_interface")
}

// templates is the fixed catalog of action templates. Keyed by name.
var templates = map[string]ActionTemplate{
	"enable_interface": {
		Name:              "enable_interface",
		Category:          "interface",
		RiskLevel:         model.RiskLow,
		Methods:           []model.ActionMethod{model.MethodNETCONF, model.MethodCLI},
		RequiresApproval:  false,
		EstimatedDuration: 30 * time.Second,
		PreChecks: []StepTemplate{
			{Description: "verify interface {interface_name} is administratively down", Command: "show interface {interface_name} | include admin", Critical: true, ExpectedResult: "administratively down"},
		},
		Commands: []StepTemplate{
			{Description: "enable interface {interface_name}", Command: "interface {interface_name}; no shutdown", Critical: true, ExpectedResult: "interface enabled"},
		},
		VerificationSteps: []StepTemplate{
			{Description: "verify interface {interface_name} is up", Command: "show interface {interface_name} | include line protocol", Critical: false, ExpectedResult: "up"},
		},
		RollbackCommands: []StepTemplate{
			{Description: "re-disable interface {interface_name}", Command: "interface {interface_name}; shutdown", Critical: true, ExpectedResult: "interface disabled"},
		},
	},
	"restart_bgp_session": {
		Name:              "restart_bgp_session",
		Category:          "bgp",
		RiskLevel:         model.RiskMedium,
		Methods:           []model.ActionMethod{model.MethodNETCONF, model.MethodCLI},
		RequiresApproval:  true,
		EstimatedDuration: 60 * time.Second,
		PreChecks: []StepTemplate{
			{Description: "verify bgp neighbor {neighbor_ip} state", Command: "show bgp neighbor {neighbor_ip}", Critical: true, ExpectedResult: "neighbor known"},
		},
		Commands: []StepTemplate{
			{Description: "clear bgp session to {neighbor_ip}", Command: "clear bgp neighbor {neighbor_ip} soft", Critical: true, ExpectedResult: "session cleared"},
		},
		VerificationSteps: []StepTemplate{
			{Description: "verify bgp neighbor {neighbor_ip} reaches established", Command: "show bgp neighbor {neighbor_ip} | include state", Critical: false, ExpectedResult: "established"},
		},
		RollbackCommands: nil, // a soft clear is not reversible; no rollback plan
	},
	"clear_interface_counters": {
		Name:              "clear_interface_counters",
		Category:          "interface",
		RiskLevel:         model.RiskLow,
		Methods:           []model.ActionMethod{model.MethodCLI, model.MethodNETCONF},
		RequiresApproval:  false,
		EstimatedDuration: 15 * time.Second,
		Commands: []StepTemplate{
			{Description: "clear counters on {interface_name}", Command: "clear counters {interface_name}", Critical: false, ExpectedResult: "counters cleared"},
		},
		VerificationSteps: []StepTemplate{
			{Description: "verify counters reset on {interface_name}", Command: "show interface {interface_name} | include packets", Critical: false, ExpectedResult: "0 packets"},
		},
	},
	"restart_service": {
		Name:              "restart_service",
		Category:          "system",
		RiskLevel:         model.RiskMedium,
		Methods:           []model.ActionMethod{model.MethodCLI, model.MethodRESTAPI},
		RequiresApproval:  true,
		EstimatedDuration: 90 * time.Second,
		PreChecks: []StepTemplate{
			{Description: "verify service {service_name} is running", Command: "show process {service_name}", Critical: true, ExpectedResult: "process known"},
		},
		Commands: []StepTemplate{
			{Description: "restart service {service_name}", Command: "restart process {service_name}", Critical: true, ExpectedResult: "service restarted"},
		},
		VerificationSteps: []StepTemplate{
			{Description: "verify service {service_name} is healthy", Command: "show process {service_name} | include status", Critical: false, ExpectedResult: "running"},
		},
	},
	"update_interface_config": {
		Name:              "update_interface_config",
		Category:          "interface",
		RiskLevel:         model.RiskHigh,
		Methods:           []model.ActionMethod{model.MethodNETCONF, model.MethodCLI},
		RequiresApproval:  true,
		EstimatedDuration: 120 * time.Second,
		PreChecks: []StepTemplate{
			{Description: "snapshot current config for {interface_name}", Command: "show running-config interface {interface_name}", Critical: true, ExpectedResult: "config captured"},
		},
		Commands: []StepTemplate{
			{Description: "apply updated config to {interface_name}", Command: "interface {interface_name}; mtu 9000", Critical: true, ExpectedResult: "config applied"},
		},
		VerificationSteps: []StepTemplate{
			{Description: "verify {interface_name} config applied and link stable", Command: "show interface {interface_name}", Critical: false, ExpectedResult: "config matches, link up"},
		},
		RollbackCommands: []StepTemplate{
			{Description: "restore prior config on {interface_name}", Command: "interface {interface_name}; mtu 1500", Critical: true, ExpectedResult: "config restored"},
		},
	},
	"reload_device_config": {
		Name:              "reload_device_config",
		Category:          "config",
		RiskLevel:         model.RiskCritical,
		Methods:           []model.ActionMethod{model.MethodNETCONF, model.MethodCLI},
		RequiresApproval:  true,
		EstimatedDuration: 300 * time.Second,
		PreChecks: []StepTemplate{
			{Description: "confirm saved config checksum before reload", Command: "show configuration checksum", Critical: true, ExpectedResult: "checksum recorded"},
		},
		Commands: []StepTemplate{
			{Description: "reload device configuration", Command: "reload config", Critical: true, ExpectedResult: "configuration reloaded"},
		},
		VerificationSteps: []StepTemplate{
			{Description: "verify device reachable and config checksum matches", Command: "show configuration checksum", Critical: true, ExpectedResult: "checksum matches, device reachable"},
		},
		RollbackCommands: []StepTemplate{
			{Description: "restore previous saved configuration", Command: "rollback configuration 1", Critical: true, ExpectedResult: "previous config restored"},
		},
	},
}

// Template looks up an action template by name.
func Template(name string) (ActionTemplate, bool) {
	t, ok := templates[name]
	return t, ok
}

// selectMethod picks, among the methods the template supports, the
// first the device also exposes in the order netconf > cli > rest_api
// (spec §4.4 "Method selection"), never snmp for write operations.
func selectMethod(t ActionTemplate, caps model.Capabilities) (model.ActionMethod, bool) {
	supports := func(m model.ActionMethod) bool {
		for _, tm := range t.Methods {
			if tm == m {
				return true
			}
		}
		return false
	}
	switch {
	case caps.NETCONF && supports(model.MethodNETCONF):
		return model.MethodNETCONF, true
	case caps.SSH && supports(model.MethodCLI):
		return model.MethodCLI, true
	case supports(model.MethodRESTAPI):
		return model.MethodRESTAPI, true // REST API availability is not capability-gated in this model
	}
	return "", false
}
