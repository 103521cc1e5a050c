package gate

import (
	"github.com/danielpatrickdp/safety-envelope/internal/core"
	"github.com/danielpatrickdp/safety-envelope/internal/taxonomy"
)

// #region veto-type
// VetoType enumerates hard veto categories.
type VetoType string

const (
	VetoViolation   VetoType = "monitor_violation"
	VetoUnavailable VetoType = "action_unavailable"
)

// #endregion veto-type

// #region veto-signal
// VetoSignal represents one reason the proposed action cannot pass.
type VetoSignal struct {
	Type    VetoType
	Monitor string
	Reason  string
}

// #endregion veto-signal

// #region verdict
// Verdict is one monitor's contribution to a step decision.
type Verdict struct {
	Monitor      string
	UnsafeAction core.Action // empty unless the monitor flagged a violation this step
	State        taxonomy.StateType
}

// #endregion verdict

// #region gate-config
// GateConfig holds the fallback used when the proposed action is vetoed.
type GateConfig struct {
	FallbackAction core.Action
}

// DefaultGateConfig substitutes wait, the neutral no-op.
func DefaultGateConfig() GateConfig {
	return GateConfig{FallbackAction: core.ActionWait}
}

// #endregion gate-config

// #region gate-decision
// GateDecision is the output of the gate evaluation.
type GateDecision struct {
	Action      string // "pass" | "override"
	Reason      string
	Vetoed      bool
	VetoSignals []VetoSignal // non-empty if vetoed
	SafeAction  core.Action
	Severity    int // highest taxonomy severity among verdicts, -1 if none
}

const (
	ActionPass     = "pass"
	ActionOverride = "override"
)

// #endregion gate-decision
