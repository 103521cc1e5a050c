package monitor

import (
	"context"
	"log/slog"

	"github.com/danielpatrickdp/safety-envelope/internal/automaton"
	"github.com/danielpatrickdp/safety-envelope/internal/core"
	"github.com/danielpatrickdp/safety-envelope/internal/taxonomy"
)

// #region options
type options struct {
	logger         *slog.Logger
	ambiguityCheck bool
}

// Option configures monitor construction.
type Option func(*options)

// WithLogger sets the logger for state entries, mismatches and violations.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithAmbiguityCheck reports overlapping transitions at trigger time.
func WithAmbiguityCheck() Option {
	return func(o *options) { o.ambiguityCheck = true }
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// #endregion options

// #region base
// base implements the check/verify protocol shared by every pattern. A
// pattern supplies the automaton definition, its guards, an observe hook that
// refreshes guard values (and optionally classifies the observation into a
// state), and a settle predicate for states that must be left within the same
// check.
type base struct {
	name    string
	kind    Kind
	rewards Rewards
	notify  Notifier
	logger  *slog.Logger

	machine *automaton.Machine
	start   automaton.StateID
	observe func(core.Observation, core.Action) (automaton.StateID, bool)
	settle  func(automaton.StateID) bool

	anchored     bool
	initial      automaton.StateID
	observedPre  core.Observation
	observedPost core.Observation
	pending      core.Action
	snapshot     automaton.StateID
	violated     bool
}

func newBase(spec Spec, notify Notifier, o options) *base {
	return &base{
		name:    spec.Name,
		kind:    spec.Type,
		rewards: spec.resolvedRewards(),
		notify:  notify,
		logger:  o.logger.With("monitor", spec.Name, "pattern", string(spec.Type)),
	}
}

// init builds the automaton once the pattern has wired its hooks.
func (b *base) init(def automaton.Definition, guards map[string]automaton.Guard, o options) error {
	var mopts []automaton.Option
	mopts = append(mopts, automaton.WithLogger(b.logger))
	if o.ambiguityCheck {
		mopts = append(mopts, automaton.WithAmbiguityCheck())
	}
	m, err := automaton.New(def, guards, mopts...)
	if err != nil {
		return err
	}
	b.machine = m
	b.start = def.Initial
	return nil
}

func (b *base) Name() string             { return b.name }
func (b *base) Kind() Kind               { return b.kind }
func (b *base) State() automaton.StateID { return b.machine.State() }

func (b *base) StateType() taxonomy.StateType { return b.machine.CurrentType() }

func (b *base) Initial() (automaton.StateID, bool) {
	return b.initial, b.anchored
}

func (b *base) Reset() {
	b.anchored = false
	b.initial = ""
	b.observedPre = nil
	b.observedPost = nil
	b.pending = ""
	b.snapshot = ""
}

// #endregion base

// #region check-verify
// Check maps the observation to guard values and anchors on first use. When
// the automaton disagrees with the observation it reports a mismatch and
// re-seeds from the observation. Either way the wildcard trigger then fires
// from a state that matches what the agent sees.
func (b *base) Check(obs core.Observation, proposed core.Action) {
	b.observedPre = obs
	b.pending = proposed
	b.snapshot = b.machine.State()

	computed, derivable := b.observe(obs, proposed)
	if derivable {
		b.snapshot = computed
	}

	switch {
	case !b.anchored:
		target := b.start
		if derivable {
			target = computed
		}
		b.anchored = true
		b.initial = target
		b.seed(target)
		b.snapshot = target
		b.logger.Debug("anchored", "state", target)
	case derivable && b.machine.State() != computed:
		b.mismatch(computed)
	}
	b.fire()
}

// Verify recomputes the classification from the post-action observation and
// re-seeds on disagreement. It never fires transitions.
func (b *base) Verify(obs core.Observation, applied core.Action) {
	b.observedPost = obs
	computed, derivable := b.observe(obs, applied)
	if derivable && b.machine.State() != computed {
		b.mismatch(computed)
	}
}

// Permits dry-runs Check. Guard values are refreshed as a side effect, which
// is harmless because every Check refreshes them again.
func (b *base) Permits(obs core.Observation, action core.Action) bool {
	computed, derivable := b.observe(obs, action)
	s := b.machine.State()
	switch {
	case derivable:
		s = computed
	case !b.anchored:
		s = b.start
	}

	for range len(b.machine.States()) + 1 {
		next, ok := b.machine.PeekFrom(s, automaton.Wildcard)
		if !ok {
			return true
		}
		if t, _ := b.machine.TypeOf(next); t == taxonomy.Violated {
			return false
		}
		if b.settle == nil || !b.settle(next) {
			return true
		}
		s = next
	}
	return true
}

func (b *base) fire() {
	b.violated = false
	b.machine.Trigger(automaton.Wildcard)
	if b.settle == nil {
		return
	}
	for range len(b.machine.States()) {
		if b.violated || !b.settle(b.machine.State()) {
			return
		}
		if !b.machine.Trigger(automaton.Wildcard) {
			return
		}
	}
}

func (b *base) seed(id automaton.StateID) {
	if err := b.machine.SetState(id); err != nil {
		// patterns only classify into their own states
		b.logger.Error("seed failed", "state", id, "error", err)
	}
}

// #endregion check-verify

// #region hooks
func (b *base) onMonitoring(e automaton.Entry) {
	b.emit(e.To, LabelMonitoring, 0, "")
}

func (b *base) onShaping(reward float64) func(automaton.Entry) {
	return func(e automaton.Entry) {
		if reward == 0 {
			b.emit(e.To, LabelMonitoring, 0, "")
			return
		}
		b.emit(e.To, LabelShaping, reward, "")
	}
}

// onViolated rolls the automaton back to the state the pre-action
// observation put it in (for patterns that cannot classify, the state held
// when Check started), so a violated state is only ever observed through the
// notification.
func (b *base) onViolated(e automaton.Entry) {
	b.violated = true
	b.seed(b.snapshot)
	b.logger.Info("violation",
		"state", e.To, "unsafe_action", b.pending, "rolled_back_to", b.snapshot)
	b.emit(e.To, LabelViolation, b.rewards.Violated, b.pending)
}

// mismatch re-seeds to the observed state. A jump no declared transition
// explains is logged at Warn; ordinary lag behind the world at Debug.
func (b *base) mismatch(computed automaton.StateID) {
	cur := b.machine.State()
	level := slog.LevelDebug
	if !b.machine.Reachable(cur, computed) {
		level = slog.LevelWarn
	}
	b.logger.Log(context.Background(), level, "mismatch", "automaton", cur, "observed", computed)
	b.seed(computed)
	b.emit(computed, LabelMismatch, 0, "")
}

func (b *base) emit(state automaton.StateID, label Label, reward float64, unsafe core.Action) {
	if label != LabelViolation && label != LabelMismatch {
		b.logger.Debug("entered state", "state", state, "label", label)
	}
	if b.notify == nil {
		return
	}
	b.notify(Notification{
		Monitor:      b.name,
		Kind:         b.kind,
		Label:        label,
		State:        state,
		ShapedReward: reward,
		UnsafeAction: unsafe,
	})
}

// #endregion hooks
