package envelope

import (
	"sync"

	"github.com/danielpatrickdp/safety-envelope/internal/core"
)

// #region plan-tracker

// PlanTracker pays partial credit for following an action plan. The k-th
// consecutive followed step pays onPlan*k. A deviation pays offPlan times
// the credit already granted, k(k+1)/2, and drops the plan. Completing the
// plan drops it after paying the final step.
type PlanTracker struct {
	mu      sync.Mutex
	onPlan  float64
	offPlan float64
	plan    []core.Action
	k       int
}

// NewPlanTracker creates a tracker with no plan.
func NewPlanTracker(onPlan, offPlan float64) *PlanTracker {
	return &PlanTracker{onPlan: onPlan, offPlan: offPlan}
}

// SetPlan replaces the current plan and restarts the count.
func (p *PlanTracker) SetPlan(actions []core.Action) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plan = append([]core.Action(nil), actions...)
	p.k = 0
}

// Step scores one applied action. Zero when no plan is set.
func (p *PlanTracker) Step(applied core.Action) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.plan) == 0 {
		return 0
	}
	if applied != p.plan[p.k] {
		r := p.offPlan * float64(p.k*(p.k+1)) / 2
		p.plan, p.k = nil, 0
		return r
	}
	p.k++
	r := p.onPlan * float64(p.k)
	if p.k == len(p.plan) {
		p.plan, p.k = nil, 0
	}
	return r
}

// Remaining returns the actions not yet followed.
func (p *PlanTracker) Remaining() []core.Action {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.plan) == 0 {
		return nil
	}
	return append([]core.Action(nil), p.plan[p.k:]...)
}

// Reset drops the plan.
func (p *PlanTracker) Reset() {
	p.mu.Lock()
	p.plan, p.k = nil, 0
	p.mu.Unlock()
}

// #endregion plan-tracker
