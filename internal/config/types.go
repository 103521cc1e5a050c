package config

import (
	"github.com/danielpatrickdp/safety-envelope/internal/eval"
	"github.com/danielpatrickdp/safety-envelope/internal/logging"
	"github.com/danielpatrickdp/safety-envelope/internal/monitor"
)

// Envelope modes.
const (
	ModeSafety     = "safety"
	ModeController = "controller"
)

// #region config
// Config is the whole YAML document.
type Config struct {
	Envelope EnvelopeConfig  `yaml:"envelope"`
	Rewards  RewardsConfig   `yaml:"rewards"`
	Monitors []monitor.Spec  `yaml:"monitors" validate:"required,min=1"`
	Grid     GridConfig      `yaml:"grid"`
	Store    StoreConfig     `yaml:"store"`
	Logging  logging.Config  `yaml:"logging"`
	Metrics  ServerConfig    `yaml:"metrics"`
	Health   ServerConfig    `yaml:"health"`
	Run      RunConfig       `yaml:"run"`
	Eval     eval.EvalConfig `yaml:"eval"`
}

// EnvelopeConfig selects and tunes the envelope wrapped around the grid.
type EnvelopeConfig struct {
	Mode             string   `yaml:"mode" validate:"oneof=safety controller"`
	ResetOnViolation bool     `yaml:"reset_on_violation"`
	FallbackAction   string   `yaml:"fallback_action" validate:"omitempty,action"`
	MaxSteps         int      `yaml:"max_steps" validate:"gte=0"`
	Exploration      bool     `yaml:"exploration"`
	Plan             []string `yaml:"plan" validate:"dive,action"`
}

// RewardsConfig groups the reward constants by purpose.
type RewardsConfig struct {
	Standard       StandardRewards   `yaml:"standard"`
	ActionPlanning *PlanRewards      `yaml:"action_planning,omitempty"`
	Controller     ControllerRewards `yaml:"controller"`
}

// StandardRewards are paid by the envelope itself.
type StandardRewards struct {
	Step  float64 `yaml:"step"`
	Goal  float64 `yaml:"goal"`
	Death float64 `yaml:"death"`
}

// PlanRewards enable plan tracking.
type PlanRewards struct {
	OnPlan  float64 `yaml:"on_plan"`
	OffPlan float64 `yaml:"off_plan"`
}

// ControllerRewards are the binary rewards of the controller envelope.
type ControllerRewards struct {
	Respected float64 `yaml:"respected"`
	Violated  float64 `yaml:"violated"`
}

// GridConfig is the reference world layout.
type GridConfig struct {
	Layout []string `yaml:"layout" validate:"required,min=1,dive,required"`
}

// StoreConfig locates the SQLite journal.
type StoreConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// ServerConfig is a listen address; empty disables the server.
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

// RunConfig sizes a batch run.
type RunConfig struct {
	Episodes int    `yaml:"episodes" validate:"gte=1"`
	Workers  int    `yaml:"workers" validate:"gte=1,lte=64"`
	Seed     uint64 `yaml:"seed"`
}

// #endregion config
