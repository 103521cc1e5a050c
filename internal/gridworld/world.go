package gridworld

import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/safety-envelope/internal/core"
)

// #region world
// World is a stepwise-simulated grid. It is not safe for concurrent use;
// parallel runs build one World per worker.
type World struct {
	template [][]Cell
	grid     [][]Cell
	start    Pos
	startDir Dir

	pos      Pos
	dir      Dir
	carrying Cell
	lightOn  bool
	steps    int

	stepReward float64
}

// New parses cfg.Layout. Rows must have equal width and exactly one agent marker.
func New(cfg Config) (*World, error) {
	if len(cfg.Layout) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrBadLayout)
	}
	w := &World{stepReward: cfg.StepReward}
	width := len(cfg.Layout[0])
	found := false

	for y, row := range cfg.Layout {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has width %d, want %d", ErrBadLayout, y, len(row), width)
		}
		cells := make([]Cell, width)
		for x := 0; x < width; x++ {
			ch := row[x]
			if d, ok := markerDir(ch); ok {
				if found {
					return nil, fmt.Errorf("%w: second agent marker at %d,%d", ErrBadLayout, x, y)
				}
				found = true
				w.start, w.startDir = Pos{X: x, Y: y}, d
				cells[x] = Empty
				continue
			}
			if !validCell(Cell(ch)) {
				return nil, fmt.Errorf("%w: unknown cell %q at %d,%d", ErrBadLayout, ch, x, y)
			}
			cells[x] = Cell(ch)
		}
		w.template = append(w.template, cells)
	}
	if !found {
		return nil, ErrNoAgent
	}
	w.restore()
	return w, nil
}

func markerDir(ch byte) (Dir, bool) {
	switch ch {
	case '>':
		return East, true
	case 'v':
		return South, true
	case '<':
		return West, true
	case '^':
		return North, true
	}
	return 0, false
}

func (w *World) restore() {
	w.grid = make([][]Cell, len(w.template))
	for i, row := range w.template {
		w.grid[i] = append([]Cell(nil), row...)
	}
	w.pos, w.dir = w.start, w.startDir
	w.carrying = 0
	w.lightOn = false
	w.steps = 0
}

// #endregion world

// #region environment
// Reset restores the layout and the agent's start pose.
func (w *World) Reset() (core.Observation, error) {
	w.restore()
	return w.view(), nil
}

// Step applies one action. Walking onto water or lava ends the episode, as
// does reaching the goal. The reward is the configured per-step value.
func (w *World) Step(action core.Action) (core.Observation, float64, bool, error) {
	front := w.pos.step(w.dir, 1)
	switch action {
	case core.ActionLeft:
		w.dir = (w.dir + 3) % 4
	case core.ActionRight:
		w.dir = (w.dir + 1) % 4
	case core.ActionForward:
		if w.at(front).Passable() {
			w.pos = front
		}
	case core.ActionPickup:
		if w.carrying == 0 && w.at(front) == Key {
			w.carrying = Key
			w.set(front, Empty)
		}
	case core.ActionDrop:
		if w.carrying != 0 && w.at(front) == Empty {
			w.set(front, w.carrying)
			w.carrying = 0
		}
	case core.ActionToggle:
		switch w.at(front) {
		case DoorClosed:
			w.set(front, DoorOpen)
		case DoorOpen:
			w.set(front, DoorClosed)
		case Switch:
			w.lightOn = !w.lightOn
		}
	case core.ActionClean:
		if w.at(front) == Dirt {
			w.set(front, Empty)
		}
	case core.ActionWait:
	default:
		return nil, 0, false, fmt.Errorf("step: unsupported action %q", action)
	}
	w.steps++

	here := w.at(w.pos)
	done := here.Hazard() || here == Goal
	return w.view(), w.stepReward, done, nil
}

// Observe returns the current view without stepping.
func (w *World) Observe() core.Observation {
	return w.view()
}

// Actions returns the full action vocabulary.
func (w *World) Actions() []core.Action {
	return core.AllActions()
}

// AtGoal reports whether the agent stands on a goal cell.
func (w *World) AtGoal() bool {
	return w.at(w.pos) == Goal
}

// Pose exposes position and heading for count-based exploration.
func (w *World) Pose() (x, y, dir int) {
	return w.pos.X, w.pos.Y, int(w.dir)
}

// #endregion environment

// #region grid
func (w *World) at(p Pos) Cell {
	if p.Y < 0 || p.Y >= len(w.grid) || p.X < 0 || p.X >= len(w.grid[p.Y]) {
		return Wall
	}
	return w.grid[p.Y][p.X]
}

func (w *World) set(p Pos, c Cell) {
	w.grid[p.Y][p.X] = c
}

func (w *World) view() View {
	return View{
		Pos:      w.pos,
		Dir:      w.dir,
		Here:     w.at(w.pos),
		Front:    w.at(w.pos.step(w.dir, 1)),
		Front2:   w.at(w.pos.step(w.dir, 2)),
		Left:     w.at(w.pos.step((w.dir+3)%4, 1)),
		Right:    w.at(w.pos.step((w.dir+1)%4, 1)),
		Carrying: w.carrying,
		LightOn:  w.lightOn,
		Step:     w.steps,
	}
}

// String renders the grid with the agent marker, one row per line.
func (w *World) String() string {
	var b strings.Builder
	for y, row := range w.grid {
		for x, c := range row {
			if w.pos.X == x && w.pos.Y == y {
				b.WriteByte(">v<^"[w.dir])
				continue
			}
			b.WriteByte(byte(c))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// #endregion grid
