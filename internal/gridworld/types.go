package gridworld

import "errors"

// #region cell
// Cell is the content of one grid square, as written in a layout.
type Cell byte

const (
	Empty      Cell = '.'
	Wall       Cell = '#'
	Water      Cell = 'W'
	Lava       Cell = 'L'
	Goal       Cell = 'G'
	DoorClosed Cell = 'D'
	DoorOpen   Cell = 'd'
	Key        Cell = 'K'
	Switch     Cell = 'S'
	Dirt       Cell = '*'
)

// Passable reports whether the agent may stand on c.
func (c Cell) Passable() bool {
	switch c {
	case Wall, DoorClosed, Key, Switch:
		return false
	}
	return true
}

// Hazard reports whether standing on c ends the episode.
func (c Cell) Hazard() bool {
	return c == Water || c == Lava
}

func (c Cell) String() string {
	switch c {
	case Empty:
		return "empty"
	case Wall:
		return "wall"
	case Water:
		return "water"
	case Lava:
		return "lava"
	case Goal:
		return "goal"
	case DoorClosed:
		return "door-closed"
	case DoorOpen:
		return "door-open"
	case Key:
		return "key"
	case Switch:
		return "switch"
	case Dirt:
		return "dirt"
	case 0:
		return "nothing"
	}
	return "unknown"
}

func validCell(c Cell) bool {
	return c.String() != "unknown" && c != 0
}

// #endregion cell

// #region pose
// Dir is the agent heading. Turning right increments it.
type Dir int

const (
	East Dir = iota
	South
	West
	North
)

func (d Dir) delta() (dx, dy int) {
	switch d {
	case East:
		return 1, 0
	case South:
		return 0, 1
	case West:
		return -1, 0
	default:
		return 0, -1
	}
}

func (d Dir) String() string {
	return [...]string{"east", "south", "west", "north"}[d&3]
}

// Pos is a grid coordinate; Y grows downwards.
type Pos struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Pos) step(d Dir, n int) Pos {
	dx, dy := d.delta()
	return Pos{X: p.X + dx*n, Y: p.Y + dy*n}
}

// #endregion pose

// #region view
// View is the observation handed to monitors: the agent's pose and the cells
// it can perceive around it. Cells outside the grid read as Wall.
type View struct {
	Pos      Pos  `json:"pos"`
	Dir      Dir  `json:"dir"`
	Here     Cell `json:"here"`
	Front    Cell `json:"front"`
	Front2   Cell `json:"front2"`
	Left     Cell `json:"left"`
	Right    Cell `json:"right"`
	Carrying Cell `json:"carrying"`
	LightOn  bool `json:"light_on"`
	Step     int  `json:"step"`
}

// #endregion view

// #region config
// Config describes a world. The agent start is marked in Layout by one of
// '>', 'v', '<', '^', which also gives the initial heading.
type Config struct {
	Layout     []string `yaml:"layout" json:"layout" validate:"required,min=1"`
	StepReward float64  `yaml:"-" json:"-"`
}

// #endregion config

var (
	ErrBadLayout = errors.New("bad layout")
	ErrNoAgent   = errors.New("layout has no agent marker")
)
