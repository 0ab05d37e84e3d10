package refgen

// Status is returned by Eval. Finished tells the orchestrator to advance to
// the next queued refgen.
type Status int

const (
	Running  Status = 0
	Finished Status = 1
)

func (s Status) String() string {
	if s == Finished {
		return "finished"
	}
	return "running"
}

// State is the refgen lifecycle.
type State int

const (
	Uninitialized State = iota
	Started
	Evaluating
	Done
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Started:
		return "started"
	case Evaluating:
		return "evaluating"
	default:
		return "finished"
	}
}

// Refgen produces a time-indexed reference for a controller. Eval runs on
// the control loop: it must not allocate or block. t is the time since the
// refgen started, so the first Eval after Start sees t = 0.
type Refgen interface {
	Name() string
	Start() error
	Eval(t float64, ref []float64) Status
	State() State
}

// StartPositioner is implemented by refgens that must begin from a fixed
// position. The orchestrator moves there first.
type StartPositioner interface {
	StartPosition() []float64
}

// Timed reports the total duration once known.
type Timed interface {
	TotalTime() float64
}

// Teachable refgens record a trajectory from live samples and then play it
// back. TeachTrigger runs on the control loop; the others do not.
type Teachable interface {
	TeachInit() error
	TeachStart() error
	TeachTrigger(t float64, pos []float64)
	TeachFlush() error
	TeachEnd() error
}

// Recorded refgens expose their samples for persistence.
type Recorded interface {
	Kind() string
	Samples() []Sample
}

// Sample is one taught point.
type Sample struct {
	Time     float64
	Position []float64
}

type lifecycle struct {
	state State
}

func (l *lifecycle) State() State { return l.state }

func (l *lifecycle) started() { l.state = Started }

func (l *lifecycle) evaluating() { l.state = Evaluating }

func (l *lifecycle) finish() Status {
	l.state = Done
	return Finished
}
