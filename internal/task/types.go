package task

import "fmt"

// Status is the outcome of a single Update call.
type Status int

const (
	Running Status = iota
	Succeeded
	Failed
)

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Done reports whether s is terminal.
func (s Status) Done() bool { return s == Succeeded || s == Failed }

// State is the lifecycle position of one activation.
type State int

const (
	Created State = iota
	Active
	Completed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Active:
		return "active"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Task is the leaf contract every behavior implements.
//
// Begin is called once per activation and may sample sensors to compute a
// target. Update is called at most once per tick and must not block. End closes
// the activation, either after Update reported a terminal Status or because the
// parent cancelled it, and must leave the operations the task drove in a
// neutral state unless keeping them is the task's documented purpose.
type Task interface {
	Begin()
	Update() Status
	End()
	// Claims lists the operations the task writes while active.
	Claims() []Claim
}

// Namer is implemented by tasks that want a readable label in build errors
// and tree dumps.
type Namer interface {
	Name() string
}

// parent is implemented by every combinator.
type parent interface {
	Children() []Task
}

// Kind classifies a Task node.
type Kind int

const (
	KindLeaf Kind = iota
	KindSequential
	KindAll
	KindAny
	KindFallback
	KindDecision
)

func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindSequential:
		return "seq"
	case KindAll:
		return "all"
	case KindAny:
		return "any"
	case KindFallback:
		return "fallback"
	case KindDecision:
		return "decision"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// KindOf reports the node kind of t. Anything that is not one of this
// package's combinators is a leaf.
func KindOf(t Task) Kind {
	switch t.(type) {
	case *SequenceTask:
		return KindSequential
	case *AllTask:
		return KindAll
	case *AnyTask:
		return KindAny
	case *FallbackTask:
		return KindFallback
	case *DecisionTask:
		return KindDecision
	default:
		return KindLeaf
	}
}

// NameOf returns t's label, falling back to its kind.
func NameOf(t Task) string {
	if t == nil {
		return "<nil>"
	}
	if n, ok := t.(Namer); ok {
		if s := n.Name(); s != "" {
			return s
		}
	}
	return KindOf(t).String()
}
