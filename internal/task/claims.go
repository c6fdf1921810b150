package task

import "sort"

// Operation names a logical actuator channel, e.g. "elevator.height".
type Operation string

// Claim declares that a task writes an operation while it is active.
type Claim struct {
	Op        Operation
	Exclusive bool
}

// Exclusive claims op for sole use by one running task.
func Exclusive(op Operation) Claim { return Claim{Op: op, Exclusive: true} }

// Shared claims op without excluding other shared claimants.
func Shared(op Operation) Claim { return Claim{Op: op} }

// mergeClaims folds several claim sets into one, sorted by operation.
// An exclusive claim wins over a shared claim on the same operation.
func mergeClaims(sets ...[]Claim) []Claim {
	m := map[Operation]bool{}
	for _, set := range sets {
		for _, c := range set {
			m[c.Op] = m[c.Op] || c.Exclusive
		}
	}
	if len(m) == 0 {
		return nil
	}
	out := make([]Claim, 0, len(m))
	for op, ex := range m {
		out = append(out, Claim{Op: op, Exclusive: ex})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Op < out[j].Op })
	return out
}

// childClaims merges the claims of every non-nil task.
func childClaims(children []Task) []Claim {
	sets := make([][]Claim, 0, len(children))
	for _, c := range children {
		if c != nil {
			sets = append(sets, c.Claims())
		}
	}
	return mergeClaims(sets...)
}

// conflicts returns the operations two claim sets cannot hold at the same
// time: both claim it and at least one claim is exclusive.
func conflicts(a, b []Claim) []Operation {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	am := make(map[Operation]bool, len(a))
	for _, c := range a {
		am[c.Op] = am[c.Op] || c.Exclusive
	}
	var out []Operation
	seen := map[Operation]bool{}
	for _, c := range b {
		ex, ok := am[c.Op]
		if !ok || seen[c.Op] {
			continue
		}
		if ex || c.Exclusive {
			seen[c.Op] = true
			out = append(out, c.Op)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
