package task

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Validate checks a routine tree before it is ever ticked. It reports every
// problem it finds, joined, each as a *BuildError carrying the node path.
func Validate(root Task) error {
	v := &validator{seen: map[Task]string{}}
	v.visit(root, "root")
	return errors.Join(v.errs...)
}

type validator struct {
	seen map[Task]string
	errs []error
}

func (v *validator) fail(path string, err error) {
	v.errs = append(v.errs, &BuildError{Path: path, Err: err})
}

func (v *validator) visit(t Task, path string) {
	if t == nil {
		v.fail(path, ErrNilTask)
		return
	}
	if rv := reflect.ValueOf(t); rv.Kind() == reflect.Pointer {
		if prev, dup := v.seen[t]; dup {
			v.fail(path, fmt.Errorf("%w (first at %s)", ErrSharedNode, prev))
			return
		}
		v.seen[t] = path
	}

	switch n := t.(type) {
	case *SequenceTask:
		for i, c := range n.Children() {
			v.visit(c, childPath(path, "seq", i, c))
		}
	case *AllTask:
		v.visitGroup(path, "all", n.Children())
	case *AnyTask:
		if len(n.children) == 0 {
			v.fail(path, ErrEmptyGroup)
		}
		v.visitGroup(path, "any", n.Children())
	case *FallbackTask:
		v.visitPair(path, "fallback", n.primary.task, n.alternate.task, "primary", "alternate")
	case *WaitTask:
		if n.clock == nil {
			v.fail(path, fmt.Errorf("%w: wait without a clock", ErrMissingInput))
		}
	case *DecisionTask:
		if n.err != nil {
			v.fail(path, n.err)
		}
		v.visitPair(path, "decision", n.first.task, n.second.task, "first", "second")
	}
}

func (v *validator) visitPair(path, kind string, a, b Task, an, bn string) {
	if a == nil {
		v.fail(path+"/"+kind+"."+an, ErrMissingBranch)
	} else {
		v.visit(a, path+"/"+kind+"."+an)
	}
	if b == nil {
		v.fail(path+"/"+kind+"."+bn, ErrMissingBranch)
	} else {
		v.visit(b, path+"/"+kind+"."+bn)
	}
}

func (v *validator) visitGroup(path, kind string, children []Task) {
	paths := make([]string, len(children))
	for i, c := range children {
		paths[i] = childPath(path, kind, i, c)
		v.visit(c, paths[i])
	}
	for i := 0; i < len(children); i++ {
		if children[i] == nil {
			continue
		}
		ci := children[i].Claims()
		for j := i + 1; j < len(children); j++ {
			if children[j] == nil {
				continue
			}
			ops := conflicts(ci, children[j].Claims())
			if len(ops) == 0 {
				continue
			}
			names := make([]string, len(ops))
			for k, op := range ops {
				names[k] = string(op)
			}
			v.fail(path, fmt.Errorf("%w: %s claimed by %s and %s",
				ErrClaimConflict, strings.Join(names, ","), paths[i], paths[j]))
		}
	}
}

func childPath(path, kind string, i int, c Task) string {
	p := path + "/" + kind + "[" + strconv.Itoa(i) + "]"
	if c == nil {
		return p
	}
	if n, ok := c.(Namer); ok && n.Name() != "" {
		p += "(" + n.Name() + ")"
	}
	return p
}
