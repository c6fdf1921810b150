package task

import (
	"fmt"
	"io"
	"strings"
)

// Walk visits t and its descendants depth-first, parents before children.
// Returning false from fn skips the node's children.
func Walk(t Task, fn func(t Task, depth int) bool) {
	walk(t, 0, fn)
}

func walk(t Task, depth int, fn func(Task, int) bool) {
	if t == nil || !fn(t, depth) {
		return
	}
	if p, ok := t.(parent); ok {
		for _, c := range p.Children() {
			walk(c, depth+1, fn)
		}
	}
}

// Count returns the number of nodes in the tree.
func Count(t Task) int {
	n := 0
	Walk(t, func(Task, int) bool { n++; return true })
	return n
}

// Dump writes an indented outline of the tree with each node's claims.
func Dump(w io.Writer, t Task) error {
	var err error
	Walk(t, func(n Task, depth int) bool {
		if err != nil {
			return false
		}
		line := strings.Repeat("  ", depth) + KindOf(n).String()
		if name := NameOf(n); name != KindOf(n).String() {
			line += " " + name
		}
		if cl := n.Claims(); len(cl) > 0 && KindOf(n) == KindLeaf {
			parts := make([]string, len(cl))
			for i, c := range cl {
				parts[i] = string(c.Op)
				if c.Exclusive {
					parts[i] += "!"
				}
			}
			line += " [" + strings.Join(parts, " ") + "]"
		}
		_, err = fmt.Fprintln(w, line)
		return true
	})
	return err
}
