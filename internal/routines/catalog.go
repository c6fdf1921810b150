package routines

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"tickbot/internal/robot"
	"tickbot/internal/task"
)

var (
	ErrUnknownRoutine = errors.New("unknown routine")
	ErrDuplicate      = errors.New("routine already registered")
)

// AnyPosition matches every starting position.
const AnyPosition = "*"

// Key selects an autonomous routine: where the robot starts and what the
// drive team picked.
type Key struct {
	Position string `json:"position"`
	Choice   string `json:"choice"`
}

func (k Key) normalize() Key {
	k.Position = strings.ToLower(strings.TrimSpace(k.Position))
	k.Choice = strings.ToLower(strings.TrimSpace(k.Choice))
	if k.Position == "" || k.Position == "any" {
		k.Position = AnyPosition
	}
	return k
}

func (k Key) String() string { return k.Position + "/" + k.Choice }

// ParseKey reads "position/choice" or a bare "choice" (any position).
func ParseKey(s string) (Key, error) {
	pos, choice, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		pos, choice = AnyPosition, pos
	}
	k := Key{Position: pos, Choice: choice}.normalize()
	if k.Choice == "" {
		return Key{}, fmt.Errorf("routine key %q: choice required", s)
	}
	return k, nil
}

// Deps are what builders build against.
type Deps struct {
	Robot robot.Subsystems
	Clock task.Clock
	// Period reports the time left in the autonomous period.
	Period task.Period
}

// Builder returns a fresh tree on every call.
type Builder func(d Deps) (task.Task, error)

type Kind string

const (
	KindAuto  Kind = "auto"
	KindMacro Kind = "macro"
)

// Entry describes one registered routine.
type Entry struct {
	Kind        Kind   `json:"kind"`
	Name        string `json:"name"` // auto/<position>/<choice> or macro/<name>
	Key         Key    `json:"key"`  // autos only
	Description string `json:"description,omitempty"`
	Source      string `json:"source"` // "builtin" or the routines file path

	build Builder
}

type Catalog struct {
	autos  map[Key]Entry
	macros map[string]Entry
}

func NewCatalog() *Catalog {
	return &Catalog{autos: map[Key]Entry{}, macros: map[string]Entry{}}
}

// AddAuto registers an autonomous routine. With replace, an existing routine
// under the same key is overwritten.
func (c *Catalog) AddAuto(k Key, desc, source string, b Builder, replace bool) error {
	k = k.normalize()
	if k.Choice == "" || b == nil {
		return fmt.Errorf("auto %s: choice and builder required", k)
	}
	if _, ok := c.autos[k]; ok && !replace {
		return fmt.Errorf("%w: auto %s", ErrDuplicate, k)
	}
	c.autos[k] = Entry{Kind: KindAuto, Name: "auto/" + k.String(), Key: k, Description: desc, Source: source, build: b}
	return nil
}

// AddMacro registers an operator macro.
func (c *Catalog) AddMacro(name, desc, source string, b Builder, replace bool) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || b == nil {
		return fmt.Errorf("macro %q: name and builder required", name)
	}
	if _, ok := c.macros[name]; ok && !replace {
		return fmt.Errorf("%w: macro %s", ErrDuplicate, name)
	}
	c.macros[name] = Entry{Kind: KindMacro, Name: "macro/" + name, Description: desc, Source: source, build: b}
	return nil
}

func (c *Catalog) lookupAuto(k Key) (Entry, bool) {
	k = k.normalize()
	if e, ok := c.autos[k]; ok {
		return e, true
	}
	e, ok := c.autos[Key{Position: AnyPosition, Choice: k.Choice}]
	return e, ok
}

// Auto builds the routine for k. A routine registered for AnyPosition serves
// every position that has no routine of its own.
func (c *Catalog) Auto(k Key, d Deps) (string, task.Task, error) {
	e, ok := c.lookupAuto(k)
	if !ok {
		return "", nil, fmt.Errorf("%w: auto %s", ErrUnknownRoutine, k.normalize())
	}
	root, err := e.build(d)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", e.Name, err)
	}
	return e.Name, root, nil
}

// HasAuto reports whether k resolves to a routine.
func (c *Catalog) HasAuto(k Key) bool {
	_, ok := c.lookupAuto(k)
	return ok
}

func (c *Catalog) Macro(name string, d Deps) (string, task.Task, error) {
	e, ok := c.macros[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", nil, fmt.Errorf("%w: macro %s", ErrUnknownRoutine, name)
	}
	root, err := e.build(d)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", e.Name, err)
	}
	return e.Name, root, nil
}

// List returns every routine, autos first, each group sorted by name.
func (c *Catalog) List() []Entry {
	out := make([]Entry, 0, len(c.autos)+len(c.macros))
	for _, e := range c.autos {
		out = append(out, e)
	}
	for _, e := range c.macros {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind == KindAuto
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Build builds the tree for e.
func (e Entry) Build(d Deps) (task.Task, error) { return e.build(d) }

// Check builds every routine and validates its tree, so shape mistakes are
// found before the robot moves. All problems are reported.
func (c *Catalog) Check(d Deps) error {
	var errs []error
	for _, e := range c.List() {
		root, err := e.build(d)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name, err))
			continue
		}
		if err := task.Validate(root); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name, err))
		}
	}
	return errors.Join(errs...)
}
