package guard

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	goSession "github.com/MrEthical07/goSession"
)

// ErrInvalidRoute is returned by NewTable for malformed route descriptors.
var ErrInvalidRoute = errors.New("guard: invalid route")

// Meta is the authorization metadata of a route. Children inherit their
// parent's meta: RequiresAuth is sticky once set, and a nil Roles slice
// inherits the parent's roles while a non-nil one replaces them.
type Meta struct {
	RequiresAuth bool
	Roles        []goSession.Role
}

// Route describes one path. Segments beginning with ':' are parameters.
// Child paths are relative to the parent.
type Route struct {
	Path     string
	Name     string
	Meta     Meta
	Children []Route
}

// Match is the descriptor resolved for a path.
type Match struct {
	Name         string
	Pattern      string
	Params       map[string]string
	RequiresAuth bool
	Roles        []goSession.Role
}

type entry struct {
	name         string
	pattern      string
	segments     []string
	static       int
	requiresAuth bool
	roles        []goSession.Role
}

// Table is an immutable set of flattened routes.
type Table struct {
	entries []entry
	byName  map[string]int
}

// NewTable flattens routes and validates them.
func NewTable(routes []Route) (*Table, error) {
	t := &Table{byName: make(map[string]int)}
	for _, r := range routes {
		if err := t.add(r, "", Meta{}); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Table) add(r Route, prefix string, inherited Meta) error {
	full := joinPath(prefix, r.Path)
	if prefix == "" && !strings.HasPrefix(r.Path, "/") {
		return fmt.Errorf("%w: top-level path %q must be absolute", ErrInvalidRoute, r.Path)
	}

	meta := Meta{
		RequiresAuth: inherited.RequiresAuth || r.Meta.RequiresAuth,
		Roles:        inherited.Roles,
	}
	if r.Meta.Roles != nil {
		for _, role := range r.Meta.Roles {
			if !role.Valid() {
				return fmt.Errorf("%w: %q names unknown role %q", ErrInvalidRoute, full, role)
			}
		}
		meta.Roles = append([]goSession.Role(nil), r.Meta.Roles...)
	}

	if r.Name != "" || len(r.Children) == 0 {
		segs := splitPath(full)
		e := entry{
			name:         r.Name,
			pattern:      full,
			segments:     segs,
			requiresAuth: meta.RequiresAuth,
			roles:        meta.Roles,
		}
		for _, s := range segs {
			if !strings.HasPrefix(s, ":") {
				e.static++
			}
		}
		if r.Name != "" {
			if _, dup := t.byName[r.Name]; dup {
				return fmt.Errorf("%w: duplicate route name %q", ErrInvalidRoute, r.Name)
			}
			t.byName[r.Name] = len(t.entries)
		}
		t.entries = append(t.entries, e)
	}

	for _, c := range r.Children {
		if strings.HasPrefix(c.Path, "/") {
			return fmt.Errorf("%w: child path %q under %q must be relative", ErrInvalidRoute, c.Path, full)
		}
		if err := t.add(c, full, meta); err != nil {
			return err
		}
	}
	return nil
}

// Match resolves target, which may carry a query string or fragment. Static
// segments win over parameters; among equals the first declared route wins.
func (t *Table) Match(target string) (Match, bool) {
	if t == nil {
		return Match{}, false
	}
	segs := splitPath(pathOnly(target))

	best := -1
	for i := range t.entries {
		e := &t.entries[i]
		if len(e.segments) != len(segs) || !e.matches(segs) {
			continue
		}
		if best < 0 || e.static > t.entries[best].static {
			best = i
		}
	}
	if best < 0 {
		return Match{}, false
	}

	e := t.entries[best]
	m := Match{
		Name:         e.name,
		Pattern:      e.pattern,
		RequiresAuth: e.requiresAuth,
		Roles:        e.roles,
	}
	for i, s := range e.segments {
		if strings.HasPrefix(s, ":") {
			if m.Params == nil {
				m.Params = make(map[string]string)
			}
			m.Params[s[1:]] = segs[i]
		}
	}
	return m, true
}

// Path returns the pattern of the named route.
func (t *Table) Path(name string) (string, bool) {
	if t == nil {
		return "", false
	}
	i, ok := t.byName[name]
	if !ok {
		return "", false
	}
	return t.entries[i].pattern, true
}

func (e *entry) matches(segs []string) bool {
	for i, s := range e.segments {
		if strings.HasPrefix(s, ":") {
			if segs[i] == "" {
				return false
			}
			continue
		}
		if s != segs[i] {
			return false
		}
	}
	return true
}

func joinPath(prefix, p string) string {
	if prefix == "" {
		return cleanPath(p)
	}
	if p == "" {
		return prefix
	}
	return cleanPath(strings.TrimRight(prefix, "/") + "/" + p)
}

func cleanPath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	return "/" + strings.Trim(p, "/")
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func pathOnly(target string) string {
	if i := strings.IndexAny(target, "?#"); i >= 0 {
		target = target[:i]
	}
	if u, err := url.PathUnescape(target); err == nil {
		target = u
	}
	return target
}
