package rtutil

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidExpr is raised by ParsePath (and propagated by Get/Set) when
// an expression is unterminated, empty, or contains whitespace.
var ErrInvalidExpr = errors.New("INVALID_EXPR")

// ParsePath tokenizes a property-path expression into a list of string
// keys and integer indices. Supported grammar:
//
//	a.b.c          -> dotted keys
//	a[0]           -> bracketed integer index
//	a["b c"]       -> bracketed quoted key (handles dots/spaces in the key)
//	a['b']         -> bracketed single-quoted key
//
// Empty, unterminated, or space-containing bare expressions are rejected
// with ErrInvalidExpr. A leading "msg." is stripped (nested msg.*
// cross-references resolve against the containing message).
func ParsePath(expr string) ([]interface{}, error) {
	if expr == "" {
		return nil, ErrInvalidExpr
	}
	if strings.HasPrefix(expr, "msg.") {
		expr = expr[len("msg."):]
	}
	if expr == "" {
		return nil, ErrInvalidExpr
	}

	var parts []interface{}
	i := 0
	n := len(expr)
	var cur strings.Builder

	flush := func() error {
		if cur.Len() == 0 {
			return nil
		}
		s := cur.String()
		if strings.ContainsAny(s, " \t\n") {
			return ErrInvalidExpr
		}
		parts = append(parts, s)
		cur.Reset()
		return nil
	}

	for i < n {
		c := expr[i]
		switch c {
		case ' ', '\t', '\n':
			return nil, ErrInvalidExpr
		case '.':
			if err := flush(); err != nil {
				return nil, err
			}
			i++
		case '[':
			if err := flush(); err != nil {
				return nil, err
			}
			i++
			if i >= n {
				return nil, ErrInvalidExpr
			}
			if expr[i] == '"' || expr[i] == '\'' {
				quote := expr[i]
				i++
				start := i
				for i < n && expr[i] != quote {
					i++
				}
				if i >= n {
					return nil, ErrInvalidExpr
				}
				key := expr[start:i]
				if key == "" {
					return nil, ErrInvalidExpr
				}
				parts = append(parts, key)
				i++ // consume closing quote
				if i >= n || expr[i] != ']' {
					return nil, ErrInvalidExpr
				}
				i++
			} else {
				start := i
				for i < n && expr[i] != ']' {
					i++
				}
				if i >= n {
					return nil, ErrInvalidExpr
				}
				idxStr := expr[start:i]
				idx, err := strconv.Atoi(idxStr)
				if err != nil {
					return nil, fmt.Errorf("%w: bad index %q", ErrInvalidExpr, idxStr)
				}
				parts = append(parts, idx)
				i++ // consume ]
			}
		default:
			cur.WriteByte(c)
			i++
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, ErrInvalidExpr
	}
	return parts, nil
}

// GetPath walks root following path (as returned by ParsePath), reading
// through maps by string key, slices by integer index, and yielding nil
// for missing segments rather than erroring.
func GetPath(root interface{}, path []interface{}) (interface{}, error) {
	cur := root
	for _, seg := range path {
		if cur == nil {
			return nil, nil
		}
		switch key := seg.(type) {
		case string:
			m, ok := cur.(map[string]interface{})
			if !ok {
				return nil, nil
			}
			cur = m[key]
		case int:
			switch v := cur.(type) {
			case []interface{}:
				if key < 0 || key >= len(v) {
					return nil, nil
				}
				cur = v[key]
			default:
				return nil, nil
			}
		}
	}
	return cur, nil
}

// SetPath writes value at path under root, creating intermediate
// containers when createMissing is true. The shape of a created
// intermediate container is decided by the *next* key's kind: a string
// key creates a map, an int key creates a slice (null-filled up to the
// index). Returns the (possibly new, if root itself needed to change
// shape) root.
func SetPath(root interface{}, path []interface{}, value interface{}, createMissing bool) (interface{}, error) {
	if len(path) == 0 {
		return value, nil
	}
	return setPathRec(root, path, value, createMissing)
}

func setPathRec(cur interface{}, path []interface{}, value interface{}, createMissing bool) (interface{}, error) {
	seg := path[0]
	last := len(path) == 1

	switch key := seg.(type) {
	case string:
		m, ok := cur.(map[string]interface{})
		if !ok {
			if cur != nil {
				return nil, fmt.Errorf("%w: cannot set string key on non-map", ErrInvalidExpr)
			}
			if !createMissing {
				return cur, nil
			}
			m = map[string]interface{}{}
		}
		if last {
			m[key] = value
			return m, nil
		}
		child, childOK := m[key]
		if !childOK && !createMissing {
			return m, nil
		}
		newChild, err := setPathRec(child, path[1:], value, createMissing)
		if err != nil {
			return nil, err
		}
		m[key] = newChild
		return m, nil
	case int:
		s, ok := cur.([]interface{})
		if !ok {
			if cur != nil {
				return nil, fmt.Errorf("%w: cannot set index on non-list", ErrInvalidExpr)
			}
			if !createMissing {
				return cur, nil
			}
			s = []interface{}{}
		}
		for len(s) <= key {
			s = append(s, nil)
		}
		if last {
			s[key] = value
			return s, nil
		}
		newChild, err := setPathRec(s[key], path[1:], value, createMissing)
		if err != nil {
			return nil, err
		}
		s[key] = newChild
		return s, nil
	default:
		return nil, ErrInvalidExpr
	}
}

// DeletePath removes the value at path under root, if present. Missing
// intermediate segments are a no-op, matching GetPath's tolerance for
// absent data.
func DeletePath(root interface{}, path []interface{}) interface{} {
	if len(path) == 0 {
		return root
	}
	return deletePathRec(root, path)
}

func deletePathRec(cur interface{}, path []interface{}) interface{} {
	seg := path[0]
	last := len(path) == 1
	switch key := seg.(type) {
	case string:
		m, ok := cur.(map[string]interface{})
		if !ok {
			return cur
		}
		if last {
			delete(m, key)
			return m
		}
		child, ok := m[key]
		if !ok {
			return cur
		}
		m[key] = deletePathRec(child, path[1:])
		return m
	case int:
		s, ok := cur.([]interface{})
		if !ok || key < 0 || key >= len(s) {
			return cur
		}
		if last {
			s[key] = nil
			return s
		}
		s[key] = deletePathRec(s[key], path[1:])
		return s
	default:
		return cur
	}
}
