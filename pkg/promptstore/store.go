// Package promptstore renders the system prompts for each specialist agent
// from content-addressed templates, validating at load time that every
// template only references known variables.
package promptstore

import (
	"embed"
	"fmt"
	"strings"
	"sync"
	"text/template"
	"text/template/parse"
)

//go:embed templates
var templatesFS embed.FS

// Variables is the small enumerated set of values a template may reference.
type Variables struct {
	BusinessType     string
	Depth            string
	DepthDescription string
	Industry         string // optional; empty string if not supplied
}

var knownFields = map[string]bool{
	"BusinessType":     true,
	"Depth":            true,
	"DepthDescription": true,
	"Industry":         true,
}

// Store loads, validates, and caches agent prompt templates.
type Store struct {
	fs    embed.FS
	dir   string
	cache sync.Map // templateID -> *template.Template
}

// New parses every template under templates/ and fails fast if any template
// references a variable outside Variables.
func New() (*Store, error) {
	return NewFromFS(templatesFS, "templates")
}

// NewFromFS builds a Store from an arbitrary embed.FS and directory,
// primarily for tests that substitute a smaller template set.
func NewFromFS(fsys embed.FS, dir string) (*Store, error) {
	s := &Store{fs: fsys, dir: dir}

	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("promptstore: reading templates dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".tmpl")
		tmpl, err := s.load(id)
		if err != nil {
			return nil, err
		}
		s.cache.Store(id, tmpl)
	}

	return s, nil
}

// load parses and validates one template, without caching it.
func (s *Store) load(id string) (*template.Template, error) {
	raw, err := s.fs.ReadFile(s.dir + "/" + id + ".tmpl")
	if err != nil {
		return nil, fmt.Errorf("promptstore: template %q not found: %w", id, err)
	}

	tmpl, err := template.New(id).Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("promptstore: template %q failed to parse: %w", id, err)
	}

	if err := validateFields(tmpl); err != nil {
		return nil, fmt.Errorf("promptstore: template %q: %w", id, err)
	}

	return tmpl, nil
}

// validateFields walks the parsed template tree and rejects any field
// reference outside knownFields — unknown variables are a startup error,
// not a silent empty substitution.
func validateFields(tmpl *template.Template) error {
	for _, t := range tmpl.Templates() {
		if t.Tree == nil {
			continue
		}
		if err := walkNode(t.Tree.Root); err != nil {
			return err
		}
	}
	return nil
}

func walkNode(node parse.Node) error {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return nil
		}
		for _, child := range n.Nodes {
			if err := walkNode(child); err != nil {
				return err
			}
		}
	case *parse.ActionNode:
		return walkNode(n.Pipe)
	case *parse.PipeNode:
		if n == nil {
			return nil
		}
		for _, cmd := range n.Cmds {
			for _, arg := range cmd.Args {
				if err := walkNode(arg); err != nil {
					return err
				}
			}
		}
	case *parse.FieldNode:
		if len(n.Ident) == 0 {
			return nil
		}
		field := n.Ident[0]
		if !knownFields[field] {
			return fmt.Errorf("unknown variable %q", field)
		}
	case *parse.IfNode:
		if err := walkNode(n.Pipe); err != nil {
			return err
		}
		if err := walkNode(n.List); err != nil {
			return err
		}
		return walkNode(n.ElseList)
	case *parse.RangeNode:
		if err := walkNode(n.Pipe); err != nil {
			return err
		}
		if err := walkNode(n.List); err != nil {
			return err
		}
		return walkNode(n.ElseList)
	case *parse.WithNode:
		if err := walkNode(n.Pipe); err != nil {
			return err
		}
		if err := walkNode(n.List); err != nil {
			return err
		}
		return walkNode(n.ElseList)
	}
	return nil
}

// Render substitutes variables into the named template and returns the
// rendered system prompt. No I/O occurs once the store is warmed — the
// template was parsed at New().
func (s *Store) Render(templateID string, vars Variables) (string, error) {
	cached, ok := s.cache.Load(templateID)
	if !ok {
		return "", fmt.Errorf("promptstore: unknown template %q", templateID)
	}
	tmpl := cached.(*template.Template)

	var buf strings.Builder
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("promptstore: rendering %q: %w", templateID, err)
	}
	return buf.String(), nil
}
