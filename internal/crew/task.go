package crew

import (
	"strings"
	"sync"
	"text/template"
	"text/template/parse"

	apperrors "product-research-workers/internal/common/errors"
	"product-research-workers/internal/common/validation"
	"product-research-workers/internal/models"
)

// Task is one pipeline stage: what to ask, which agent answers, and what
// shape the answer must have.
type Task struct {
	Name           string
	Description    string
	ExpectedOutput string
	// Schema validates the final answer. Nil means free-form markdown.
	Schema     *validation.Schema
	OutputFile string
	Agent      *Agent

	compileOnce sync.Once
	tmpl        *template.Template
	compileErr  error
}

// Compile parses the description template once; later calls return the
// first result. Placeholders are written as {{.product_name}}; an unknown
// placeholder fails at render time. A Task is shared by concurrent jobs, so
// Description must not change after the first call.
func (t *Task) Compile() error {
	t.compileOnce.Do(func() {
		tmpl, err := template.New(t.Name).Option("missingkey=error").Parse(t.Description)
		if err != nil {
			t.compileErr = apperrors.NewTemplateRenderFailedError(t.Name, err)
			return
		}
		t.tmpl = tmpl
	})
	return t.compileErr
}

// Render fills the description with the run parameters.
func (t *Task) Render(params models.RunParams) (string, error) {
	if err := t.Compile(); err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := t.tmpl.Execute(&sb, params.Placeholders()); err != nil {
		return "", apperrors.NewTemplateRenderFailedError(t.Name, err)
	}
	return sb.String(), nil
}

// Placeholders lists the parameter names the description references, in order.
func (t *Task) Placeholders() []string {
	if err := t.Compile(); err != nil {
		return nil
	}
	var names []string
	var walk func(node parse.Node)
	walk = func(node parse.Node) {
		switch n := node.(type) {
		case *parse.ListNode:
			for _, child := range n.Nodes {
				walk(child)
			}
		case *parse.ActionNode:
			for _, cmd := range n.Pipe.Cmds {
				for _, arg := range cmd.Args {
					if field, ok := arg.(*parse.FieldNode); ok {
						names = append(names, strings.Join(field.Ident, "."))
					}
				}
			}
		}
	}
	walk(t.tmpl.Tree.Root)
	return names
}

// Markdown reports whether the task produces a free-form report.
func (t *Task) Markdown() bool {
	return t.Schema == nil
}
