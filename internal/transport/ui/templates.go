package ui

import (
	"fmt"
	"html/template"
	"io"
)

// pages are the content templates, each rendered inside layout.html.
var pages = []string{"list.html", "detail.html", "add.html", "edit.html", "delete.html"}

var templateFuncs = template.FuncMap{
	"money": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"add":   func(a, b int) int { return a + b },
	"seq": func(n int) []int {
		s := make([]int, n)
		for i := range s {
			s[i] = i + 1
		}
		return s
	},
}

// templates holds one parsed template set per page, all sharing the layout.
type templates struct {
	byName map[string]*template.Template
}

func newTemplates() (*templates, error) {
	byName := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		t, err := template.New("layout.html").Funcs(templateFuncs).
			ParseFS(templateFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", page, err)
		}
		byName[page] = t
	}
	return &templates{byName: byName}, nil
}

func (t *templates) render(w io.Writer, page string, data any) error {
	tmpl, ok := t.byName[page]
	if !ok {
		return fmt.Errorf("unknown template %s", page)
	}
	return tmpl.ExecuteTemplate(w, "layout.html", data)
}
