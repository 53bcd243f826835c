package frontend

import (
	"io/fs"
	"testing"
)

func TestTemplates(t *testing.T) {
	tmpl, err := Templates()
	if err != nil {
		t.Fatalf("Templates failed: %v", err)
	}
	for _, name := range []string{"list.html", "form.html", "edit.html", "header", "footer", "fields"} {
		if tmpl.Lookup(name) == nil {
			t.Errorf("template %q not found", name)
		}
	}
}

func TestStatic(t *testing.T) {
	if _, err := fs.Stat(Static(), "style.css"); err != nil {
		t.Errorf("style.css: %v", err)
	}
}
