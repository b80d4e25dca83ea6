package models

import "testing"

func strp(s string) *string { return &s }
func intp(i int) *int       { return &i }

func TestPosterValidate(t *testing.T) {
	valid := Poster{
		ID:            "p1",
		Title:         "A Poster",
		SelectedTheme: "default",
		PreviewStatus: PreviewPending,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid poster rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(p *Poster)
	}{
		{"missing title", func(p *Poster) { p.Title = "" }},
		{"unknown theme", func(p *Poster) { p.SelectedTheme = "vaporwave" }},
		{"unknown status", func(p *Poster) { p.PreviewStatus = "done" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			if err := p.Validate(); err == nil {
				t.Error("want validation error")
			}
		})
	}
}

func TestIsKnownTheme(t *testing.T) {
	for _, theme := range KnownThemes {
		if !IsKnownTheme(theme) {
			t.Errorf("%s must be known", theme)
		}
	}
	if IsKnownTheme("neon") {
		t.Error("neon must not be known")
	}
}

func TestSectionByID(t *testing.T) {
	p := Poster{Sections: []Section{{ID: "a"}, {ID: "b"}}}
	if got := p.SectionByID("b"); got == nil || got.ID != "b" {
		t.Errorf("SectionByID(b) = %v", got)
	}
	if got := p.SectionByID("c"); got != nil {
		t.Errorf("SectionByID(c) = %v, want nil", got)
	}
}

func TestElementStylesValidate(t *testing.T) {
	tests := []struct {
		name    string
		styles  *ElementStyles
		wantErr bool
	}{
		{"nil styles", nil, false},
		{"empty styles", &ElementStyles{}, false},
		{
			"valid overrides",
			&ElementStyles{
				Title:           &StyleProps{FontSize: intp(44), Color: strp("#AABBCC")},
				SlideBackground: strp("1E1E1E"),
			},
			false,
		},
		{"font size too small", &ElementStyles{Title: &StyleProps{FontSize: intp(2)}}, true},
		{"font size too large", &ElementStyles{SectionContent: &StyleProps{FontSize: intp(500)}}, true},
		{"bad color", &ElementStyles{Abstract: &StyleProps{Color: strp("reddish")}}, true},
		{"bad background", &ElementStyles{SlideBackground: strp("#12")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.styles.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestElementStylesForRole(t *testing.T) {
	title := &StyleProps{FontSize: intp(40)}
	styles := &ElementStyles{Title: title}

	if got := styles.ForRole("title"); got != title {
		t.Errorf("ForRole(title) = %v", got)
	}
	if got := styles.ForRole("abstract"); got != nil {
		t.Errorf("ForRole(abstract) = %v, want nil", got)
	}
	var nilStyles *ElementStyles
	if got := nilStyles.ForRole("title"); got != nil {
		t.Errorf("nil receiver ForRole = %v, want nil", got)
	}
}
