// Package site renders resolved programs into a small static site: one page
// per program plus an index, alongside machine readable json exports. The
// output is plain files meant for any static host.
package site

import (
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"rehabgo/lib/textutil"
	"rehabgo/lib/workout"
)

type Options struct {
	// DistDir receives the rendered html and stylesheet.
	DistDir string
	// DataDir receives one workout_<slug>.json per program. Empty disables
	// the json export.
	DataDir string
}

type Renderer struct {
	opts  Options
	index *template.Template
	page  *template.Template
}

func NewRenderer(opts Options) (*Renderer, error) {
	index, err := template.New("index").Parse(indexTemplate)
	if err != nil {
		return nil, err
	}
	page, err := template.New("page").Parse(pageTemplate)
	if err != nil {
		return nil, err
	}
	return &Renderer{opts: opts, index: index, page: page}, nil
}

type programPage struct {
	workout.Program
	Slug string
}

type exerciseView struct {
	Name        string
	Dosage      string
	Description template.HTML
	Note        string
}

// Render writes the whole site. Program order is preserved on the index, and
// name collisions get numeric slug suffixes so no page overwrites another.
func (r *Renderer) Render(programs []workout.Program) error {
	if err := os.MkdirAll(r.opts.DistDir, 0755); err != nil {
		return err
	}
	if r.opts.DataDir != "" {
		if err := os.MkdirAll(r.opts.DataDir, 0755); err != nil {
			return err
		}
	}

	pages := make([]programPage, 0, len(programs))
	seen := map[string]int{}
	for _, program := range programs {
		slug := textutil.Slug(program.ProgramName)
		seen[slug]++
		if seen[slug] > 1 {
			slug = fmt.Sprintf("%s-%d", slug, seen[slug])
		}
		pages = append(pages, programPage{Program: program, Slug: slug})
	}

	stylePath := filepath.Join(r.opts.DistDir, "style.css")
	if err := os.WriteFile(stylePath, []byte(styleSheet), 0644); err != nil {
		return err
	}

	if err := r.renderIndex(pages); err != nil {
		return err
	}
	for _, page := range pages {
		if err := r.renderProgram(page); err != nil {
			return err
		}
		if r.opts.DataDir != "" {
			if err := r.exportJson(page); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Renderer) renderIndex(pages []programPage) error {
	file, err := os.Create(filepath.Join(r.opts.DistDir, "index.html"))
	if err != nil {
		return err
	}
	defer file.Close()
	return r.index.Execute(file, pages)
}

func (r *Renderer) renderProgram(page programPage) error {
	views := make([]exerciseView, 0, len(page.Exercises))
	for _, exercise := range page.Exercises {
		views = append(views, exerciseView{
			Name:   exercise.Name,
			Dosage: exercise.Dosage(),
			// descriptions arrive as portal html fragments and render as-is
			Description: template.HTML(exercise.Description),
			Note:        exercise.Note,
		})
	}

	file, err := os.Create(filepath.Join(r.opts.DistDir, page.Slug+".html"))
	if err != nil {
		return err
	}
	defer file.Close()
	return r.page.Execute(file, struct {
		ProgramName string
		Exercises   []exerciseView
	}{ProgramName: page.ProgramName, Exercises: views})
}

func (r *Renderer) exportJson(page programPage) error {
	data, err := json.MarshalIndent(page.Program, "", "  ")
	if err != nil {
		return err
	}
	name := fmt.Sprintf("workout_%s.json", page.Slug)
	return os.WriteFile(filepath.Join(r.opts.DataDir, name), append(data, '\n'), 0644)
}
