package router

import (
	"fmt"
	"html/template"
	"path/filepath"
	"time"

	"cohortboard/internal/models"
	"cohortboard/internal/utils"

	"github.com/gin-contrib/multitemplate"
)

// LoadTemplates registers each view under its handler name, rendered inside
// the shared layouts.
func LoadTemplates(templatesDir string) (multitemplate.Renderer, error) {
	r := multitemplate.NewRenderer()

	layouts, err := filepath.Glob(filepath.Join(templatesDir, "layouts", "*.html"))
	if err != nil {
		return nil, err
	}

	assemble := func(view string) []string {
		files := make([]string, 0, len(layouts)+1)
		files = append(files, layouts...)
		return append(files, filepath.Join(templatesDir, "views", view))
	}

	views := []string{"admin/dashboard.html", "error.html"}
	for _, v := range views {
		r.AddFromFilesFuncs(v, FuncMap(), assemble(v)...)
	}
	return r, nil
}

func FuncMap() template.FuncMap {
	return template.FuncMap{
		"add": func(a, b int) int {
			return a + b
		},
		"formatPhone": utils.FormatPhone,
		"reviewLabel": func(st models.ReviewStatus) string {
			return st.Label()
		},
		"submitted": func(m map[models.Week][]string, w models.Week) int {
			return len(m[w])
		},
		"date": func(t time.Time) string {
			return t.Format("2006-01-02 15:04")
		},
		"timeAgo": func(t time.Time) string {
			seconds := int(time.Since(t).Seconds())
			switch {
			case seconds < 60:
				return fmt.Sprintf("%d초 전", seconds)
			case seconds < 3600:
				return fmt.Sprintf("%d분 전", seconds/60)
			case seconds < 86400:
				return fmt.Sprintf("%d시간 전", seconds/3600)
			case seconds < 2592000:
				return fmt.Sprintf("%d일 전", seconds/86400)
			}
			return t.Format("2006-01-02")
		},
	}
}
