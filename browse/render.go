package browse

import (
	"html/template"
	"net/url"
	"strings"

	"github.com/freekieb7/foldserve/filesystem"
)

// The Size column holds raw bytes despite its heading. Links are prefixed
// with "./" so names containing a colon are not read as a URL scheme, and
// names are path escaped so "?" and "#" stay part of the path.
var listingTemplate = template.Must(template.New("listing").Funcs(template.FuncMap{
	"pathEscape": url.PathEscape,
}).Parse(`<!DOCTYPE html>` +
	`<html lang='en'><head><meta charset='UTF-8'><meta name='viewport' content='width=device-width, initial-scale=1.0'>` +
	`<title>Index of {{.Dir}}</title>` +
	`<style>table{border-collapse: collapse;width: 50%;margin: 20px;} th, td{border: 1px solid black;padding: 8px;text-align: left;}</style></head>` +
	`<body><h1>Files in {{.Dir}}</h1><br>` +
	`<table><tr><th>Name</th> <th>Type</th> <th>Size(kb)</th> </tr>` +
	`{{range .Entries}}` +
	`<tr><td><a href='./{{pathEscape .Name}}'>{{.Name}}{{if not .IsFile}}/{{end}}</a></td> <td>{{if .IsFile}}File{{else}}Fold{{end}}</td> <td>{{.Size}}</td> </tr>` +
	`{{end}}` +
	`</table></body></html>`))

// Render returns the HTML index of entries, the listing of dir.
func Render(dir string, entries []filesystem.Entry) (string, error) {
	var sb strings.Builder

	err := listingTemplate.Execute(&sb, struct {
		Dir     string
		Entries []filesystem.Entry
	}{
		Dir:     dir,
		Entries: entries,
	})
	if err != nil {
		return "", err
	}

	return sb.String(), nil
}
