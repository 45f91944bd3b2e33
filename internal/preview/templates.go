package preview

import "html/template"

const liveReload = `<script>
new EventSource("/events").addEventListener("chapter.updated", function () { location.reload(); });
</script>`

var indexTemplate = template.Must(template.New("index").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Novel}}</title></head>
<body>
<h1>{{.Novel}}</h1>
<ol>
{{- range .Chapters}}
<li><a href="/novels/{{$.Novel}}/{{.Slug}}">{{.Title}}</a> <small>({{.Order}})</small></li>
{{- end}}
</ol>
` + liveReload + `
</body>
</html>
`))

var chapterTemplate = template.Must(template.New("chapter").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<nav><a href="/novels/{{.Novel}}">{{.Novel}}</a></nav>
{{- if .Cover}}
<img src="{{.Cover}}" alt="">
{{- end}}
<h1>{{.Title}}</h1>
<article>
{{.HTML}}
</article>
<nav>
{{- with .Prev}}<a rel="prev" href="/novels/{{$.Novel}}/{{.Slug}}">← {{.Title}}</a>{{end}}
{{- with .Next}}<a rel="next" href="/novels/{{$.Novel}}/{{.Slug}}">{{.Title}} →</a>{{end}}
</nav>
` + liveReload + `
</body>
</html>
`))
