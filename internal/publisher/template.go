package publisher

import (
	"bytes"
	"html/template"
)

var postTemplate = template.Must(template.New("post").Parse(
	`<p>{{.Excerpt}}</p>
<p><a href="{{.URL}}">Continue reading “{{.ChapterTitle}}” →</a></p>
<hr />
<p><em>{{.NovelTitle}} is serialized in full at <a href="{{.SiteURL}}">{{.SiteURL}}</a>.</em></p>
`))

type postView struct {
	Excerpt      string
	URL          string
	ChapterTitle string
	NovelTitle   string
	SiteURL      string
}

func renderPost(v postView) (string, error) {
	var buf bytes.Buffer
	if err := postTemplate.Execute(&buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}
