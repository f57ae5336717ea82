package pages

import "html/template"

var placeholderTmpl = template.Must(template.New("placeholder").Parse(`<!DOCTYPE html>
<html lang="{{.Lang}}">
<head>
<meta charset="utf-8">
<title>{{.PageTitle}}</title>
<style>
body { font-family: sans-serif; max-width: 48rem; margin: 3rem auto; color: #222; }
#url-link { word-break: break-all; }
</style>
</head>
<body>
<h1 id="title">{{.Title}}</h1>
<p>{{.Description}}</p>
<p>{{if .Href}}<a id="url-link" href="{{.Href}}">{{.URL}}</a>{{else}}<code id="url-link">{{.URL}}</code>{{end}}</p>
<button id="copy-btn" data-url="{{.URL}}" onclick="navigator.clipboard.writeText(this.dataset.url)">{{.CopyButton}}</button>
</body>
</html>
`))

var viewerTmpl = template.Must(template.New("viewer").Parse(`<!DOCTYPE html>
<html lang="{{.Lang}}">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 1.5rem; }
ul { list-style: none; padding-left: 1.25rem; }
img { width: 16px; height: 16px; vertical-align: middle; margin-right: .4rem; }
progress { width: 100%; }
</style>
</head>
<body>
<h1>{{.Title}} ({{.Count}})</h1>
{{if .Running}}<progress id="restore-progress" value="{{.Loaded}}" max="{{.Total}}"></progress>{{end}}
{{if .Nodes}}{{template "nodes" .Nodes}}{{else}}<p>{{.Empty}}</p>{{end}}
</body>
</html>
{{define "nodes"}}<ul>{{range .}}
<li data-tab-id="{{.ID}}">{{if .Icon}}<img src="{{.Icon}}" alt="">{{end}}{{if .Href}}<a href="{{.Href}}">{{.Title}}</a>{{else}}<span>{{.Title}}</span>{{end}}{{if .Children}}{{template "nodes" .Children}}{{end}}</li>{{end}}
</ul>{{end}}
`))
