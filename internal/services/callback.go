package services

import (
	"bytes"
	"html/template"
	"net/http"
	"strings"

	"github.com/Lllllllleong/boxdocumentsorter/internal/gcp"
)

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{if .Error}}Box authentication failed{{else}}Box authentication complete{{end}}</title>
  <style>
    body { font-family: Arial, sans-serif; text-align: center; padding: 50px; }
    .error { color: red; }
    .success { color: green; }
    .code { background: #f0f0f0; padding: 10px; margin: 20px; border-radius: 5px; word-break: break-all; }
    button { background: #007bff; color: white; border: none; padding: 10px 20px; border-radius: 5px; cursor: pointer; }
  </style>
</head>
<body>
{{if .Error}}
  <h1>Box authentication failed</h1>
  <p class="error">Authentication failed: {{.Error}}</p>
  <p>Close this window and try again.</p>
{{else}}
  <h1>Box authentication complete</h1>
  <p class="success">You are signed in.</p>
  <p>Authorization code:</p>
  <div class="code" id="code">{{.Code}}</div>
  <button onclick="copyCode()">Copy code</button>
  <p>You can close this window and return to the application.</p>
  <script>
    function copyCode() {
      navigator.clipboard.writeText(document.getElementById('code').textContent);
    }
{{- if .Origin}}
    if (window.opener) {
      window.opener.postMessage({type: 'BOX_AUTH_SUCCESS', code: {{.Code}}, state: {{.State}}}, {{.Origin}});
      setTimeout(function () { window.close(); }, 1500);
    }
{{- end}}
  </script>
{{end}}
</body>
</html>
`))

// CallbackPage is what the OAuth redirect carried.
type CallbackPage struct {
	Code  string
	State string
	Error string
}

// CallbackFunction renders the page Box redirects to after consent. When an
// app origin is configured the page hands the code to the opening window of
// that origin; otherwise the user copies it.
type CallbackFunction struct {
	origin string
}

// NewCallback creates a CallbackFunction for the app served at APP_ORIGIN,
// e.g. https://sorter.example.com.
func NewCallback() *CallbackFunction {
	return &CallbackFunction{origin: strings.TrimRight(gcp.GetEnv("APP_ORIGIN", ""), "/")}
}

type callbackView struct {
	CallbackPage
	Origin string
}

// Render returns the status and HTML for p. A missing code is reported as an error page.
func (f *CallbackFunction) Render(p CallbackPage) (int, []byte, error) {
	status := http.StatusOK
	if p.Error == "" && p.Code == "" {
		p.Error = "no authorization code was returned"
	}
	if p.Error != "" {
		status = http.StatusBadRequest
	}
	var buf bytes.Buffer
	if err := callbackPage.Execute(&buf, callbackView{CallbackPage: p, Origin: f.origin}); err != nil {
		return http.StatusInternalServerError, nil, err
	}
	return status, buf.Bytes(), nil
}
