package mcp

import (
	"html/template"
	"net/http"
)

var landingTemplate = template.Must(template.New("landing").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Medical Knowledge Assistant</title>
<style>
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; background: #f8fafc; color: #0f172a; margin: 0; display: flex; justify-content: center; }
  main { max-width: 640px; width: 90%; margin: 3rem 0; background: #fff; border: 1px solid #e2e8f0; border-radius: 10px; padding: 2rem 2.5rem; }
  h1 { font-size: 1.6rem; margin: 0 0 0.5rem; }
  h2 { font-size: 0.8rem; text-transform: uppercase; letter-spacing: 0.08em; color: #64748b; margin: 1.5rem 0 0.5rem; }
  code { font-family: "SF Mono", Menlo, monospace; font-size: 0.9rem; color: #0369a1; }
  li { margin-bottom: 0.35rem; }
  .notice { background: #fef3c7; border-left: 4px solid #f59e0b; padding: 0.75rem 1rem; font-size: 0.9rem; }
</style>
</head>
<body>
<main>
  <h1>Medical Knowledge Assistant</h1>
  <p>Answers medical questions from an indexed knowledge base, citing the sources each answer was grounded on.</p>

  <h2>Endpoints</h2>
  <ul>
    <li><a href="/mcp"><code>/mcp</code></a>: MCP Streamable HTTP</li>
    <li><a href="/health"><code>/health</code></a>: knowledge index health</li>
  </ul>

  <h2>Tools</h2>
  <ul>
  {{- range .Tools}}
    <li><code>{{.Name}}</code>: {{.Summary}}</li>
  {{- end}}
  </ul>

  <p class="notice">{{.Notice}}</p>
</main>
</body>
</html>`))

type landingTool struct {
	Name    string
	Summary string
}

var landingData = struct {
	Tools  []landingTool
	Notice string
}{
	Tools: []landingTool{
		{"ask", "answer a question, continuing a conversation when conversation_id is given"},
		{"get_history", "read the recent messages of a conversation"},
		{"clear_conversation", "forget a conversation"},
		{"index_stats", "knowledge index and retrieval settings"},
	},
	Notice: "Answers are for educational purposes only and are not a substitute for professional medical advice.",
}

// NewLandingHandler returns an HTTP handler that serves the landing page at /.
func NewLandingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = landingTemplate.Execute(w, landingData)
	}
}
