package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"project-hub/internal/observability"
)

const (
	OutcomeIframe = "iframe"
	OutcomeAPI    = "api"
)

// Request is one snippet to run.
type Request struct {
	SourceCode string `json:"sourceCode"`
	Language   string `json:"language"`
	Input      string `json:"input"`
}

// Outcome is either browser preview HTML or a remote run result.
type Outcome struct {
	Type    string  `json:"type"`
	Content string  `json:"content,omitempty"`
	Result  *Result `json:"result,omitempty"`
}

// Executor runs a snippet remotely.
type Executor interface {
	Execute(ctx context.Context, source, language, stdin string) (Result, error)
}

// Runner routes a request to the browser preview or to the executor.
type Runner struct {
	exec Executor
}

func NewRunner(exec Executor) *Runner {
	return &Runner{exec: exec}
}

func (r *Runner) Run(ctx context.Context, req Request) (Outcome, error) {
	lang := strings.ToLower(req.Language)
	if RunsInBrowser(lang) {
		observability.IncCodeExecution(lang, OutcomeIframe)
		return Outcome{Type: OutcomeIframe, Content: PreviewHTML(req.SourceCode, lang)}, nil
	}

	res, err := r.exec.Execute(ctx, req.SourceCode, lang, req.Input)
	if err != nil {
		observability.IncCodeExecution(lang, "error")
		return Outcome{}, fmt.Errorf("code execution failed: %w", err)
	}
	observability.IncCodeExecution(lang, res.Status)
	return Outcome{Type: OutcomeAPI, Result: &res}, nil
}

// RunsInBrowser reports whether language is previewed client side.
func RunsInBrowser(language string) bool {
	switch strings.ToLower(language) {
	case "html", "htm", "css", "javascript", "js":
		return true
	}
	return false
}

// PreviewHTML wraps source in a standalone page for an iframe.
func PreviewHTML(source, language string) string {
	switch strings.ToLower(language) {
	case "css":
		return fmt.Sprintf(cssPage, strings.ReplaceAll(source, "</style", `<\/style`))
	case "javascript", "js":
		// json.Marshal escapes <, > and & so the code cannot close the script tag.
		encoded, _ := json.Marshal(source)
		return fmt.Sprintf(jsPage, encoded)
	default:
		return source
	}
}

const cssPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>CSS Preview</title>
  <style>%s</style>
</head>
<body>
  <div class="demo-content">
    <h1>CSS Preview</h1>
    <p>This is a demo paragraph to show your CSS styles.</p>
    <button class="demo-button">Demo Button</button>
    <div class="demo-box">Demo Box</div>
    <div class="demo-card">
      <h3>Demo Card</h3>
      <p>This card demonstrates various CSS properties.</p>
    </div>
  </div>
</body>
</html>
`

const jsPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>JavaScript Preview</title>
  <style>
    body { font-family: Arial, sans-serif; padding: 20px; background: #f5f5f5; }
    #output { background: white; padding: 20px; border-radius: 8px; }
    .console { background: #1f2937; color: #f9fafb; padding: 10px; font-family: monospace; }
    .console .error { color: #ef4444; }
    .console .warn { color: #f59e0b; }
    .warning { color: #d97706; background: #fffbeb; padding: 10px; }
  </style>
</head>
<body>
  <div id="output">
    <h2>JavaScript Output</h2>
    <div id="result"></div>
    <div id="console" class="console"></div>
  </div>
  <script>
    const code = %s;
    const consoleDiv = document.getElementById('console');
    const resultDiv = document.getElementById('result');
    function addToConsole(message, type) {
      const div = document.createElement('div');
      div.className = type;
      div.textContent = '[' + type.toUpperCase() + '] ' + message;
      consoleDiv.appendChild(div);
    }
    for (const type of ['log', 'error', 'warn', 'info']) {
      const original = console[type];
      console[type] = (...args) => { original.apply(console, args); addToConsole(args.join(' '), type); };
    }
    const nodePatterns = ['require(', 'module.exports', 'exports.', 'process.', 'Buffer', 'global.', '__dirname', '__filename', 'setImmediate', 'clearImmediate'];
    const found = nodePatterns.filter(p => code.includes(p));
    if (found.length > 0) {
      resultDiv.className = 'warning';
      resultDiv.textContent = 'Node.js code detected, these features do not work in the browser: ' + found.join(', ');
      addToConsole('Node.js code detected', 'warn');
    } else {
      try {
        eval(code);
        addToConsole('Code executed successfully', 'log');
      } catch (error) {
        addToConsole('Error: ' + error.message, 'error');
      }
    }
  </script>
</body>
</html>
`
