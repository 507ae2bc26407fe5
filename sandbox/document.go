package sandbox

import (
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"sort"
	"strings"
)

const (
	DefaultReactURL    = "https://unpkg.com/react@18.2.0/umd/react.production.min.js"
	DefaultReactDOMURL = "https://unpkg.com/react-dom@18.2.0/umd/react-dom.production.min.js"
)

// DocumentOptions controls how a preview document is assembled.
type DocumentOptions struct {
	Title       string
	EntryPoint  string
	ReactURL    string
	ReactDOMURL string
}

func (o DocumentOptions) withDefaults() DocumentOptions {
	if o.Title == "" {
		o.Title = "Playground Preview"
	}
	if o.EntryPoint == "" {
		o.EntryPoint = DefaultEntryPoint
	}
	if o.ReactURL == "" {
		o.ReactURL = DefaultReactURL
	}
	if o.ReactDOMURL == "" {
		o.ReactDOMURL = DefaultReactDOMURL
	}
	return o
}

// errorReporter shows runtime errors inline and forwards them to the host
// page, which cannot read the sandboxed frame directly.
const errorReporter = `(function () {
  function report(message) {
    var box = document.getElementById('playground-error');
    box.textContent = String(message);
    box.hidden = false;
    try { parent.postMessage({ type: 'playground-error', message: String(message) }, '*'); } catch (e) {}
  }
  window.addEventListener('error', function (e) { report(e.message); });
  window.addEventListener('unhandledrejection', function (e) { report(e.reason); });
  window.__playgroundReport = report;
})();`

// mountScript loads the external resources, then mounts the component once
// every one of them has loaded or failed.
const mountScript = `(function () {
  var urls = %s;
  var pending = urls.length;
  function mount() {
    try {
      ReactDOM.createRoot(document.getElementById('root')).render(React.createElement(%s));
    } catch (e) {
      window.__playgroundReport(e && e.message ? e.message : e);
    }
  }
  function settle() {
    pending--;
    if (pending === 0) { mount(); }
  }
  if (pending === 0) { mount(); return; }
  urls.forEach(function (src) {
    var script = document.createElement('script');
    script.src = src;
    script.async = true;
    script.onload = settle;
    script.onerror = settle;
    document.head.appendChild(script);
  });
})();`

// Document builds the full HTML page loaded into the sandboxed preview frame.
// The server-rendered markup is shown immediately; when the render succeeded
// the compiled component is mounted over it once React and the external
// resources have loaded.
func Document(state State, opts DocumentOptions) string {
	opts = opts.withDefaults()
	resources, _ := FilterResources(state.Resources)

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<meta http-equiv=\"Content-Security-Policy\" content=\"%s\">\n",
		html.EscapeString(GenerateCSP(append([]string{opts.ReactURL, opts.ReactDOMURL}, resources...))))
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(opts.Title))
	b.WriteString(`<style>
body { margin: 0; padding: 16px; font-family: system-ui, sans-serif; }
#playground-error { color: #b00020; background: #fdecea; padding: 12px; border-radius: 6px; white-space: pre-wrap; }
</style>
`)
	fmt.Fprintf(&b, "<script crossorigin src=\"%s\"></script>\n", html.EscapeString(opts.ReactURL))
	fmt.Fprintf(&b, "<script crossorigin src=\"%s\"></script>\n", html.EscapeString(opts.ReactDOMURL))
	b.WriteString("</head>\n<body>\n")

	fmt.Fprintf(&b, "<div id=\"root\">%s</div>\n", state.Markup)
	if state.RenderError != "" {
		fmt.Fprintf(&b, "<pre id=\"playground-error\">%s</pre>\n", html.EscapeString(state.RenderError))
	} else {
		b.WriteString("<pre id=\"playground-error\" hidden></pre>\n")
	}
	fmt.Fprintf(&b, "<script>\n%s\n</script>\n", errorReporter)

	if state.RenderError == "" && state.Compiled != "" {
		fmt.Fprintf(&b, "<script>\n%s\n</script>\n", escapeScript(state.Compiled))
		urls, _ := json.Marshal(resources)
		fmt.Fprintf(&b, "<script>\n%s\n</script>\n", fmt.Sprintf(mountScript, escapeScript(string(urls)), opts.EntryPoint))
	} else if state.RenderError != "" {
		msg, _ := json.Marshal(state.RenderError)
		fmt.Fprintf(&b, "<script>\nparent.postMessage({ type: 'playground-error', message: %s }, '*');\n</script>\n", msg)
	}

	b.WriteString("</body>\n</html>\n")
	return b.String()
}

// GenerateCSP returns the Content-Security-Policy for the preview document.
// Scripts may come only from inline blocks and the origins of the given URLs.
func GenerateCSP(scriptURLs []string) string {
	set := map[string]bool{}
	for _, link := range scriptURLs {
		if o := origin(link); o != "" {
			set[o] = true
		}
	}
	origins := make([]string, 0, len(set))
	for o := range set {
		origins = append(origins, o)
	}
	sort.Strings(origins)

	scriptSrc := "'unsafe-inline'"
	if len(origins) > 0 {
		scriptSrc += " " + strings.Join(origins, " ")
	}

	return "default-src 'none'; script-src " + scriptSrc +
		"; style-src 'unsafe-inline' https:; img-src https: data: blob:; font-src https: data:; connect-src https:;"
}

// SandboxAttributes returns the iframe sandbox attribute value for previews:
// scripts run, but the frame gets an opaque origin and cannot navigate the
// top-level page.
func SandboxAttributes() string {
	return "allow-scripts"
}

// WrapInSandbox embeds a preview document in a standalone page that hosts it
// inside a sandboxed iframe.
func WrapInSandbox(doc string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Playground</title>
<style>
* { margin: 0; padding: 0; box-sizing: border-box; }
iframe { width: 100%%; height: 100vh; border: none; }
</style>
</head>
<body>
<iframe sandbox="%s" referrerpolicy="no-referrer" srcdoc="%s"></iframe>
<script>
window.addEventListener('message', function (e) {
  if (e.data && e.data.type === 'playground-error') {
    console.error('component error:', e.data.message);
  }
});
</script>
</body>
</html>
`, SandboxAttributes(), html.EscapeString(doc))
}

// scriptEnd matches what the HTML tokenizer treats as the end of a script
// element or the start of an escaped text run, in any letter case.
var scriptEnd = regexp.MustCompile(`(?i)</script|<!--`)

func escapeScript(code string) string {
	return scriptEnd.ReplaceAllStringFunc(code, func(m string) string {
		if m == "<!--" {
			return `<\!--`
		}
		return `<\/` + m[2:]
	})
}
