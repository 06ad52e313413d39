package server

import (
	"path"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// indexTemplate is the body of the template listing. It is rendered by
// weft itself.
const indexTemplate = `<main class="container">
<h1>weft preview</h1>
<p class="meta">{{ Root }} <span>{{ Version }}</span></p>
<p class="empty" weft-if="len(Templates) == 0">No templates found.</p>
<ul class="templates" weft-if="len(Templates) > 0">
<li weft-for="t in Templates" class="{{ t.OK ? 'ok' : 'failed' }}">
<a href="/render/{{ t.Name }}">{{ t.Title }}</a>
<code>{{ t.Path }}</code>
<pre weft-if="!t.OK">{{ t.Error }}</pre>
</li>
</ul>
</main>`

const pageStyle = `body{font-family:system-ui,sans-serif;margin:0;padding:20px;background:#f5f5f5}
.container{max-width:960px;margin:0 auto;background:#fff;padding:20px;border-radius:8px}
h1{border-bottom:2px solid #007acc;padding-bottom:10px}
.meta{color:#666}
.templates{list-style:none;padding:0}
.templates li{border:1px solid #ddd;border-radius:6px;padding:12px;margin:8px 0}
.templates li.failed{border-color:#c00;background:#fff5f5}
.templates code{display:block;font-size:12px;color:#666;margin-top:4px}
.templates pre{color:#c00;white-space:pre-wrap}`

// reloadScript reloads the page when the server reports a change to
// target, or to every template when target is empty.
const reloadScript = `(function(){
var target = document.documentElement.dataset.weftTemplate || "";
function connect(){
var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
ws.onmessage = function(e){
var msg = JSON.parse(e.data);
if (msg.target && target && msg.target !== target) { return; }
if (msg.type === "error") { console.error("weft: " + msg.content); return; }
location.reload();
};
ws.onclose = function(){ setTimeout(connect, 1000); };
}
connect();
})();`

const (
	pageHead = "<!DOCTYPE html>\n<html"
	pageMid  = "><head><meta charset=\"utf-8\"><title>"
	pageBody = "</title><style>" + pageStyle + "</style></head><body>\n"
	pageTail = "\n<script>" + reloadScript + "</script></body></html>"
)

// templateRow is one entry of the index page.
type templateRow struct {
	Name  string
	Title string
	Path  string
	Hash  string
	OK    bool
	Error string
}

type indexPage struct {
	Version   string
	Root      string
	Templates []templateRow
}

// displayTitle turns a template name such as "cards/user_card.html" into
// "User Card".
func displayTitle(name string) string {
	base := path.Base(name)
	base = strings.TrimSuffix(base, path.Ext(base))
	base = strings.NewReplacer("-", " ", "_", " ").Replace(base)

	return cases.Title(language.English).String(base)
}
