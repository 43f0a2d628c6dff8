package api

import (
	"bytes"
	"html/template"
	"log"
	"net/http"
	"strconv"

	"github.com/jetsetgo/warehouse-console/internal/views"
)

// pageData is everything the console template can show. Exactly one of the
// content fields is set per page, plus Form or Confirm layered over a table.
type pageData struct {
	Title    string
	Page     string
	User     string
	Role     string
	LoggedIn bool
	Tabs     []views.Tab
	Error    string

	Dashboard *views.Dashboard
	Table     *views.Table
	Form      *views.Form
	Confirm   *confirmView
	Login     *views.Login
	Password  *views.Password
}

type confirmView struct {
	Resource string
	Key      string
	Message  string
}

var templateFuncs = template.FuncMap{
	"pageURL": func(resource string, page, size int) string {
		return "/" + resource + "?page=" + strconv.Itoa(page) + "&size=" + strconv.Itoa(size)
	},
	"add": func(a, b int) int { return a + b },
}

func (s *Server) baseData(page string) pageData {
	data := pageData{
		Page:     page,
		LoggedIn: s.sess.IsLoggedIn(),
		Tabs:     views.Tabs(page),
	}
	for _, t := range data.Tabs {
		if t.Active {
			data.Title = t.Label
		}
	}
	if user, ok := s.sess.User(); ok {
		data.User = user.DisplayName()
		data.Role = user.Role
	}
	return data
}

// render executes the template into a buffer first so a template error
// never leaves a half-written page.
func (s *Server) render(w http.ResponseWriter, status int, data pageData) {
	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, data); err != nil {
		log.Printf("ERROR: Failed to render %q: %v", data.Page, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

const webUI = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{if .Title}}{{.Title}} - {{end}}Warehouse Console</title>
<link rel="stylesheet" href="https://cdnjs.cloudflare.com/ajax/libs/font-awesome/6.5.1/css/all.min.css">
<style>
*{box-sizing:border-box;margin:0;padding:0}
body{font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,sans-serif;background:#f5f5f5;color:#333;line-height:1.6}
a{color:#667eea;text-decoration:none}
a:hover{text-decoration:underline}

/* Header */
.hdr{background:linear-gradient(135deg,#667eea 0%,#764ba2 100%);color:#fff;padding:14px 20px;display:flex;align-items:center;justify-content:space-between;position:sticky;top:0;z-index:100}
.hdr h1{font-size:18px;font-weight:600}
.hdr-right{display:flex;align-items:center;font-size:13px;gap:10px}
.hdr-right a,.hdr-right button{color:#fff;background:none;border:none;cursor:pointer;font-size:13px}

/* Tab bar */
.tabs{display:flex;border-bottom:2px solid #e5e7eb;background:#fff;padding:0 16px;position:sticky;top:48px;z-index:99;overflow-x:auto}
.tab{padding:12px 18px;font-size:14px;font-weight:500;color:#666;border-bottom:2px solid transparent;margin-bottom:-2px;white-space:nowrap}
.tab:hover{color:#333;text-decoration:none}
.tab.active{color:#667eea;border-bottom-color:#667eea}

/* Content */
.content{max-width:1100px;margin:0 auto;padding:20px}
.card{background:#fff;border-radius:8px;padding:20px;margin-bottom:16px;box-shadow:0 1px 3px rgba(0,0,0,.1)}
.card h2{font-size:16px;margin-bottom:12px;padding-bottom:8px;border-bottom:1px solid #eee;display:flex;justify-content:space-between;align-items:center}

/* Counters */
.stats{display:grid;grid-template-columns:repeat(auto-fit,minmax(200px,1fr));gap:16px;margin-bottom:16px}
.stat{background:#fff;border-radius:8px;padding:20px;box-shadow:0 1px 3px rgba(0,0,0,.1)}
.stat-value{font-size:28px;font-weight:600;color:#667eea}
.stat-label{font-size:13px;color:#666}
.activity{list-style:none}
.activity li{padding:8px 0;border-bottom:1px solid #f0f0f0;font-size:14px;display:flex;gap:10px}
.activity .date{color:#888;margin-left:auto;font-size:12px}
.empty{color:#888;text-align:center;padding:24px;font-size:14px}

/* Tables */
table{width:100%;border-collapse:collapse;font-size:14px}
th{text-align:left;font-size:12px;text-transform:uppercase;letter-spacing:.05em;color:#555;padding:8px;border-bottom:2px solid #eee}
td{padding:8px;border-bottom:1px solid #f0f0f0}
.text-danger{color:#ef4444;font-weight:600}
.text-success{color:#22c55e}
.pager{display:flex;justify-content:space-between;align-items:center;margin-top:12px;font-size:13px;color:#666}

/* Buttons */
.btn{display:inline-flex;align-items:center;gap:6px;padding:8px 16px;border-radius:6px;border:none;cursor:pointer;font-size:14px;font-weight:500;line-height:1.4}
.btn:disabled{opacity:.5;cursor:not-allowed}
.btn-primary{background:#667eea;color:#fff}.btn-primary:hover:not(:disabled){background:#5a67d8;text-decoration:none}
.btn-secondary{background:#e5e7eb;color:#374151}.btn-secondary:hover:not(:disabled){background:#d1d5db;text-decoration:none}
.btn-danger{background:#fff;color:#ef4444;border:1px solid #ef4444}.btn-danger:hover:not(:disabled){background:#fef2f2}
.btn-sm{padding:5px 10px;font-size:12px}
.btn-row{display:flex;gap:8px;flex-wrap:wrap;margin-top:12px;justify-content:flex-end}

/* Forms */
.form-group{margin-bottom:14px}
.form-group label{display:block;font-size:13px;font-weight:500;margin-bottom:4px;color:#555}
.form-group input,.form-group select,.form-group textarea{width:100%;padding:8px 12px;border:1px solid #ddd;border-radius:6px;font-size:14px}
.form-group input[type=checkbox]{width:auto}
.form-group input:focus,.form-group select:focus{outline:none;border-color:#667eea;box-shadow:0 0 0 3px rgba(102,126,234,.15)}
.form-help{font-size:12px;color:#888;margin-top:3px}
.field-error{font-size:12px;color:#ef4444;margin-top:3px}
.error-box{background:#fef2f2;border:1px solid #fecaca;border-radius:6px;padding:12px;color:#991b1b;font-size:13px;margin-bottom:12px}
.ok-box{background:#dcfce7;border:1px solid #bbf7d0;border-radius:6px;padding:12px;color:#166534;font-size:13px;margin-bottom:12px}
.login{max-width:400px;margin:60px auto}

/* Toast */
#toast-root{position:fixed;top:60px;right:20px;z-index:200;display:flex;flex-direction:column;gap:8px}
.toast{padding:12px 20px;border-radius:6px;color:#fff;font-size:14px;box-shadow:0 4px 12px rgba(0,0,0,.15);cursor:pointer;max-width:360px}
.toast-success{background:#22c55e}.toast-error{background:#ef4444}.toast-warning{background:#f59e0b}.toast-info{background:#3b82f6}

/* Loading */
#loading{position:fixed;top:0;left:0;right:0;height:3px;background:#f59e0b;z-index:300;display:none}
#loading.on{display:block}

/* Modal */
.modal-overlay{position:fixed;inset:0;background:rgba(0,0,0,.4);display:flex;align-items:center;justify-content:center;z-index:150}
.modal{background:#fff;border-radius:8px;padding:24px;max-width:520px;width:90%;max-height:90vh;overflow-y:auto;box-shadow:0 8px 24px rgba(0,0,0,.2)}
.modal h3{margin-bottom:12px;font-size:16px}
.modal p{color:#666;font-size:14px;margin-bottom:16px}
</style>
</head>
<body>
<div id="loading"></div>
<div id="toast-root"></div>
<div id="modal-root"></div>

{{if .LoggedIn}}
<header class="hdr">
 <h1><i class="fas fa-warehouse"></i> Warehouse Console</h1>
 <div class="hdr-right">
  <span>{{.User}}{{if .Role}} ({{.Role}}){{end}}</span>
  <a href="/account/password"><i class="fas fa-key"></i> Password</a>
  <form method="post" action="/logout"><button type="submit"><i class="fas fa-sign-out-alt"></i> Sign out</button></form>
 </div>
</header>
<nav class="tabs">
 {{range .Tabs}}<a class="tab{{if .Active}} active{{end}}" href="/{{.Page}}"><i class="fas {{.Icon}}"></i> {{.Label}}</a>{{end}}
</nav>
{{end}}

<main class="content">
{{if .Error}}<div class="error-box">{{.Error}}</div>{{end}}

{{with .Login}}
<div class="login card">
 <h2>Sign in</h2>
 {{if .Locked}}<div class="error-box">Too many login attempts. Try again in {{.LockedFor}}.</div>{{end}}
 <form method="post" action="/login">
  <div class="form-group">
   <label for="username">Username</label>
   <input id="username" name="username" value="{{.Username}}" autocomplete="username" {{if .Locked}}disabled{{end}}>
   {{if .UsernameError}}<div class="field-error">{{.UsernameError}}</div>{{end}}
  </div>
  <div class="form-group">
   <label for="password">Password</label>
   <input id="password" name="password" type="password" autocomplete="current-password" {{if .Locked}}disabled{{end}}>
   {{if .PasswordError}}<div class="field-error">{{.PasswordError}}</div>{{end}}
  </div>
  <div class="form-group">
   <label><input type="checkbox" id="remember" name="remember" {{if .Remember}}checked{{end}}> Remember me</label>
  </div>
  <button class="btn btn-primary" type="submit" {{if .Locked}}disabled{{end}}>Sign in</button>
 </form>
</div>
{{end}}

{{with .Dashboard}}
<div class="stats">
 {{range .Counters}}<div class="stat" id="{{.ID}}"><div class="stat-value">{{.Value}}</div><div class="stat-label">{{.Label}}</div></div>{{end}}
</div>
<div class="card">
 <h2>Recent activity</h2>
 {{if .Activity}}<ul class="activity">{{range .Activity}}<li><i class="fas {{.Icon}}"></i> {{.Text}}<span class="date">{{.Date}}</span></li>{{end}}</ul>
 {{else}}<div class="empty">{{.ActivityEmpty}}</div>{{end}}
</div>
<div class="card">
 <h2>Low stock</h2>
 {{if .LowStock}}<ul class="activity">{{range .LowStock}}<li><i class="fas fa-exclamation-triangle text-danger"></i> <strong>{{.Name}}</strong><span class="date">{{.Detail}}</span></li>{{end}}</ul>
 {{else}}<div class="empty">{{.LowStockEmpty}}</div>{{end}}
</div>
{{end}}

{{with .Table}}
<div class="card">
 <h2>{{.Title}}
  <span>
   <a class="btn btn-secondary btn-sm" href="/{{.Resource}}"><i class="fas fa-sync"></i> Refresh</a>
   {{if .CanCreate}}<a class="btn btn-primary btn-sm" href="/{{.Resource}}/new"><i class="fas fa-plus"></i> {{.CreateLabel}}</a>{{end}}
  </span>
 </h2>
 {{if .Rows}}
 <table>
  <thead><tr>{{range .Columns}}<th>{{.}}</th>{{end}}<th></th></tr></thead>
  <tbody>
  {{range .Rows}}<tr>
   {{range .Cells}}<td{{if .Class}} class="{{.Class}}"{{end}}>{{.Text}}</td>{{end}}
   <td>{{with .Delete}}<form method="post" action="/{{.Resource}}/delete"><input type="hidden" name="key" value="{{.Value}}"><button class="btn btn-danger btn-sm" type="submit"><i class="fas fa-trash"></i> {{.Label}}</button></form>{{end}}</td>
  </tr>{{end}}
  </tbody>
 </table>
 {{$t := .}}
 <div class="pager">
  <span>Page {{.Pager.Page}} of {{.Pager.Pages}} ({{.Pager.Total}} records)</span>
  <span>
   {{if .Pager.HasPrev}}<a class="btn btn-secondary btn-sm" href="{{pageURL $t.Resource (add $t.Pager.Page -1) $t.Pager.Size}}">Previous</a>{{end}}
   {{if .Pager.HasNext}}<a class="btn btn-secondary btn-sm" href="{{pageURL $t.Resource (add $t.Pager.Page 1) $t.Pager.Size}}">Next</a>{{end}}
  </span>
 </div>
 {{else}}<div class="empty">{{.Empty}}</div>{{end}}
</div>
{{end}}

{{with .Form}}
<div class="modal-overlay">
 <div class="modal">
  <h3>{{.Title}}</h3>
  {{if .Error}}<div class="error-box">{{.Error}}</div>{{end}}
  <form method="post" action="/{{.Resource}}">
  {{range .Fields}}
   <div class="form-group">
   {{if eq .Type "checkbox"}}
    <label><input type="checkbox" id="{{.Name}}" name="{{.Name}}" {{if .Checked}}checked{{end}}> {{.Label}}</label>
   {{else}}
    <label for="{{.Name}}">{{.Label}}{{if .Required}} *{{end}}</label>
    {{if eq .Type "select"}}
    <select id="{{.Name}}" name="{{.Name}}" {{if .Required}}required{{end}}>
     <option value="">Select...</option>
     {{$v := .Value}}{{range .Options}}<option value="{{.Value}}" {{if eq .Value $v}}selected{{end}}>{{.Label}}</option>{{end}}
    </select>
    {{else if eq .Type "textarea"}}
    <textarea id="{{.Name}}" name="{{.Name}}" rows="3" placeholder="{{.Placeholder}}">{{.Value}}</textarea>
    {{else}}
    <input id="{{.Name}}" name="{{.Name}}" type="{{.Type}}" value="{{.Value}}" placeholder="{{.Placeholder}}"{{if .Pattern}} pattern="{{.Pattern}}"{{end}}{{if .Min}} min="{{.Min}}"{{end}}{{if .Step}} step="{{.Step}}"{{end}} {{if .Required}}required{{end}}>
    {{end}}
   {{end}}
   {{if .Hint}}<div class="form-help">{{.Hint}}</div>{{end}}
   {{if .Error}}<div class="field-error">{{.Error}}</div>{{end}}
   </div>
  {{end}}
   <div class="btn-row">
    <a class="btn btn-secondary" href="/{{.Resource}}">Cancel</a>
    <button class="btn btn-primary" type="submit">{{.Submit}}</button>
   </div>
  </form>
 </div>
</div>
{{end}}

{{with .Confirm}}
<div class="modal-overlay">
 <div class="modal">
  <h3>Confirm delete</h3>
  <p>{{.Message}}</p>
  <form method="post" action="/{{.Resource}}/delete">
   <input type="hidden" name="key" value="{{.Key}}">
   <div class="btn-row">
    <button class="btn btn-secondary" type="submit" name="confirm" value="no">Cancel</button>
    <button class="btn btn-danger" type="submit" name="confirm" value="yes">Delete</button>
   </div>
  </form>
 </div>
</div>
{{end}}

{{with .Password}}
<div class="card" style="max-width:520px">
 <h2>Change password</h2>
 {{if .Message}}<div class="ok-box">{{.Message}}</div>{{end}}
 {{if .Error}}<div class="error-box">{{.Error}}</div>{{end}}
 <form method="post" action="/account/password">
  <div class="form-group">
   <label for="oldPassword">Current password</label>
   <input id="oldPassword" name="oldPassword" type="password" autocomplete="current-password">
  </div>
  <div class="form-group">
   <label for="newPassword">New password *</label>
   <input id="newPassword" name="newPassword" type="password" autocomplete="new-password" required>
  </div>
  {{if .IsAdmin}}
  <details>
   <summary>Reset another user's password</summary>
   <div class="form-group">
    <label for="targetUserId">User ID</label>
    <input id="targetUserId" name="targetUserId">
   </div>
   <div class="form-group">
    <label for="targetUsername">Username</label>
    <input id="targetUsername" name="targetUsername">
   </div>
  </details>
  {{end}}
  <div class="btn-row"><button class="btn btn-primary" type="submit">Update password</button></div>
 </form>
</div>
{{end}}
</main>

<script>
var loggedIn = {{.LoggedIn}};
var shown = {};

function toast(n) {
 if (!n || shown[n.id]) return;
 shown[n.id] = true;
 var el = document.createElement('div');
 el.className = 'toast toast-' + n.level;
 el.textContent = n.title && n.message ? n.title + ': ' + n.message : (n.title || n.message);
 el.onclick = function() { dismiss(n.id, el); };
 document.getElementById('toast-root').appendChild(el);
 if (n.expires_at && n.expires_at.indexOf('0001-') !== 0) {
  var ms = new Date(n.expires_at).getTime() - Date.now();
  setTimeout(function() { el.remove(); }, Math.max(ms, 1000));
 }
}

function dismiss(id, el) {
 fetch('/api/notifications/' + encodeURIComponent(id) + '/dismiss', {method:'POST'});
 el.remove();
}

function showExtendPrompt(data) {
 var root = document.getElementById('modal-root');
 root.innerHTML = '<div class="modal-overlay"><div class="modal">' +
  '<h3>Session warning</h3><p></p>' +
  '<div class="btn-row"><button class="btn btn-secondary" id="extend-no">Dismiss</button>' +
  '<button class="btn btn-primary" id="extend-yes">Stay signed in</button></div></div></div>';
 root.querySelector('p').textContent = (data && data.message) || 'Your session is about to expire.';
 document.getElementById('extend-no').onclick = function() { root.innerHTML = ''; };
 document.getElementById('extend-yes').onclick = function() {
  fetch('/session/extend', {method:'POST'}).then(function() { root.innerHTML = ''; });
 };
}

function connect() {
 var ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
 ws.onmessage = function(e) {
  var msg = JSON.parse(e.data);
  switch (msg.type) {
  case 'notification': toast(msg.data); break;
  case 'loading': document.getElementById('loading').className = msg.data ? 'on' : ''; break;
  case 'session_warning': showExtendPrompt(msg.data); break;
  case 'redirect': if (location.pathname !== msg.data) location.href = msg.data; break;
  case 'ping': ws.send(JSON.stringify({type:'pong'})); break;
  }
 };
 ws.onclose = function() { setTimeout(connect, 3000); };
 window.consoleSocket = ws;
}

// Activity reports are throttled here too; the console probes at most once per window.
var lastActivity = 0;
function activity() {
 if (!loggedIn || Date.now() - lastActivity < 10000) return;
 lastActivity = Date.now();
 var ws = window.consoleSocket;
 if (ws && ws.readyState === 1) ws.send(JSON.stringify({type:'activity'}));
 else fetch('/api/activity', {method:'POST'});
}
['mousedown','keydown','scroll','touchstart'].forEach(function(ev) {
 document.addEventListener(ev, activity, {passive:true});
});
document.addEventListener('visibilitychange', function() { if (!document.hidden) activity(); });

var remember = document.getElementById('remember');
if (remember) {
 remember.addEventListener('change', function() {
  var body = new URLSearchParams({remember: remember.checked ? 'true' : 'false'});
  fetch('/login/remember', {method:'POST', body: body});
 });
}

var auto = document.getElementById('autoProductId');
if (auto) {
 var idField = document.getElementById('商品ID');
 var sync = function() { if (idField) idField.disabled = auto.checked; };
 auto.addEventListener('change', sync);
 sync();
}

fetch('/api/notifications').then(function(r){return r.json()}).then(function(data) {
 (data.notifications || []).forEach(toast);
});
connect();
</script>
</body>
</html>`
