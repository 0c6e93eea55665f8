package ui

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/me/servicehub/internal/guard"
	"github.com/me/servicehub/pkg/model"
)

// Template functions available in all templates.
var templateFuncs = template.FuncMap{
	"formatDate": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Format("2006-01-02")
	},
	"roleLabel": func(r model.Role) string {
		switch r {
		case model.RoleAdmin:
			return "Administrator"
		case model.RoleProvider:
			return "Service provider"
		default:
			return "Customer"
		}
	},
	"dashboardFor": guard.DashboardFor,
	"yesNo": func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	},
	"initial": func(s string) string {
		s = strings.TrimSpace(s)
		if s == "" {
			return "?"
		}
		return strings.ToUpper(s[:1])
	},
}

// renderTemplate renders the named page inside the layout.
func renderTemplate(w io.Writer, name string, data map[string]any) error {
	content, ok := templates[name]
	if !ok {
		return fmt.Errorf("template not found: %s", name)
	}
	layout, ok := templates["layout"]
	if !ok {
		return fmt.Errorf("layout template not found")
	}

	tmpl, err := template.New("layout").Funcs(templateFuncs).Parse(layout)
	if err != nil {
		return fmt.Errorf("parse layout: %w", err)
	}
	if _, err := tmpl.New("content").Parse(content); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return tmpl.Execute(w, data)
}

// templates holds all page content. Pages fill the "content" block of the
// layout.
var templates = map[string]string{
	"layout": `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
</head>
<body>
    {{if .User}}
    <nav>
        <a href="{{dashboardFor .User.Role}}">ServiceHub</a>
        <span>{{.User.Name}} ({{roleLabel .User.Role}})</span>
        <form method="post" action="/logout"><button type="submit">Sign out</button></form>
    </nav>
    {{end}}
    <main>
        {{template "content" .}}
    </main>
</body>
</html>`,

	"login": `<h1>Sign in</h1>
{{if .Error}}<p role="alert" class="error">{{.Error}}</p>{{end}}
<form method="post" action="/login">
    <label>Email <input type="email" name="email" value="{{.Email}}" required></label>
    <label>Password <input type="password" name="password" required></label>
    <button type="submit">Sign in</button>
</form>
<p>No account yet? <a href="/register">Create one</a>.</p>`,

	"register": `<h1>Create account</h1>
{{if .Error}}<p role="alert" class="error">{{.Error}}</p>{{end}}
<form method="post" action="/register">
    <label>Name <input type="text" name="name" value="{{.Name}}" required></label>
    <label>Email <input type="email" name="email" value="{{.Email}}" required></label>
    <label>Phone <input type="tel" name="phone"></label>
    <label>Password <input type="password" name="password" required></label>
    <label>I want to
        <select name="role">
            <option value="user"{{if ne .Role "provider"}} selected{{end}}>book services</option>
            <option value="provider"{{if eq .Role "provider"}} selected{{end}}>offer services</option>
        </select>
    </label>
    <button type="submit">Create account</button>
</form>
<p>Already registered? <a href="/login">Sign in</a>.</p>`,

	"dashboard": `<h1>{{.Dashboard}}</h1>
<section class="profile">
    <div class="avatar">{{initial .User.Name}}</div>
    <dl>
        <dt>Name</dt><dd>{{.User.Name}}</dd>
        <dt>Email</dt><dd>{{.User.Email}}</dd>
        <dt>Role</dt><dd>{{roleLabel .User.Role}}</dd>
        <dt>Email verified</dt><dd>{{yesNo .User.IsEmailVerified}}</dd>
        <dt>Phone verified</dt><dd>{{yesNo .User.IsPhoneVerified}}</dd>
        <dt>Member since</dt><dd>{{formatDate .User.CreatedAt}}</dd>
    </dl>
</section>
<footer>Console up {{.Uptime}}</footer>`,

	"loading": `<p class="interstitial">Checking your session&hellip;</p>`,

	"redirecting": `<p class="interstitial">Redirecting to <a href="{{.Target}}">{{.Target}}</a>&hellip;</p>`,

	"verify-notice": `<h1>Verify your email</h1>
{{if .User}}<p>We sent a verification link to <strong>{{.User.Email}}</strong>. Open it to continue.</p>{{end}}
{{if .Notice}}<p class="notice">{{.Notice}}</p>{{end}}
{{if .Error}}<p role="alert" class="error">{{.Error}}</p>{{end}}
<form method="post" action="/resend-verification"><button type="submit">Resend verification email</button></form>
<form method="post" action="/logout"><button type="submit">Sign out</button></form>`,

	"verify-result": `{{if .Verified}}
<h1>Email verified</h1>
{{if .Dashboard}}<p><a href="{{.Dashboard}}">Continue to your dashboard</a></p>
{{else}}<p>{{if .Email}}{{.Email}} is verified. {{end}}<a href="/login">Sign in</a> to continue.</p>{{end}}
{{else}}
<h1>Verification failed</h1>
<p role="alert" class="error">{{.Error}}</p>
<form method="post" action="/resend-verification"><button type="submit">Send a new link</button></form>
{{end}}`,

	"error": `<h1>Error</h1>
<p>{{.Message}}</p>
<p><a href="/">Home</a></p>`,
}
