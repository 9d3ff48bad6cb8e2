// Package demo is a signup wizard served by "pageflow serve" when no flow
// directory is configured. It exercises the whole stack: a YAML flow,
// handler metadata with stateful fields and an init routine, and the HTTP
// adapter.
package demo

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	pfhttp "github.com/aretw0/pageflow/pkg/adapters/http"
	"github.com/aretw0/pageflow/pkg/binder"
	"github.com/aretw0/pageflow/pkg/conversation"
	"github.com/aretw0/pageflow/pkg/domain"
	"github.com/aretw0/pageflow/pkg/loader"
	"github.com/aretw0/pageflow/pkg/metadata"
)

//go:embed flows/signup.yaml
var signupYAML []byte

//go:embed templates/*.html
var templateFS embed.FS

// FlowID is the id of the demo flow.
const FlowID = "signup"

// Actions of the wizard handler.
const (
	ActionIndex   = "index"
	ActionSubmit  = "submit"
	ActionBack    = "back"
	ActionConfirm = "confirm"
)

var pages = map[string]*template.Template{}

func init() {
	for _, page := range []string{"start", "review", "done"} {
		pages[page] = template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/"+page+".html"))
	}
}

// Flow returns the signup graph.
func Flow() (*domain.Graph, error) {
	graphs, err := loader.Parse(signupYAML)
	if err != nil {
		return nil, err
	}
	if len(graphs) != 1 {
		return nil, fmt.Errorf("demo: expected one flow, got %d", len(graphs))
	}
	return graphs[0], nil
}

// Wizard serves every step of the signup flow. A fresh instance serves each
// request; the fields survive between steps through the conversation.
type Wizard struct {
	action string
	param  string

	name    string
	email   string
	plan    string
	started time.Time
}

// Metadata describes the wizard to the binder.
func Metadata() *metadata.Metadata {
	return metadata.For[*Wizard]().
		Accept(ActionIndex, "start", "review").
		Accept(ActionSubmit, "start").
		Accept(ActionBack, "review").
		Accept(ActionConfirm, "review").
		Stateful(
			metadata.Bind("name", func(w *Wizard) *string { return &w.name }),
			metadata.Bind("email", func(w *Wizard) *string { return &w.email }),
			metadata.Bind("plan", func(w *Wizard) *string { return &w.plan }),
			metadata.Bind("started", func(w *Wizard) *time.Time { return &w.started }),
		).
		Init("defaults", func(w *Wizard) error {
			w.plan = "free"
			w.started = time.Now().UTC()
			return nil
		}).
		MustBuild()
}

// Mount registers the wizard routes. param is the conversation parameter
// name configured on the binder.
func Mount(srv *pfhttp.Server, param string) {
	route := func(method, pattern, action string) {
		srv.Handle(method, pattern, FlowID+":"+action, func() http.Handler {
			return &Wizard{action: action, param: param}
		})
	}
	route(http.MethodGet, "/signup", ActionIndex)
	route(http.MethodPost, "/signup/details", ActionSubmit)
	route(http.MethodPost, "/signup/back", ActionBack)
	route(http.MethodPost, "/signup/confirm", ActionConfirm)
}

// ServeHTTP implements http.Handler.
func (w *Wizard) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	conv := binder.ConversationFrom(r.Context())
	if conv == nil {
		http.Error(rw, "signup must run inside a conversation", http.StatusInternalServerError)
		return
	}

	switch w.action {
	case ActionIndex:
		w.render(rw, conv, "")

	case ActionSubmit:
		w.name = strings.TrimSpace(r.PostFormValue("name"))
		w.email = strings.TrimSpace(r.PostFormValue("email"))
		if plan := r.PostFormValue("plan"); plan != "" {
			w.plan = plan
		}
		if w.name == "" || !strings.Contains(w.email, "@") {
			w.render(rw, conv, "Please provide a name and a valid email address.")
			return
		}
		w.advance(rw, r, conv, "submit")

	case ActionBack:
		w.advance(rw, r, conv, "back")

	case ActionConfirm:
		if err := conv.TransitionTo("confirm"); err != nil {
			http.Error(rw, err.Error(), http.StatusConflict)
			return
		}
		w.render(rw, conv, "")

	default:
		http.NotFound(rw, r)
	}
}

func (w *Wizard) advance(rw http.ResponseWriter, r *http.Request, conv *conversation.Conversation, event string) {
	if err := conv.TransitionTo(event); err != nil {
		http.Error(rw, err.Error(), http.StatusConflict)
		return
	}
	target := "/signup?" + url.Values{w.param: {conv.ID()}}.Encode()
	http.Redirect(rw, r, target, http.StatusSeeOther)
}

type page struct {
	ID      string
	Param   string
	Name    string
	Email   string
	Plan    string
	Elapsed time.Duration
	Error   string
}

func (w *Wizard) render(rw http.ResponseWriter, conv *conversation.Conversation, errMsg string) {
	tpl, ok := pages[conv.Current()]
	if !ok {
		http.Error(rw, fmt.Sprintf("no page for state %q", conv.Current()), http.StatusInternalServerError)
		return
	}

	rw.Header().Set("Content-Type", "text/html; charset=utf-8")
	if errMsg != "" {
		rw.WriteHeader(http.StatusUnprocessableEntity)
	}
	tpl.ExecuteTemplate(rw, "layout", page{
		ID:      conv.ID(),
		Param:   w.param,
		Name:    w.name,
		Email:   w.email,
		Plan:    w.plan,
		Elapsed: time.Since(w.started).Round(time.Second),
		Error:   errMsg,
	})
}
