package http_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	pfhttp "github.com/aretw0/pageflow/pkg/adapters/http"
	"github.com/aretw0/pageflow/pkg/adapters/memory"
	"github.com/aretw0/pageflow/pkg/binder"
	"github.com/aretw0/pageflow/pkg/catalog"
	"github.com/aretw0/pageflow/pkg/domain"
	"github.com/aretw0/pageflow/pkg/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type page struct {
	visits int
}

func (p *page) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conv := binder.ConversationFrom(r.Context())
	if ev := r.FormValue("event"); ev != "" {
		if err := conv.TransitionTo(ev); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
	}
	p.visits++
	fmt.Fprintf(w, "%s %s %d", conv.ID(), conv.Current(), p.visits)
}

type unregistered struct{}

func (unregistered) ServeHTTP(w http.ResponseWriter, r *http.Request) {}

func newServer(t *testing.T, opts ...pfhttp.Option) (*httptest.Server, *memory.Store) {
	t.Helper()
	g, err := domain.NewGraph(domain.GraphSpec{
		ID:      "signup",
		Initial: "start",
		States:  []string{"start", "review", "done"},
		Final:   []string{"done"},
		Transitions: []domain.Transition{
			{From: "start", Event: "submit", To: "review"},
			{From: "review", Event: "confirm", To: "done"},
		},
	})
	require.NoError(t, err)
	flows, err := catalog.New(g)
	require.NoError(t, err)

	handlers, err := metadata.NewCatalog(
		metadata.For[*page]().
			Accept("index", "start").
			Accept("submit", "start").
			Accept("confirm", "review").
			Stateful(metadata.Bind("visits", func(p *page) *int { return &p.visits })).
			MustBuild(),
	)
	require.NoError(t, err)

	store := memory.NewStore()
	srv := pfhttp.NewServer(binder.New(flows, handlers, store), opts...)
	srv.Handle(http.MethodGet, "/signup", "signup:index", func() http.Handler { return &page{} })
	srv.Handle(http.MethodPost, "/signup/submit", "signup:submit", func() http.Handler { return &page{} })
	srv.Handle(http.MethodPost, "/signup/confirm", "signup:confirm", func() http.Handler { return &page{} })
	srv.Handle(http.MethodGet, "/broken", "signup:index", func() http.Handler { return unregistered{} })
	srv.Handle(http.MethodGet, "/plain", "", func() http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Nil(t, binder.ConversationFrom(r.Context()))
			io.WriteString(w, pfhttp.SessionID(r.Context()))
		})
	})

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts, store
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func read(t *testing.T, resp *http.Response) (int, []string) {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, strings.Fields(string(body))
}

func TestServer_Wizard(t *testing.T) {
	ts, store := newServer(t)
	client := newClient(t)

	// 1. Landing page starts a conversation
	resp, err := client.Get(ts.URL + "/signup")
	require.NoError(t, err)
	code, fields := read(t, resp)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, fields, 3)
	id := fields[0]
	assert.Equal(t, []string{"start", "1"}, fields[1:])

	// 2. submit moves to review, visits restored from the session
	resp, err = client.PostForm(ts.URL+"/signup/submit", url.Values{"conversation": {id}, "event": {"submit"}})
	require.NoError(t, err)
	code, fields = read(t, resp)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{id, "review", "2"}, fields)

	// 3. replaying a stale link is rejected
	resp, err = client.PostForm(ts.URL+"/signup/submit", url.Values{"conversation": {id}})
	require.NoError(t, err)
	code, _ = read(t, resp)
	assert.Equal(t, http.StatusForbidden, code)

	// 4. confirm (id in the query string) finishes the flow
	resp, err = client.PostForm(ts.URL+"/signup/confirm?conversation="+id, url.Values{"event": {"confirm"}})
	require.NoError(t, err)
	code, fields = read(t, resp)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{id, "done", "3"}, fields)

	assert.Empty(t, store.Sessions(), "finished conversations leave the session store")
}

func TestServer_SessionsIsolateConversations(t *testing.T) {
	ts, _ := newServer(t)

	resp, err := newClient(t).Get(ts.URL + "/signup")
	require.NoError(t, err)
	_, fields := read(t, resp)
	id := fields[0]

	resp, err = newClient(t).Get(ts.URL + "/signup?conversation=" + id)
	require.NoError(t, err)
	_, fields = read(t, resp)
	assert.NotEqual(t, id, fields[0], "another session cannot resume the conversation")
	assert.Equal(t, "1", fields[2])
}

func TestServer_SessionCookie(t *testing.T) {
	ts, _ := newServer(t)
	client := newClient(t)

	resp, err := client.Get(ts.URL + "/plain")
	require.NoError(t, err)
	_, first := read(t, resp)
	require.Len(t, first, 1)

	resp, err = client.Get(ts.URL + "/plain")
	require.NoError(t, err)
	_, second := read(t, resp)
	assert.Equal(t, first, second)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/plain", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: pfhttp.DefaultCookieName, Value: "forged"})
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_, third := read(t, resp)
	assert.NotEqual(t, []string{"forged"}, third)
}

func TestServer_Errors(t *testing.T) {
	ts, _ := newServer(t)

	resp, err := http.Get(ts.URL + "/broken")
	require.NoError(t, err)
	code, _ := read(t, resp)
	assert.Equal(t, http.StatusInternalServerError, code)

	resp, err = http.Get(ts.URL + "/health")
	require.NoError(t, err)
	code, fields := read(t, resp)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{`{"status":"ok"}`}, fields)
}

type failingBinder struct {
	released bool
}

func (f *failingBinder) Pre(ctx context.Context, _ binder.Request, _ binder.Target) (context.Context, error) {
	return ctx, nil
}

func (f *failingBinder) Post(context.Context) error { return fmt.Errorf("store unavailable") }

func (f *failingBinder) Release(context.Context) { f.released = true }

func TestServer_PostFailureDiscardsOutput(t *testing.T) {
	fb := &failingBinder{}
	srv := pfhttp.NewServer(fb)
	srv.Handle(http.MethodGet, "/", "signup:index", func() http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "partial")
		})
	})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "partial")
	assert.True(t, fb.released)
}

func TestServer_Tracing(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	ts, _ := newServer(t, pfhttp.WithTracer(tp.Tracer("test")))
	client := newClient(t)

	resp, err := client.Get(ts.URL + "/signup")
	require.NoError(t, err)
	_, fields := read(t, resp)
	id := fields[0]

	resp, err = client.PostForm(ts.URL+"/signup/confirm", url.Values{"conversation": {id}})
	require.NoError(t, err)
	code, _ := read(t, resp)
	require.Equal(t, http.StatusForbidden, code)

	spans := rec.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "pageflow signup:index", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String("pageflow.conversation_id", id))
	assert.Contains(t, spans[0].Attributes(), attribute.Int("http.status_code", http.StatusOK))

	assert.Equal(t, "pageflow signup:confirm", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}
