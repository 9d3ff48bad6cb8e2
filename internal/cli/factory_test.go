package cli

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/pageflow/internal/config"
	"github.com/aretw0/pageflow/internal/logging"
	"github.com/aretw0/pageflow/pkg/adapters/memory"
	"github.com/aretw0/pageflow/pkg/adapters/sqlite"
	"github.com/aretw0/pageflow/pkg/domain"
	"github.com/aretw0/pageflow/pkg/dsl"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestBuild_Demo(t *testing.T) {
	reg := prometheus.NewRegistry()
	app, err := Build(context.Background(), config.Default(), logging.NewNop(), reg)
	require.NoError(t, err)
	defer app.Close()
	assert.True(t, app.Demo)

	code, body := get(t, app.Handler, "/signup")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "Create your account")

	code, body = get(t, app.Handler, "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `pageflow_conversations_started_total{flow="signup"} 1`)

	code, _ = get(t, app.Handler, "/")
	assert.Equal(t, http.StatusFound, code)
}

func TestBuild_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := config.Default()
	cfg.Metrics = false
	cfg.Store.Driver = "redis"
	cfg.Store.Redis.Addr = mr.Addr()
	cfg.Store.Redis.Lock = true

	app, err := Build(context.Background(), cfg, logging.NewNop(), nil)
	require.NoError(t, err)
	defer app.Close()

	code, _ := get(t, app.Handler, "/signup")
	require.Equal(t, http.StatusOK, code)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "pageflow:session:"))

	code, _ = get(t, app.Handler, "/metrics")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestBuild_EncryptedRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := config.Default()
	cfg.Metrics = false
	cfg.Store.Driver = "redis"
	cfg.Store.Redis.Addr = mr.Addr()
	cfg.Store.Encryption.Key = strings.Repeat("ab", 32)

	app, err := Build(context.Background(), cfg, logging.NewNop(), nil)
	require.NoError(t, err)
	defer app.Close()

	code, _ := get(t, app.Handler, "/signup")
	require.Equal(t, http.StatusOK, code)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	fields, err := mr.HKeys(keys[0])
	require.NoError(t, err)
	require.Len(t, fields, 1)
	raw := mr.HGet(keys[0], fields[0])
	assert.Contains(t, raw, "__encrypted__")
	assert.NotContains(t, raw, `"plan"`)
	assert.Contains(t, raw, `"current":"start"`)
}

func TestBuild_FileStore(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics = false
	cfg.Store.Driver = "file"
	cfg.Store.File.Dir = t.TempDir()

	app, err := Build(context.Background(), cfg, logging.NewNop(), nil)
	require.NoError(t, err)
	defer app.Close()

	code, _ := get(t, app.Handler, "/signup")
	require.Equal(t, http.StatusOK, code)

	sessions, err := os.ReadDir(cfg.Store.File.Dir)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestBuild_SQLiteStore(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics = false
	cfg.Store.Driver = "sqlite"
	cfg.Store.SQLite.Path = filepath.Join(t.TempDir(), "pageflow.db")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app, err := Build(ctx, cfg, logging.NewNop(), nil)
	require.NoError(t, err)
	defer app.Close()

	code, _ := get(t, app.Handler, "/signup")
	require.Equal(t, http.StatusOK, code)

	var n int
	require.NoError(t, app.Engine.Store().(*sqlite.Store).DB().QueryRow(`SELECT COUNT(*) FROM conversations`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestBuild_Tracing(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics = false
	cfg.Tracing.Enabled = true
	cfg.Tracing.Output = filepath.Join(t.TempDir(), "spans.json")

	app, err := Build(context.Background(), cfg, logging.NewNop(), nil)
	require.NoError(t, err)

	code, _ := get(t, app.Handler, "/signup")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, app.Close())

	data, err := os.ReadFile(cfg.Tracing.Output)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Name":"pageflow signup:index"`)
	assert.Contains(t, string(data), "conversation_start")
}

func TestBuild_RedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := config.Default()
	cfg.Store.Driver = "redis"
	cfg.Store.Redis.Addr = addr

	_, err := Build(context.Background(), cfg, logging.NewNop(), nil)
	assert.ErrorContains(t, err, "failed to connect to redis")
}

func TestFindFlow(t *testing.T) {
	graphs, err := LoadFlows("")
	require.NoError(t, err)

	g, err := FindFlow(graphs, "")
	require.NoError(t, err)
	assert.Equal(t, "signup", g.ID())

	_, err = FindFlow(graphs, "missing")
	assert.ErrorIs(t, err, domain.ErrUnknownFlow)

	other := dsl.New("other")
	other.Add("a").Terminal()
	_, err = FindFlow(append(graphs, other.MustBuild()), "")
	assert.ErrorContains(t, err, "pass a flow id")
}

func TestWriteInspection(t *testing.T) {
	graphs, err := LoadFlows("")
	require.NoError(t, err)

	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "s1", domain.Record{
		ID: "c1", FlowID: "signup", Current: "review", Previous: "start",
		History: []string{"start", "review"}, Attributes: map[string]any{"name": "Ada"},
	}))
	require.NoError(t, store.Save(ctx, "s1", domain.Record{ID: "c2", FlowID: "survey", Current: "q1"}))

	records, err := SessionRecords(ctx, store, "s1")
	require.NoError(t, err)
	require.Len(t, records, 2)

	var buf bytes.Buffer
	require.NoError(t, WriteInspection(&buf, graphs[0], records))
	out := buf.String()
	assert.Contains(t, out, "# Flow `signup`")
	assert.Contains(t, out, "## Conversation `c1`")
	assert.Contains(t, out, "class review current;")
	assert.NotContains(t, out, "`c2`", "conversations of other flows are skipped")
}
