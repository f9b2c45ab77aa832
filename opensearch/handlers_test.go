package opensearch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/petal-labs/opensearch-mcp/tool"
)

type recordedRequest struct {
	Method      string
	Path        string
	Query       string
	ContentType string
	Body        string
}

type fakeCluster struct {
	t       *testing.T
	version string
	routes  map[string]string

	mu       sync.Mutex
	requests []recordedRequest
}

func newFakeCluster(t *testing.T, version string, routes map[string]string) *httptest.Server {
	t.Helper()
	fc := &fakeCluster{t: t, version: version, routes: routes}
	srv := httptest.NewServer(fc)
	t.Cleanup(srv.Close)
	return srv
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Method:      r.Method,
		Path:        r.URL.Path,
		Query:       r.URL.RawQuery,
		ContentType: r.Header.Get("Content-Type"),
		Body:        string(body),
	})
	f.mu.Unlock()

	if r.URL.Path == "/" {
		_, _ = io.WriteString(w, `{"version":{"number":"`+f.version+`"}}`)
		return
	}
	key := r.Method + " " + r.URL.Path
	if resp, ok := f.routes[key]; ok {
		_, _ = io.WriteString(w, resp)
		return
	}
	if strings.HasPrefix(r.URL.Path, "/_echo") {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"method":"`+r.Method+`","content_type":"`+r.Header.Get("Content-Type")+`"}`)
		return
	}
	w.WriteHeader(http.StatusNotFound)
	_, _ = io.WriteString(w, `{"error":{"reason":"no route for `+key+`"},"status":404}`)
}

type harness struct {
	dispatcher *tool.Dispatcher
	versions   *VersionCache
}

func newHarness(t *testing.T, mode Mode, clusters map[string]string) harness {
	t.Helper()
	configs := make([]ClusterConfig, 0, len(clusters))
	for _, name := range []string{"default", "prod", "staging"} {
		if url, ok := clusters[name]; ok {
			configs = append(configs, ClusterConfig{Name: name, URL: url, NoAuth: true})
		}
	}
	set, err := NewClusterSet(mode, configs)
	if err != nil {
		t.Fatalf("NewClusterSet() error = %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	catalog := tool.NewCatalog()
	if err := catalog.RegisterAll(Descriptors(set)...); err != nil {
		t.Fatalf("RegisterAll() error = %v", err)
	}
	versions := NewVersionCache(logger)
	dispatcher, err := tool.NewDispatcher(tool.DispatcherConfig{
		Catalog: catalog,
		Allow:   tool.VersionPredicate,
		Resolve: set.Resolver(versions),
		Logger:  logger,
	})
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}
	return harness{dispatcher: dispatcher, versions: versions}
}

func mustSucceed(t *testing.T, inv tool.Invocation) string {
	t.Helper()
	if !inv.OK() {
		t.Fatalf("Dispatch(%s) error = %v", inv.Tool, inv.Err)
	}
	return inv.Result.Text
}

func TestDescriptorsRegisterEighteenTools(t *testing.T) {
	set, err := NewClusterSet(ModeSingle, []ClusterConfig{{Name: "default", URL: "http://localhost:9200"}})
	if err != nil {
		t.Fatalf("NewClusterSet() error = %v", err)
	}
	catalog := tool.NewCatalog()
	if err := catalog.RegisterAll(Descriptors(set)...); err != nil {
		t.Fatalf("RegisterAll() error = %v", err)
	}
	if catalog.Len() != 18 {
		t.Fatalf("Len() = %d, want 18", catalog.Len())
	}
	for _, name := range []string{"list_indices", "search_index_tool", "get_query_insights", "msearch", "explain_document"} {
		if _, err := catalog.Lookup(name); err != nil {
			t.Fatalf("Lookup(%s) error = %v", name, err)
		}
	}
	desc, _ := catalog.Lookup("cluster_health")
	if desc.Origin != tool.OriginDynamic {
		t.Fatalf("cluster_health origin = %q, want dynamic", desc.Origin)
	}
	if _, ok := desc.Param(ClusterParam); ok {
		t.Fatal("single mode descriptors should not declare the cluster argument")
	}
}

func TestListIndices(t *testing.T) {
	srv := newFakeCluster(t, "2.19.1", map[string]string{
		"GET /_cat/indices": `[{"index":"logs","docs.count":"3"},{"index":"metrics","docs.count":"7"}]`,
		"GET /logs":         `{"logs":{"mappings":{}}}`,
	})
	h := newHarness(t, ModeSingle, map[string]string{"default": srv.URL})
	ctx := context.Background()

	names := mustSucceed(t, h.dispatcher.Dispatch(ctx, "list_indices", map[string]any{"include_detail": "false"}))
	if names != "Indices:\n[\n  \"logs\",\n  \"metrics\"\n]" {
		t.Fatalf("names = %q", names)
	}

	detail := mustSucceed(t, h.dispatcher.Dispatch(ctx, "list_indices", nil))
	if !strings.HasPrefix(detail, "All indices information:\n[") || !strings.Contains(detail, `"docs.count": "7"`) {
		t.Fatalf("detail = %q", detail)
	}

	one := mustSucceed(t, h.dispatcher.Dispatch(ctx, "list_indices", map[string]any{"index": "logs"}))
	if !strings.HasPrefix(one, "Index information for logs:\n") {
		t.Fatalf("single index = %q", one)
	}
}

func TestGetShardsTable(t *testing.T) {
	srv := newFakeCluster(t, "2.19.1", map[string]string{
		"GET /_cat/shards/logs": `[{"index":"logs","shard":"0","prirep":"p","state":"STARTED","docs":"3","store":"5kb","ip":"10.0.0.1","node":"n1"}]`,
	})
	h := newHarness(t, ModeSingle, map[string]string{"default": srv.URL})

	got := mustSucceed(t, h.dispatcher.Dispatch(context.Background(), "get_shards", map[string]any{"index": "logs"}))
	want := "index | shard | prirep | state | docs | store | ip | node\nlogs | 0 | p | STARTED | 3 | 5kb | 10.0.0.1 | n1\n"
	if got != want {
		t.Fatalf("get_shards = %q, want %q", got, want)
	}
}

func TestClusterStateTitleAndPath(t *testing.T) {
	srv := newFakeCluster(t, "2.19.1", map[string]string{
		"GET /_cluster/state/metadata/logs": `{"metadata":{}}`,
		"GET /_cluster/state/_all/logs":     `{"all":true}`,
	})
	h := newHarness(t, ModeSingle, map[string]string{"default": srv.URL})
	ctx := context.Background()

	got := mustSucceed(t, h.dispatcher.Dispatch(ctx, "get_cluster_state", map[string]any{"metric": "metadata", "index": "logs"}))
	if !strings.HasPrefix(got, "Cluster state information for metric: metadata, filtered by index: logs:\n") {
		t.Fatalf("get_cluster_state = %q", got)
	}
	got = mustSucceed(t, h.dispatcher.Dispatch(ctx, "get_cluster_state", map[string]any{"index": "logs"}))
	if !strings.Contains(got, `"all": true`) {
		t.Fatalf("get_cluster_state(index only) = %q", got)
	}
}

func TestMsearchSendsNDJSON(t *testing.T) {
	var fc *fakeCluster
	fc = &fakeCluster{t: t, version: "2.19.1", routes: map[string]string{
		"POST /logs/_msearch": `{"responses":[]}`,
	}}
	srv := httptest.NewServer(fc)
	defer srv.Close()
	h := newHarness(t, ModeSingle, map[string]string{"default": srv.URL})

	body := []any{map[string]any{}, map[string]any{"query": map[string]any{"match_all": map[string]any{}}}}
	got := mustSucceed(t, h.dispatcher.Dispatch(context.Background(), "msearch", map[string]any{"index": "logs", "body": body}))
	if !strings.HasPrefix(got, "Multi-search results:\n") {
		t.Fatalf("msearch = %q", got)
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()
	last := fc.requests[len(fc.requests)-1]
	if last.ContentType != contentTypeNDJSON {
		t.Fatalf("content type = %q, want %q", last.ContentType, contentTypeNDJSON)
	}
	if last.Body != "{}\n{\"query\":{\"match_all\":{}}}\n" {
		t.Fatalf("body = %q", last.Body)
	}
}

func TestLongRunningTasksDefaultLimit(t *testing.T) {
	tasks := make([]string, 0, 12)
	for i := 1; i <= 12; i++ {
		tasks = append(tasks, `{"action":"t`+string(rune('a'+i))+`","running_time_ns":"`+strings.Repeat("1", i)+`"}`)
	}
	srv := newFakeCluster(t, "2.19.1", map[string]string{
		"GET /_cat/tasks": "[" + strings.Join(tasks, ",") + "]",
	})
	h := newHarness(t, ModeSingle, map[string]string{"default": srv.URL})

	got := mustSucceed(t, h.dispatcher.Dispatch(context.Background(), "get_long_running_tasks", nil))
	if strings.Count(got, `"action"`) != 10 {
		t.Fatalf("tasks returned = %d, want default limit 10: %s", strings.Count(got, `"action"`), got)
	}
	if strings.Contains(got, `"tb"`) || strings.Contains(got, `"tc"`) {
		t.Fatalf("shortest tasks should be dropped: %s", got)
	}
}

func TestQueryInsightsNeedsVersionThree(t *testing.T) {
	oldSrv := newFakeCluster(t, "2.19.1", map[string]string{"GET /_insights/top_queries": `{"top_queries":[]}`})
	old := newHarness(t, ModeSingle, map[string]string{"default": oldSrv.URL})

	inv := old.dispatcher.Dispatch(context.Background(), "get_query_insights", nil)
	if tool.KindOf(inv.Err) != tool.KindToolNotSupported {
		t.Fatalf("kind = %q, want ToolNotSupportedError", tool.KindOf(inv.Err))
	}
	want := "Tool 'get_query_insights' is not supported for this OpenSearch version (current version: 2.19.1). Supported version: 3.0.0 or later."
	if inv.Err.Message != want {
		t.Fatalf("message = %q, want %q", inv.Err.Message, want)
	}
	for _, schema := range old.dispatcher.ListAvailable(context.Background()) {
		if schema.Name == "get_query_insights" {
			t.Fatal("get_query_insights listed for a 2.x cluster")
		}
	}

	newSrv := newFakeCluster(t, "3.1.0", map[string]string{"GET /_insights/top_queries": `{"top_queries":[]}`})
	current := newHarness(t, ModeSingle, map[string]string{"default": newSrv.URL})
	got := mustSucceed(t, current.dispatcher.Dispatch(context.Background(), "get_query_insights", nil))
	if !strings.HasPrefix(got, "Query insights:\n") {
		t.Fatalf("get_query_insights = %q", got)
	}
}

func TestUpstreamErrorBecomesHandlerFault(t *testing.T) {
	srv := newFakeCluster(t, "2.19.1", nil)
	h := newHarness(t, ModeSingle, map[string]string{"default": srv.URL})

	inv := h.dispatcher.Dispatch(context.Background(), "get_index_mapping", map[string]any{"index": "missing"})
	if tool.KindOf(inv.Err) != tool.KindHandlerFault {
		t.Fatalf("kind = %q, want HandlerFault", tool.KindOf(inv.Err))
	}
	if !strings.Contains(inv.Err.Message, "Error executing tool get_index_mapping") || !strings.Contains(inv.Err.Message, "status 404") {
		t.Fatalf("message = %q", inv.Err.Message)
	}
}

func TestMultiModeRoutesByClusterName(t *testing.T) {
	prod := newFakeCluster(t, "2.19.1", map[string]string{"GET /_cluster/health": `{"cluster_name":"prod"}`})
	staging := newFakeCluster(t, "3.0.0", map[string]string{"GET /_cluster/health": `{"cluster_name":"staging"}`})
	h := newHarness(t, ModeMulti, map[string]string{"prod": prod.URL, "staging": staging.URL})
	ctx := context.Background()

	got := mustSucceed(t, h.dispatcher.Dispatch(ctx, "cluster_health", map[string]any{ClusterParam: "staging"}))
	if !strings.Contains(got, `"cluster_name": "staging"`) {
		t.Fatalf("cluster_health(staging) = %q", got)
	}

	inv := h.dispatcher.Dispatch(ctx, "cluster_health", nil)
	if tool.KindOf(inv.Err) != tool.KindMissingArgument {
		t.Fatalf("missing cluster kind = %q, want MissingArgumentError", tool.KindOf(inv.Err))
	}

	inv = h.dispatcher.Dispatch(ctx, "cluster_health", map[string]any{ClusterParam: "qa"})
	if tool.KindOf(inv.Err) != tool.KindInvalidArgument || !strings.Contains(inv.Err.Message, "prod, staging") {
		t.Fatalf("unknown cluster = %+v", inv.Err)
	}

	inv = h.dispatcher.Dispatch(ctx, "get_query_insights", map[string]any{ClusterParam: "prod"})
	if tool.KindOf(inv.Err) != tool.KindToolNotSupported {
		t.Fatalf("insights on prod kind = %q, want ToolNotSupportedError", tool.KindOf(inv.Err))
	}

	names := make(map[string]bool)
	for _, schema := range h.dispatcher.ListAvailable(ctx) {
		names[schema.Name] = true
	}
	if !names["get_query_insights"] {
		t.Fatal("multi-mode discovery has no cluster and should list version-gated tools")
	}
}

func TestVersionCacheRefresh(t *testing.T) {
	srv := newFakeCluster(t, "2.11.0", nil)
	set, err := NewClusterSet(ModeSingle, []ClusterConfig{{Name: "default", URL: srv.URL, NoAuth: true}})
	if err != nil {
		t.Fatalf("NewClusterSet() error = %v", err)
	}
	cache := NewVersionCache(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if _, ok := cache.Cached("default"); ok {
		t.Fatal("empty cache reported a version")
	}
	if err := cache.Refresh(context.Background(), set.Clients()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if got, ok := cache.Cached("default"); !ok || got != "2.11.0" {
		t.Fatalf("Cached() = %q, %v; want 2.11.0", got, ok)
	}
}

func TestVersionCacheRefreshReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	set, err := NewClusterSet(ModeSingle, []ClusterConfig{{Name: "default", URL: srv.URL}})
	if err != nil {
		t.Fatalf("NewClusterSet() error = %v", err)
	}
	cache := NewVersionCache(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := cache.Refresh(context.Background(), set.Clients()); err == nil {
		t.Fatal("Refresh() error = nil, want non-nil")
	}
}

func TestNewClusterSetValidation(t *testing.T) {
	tests := []struct {
		name    string
		mode    Mode
		configs []ClusterConfig
	}{
		{name: "single without cluster", mode: ModeSingle},
		{name: "single with two", mode: ModeSingle, configs: []ClusterConfig{{Name: "a", URL: "http://a"}, {Name: "b", URL: "http://b"}}},
		{name: "multi empty", mode: ModeMulti},
		{name: "duplicate name", mode: ModeMulti, configs: []ClusterConfig{{Name: "a", URL: "http://a"}, {Name: "a", URL: "http://b"}}},
		{name: "empty name", mode: ModeMulti, configs: []ClusterConfig{{URL: "http://a"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewClusterSet(tt.mode, tt.configs); err == nil {
				t.Fatal("NewClusterSet() error = nil, want non-nil")
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeSingle, "single": ModeSingle, "MULTI": ModeMulti} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseMode("cluster"); err == nil {
		t.Fatal("ParseMode(cluster) error = nil, want non-nil")
	}
}
