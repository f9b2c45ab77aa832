package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/petal-labs/opensearch-mcp/history"
	"github.com/petal-labs/opensearch-mcp/tool"
)

func newTestRoot() *cobra.Command {
	root := &cobra.Command{
		Use:          "opensearch-mcp",
		SilenceUsage: true,
	}
	root.PersistentFlags().Bool("verbose", false, "")
	root.PersistentFlags().Bool("quiet", true, "")
	root.AddCommand(NewServeCmd())
	root.AddCommand(NewToolsCmd())
	root.AddCommand(NewHistoryCmd())
	return root
}

// executeCommand runs a cobra command with the given args and captures stdout/stderr.
func executeCommand(root *cobra.Command, args ...string) (stdout, stderr string, err error) {
	var outBuf, errBuf bytes.Buffer
	root.SetOut(&outBuf)
	root.SetErr(&errBuf)
	root.SetArgs(args)
	err = root.Execute()
	return outBuf.String(), errBuf.String(), err
}

// writeTestFile creates a temporary file with the given content and returns its path.
func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// fakeOpenSearch serves the version document and a fixed index listing.
func fakeOpenSearch(t *testing.T, version string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			_, _ = io.WriteString(w, `{"version":{"number":"`+version+`"}}`)
		case "/_cat/indices":
			_, _ = io.WriteString(w, `[{"index":"logs-1","health":"green"},{"index":"metrics","health":"yellow"}]`)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":{"reason":"no such index"},"status":404}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// isolateEnv points config discovery and the single-mode environment at a
// fake cluster.
func isolateEnv(t *testing.T, url string) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("OPENSEARCH_URL", url)
	t.Setenv("OPENSEARCH_NO_AUTH", "true")
	t.Setenv("OPENSEARCH_USERNAME", "")
	t.Setenv("OPENSEARCH_PASSWORD", "")
	t.Setenv("OPENSEARCH_SSL_VERIFY", "")
	t.Setenv("OPENSEARCH_TIMEOUT", "")
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("error = %v, want *ExitError", err)
	}
	return exitErr.Code
}

func TestToolsListJSONAppliesVersionGate(t *testing.T) {
	isolateEnv(t, fakeOpenSearch(t, "2.11.0").URL)

	stdout, _, err := executeCommand(newTestRoot(), "tools", "list", "--json", "--env-file", "")
	if err != nil {
		t.Fatalf("tools list error = %v", err)
	}
	tools := gjson.Parse(stdout).Array()
	if len(tools) != 17 {
		t.Fatalf("tools = %d, want 17 (output %s)", len(tools), stdout)
	}
	for _, item := range tools {
		if item.Get("name").String() == "get_query_insights" {
			t.Fatal("get_query_insights listed for a 2.x cluster")
		}
		if item.Get("inputSchema.properties.opensearch_cluster_name").Exists() {
			t.Fatalf("%s exposes the cluster argument in single mode", item.Get("name"))
		}
	}
}

func TestToolsListAppliesConfigFile(t *testing.T) {
	isolateEnv(t, fakeOpenSearch(t, "3.1.0").URL)
	configPath := writeTestFile(t, "opensearch-mcp.yaml", `
tools:
  ListIndexTool:
    display_name: Index_Lister
tool_filters:
  disabled_tools:
    - MsearchTool
`)

	stdout, _, err := executeCommand(newTestRoot(), "tools", "list", "--config", configPath, "--env-file", "")
	if err != nil {
		t.Fatalf("tools list error = %v", err)
	}
	if !strings.Contains(stdout, "NAME") || !strings.Contains(stdout, "Index_Lister") {
		t.Fatalf("tools list output = %q, want header and renamed tool", stdout)
	}
	if strings.Contains(stdout, "msearch") {
		t.Fatalf("tools list output = %q, want msearch filtered", stdout)
	}
	if !strings.Contains(stdout, "get_query_insights") || !strings.Contains(stdout, ">=3.0.0") {
		t.Fatalf("tools list output = %q, want get_query_insights on 3.x", stdout)
	}
}

func TestToolsListMultiMode(t *testing.T) {
	isolateEnv(t, "")
	url := fakeOpenSearch(t, "2.11.0").URL
	configPath := writeTestFile(t, "opensearch-mcp.yaml", `
clusters:
  local:
    opensearch_url: `+url+`
    opensearch_no_auth: true
`)

	stdout, _, err := executeCommand(newTestRoot(), "tools", "list", "--json", "--mode", "multi", "--config", configPath, "--env-file", "")
	if err != nil {
		t.Fatalf("tools list error = %v", err)
	}
	tools := gjson.Parse(stdout).Array()
	if len(tools) != 18 {
		t.Fatalf("tools = %d, want 18 (discovery has no cluster in multi mode)", len(tools))
	}
	required := tools[0].Get("inputSchema.required").Array()
	if len(required) == 0 || required[0].String() != "opensearch_cluster_name" {
		t.Fatalf("required = %v, want opensearch_cluster_name first", required)
	}
}

func TestToolsCall(t *testing.T) {
	isolateEnv(t, fakeOpenSearch(t, "2.11.0").URL)

	stdout, _, err := executeCommand(newTestRoot(), "tools", "call", "list_indices",
		"--args", `{"include_detail":false}`, "--env-file", "")
	if err != nil {
		t.Fatalf("tools call error = %v", err)
	}
	result := gjson.Get(stdout, "result").String()
	if !strings.HasPrefix(result, "Indices:") || !strings.Contains(result, "logs-1") {
		t.Fatalf("result = %q, want index names", result)
	}
}

func TestToolsCallFailures(t *testing.T) {
	isolateEnv(t, fakeOpenSearch(t, "2.11.0").URL)

	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantKind tool.Kind
	}{
		{
			name:     "unknown argument",
			args:     []string{"tools", "call", "list_indices", "--args", `{"indx":"logs"}`},
			wantCode: exitToolError,
			wantKind: tool.KindInvalidArgument,
		},
		{
			name:     "unknown tool",
			args:     []string{"tools", "call", "drop_everything"},
			wantCode: exitToolError,
			wantKind: tool.KindUnknownTool,
		},
		{
			name:     "version gated",
			args:     []string{"tools", "call", "get_query_insights"},
			wantCode: exitToolError,
			wantKind: tool.KindToolNotSupported,
		},
		{
			name:     "upstream error",
			args:     []string{"tools", "call", "get_index_mapping", "--args", `{"index":"missing"}`},
			wantCode: exitToolError,
			wantKind: tool.KindHandlerFault,
		},
		{
			name:     "malformed args",
			args:     []string{"tools", "call", "list_indices", "--args", `{not json`},
			wantCode: exitInputParse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := executeCommand(newTestRoot(), append(tt.args, "--env-file", "")...)
			if code := exitCode(t, err); code != tt.wantCode {
				t.Fatalf("exit code = %d, want %d", code, tt.wantCode)
			}
			if tt.wantKind == "" {
				return
			}
			if got := gjson.Get(stdout, "error.kind").String(); got != string(tt.wantKind) {
				t.Fatalf("error.kind = %q, want %q (output %s)", got, tt.wantKind, stdout)
			}
		})
	}
}

func TestRuntimeConfigErrors(t *testing.T) {
	isolateEnv(t, "")

	_, _, err := executeCommand(newTestRoot(), "tools", "list", "--env-file", "")
	if code := exitCode(t, err); code != exitConfig {
		t.Fatalf("missing OPENSEARCH_URL exit code = %d, want %d", code, exitConfig)
	}

	_, _, err = executeCommand(newTestRoot(), "tools", "list", "--mode", "cluster", "--env-file", "")
	if code := exitCode(t, err); code != exitValidation {
		t.Fatalf("bad mode exit code = %d, want %d", code, exitValidation)
	}

	emptyConfig := writeTestFile(t, "opensearch-mcp.yaml", "tools: {}\n")
	_, _, err = executeCommand(newTestRoot(), "tools", "list", "--mode", "multi", "--config", emptyConfig, "--env-file", "")
	if code := exitCode(t, err); code != exitCluster {
		t.Fatalf("multi mode without clusters exit code = %d, want %d", code, exitCluster)
	}
}

func TestServeRejectsUnknownTransport(t *testing.T) {
	_, _, err := executeCommand(newTestRoot(), "serve", "--transport", "carrier-pigeon")
	if code := exitCode(t, err); code != exitValidation {
		t.Fatalf("exit code = %d, want %d", code, exitValidation)
	}
}

func TestHistoryCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	store, err := history.Open(dbPath)
	if err != nil {
		t.Fatalf("history.Open() error = %v", err)
	}
	now := time.Now().UTC()
	records := []history.Record{
		{ID: "1", Tool: "list_indices", Cluster: "default", Success: true, DurationMS: 5, CreatedAt: now.Add(-time.Minute)},
		{ID: "2", Tool: "get_query_insights", Kind: tool.KindToolNotSupported, CreatedAt: now},
	}
	for _, rec := range records {
		if err := store.Insert(context.Background(), rec); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	stdout, _, err := executeCommand(newTestRoot(), "history", "--history-db", dbPath)
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	if !strings.Contains(stdout, "TOOL") || !strings.Contains(stdout, "ToolNotSupportedError") {
		t.Fatalf("history output = %q", stdout)
	}
	if strings.Index(stdout, "get_query_insights") > strings.Index(stdout, "list_indices") {
		t.Fatalf("history output = %q, want newest first", stdout)
	}

	stdout, _, err = executeCommand(newTestRoot(), "history", "--history-db", dbPath, "--json", "--limit", "1")
	if err != nil {
		t.Fatalf("history --json error = %v", err)
	}
	parsed := gjson.Parse(stdout).Array()
	if len(parsed) != 1 || parsed[0].Get("tool").String() != "get_query_insights" {
		t.Fatalf("history --json = %s", stdout)
	}
}

func TestParseKeyValues(t *testing.T) {
	got, err := parseKeyValues([]string{
		"tool.ListIndexTool.display_name=Lister",
		"tool.SearchIndexTool.description=a=b",
		"tool.ListIndexTool.display_name=Final",
	})
	if err != nil {
		t.Fatalf("parseKeyValues() error = %v", err)
	}
	if got["tool.ListIndexTool.display_name"] != "Final" || got["tool.SearchIndexTool.description"] != "a=b" {
		t.Fatalf("parseKeyValues() = %v", got)
	}
	if _, err := parseKeyValues([]string{"no-separator"}); err == nil {
		t.Fatal("parseKeyValues() error = nil, want non-nil")
	}
}
