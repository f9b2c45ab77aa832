package opensearch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

const missingField = "N/A"

var (
	shardColumns = []string{"index", "shard", "prirep", "state", "docs", "store", "ip", "node"}

	segmentColumns = []string{
		"index", "shard", "prirep", "segment", "generation", "docs.count", "docs.deleted",
		"size", "memory.bookkeeping", "memory.vectors", "memory.docvalues", "memory.terms", "version",
	}
)

// titled renders "<title>:\n<indented JSON>" preserving the response's key order.
func titled(title string, body []byte) (string, error) {
	indented, err := indentJSON(body)
	if err != nil {
		return "", err
	}
	return title + ":\n" + indented, nil
}

func indentJSON(body []byte) (string, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(body), "", "  "); err != nil {
		return "", fmt.Errorf("opensearch: response is not JSON: %w", err)
	}
	return buf.String(), nil
}

// table renders a _cat JSON array as a "|"-separated table with a header row.
func table(body []byte, columns []string) (string, error) {
	rows := gjson.ParseBytes(body)
	if !rows.IsArray() {
		return "", fmt.Errorf("opensearch: expected a JSON array, got %s", truncate(string(body), 120))
	}

	var b strings.Builder
	b.WriteString(strings.Join(columns, " | "))
	b.WriteString("\n")
	for _, row := range rows.Array() {
		fields := row.Map()
		cells := make([]string, 0, len(columns))
		for _, column := range columns {
			value, ok := fields[column]
			if !ok || value.Type == gjson.Null {
				cells = append(cells, missingField)
				continue
			}
			cells = append(cells, value.String())
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString("\n")
	}
	return b.String(), nil
}

// indexNames extracts the "index" column of a _cat/indices response.
func indexNames(body []byte) []string {
	names := make([]string, 0)
	for _, name := range gjson.GetBytes(body, "#.index").Array() {
		if name.Type == gjson.String {
			names = append(names, name.String())
		}
	}
	return names
}

// longestTasks keeps the limit longest-running tasks of a _cat/tasks
// response, longest first.
func longestTasks(body []byte, limit int) []byte {
	tasks := gjson.ParseBytes(body).Array()
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Get("running_time_ns").Int() > tasks[j].Get("running_time_ns").Int()
	})
	if limit >= 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}

	raw := make([]string, 0, len(tasks))
	for _, task := range tasks {
		raw = append(raw, task.Raw)
	}
	return []byte("[" + strings.Join(raw, ",") + "]")
}

// toNDJSON converts a multi-search body into newline-delimited JSON. Arrays,
// and strings holding a JSON array, become one line per element; any other
// string is passed through with a trailing newline.
func toNDJSON(body any) (string, error) {
	switch v := body.(type) {
	case []any:
		return joinLines(v)
	case string:
		var parsed any
		if err := json.Unmarshal([]byte(v), &parsed); err == nil {
			if items, ok := parsed.([]any); ok {
				return joinLines(items)
			}
		}
		if strings.HasSuffix(v, "\n") {
			return v, nil
		}
		return v + "\n", nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("opensearch: encode msearch body: %w", err)
		}
		return string(data) + "\n", nil
	}
}

func joinLines(items []any) (string, error) {
	var b strings.Builder
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return "", fmt.Errorf("opensearch: encode msearch line: %w", err)
		}
		b.Write(data)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
