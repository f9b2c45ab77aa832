package opensearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/petal-labs/opensearch-mcp/tool"
)

type handlers struct {
	clusters *ClusterSet
}

func catQuery() url.Values {
	return url.Values{"format": []string{"json"}}
}

func joinPath(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, segment := range segments {
		if clean := strings.Trim(strings.TrimSpace(segment), "/"); clean != "" {
			parts = append(parts, clean)
		}
	}
	return "/" + strings.Join(parts, "/")
}

func (h *handlers) get(ctx context.Context, args tool.Arguments, path string, query url.Values) ([]byte, error) {
	client, err := h.clusters.Client(args)
	if err != nil {
		return nil, err
	}
	return client.Get(ctx, path, query)
}

func (h *handlers) post(ctx context.Context, args tool.Arguments, path string, body any) ([]byte, error) {
	client, err := h.clusters.Client(args)
	if err != nil {
		return nil, err
	}
	return client.PostJSON(ctx, path, nil, body)
}

func (h *handlers) listIndices(ctx context.Context, args tool.Arguments) (any, error) {
	if index := args.String("index"); index != "" {
		body, err := h.get(ctx, args, joinPath(index), nil)
		if err != nil {
			return nil, err
		}
		return titled("Index information for "+index, body)
	}

	body, err := h.get(ctx, args, "/_cat/indices", catQuery())
	if err != nil {
		return nil, err
	}
	if !args.Bool("include_detail") {
		names, err := json.MarshalIndent(indexNames(body), "", "  ")
		if err != nil {
			return nil, err
		}
		return "Indices:\n" + string(names), nil
	}
	return titled("All indices information", body)
}

func (h *handlers) indexMapping(ctx context.Context, args tool.Arguments) (any, error) {
	index := args.String("index")
	body, err := h.get(ctx, args, joinPath(index, "_mapping"), nil)
	if err != nil {
		return nil, err
	}
	return titled("Mapping for "+index, body)
}

func (h *handlers) searchIndex(ctx context.Context, args tool.Arguments) (any, error) {
	index := args.String("index")
	body, err := h.post(ctx, args, joinPath(index, "_search"), args.Object("query"))
	if err != nil {
		return nil, err
	}
	return titled("Search results from "+index, body)
}

func (h *handlers) shards(ctx context.Context, args tool.Arguments) (any, error) {
	body, err := h.get(ctx, args, joinPath("_cat", "shards", args.String("index")), catQuery())
	if err != nil {
		return nil, err
	}
	return table(body, shardColumns)
}

func (h *handlers) clusterState(ctx context.Context, args tool.Arguments) (any, error) {
	metric := args.String("metric")
	index := args.String("index")
	path := joinPath("_cluster", "state", metric)
	if index != "" {
		if metric == "" {
			path = joinPath("_cluster", "state", "_all")
		}
		path = joinPath(path, index)
	}
	body, err := h.get(ctx, args, path, nil)
	if err != nil {
		return nil, err
	}

	title := "Cluster state information"
	if metric != "" {
		title += " for metric: " + metric
	}
	if index != "" {
		title += ", filtered by index: " + index
	}
	return titled(title, body)
}

func (h *handlers) segments(ctx context.Context, args tool.Arguments) (any, error) {
	body, err := h.get(ctx, args, joinPath("_cat", "segments", args.String("index")), catQuery())
	if err != nil {
		return nil, err
	}
	return table(body, segmentColumns)
}

func (h *handlers) catNodes(ctx context.Context, args tool.Arguments) (any, error) {
	query := catQuery()
	if metrics := args.String("metrics"); metrics != "" {
		query.Set("h", metrics)
	}
	body, err := h.get(ctx, args, "/_cat/nodes", query)
	if err != nil {
		return nil, err
	}
	return titled("Nodes information", body)
}

func (h *handlers) indexInfo(ctx context.Context, args tool.Arguments) (any, error) {
	index := args.String("index")
	body, err := h.get(ctx, args, joinPath(index), nil)
	if err != nil {
		return nil, err
	}
	return titled("Index information for "+index, body)
}

func (h *handlers) indexStats(ctx context.Context, args tool.Arguments) (any, error) {
	index := args.String("index")
	body, err := h.get(ctx, args, joinPath(index, "_stats", args.String("metric")), nil)
	if err != nil {
		return nil, err
	}
	return titled("Index statistics for "+index, body)
}

func (h *handlers) queryInsights(ctx context.Context, args tool.Arguments) (any, error) {
	body, err := h.get(ctx, args, "/_insights/top_queries", nil)
	if err != nil {
		return nil, err
	}
	return titled("Query insights", body)
}

func (h *handlers) hotThreads(ctx context.Context, args tool.Arguments) (any, error) {
	body, err := h.get(ctx, args, "/_nodes/hot_threads", nil)
	if err != nil {
		return nil, err
	}
	return "Hot threads information:\n" + string(body), nil
}

func (h *handlers) allocation(ctx context.Context, args tool.Arguments) (any, error) {
	body, err := h.get(ctx, args, "/_cat/allocation", catQuery())
	if err != nil {
		return nil, err
	}
	return titled("Allocation information", body)
}

func (h *handlers) longRunningTasks(ctx context.Context, args tool.Arguments) (any, error) {
	limit := args.Int("limit")
	if limit < 0 {
		return nil, tool.Errorf(tool.KindInvalidArgument, "Argument 'limit' must not be negative, got %d", limit)
	}
	query := catQuery()
	query.Set("detailed", "true")
	body, err := h.get(ctx, args, "/_cat/tasks", query)
	if err != nil {
		return nil, err
	}
	return titled("Long running tasks", longestTasks(body, int(limit)))
}

func (h *handlers) nodesDetail(ctx context.Context, args tool.Arguments) (any, error) {
	nodeID := args.String("node_id")
	metric := args.String("metric")
	if metric != "" && nodeID == "" {
		nodeID = "_all"
	}
	body, err := h.get(ctx, args, joinPath("_nodes", nodeID, metric), nil)
	if err != nil {
		return nil, err
	}
	return titled("Detailed nodes information", body)
}

func (h *handlers) clusterHealth(ctx context.Context, args tool.Arguments) (any, error) {
	body, err := h.get(ctx, args, joinPath("_cluster", "health", args.String("index")), nil)
	if err != nil {
		return nil, err
	}
	return titled("Cluster health", body)
}

func (h *handlers) countDocuments(ctx context.Context, args tool.Arguments) (any, error) {
	path := joinPath(args.String("index"), "_count")
	var (
		body []byte
		err  error
	)
	if query := args.Object("body"); len(query) > 0 {
		body, err = h.post(ctx, args, path, query)
	} else {
		body, err = h.get(ctx, args, path, nil)
	}
	if err != nil {
		return nil, err
	}
	return titled("Document count", body)
}

func (h *handlers) explainDocument(ctx context.Context, args tool.Arguments) (any, error) {
	id := args.String("id")
	body, err := h.post(ctx, args, joinPath(args.String("index"), "_explain", id), args.Object("body"))
	if err != nil {
		return nil, err
	}
	return titled(fmt.Sprintf("Explain result for document %s", id), body)
}

func (h *handlers) msearch(ctx context.Context, args tool.Arguments) (any, error) {
	ndjson, err := toNDJSON(args.Value("body"))
	if err != nil {
		return nil, tool.NewError(tool.KindTypeMismatch, err.Error(), err)
	}
	client, err := h.clusters.Client(args)
	if err != nil {
		return nil, err
	}
	body, err := client.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        joinPath(args.String("index"), "_msearch"),
		Body:        []byte(ndjson),
		ContentType: contentTypeNDJSON,
	})
	if err != nil {
		return nil, err
	}
	return titled("Multi-search results", body)
}
