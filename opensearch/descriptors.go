package opensearch

import "github.com/petal-labs/opensearch-mcp/tool"

// Tool categories usable in tool_filters.
const (
	CategoryCore        = "core_tools"
	CategoryDiagnostics = "cluster_diagnostics"
)

// Descriptors returns the built-in tools bound to clusters, in registration
// order. In multi mode every tool gains a required cluster argument.
func Descriptors(clusters *ClusterSet) []tool.ToolDescriptor {
	h := &handlers{clusters: clusters}

	descs := []tool.ToolDescriptor{
		{
			ID:          "ListIndexTool",
			Name:        "list_indices",
			Description: "Lists all indices in OpenSearch with full information including docs.count, docs.deleted, store.size, etc. If an index parameter is provided, returns detailed information about that specific index.",
			Category:    CategoryCore,
			Params: []tool.Param{
				{Name: "index", Type: tool.TypeString, Description: "The name of the index to get detailed information for. If provided, returns detailed information about this specific index instead of listing all indices."},
				{Name: "include_detail", Type: tool.TypeBoolean, Default: true, Description: "Whether to include detailed information. When listing indices, false returns only a list of index names."},
			},
			Handler: h.listIndices,
		},
		{
			ID:          "IndexMappingTool",
			Name:        "get_index_mapping",
			Description: "Retrieves index mapping and setting information for an index in OpenSearch.",
			Category:    CategoryCore,
			Params: []tool.Param{
				{Name: "index", Type: tool.TypeString, Required: true, Description: "The name of the index to get mapping information for"},
			},
			Handler: h.indexMapping,
		},
		{
			ID:          "SearchIndexTool",
			Name:        "search_index_tool",
			Description: "Searches an index using a query written in query domain-specific language (DSL) in OpenSearch.",
			Category:    CategoryCore,
			Params: []tool.Param{
				{Name: "index", Type: tool.TypeString, Required: true, Description: "The name of the index to search in"},
				{Name: "query", Type: tool.TypeObject, Required: true, Description: "The search query in OpenSearch query DSL format"},
			},
			Handler: h.searchIndex,
		},
		{
			ID:          "GetShardsTool",
			Name:        "get_shards",
			Description: "Gets information about shards in OpenSearch.",
			Category:    CategoryCore,
			Params: []tool.Param{
				{Name: "index", Type: tool.TypeString, Required: true, Description: "The name of the index to get shard information for"},
			},
			Handler: h.shards,
		},
		{
			ID:          "GetClusterStateTool",
			Name:        "get_cluster_state",
			Description: "Gets the current state of the cluster including node information, index settings, and more. Can be filtered by specific metrics and indices.",
			Category:    CategoryDiagnostics,
			Params: []tool.Param{
				{Name: "metric", Type: tool.TypeString, Description: "Limit the information returned to the specified metrics. Options include: _all, blocks, metadata, nodes, routing_table, routing_nodes, master_node, version"},
				{Name: "index", Type: tool.TypeString, Description: "Limit the information returned to the specified indices"},
			},
			Handler: h.clusterState,
		},
		{
			ID:          "GetSegmentsTool",
			Name:        "get_segments",
			Description: "Gets information about Lucene segments in indices, including memory usage, document counts, and segment sizes. Can be filtered by specific indices.",
			Category:    CategoryDiagnostics,
			Params: []tool.Param{
				{Name: "index", Type: tool.TypeString, Description: "Limit the information returned to the specified indices"},
			},
			Handler: h.segments,
		},
		{
			ID:          "CatNodesTool",
			Name:        "cat_nodes",
			Description: "Lists node-level information, including node roles and load metrics.",
			Category:    CategoryDiagnostics,
			Params: []tool.Param{
				{Name: "metrics", Type: tool.TypeString, Description: "A comma-separated list of metrics to display"},
			},
			Handler: h.catNodes,
		},
		{
			ID:          "GetIndexInfoTool",
			Name:        "get_index_info",
			Description: "Gets detailed information about an index including mappings, settings, and aliases. Supports wildcards in index names.",
			Category:    CategoryDiagnostics,
			Params: []tool.Param{
				{Name: "index", Type: tool.TypeString, Required: true, Description: "The name of the index to get information for"},
			},
			Handler: h.indexInfo,
		},
		{
			ID:          "GetIndexStatsTool",
			Name:        "get_index_stats",
			Description: "Gets statistics about an index including document count, store size, indexing and search performance metrics.",
			Category:    CategoryDiagnostics,
			Params: []tool.Param{
				{Name: "index", Type: tool.TypeString, Required: true, Description: "The name of the index to get statistics for"},
				{Name: "metric", Type: tool.TypeString, Description: "Limit the statistics returned to the specified metrics"},
			},
			Handler: h.indexStats,
		},
		{
			ID:          "GetQueryInsightsTool",
			Name:        "get_query_insights",
			Description: "Gets query insights from the /_insights/top_queries endpoint, showing information about query patterns and performance.",
			Category:    CategoryDiagnostics,
			MinVersion:  "3.0.0",
			Handler:     h.queryInsights,
		},
		{
			ID:          "GetNodesHotThreadsTool",
			Name:        "get_nodes_hot_threads",
			Description: "Gets information about hot threads in the cluster nodes from the /_nodes/hot_threads endpoint.",
			Category:    CategoryDiagnostics,
			Handler:     h.hotThreads,
		},
		{
			ID:          "GetAllocationTool",
			Name:        "get_allocation",
			Description: "Gets information about shard allocation across nodes in the cluster from the /_cat/allocation endpoint.",
			Category:    CategoryDiagnostics,
			Handler:     h.allocation,
		},
		{
			ID:          "GetLongRunningTasksTool",
			Name:        "get_long_running_tasks",
			Description: "Gets information about long-running tasks in the cluster, sorted by running time in descending order.",
			Category:    CategoryDiagnostics,
			Params: []tool.Param{
				{Name: "limit", Type: tool.TypeInteger, Default: 10, Description: "The maximum number of tasks to return"},
			},
			Handler: h.longRunningTasks,
		},
		{
			ID:          "GetNodesTool",
			Name:        "get_nodes_detail",
			Description: "Gets detailed information about nodes in the OpenSearch cluster, including host system details, JVM info, node settings, thread pools and installed plugins.",
			Category:    CategoryDiagnostics,
			Params: []tool.Param{
				{Name: "node_id", Type: tool.TypeString, Description: "A comma-separated list of node IDs or names to limit the returned information"},
				{Name: "metric", Type: tool.TypeString, Description: "Limit the information returned to the specified metrics"},
			},
			Handler: h.nodesDetail,
		},
		{
			ID:          "ClusterHealthTool",
			Name:        "cluster_health",
			Description: "Returns basic information about the health of the cluster.",
			Category:    CategoryCore,
			Origin:      tool.OriginDynamic,
			Params: []tool.Param{
				{Name: "index", Type: tool.TypeString, Description: "Limit health reporting to a specific index"},
			},
			Handler: h.clusterHealth,
		},
		{
			ID:          "CountTool",
			Name:        "count_documents",
			Description: "Returns number of documents matching a query.",
			Category:    CategoryCore,
			Origin:      tool.OriginDynamic,
			Params: []tool.Param{
				{Name: "index", Type: tool.TypeString, Description: "The name of the index to count documents in"},
				{Name: "body", Type: tool.TypeObject, Description: "Query in JSON format to filter documents"},
			},
			Handler: h.countDocuments,
		},
		{
			ID:          "ExplainTool",
			Name:        "explain_document",
			Description: "Returns information about why a specific document matches (or doesn't match) a query.",
			Category:    CategoryCore,
			Origin:      tool.OriginDynamic,
			Params: []tool.Param{
				{Name: "index", Type: tool.TypeString, Required: true, Description: "The name of the index to retrieve the document from"},
				{Name: "id", Type: tool.TypeString, Required: true, Description: "The document ID to explain"},
				{Name: "body", Type: tool.TypeObject, Required: true, Description: "Query in JSON format to explain against the document"},
			},
			Handler: h.explainDocument,
		},
		{
			ID:          "MsearchTool",
			Name:        "msearch",
			Description: "Allows to execute several search operations in one request.",
			Category:    CategoryCore,
			Origin:      tool.OriginDynamic,
			Params: []tool.Param{
				{Name: "index", Type: tool.TypeString, Description: "Default index to search in"},
				{Name: "body", Type: tool.TypeAny, Required: true, Description: "Multi-search request body in NDJSON format, or an array of header and query objects"},
			},
			Handler: h.msearch,
		},
	}

	for i := range descs {
		if descs[i].Origin == "" {
			descs[i].Origin = tool.OriginStatic
		}
		if clusters.Mode() == ModeMulti {
			clusterParam := tool.Param{
				Name:        ClusterParam,
				Type:        tool.TypeString,
				Required:    true,
				Description: "The name of the OpenSearch cluster",
			}
			descs[i].Params = append([]tool.Param{clusterParam}, descs[i].Params...)
		}
	}
	return descs
}
