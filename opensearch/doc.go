// Package opensearch implements the OpenSearch-backed tools: a REST client
// per cluster, the cluster set that resolves which client a call targets,
// a cluster version cache, and the handlers exposed through the tool catalog.
//
// Handlers return pre-formatted text ("<Title>:\n<indented JSON>", or a
// "|"-separated table for the _cat shard and segment listings). Upstream
// failures surface as *Error and become handler faults at dispatch.
package opensearch
