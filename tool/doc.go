// Package tool is the registration and dispatch core of the server.
//
// The package is split by concern:
//   - descriptor: tool and parameter declarations
//   - registry: the ordered, name-keyed Catalog
//   - validate/type_system: argument validation and coercion
//   - compat: enablement and version compatibility predicates
//   - dispatcher: the single fault boundary between protocol and handlers
//   - overrides: display name, description and argument customization
//
// Nothing here knows about OpenSearch or MCP framing; handlers and transports
// plug in from their own packages.
package tool
