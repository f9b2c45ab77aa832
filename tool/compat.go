package tool

import (
	"fmt"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// Backend is the configuration snapshot a compatibility decision is made
// against. An empty Version means the backend version is unknown.
type Backend struct {
	Cluster string
	Version string
}

// Decision is the outcome of a compatibility predicate.
type Decision struct {
	Allowed bool
	Reason  string
}

// Allow is the accepting decision.
var Allow = Decision{Allowed: true}

// Deny returns a rejecting decision with a formatted reason.
func Deny(format string, args ...any) Decision {
	return Decision{Reason: fmt.Sprintf(format, args...)}
}

// Predicate decides whether a tool may be exposed and invoked for a backend.
// Predicates must be pure: same inputs, same decision.
type Predicate func(desc ToolDescriptor, backend Backend) Decision

// AllowAll accepts every tool.
func AllowAll(ToolDescriptor, Backend) Decision {
	return Allow
}

// All combines predicates; the first rejection wins.
func All(preds ...Predicate) Predicate {
	return func(desc ToolDescriptor, backend Backend) Decision {
		for _, pred := range preds {
			if pred == nil {
				continue
			}
			if d := pred(desc, backend); !d.Allowed {
				return d
			}
		}
		return Allow
	}
}

// VersionPredicate rejects tools whose MinVersion/MaxVersion range excludes
// the backend version. Unknown or unparsable backend versions are allowed.
func VersionPredicate(desc ToolDescriptor, backend Backend) Decision {
	if strings.TrimSpace(backend.Version) == "" {
		return Allow
	}
	if desc.MinVersion == "" && desc.MaxVersion == "" {
		return Allow
	}
	current, err := goversion.NewVersion(backend.Version)
	if err != nil {
		return Allow
	}

	if desc.MinVersion != "" {
		if lower, err := goversion.NewVersion(desc.MinVersion); err == nil && current.LessThan(lower) {
			return Deny("%s", unsupportedVersionMessage(desc, backend.Version))
		}
	}
	if desc.MaxVersion != "" {
		if upper, err := goversion.NewVersion(desc.MaxVersion); err == nil && current.GreaterThan(upper) {
			return Deny("%s", unsupportedVersionMessage(desc, backend.Version))
		}
	}
	return Allow
}

func unsupportedVersionMessage(desc ToolDescriptor, current string) string {
	var supported string
	switch {
	case desc.MinVersion != "" && desc.MaxVersion != "":
		supported = desc.MinVersion + " to " + desc.MaxVersion
	case desc.MinVersion != "":
		supported = desc.MinVersion + " or later"
	case desc.MaxVersion != "":
		supported = "up to " + desc.MaxVersion
	}
	msg := fmt.Sprintf("Tool '%s' is not supported for this OpenSearch version (current version: %s).", desc.Name, current)
	if supported != "" {
		msg += " Supported version: " + supported + "."
	}
	return msg
}

// FilterRules selects which tools are enabled. Names match a tool ID or its
// exposed name case-insensitively; categories match the descriptor category
// or a user-defined category listing tool IDs.
type FilterRules struct {
	EnabledTools       []string
	DisabledTools      []string
	EnabledCategories  []string
	DisabledCategories []string
	Categories         map[string][]string
}

// IsZero reports whether no rule is configured.
func (r FilterRules) IsZero() bool {
	return len(r.EnabledTools) == 0 && len(r.DisabledTools) == 0 &&
		len(r.EnabledCategories) == 0 && len(r.DisabledCategories) == 0
}

// FilterPredicate builds a backend-independent enablement predicate.
// Disabled rules win over enabled ones; once any enable rule exists only
// explicitly enabled tools pass.
func FilterPredicate(rules FilterRules) Predicate {
	enabledTools := lowerSet(rules.EnabledTools)
	disabledTools := lowerSet(rules.DisabledTools)
	enabledCats := lowerSet(rules.EnabledCategories)
	disabledCats := lowerSet(rules.DisabledCategories)

	membership := make(map[string][]string)
	for category, ids := range rules.Categories {
		for _, id := range ids {
			key := strings.ToLower(strings.TrimSpace(id))
			membership[key] = append(membership[key], strings.ToLower(strings.TrimSpace(category)))
		}
	}

	return func(desc ToolDescriptor, _ Backend) Decision {
		names := []string{strings.ToLower(desc.ID), strings.ToLower(desc.Name)}
		categories := []string{strings.ToLower(desc.Category)}
		categories = append(categories, membership[strings.ToLower(desc.ID)]...)

		if hasAny(disabledTools, names) {
			return Deny("Tool '%s' is disabled by configuration.", desc.Name)
		}
		if hasAny(disabledCats, categories) {
			return Deny("Tool '%s' is disabled by its category configuration.", desc.Name)
		}
		if len(enabledTools) == 0 && len(enabledCats) == 0 {
			return Allow
		}
		if hasAny(enabledTools, names) || hasAny(enabledCats, categories) {
			return Allow
		}
		return Deny("Tool '%s' is not enabled by configuration.", desc.Name)
	}
}

func lowerSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		clean := strings.ToLower(strings.TrimSpace(v))
		if clean != "" {
			out[clean] = struct{}{}
		}
	}
	return out
}

func hasAny(set map[string]struct{}, keys []string) bool {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, ok := set[key]; ok {
			return true
		}
	}
	return false
}
