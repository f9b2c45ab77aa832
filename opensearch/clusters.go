package opensearch

import (
	"context"
	"fmt"
	"strings"

	"github.com/petal-labs/opensearch-mcp/tool"
)

// Mode selects how a call picks its cluster.
type Mode string

const (
	// ModeSingle serves one cluster configured from the environment.
	ModeSingle Mode = "single"
	// ModeMulti serves the clusters of the config file; every call names one.
	ModeMulti Mode = "multi"
)

// ClusterParam is the argument naming the target cluster in multi mode.
const ClusterParam = "opensearch_cluster_name"

// ParseMode validates a mode string.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case "", ModeSingle:
		return ModeSingle, nil
	case ModeMulti:
		return ModeMulti, nil
	default:
		return "", fmt.Errorf("opensearch: unsupported mode %q (want single or multi)", value)
	}
}

// ClusterSet holds the clients a server can reach.
type ClusterSet struct {
	mode    Mode
	order   []string
	clients map[string]*Client
}

// NewClusterSet builds clients for every config. Single mode requires exactly
// one cluster.
func NewClusterSet(mode Mode, configs []ClusterConfig) (*ClusterSet, error) {
	if mode == ModeSingle && len(configs) != 1 {
		return nil, fmt.Errorf("opensearch: single mode needs exactly one cluster, got %d", len(configs))
	}
	if mode == ModeMulti && len(configs) == 0 {
		return nil, fmt.Errorf("opensearch: multi mode needs at least one cluster in the config file")
	}

	set := &ClusterSet{
		mode:    mode,
		order:   make([]string, 0, len(configs)),
		clients: make(map[string]*Client, len(configs)),
	}
	for _, cfg := range configs {
		name := strings.TrimSpace(cfg.Name)
		if name == "" {
			return nil, fmt.Errorf("opensearch: cluster name is required")
		}
		if _, dup := set.clients[name]; dup {
			return nil, fmt.Errorf("opensearch: cluster %q declared twice", name)
		}
		cfg.Name = name
		client, err := NewClient(cfg)
		if err != nil {
			return nil, err
		}
		set.order = append(set.order, name)
		set.clients[name] = client
	}
	return set, nil
}

// Mode returns the set's mode.
func (s *ClusterSet) Mode() Mode {
	return s.mode
}

// Clients returns every client in declaration order.
func (s *ClusterSet) Clients() []*Client {
	out := make([]*Client, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.clients[name])
	}
	return out
}

// Client picks the client for a validated argument set.
func (s *ClusterSet) Client(args tool.Arguments) (*Client, error) {
	if s.mode == ModeSingle {
		return s.clients[s.order[0]], nil
	}
	name := strings.TrimSpace(args.String(ClusterParam))
	if name == "" {
		return nil, tool.Errorf(tool.KindMissingArgument, "Missing required argument '%s'", ClusterParam)
	}
	client, ok := s.clients[name]
	if !ok {
		return nil, tool.Errorf(tool.KindInvalidArgument,
			"Unknown OpenSearch cluster '%s'; configured clusters: %s", name, strings.Join(s.order, ", "))
	}
	return client, nil
}

// Resolver maps a call to its cluster and cached version. Discovery in
// multi mode has no cluster and resolves to an unknown backend.
func (s *ClusterSet) Resolver(versions *VersionCache) tool.BackendResolver {
	return func(ctx context.Context, args tool.Arguments) (tool.Backend, error) {
		if args == nil && s.mode == ModeMulti {
			return tool.Backend{}, nil
		}
		client, err := s.Client(args)
		if err != nil {
			return tool.Backend{}, err
		}
		backend := tool.Backend{Cluster: client.Name()}
		if versions == nil {
			return backend, nil
		}
		version, err := versions.Version(ctx, client)
		if err != nil {
			return backend, err
		}
		backend.Version = version
		return backend, nil
	}
}
