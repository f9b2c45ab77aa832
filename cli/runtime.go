package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petal-labs/opensearch-mcp/config"
	"github.com/petal-labs/opensearch-mcp/opensearch"
	"github.com/petal-labs/opensearch-mcp/tool"
)

// addRuntimeFlags registers the flags every dispatcher-backed command shares.
func addRuntimeFlags(cmd *cobra.Command) {
	cmd.Flags().String("mode", string(opensearch.ModeSingle), "Cluster mode: single | multi")
	cmd.Flags().String("config", "", "Path to opensearch-mcp.yaml (default: ./opensearch-mcp.yaml, then ~/.opensearch-mcp/config.yaml)")
	cmd.Flags().String("env-file", ".env", "Dotenv file loaded before reading the environment")
	cmd.Flags().StringArray("tool-override", nil, "Tool customization tool.<ID>.<field>=<value> (repeatable)")
}

// appRuntime is the assembled dispatch stack.
type appRuntime struct {
	configPath string
	clusters   *opensearch.ClusterSet
	versions   *opensearch.VersionCache
	dispatcher *tool.Dispatcher
}

// buildRuntime loads configuration and wires clusters, catalog and
// dispatcher. observer may be nil.
func buildRuntime(cmd *cobra.Command, logger *slog.Logger, observer tool.Observer) (*appRuntime, error) {
	modeValue, _ := cmd.Flags().GetString("mode")
	explicitConfig, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")
	overrideFlags, _ := cmd.Flags().GetStringArray("tool-override")

	mode, err := opensearch.ParseMode(modeValue)
	if err != nil {
		return nil, exitError(exitValidation, "%v", err)
	}
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, exitError(exitConfig, "%v", err)
	}

	configPath, _, err := config.DiscoverPath(explicitConfig)
	if err != nil {
		return nil, exitError(exitConfig, "%v", err)
	}
	file, err := config.Load(configPath)
	if err != nil {
		return nil, exitError(exitConfig, "%v", err)
	}

	var clusterConfigs []opensearch.ClusterConfig
	if mode == opensearch.ModeMulti {
		clusterConfigs, err = file.ClusterConfigs()
	} else {
		var single opensearch.ClusterConfig
		single, err = config.ClusterFromEnv(os.Getenv)
		clusterConfigs = []opensearch.ClusterConfig{single}
	}
	if err != nil {
		return nil, exitError(exitConfig, "%v", err)
	}
	clusters, err := opensearch.NewClusterSet(mode, clusterConfigs)
	if err != nil {
		return nil, exitError(exitCluster, "%v", err)
	}

	fileOverrides, err := file.Overrides()
	if err != nil {
		return nil, exitError(exitConfig, "%v", err)
	}
	flagValues, err := parseKeyValues(overrideFlags)
	if err != nil {
		return nil, exitError(exitValidation, "invalid --tool-override: %v", err)
	}
	descs, err := tool.ApplyOverrides(opensearch.Descriptors(clusters), fileOverrides, tool.ParseOverrideFlags(flagValues))
	if err != nil {
		return nil, exitError(exitConfig, "%v", err)
	}

	catalog := tool.NewCatalog()
	if err := catalog.RegisterAll(descs...); err != nil {
		return nil, exitError(exitConfig, "building tool catalog: %v", err)
	}

	versions := opensearch.NewVersionCache(logger)
	dispatcher, err := tool.NewDispatcher(tool.DispatcherConfig{
		Catalog:  catalog,
		Allow:    tool.All(tool.FilterPredicate(file.FilterRules()), tool.VersionPredicate),
		Resolve:  clusters.Resolver(versions),
		Observer: observer,
		Logger:   logger,
	})
	if err != nil {
		return nil, exitError(exitRuntime, "creating dispatcher: %v", err)
	}

	if configPath != "" {
		logger.Info("loaded configuration", "path", configPath, "mode", string(mode), "tools", catalog.Len())
	}
	return &appRuntime{
		configPath: configPath,
		clusters:   clusters,
		versions:   versions,
		dispatcher: dispatcher,
	}, nil
}

// parseKeyValues turns repeated key=value flags into a map. Later entries win.
func parseKeyValues(entries []string) (map[string]string, error) {
	out := make(map[string]string, len(entries))
	for _, entry := range entries {
		key, value, ok := strings.Cut(entry, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", entry)
		}
		out[key] = value
	}
	return out, nil
}

// newLogger builds the process logger. Logs always go to w (stderr in
// practice) so stdout stays free for protocol traffic.
func newLogger(cmd *cobra.Command, w io.Writer) *slog.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	quiet, _ := cmd.Flags().GetBool("quiet")
	level := slog.LevelInfo
	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
