package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/petal-labs/opensearch-mcp/tool"
)

// NewToolsCmd creates the "tools" command group.
func NewToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect and invoke the tool catalog",
	}
	cmd.AddCommand(newToolsListCmd())
	cmd.AddCommand(newToolsCallCmd())
	return cmd
}

func newToolsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the tools offered under the current configuration",
		Args:  cobra.NoArgs,
		RunE:  runToolsList,
	}
	addRuntimeFlags(cmd)
	cmd.Flags().Bool("json", false, "Print tool schemas as JSON")
	return cmd
}

func runToolsList(cmd *cobra.Command, _ []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	logger := newLogger(cmd, cmd.ErrOrStderr())

	rt, err := buildRuntime(cmd, logger, nil)
	if err != nil {
		return err
	}

	if asJSON {
		data, err := json.MarshalIndent(rt.dispatcher.ListAvailable(cmd.Context()), "", "  ")
		if err != nil {
			return exitError(exitRuntime, "encoding tools: %v", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(writer, "NAME\tCATEGORY\tVERSIONS\tDESCRIPTION")
	for _, desc := range rt.dispatcher.Available(cmd.Context()) {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
			desc.Name,
			dashIfEmpty(desc.Category),
			versionRange(desc),
			firstLine(desc.Description),
		)
	}
	return writer.Flush()
}

func newToolsCallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call <name>",
		Short: "Invoke one tool and print its result envelope",
		Args:  cobra.ExactArgs(1),
		RunE:  runToolsCall,
	}
	addRuntimeFlags(cmd)
	cmd.Flags().String("args", "{}", "Tool arguments as a JSON object")
	return cmd
}

func runToolsCall(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(args[0])
	rawArgs, _ := cmd.Flags().GetString("args")
	logger := newLogger(cmd, cmd.ErrOrStderr())

	callArgs, err := decodeArguments(rawArgs)
	if err != nil {
		return exitError(exitInputParse, "invalid --args: %v", err)
	}

	rt, err := buildRuntime(cmd, logger, nil)
	if err != nil {
		return err
	}

	inv := rt.dispatcher.Dispatch(cmd.Context(), name, callArgs)
	data, err := json.MarshalIndent(inv.Envelope(), "", "  ")
	if err != nil {
		return exitError(exitRuntime, "encoding result: %v", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	if !inv.OK() {
		return exitError(exitToolError, "%s", inv.Err.Error())
	}
	return nil
}

// decodeArguments parses a JSON object, keeping numbers exact.
func decodeArguments(raw string) (map[string]any, error) {
	clean := strings.TrimSpace(raw)
	if clean == "" {
		return map[string]any{}, nil
	}
	decoder := json.NewDecoder(bytes.NewReader([]byte(clean)))
	decoder.UseNumber()
	var out map[string]any
	if err := decoder.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("arguments must be a JSON object")
	}
	return out, nil
}

func versionRange(desc tool.ToolDescriptor) string {
	switch {
	case desc.MinVersion != "" && desc.MaxVersion != "":
		return desc.MinVersion + "-" + desc.MaxVersion
	case desc.MinVersion != "":
		return ">=" + desc.MinVersion
	case desc.MaxVersion != "":
		return "<=" + desc.MaxVersion
	default:
		return "-"
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}

func dashIfEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
