package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/resourceboard/internal/classify"
	"github.com/jpalmerr/resourceboard/internal/poller"
	"github.com/jpalmerr/resourceboard/internal/render"
	"github.com/jpalmerr/resourceboard/internal/store"
)

// probeCmd fetches a URL once and prints how the dashboard would show it.
var probeCmd = &cobra.Command{
	Use:   "probe <url>",
	Short: "Fetch a URL once and print its rendering",
	Long: `Fetch a URL once, classify the JSON response and print the table or
media tiles the dashboard would show for it.

Nothing is registered or persisted. The command exits non-zero when the
fetch fails.

Example:
  resourceboard probe http://localhost:1337/api/things
  resourceboard probe --json http://localhost:1337/api/upload/files`,
	Args: cobra.ExactArgs(1),
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)

	probeCmd.Flags().Duration("timeout", poller.DefaultTimeout, "fetch timeout")
	probeCmd.Flags().Bool("json", false, "print the rendered view as JSON")
}

func runProbe(cmd *cobra.Command, args []string) error {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	asJSON, _ := cmd.Flags().GetBool("json")
	url := args[0]

	client := poller.NewClient()
	defer client.Close()

	result := client.Fetch(cmd.Context(), url, timeout)
	if !result.OK() {
		return fmt.Errorf("fetch failed (%s): %s", result.Err.Kind, result.Err.Message)
	}

	view := render.BuildView(store.Entry{
		Resource: store.Resource{Name: url, URL: url},
		Observation: store.Observation{
			State:     store.StateSuccess,
			Payload:   result.Payload,
			FetchedAt: result.FetchedAt,
			LatencyMs: result.Latency.Milliseconds(),
		},
	}, render.ViewOptions{Location: time.Local})

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}
	return printView(out, view, result.StatusCode)
}

// printView writes a plain-text rendering of view.
func printView(out io.Writer, view render.ResourceView, statusCode int) error {
	fmt.Fprintf(out, "%s: %s, %d items, HTTP %d in %d ms\n",
		view.URL, view.Kind, view.ItemCount, statusCode, view.LatencyMs)

	switch view.Kind {
	case classify.KindTabular:
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(view.Columns, "\t")+"\tstatus")
		for _, row := range view.Rows {
			texts := make([]string, len(row.Cells))
			for i, c := range row.Cells {
				texts[i] = c.Text
			}
			fmt.Fprintln(tw, strings.Join(texts, "\t")+"\t"+row.Status)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if view.ItemCount > len(view.Rows) {
			fmt.Fprintf(out, "(%d more not shown)\n", view.ItemCount-len(view.Rows))
		}
	case classify.KindMedia:
		for _, tile := range view.Tiles {
			thumb := tile.ThumbnailURL
			if tile.Placeholder {
				thumb = "(no preview)"
			}
			meta := []string{tile.FileType, tile.Dimensions}
			if tile.SizeKB != nil {
				meta = append(meta, fmt.Sprintf("%.2f KB", *tile.SizeKB))
			}
			fmt.Fprintf(out, "- %s %s [%s]\n", tile.Label, thumb, strings.Join(nonEmpty(meta), ", "))
		}
	default:
		fmt.Fprintln(out, "(empty)")
	}
	return nil
}

func nonEmpty(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
