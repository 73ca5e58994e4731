package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/cratenav/cratenav/internal/rpc"
	"github.com/spf13/cobra"
)

var loadCmd = &cobra.Command{
	Use:   "load <dir-or-file ...>",
	Short: "Load rustdoc navigation fragment files into the index",
	Long: `Load fragment files (*.json or *.json.zst, one per documented crate) into
the daemon's index. A single directory argument loads every fragment file in
it; multiple arguments are treated as explicit file paths.

Fragments merge in deterministic order. Loading the same file twice appends
its entries again; the index concatenates, it never deduplicates.`,
	Example: `  cratenav load ./doc-fragments
  cratenav load serde.json tokio.json.zst`,
	Args: cobra.MinimumNArgs(1),
	Run:  runLoad,
}

func runLoad(cmd *cobra.Command, args []string) {
	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	// The daemon may run with a different working directory; send absolute paths.
	paths := make([]string, len(args))
	for i, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			log.Fatalf("resolving %s: %v", arg, err)
		}
		paths[i] = abs
	}

	req := rpc.LoadRequest{Files: paths}
	if len(paths) == 1 {
		if info, err := os.Stat(paths[0]); err == nil && info.IsDir() {
			req = rpc.LoadRequest{Dir: paths[0]}
		}
	}

	results, err := client.Load(context.Background(), req, func(msg string) {
		fmt.Printf("  %s\n", msg)
	})
	if err != nil {
		log.Fatalf("failed to load fragments: %v", err)
	}

	for _, r := range results {
		if r.Error != "" {
			fmt.Printf("  %s: error: %s\n", r.Path, r.Error)
		} else {
			fmt.Printf("  %s: %s (%d traits, %d modules)\n", r.Path, r.Producer, r.ImplementorKeys, r.SidebarKeys)
		}
	}
}
