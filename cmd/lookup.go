package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/cratenav/cratenav/internal/config"
	"github.com/cratenav/cratenav/internal/daemon"
	"github.com/cratenav/cratenav/internal/rpc"
	"github.com/spf13/cobra"
)

var implementorsCmd = &cobra.Command{
	Use:   "implementors <trait-path>",
	Short: "List the known implementors of a trait",
	Example: `  cratenav implementors core::fmt::Debug
  cratenav implementors serde::Serialize --json`,
	Args: cobra.ExactArgs(1),
	Run:  runImplementors,
}

var sidebarCmd = &cobra.Command{
	Use:   "sidebar <module-path>",
	Short: "List a module's member symbols grouped by kind",
	Example: `  cratenav sidebar serde::de
  cratenav sidebar tokio::task --json`,
	Args: cobra.ExactArgs(1),
	Run:  runSidebar,
}

var lookupJSON bool

func init() {
	implementorsCmd.Flags().BoolVar(&lookupJSON, "json", false, "output as JSON")
	sidebarCmd.Flags().BoolVar(&lookupJSON, "json", false, "output as JSON")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
}

func runImplementors(cmd *cobra.Command, args []string) {
	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	resp, err := client.Implementors(context.Background(), rpc.ImplementorsRequest{Trait: args[0]})
	if err != nil {
		log.Fatalf("lookup failed: %v", err)
	}

	if lookupJSON {
		out, _ := json.MarshalIndent(resp.Implementors, "", "  ")
		fmt.Println(string(out))
		return
	}
	fmt.Print(resp.Markdown)
}

func runSidebar(cmd *cobra.Command, args []string) {
	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	resp, err := client.Sidebar(context.Background(), rpc.SidebarRequest{Module: args[0]})
	if err != nil {
		log.Fatalf("lookup failed: %v", err)
	}

	if lookupJSON {
		out, _ := json.MarshalIndent(resp.Groups, "", "  ")
		fmt.Println(string(out))
		return
	}
	fmt.Print(resp.Markdown)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show loaded producers and index size",
	Run:   runStatus,
}

var statusJSON bool

func runStatus(cmd *cobra.Command, args []string) {
	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	resp, err := client.Status(context.Background())
	if err != nil {
		log.Fatalf("status failed: %v", err)
	}

	if statusJSON {
		out, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Println(string(out))
		return
	}

	if len(resp.Producers) == 0 {
		fmt.Println("no fragments loaded")
		return
	}

	fmt.Printf("producers (%d):\n", len(resp.Producers))
	for _, p := range resp.Producers {
		fmt.Printf("  %s\n", p)
	}
	fmt.Printf("traits: %d (%d implementors)\n", resp.Traits, resp.Implementors)
	fmt.Printf("modules: %d (%d sidebar items)\n", resp.Modules, resp.SidebarItems)
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background daemon",
	Run:   runStop,
}

func runStop(cmd *cobra.Command, args []string) {
	client := daemon.NewClient(config.SocketPath())
	if !client.IsAvailable() {
		fmt.Println("daemon is not running")
		return
	}

	// The daemon may close the connection before the response lands.
	_ = client.Shutdown(context.Background())
	fmt.Println("daemon stopped")
}
