package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/discordb"
)

var listCmd = &cobra.Command{
	Use:   "list <container>",
	Short: "List records in a container",
	Long:  "List every record in a container, newest first.",
	Args:  cobra.ExactArgs(1),
	RunE:  runList,
}

var containersCmd = &cobra.Command{
	Use:   "containers",
	Short: "Show configured container names",
	Args:  cobra.NoArgs,
	RunE:  runContainers,
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(containersCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	return withDB(cmd, func(ctx context.Context, db *discordb.DB) error {
		recs, err := db.Get(ctx, containerArg(args[0]))
		if err != nil {
			return err
		}
		return printJSON(cmd, recs)
	})
}

func runContainers(cmd *cobra.Command, _ []string) error {
	return withDB(cmd, func(_ context.Context, db *discordb.DB) error {
		for _, name := range db.Containers() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	})
}
