package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/discordb"
)

var getCmd = &cobra.Command{
	Use:   "get <container> <id>",
	Short: "Get one record",
	Args:  cobra.ExactArgs(2),
	RunE:  runGet,
}

func init() {
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	return withDB(cmd, func(ctx context.Context, db *discordb.DB) error {
		rec, err := db.GetOne(ctx, containerArg(args[0]), args[1])
		if err != nil {
			return err
		}
		return printJSON(cmd, rec)
	})
}
