package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/discordb"
)

var updateCmd = &cobra.Command{
	Use:   "update <container> <id> [body]",
	Short: "Replace the body of a record",
	Long:  "Replace the body of a record. Without a body (or with -) it is read from stdin.",
	Args:  cobra.RangeArgs(2, 3),
	RunE:  runUpdate,
}

func init() {
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	body, err := bodyArg(cmd, args, 2)
	if err != nil {
		return err
	}
	return withDB(cmd, func(ctx context.Context, db *discordb.DB) error {
		rec, err := db.Update(ctx, containerArg(args[0]), args[1], body)
		if err != nil {
			return err
		}
		return printJSON(cmd, rec)
	})
}
