package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/discordb"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <container> <id>",
	Short: "Delete a record",
	Args:  cobra.ExactArgs(2),
	RunE:  runDelete,
}

var deleteURLCmd = &cobra.Command{
	Use:   "delete-url <attachment url>",
	Short: "Delete the record an attachment url belongs to",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeleteURL,
}

var deleteAllCmd = &cobra.Command{
	Use:   "delete-all <container>",
	Short: "Delete every record in a container",
	Long:  "Delete every record in a container, one at a time. Stops at the first failure.",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeleteAll,
}

func init() {
	deleteAllCmd.Flags().Bool("yes", false, "confirm deleting the whole container")
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(deleteURLCmd)
	rootCmd.AddCommand(deleteAllCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	return withDB(cmd, func(ctx context.Context, db *discordb.DB) error {
		if err := db.Delete(ctx, containerArg(args[0]), args[1]); err != nil {
			return err
		}
		cmd.Printf("deleted %s\n", args[1])
		return nil
	})
}

func runDeleteURL(cmd *cobra.Command, args []string) error {
	return withDB(cmd, func(ctx context.Context, db *discordb.DB) error {
		rec, err := db.DeleteByURL(ctx, args[0])
		if err != nil {
			return err
		}
		cmd.Printf("deleted %s\n", rec.ID)
		return nil
	})
}

func runDeleteAll(cmd *cobra.Command, args []string) error {
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		return errors.New("refusing to delete every record without --yes")
	}
	return withDB(cmd, func(ctx context.Context, db *discordb.DB) error {
		n, err := db.DeleteAll(ctx, containerArg(args[0]))
		cmd.Printf("deleted %d records\n", n)
		return err
	})
}
