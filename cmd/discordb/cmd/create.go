package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/discordb"
)

var createCmd = &cobra.Command{
	Use:   "create <container> [body]",
	Short: "Create a record",
	Long:  "Create a record with the given body. Without a body (or with -) it is read from stdin.",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runCreate,
}

func init() {
	rootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	body, err := bodyArg(cmd, args, 1)
	if err != nil {
		return err
	}
	return withDB(cmd, func(ctx context.Context, db *discordb.DB) error {
		rec, err := db.Create(ctx, containerArg(args[0]), body)
		if err != nil {
			return err
		}
		return printJSON(cmd, rec)
	})
}

// bodyArg returns args[i], or stdin when it is missing or "-".
func bodyArg(cmd *cobra.Command, args []string, i int) (string, error) {
	if len(args) > i && args[i] != "-" {
		return args[i], nil
	}
	b, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(b), nil
}
