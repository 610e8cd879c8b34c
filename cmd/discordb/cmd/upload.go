package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/discordb"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <container> <file>",
	Short: "Store a file as a record attachment",
	Long:  fmt.Sprintf("Store a file as a record attachment. Discord refuses files of %d bytes or more.", discordb.MaxUploadSize),
	Args:  cobra.ExactArgs(2),
	RunE:  runUpload,
}

func init() {
	uploadCmd.Flags().String("content", "", "text stored as the record body")
	uploadCmd.Flags().String("name", "", "attachment filename (default: base name of file)")
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[1])
	if err != nil {
		return err
	}
	defer f.Close()

	content, _ := cmd.Flags().GetString("content")
	name, _ := cmd.Flags().GetString("name")
	if name == "" {
		name = filepath.Base(args[1])
	}

	return withDB(cmd, func(ctx context.Context, db *discordb.DB) error {
		rec, err := db.Upload(ctx, containerArg(args[0]), discordb.Upload{File: f, Filename: name, Content: content})
		if err != nil {
			return err
		}
		return printJSON(cmd, rec)
	})
}
