package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/MrCodeEU/faceattend/pkg/gallery"
	"github.com/MrCodeEU/faceattend/pkg/logging"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered people and their photo counts",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	logging.Debug("Listing registered users")
	out := cmd.OutOrStdout()

	people, err := gallery.Registered(cfg.Gallery.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintln(out, "No users registered.")
			return nil
		}
		return err
	}

	if len(people) == 0 {
		fmt.Fprintln(out, "No users registered.")
		return nil
	}

	fmt.Fprintln(out, "Registered users:")
	for _, p := range people {
		fmt.Fprintf(out, "  - %s (%d photo(s))\n", p.Name, len(p.Photos))
	}
	fmt.Fprintf(out, "\nTotal: %d user(s)\n", len(people))
	return nil
}
