package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ligustah/turbodl/pkg/turbodl/manifest"
)

func newManifestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Inspect or remove a download's resumable manifest",
	}
	cmd.AddCommand(newManifestShowCmd())
	cmd.AddCommand(newManifestRmCmd())
	return cmd
}

func newManifestShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [DEST_FILE]",
		Short: "Print a manifest's stored plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest := args[0]
			store := manifest.NewStore(dest)

			plan, ok, err := store.LoadRaw()
			if err != nil {
				return err
			}
			if !ok {
				fmt.Printf("no manifest for %s\n", dest)
				return nil
			}

			fmt.Printf("Total size:    %s\n", humanize.Bytes(uint64(plan.TotalSize)))
			fmt.Printf("Accept ranges: %v\n", plan.AcceptRanges)
			fmt.Printf("Chunks:        %d\n", len(plan.Chunks))
			fmt.Printf("Downloaded:    %s\n", humanize.Bytes(uint64(plan.Downloaded())))
			fmt.Printf("Complete:      %v\n", plan.Complete())
			return nil
		},
	}
}

func newManifestRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm [DEST_FILE]",
		Short: "Delete a download's manifest, without touching the destination file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return manifest.NewStore(args[0]).Delete()
		},
	}
}
