package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ligustah/turbodl/internal/transport"
)

func newProbeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe [URL]",
		Short: "Query a resource's size and range-request support without downloading it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := transport.NewClient(transport.DefaultOptions())
			info, err := client.Head(context.Background(), args[0])
			if err != nil {
				return err
			}

			size := "unknown"
			if info.Size >= 0 {
				size = humanize.Bytes(uint64(info.Size))
			}
			fmt.Printf("Size:          %s\n", size)
			fmt.Printf("Accepts range: %v\n", info.AcceptRanges)
			return nil
		},
	}
	return cmd
}
