package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/danmuck/rtmctl/internal/protocol/messages"
)

func newRoutesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the message routes known to the client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := messages.Registry()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TYPE\tSUBTYPE\tSHAPE")
			for _, key := range reg.Keys() {
				shape, _ := reg.Lookup(key)
				fmt.Fprintf(w, "%s\t%s\t%s\n", key.Type, key.Subtype, shape.Name())
			}
			return w.Flush()
		},
	}
}
