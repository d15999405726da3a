package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDiscoveryCommand(rt *runtimeState) *cobra.Command {
	return &cobra.Command{
		Use:   "discovery [uri]",
		Short: "Print the discovery document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := rt.newService()
			if err != nil {
				return err
			}
			defer cleanup()

			doc, err := svc.GetDiscovery(cmd.Context(), uriArg(args), 0)
			if err != nil {
				return err
			}
			return rt.print(doc)
		},
	}
}

func newKeysCommand(rt *runtimeState) *cobra.Command {
	var kid string

	cmd := &cobra.Command{
		Use:   "keys [uri]",
		Short: "Print the key set advertised by the discovery document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := rt.newService()
			if err != nil {
				return err
			}
			defer cleanup()

			set, err := svc.GetKeys(cmd.Context(), uriArg(args), 0)
			if err != nil {
				return err
			}
			if kid == "" {
				return rt.print(set)
			}

			key, found := set.LookupKeyID(kid)
			if !found {
				return fmt.Errorf("no key with ID %q in key set", kid)
			}
			return rt.print(key)
		},
	}

	cmd.Flags().StringVar(&kid, "kid", "", "Print only the key with this key ID")

	return cmd
}

func uriArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
