package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDecryptCommand(opts *Options) *cobra.Command {
	var scriptURL string
	cmd := &cobra.Command{
		Use:   "decrypt TOKEN [TOKEN...]",
		Short: "Decrypt stream tokens against a client script",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer e.Close()

			for _, token := range args {
				out, err := e.client.Decrypt(cmd.Context(), scriptURL, token)
				if err != nil {
					return fmt.Errorf("decrypt %q: %w", token, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&scriptURL, "script", "", "client script URL")
	return cmd
}

func newExtractorsCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "extractors",
		Short: "List the registered extractors in trial order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer e.Close()

			for _, name := range e.client.Extractors() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
