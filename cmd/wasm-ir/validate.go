package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	irerrors "github.com/wippyai/wasm-ir/errors"
)

func validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <module>",
		Short: "Check a module (binary or text) against the validation rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadModule(args[0])
			if err != nil {
				return err
			}
			defer m.Close()

			if err := m.Validate(); err != nil {
				var ve *irerrors.ValidationError
				if errors.As(err, &ve) {
					for _, d := range ve.Diags {
						fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], d)
					}
					return fmt.Errorf("%s: %d validation error(s)", args[0], len(ve.Diags))
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", args[0])
			return nil
		},
	}
}
