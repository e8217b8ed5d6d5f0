package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-ir/wat"
)

func disCommand() *cobra.Command {
	var (
		output string
		asmjs  bool
	)

	cmd := &cobra.Command{
		Use:   "dis <module.wasm>",
		Short: "Disassemble a binary module into text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadModule(args[0])
			if err != nil {
				return err
			}
			defer m.Close()

			var text string
			if asmjs {
				text, err = wat.PrintAsmjs(m)
			} else {
				text, err = wat.Print(m)
			}
			if err != nil {
				return err
			}
			if output == "" && asmjs {
				return writeOutput("-", []byte(text))
			}
			if output == "" {
				output = replaceExt(args[0], ".wat")
			}
			if err := writeOutput(output, []byte(text)); err != nil {
				return err
			}
			if output != "-" {
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (default input with .wat, - for stdout)")
	cmd.Flags().BoolVar(&asmjs, "asmjs", false, "render a JavaScript-flavored view instead of text format")

	return cmd
}
