package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-ir/ir"
	"github.com/wippyai/wasm-ir/passes"
)

func asmCommand() *cobra.Command {
	var (
		output       string
		sourceMap    string
		sourceMapURL string
		noDebug      bool
		optimize     bool
	)

	cmd := &cobra.Command{
		Use:   "asm <module.wat>",
		Short: "Assemble a text module into the binary format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadModule(args[0])
			if err != nil {
				return err
			}
			defer m.Close()
			if err := m.Validate(); err != nil {
				return err
			}

			if optimize {
				opts := passes.DefaultOptions()
				opts.DebugInfo = !noDebug
				if err := passes.Optimize(m, opts); err != nil {
					return err
				}
			}

			if sourceMap != "" && sourceMapURL == "" {
				sourceMapURL = sourceMap
			}
			result, err := m.EmitWithOptions(ir.EmitOptions{
				DebugInfo:    !noDebug,
				SourceMapURL: sourceMapURL,
			})
			if err != nil {
				return err
			}

			if output == "" {
				output = replaceExt(args[0], ".wasm")
			}
			if err := writeOutput(output, result.Binary); err != nil {
				return err
			}
			if sourceMap != "" {
				if result.SourceMap == nil {
					return fmt.Errorf("no source map produced; the module carries no debug locations")
				}
				if err := writeOutput(sourceMap, result.SourceMap); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", output, len(result.Binary))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (default input with .wasm)")
	cmd.Flags().StringVar(&sourceMap, "source-map", "", "write a source map to this path")
	cmd.Flags().StringVar(&sourceMapURL, "source-map-url", "", "embed this source map URL in the binary")
	cmd.Flags().BoolVar(&noDebug, "no-debug", false, "strip debug info from the output")
	cmd.Flags().BoolVar(&optimize, "optimize", false, "run the default pass pipeline before emitting")

	return cmd
}
