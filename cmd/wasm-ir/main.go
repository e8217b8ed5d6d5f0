// Command wasm-ir assembles, disassembles, validates, and runs modules
// built on the in-memory representation.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-ir/interp"
	"github.com/wippyai/wasm-ir/ir"
	"github.com/wippyai/wasm-ir/passes"
	"github.com/wippyai/wasm-ir/relooper"
	"github.com/wippyai/wasm-ir/wat"
)

var version = "<unknown>"

func configureCLI() *cobra.Command {
	var verbose bool

	rootCommand := &cobra.Command{
		Use:           "wasm-ir",
		Short:         "wasm-ir module toolchain",
		Long:          "wasm-ir - build, inspect, and run WebAssembly modules",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				logger, err := zap.NewDevelopment()
				if err != nil {
					return err
				}
				ir.SetLogger(logger)
				passes.SetLogger(logger)
				relooper.SetLogger(logger)
				interp.SetLogger(logger)
			}
			return nil
		},
	}

	rootCommand.AddCommand(asmCommand())
	rootCommand.AddCommand(disCommand())
	rootCommand.AddCommand(validateCommand())
	rootCommand.AddCommand(runCommand())
	rootCommand.AddCommand(exploreCommand())

	rootCommand.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	return rootCommand
}

// loadModule reads a module from disk in either format, keyed off the
// binary magic rather than the file extension.
func loadModule(path string) (*ir.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) >= 4 && string(data[:4]) == "\x00asm" {
		return ir.Parse(data)
	}
	return wat.Parse(string(data))
}

func writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// replaceExt swaps a path's extension, for deriving default output names.
func replaceExt(path, ext string) string {
	if i := strings.LastIndexByte(path, '.'); i > 0 {
		return path[:i] + ext
	}
	return path + ext
}

func main() {
	if err := configureCLI().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
