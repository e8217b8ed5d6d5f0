package main

import (
	"fmt"
	"math"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-ir/interp"
	"github.com/wippyai/wasm-ir/ir"
)

func runCommand() *cobra.Command {
	var invoke string

	cmd := &cobra.Command{
		Use:   "run <module> [args...]",
		Short: "Instantiate a module, running its start function or an export",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadModule(args[0])
			if err != nil {
				return err
			}
			defer m.Close()
			ctx := cmd.Context()

			if invoke == "" {
				out, err := interp.RunStart(ctx, m)
				if err != nil {
					return err
				}
				if out.Trapped {
					return fmt.Errorf("trap: %s", out.TrapMessage)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return nil
			}

			lits, err := exportArgs(m, invoke, args[1:])
			if err != nil {
				return err
			}
			results, err := interp.CallExport(ctx, m, invoke, lits)
			if err != nil {
				return err
			}
			for _, r := range results {
				fmt.Fprintln(cmd.OutOrStdout(), r.String())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&invoke, "invoke", "", "call this exported function instead of the start function")

	return cmd
}

// exportArgs converts command line strings into literals typed by the
// export's signature.
func exportArgs(m *ir.Module, name string, args []string) ([]ir.Literal, error) {
	exp := m.LookupExport(name)
	if exp == nil {
		return nil, fmt.Errorf("no export named %q", name)
	}
	fn := m.GetFunction(exp.Internal)
	if fn == nil {
		return nil, fmt.Errorf("export %q is not a defined function", name)
	}
	params := fn.Sig().Params()
	if len(args) != len(params) {
		return nil, fmt.Errorf("%s takes %d argument(s), got %d", name, len(params), len(args))
	}
	lits := make([]ir.Literal, len(args))
	for i, a := range args {
		lit, err := parseLiteral(params[i], a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		lits[i] = lit
	}
	return lits, nil
}

func parseLiteral(t ir.Type, s string) (ir.Literal, error) {
	switch t {
	case ir.TypeInt32:
		v, err := strconv.ParseInt(s, 0, 32)
		if err != nil {
			return ir.Literal{}, err
		}
		return ir.Int32Literal(int32(v)), nil
	case ir.TypeInt64:
		v, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return ir.Literal{}, err
		}
		return ir.Int64Literal(v), nil
	case ir.TypeFloat32:
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return ir.Literal{}, err
		}
		return ir.Float32LiteralBits(math.Float32bits(float32(v))), nil
	case ir.TypeFloat64:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return ir.Literal{}, err
		}
		return ir.Float64LiteralBits(math.Float64bits(v)), nil
	}
	return ir.Literal{}, fmt.Errorf("cannot pass a %s argument", t)
}
