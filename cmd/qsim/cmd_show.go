package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/qsim/internal/circuitfile"
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <circuit.yaml>",
		Short: "Summarize a circuit file without executing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			c, err := circuitfile.Load(args[0])
			if err != nil {
				return err
			}
			summary := c.Summarize()

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(summary)
			}

			out := cmd.OutOrStdout()
			mode := "state vector"
			if summary.DensityMatrix {
				mode = "density matrix"
			}
			fmt.Fprintf(out, "Circuit %s\n", summary.Digest)
			fmt.Fprintf(out, "  qubits: %d (%s)\n", summary.NQubits, mode)
			fmt.Fprintf(out, "  gates:  %d\n", summary.NGates)
			for _, name := range summary.GateNames() {
				fmt.Fprintf(out, "    %s\n", name)
			}
			if len(summary.Measured) > 0 {
				fmt.Fprintf(out, "  measured qubits: %v\n", summary.Measured)
			}
			return nil
		},
	}
}
