package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nvandessel/qsim/internal/circuit"
	"github.com/nvandessel/qsim/internal/circuitfile"
)

func newFuseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fuse <circuit.yaml>",
		Short: "Show how a circuit fuses into dense unitary blocks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			c, err := circuitfile.Load(args[0])
			if err != nil {
				return err
			}
			fused, err := c.Fuse()
			if err != nil {
				return err
			}
			groups := fused.FusionGroups()

			if jsonOut {
				type groupInfo struct {
					Gates       []string `json:"gates"`
					Qubits      []int    `json:"qubits"`
					Passthrough bool     `json:"passthrough"`
					Split       bool     `json:"split,omitempty"`
				}
				infos := make([]groupInfo, len(groups))
				for i, g := range groups {
					infos[i] = groupInfo{
						Gates:       gateNames(g),
						Qubits:      g.Qubits,
						Passthrough: g.Passthrough(),
						Split:       g.Additional != nil,
					}
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"ngates":  len(c.Queue()),
					"ngroups": len(groups),
					"groups":  infos,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d gates fuse into %d groups\n", len(c.Queue()), len(groups))
			for i, g := range groups {
				kind := "unitary"
				if g.Passthrough() {
					kind = "passthrough"
				} else if g.Additional != nil {
					kind = "split"
				}
				fmt.Fprintf(out, "  group %d  qubits %v  %-11s  [%s]\n",
					i, g.Qubits, kind, strings.Join(gateNames(g), " "))
			}
			return nil
		},
	}
}

func gateNames(g *circuit.FusionGroup) []string {
	names := make([]string, len(g.Gates))
	for i, gg := range g.Gates {
		names[i] = gg.Name()
	}
	return names
}
