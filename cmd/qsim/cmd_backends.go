package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/qsim/internal/backend"
)

// engineNames are the engines backend.Open accepts.
var engineNames = []string{"naive", "parallel"}

func newBackendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List available execution engines",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			type engineInfo struct {
				Name     string `json:"name"`
				Device   string `json:"device"`
				Workers  int    `json:"workers"`
				Selected bool   `json:"selected"`
			}
			var infos []engineInfo
			for _, name := range engineNames {
				b, err := backend.Open(name, backend.Options{
					Device:  cfg.Backend.Device,
					Workers: cfg.Backend.Workers,
				})
				if err != nil {
					return err
				}
				infos = append(infos, engineInfo{
					Name:     b.Name(),
					Device:   b.DefaultDevice(),
					Workers:  b.ShotWorkers(),
					Selected: name == cfg.Backend.Engine,
				})
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"engines": infos,
				})
			}

			out := cmd.OutOrStdout()
			for _, info := range infos {
				marker := " "
				if info.Selected {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %-9s device=%s workers=%d\n",
					marker, info.Name, info.Device, info.Workers)
			}
			return nil
		},
	}
}
