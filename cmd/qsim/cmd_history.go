package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/qsim/internal/store"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent circuit runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")

			s, err := openHistoryStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			runs, err := s.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"runs":  runs,
					"count": len(runs),
				})
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}
			for _, r := range runs {
				fmt.Fprintf(out, "%s  %s  %s  %dq/%dg  %s/%s  shots=%d  %dms\n",
					shortID(r.ID), r.CreatedAt.Local().Format(time.DateTime),
					r.Digest, r.NQubits, r.NGates, r.Backend, r.Device,
					r.NShots, r.ElapsedMS)
			}
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "Maximum number of runs to list")
	cmd.AddCommand(newHistoryShowCmd())
	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a recorded run in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			s, err := openHistoryStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			run, err := s.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(run)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s\n", run.ID)
			fmt.Fprintf(out, "  when:    %s\n", run.CreatedAt.Local().Format(time.DateTime))
			fmt.Fprintf(out, "  circuit: %s (%d qubits, %d gates)\n", run.Digest, run.NQubits, run.NGates)
			fmt.Fprintf(out, "  backend: %s on %s\n", run.Backend, run.Device)
			fmt.Fprintf(out, "  shots:   %d in %dms\n", run.NShots, run.ElapsedMS)
			if len(run.Frequencies) > 0 {
				keys := make([]string, 0, len(run.Frequencies))
				for k := range run.Frequencies {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				fmt.Fprintln(out, "  frequencies:")
				for _, k := range keys {
					fmt.Fprintf(out, "    |%s>  %d\n", k, run.Frequencies[k])
				}
			}
			return nil
		},
	}
}

func openHistoryStore(cmd *cobra.Command) (*store.RunStore, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.Store.Disabled {
		return nil, fmt.Errorf("run persistence is disabled in the configuration")
	}
	path, err := cfg.StorePath()
	if err != nil {
		return nil, err
	}
	return store.Open(path)
}

func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
