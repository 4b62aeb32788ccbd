package main

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/qsim/internal/backend"
	"github.com/nvandessel/qsim/internal/circuit"
	"github.com/nvandessel/qsim/internal/circuitfile"
	"github.com/nvandessel/qsim/internal/config"
	"github.com/nvandessel/qsim/internal/logging"
	"github.com/nvandessel/qsim/internal/store"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <circuit.yaml>",
		Short: "Execute a circuit",
		Long: `Execute a circuit described in a YAML file.

With --shots and a measurement gate in the circuit, prints outcome
frequencies. Without sampling, prints the final state amplitudes
(truncated for large circuits). Runs are recorded in the local run
history unless persistence is disabled.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			shots, _ := cmd.Flags().GetInt("shots")
			noStore, _ := cmd.Flags().GetBool("no-store")
			fuse, _ := cmd.Flags().GetBool("fuse")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applyBackendFlags(cmd, cfg)

			logger := logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())

			c, err := circuitfile.Load(args[0])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("seed") {
				seed, _ := cmd.Flags().GetUint64("seed")
				c.SetSeed(seed)
			}
			if fuse {
				c, err = c.Fuse()
				if err != nil {
					return fmt.Errorf("fusion failed: %w", err)
				}
			}

			b, err := backend.Open(cfg.Backend.Engine, backend.Options{
				Device:        cfg.Backend.Device,
				MaxStateBytes: cfg.Backend.MaxStateBytes,
				Workers:       cfg.Backend.Workers,
			})
			if err != nil {
				return err
			}

			summary := c.Summarize()
			logger.Debug("executing circuit",
				"digest", summary.Digest,
				"nqubits", summary.NQubits,
				"ngates", summary.NGates,
				"engine", b.Name(),
				"shots", shots)

			start := time.Now()
			res, err := c.Execute(b, nil, shots)
			if err != nil {
				return err
			}
			elapsed := time.Since(start)

			if tl := traceLogger(cfg); tl != nil {
				tl.Run(summary.Digest, summary.NQubits, summary.NGates, shots, elapsed)
				tl.Close()
			}

			if !noStore && !cfg.Store.Disabled {
				if err := persistRun(cmd.Context(), cfg, summary, b, res, shots, elapsed); err != nil {
					logger.Warn("failed to record run", "error", err)
				}
			}

			return printResult(cmd, res, summary, elapsed, jsonOut)
		},
	}

	cmd.Flags().Int("shots", 0, "Number of measurement shots (0 = return final state)")
	cmd.Flags().Uint64("seed", 0, "RNG seed for sampling and stochastic channels")
	cmd.Flags().Bool("fuse", false, "Fuse adjacent gates before execution")
	cmd.Flags().Bool("no-store", false, "Skip recording this run in the history")
	addBackendFlags(cmd)
	return cmd
}

func addBackendFlags(cmd *cobra.Command) {
	cmd.Flags().String("engine", "", "Execution engine: naive or parallel (overrides config)")
	cmd.Flags().String("device", "", "Execution device, e.g. cpu:0 (overrides config)")
	cmd.Flags().Int("workers", 0, "Worker count for the parallel engine (overrides config)")
}

func applyBackendFlags(cmd *cobra.Command, cfg *config.Config) {
	if v, _ := cmd.Flags().GetString("engine"); v != "" {
		cfg.Backend.Engine = v
	}
	if v, _ := cmd.Flags().GetString("device"); v != "" {
		cfg.Backend.Device = v
	}
	if v, _ := cmd.Flags().GetInt("workers"); v > 0 {
		cfg.Backend.Workers = v
	}
}

// traceLogger opens the JSONL execution trace next to the run
// database. Returns nil (a no-op logger) below debug level.
func traceLogger(cfg *config.Config) *logging.TraceLogger {
	path, err := cfg.StorePath()
	if err != nil {
		return nil
	}
	return logging.NewTraceLogger(filepath.Dir(path), cfg.Logging.Level)
}

func persistRun(ctx context.Context, cfg *config.Config, summary circuit.Summary, b backend.Backend, res *circuit.Result, shots int, elapsed time.Duration) error {
	path, err := cfg.StorePath()
	if err != nil {
		return err
	}
	s, err := store.Open(path)
	if err != nil {
		return err
	}
	defer s.Close()

	run := store.Run{
		Digest:        summary.Digest,
		NQubits:       summary.NQubits,
		NGates:        summary.NGates,
		DensityMatrix: summary.DensityMatrix,
		GateCounts:    summary.GateCounts,
		Backend:       b.Name(),
		Device:        b.DefaultDevice(),
		NShots:        shots,
		Elapsed:       elapsed,
	}
	if res.Sampled() {
		run.Frequencies = res.Frequencies()
	}
	_, err = s.Save(ctx, run)
	return err
}

// maxAmplitudes bounds the state printout; beyond this only nonzero
// amplitudes up to the limit are shown.
const maxAmplitudes = 32

func printResult(cmd *cobra.Command, res *circuit.Result, summary circuit.Summary, elapsed time.Duration, jsonOut bool) error {
	out := cmd.OutOrStdout()

	if res.Sampled() {
		if jsonOut {
			return json.NewEncoder(out).Encode(map[string]any{
				"digest":      summary.Digest,
				"nqubits":     summary.NQubits,
				"shots":       len(res.Samples()),
				"frequencies": res.Frequencies(),
				"elapsed_ms":  elapsed.Milliseconds(),
			})
		}
		fmt.Fprintf(out, "Circuit %s (%d qubits, %d gates): %d shots in %s\n",
			summary.Digest, summary.NQubits, summary.NGates, len(res.Samples()), elapsed.Round(time.Microsecond))
		for _, p := range res.Probabilities() {
			fmt.Fprintf(out, "  |%s>  %.4f\n", p.Bitstring, p.Probability)
		}
		return nil
	}

	state := res.State()
	if jsonOut {
		amps := make([]map[string]any, 0)
		for i, a := range state.Data() {
			if a == 0 {
				continue
			}
			amps = append(amps, map[string]any{
				"index": i,
				"re":    real(a),
				"im":    imag(a),
			})
			if len(amps) >= maxAmplitudes {
				break
			}
		}
		return json.NewEncoder(out).Encode(map[string]any{
			"digest":     summary.Digest,
			"nqubits":    summary.NQubits,
			"shape":      state.Shape(),
			"amplitudes": amps,
			"elapsed_ms": elapsed.Milliseconds(),
		})
	}

	fmt.Fprintf(out, "Circuit %s (%d qubits, %d gates) in %s\n",
		summary.Digest, summary.NQubits, summary.NGates, elapsed.Round(time.Microsecond))
	if summary.DensityMatrix {
		fmt.Fprintf(out, "Final density matrix %v\n", state.Shape())
		return nil
	}
	shown := 0
	for i, a := range state.Data() {
		if a == 0 {
			continue
		}
		fmt.Fprintf(out, "  |%s>  %+.4f%+.4fi\n", bitstring(i, summary.NQubits), real(a), imag(a))
		shown++
		if shown >= maxAmplitudes {
			fmt.Fprintln(out, "  ...")
			break
		}
	}
	return nil
}

func bitstring(v, width int) string {
	buf := make([]byte, width)
	for i := 0; i < width; i++ {
		if v&(1<<(width-1-i)) != 0 {
			buf[i] = '1'
		} else {
			buf[i] = '0'
		}
	}
	return string(buf)
}
