package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/snow-ghost/wban/core"
	"github.com/snow-ghost/wban/pkg/observability"
	"github.com/snow-ghost/wban/worker"
	"github.com/spf13/cobra"
)

// placementFlags are shared by evaluate and metrics
type placementFlags struct {
	scenario    string
	we, wr      float64
	vector      []float64
	input       string
	concurrency int
}

func (p *placementFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&p.scenario, "scenario", "s", "S1", "scenario id")
	cmd.Flags().Float64Var(&p.we, "we", 0.5, "energy weight w_E")
	cmd.Flags().Float64Var(&p.wr, "wr", 0.5, "reliability weight w_R")
	cmd.Flags().Float64SliceVar(&p.vector, "vector", nil, "solution vector x1,y1,...,xn,yn,hx,hy")
	cmd.Flags().StringVarP(&p.input, "input", "i", "", "JSON file holding an array of solution vectors")
	cmd.Flags().IntVar(&p.concurrency, "concurrency", 0, "parallel evaluations for --input (default GOMAXPROCS)")
}

// vectors returns the vectors named by --vector or --input
func (p *placementFlags) vectors() ([][]float64, error) {
	switch {
	case p.input != "" && len(p.vector) > 0:
		return nil, errors.New("--vector and --input are mutually exclusive")
	case p.input != "":
		data, err := os.ReadFile(p.input)
		if err != nil {
			return nil, err
		}
		var vs [][]float64
		if err := json.Unmarshal(data, &vs); err != nil {
			return nil, fmt.Errorf("%s: %w", p.input, err)
		}
		return vs, nil
	case len(p.vector) > 0:
		return [][]float64{p.vector}, nil
	default:
		return nil, errors.New("one of --vector or --input is required")
	}
}

func (p *placementFlags) batch(a *app) (*worker.BatchEvaluator, [][]float64, error) {
	vs, err := p.vectors()
	if err != nil {
		return nil, nil, err
	}
	ev, err := a.doc.NewEvaluator(p.scenario, core.Weights{Energy: p.we, Reliability: p.wr}, a.shadowing())
	if err != nil {
		return nil, nil, err
	}
	// Seeded runs evaluate sequentially so the shadowing draws stay in order.
	concurrency := p.concurrency
	if concurrency == 0 && a.v.IsSet("seed") {
		concurrency = 1
	}
	obs := observability.NewLocalManager(a.logger)
	return worker.NewBatchEvaluator(ev, p.scenario, concurrency, obs), vs, nil
}

func newEvaluateCmd(a *app) *cobra.Command {
	var flags placementFlags

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Print the fitness of one or more placements",
		Example: `  wban-eval evaluate -s S1 --we 0.8 --wr 0.2 --vector 0.5,0.3,0.1,0.6,0.9,0.6,0.5,0.6,0.5,0.55
  wban-eval evaluate -s S2 --seed 7 --input population.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, vs, err := flags.batch(a)
			if err != nil {
				return err
			}
			fitness, err := b.EvaluateBatch(cmd.Context(), vs)
			if err != nil {
				return err
			}
			for _, f := range fitness {
				fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatFloat(f, 'g', -1, 64))
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newMetricsCmd(a *app) *cobra.Command {
	var flags placementFlags
	var links bool

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Print the energy, penalty and lifetime decomposition of placements as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, vs, err := flags.batch(a)
			if err != nil {
				return err
			}
			ms, err := b.MetricsBatch(cmd.Context(), vs)
			if err != nil {
				return err
			}
			if !links {
				for i := range ms {
					ms[i].Links = nil
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if len(ms) == 1 {
				return enc.Encode(ms[0])
			}
			return enc.Encode(ms)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&links, "links", false, "include the per-sensor link budget")
	return cmd
}
