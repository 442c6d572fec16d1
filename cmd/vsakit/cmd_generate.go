package main

import (
	"fmt"
	"math/rand/v2"

	"github.com/spf13/cobra"

	"github.com/23skdu/vsakit/generators"
	"github.com/23skdu/vsakit/internal/config"
	"github.com/23skdu/vsakit/sparse"
)

func newGenerateCmd(a *app) *cobra.Command {
	var (
		dims, sparsity int
		seed           uint64
		random         bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Print a sparse ternary vector",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			err := a.finish(func(c *config.Config) {
				if flags.Changed("dims") {
					c.Dims = dims
					// an inherited sparsity is capped at an explicit dims
					if !flags.Changed("sparsity") {
						c.Sparsity = min(c.Sparsity, c.Dims)
					}
				}
				if flags.Changed("sparsity") {
					c.Sparsity = sparsity
				}
			})
			if err != nil {
				return err
			}

			var (
				vec  sparse.SparseVec
				mode = "deterministic"
			)
			if random {
				mode = "random"
				vec, err = generators.RandomSparseVec(rand.New(rand.NewPCG(seed, seed)), a.cfg.Dims, a.cfg.Sparsity)
			} else {
				vec, err = generators.DeterministicSparseVec(a.cfg.Dims, a.cfg.Sparsity, seed)
			}
			if err != nil {
				return err
			}

			a.logger.Debug().
				Str("mode", mode).
				Uint64("seed", seed).
				Int("dims", a.cfg.Dims).
				Int("nnz", vec.NNZ()).
				Msg("vector generated")

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, kv("mode", mode))
			fmt.Fprintln(out, kv("nnz", vec.NNZ()))
			fmt.Fprintln(out, kv("pos", vec.Pos))
			fmt.Fprintln(out, kv("neg", vec.Neg))
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&dims, "dims", 0, "vector dimensionality (default from config)")
	f.IntVar(&sparsity, "sparsity", 0, "target number of non-zeros (default from config)")
	f.Uint64Var(&seed, "seed", 0, "generator seed")
	f.BoolVar(&random, "random", false, "use a seeded PCG source instead of the deterministic DSG")
	return cmd
}
