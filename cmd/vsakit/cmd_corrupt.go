package main

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/23skdu/vsakit/chaos"
	"github.com/23skdu/vsakit/generators"
	"github.com/23skdu/vsakit/integrity"
	"github.com/23skdu/vsakit/internal/config"
)

func newCorruptCmd(a *app) *cobra.Command {
	var (
		size, packetSize, erasures int
		seed                       uint64
		rate, loss                 float64
	)
	cmd := &cobra.Command{
		Use:   "corrupt",
		Short: "Corrupt a noise buffer and report the damage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			err := a.finish(func(c *config.Config) {
				if flags.Changed("size") {
					c.BufferSize = size
				}
				if flags.Changed("rate") {
					c.ErrorRate = rate
				}
				if flags.Changed("loss") {
					c.LossRate = loss
				}
				if flags.Changed("packet-size") {
					c.PacketSize = packetSize
				}
				if flags.Changed("erasures") {
					c.Erasures = erasures
				}
			})
			if err != nil {
				return err
			}
			cfg := a.cfg

			v := integrity.NewValidator(integrity.WithLogger(a.logger))
			inj := chaos.New(seed)
			src := generators.NoisePattern(cfg.BufferSize, seed)

			flipped, err := inj.CorruptCopy(src, cfg.ErrorRate)
			if err != nil {
				return err
			}
			lost := bytes.Clone(src)
			dropped, err := inj.SimulatePacketLoss(lost, cfg.LossRate, cfg.PacketSize)
			if err != nil {
				return err
			}
			erased := bytes.Clone(src)
			positions, err := inj.InjectErasures(erased, cfg.Erasures)
			if err != nil {
				return err
			}

			a.logger.Debug().
				Uint64("seed", seed).
				Int("size", len(src)).
				Ints("dropped_packets", dropped).
				Int("erased", len(positions)).
				Msg("buffer corrupted")

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, kv("source", fmt.Sprintf("%016x", integrity.Fingerprint(src))))
			fmt.Fprintln(out, kv("bitflip", fmt.Sprintf("%016x", integrity.Fingerprint(flipped))))
			fmt.Fprintln(out, kv("packet loss", fmt.Sprintf("%016x dropped=%v", integrity.Fingerprint(lost), dropped)))
			fmt.Fprintln(out, kv("erasures", fmt.Sprintf("%016x erased=%d", integrity.Fingerprint(erased), len(positions))))

			evidence := v.CompareBuffers(src, flipped)
			evidence.Merge(v.CompareBuffers(src, lost))
			evidence.Merge(v.CompareBuffers(src, erased))
			fmt.Fprintln(out, renderReport("Corruption evidence", evidence, true))
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&size, "size", 0, "noise buffer size in bytes (default from config)")
	f.Uint64Var(&seed, "seed", 0, "injector and noise seed")
	f.Float64Var(&rate, "rate", 0, "bit error rate in [0,1] (default from config)")
	f.Float64Var(&loss, "loss", 0, "packet loss rate in [0,1] (default from config)")
	f.IntVar(&packetSize, "packet-size", 0, "packet size in bytes (default from config)")
	f.IntVar(&erasures, "erasures", 0, "number of erasure draws (default from config)")
	return cmd
}
