// Package campaign runs the full fault-injection harness over a range of
// seeds. Each seed gets its own generator, injector and reports, so seeds are
// independent and can run concurrently; reports are merged in seed order.
package campaign

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/23skdu/vsakit/chaos"
	"github.com/23skdu/vsakit/generators"
	"github.com/23skdu/vsakit/integrity"
	"github.com/23skdu/vsakit/internal/arrowio"
	kerrors "github.com/23skdu/vsakit/internal/errors"
	"github.com/23skdu/vsakit/internal/metrics"
	"github.com/23skdu/vsakit/sparse"
	"github.com/23skdu/vsakit/timing"
)

var ErrInvalidConfig = errors.New("invalid campaign configuration")

// pcgStream decorrelates the random-mode stream from the DSG stream of the
// same seed.
const pcgStream = 0x9e3779b97f4a7c15

// Config describes one campaign.
type Config struct {
	Seeds      int
	StartSeed  uint64
	Dims       int
	Sparsity   int
	BufferSize int
	ErrorRate  float64
	LossRate   float64
	PacketSize int
	Erasures   int
	// Workers bounds concurrent seeds; 0 means GOMAXPROCS.
	Workers int
	Verbose bool
}

// DefaultConfig returns a small campaign suitable for CI.
func DefaultConfig() Config {
	return Config{
		Seeds:      64,
		Dims:       10000,
		Sparsity:   100,
		BufferSize: 4096,
		ErrorRate:  0.01,
		LossRate:   0.1,
		PacketSize: 256,
		Erasures:   16,
	}
}

// Validate checks the bounds each chaos and generator operation would
// otherwise reject per seed.
func (c Config) Validate() error {
	const op = "campaign.Validate"
	switch {
	case c.Seeds <= 0:
		return kerrors.Contract(ErrInvalidConfig, op, fmt.Sprintf("seeds=%d", c.Seeds))
	case c.Dims <= 0:
		return kerrors.Contract(ErrInvalidConfig, op, fmt.Sprintf("dims=%d", c.Dims))
	case c.Sparsity < 0 || c.Sparsity > c.Dims:
		return kerrors.Contract(ErrInvalidConfig, op, fmt.Sprintf("sparsity=%d dims=%d", c.Sparsity, c.Dims))
	case c.BufferSize < 0:
		return kerrors.Contract(ErrInvalidConfig, op, fmt.Sprintf("buffer_size=%d", c.BufferSize))
	case !(c.ErrorRate >= 0 && c.ErrorRate <= 1):
		return kerrors.Contract(ErrInvalidConfig, op, fmt.Sprintf("error_rate=%v", c.ErrorRate))
	case !(c.LossRate >= 0 && c.LossRate <= 1):
		return kerrors.Contract(ErrInvalidConfig, op, fmt.Sprintf("loss_rate=%v", c.LossRate))
	case c.PacketSize <= 0:
		return kerrors.Contract(ErrInvalidConfig, op, fmt.Sprintf("packet_size=%d", c.PacketSize))
	case c.Erasures < 0:
		return kerrors.Contract(ErrInvalidConfig, op, fmt.Sprintf("erasures=%d", c.Erasures))
	case c.Workers < 0:
		return kerrors.Contract(ErrInvalidConfig, op, fmt.Sprintf("workers=%d", c.Workers))
	}
	return nil
}

// Result aggregates a finished campaign.
type Result struct {
	RunID string
	Seeds int
	// Health holds checks that must pass for a correct harness and engine.
	Health *integrity.IntegrityReport
	// Faults holds evidence that injected damage was observed. Failures here
	// are expected.
	Faults *integrity.IntegrityReport
	// Timing summarizes per-seed wall time.
	Timing timing.Stats
	// Metrics holds the per-seed samples, outcome counts and the process
	// resident set size sampled before and after the seeds ran.
	Metrics *timing.Metrics
}

// Healthy reports whether every health check passed.
func (r *Result) Healthy() bool {
	return r.Health.IsOK()
}

type seedOutcome struct {
	health  *integrity.IntegrityReport
	faults  *integrity.IntegrityReport
	elapsed time.Duration
}

type runner struct {
	cfg       Config
	engine    integrity.Engine
	validator *integrity.Validator
	codec     *arrowio.Codec
}

// Run executes cfg.Seeds seeds starting at cfg.StartSeed. engine may be nil,
// in which case the algebraic checks are skipped. Cancelling ctx stops
// scheduling new seeds and Run returns the context error.
func Run(ctx context.Context, cfg Config, engine integrity.Engine, logger zerolog.Logger) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	runID := uuid.NewString()
	logger = logger.With().Str("run_id", runID).Logger()

	opts := []integrity.Option{integrity.WithLogger(logger)}
	if engine != nil {
		opts = append(opts, integrity.WithEngine(engine))
	}
	if cfg.Verbose {
		opts = append(opts, integrity.WithVerbose())
	}
	r := &runner{
		cfg:       cfg,
		engine:    engine,
		validator: integrity.NewValidator(opts...),
		codec:     arrowio.NewCodec(nil),
	}

	m := timing.NewMetrics("campaign")
	sampleMemory(m, logger)

	logger.Info().
		Int("seeds", cfg.Seeds).
		Uint64("start_seed", cfg.StartSeed).
		Int("workers", workers).
		Bool("engine", engine != nil).
		Msg("campaign started")

	outcomes := make([]seedOutcome, cfg.Seeds)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := 0; i < cfg.Seeds; i++ {
		if gctx.Err() != nil {
			break
		}
		seed := cfg.StartSeed + uint64(i)
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			start := time.Now()
			health, faults, err := r.runSeed(seed)
			if err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}
			elapsed := time.Since(start)
			outcomes[i] = seedOutcome{health: health, faults: faults, elapsed: elapsed}

			outcome := "healthy"
			if !health.IsOK() {
				outcome = "unhealthy"
			}
			metrics.CampaignSeedDurationSeconds.Observe(elapsed.Seconds())
			metrics.CampaignSeedsTotal.WithLabelValues(outcome).Inc()

			logger.Debug().
				Uint64("seed", seed).
				Dur("elapsed", elapsed).
				Str("outcome", outcome).
				Uint64("fault_evidence", faults.Failed()).
				Msg("seed complete")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sampleMemory(m, logger)

	res := &Result{
		RunID:   runID,
		Seeds:   cfg.Seeds,
		Health:  integrity.NewReport(),
		Faults:  integrity.NewReport(),
		Metrics: m,
	}
	for _, o := range outcomes {
		res.Health.Merge(o.health)
		res.Faults.Merge(o.faults)
		m.TimingsNs = append(m.TimingsNs, uint64(o.elapsed.Nanoseconds()))
		if o.health.IsOK() {
			m.IncOp("healthy")
		} else {
			m.IncOp("unhealthy")
			m.RecordError()
		}
	}
	m.RecordMetric("checks", float64(res.Health.ChecksTotal))
	m.RecordMetric("fault_evidence", float64(res.Faults.Failed()))
	res.Timing = m.Stats()

	ev := logger.Info()
	if !res.Healthy() {
		ev = logger.Error()
	}
	ev.Uint64("checks", res.Health.ChecksTotal).
		Uint64("health_failures", res.Health.Failed()).
		Uint64("fault_evidence", res.Faults.Failed()).
		Dur("p95_seed", time.Duration(res.Timing.P95Ns)).
		Msg("campaign finished")
	return res, nil
}

// sampleMemory records the resident set size. A failed sample is counted as a
// warning and does not fail the campaign.
func sampleMemory(m *timing.Metrics, logger zerolog.Logger) {
	if err := m.RecordProcessMemory(); err != nil {
		m.RecordWarning()
		logger.Warn().Err(err).Msg("sample process memory")
	}
}

func (r *runner) runSeed(seed uint64) (health, faults *integrity.IntegrityReport, err error) {
	health = integrity.NewReport()
	faults = integrity.NewReport()

	a, b, err := r.vectors(seed, health)
	if err != nil {
		return nil, nil, err
	}
	r.algebra(a, b, health)
	if err := r.buffers(seed, health, faults); err != nil {
		return nil, nil, err
	}
	if err := r.transport(seed, []sparse.SparseVec{a, b}, health, faults); err != nil {
		return nil, nil, err
	}
	return health, faults, nil
}

// vectors produces the deterministic and random vectors for seed and checks
// their shape and the reproducibility of deterministic mode.
func (r *runner) vectors(seed uint64, health *integrity.IntegrityReport) (sparse.SparseVec, sparse.SparseVec, error) {
	v, dims, sparsity := r.validator, r.cfg.Dims, r.cfg.Sparsity

	a, err := generators.DeterministicSparseVec(dims, sparsity, seed)
	if err != nil {
		return sparse.SparseVec{}, sparse.SparseVec{}, err
	}
	again, err := generators.DeterministicSparseVec(dims, sparsity, seed)
	if err != nil {
		return sparse.SparseVec{}, sparse.SparseVec{}, err
	}
	health.Merge(v.DetectDifferences(a, again))
	health.Merge(v.ValidateSparseDims(a, dims))

	src := rand.New(rand.NewPCG(seed, seed^pcgStream))
	b, err := generators.RandomSparseVec(src, dims, sparsity)
	if err != nil {
		return sparse.SparseVec{}, sparse.SparseVec{}, err
	}
	health.Merge(v.ValidateSparseDims(b, dims))
	return a, b, nil
}

func (r *runner) algebra(a, b sparse.SparseVec, health *integrity.IntegrityReport) {
	if sparse.Dot(a, b) != sparse.Dot(b, a) {
		health.RecordInvariantViolation("Dot symmetry violation in oracle")
	} else {
		health.Pass()
	}

	if r.engine == nil {
		return
	}
	health.Merge(r.validator.ValidateBindInvariants(a, b))
	health.Merge(r.validator.ValidateBundleInvariants(a, b))
	if _, ok := r.engine.(integrity.Dotter); ok {
		health.Merge(r.validator.ValidateDot(a, b))
	}
}

// buffers corrupts a noise buffer three ways. Reproducibility and
// non-mutation go to health; the observed damage goes to faults.
func (r *runner) buffers(seed uint64, health, faults *integrity.IntegrityReport) error {
	v, cfg := r.validator, r.cfg
	inj := chaos.New(seed)

	src := generators.NoisePattern(cfg.BufferSize, seed)
	fp := integrity.Fingerprint(src)

	first, err := inj.CorruptCopy(src, cfg.ErrorRate)
	if err != nil {
		return err
	}
	second, err := inj.CorruptCopy(src, cfg.ErrorRate)
	if err != nil {
		return err
	}
	health.Merge(v.VerifyFingerprint(second, integrity.Fingerprint(first)))
	health.Merge(v.VerifyFingerprint(src, fp))
	faults.Merge(v.CompareBuffers(src, first))

	lost := bytes.Clone(src)
	dropped, err := inj.SimulatePacketLoss(lost, cfg.LossRate, cfg.PacketSize)
	if err != nil {
		return err
	}
	zeroed := true
	for _, p := range dropped {
		start := p * cfg.PacketSize
		end := min(start+cfg.PacketSize, len(lost))
		zeroed = zeroed && allZero(lost[start:end])
	}
	if zeroed {
		health.Pass()
	} else {
		health.Failf("packet loss: dropped packets of seed %d not zeroed", seed)
	}
	faults.Merge(v.CompareBuffers(src, lost))

	erased := bytes.Clone(src)
	positions, err := inj.InjectErasures(erased, cfg.Erasures)
	if err != nil {
		return err
	}
	zeroed = true
	for _, p := range positions {
		zeroed = zeroed && erased[p] == 0
	}
	if zeroed {
		health.Pass()
	} else {
		health.Failf("erasures: positions of seed %d not zeroed", seed)
	}
	faults.Merge(v.CompareBuffers(src, erased))
	return nil
}

// transport round-trips vecs through the Arrow codec, first clean and then
// with the payload corrupted in flight.
func (r *runner) transport(seed uint64, vecs []sparse.SparseVec, health, faults *integrity.IntegrityReport) error {
	v := r.validator
	payload, err := r.codec.Encode(vecs)
	if err != nil {
		return err
	}

	clean, err := r.codec.Decode(payload)
	switch {
	case err != nil:
		health.Failf("transport: clean payload of seed %d did not decode: %v", seed, err)
	case len(clean) != len(vecs):
		health.Failf("transport: clean payload decoded %d of %d vectors", len(clean), len(vecs))
	default:
		for i := range vecs {
			health.Merge(v.DetectDifferences(vecs[i], clean[i]))
		}
	}

	// The schema message is shared by every payload and Decode refuses any
	// other encoding of it outright; faults go into the record batch.
	n, err := arrowio.SchemaMessageLen()
	if err != nil {
		return err
	}
	batch, err := chaos.New(seed).CorruptCopy(payload[n:], r.cfg.ErrorRate)
	if err != nil {
		return err
	}
	corrupted := append(bytes.Clone(payload[:n]), batch...)
	got, err := r.codec.Decode(corrupted)
	switch {
	case err != nil:
		faults.RecordCorruption()
		faults.Failf("transport: corrupted payload rejected: %v", err)
	case len(got) != len(vecs):
		faults.RecordCorruption()
		faults.Failf("transport: corrupted payload decoded %d of %d vectors", len(got), len(vecs))
	default:
		for i := range vecs {
			faults.Merge(v.DetectDifferences(vecs[i], got[i]))
		}
	}
	return nil
}

func allZero(b []byte) bool {
	for _, x := range b {
		if x != 0 {
			return false
		}
	}
	return true
}
