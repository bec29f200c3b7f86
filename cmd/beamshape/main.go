package main

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/config"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/logging"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/shape"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/store"
)

// #region app
// app carries what every subcommand shares.
type app struct {
	env     config.Env
	log     *slog.Logger
	noColor bool
	jobPath string
}

func (a *app) openStore() (*store.Store, error) {
	s, err := store.NewStore(a.env.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", a.env.DBPath, err)
	}
	return s, nil
}

// job loads the job file, or the defaults when none was given, with the
// environment applied.
func (a *app) job() (*config.Job, error) {
	var j *config.Job
	if a.jobPath == "" {
		d := config.DefaultJob()
		j = &d
	} else {
		var err error
		if j, err = config.LoadJob(a.jobPath); err != nil {
			return nil, err
		}
	}
	j.Apply(a.env)
	return j, nil
}

// model builds the job's model with its parameters applied. A nil rng
// starts free parameters at their third value or midpoint.
func (a *app) model(name string, j *config.Job, spec shape.ParameterSpec, rng *rand.Rand) (*shape.Model, []shape.NamedValue, error) {
	m, err := shape.New(name, j.ShapeConfig())
	if err != nil {
		return nil, nil, err
	}
	var applied []shape.NamedValue
	if spec != nil {
		if applied, err = m.LoadParameters(spec, rng, a.log); err != nil {
			return nil, nil, fmt.Errorf("load parameters: %w", err)
		}
	}
	vx, vy := j.VtxRes()
	if err := m.SetVtxRes(vx/j.Scaling, vy/j.Scaling, true); err != nil {
		return nil, nil, err
	}
	return m, applied, nil
}

// #endregion app

// #region main
func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "beamshape",
		Short:         "Fit beam-overlap shapes to vertex scans and compute correlation corrections",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			e, err := config.LoadEnv()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("db") {
				e.DBPath, _ = flags.GetString("db")
			}
			if flags.Changed("log-level") {
				e.LogLevel, _ = flags.GetString("log-level")
			}
			if flags.Changed("seed") {
				e.Seed, _ = flags.GetUint64("seed")
			}
			if flags.Changed("workers") {
				e.Workers, _ = flags.GetInt("workers")
			}
			a.env = e
			a.log, err = logging.NewLogger(os.Stderr, e.LogLevel, a.noColor)
			if err != nil {
				return err
			}
			slog.SetDefault(a.log)
			return nil
		},
	}
	pf := root.PersistentFlags()
	pf.String("db", "", "results database (default $BEAMSHAPE_DB)")
	pf.String("log-level", "", "debug, info, warn or error (default $BEAMSHAPE_LOG_LEVEL)")
	pf.Uint64("seed", 0, "random seed (default $BEAMSHAPE_SEED)")
	pf.Int("workers", 0, "correction workers (default $BEAMSHAPE_WORKERS)")
	pf.BoolVar(&a.noColor, "no-color", false, "disable coloured log output")
	pf.StringVar(&a.jobPath, "job", "", "job file (YAML or JSON)")

	root.AddCommand(
		newGenerateCmd(a),
		newFitCmd(a),
		newCorrectCmd(a),
		newClosureCmd(a),
		newOverlapCmd(a),
		newSelectBestCmd(a),
		newInspectCmd(a),
		newModelsCmd(),
	)
	return root
}

// #endregion main
