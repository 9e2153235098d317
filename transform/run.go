package transform

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"csspipe/config"
	"csspipe/state"
)

// Run is the transform subcommand: every source style sheet is parsed,
// optionally scoped and minified and printed into destination directory.
func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("transform")

	sources := cmd.Args().Slice()
	if len(sources) == 0 {
		return errors.New("no input source has been specified")
	}

	dst := cmd.String("out")
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}

	if err := applyOverrides(cmd, &env.Cfg.Transform); err != nil {
		return err
	}
	if cmd.Bool("no-cache") {
		env.Cfg.Cache.Enable = false
	}
	env.NoDirs, env.Overwrite = cmd.Bool("nodirs"), cmd.Bool("overwrite")
	if err := env.Prepare(); err != nil {
		return err
	}

	p := &processor{env: env, dst: dst, log: log}
	if env.Cfg.Cache.Enable {
		if p.cache, err = openCache(env.Cfg.Cache.Path, &env.Cfg.Transform, env.NoDirs, log); err != nil {
			log.Warn("Unable to open cache, continuing without it", zap.Error(err))
		}
		defer func() {
			if er := p.cache.Close(); er != nil {
				log.Warn("Unable to close cache", zap.Error(er))
			}
		}()
	}

	inputs, err := collectInputs(ctx, sources, log)
	if err != nil {
		return err
	}

	log.Info("Processing starting", zap.Strings("sources", sources), zap.String("destination", dst), zap.Int("style sheets", len(inputs)))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return processAll(ctx, p, inputs)
}

// processAll handles inputs one by one. Failure of a single style sheet does
// not stop processing, all failures are returned together.
func processAll(ctx context.Context, p *processor, inputs []input) (err error) {
	count := 0
	for _, in := range inputs {
		if er := ctx.Err(); er != nil {
			return multierr.Append(err, er)
		}
		if er := p.process(ctx, in); er != nil {
			p.log.Error("Unable to process style sheet", zap.String("source", in.origin), zap.Error(er))
			err = multierr.Append(err, fmt.Errorf("%s: %w", in.name, er))
			continue
		}
		count++
	}
	p.log.Debug("Style sheets processed", zap.Int("ok", count), zap.Int("failed", len(multierr.Errors(err))))
	return err
}

// applyOverrides changes configured transformation options with explicitly
// set command line flags.
func applyOverrides(cmd *cli.Command, tr *config.TransformConfig) error {
	if cmd.IsSet("minify") {
		tr.Minify = cmd.Bool("minify")
	}
	if cmd.IsSet("modules") {
		tr.CSSModules.Enable = cmd.Bool("modules")
	}
	if cmd.IsSet("pattern") {
		tr.CSSModules.Pattern = cmd.String("pattern")
	}
	if cmd.IsSet("dashed-idents") {
		tr.CSSModules.DashedIdents = cmd.Bool("dashed-idents")
	}
	if cmd.IsSet("targets") {
		tr.Targets = cmd.StringSlice("targets")
	}
	if cmd.IsSet("source-map") {
		mode, err := config.ParseSourceMapMode(cmd.String("source-map"))
		if err != nil {
			return err
		}
		tr.SourceMap = mode
	}
	if cmd.IsSet("error-recovery") {
		tr.ErrorRecovery = cmd.Bool("error-recovery")
	}
	if cmd.IsSet("custom-media") {
		tr.CustomMedia = cmd.Bool("custom-media")
	}
	if cmd.IsSet("deps") {
		tr.AnalyzeDependencies = cmd.Bool("deps")
	}
	return nil
}
