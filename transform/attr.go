package transform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"csspipe/css"
	"csspipe/state"
)

// RunAttr is the attr subcommand: it transforms the value of a single HTML
// style attribute. With dependency analysis requested the result is printed
// as JSON.
func RunAttr(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("attr")

	if cmd.Args().Len() == 0 {
		return errors.New("no style attribute has been specified")
	}
	code, fname := cmd.Args().Get(0), cmd.Args().Get(1)
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	if err := applyOverrides(cmd, &env.Cfg.Transform); err != nil {
		return err
	}
	if err := env.Prepare(); err != nil {
		return err
	}

	out := os.Stdout
	if len(fname) > 0 {
		if out, err = os.Create(fname); err != nil {
			return fmt.Errorf("unable to create destination file '%s': %w", fname, err)
		}
		defer out.Close()
	}
	return transformAttr(env, code, out, log)
}

func transformAttr(env *state.LocalEnv, code string, w io.Writer, log *zap.Logger) error {
	tr := &env.Cfg.Transform

	attr, err := css.ParseStyleAttribute(code, css.ParserOptions{
		Filename:      "style",
		ErrorRecovery: tr.ErrorRecovery,
		Logger:        log,
	})
	if err != nil {
		return err
	}
	if tr.Minify {
		attr.Minify(css.MinifyOptions{Targets: env.Targets})
	}
	if env.Rpt != nil {
		env.Rpt.StoreData("dump/style.txt", []byte(attr.Dump()))
	}

	res, err := attr.ToCSS(css.PrinterOptions{
		Minify:              tr.Minify,
		AnalyzeDependencies: tr.AnalyzeDependencies,
	})
	if err != nil {
		return err
	}

	var data []byte
	if tr.AnalyzeDependencies {
		if data, err = json.MarshalIndent(res, "", "  "); err != nil {
			return fmt.Errorf("unable to serialize result: %w", err)
		}
	} else {
		data = []byte(res.Code)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("unable to write result: %w", err)
	}
	return nil
}
