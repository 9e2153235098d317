package state

import (
	"errors"
	"fmt"
	"time"
)

// newLocalEnv creates a new LocalEnv instance with default values
func newLocalEnv() *LocalEnv {
	return &LocalEnv{
		start: time.Now(),
	}
}

// Prepare derives parsed transformation options from configuration. It must
// be called after command line overrides were applied to Cfg.
func (e *LocalEnv) Prepare() (err error) {
	if e.Cfg == nil {
		return errors.New("configuration is not loaded")
	}
	tr := &e.Cfg.Transform
	if e.Targets, err = tr.Browsers(); err != nil {
		return fmt.Errorf("unable to parse browser targets: %w", err)
	}
	if e.Modules, err = tr.ModulesConfig(); err != nil {
		return fmt.Errorf("unable to parse css modules pattern: %w", err)
	}
	e.UnusedSymbols = tr.UnusedSymbolSet()
	return nil
}
