package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"

	"csspipe/css"
	"csspipe/css/modules"
	"csspipe/css/targets"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	TemplateFieldName string

	CSSModulesConfig struct {
		Enable       bool   `yaml:"enable"`
		Pattern      string `yaml:"pattern" validate:"required_if=Enable true"`
		DashedIdents bool   `yaml:"dashed_idents"`
	}

	TransformConfig struct {
		Minify              bool              `yaml:"minify"`
		Targets             []string          `yaml:"targets" validate:"dive,required"`
		ErrorRecovery       bool              `yaml:"error_recovery"`
		CustomMedia         bool              `yaml:"custom_media"`
		AnalyzeDependencies bool              `yaml:"analyze_dependencies"`
		SourceMap           SourceMapMode     `yaml:"source_map" validate:"gte=0"`
		ProjectRoot         string            `yaml:"project_root" sanitize:"path_clean"`
		UnusedSymbols       []string          `yaml:"unused_symbols" validate:"dive,required"`
		Manifest            bool              `yaml:"manifest"`
		OutputNameTemplate  string            `yaml:"output_name_template"`
		CSSModules          CSSModulesConfig  `yaml:"css_modules"`
		PseudoClasses       css.PseudoClasses `yaml:"pseudo_classes"`
	}

	CacheConfig struct {
		Enable bool   `yaml:"enable"`
		Path   string `yaml:"path" sanitize:"path_clean" validate:"required_if=Enable true,omitempty,filepath"`
	}

	Config struct {
		Version   int             `yaml:"version" validate:"eq=1"`
		Transform TransformConfig `yaml:"transform"`
		Cache     CacheConfig     `yaml:"cache"`
		Logging   LoggingConfig   `yaml:"logging"`
		Reporting ReporterConfig  `yaml:"reporting"`
	}
)

const (
	// NOTE: must match yaml field name above
	OutputNameTemplateFieldName TemplateFieldName = "output_name_template"
)

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(string(OutputNameTemplateFieldName)),
)

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, err
		}
		if err := cfg.Transform.check(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// check validates values which validator tags cannot express.
func (t *TransformConfig) check() error {
	if _, err := targets.Parse(t.Targets); err != nil {
		return fmt.Errorf("transform.targets: %w", err)
	}
	if t.CSSModules.Enable {
		if _, err := modules.ParsePattern(t.CSSModules.Pattern); err != nil {
			return fmt.Errorf("transform.css_modules.pattern: %w", err)
		}
	}
	return nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, append(requiredOptions, options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl, requiredOptions...)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}

// Browsers returns parsed transform targets, nil when none are configured.
func (t *TransformConfig) Browsers() (*targets.Browsers, error) {
	if len(t.Targets) == 0 {
		return nil, nil
	}
	return targets.Parse(t.Targets)
}

// ModulesConfig returns CSS modules settings, nil when modules are disabled.
func (t *TransformConfig) ModulesConfig() (*modules.Config, error) {
	if !t.CSSModules.Enable {
		return nil, nil
	}
	pattern, err := modules.ParsePattern(t.CSSModules.Pattern)
	if err != nil {
		return nil, err
	}
	return &modules.Config{Pattern: pattern, DashedIdents: t.CSSModules.DashedIdents}, nil
}

// UnusedSymbolSet returns unused symbols as a set, nil when empty.
func (t *TransformConfig) UnusedSymbolSet() map[string]struct{} {
	if len(t.UnusedSymbols) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(t.UnusedSymbols))
	for _, s := range t.UnusedSymbols {
		set[s] = struct{}{}
	}
	return set
}
