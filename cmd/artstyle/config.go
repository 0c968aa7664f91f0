package main

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anatolykoptev/go-artstyle"
)

// settings is the resolved CLI configuration.
type settings struct {
	CorpusRoot         string            `mapstructure:"corpus_root"`
	Manifest           string            `mapstructure:"manifest"`
	IndexDir           string            `mapstructure:"index_dir"`
	Strategy           string            `mapstructure:"strategy"`
	Temperature        float64           `mapstructure:"temperature"`
	FilenameWeight     float64           `mapstructure:"filename_weight"`
	MaxSamplesPerLabel int               `mapstructure:"max_samples_per_label"`
	Workers            int               `mapstructure:"workers"`
	DedupThreshold     int               `mapstructure:"dedup_threshold"`
	BuildRetryInterval time.Duration     `mapstructure:"build_retry_interval"`
	Extractor          extractorSettings `mapstructure:"extractor"`

	Addr          string `mapstructure:"addr"`
	HistoryDB     string `mapstructure:"history_db"`
	MaxConcurrent int64  `mapstructure:"max_concurrent"`
	LogLevel      string `mapstructure:"log_level"`
}

type extractorSettings struct {
	Method      string `mapstructure:"method"`
	ModelPath   string `mapstructure:"model_path"`
	LibraryPath string `mapstructure:"library_path"`
}

var defaultSettings = map[string]any{
	"corpus_root":            "dataset",
	"manifest":               "",
	"index_dir":              ".artstyle/index",
	"strategy":               string(artstyle.StrategyCentroid),
	"temperature":            artstyle.DefaultTemperature,
	"filename_weight":        artstyle.DefaultFilenameWeight,
	"max_samples_per_label":  artstyle.DefaultMaxSamplesPerLabel,
	"workers":                runtime.GOMAXPROCS(0),
	"dedup_threshold":        0,
	"build_retry_interval":   artstyle.DefaultBuildRetryInterval,
	"extractor.method":       string(artstyle.MethodAuto),
	"extractor.model_path":   "",
	"extractor.library_path": "",
	"addr":                   ":8000",
	"history_db":             ".artstyle/history.db",
	"max_concurrent":         4,
	"log_level":              "info",
}

// flagKeys maps command-line flags to settings keys.
var flagKeys = map[string]string{
	"corpus-root": "corpus_root",
	"manifest":    "manifest",
	"index-dir":   "index_dir",
	"extractor":   "extractor.method",
	"model-path":  "extractor.model_path",
	"log-level":   "log_level",
	"strategy":    "strategy",
	"addr":        "addr",
	"history-db":  "history_db",
}

// loadSettings resolves settings for cmd from its flags, ARTSTYLE_* env and
// the config file.
func loadSettings(cmd *cobra.Command) (*settings, error) {
	v := viper.New()
	for k, d := range defaultSettings {
		v.SetDefault(k, d)
	}

	v.SetEnvPrefix("ARTSTYLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	configPath, _ := cmd.Flags().GetString("config")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("artstyle")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var s settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &s, nil
}

// serviceConfig builds the library configuration. The strategy and manifest
// are validated here so bad settings fail before any corpus work.
func (s *settings) serviceConfig(cmd *cobra.Command) (artstyle.Config, error) {
	logger, err := newLogger(cmd.ErrOrStderr(), s.LogLevel)
	if err != nil {
		return artstyle.Config{}, err
	}
	strategy, err := artstyle.ParseStrategy(s.Strategy)
	if err != nil {
		return artstyle.Config{}, err
	}

	var manifest *artstyle.Manifest
	if s.Manifest != "" {
		if manifest, err = artstyle.LoadManifest(s.Manifest); err != nil {
			return artstyle.Config{}, err
		}
	}

	return artstyle.Config{
		CorpusRoot: s.CorpusRoot,
		Manifest:   manifest,
		IndexDir:   s.IndexDir,
		Extractor: artstyle.ExtractorConfig{
			Method:      artstyle.Method(strings.ToLower(s.Extractor.Method)),
			ModelPath:   s.Extractor.ModelPath,
			LibraryPath: s.Extractor.LibraryPath,
		},
		Strategy:           strategy,
		Temperature:        s.Temperature,
		FilenameWeight:     s.FilenameWeight,
		MaxSamplesPerLabel: s.MaxSamplesPerLabel,
		Workers:            s.Workers,
		DedupThreshold:     s.DedupThreshold,
		BuildRetryInterval: s.BuildRetryInterval,
		Logger:             logger,
	}, nil
}

// newService resolves settings and constructs the classification service.
func newService(cmd *cobra.Command) (*artstyle.Service, *settings, error) {
	s, err := loadSettings(cmd)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := s.serviceConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	svc, err := artstyle.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return svc, s, nil
}
