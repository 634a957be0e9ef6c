// Package config loads the runner configuration from a YAML file or from
// command-line flags.
package config

import (
	"flag"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	defaultRequestTimeout = 5 * time.Second
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryAttempts  = 3
	defaultJournalDir     = "./journal"
)

// Config is everything the runner needs for one participant session.
type Config struct {
	StoreURL      string
	ExperimentID  string
	ParticipantID string
	// Resume states that a progress record is expected to exist. It must be
	// set by whoever creates the run link, never inferred.
	Resume         bool
	RequestTimeout time.Duration
	RetryBaseDelay time.Duration
	RetryAttempts  int
	JournalDir     string
}

type configYaml struct {
	StoreURL       string        `yaml:"store_url"`
	ExperimentID   string        `yaml:"experiment_id"`
	ParticipantID  string        `yaml:"participant_id,omitempty"`
	Resume         bool          `yaml:"resume,omitempty"`
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay,omitempty"`
	RetryAttempts  int           `yaml:"retry_attempts,omitempty"`
	JournalDir     string        `yaml:"journal_dir,omitempty"`
}

// Get reads the configuration, preferring --config when given.
func Get() (Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	storeURL := flag.String("store", "", "base URL of the experiment store")
	experimentID := flag.String("experiment", "", "experiment id to run")
	participantID := flag.String("participant", "", "participant id, generated when empty")
	resume := flag.Bool("resume", false, "resume an already started run")
	requestTimeout := flag.Duration("request-timeout", defaultRequestTimeout, "per-request network timeout")
	retryBaseDelay := flag.Duration("retry-base-delay", defaultRetryBaseDelay, "base delay between write retries")
	retryAttempts := flag.Int("retry-attempts", defaultRetryAttempts, "total attempts per network operation")
	journalDir := flag.String("journal-dir", defaultJournalDir, "directory for the local completion journal")
	flag.Parse()

	if *configPath != "" {
		return getYaml(*configPath)
	}

	cfg := Config{
		StoreURL:       *storeURL,
		ExperimentID:   *experimentID,
		ParticipantID:  *participantID,
		Resume:         *resume,
		RequestTimeout: *requestTimeout,
		RetryBaseDelay: *retryBaseDelay,
		RetryAttempts:  *retryAttempts,
		JournalDir:     *journalDir,
	}
	return finalize(cfg)
}

func getYaml(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config file")
	}

	var tmp configYaml
	if err := yaml.Unmarshal(raw, &tmp); err != nil {
		return Config{}, errors.Wrap(err, "parse config file")
	}

	cfg := Config{
		StoreURL:       tmp.StoreURL,
		ExperimentID:   tmp.ExperimentID,
		ParticipantID:  tmp.ParticipantID,
		Resume:         tmp.Resume,
		RequestTimeout: tmp.RequestTimeout,
		RetryBaseDelay: tmp.RetryBaseDelay,
		RetryAttempts:  tmp.RetryAttempts,
		JournalDir:     tmp.JournalDir,
	}
	return finalize(cfg)
}

func finalize(cfg Config) (Config, error) {
	if cfg.StoreURL == "" {
		return Config{}, errors.New("store URL is required ('store_url' in yaml, --store on the CLI)")
	}
	if cfg.ExperimentID == "" {
		return Config{}, errors.New("experiment id is required ('experiment_id' in yaml, --experiment on the CLI)")
	}
	if cfg.ParticipantID == "" {
		if cfg.Resume {
			return Config{}, errors.New("resuming requires the original participant id")
		}
		cfg.ParticipantID = uuid.NewString()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = defaultRetryBaseDelay
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = defaultRetryAttempts
	}
	if cfg.JournalDir == "" {
		cfg.JournalDir = defaultJournalDir
	}
	return cfg, nil
}
