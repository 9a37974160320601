package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables overriding file values
const (
	EnvTargetLanguages = "CAPTIONS_TARGET_LANGUAGES"
	EnvAWSRegion       = "AWS_REGION"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port int    `yaml:"port"`
		Host string `yaml:"host"`
	} `yaml:"server"`

	Workers struct {
		Count     int `yaml:"count"`
		QueueSize int `yaml:"queue_size"`
	} `yaml:"workers"`

	AWS struct {
		Region       string        `yaml:"region"`
		OutputBucket string        `yaml:"output_bucket"`
		MediaBucket  string        `yaml:"media_bucket"`
		MediaPrefix  string        `yaml:"media_prefix"`
		JobPrefix    string        `yaml:"job_prefix"`
		FetchTimeout time.Duration `yaml:"fetch_timeout"`
	} `yaml:"aws"`

	Transcription struct {
		Provider     string        `yaml:"provider"`
		PollInterval time.Duration `yaml:"poll_interval"`
		Timeout      time.Duration `yaml:"timeout"`
		Languages    []string      `yaml:"languages"`
	} `yaml:"transcription"`

	Captions struct {
		MaxDuration     time.Duration `yaml:"max_duration"`
		MaxChars        int           `yaml:"max_chars"`
		BreakOn         string        `yaml:"break_on"`
		TargetLanguages string        `yaml:"target_languages"`
	} `yaml:"captions"`

	Storage struct {
		OutputDir string `yaml:"output_dir"`
		RawDir    string `yaml:"raw_dir"`
		Database  string `yaml:"database"`
	} `yaml:"storage"`

	Cleanup struct {
		IntervalMinutes int `yaml:"interval_minutes"`
		MaxAgeHours     int `yaml:"max_age_hours"`
	} `yaml:"cleanup"`

	GoogleDrive struct {
		CredentialsFile string `yaml:"credentials_file"`
		TokenFile       string `yaml:"token_file"`
		FolderName      string `yaml:"folder_name"`
	} `yaml:"google_drive"`

	Limits struct {
		MaxFileSizeMB int `yaml:"max_file_size_mb"`
	} `yaml:"limits"`

	Events struct {
		Buffer int `yaml:"buffer"`
	} `yaml:"events"`
}

// Load reads configuration from a YAML file, applies defaults and environment overrides
func Load(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(file)
}

// Parse decodes YAML configuration, applies defaults and environment overrides
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	config.applyDefaults()
	config.applyEnv()

	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Workers.Count == 0 {
		c.Workers.Count = 2
	}
	if c.Workers.QueueSize == 0 {
		c.Workers.QueueSize = 100
	}
	if c.AWS.JobPrefix == "" {
		c.AWS.JobPrefix = "captions"
	}
	if c.AWS.FetchTimeout == 0 {
		c.AWS.FetchTimeout = 30 * time.Second
	}
	if c.Transcription.Provider == "" {
		c.Transcription.Provider = "aws-transcribe"
	}
	if c.Transcription.PollInterval == 0 {
		c.Transcription.PollInterval = 5 * time.Second
	}
	if c.Transcription.Timeout == 0 {
		c.Transcription.Timeout = 2 * time.Hour
	}
	if c.Captions.MaxDuration == 0 {
		c.Captions.MaxDuration = 3500 * time.Millisecond
	}
	if c.Captions.MaxChars == 0 {
		c.Captions.MaxChars = 42
	}
	if c.Storage.OutputDir == "" {
		c.Storage.OutputDir = "outputs"
	}
	if c.Storage.RawDir == "" {
		c.Storage.RawDir = "raw"
	}
	if c.Storage.Database == "" {
		c.Storage.Database = "captions.db"
	}
	if c.Cleanup.IntervalMinutes == 0 {
		c.Cleanup.IntervalMinutes = 60
	}
	if c.GoogleDrive.FolderName == "" {
		c.GoogleDrive.FolderName = "Captions"
	}
	if c.AWS.MediaPrefix == "" {
		c.AWS.MediaPrefix = "uploads"
	}
	if c.Limits.MaxFileSizeMB == 0 {
		c.Limits.MaxFileSizeMB = 500
	}
	if c.Events.Buffer == 0 {
		c.Events.Buffer = 500
	}
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv(EnvTargetLanguages); ok {
		c.Captions.TargetLanguages = v
	}
	if v := os.Getenv(EnvAWSRegion); v != "" {
		c.AWS.Region = v
	}
}

func (c *Config) validate() error {
	switch {
	case c.Server.Port < 0 || c.Server.Port > 65535:
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	case c.Workers.Count < 0:
		return fmt.Errorf("invalid worker count %d", c.Workers.Count)
	case c.Transcription.PollInterval < 0 || c.Transcription.Timeout < 0:
		return fmt.Errorf("poll interval and timeout must be positive")
	case c.Captions.MaxDuration < 0 || c.Captions.MaxChars < 0:
		return fmt.Errorf("caption limits must be positive")
	}
	return nil
}

// TargetLanguages returns the configured translation targets
func (c *Config) TargetLanguages() []string {
	return ParseLanguages(c.Captions.TargetLanguages)
}

// ParseLanguages splits a comma separated language list, dropping blanks
func ParseLanguages(list string) []string {
	var langs []string
	for _, l := range strings.Split(list, ",") {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	return langs
}
