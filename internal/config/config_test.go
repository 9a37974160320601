package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

// Unset values get the documented defaults.
func TestParseDefaults(t *testing.T) {
	t.Setenv(EnvTargetLanguages, "")
	os.Unsetenv(EnvTargetLanguages)
	t.Setenv(EnvAWSRegion, "")

	cfg, err := Parse([]byte("server:\n  host: 127.0.0.1\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 8080 {
		t.Fatalf("server = %+v", cfg.Server)
	}
	if cfg.Transcription.PollInterval != 5*time.Second || cfg.Transcription.Timeout != 2*time.Hour {
		t.Fatalf("transcription = %+v", cfg.Transcription)
	}
	if cfg.Captions.MaxDuration != 3500*time.Millisecond || cfg.Captions.MaxChars != 42 {
		t.Fatalf("captions = %+v", cfg.Captions)
	}
	if cfg.Transcription.Provider != "aws-transcribe" || cfg.Workers.Count != 2 {
		t.Fatalf("config = %+v", cfg)
	}
	if langs := cfg.TargetLanguages(); len(langs) != 0 {
		t.Fatalf("TargetLanguages() = %v", langs)
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv(EnvAWSRegion, "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
transcription:
  poll_interval: 10s
  timeout: 30m
  languages: [en-US, es-US]
captions:
  max_duration: 2.5s
  max_chars: 32
  break_on: "."
  target_languages: "es, fr,,de "
aws:
  region: eu-west-1
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvTargetLanguages, "")
	os.Unsetenv(EnvTargetLanguages)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Transcription.PollInterval != 10*time.Second || cfg.Transcription.Timeout != 30*time.Minute {
		t.Fatalf("transcription = %+v", cfg.Transcription)
	}
	if !reflect.DeepEqual(cfg.Transcription.Languages, []string{"en-US", "es-US"}) {
		t.Fatalf("languages = %v", cfg.Transcription.Languages)
	}
	if cfg.Captions.MaxDuration != 2500*time.Millisecond || cfg.Captions.MaxChars != 32 || cfg.Captions.BreakOn != "." {
		t.Fatalf("captions = %+v", cfg.Captions)
	}
	if got := cfg.TargetLanguages(); !reflect.DeepEqual(got, []string{"es", "fr", "de"}) {
		t.Fatalf("TargetLanguages() = %v", got)
	}
	if cfg.AWS.Region != "eu-west-1" {
		t.Fatalf("region = %s", cfg.AWS.Region)
	}
}

// Environment values win over the file.
func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvTargetLanguages, "ja,ko")
	t.Setenv(EnvAWSRegion, "us-east-2")

	cfg, err := Parse([]byte("captions:\n  target_languages: es\naws:\n  region: eu-west-1\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.TargetLanguages(); !reflect.DeepEqual(got, []string{"ja", "ko"}) {
		t.Fatalf("TargetLanguages() = %v", got)
	}
	if cfg.AWS.Region != "us-east-2" {
		t.Fatalf("region = %s", cfg.AWS.Region)
	}
}

func TestParseErrors(t *testing.T) {
	for name, data := range map[string]string{
		"bad yaml":     "server: [",
		"bad duration": "captions:\n  max_duration: soon\n",
		"bad port":     "server:\n  port: 70000\n",
	} {
		if _, err := Parse([]byte(data)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file: expected error")
	}
}
