package config

import (
	"flag"
	"os"
	"testing"
	"time"

	"github.com/draftxfer/draft/internal/session"
)

func TestParseSendConfig_Defaults(t *testing.T) {
	os.Clearenv()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := parseSendConfigWithFlagSet(fs, []string{"-service", "127.0.0.1:9000", "-target", "127.0.0.1:9001", "-path", "/tmp/x"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Service != (session.Target{Host: "127.0.0.1", Port: 9000}) {
		t.Errorf("Service = %+v", cfg.Service)
	}
	if len(cfg.Targets) != 1 || cfg.Targets[0] != (session.Target{Host: "127.0.0.1", Port: 9001}) {
		t.Errorf("Targets = %+v", cfg.Targets)
	}
	if cfg.BlockSize != DefaultBlockSize {
		t.Errorf("BlockSize = %d, want %d", cfg.BlockSize, DefaultBlockSize)
	}
	if cfg.BlockCount != DefaultBlockCount {
		t.Errorf("BlockCount = %d, want %d", cfg.BlockCount, DefaultBlockCount)
	}
	if cfg.QueueDepth != DefaultQueueDepth {
		t.Errorf("QueueDepth = %d, want %d", cfg.QueueDepth, DefaultQueueDepth)
	}
	if cfg.DialTimeout != 5*time.Second {
		t.Errorf("DialTimeout = %v, want 5s", cfg.DialTimeout)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestParseSendConfig_Flags(t *testing.T) {
	os.Clearenv()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := parseSendConfigWithFlagSet(fs, []string{
		"-service", "10.0.0.1:7000",
		"-target", "10.0.0.2:7001",
		"-target", "10.0.0.2:7002",
		"-path", "/data/set",
		"-suffix", ".partial",
		"-journal", "/tmp/tx.draftjournal",
		"-block-size", "2048",
		"-block-count", "16",
		"-queue-depth", "32",
		"-read-pool", "8",
		"-dial-timeout", "3s",
		"-log-level", "debug",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cfg.Targets) != 2 {
		t.Fatalf("Targets = %+v, want 2 entries", cfg.Targets)
	}
	if cfg.Path != "/data/set" || cfg.JournalPath != "/tmp/tx.draftjournal" {
		t.Errorf("Path/JournalPath = %q/%q", cfg.Path, cfg.JournalPath)
	}
	if cfg.Suffix != ".partial" {
		t.Errorf("Suffix = %q, want .partial", cfg.Suffix)
	}
	if cfg.BlockSize != 2048 || cfg.BlockCount != 16 || cfg.QueueDepth != 32 || cfg.ReadPoolSize != 8 {
		t.Errorf("sizing = %+v", cfg)
	}
	if cfg.DialTimeout != 3*time.Second {
		t.Errorf("DialTimeout = %v", cfg.DialTimeout)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestParseSendConfig_EnvFallback(t *testing.T) {
	os.Clearenv()

	os.Setenv("DRAFT_SERVICE", "192.168.1.1:5000")
	os.Setenv("DRAFT_TARGETS", "192.168.1.2:5001,192.168.1.3:5001")
	os.Setenv("DRAFT_LOG_LEVEL", "warn")
	defer os.Unsetenv("DRAFT_SERVICE")
	defer os.Unsetenv("DRAFT_TARGETS")
	defer os.Unsetenv("DRAFT_LOG_LEVEL")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := parseSendConfigWithFlagSet(fs, []string{"-path", "/x"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Service != (session.Target{Host: "192.168.1.1", Port: 5000}) {
		t.Errorf("Service = %+v", cfg.Service)
	}
	if len(cfg.Targets) != 2 {
		t.Fatalf("Targets = %+v", cfg.Targets)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
}

func TestParseSendConfig_FlagsOverrideEnv(t *testing.T) {
	os.Clearenv()

	os.Setenv("DRAFT_SERVICE", "192.168.1.1:5000")
	os.Setenv("DRAFT_LOG_LEVEL", "warn")
	defer os.Unsetenv("DRAFT_SERVICE")
	defer os.Unsetenv("DRAFT_LOG_LEVEL")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := parseSendConfigWithFlagSet(fs, []string{
		"-service", "127.0.0.1:1",
		"-target", "127.0.0.1:2",
		"-path", "/x",
		"-log-level", "error",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Service != (session.Target{Host: "127.0.0.1", Port: 1}) {
		t.Errorf("Service = %+v, flag should override env", cfg.Service)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %q, flag should override env", cfg.LogLevel)
	}
}

func TestParseSendConfig_MissingTargetErrors(t *testing.T) {
	os.Clearenv()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	if _, err := parseSendConfigWithFlagSet(fs, []string{"-service", "127.0.0.1:1", "-path", "/x"}); err == nil {
		t.Fatal("expected error for missing -target")
	}
}

func TestParseSendConfig_MissingPathErrors(t *testing.T) {
	os.Clearenv()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	if _, err := parseSendConfigWithFlagSet(fs, []string{"-service", "127.0.0.1:1", "-target", "127.0.0.1:2"}); err == nil {
		t.Fatal("expected error for missing -path")
	}
}

func TestParseRecvConfig_Defaults(t *testing.T) {
	os.Clearenv()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := parseRecvConfigWithFlagSet(fs, []string{"-control", "0.0.0.0:9000", "-data", "0.0.0.0:9001"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Control != (session.Target{Host: "0.0.0.0", Port: 9000}) {
		t.Errorf("Control = %+v", cfg.Control)
	}
	if len(cfg.Data) != 1 {
		t.Fatalf("Data = %+v", cfg.Data)
	}
	if cfg.Path != "." {
		t.Errorf("Path = %q, want .", cfg.Path)
	}
	if cfg.NoWrite {
		t.Errorf("NoWrite = true, want false by default")
	}
	if cfg.HasherCount != 2 {
		t.Errorf("HasherCount = %d, want 2", cfg.HasherCount)
	}
}

func TestParseRecvConfig_Flags(t *testing.T) {
	os.Clearenv()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := parseRecvConfigWithFlagSet(fs, []string{
		"-control", "0.0.0.0:9000",
		"-data", "0.0.0.0:9001",
		"-data", "0.0.0.0:9002",
		"-path", "/mnt/incoming",
		"-journal", "/tmp/rx.draftjournal",
		"-no-write",
		"-hashers", "4",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cfg.Data) != 2 {
		t.Fatalf("Data = %+v, want 2 entries", cfg.Data)
	}
	if cfg.Path != "/mnt/incoming" || cfg.JournalPath != "/tmp/rx.draftjournal" {
		t.Errorf("Path/JournalPath = %q/%q", cfg.Path, cfg.JournalPath)
	}
	if !cfg.NoWrite {
		t.Errorf("NoWrite = false, want true")
	}
	if cfg.HasherCount != 4 {
		t.Errorf("HasherCount = %d, want 4", cfg.HasherCount)
	}
}

func TestParseRecvConfig_EnvFallback(t *testing.T) {
	os.Clearenv()

	os.Setenv("DRAFT_CONTROL", "0.0.0.0:6000")
	os.Setenv("DRAFT_DATA", "0.0.0.0:6001,0.0.0.0:6002")
	defer os.Unsetenv("DRAFT_CONTROL")
	defer os.Unsetenv("DRAFT_DATA")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := parseRecvConfigWithFlagSet(fs, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Control != (session.Target{Host: "0.0.0.0", Port: 6000}) {
		t.Errorf("Control = %+v", cfg.Control)
	}
	if len(cfg.Data) != 2 {
		t.Fatalf("Data = %+v", cfg.Data)
	}
}

func TestParseRecvConfig_FlagsOverrideEnv(t *testing.T) {
	os.Clearenv()

	os.Setenv("DRAFT_CONTROL", "0.0.0.0:6000")
	defer os.Unsetenv("DRAFT_CONTROL")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := parseRecvConfigWithFlagSet(fs, []string{"-control", "127.0.0.1:1", "-data", "127.0.0.1:2"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Control != (session.Target{Host: "127.0.0.1", Port: 1}) {
		t.Errorf("Control = %+v, flag should override env", cfg.Control)
	}
}

func TestParseRecvConfig_MissingDataErrors(t *testing.T) {
	os.Clearenv()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	if _, err := parseRecvConfigWithFlagSet(fs, []string{"-control", "127.0.0.1:1"}); err == nil {
		t.Fatal("expected error for missing -data")
	}
}
