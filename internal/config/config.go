// Package config parses the draftsend and draftrecv front ends' flags and
// environment variables, layered the way the teacher's ServerConfig/
// ClientConfig parsing does: environment variables set defaults, flags
// override them.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/draftxfer/draft/internal/session"
)

// Default pipeline sizing, chosen to keep ChunkHeader's 4096-byte
// alignment meaningful without forcing callers to compute it.
const (
	DefaultBlockSize  = 1 << 20 // 1 MiB
	DefaultBlockCount = 32
	DefaultQueueDepth = 64
)

// SendConfig holds draftsend's parsed configuration.
type SendConfig struct {
	Service      session.Target
	Targets      []session.Target
	Path         string
	Suffix       string
	JournalPath  string
	BlockSize    int
	BlockCount   int
	QueueDepth   int
	ReadPoolSize int
	DialTimeout  time.Duration
	LogLevel     string
}

// RecvConfig holds draftrecv's parsed configuration.
type RecvConfig struct {
	Control     session.Target
	Data        []session.Target
	Path        string
	JournalPath string
	NoWrite     bool
	BlockSize   int
	BlockCount  int
	QueueDepth  int
	HasherCount int
	LogLevel    string
}

// ParseSendConfig parses draftsend's flags and environment.
func ParseSendConfig(args []string) (SendConfig, error) {
	return parseSendConfigWithFlagSet(flag.NewFlagSet("draftsend", flag.ContinueOnError), args)
}

func parseSendConfigWithFlagSet(fs *flag.FlagSet, args []string) (SendConfig, error) {
	cfg := SendConfig{
		BlockSize:    DefaultBlockSize,
		BlockCount:   DefaultBlockCount,
		QueueDepth:   DefaultQueueDepth,
		ReadPoolSize: 4,
		DialTimeout:  5 * time.Second,
		LogLevel:     "info",
	}

	serviceDefault := os.Getenv("DRAFT_SERVICE")
	var targetsDefault stringSlice
	if v := os.Getenv("DRAFT_TARGETS"); v != "" {
		targetsDefault = stringSlice(strings.Split(v, ","))
	}
	if v := os.Getenv("DRAFT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	service := fs.String("service", serviceDefault, "control channel address (host:port)")
	var targets stringSlice
	fs.Var(&targets, "target", "data channel address (host:port), repeatable")
	path := fs.String("path", "", "file or directory to send")
	suffix := fs.String("suffix", "", "suffix appended to every materialized file's path on the receiver")
	journalPath := fs.String("journal", "", "path to write a hash journal while sending")
	blockSize := fs.Int("block-size", cfg.BlockSize, "buffer pool block size in bytes")
	blockCount := fs.Int("block-count", cfg.BlockCount, "buffer pool block count")
	queueDepth := fs.Int("queue-depth", cfg.QueueDepth, "bounded queue depth")
	readPool := fs.Int("read-pool", cfg.ReadPoolSize, "concurrent Reader task limit")
	dialTimeout := fs.Duration("dial-timeout", cfg.DialTimeout, "connect timeout")
	logLevel := fs.String("log-level", cfg.LogLevel, "log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	svc, err := parseTarget(*service)
	if err != nil {
		return cfg, fmt.Errorf("config: -service: %w", err)
	}
	cfg.Service = svc

	if len(targets) == 0 {
		targets = targetsDefault
	}
	if len(targets) == 0 {
		return cfg, fmt.Errorf("config: at least one -target is required")
	}
	for _, t := range targets {
		target, err := parseTarget(t)
		if err != nil {
			return cfg, fmt.Errorf("config: -target %q: %w", t, err)
		}
		cfg.Targets = append(cfg.Targets, target)
	}

	if *path == "" {
		return cfg, fmt.Errorf("config: -path is required")
	}
	cfg.Path = *path
	cfg.Suffix = *suffix
	cfg.JournalPath = *journalPath
	cfg.BlockSize = *blockSize
	cfg.BlockCount = *blockCount
	cfg.QueueDepth = *queueDepth
	cfg.ReadPoolSize = *readPool
	cfg.DialTimeout = *dialTimeout
	cfg.LogLevel = *logLevel
	return cfg, nil
}

// ParseRecvConfig parses draftrecv's flags and environment.
func ParseRecvConfig(args []string) (RecvConfig, error) {
	return parseRecvConfigWithFlagSet(flag.NewFlagSet("draftrecv", flag.ContinueOnError), args)
}

func parseRecvConfigWithFlagSet(fs *flag.FlagSet, args []string) (RecvConfig, error) {
	cfg := RecvConfig{
		BlockSize:   DefaultBlockSize,
		BlockCount:  DefaultBlockCount,
		QueueDepth:  DefaultQueueDepth,
		HasherCount: 2,
		LogLevel:    "info",
	}

	controlDefault := os.Getenv("DRAFT_CONTROL")
	var dataDefault stringSlice
	if v := os.Getenv("DRAFT_DATA"); v != "" {
		dataDefault = stringSlice(strings.Split(v, ","))
	}
	if v := os.Getenv("DRAFT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	control := fs.String("control", controlDefault, "control channel bind address (host:port)")
	var data stringSlice
	fs.Var(&data, "data", "data channel bind address (host:port), repeatable")
	path := fs.String("path", ".", "directory to materialize received files under")
	journalPath := fs.String("journal", "", "path to write a hash journal while receiving")
	noWrite := fs.Bool("no-write", false, "consume chunks without writing them to disk")
	blockSize := fs.Int("block-size", cfg.BlockSize, "buffer pool block size in bytes")
	blockCount := fs.Int("block-count", cfg.BlockCount, "buffer pool block count")
	queueDepth := fs.Int("queue-depth", cfg.QueueDepth, "bounded queue depth")
	hashers := fs.Int("hashers", cfg.HasherCount, "hasher task count (only used when -journal is set)")
	logLevel := fs.String("log-level", cfg.LogLevel, "log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	ctl, err := parseTarget(*control)
	if err != nil {
		return cfg, fmt.Errorf("config: -control: %w", err)
	}
	cfg.Control = ctl

	if len(data) == 0 {
		data = dataDefault
	}
	if len(data) == 0 {
		return cfg, fmt.Errorf("config: at least one -data is required")
	}
	for _, d := range data {
		target, err := parseTarget(d)
		if err != nil {
			return cfg, fmt.Errorf("config: -data %q: %w", d, err)
		}
		cfg.Data = append(cfg.Data, target)
	}

	cfg.Path = *path
	cfg.JournalPath = *journalPath
	cfg.NoWrite = *noWrite
	cfg.BlockSize = *blockSize
	cfg.BlockCount = *blockCount
	cfg.QueueDepth = *queueDepth
	cfg.HasherCount = *hashers
	cfg.LogLevel = *logLevel
	return cfg, nil
}

func parseTarget(s string) (session.Target, error) {
	host, portStr, err := splitHostPort(s)
	if err != nil {
		return session.Target{}, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return session.Target{}, fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	return session.Target{Host: host, Port: port}, nil
}

func splitHostPort(s string) (string, string, error) {
	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return "", "", fmt.Errorf("expected host:port, got %q", s)
	}
	return s[:idx], s[idx+1:], nil
}

// stringSlice implements flag.Value for repeatable string flags,
// matching the teacher's repeatable -path flag.
type stringSlice []string

func (s *stringSlice) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSlice) Set(value string) error {
	*s = append(*s, value)
	return nil
}
