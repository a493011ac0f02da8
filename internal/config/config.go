package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/docker/go-units"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/psantana5/restrict/internal/cgroups"
	"github.com/psantana5/restrict/internal/report"
)

// Configuration keys. Each one can come from a flag, a RESTRICT_<KEY>
// environment variable or the config file, in that order of precedence.
const (
	KeyShell       = "shell"
	KeyMemory      = "memory"
	KeyCPU         = "cpu"
	KeyGroup       = "group"
	KeyDebug       = "debug"
	KeyCgroupRoot  = "cgroup_root"
	KeyLogLevel    = "log_level"
	KeyLogFormat   = "log_format"
	KeyReport      = "report"
	KeyMetricsFile = "metrics_file"
)

const envPrefix = "RESTRICT"

// Config is the resolved configuration of one invocation.
type Config struct {
	Shell       string
	MemoryMax   *uint64
	CPUWeight   *uint64
	Group       string
	Debug       bool
	CgroupRoot  string
	LogLevel    string
	LogFormat   string
	Report      string
	MetricsFile string
}

// Limits returns the limits part of the configuration.
func (c *Config) Limits() cgroups.Limits {
	return cgroups.Limits{MemoryMax: c.MemoryMax, CPUWeight: c.CPUWeight}
}

// AddFlags registers every flag on fs.
func AddFlags(fs *pflag.FlagSet) {
	fs.StringP("shell", "s", "", "shell used to run the command (default $SHELL)")
	fs.StringP("memory", "m", "", "memory ceiling, e.g. 512M (decimal) or 512Mi (binary)")
	fs.StringP("cpu", "c", "", "CPU weight, 1-10000 (100 is the kernel default)")
	fs.String("group", "", "cgroup to run in, relative to the cgroup root (default restrict-<pid>)")
	fs.BoolP("debug", "d", false, "print the limits and the outcome to stderr")
	fs.String("cgroup-root", cgroups.DefaultRoot, "where cgroup v2 is mounted")
	fs.String("log-level", "", "debug, info, warn or error (default warn, debug with --debug)")
	fs.String("log-format", "console", "console or json")
	fs.String("report", "", "write a run report to stderr: json or yaml")
	fs.String("metrics-file", "", "write Prometheus metrics to this file after the run")
}

// Bind connects v to the flags registered by AddFlags and to the environment.
func Bind(v *viper.Viper, fs *pflag.FlagSet) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// the login shell is the fallback, like the shell itself would pick
	if err := v.BindEnv(KeyShell, envPrefix+"_SHELL", "SHELL"); err != nil {
		return err
	}

	for key, flag := range map[string]string{
		KeyShell:       "shell",
		KeyMemory:      "memory",
		KeyCPU:         "cpu",
		KeyGroup:       "group",
		KeyDebug:       "debug",
		KeyCgroupRoot:  "cgroup-root",
		KeyLogLevel:    "log-level",
		KeyLogFormat:   "log-format",
		KeyReport:      "report",
		KeyMetricsFile: "metrics-file",
	} {
		f := fs.Lookup(flag)
		if f == nil {
			return fmt.Errorf("flag --%s not registered", flag)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

// ReadFile reads cfgFile, or the default config file if cfgFile is empty.
// Only an explicitly named file has to exist.
func ReadFile(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", cfgFile, err)
		}
		return nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	v.AddConfigPath(filepath.Join(home, ".config", "restrict"))
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

// Load resolves and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Shell:       v.GetString(KeyShell),
		Group:       v.GetString(KeyGroup),
		Debug:       v.GetBool(KeyDebug),
		CgroupRoot:  v.GetString(KeyCgroupRoot),
		LogLevel:    v.GetString(KeyLogLevel),
		LogFormat:   v.GetString(KeyLogFormat),
		Report:      strings.ToLower(v.GetString(KeyReport)),
		MetricsFile: v.GetString(KeyMetricsFile),
	}

	if s := v.GetString(KeyMemory); s != "" {
		n, err := ParseMemory(s)
		if err != nil {
			return nil, err
		}
		cfg.MemoryMax = &n
	}
	if s := v.GetString(KeyCPU); s != "" {
		n, err := ParseCPUWeight(s)
		if err != nil {
			return nil, err
		}
		cfg.CPUWeight = &n
	}

	if cfg.CgroupRoot == "" {
		cfg.CgroupRoot = cgroups.DefaultRoot
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "warn"
		if cfg.Debug {
			cfg.LogLevel = "debug"
		}
	}
	if cfg.Report != "" && !report.ValidFormat(cfg.Report) {
		return nil, fmt.Errorf("invalid report format %q (want json or yaml)", cfg.Report)
	}
	return cfg, nil
}

// ParseMemory parses a human readable size. Plain suffixes are decimal
// (100M is 100000000 bytes), suffixes with an i are binary (100Mi, 100MiB).
func ParseMemory(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	var (
		n   int64
		err error
	)
	if strings.ContainsAny(s, "iI") {
		in := s
		// RAMInBytes wants the trailing B: 100MiB, not 100Mi
		if !strings.HasSuffix(in, "b") && !strings.HasSuffix(in, "B") {
			in += "B"
		}
		n, err = units.RAMInBytes(in)
	} else {
		n, err = units.FromHumanSize(s)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid memory size %q: %w", s, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid memory size %q: must be positive", s)
	}
	return uint64(n), nil
}

// ParseCPUWeight parses a CPU weight. Range checking is left to the kernel.
func ParseCPUWeight(s string) (uint64, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid cpu weight %q: %w", s, err)
	}
	return n, nil
}
