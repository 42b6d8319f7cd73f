package main

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	nitter "github.com/anatolykoptev/go-nitter"
)

// sampleHandles are used when neither arguments nor an input file name any handle.
var sampleHandles = []string{"jack", "Twitter", "elonmusk"}

// settings is the resolved run configuration.
type settings struct {
	MaxPosts    int
	Concurrency int
	OutputPath  string
	NDJSON      bool
	Timeout     time.Duration
	Proxy       string
	BaseURL     string
	InputPath   string
	LogLevel    int
}

// envKeys maps settings keys to the environment variables that set them.
var envKeys = map[string][]string{
	"max_posts_per_user": {"MAX_POSTS_PER_USER"},
	"concurrency":        {"CONCURRENCY"},
	"output_path":        {"OUTPUT_PATH"},
	"ndjson":             {"NDJSON"},
	"timeout_seconds":    {"HTTP_TIMEOUT"},
	"proxy":              {"HTTP_PROXY", "http_proxy"},
	"nitter_base":        {"NITTER_BASE"},
	"log_level":          {"LOG_LEVEL"},
}

// flagKeys maps settings keys to the command-line flags that set them.
var flagKeys = map[string]string{
	"max_posts_per_user": "max-posts",
	"concurrency":        "concurrency",
	"output_path":        "output",
	"ndjson":             "ndjson",
	"timeout_seconds":    "timeout",
	"proxy":              "proxy",
	"nitter_base":        "base",
	"input_path":         "input",
	"log_level":          "log-level",
}

// bindFlags binds every flagKeys entry. A flag missing from fs is an error.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for key, name := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			return fmt.Errorf("bind %s: no flag --%s", key, name)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// newViper registers defaults and environment bindings.
// Precedence: flags, environment, settings file, defaults.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("max_posts_per_user", 50)
	v.SetDefault("concurrency", 5)
	v.SetDefault("output_path", "data/sample.json")
	v.SetDefault("ndjson", false)
	v.SetDefault("timeout_seconds", 20.0)
	v.SetDefault("proxy", "")
	v.SetDefault("nitter_base", nitter.DefaultBaseURL)
	v.SetDefault("input_path", "data/inputs.sample.txt")
	v.SetDefault("log_level", 2)

	for key, names := range envKeys {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			panic(fmt.Sprintf("bind env %s: %v", key, err))
		}
	}
	return v
}

// loadSettings reads the optional settings file and resolves every key.
// An unreadable settings file is logged and ignored.
func loadSettings(v *viper.Viper, path string) settings {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("failed to read settings file", slog.String("path", path), slog.Any("error", err))
		}
	}
	return settings{
		MaxPosts:    v.GetInt("max_posts_per_user"),
		Concurrency: v.GetInt("concurrency"),
		OutputPath:  v.GetString("output_path"),
		NDJSON:      v.GetBool("ndjson"),
		Timeout:     time.Duration(v.GetFloat64("timeout_seconds") * float64(time.Second)),
		Proxy:       v.GetString("proxy"),
		BaseURL:     v.GetString("nitter_base"),
		InputPath:   v.GetString("input_path"),
		LogLevel:    v.GetInt("log_level"),
	}
}

func (s settings) clientConfig() nitter.ClientConfig {
	return nitter.ClientConfig{
		BaseURL:     s.BaseURL,
		Proxy:       s.Proxy,
		Timeout:     s.Timeout,
		MaxPosts:    s.MaxPosts,
		Concurrency: s.Concurrency,
	}
}

// loadHandles returns handles from args (comma or space separated), else from
// the input file (one per line, # comments), else the sample accounts.
// Duplicates are dropped, first occurrence wins.
func loadHandles(args []string, inputPath string) ([]string, error) {
	var names []string
	for _, a := range args {
		names = append(names, strings.FieldsFunc(a, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n'
		})...)
	}
	if len(names) > 0 {
		return dedupe(names), nil
	}

	f, err := os.Open(inputPath)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("no handles given and input file missing, using sample accounts",
			slog.String("path", inputPath))
		return append([]string(nil), sampleHandles...), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	if len(names) == 0 {
		return []string{"jack"}, nil
	}
	return dedupe(names), nil
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// logLevel maps the numeric verbosity (1 warn, 2 info, 3 debug) to a slog level.
func logLevel(verbosity int) slog.Level {
	switch {
	case verbosity >= 3:
		return slog.LevelDebug
	case verbosity == 2:
		return slog.LevelInfo
	default:
		return slog.LevelWarn
	}
}
