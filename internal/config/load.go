package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// configFlags are the flags Load understands. Anything else in args is
// ignored so commands can define their own flags alongside these.
var configFlags = []string{"config", "port", "store", "data-dir", "dsn", "sqlite", "log-level"}

// Load builds a Config from every source in order and validates it. args
// excludes the program name.
func Load(args []string) (*Config, error) {
	return load(args, ".env", os.Getenv)
}

func load(args []string, dotEnv string, getenv func(string) string) (*Config, error) {
	c := &Config{}
	c.LoadDefaults()

	if dotEnv != "" {
		if err := loadDotEnv(dotEnv); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(c, getenv); err != nil {
		return nil, err
	}

	fs := flag.NewFlagSet("tasktracker", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configFile := fs.String("config", "", "path to a JSON config file")
	port := fs.Int("port", 0, "HTTP port")
	store := fs.String("store", "", "store backend: file, sqlite, postgres, redis, s3, memory")
	dataDir := fs.String("data-dir", "", "directory for the file backend")
	dsn := fs.String("dsn", "", "Postgres DSN")
	sqlitePath := fs.String("sqlite", "", "SQLite database path")
	logLevel := fs.String("log-level", "", "debug, info, warn or error")

	if err := fs.Parse(filterArgs(args, configFlags)); err != nil {
		return nil, fmt.Errorf("config: parsing flags: %w", err)
	}

	if *configFile != "" {
		if err := applyJSONFile(c, *configFile); err != nil {
			return nil, err
		}
	}

	if *port != 0 {
		c.Port = *port
	}
	if *store != "" {
		c.StoreBackend = *store
	}
	if *dataDir != "" {
		c.DataDir = *dataDir
	}
	if *dsn != "" {
		c.PostgresDSN = *dsn
	}
	if *sqlitePath != "" {
		c.SQLitePath = *sqlitePath
	}
	if *logLevel != "" {
		c.LogLevel = *logLevel
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// filterArgs keeps only the allowed flags (in -name, --name, -name=value or
// -name value form) and their values.
func filterArgs(args []string, allowed []string) []string {
	known := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		known[name] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			continue
		}
		name := strings.TrimLeft(arg, "-")
		if eq := strings.IndexByte(name, '='); eq >= 0 {
			if _, ok := known[name[:eq]]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}
		if _, ok := known[name]; !ok {
			continue
		}
		filtered = append(filtered, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}
	return filtered
}
