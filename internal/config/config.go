// Package config resolves runtime settings from flags, the environment and an
// optional .env file. Flags win over the environment; the environment wins
// over the .env file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Environment variables.
const (
	EnvDB         = "KNJIZNICA_DB"
	EnvAddr       = "KNJIZNICA_ADDR"
	EnvAdmin      = "KNJIZNICA_ADMIN"
	EnvLog        = "KNJIZNICA_LOG"
	EnvFinePerDay = "KNJIZNICA_FINE_PER_DAY"
)

// Defaults.
const (
	DefaultDB         = "knjiznica.sqlite3"
	DefaultAddr       = ":8080"
	DefaultAdmin      = "Admin"
	DefaultFinePerDay = "5"
)

// Config holds the server settings.
type Config struct {
	DBPath     string
	Addr       string
	AdminUser  string
	LogPath    string
	EnvFile    string
	FinePerDay decimal.Decimal
}

// Usage is printed for -h.
const Usage = `Usage: knjiznica [flags]

Flags:
  -d, -db <path>          SQLite database path (default: knjiznica.sqlite3)
  -a, -addr <host:port>   listen address (default: :8080)
  -u, -user <name>        admin username on first run (default: Admin)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -f, -fine <amount>      fine per late day (default: 5)
  -e, -env <path>         environment file to load (default: .env)
  -h, -help               show this help and exit

Environment:
  KNJIZNICA_DB, KNJIZNICA_ADDR, KNJIZNICA_ADMIN, KNJIZNICA_LOG,
  KNJIZNICA_FINE_PER_DAY provide defaults for the flags above.
`

// Load reads the .env file named by -env (if it exists) into the process
// environment and then parses args against it.
func Load(args []string, usage io.Writer) (*Config, error) {
	envFile := envFileArg(args)
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}
	return Parse(args, os.LookupEnv, usage)
}

// Parse builds a Config from args, taking defaults from lookup. It returns
// flag.ErrHelp when help was requested.
func Parse(args []string, lookup func(string) (string, bool), usage io.Writer) (*Config, error) {
	env := func(key, fallback string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		return fallback
	}

	fset := flag.NewFlagSet("knjiznica", flag.ContinueOnError)
	fset.SetOutput(io.Discard)
	fset.Usage = func() {
		if usage != nil {
			fmt.Fprint(usage, Usage)
		}
	}

	cfg := &Config{}
	fset.StringVar(&cfg.DBPath, "db", env(EnvDB, DefaultDB), "")
	fset.StringVar(&cfg.DBPath, "d", env(EnvDB, DefaultDB), "")
	fset.StringVar(&cfg.Addr, "addr", env(EnvAddr, DefaultAddr), "")
	fset.StringVar(&cfg.Addr, "a", env(EnvAddr, DefaultAddr), "")
	fset.StringVar(&cfg.AdminUser, "user", env(EnvAdmin, DefaultAdmin), "")
	fset.StringVar(&cfg.AdminUser, "u", env(EnvAdmin, DefaultAdmin), "")
	fset.StringVar(&cfg.LogPath, "log", env(EnvLog, ""), "")
	fset.StringVar(&cfg.LogPath, "l", env(EnvLog, ""), "")
	fset.StringVar(&cfg.EnvFile, "env", ".env", "")
	fset.StringVar(&cfg.EnvFile, "e", ".env", "")

	var fine string
	fset.StringVar(&fine, "fine", env(EnvFinePerDay, DefaultFinePerDay), "")
	fset.StringVar(&fine, "f", env(EnvFinePerDay, DefaultFinePerDay), "")

	if err := fset.Parse(args); err != nil {
		return nil, err
	}
	if fset.NArg() > 0 {
		fset.Usage()
		return nil, fmt.Errorf("unexpected argument: %s", fset.Arg(0))
	}

	perDay, err := decimal.NewFromString(fine)
	if err != nil {
		return nil, fmt.Errorf("invalid fine per day %q: %w", fine, err)
	}
	if perDay.IsNegative() {
		return nil, fmt.Errorf("fine per day must not be negative, got %s", perDay)
	}
	cfg.FinePerDay = perDay

	return cfg, nil
}

// envFileArg finds the -env/-e value without parsing the other flags, so the
// file can be loaded before their defaults are read.
func envFileArg(args []string) string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		for _, name := range []string{"-env", "--env", "-e", "--e"} {
			if a == name && i+1 < len(args) {
				return args[i+1]
			}
			if len(a) > len(name)+1 && a[:len(name)+1] == name+"=" {
				return a[len(name)+1:]
			}
		}
	}
	return ".env"
}
