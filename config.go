// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlrecord

import (
	"net"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/canonical/sqlrecord/internal/envfile"
)

// Logger receives a line for every statement run and for connection
// lifecycle events. *log.Logger satisfies it.
type Logger interface {
	Printf(format string, v ...any)
}

// Config holds the parameters used to open the database handle.
type Config struct {
	// Driver is one of "mysql", "sqlite3", "sqlite", "postgres" or
	// "dqlite".
	Driver string `mapstructure:"driver"`
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	// Database is the database name, or the file path for the sqlite
	// drivers.
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Charset  string `mapstructure:"charset"`
	// Options are passed to the driver as DSN parameters.
	Options map[string]string `mapstructure:"options"`

	Logger Logger `mapstructure:"-"`
}

// DefaultConfig returns the configuration used for any value that is not
// set explicitly.
func DefaultConfig() Config {
	return Config{
		Driver:   "mysql",
		Host:     "localhost",
		Port:     3306,
		Database: "mini_orm",
		Username: "root",
		Password: "",
		Charset:  "utf8mb4",
	}
}

// ConfigFromMap merges options over the defaults. The keys are the
// lower-case field names of Config. Values are weakly typed, so a port
// given as "5432" is accepted.
func ConfigFromMap(options map[string]any) (Config, error) {
	cfg := DefaultConfig()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Config{}, errors.Wrap(err, "cannot build config decoder")
	}
	if err := decoder.Decode(options); err != nil {
		return Config{}, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

// Environment variables read by ConfigFromEnv.
const (
	EnvDriver   = "DB_DRIVER"
	EnvHost     = "DB_HOST"
	EnvPort     = "DB_PORT"
	EnvDatabase = "DB_NAME"
	EnvUsername = "DB_USER"
	EnvPassword = "DB_PASSWORD"
)

// ConfigFromEnv builds a Config from the KEY=VALUE file at path and the
// process environment. Values in the file take precedence over the
// environment, and unset values keep their defaults. A missing file is
// not an error.
func ConfigFromEnv(path string) (Config, error) {
	entries := map[string]string{}
	if path != "" {
		var err error
		entries, err = envfile.Load(path)
		if err != nil {
			return Config{}, err
		}
	}
	lookup := func(key string) (string, bool) {
		if v, ok := entries[key]; ok {
			return v, true
		}
		return os.LookupEnv(key)
	}

	cfg := DefaultConfig()
	for key, field := range map[string]*string{
		EnvDriver:   &cfg.Driver,
		EnvHost:     &cfg.Host,
		EnvDatabase: &cfg.Database,
		EnvUsername: &cfg.Username,
		EnvPassword: &cfg.Password,
	} {
		if v, ok := lookup(key); ok {
			*field = v
		}
	}
	if v, ok := lookup(EnvPort); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, errors.Wrapf(err, "invalid %s", EnvPort)
		}
		cfg.Port = port
	}
	return cfg, nil
}

// address returns host:port.
func (cfg Config) address() string {
	return net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
}

// dsn returns the data source name for the configured driver.
func (cfg Config) dsn() (string, error) {
	switch cfg.Driver {
	case "mysql":
		mc := mysql.NewConfig()
		mc.User = cfg.Username
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = cfg.address()
		mc.DBName = cfg.Database
		mc.ParseTime = true
		mc.Params = map[string]string{}
		if cfg.Charset != "" {
			mc.Params["charset"] = cfg.Charset
		}
		for k, v := range cfg.Options {
			mc.Params[k] = v
		}
		return mc.FormatDSN(), nil
	case "sqlite3", "sqlite":
		if len(cfg.Options) == 0 {
			return cfg.Database, nil
		}
		params := url.Values{}
		for k, v := range cfg.Options {
			params.Set(k, v)
		}
		return cfg.Database + "?" + params.Encode(), nil
	case "postgres":
		pairs := map[string]string{
			"host":     cfg.Host,
			"port":     strconv.Itoa(cfg.Port),
			"dbname":   cfg.Database,
			"user":     cfg.Username,
			"password": cfg.Password,
		}
		if cfg.Charset != "" {
			pairs["client_encoding"] = pgEncoding(cfg.Charset)
		}
		for k, v := range cfg.Options {
			pairs[k] = v
		}
		keys := make([]string, 0, len(pairs))
		for k := range pairs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var parts []string
		for _, k := range keys {
			parts = append(parts, k+"="+pgQuote(pairs[k]))
		}
		return strings.Join(parts, " "), nil
	case "dqlite":
		return cfg.Database, nil
	}
	return "", errors.Wrapf(ErrUnknownDriver, "%q", cfg.Driver)
}

// pgEncoding maps MySQL charset names onto their PostgreSQL equivalents.
func pgEncoding(charset string) string {
	switch strings.ToLower(charset) {
	case "utf8", "utf8mb4":
		return "UTF8"
	}
	return charset
}

// pgQuote quotes a value of a keyword/value connection string.
func pgQuote(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
