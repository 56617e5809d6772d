package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Seednode/riddlebox/games/riddle"
	"github.com/Seednode/riddlebox/results"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind           string
	codeLength     int
	port           int
	prefix         string
	profile        bool
	questions      string
	redisAddr      string
	redisDB        int
	redisPassword  string
	resultsKeep    int
	sessionTimeout time.Duration
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.codeLength < 4 || c.codeLength > 9 {
		return fmt.Errorf("invalid code length (must be between 4-9 inclusive): %d", c.codeLength)
	}
	if c.redisDB < 0 {
		return fmt.Errorf("invalid redis database (must be non-negative): %d", c.redisDB)
	}
	if c.resultsKeep < 1 {
		return fmt.Errorf("invalid results count (must be positive): %d", c.resultsKeep)
	}
	if c.sessionTimeout < 0 {
		return fmt.Errorf("invalid session timeout (must be non-negative): %s", c.sessionTimeout)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func (c *Config) resultsOptions() results.Options {
	return results.Options{
		Addr:     c.redisAddr,
		Password: c.redisPassword,
		DB:       c.redisDB,
		Keep:     c.resultsKeep,
	}
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("RIDDLEBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "riddlebox",
		Short:         "A multiplayer riddle game, served over websockets.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: RIDDLEBOX_BIND)")
	fs.IntVar(&cfg.codeLength, "code-length", riddle.DefaultCodeLength, "number of digits in room codes (env: RIDDLEBOX_CODE_LENGTH)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: RIDDLEBOX_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: RIDDLEBOX_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: RIDDLEBOX_PROFILE)")
	fs.StringVarP(&cfg.questions, "questions", "q", "", "path to a JSON file of riddles, replacing the built-in set (env: RIDDLEBOX_QUESTIONS)")
	fs.StringVar(&cfg.redisAddr, "redis-addr", "", "host:port of a Redis server for archiving results (env: RIDDLEBOX_REDIS_ADDR)")
	fs.IntVar(&cfg.redisDB, "redis-db", 0, "Redis database number (env: RIDDLEBOX_REDIS_DB)")
	fs.StringVar(&cfg.redisPassword, "redis-password", "", "Redis password (env: RIDDLEBOX_REDIS_PASSWORD)")
	fs.IntVar(&cfg.resultsKeep, "results-keep", results.DefaultKeep, "number of finished games to keep in Redis (env: RIDDLEBOX_RESULTS_KEEP)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before unjoined rooms are removed (env: RIDDLEBOX_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: RIDDLEBOX_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: RIDDLEBOX_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: RIDDLEBOX_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: RIDDLEBOX_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("riddlebox v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
