package commands

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"rehabgo/lib/configutil"
	"rehabgo/services/resolver"
)

type PortalConfig struct {
	BaseUrl  string `json:"base_url"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type ProgramConfig struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

type SiteConfig struct {
	DistDir string `json:"dist_dir"`
	DataDir string `json:"data_dir"`
}

type Config struct {
	Portal   PortalConfig    `json:"portal"`
	Programs []ProgramConfig `json:"programs"`
	// Tokens is the compact "name:code,name:code" alternative to Programs;
	// both may be used at once.
	Tokens             string     `json:"tokens"`
	Site               SiteConfig `json:"site"`
	HistoryDb          string     `json:"history_db"`
	Concurrency        int        `json:"concurrency"`
	UnitTimeoutSeconds int        `json:"unit_timeout_seconds"`
}

// loadConfig reads the config file, then lets the environment override the
// portal credentials so they can stay out of checked in files.
func loadConfig() (Config, error) {
	cfg, err := configutil.ReadConfig[Config](flagConfig)
	if err != nil {
		return cfg, err
	}
	if v, ok := os.LookupEnv("REHABGO_USERNAME"); ok {
		cfg.Portal.Username = v
	}
	if v, ok := os.LookupEnv("REHABGO_PASSWORD"); ok {
		cfg.Portal.Password = v
	}
	if cfg.Site.DistDir == "" {
		cfg.Site.DistDir = "dist"
	}
	if cfg.Site.DataDir == "" {
		cfg.Site.DataDir = "out"
	}
	if cfg.HistoryDb == "" {
		cfg.HistoryDb = "history.db"
	}
	return cfg, nil
}

// programTokens flattens both config forms into one token list. Entries whose
// name or code is empty after trimming are dropped with a warning, never
// fatally, matching how the compact form treats malformed pairs.
func (c Config) programTokens() []resolver.ProgramToken {
	var tokens []resolver.ProgramToken
	for _, program := range c.Programs {
		name := strings.TrimSpace(program.Name)
		code := strings.TrimSpace(program.Code)
		if name == "" || code == "" {
			slog.Warn("skipping malformed program entry, want a non-empty name and code", "name", program.Name)
			continue
		}
		tokens = append(tokens, resolver.ProgramToken{Name: name, Code: code})
	}
	return append(tokens, resolver.ParseTokens(c.Tokens)...)
}

func (c Config) resolverService() *resolver.Service {
	return resolver.NewService(
		resolver.Credentials{
			Username: c.Portal.Username,
			Password: c.Portal.Password,
		},
		resolver.Options{
			BaseUrl:     c.Portal.BaseUrl,
			Concurrency: c.Concurrency,
			UnitTimeout: time.Duration(c.UnitTimeoutSeconds) * time.Second,
		},
	)
}
