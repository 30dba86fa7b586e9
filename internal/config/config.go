// Package config loads chessmentor.yaml.
//
// The file is decoded with gopkg.in/yaml.v3 and checked against an
// embedded CUE schema before it is applied over the defaults, so a typo'd
// key or out-of-range value fails at startup instead of being ignored.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/Heizenburger/chess-mentor/internal/puzzle"
	"github.com/Heizenburger/chess-mentor/internal/rules"
	"github.com/Heizenburger/chess-mentor/internal/selector"
	"github.com/Heizenburger/chess-mentor/internal/session"
)

//go:embed schema.cue
var schemaCUE string

// Config is the full application configuration.
type Config struct {
	Source   SourceConfig   `yaml:"source"`
	Session  SessionConfig  `yaml:"session"`
	Store    StoreConfig    `yaml:"store"`
	Server   ServerConfig   `yaml:"server"`
	FreePlay FreePlayConfig `yaml:"freeplay"`
}

// SourceConfig selects where puzzles come from.
type SourceConfig struct {
	// URL is the NDJSON feed endpoint. Ignored when File is set.
	URL string `yaml:"url"`
	// File reads a local NDJSON feed instead of the network.
	File      string        `yaml:"file"`
	MaxCount  int           `yaml:"max_count"`
	MinRating int           `yaml:"min_rating"`
	Timeout   time.Duration `yaml:"timeout"`
}

// SessionConfig holds puzzle pacing.
type SessionConfig struct {
	ReplyDelay    time.Duration `yaml:"reply_delay"`
	RollbackDelay time.Duration `yaml:"rollback_delay"`
	AdvanceDelay  time.Duration `yaml:"advance_delay"`
	MaxSkips      int           `yaml:"max_skips"`
}

// StoreConfig locates the SQLite database. An empty Path disables persistence.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig configures the HTTP boundary.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// FreePlayConfig holds free-play defaults.
type FreePlayConfig struct {
	Difficulty int    `yaml:"difficulty"`
	Side       string `yaml:"side"`
}

// Default returns the built-in configuration.
func Default() Config {
	sc := session.DefaultConfig()
	return Config{
		Source: SourceConfig{
			URL:      puzzle.DefaultFeedURL,
			MaxCount: sc.Request.MaxCount,
			Timeout:  10 * time.Second,
		},
		Session: SessionConfig{
			ReplyDelay:    sc.ReplyDelay,
			RollbackDelay: sc.RollbackDelay,
			AdvanceDelay:  sc.AdvanceDelay,
			MaxSkips:      sc.MaxSkips,
		},
		Store:  StoreConfig{Path: "chessmentor.db"},
		Server: ServerConfig{Addr: "127.0.0.1:8080"},
		FreePlay: FreePlayConfig{
			Difficulty: int(selector.Medium),
			Side:       rules.White.String(),
		},
	}
}

// ValidationError reports a config file that does not match the schema.
type ValidationError struct {
	File   string
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.File, strings.Join(e.Issues, "; "))
}

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Load reads path over the defaults. An empty path returns Default().
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := Parse(data, path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse validates YAML data and applies it over cfg. name labels errors.
func Parse(data []byte, name string, cfg *Config) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return &ValidationError{File: name, Issues: []string{err.Error()}}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	if err := validate(raw, name); err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return &ValidationError{File: name, Issues: []string{err.Error()}}
	}
	return nil
}

func validate(raw map[string]any, name string) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	value := def.Unify(ctx.Encode(raw))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		var issues []string
		for _, e := range cueerrors.Errors(err) {
			issues = append(issues, e.Error())
		}
		return &ValidationError{File: name, Issues: issues}
	}
	return nil
}

// SessionConfig converts to the session machine's settings.
func (c Config) SessionConfig() session.Config {
	return session.Config{
		ReplyDelay:    c.Session.ReplyDelay,
		RollbackDelay: c.Session.RollbackDelay,
		AdvanceDelay:  c.Session.AdvanceDelay,
		MaxSkips:      c.Session.MaxSkips,
		Request:       c.Request(),
	}
}

// Request is the refill request sent to the puzzle source.
func (c Config) Request() puzzle.Request {
	return puzzle.Request{MaxCount: c.Source.MaxCount, MinRating: c.Source.MinRating}
}

// Difficulty returns the configured free-play difficulty.
func (c Config) Difficulty() (selector.Difficulty, error) {
	d := selector.Difficulty(c.FreePlay.Difficulty)
	if !d.Valid() {
		return 0, fmt.Errorf("%w: %d", selector.ErrUnknownDifficulty, c.FreePlay.Difficulty)
	}
	return d, nil
}

// Side returns the configured free-play side.
func (c Config) Side() (rules.Side, error) {
	return rules.ParseSide(c.FreePlay.Side)
}
