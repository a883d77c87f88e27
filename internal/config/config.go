package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces the environment variables that override pacing knobs,
// e.g. STALEAUDIT_CALL_DELAY=500ms.
const EnvPrefix = "staleaudit"

// Mode selects which command semantics a run uses. It gates which inputs are
// required and whether classification collects detailed records or a count.
type Mode string

const (
	// ModeInventory enumerates a team's repositories and branch counts.
	ModeInventory Mode = "inventory"
	// ModeCount counts stale branches per repository (count-only pass).
	ModeCount Mode = "count"
	// ModeDetail collects full stale-branch records with merge targets.
	ModeDetail Mode = "detail"
)

type Config struct {
	// MAINTAINER NOTE: if you add/change/remove fields that affect crawl
	// behavior, keep the CLI flags in internal/cli in sync.
	Targeting Targeting
	Staleness Staleness
	Pacing    Pacing
	Output    Output
	Runtime   Runtime
}

type Targeting struct {
	// Org is the GitHub organization that owns the repositories under audit.
	Org string

	// Team is the team slug whose repositories the inventory command lists.
	Team string

	// Input is the inventory CSV consumed by the count and audit commands.
	// Required columns: repository_name, number_of_branches; the audit
	// command additionally requires Stale_Branches (produced by count).
	Input string

	// Repos is an explicit REPO or OWNER/REPO list that bypasses --input.
	// Values may be provided as repeated flags and/or comma-separated lists.
	Repos []string
}

type Staleness struct {
	// MaxAge is the staleness threshold. A branch is stale iff its tip
	// commit is strictly older than MaxAge at evaluation time.
	MaxAge time.Duration

	// RateLimitFloor is the minimum remaining API quota below which the
	// governor blocks until the quota window resets.
	RateLimitFloor int

	// ResetMargin is added to the reported reset time before resuming, to
	// absorb clock skew between this host and the API.
	ResetMargin time.Duration
}

// Pacing holds the crawl's throttling knobs. Every field can be overridden
// from the environment (STALEAUDIT_* with split words, e.g.
// STALEAUDIT_BATCH_SIZE=3) after an optional .env file is loaded.
type Pacing struct {
	// CallDelay is the fixed delay applied after every API round-trip.
	CallDelay time.Duration `split_words:"true" default:"200ms" validate:"gt=0"`

	// BatchSize is how many repositories are processed per batch.
	BatchSize int `split_words:"true" default:"5" validate:"gt=0"`

	// BatchBreak is the pause between batches.
	BatchBreak time.Duration `split_words:"true" default:"2m" validate:"gte=0"`

	// RepoBreak is the pause between repositories within a batch.
	RepoBreak time.Duration `split_words:"true" default:"10s" validate:"gte=0"`

	// ChunkSize bounds how many branches are classified between chunk breaks.
	ChunkSize int `split_words:"true" default:"50" validate:"gt=0"`

	// ChunkBreak is the pause between branch chunks within one repository.
	ChunkBreak time.Duration `split_words:"true" default:"5s" validate:"gte=0"`

	// RequestTimeout bounds a single HTTP request including retries at the
	// status layer but not transport-level reattempts.
	RequestTimeout time.Duration `split_words:"true" default:"45s" validate:"gt=0"`

	// TransportRetries is the maximum reattempt count for connection,
	// timeout, and TLS failures (backoff: 5s * 2^attempt).
	TransportRetries int `split_words:"true" default:"5" validate:"gte=0"`

	// StatusRetries is the maximum reattempt count for retriable HTTP
	// status codes (429, 500, 502, 503, 504).
	StatusRetries int `split_words:"true" default:"7" validate:"gte=0"`

	// StatusBackoff is the backoff factor for status-code retries
	// (wait = StatusBackoff * 2^attempt seconds).
	StatusBackoff float64 `split_words:"true" default:"1.5" validate:"gt=0"`
}

type Output struct {
	// Checkpoint is the path of the durable crawl progress document.
	Checkpoint string

	// Out is the primary CSV output: the branch inventory (inventory), the
	// augmented inventory with a Stale_Branches column (count), or the
	// row-oriented stale-branch report (audit).
	Out string

	// Index is the cross-repository index CSV written by the audit command.
	Index string

	// Emit writes an additional structured event stream to stdout.
	// Allowed values: json, ndjson.
	Emit []string

	// NoConsole suppresses the console sink.
	NoConsole bool
}

type Runtime struct {
	// Timeout is the global deadline for the whole run.
	Timeout time.Duration

	// Verbose prints every GitHub API call and full error details to stderr.
	Verbose bool

	// DryRun resolves the work list and prints it without any crawling.
	DryRun bool
}

func New() *Config {
	return &Config{
		Staleness: Staleness{
			MaxAge:         90 * 24 * time.Hour,
			RateLimitFloor: 200,
			ResetMargin:    15 * time.Second,
		},
		Pacing: Pacing{
			CallDelay:        200 * time.Millisecond,
			BatchSize:        5,
			BatchBreak:       2 * time.Minute,
			RepoBreak:        10 * time.Second,
			ChunkSize:        50,
			ChunkBreak:       5 * time.Second,
			RequestTimeout:   45 * time.Second,
			TransportRetries: 5,
			StatusRetries:    7,
			StatusBackoff:    1.5,
		},
		Output: Output{
			Checkpoint: "stale_branch_checkpoint.json",
		},
		Runtime: Runtime{
			Timeout: 12 * time.Hour,
		},
	}
}

// LoadEnvOverrides layers environment-sourced pacing overrides on top of the
// flag-derived config. A .env file in the working directory is loaded first
// if present; a missing file is not an error.
func (c *Config) LoadEnvOverrides() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return fmt.Errorf("load .env: %w", err)
		}
	}
	if err := envconfig.Process(EnvPrefix, &c.Pacing); err != nil {
		return fmt.Errorf("pacing env overrides: %w", err)
	}
	return nil
}

// Validate normalizes and checks the config for the given mode. It must pass
// before any network activity starts; validation failures are the only
// globally fatal errors in a run.
func (c *Config) Validate(mode Mode) error {
	if c == nil {
		return errors.New("config is nil")
	}

	c.Targeting.Repos = splitCommaList(c.Targeting.Repos)
	c.Targeting.Org = strings.TrimSpace(c.Targeting.Org)
	c.Targeting.Team = strings.TrimSpace(c.Targeting.Team)

	switch mode {
	case ModeInventory:
		if c.Targeting.Org == "" {
			return errors.New("--org is required")
		}
		if c.Targeting.Team == "" {
			return errors.New("--team is required")
		}
	case ModeCount, ModeDetail:
		if c.Targeting.Org == "" {
			return errors.New("--org is required")
		}
		if c.Targeting.Input == "" && len(c.Targeting.Repos) == 0 {
			return errors.New("one of --input or --repos must be provided")
		}
	default:
		return fmt.Errorf("unknown mode: %q", mode)
	}

	for _, emit := range c.Output.Emit {
		v := strings.ToLower(strings.TrimSpace(emit))
		if v != "json" && v != "ndjson" {
			return fmt.Errorf("unsupported --emit value: %s (must be one of: json, ndjson)", emit)
		}
	}
	if c.Output.Checkpoint == "" {
		return errors.New("--checkpoint path must not be empty")
	}

	if c.Staleness.MaxAge <= 0 {
		return errors.New("staleness threshold must be > 0")
	}
	if c.Staleness.RateLimitFloor < 0 {
		return errors.New("rate limit floor must be >= 0")
	}
	if c.Runtime.Timeout <= 0 {
		return errors.New("--timeout must be > 0")
	}

	if err := validator.New().Struct(c.Pacing); err != nil {
		return fmt.Errorf("pacing config: %w", err)
	}
	return nil
}

func splitCommaList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
