package skills

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/jingkaihe/docsync/pkg/logger"
	"github.com/jingkaihe/docsync/pkg/osutil"
	"github.com/pkg/errors"
)

// DefaultFindCommand is the command queried for ecosystem skills. The
// query and the --json flag are appended to it.
var DefaultFindCommand = []string{"npx", "--yes", "skills", "find"}

// DefaultEcosystemTimeout bounds a whole ecosystem query, retries included.
const DefaultEcosystemTimeout = 30 * time.Second

// Searcher finds ecosystem skills for a free text query.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Skill, error)
}

// ecosystemEntry is one element of the registry's JSON output.
type ecosystemEntry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InstallCmd  string `json:"install_cmd"`
}

// DefaultInstall returns the install directive used when the registry
// does not provide one.
func DefaultInstall(name string) string {
	return "npx skills add " + name
}

// CommandSearcher queries the registry by running an external command.
type CommandSearcher struct {
	command  []string
	timeout  time.Duration
	attempts uint
	delay    time.Duration
}

// SearcherOption configures a CommandSearcher
type SearcherOption func(*CommandSearcher)

// WithCommand replaces the registry command.
func WithCommand(args ...string) SearcherOption {
	return func(s *CommandSearcher) {
		if len(args) > 0 {
			s.command = args
		}
	}
}

// WithTimeout sets the overall query timeout.
func WithTimeout(d time.Duration) SearcherOption {
	return func(s *CommandSearcher) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithRetry sets the number of attempts and the initial backoff delay.
func WithRetry(attempts uint, delay time.Duration) SearcherOption {
	return func(s *CommandSearcher) {
		if attempts > 0 {
			s.attempts = attempts
		}
		s.delay = delay
	}
}

// NewCommandSearcher creates a searcher running the registry command.
func NewCommandSearcher(opts ...SearcherOption) *CommandSearcher {
	s := &CommandSearcher{
		command:  DefaultFindCommand,
		timeout:  DefaultEcosystemTimeout,
		attempts: 1,
		delay:    500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search runs the registry command for query. The timeout covers every
// attempt; when it expires the spawned process tree is killed.
func (s *CommandSearcher) Search(ctx context.Context, query string, limit int) ([]Skill, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var out []byte
	err := retry.Do(
		func() error {
			b, err := s.run(ctx, query)
			if err != nil {
				return err
			}
			out = b
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(s.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryableSearchError),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithError(err).
				WithField("query", query).
				WithField("attempt", n+1).
				Debug("retrying ecosystem query")
		}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "ecosystem query %q failed", query)
	}

	return parseEcosystemResults(out, limit)
}

func (s *CommandSearcher) run(ctx context.Context, query string) ([]byte, error) {
	args := make([]string, 0, len(s.command)+1)
	args = append(args, s.command[1:]...)
	args = append(args, query, "--json")

	cmd := exec.CommandContext(ctx, s.command[0], args...)
	osutil.Isolate(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, errors.Wrap(err, "registry command failed")
		}
		return nil, errors.Wrapf(err, "registry command failed: %s", msg)
	}

	return stdout.Bytes(), nil
}

func isRetryableSearchError(err error) bool {
	if errors.Is(err, exec.ErrNotFound) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

func parseEcosystemResults(out []byte, limit int) ([]Skill, error) {
	if len(bytes.TrimSpace(out)) == 0 {
		return nil, nil
	}

	var entries []ecosystemEntry
	if err := json.Unmarshal(out, &entries); err != nil {
		return nil, errors.Wrap(err, "failed to decode registry output")
	}

	result := make([]Skill, 0, len(entries))
	for _, e := range entries {
		if limit > 0 && len(result) >= limit {
			break
		}
		name := strings.TrimSpace(e.Name)
		if name == "" {
			continue
		}
		install := strings.TrimSpace(e.InstallCmd)
		if install == "" {
			install = DefaultInstall(name)
		}
		result = append(result, Skill{
			Name:        name,
			Description: e.Description,
			Source:      SourceEcosystem,
			Install:     install,
		})
	}
	return result, nil
}

// Query runs a search and degrades every failure to an empty result.
func Query(ctx context.Context, s Searcher, query string, limit int) []Skill {
	if s == nil {
		return nil
	}
	found, err := s.Search(ctx, query, limit)
	if err != nil {
		logger.G(ctx).WithError(err).WithField("query", query).Debug("ecosystem query failed")
		return nil
	}
	return found
}

// QueryAll queries each term in order and concatenates the results.
func QueryAll(ctx context.Context, s Searcher, terms []string, limit int) []Skill {
	var all []Skill
	for _, term := range terms {
		all = append(all, Query(ctx, s, term, limit)...)
	}
	return all
}
