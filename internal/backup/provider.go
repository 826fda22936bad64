package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/emdx-dev/emdx/internal/types"
)

// CommandRunner abstracts an external CLI invocation, mirroring
// internal/execution's narrow command-runner interface so provider
// implementations can be exercised without shelling out in tests.
type CommandRunner interface {
	Run(ctx context.Context, args ...string) (stdout string, err error)
}

// ExecCommandRunner runs real OS subprocesses.
type ExecCommandRunner struct{}

// Run executes name as args[0] with the remaining args and returns trimmed
// combined output.
func (ExecCommandRunner) Run(ctx context.Context, args ...string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("backup: empty command")
	}
	if _, err := exec.LookPath(args[0]); err != nil {
		return "", fmt.Errorf("%w: %s", types.ErrToolMissing, args[0])
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...) // #nosec G204 -- args come from internal callers
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

// Provider is the small duck-typed trait every cloud backup destination
// implements (spec.md REDESIGN FLAGS: "Polymorphism via duck-typed hooks
// (source pattern: BackupProvider protocol)... model cloud-backup
// providers as a small sum type with a common trait upload/list/download").
type Provider interface {
	Name() string
	Upload(ctx context.Context, path string) (ref string, err error)
	List(ctx context.Context) ([]string, error)
	Download(ctx context.Context, ref, destPath string) error
}

// GistProvider uploads backups as secret GitHub gists via the gh CLI, the
// one member of the BackupProvider sum type spec.md calls out by name.
// Gists cap file size well under typical database sizes, so callers should
// compress/shard large databases before calling Upload; this type does not
// do that itself.
type GistProvider struct {
	runner      CommandRunner
	description string
}

// NewGistProvider builds a GistProvider. description tags every gist it
// creates (e.g. "emdx-backup") so List can find them again.
func NewGistProvider(runner CommandRunner, description string) *GistProvider {
	if runner == nil {
		runner = ExecCommandRunner{}
	}
	if description == "" {
		description = "emdx-backup"
	}
	return &GistProvider{runner: runner, description: description}
}

func (g *GistProvider) Name() string { return "gist" }

var gistURLPattern = regexp.MustCompile(`https://gist\.github\.com/\S+`)

// Upload creates a new secret gist from the file at path and returns its
// URL.
func (g *GistProvider) Upload(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("gist upload: %w", err)
	}
	out, err := g.runner.Run(ctx, "gh", "gist", "create", "--desc", g.description, path)
	if err != nil {
		return "", fmt.Errorf("gh gist create: %w", err)
	}
	url := gistURLPattern.FindString(out)
	if url == "" {
		return "", fmt.Errorf("could not find gist url in gh output: %s", out)
	}
	return url, nil
}

type ghGist struct {
	URL         string `json:"url"`
	Description string `json:"description"`
}

// List returns the URLs of every gist tagged with this provider's
// description, newest first (gh's own default ordering).
func (g *GistProvider) List(ctx context.Context) ([]string, error) {
	out, err := g.runner.Run(ctx, "gh", "gist", "list", "--limit", "100", "--json", "url,description")
	if err != nil {
		return nil, fmt.Errorf("gh gist list: %w", err)
	}
	var gists []ghGist
	if err := json.Unmarshal([]byte(out), &gists); err != nil {
		return nil, fmt.Errorf("parse gh gist list output: %w", err)
	}
	var urls []string
	for _, gi := range gists {
		if gi.Description == g.description {
			urls = append(urls, gi.URL)
		}
	}
	return urls, nil
}

// Download clones a gist's single file to destPath via `gh gist clone`
// into a scratch directory, then moves the backup file into place.
func (g *GistProvider) Download(ctx context.Context, ref, destPath string) error {
	scratch, err := os.MkdirTemp("", "emdx-gist-*")
	if err != nil {
		return fmt.Errorf("gist download: %w", err)
	}
	defer os.RemoveAll(scratch)

	cloneDir := scratch + "/clone"
	if _, err := g.runner.Run(ctx, "gh", "gist", "clone", ref, cloneDir); err != nil {
		return fmt.Errorf("gh gist clone: %w", err)
	}
	entries, err := os.ReadDir(cloneDir)
	if err != nil {
		return fmt.Errorf("read cloned gist: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		return os.Rename(cloneDir+"/"+e.Name(), destPath)
	}
	return fmt.Errorf("gist %s had no downloadable file", ref)
}
