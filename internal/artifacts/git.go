package artifacts

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/noah-isme/hackathon-judge/pkg/docker"
)

const defaultGitImage = "alpine/git:latest"

// Cloner fetches a repository into a local directory.
type Cloner interface {
	Clone(ctx context.Context, repoURL, dir string) error
}

// GitCloner clones repositories with the git image inside the sandbox, the
// only sandbox job that gets network access.
type GitCloner struct {
	runner    docker.Runner
	image     string
	mountPath string
	timeout   time.Duration
}

// NewGitCloner builds a cloner backed by runner.
func NewGitCloner(runner docker.Runner, image, mountPath string, timeout time.Duration) *GitCloner {
	if image == "" {
		image = defaultGitImage
	}
	if mountPath == "" {
		mountPath = "/workspace"
	}
	return &GitCloner{runner: runner, image: image, mountPath: mountPath, timeout: timeout}
}

// Clone performs a shallow clone of repoURL into dir/repo.
func (g *GitCloner) Clone(ctx context.Context, repoURL, dir string) error {
	res, err := g.runner.Run(ctx, docker.Job{
		Image:     g.image,
		Cmd:       []string{"clone", "--depth", "1", "--single-branch", repoURL, path.Join(g.mountPath, "repo")},
		Workspace: dir,
		Writable:  true,
		Network:   true,
		Timeout:   g.timeout,
	})
	if err != nil {
		return fmt.Errorf("git clone: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("git clone exit code=%d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return nil
}

// CloneInto validates repoURL and clones it into the workspace.
func (w *Workspace) CloneInto(ctx context.Context, cloner Cloner, repoURL string) error {
	normalized, err := NormalizeRepositoryURL(repoURL)
	if err != nil {
		return err
	}

	dir := w.Path("clone")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := cloner.Clone(ctx, normalized, dir); err != nil {
		return err
	}

	w.CodeDir = w.Path("clone", "repo")
	return nil
}

// NormalizeRepositoryURL accepts https://github.com/<owner>/<repo>[.git]
// and returns the canonical https form.
func NormalizeRepositoryURL(raw string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRepositoryURL, err)
	}
	if parsed.Scheme != "https" || !strings.EqualFold(parsed.Host, "github.com") {
		return "", fmt.Errorf("%w: %q", ErrInvalidRepositoryURL, raw)
	}

	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidRepositoryURL, raw)
	}

	repo := strings.TrimSuffix(parts[1], ".git")
	for _, segment := range []string{parts[0], repo} {
		if strings.HasPrefix(segment, "-") || strings.ContainsAny(segment, " \t;&|$`") {
			return "", fmt.Errorf("%w: %q", ErrInvalidRepositoryURL, raw)
		}
	}

	return fmt.Sprintf("https://github.com/%s/%s.git", parts[0], repo), nil
}
