package pm

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// CloneRepository clones url into cachePath/<repo-name>, skipping the
// clone if that directory already exists (a fetch-once, reuse-after
// cache, matching the pattern every other pm operation assumes).
func CloneRepository(ctx context.Context, url, cachePath string) (string, error) {
	repoName, err := RepoNameFromURL(url)
	if err != nil {
		return "", err
	}
	repoPath := filepath.Join(cachePath, repoName)

	if dirExists(repoPath) {
		return repoPath, nil
	}

	if err := runGit(ctx, "", "clone", url, repoPath); err != nil {
		return "", fmt.Errorf("git clone %s: %w", url, err)
	}
	return repoPath, nil
}

// CheckoutTag checks out a specific tag or commit inside an already
// cloned repository.
func CheckoutTag(ctx context.Context, repoPath, tag string) error {
	if err := runGit(ctx, repoPath, "checkout", tag); err != nil {
		return fmt.Errorf("git checkout %s: %w", tag, err)
	}
	return nil
}

// FetchTags refreshes a cloned repository's tag list from its remote.
func FetchTags(ctx context.Context, repoPath string) error {
	if err := runGit(ctx, repoPath, "fetch", "--tags"); err != nil {
		return fmt.Errorf("git fetch --tags: %w", err)
	}
	return nil
}

// Tags lists every tag in a cloned repository.
func Tags(ctx context.Context, repoPath string) ([]string, error) {
	out, err := gitOutput(ctx, repoPath, "tag", "-l")
	if err != nil {
		return nil, fmt.Errorf("git tag -l: %w", err)
	}

	var tags []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			tags = append(tags, line)
		}
	}
	return tags, nil
}

// LatestTag returns the highest semver-looking tag ("v" + digits) in
// the repository, erroring if none exist.
func LatestTag(ctx context.Context, repoPath string) (string, error) {
	tags, err := Tags(ctx, repoPath)
	if err != nil {
		return "", err
	}

	var semverTags []string
	for _, t := range tags {
		if canonical(t) != "" && len(t) > 1 && t[0] == 'v' {
			semverTags = append(semverTags, t)
		}
	}
	if len(semverTags) == 0 {
		return "", fmt.Errorf("no semver tags found in repository")
	}

	best := semverTags[0]
	for _, t := range semverTags[1:] {
		if higher, err := selectHigherVersion(best, t); err == nil {
			best = higher
		}
	}
	return best, nil
}

// RepoNameFromURL extracts a cache-directory-safe repository name from
// a git URL, e.g. "https://github.com/user/repo.git" -> "user/repo".
func RepoNameFromURL(url string) (string, error) {
	trimmed := strings.TrimSuffix(url, ".git")
	trimmed = strings.TrimSuffix(trimmed, "/")
	idx := strings.LastIndex(trimmed, "://")
	if idx >= 0 {
		trimmed = trimmed[idx+3:]
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) < 2 {
		return "", fmt.Errorf("cannot derive repository name from %q", url)
	}
	return strings.Join(parts[len(parts)-2:], "/"), nil
}

func runGit(ctx context.Context, dir string, args ...string) error {
	_, err := gitOutput(ctx, dir, args...)
	return err
}

func gitOutput(ctx context.Context, dir string, args ...string) (string, error) {
	fullArgs := args
	if dir != "" {
		fullArgs = append([]string{"-C", dir}, args...)
	}

	cmd := exec.CommandContext(ctx, "git", fullArgs...)
	cmd.Env = os.Environ()
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
