package artifacts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrUnsupportedCodeSource indicates an unknown code source selector.
	ErrUnsupportedCodeSource = errors.New("unsupported code source")
	// ErrInvalidRepositoryURL indicates a GitHub URL that cannot be cloned.
	ErrInvalidRepositoryURL = errors.New("invalid github repository url")
	// ErrUploadTooLarge indicates an upload above the configured limit.
	ErrUploadTooLarge = errors.New("upload exceeds size limit")
	// ErrUnsupportedVideo indicates a presentation upload that is not audio or video.
	ErrUnsupportedVideo = errors.New("presentation file must be a video or audio recording")
	// ErrUnsafeArchive indicates a zip entry escaping the workspace or an oversized archive.
	ErrUnsafeArchive = errors.New("archive rejected")
)

// CodeSource selects how code reaches the workspace.
type CodeSource string

const (
	SourceGitHub    CodeSource = "github"
	SourceManual    CodeSource = "manual"
	SourceFiles     CodeSource = "file"
	SourceDirectory CodeSource = "directory"
)

// ManualCodeFile is the file name pasted code is stored under.
const ManualCodeFile = "submitted_code.py"

// Workspace is a per-submission scratch directory.
type Workspace struct {
	Root string
	// CodeDir is empty until code has been placed.
	CodeDir string
	owned   bool
}

// NewWorkspace creates a scratch directory under base (os.TempDir when empty).
func NewWorkspace(base, projectName string) (*Workspace, error) {
	if base == "" {
		base = os.TempDir()
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace base: %w", err)
	}
	root, err := os.MkdirTemp(base, SafeName(projectName)+"-")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{Root: root, owned: true}, nil
}

// Path joins elem onto the workspace root.
func (w *Workspace) Path(elem ...string) string {
	return filepath.Join(append([]string{w.Root}, elem...)...)
}

// UseDirectory points the workspace at existing code without copying it.
func (w *Workspace) UseDirectory(dir string) {
	w.CodeDir = dir
}

// WriteManualCode stores pasted code as a single Python file.
func (w *Workspace) WriteManualCode(code string) error {
	dir := w.Path("code")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, ManualCodeFile), []byte(code), 0o644); err != nil {
		return fmt.Errorf("write manual code: %w", err)
	}
	w.CodeDir = dir
	return nil
}

// Cleanup removes the scratch directory. Directories passed to UseDirectory
// are left untouched.
func (w *Workspace) Cleanup() error {
	if w == nil || !w.owned {
		return nil
	}
	return os.RemoveAll(w.Root)
}

// SafeName turns a project name into a file-name friendly slug.
func SafeName(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	slug := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		if r == '-' || r == '_' {
			return r
		}
		return '_'
	}, lowered)
	slug = strings.Trim(slug, "_-")
	if slug == "" {
		slug = fmt.Sprintf("submission_%d", time.Now().Unix())
	}
	if len(slug) > 64 {
		slug = slug[:64]
	}
	return slug
}
