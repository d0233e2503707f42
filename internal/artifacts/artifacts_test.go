package artifacts

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hackathon-judge/pkg/docker"
)

func zipPayload(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	buf := bytes.NewBuffer(nil)
	writer := zip.NewWriter(buf)
	for name, content := range entries {
		w, err := writer.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return buf.Bytes()
}

func TestWorkspaceManualCode(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir(), "My Project!")
	require.NoError(t, err)
	defer ws.Cleanup()

	require.NoError(t, ws.WriteManualCode("print('hello')\n"))

	files, err := CollectSourceFiles(ws.CodeDir)
	require.NoError(t, err)
	require.Equal(t, []string{ManualCodeFile}, files)
	require.Contains(t, ReadCodeText(ws.CodeDir, files, 0), "print('hello')")
}

func TestAddCodeFilesExtractsZip(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir(), "zip")
	require.NoError(t, err)
	defer ws.Cleanup()

	payload := zipPayload(t, map[string]string{
		"src/app.py":                "import os\n",
		"node_modules/lib/index.js": "module.exports = 1\n",
		"README.md":                 "# readme\n",
	})
	err = ws.AddCodeFiles([]File{
		{Name: "project.zip", Reader: bytes.NewReader(payload)},
		{Name: "../../extra tool.py", Reader: strings.NewReader("x = 1\n")},
	}, 1<<20)
	require.NoError(t, err)

	files, err := CollectSourceFiles(ws.CodeDir)
	require.NoError(t, err)
	require.Equal(t, []string{"extra_tool.py", "src/app.py"}, files)
}

func TestAddCodeFilesRejectsZipSlip(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir(), "slip")
	require.NoError(t, err)
	defer ws.Cleanup()

	payload := zipPayload(t, map[string]string{"../../evil.py": "boom"})
	err = ws.AddCodeFiles([]File{{Name: "evil.zip", Reader: bytes.NewReader(payload)}}, 1<<20)
	require.ErrorIs(t, err, ErrUnsafeArchive)
}

func TestAddCodeFilesEnforcesSizeLimit(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir(), "big")
	require.NoError(t, err)
	defer ws.Cleanup()

	err = ws.AddCodeFiles([]File{{Name: "big.py", Reader: strings.NewReader(strings.Repeat("x", 64))}}, 16)
	require.ErrorIs(t, err, ErrUploadTooLarge)
}

func TestSaveRecordingRejectsNonVideo(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir(), "video")
	require.NoError(t, err)
	defer ws.Cleanup()

	_, _, err = ws.SaveRecording(File{Name: "slides.txt", Reader: strings.NewReader("just some text")}, 1<<20)
	require.ErrorIs(t, err, ErrUnsupportedVideo)
}

func TestReadTranscript(t *testing.T) {
	text, err := ReadTranscript(File{Name: "t.txt", Reader: strings.NewReader("Hello judges")}, 1024)
	require.NoError(t, err)
	require.Equal(t, "Hello judges", text)
}

func TestCollectSourceFilesSkipsVendorDirs(t *testing.T) {
	dir := t.TempDir()
	for _, rel := range []string{"main.py", ".git/config.py", "venv/lib/site.py", "pkg/util.go", "notes.txt"} {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}

	files, err := CollectSourceFiles(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"main.py", "pkg/util.go"}, files)

	empty, err := CollectSourceFiles("")
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestReadCodeTextHonoursLimit(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.py"), []byte("abcdef"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.py"), []byte("ghijkl"), 0o644))

	require.Equal(t, "abcd\n", ReadCodeText(dir, []string{"a.py", "b.py"}, 4))
}

func TestNormalizeRepositoryURL(t *testing.T) {
	normalized, err := NormalizeRepositoryURL("https://github.com/acme/judge")
	require.NoError(t, err)
	require.Equal(t, "https://github.com/acme/judge.git", normalized)

	for _, bad := range []string{
		"http://github.com/acme/judge",
		"https://gitlab.com/acme/judge",
		"https://github.com/acme",
		"https://github.com/acme/judge/tree/main",
		"https://github.com/-x/judge",
		"not a url",
	} {
		_, err := NormalizeRepositoryURL(bad)
		require.ErrorIs(t, err, ErrInvalidRepositoryURL, bad)
	}
}

type fakeRunner struct {
	job    docker.Job
	result docker.JobResult
	err    error
}

func (f *fakeRunner) Run(_ context.Context, job docker.Job) (docker.JobResult, error) {
	f.job = job
	return f.result, f.err
}

func TestCloneIntoUsesNetworkedWritableJob(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir(), "clone")
	require.NoError(t, err)
	defer ws.Cleanup()

	runner := &fakeRunner{}
	require.NoError(t, ws.CloneInto(context.Background(), NewGitCloner(runner, "", "", 0), "https://github.com/acme/judge"))

	require.True(t, runner.job.Network)
	require.True(t, runner.job.Writable)
	require.Equal(t, ws.Path("clone"), runner.job.Workspace)
	require.Equal(t, []string{"clone", "--depth", "1", "--single-branch", "https://github.com/acme/judge.git", "/workspace/repo"}, runner.job.Cmd)
	require.Equal(t, ws.Path("clone", "repo"), ws.CodeDir)

	runner.result = docker.JobResult{ExitCode: 128, Stderr: "repository not found"}
	err = ws.CloneInto(context.Background(), NewGitCloner(runner, "", "", 0), "https://github.com/acme/missing")
	require.Error(t, err)

	runner.err = errors.New("daemon unreachable")
	err = ws.CloneInto(context.Background(), NewGitCloner(runner, "", "", 0), "https://github.com/acme/judge")
	require.Error(t, err)
}

func TestSafeName(t *testing.T) {
	require.Equal(t, "my_project", SafeName("  My Project!! "))
	require.Equal(t, "eco-tracker_v2", SafeName("Eco-Tracker_v2"))
	require.NotEmpty(t, SafeName("!!!"))
}
