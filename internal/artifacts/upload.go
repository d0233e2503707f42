package artifacts

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// archiveExpansionLimit bounds uncompressed archive size as a multiple of
// the upload limit.
const archiveExpansionLimit = 20

// File is an uploaded file as received from a form or read from disk.
type File struct {
	Name   string
	Reader io.Reader
}

func readLimited(file File, maxSize int64) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(file.Reader, maxSize+1)); err != nil {
		return nil, fmt.Errorf("read %s: %w", file.Name, err)
	}
	if int64(buf.Len()) > maxSize {
		return nil, fmt.Errorf("%s: %w", file.Name, ErrUploadTooLarge)
	}
	return buf.Bytes(), nil
}

// AddCodeFiles stores uploaded code in the workspace. Zip archives are
// extracted; any other file is stored under its sanitised base name.
func (w *Workspace) AddCodeFiles(files []File, maxSize int64) error {
	dir := w.Path("code")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	for _, file := range files {
		payload, err := readLimited(file, maxSize)
		if err != nil {
			return err
		}

		if isZip(mimetype.Detect(payload).String()) {
			if err := extractZip(payload, dir, uint64(maxSize)*archiveExpansionLimit); err != nil {
				return err
			}
			continue
		}

		target := filepath.Join(dir, sanitizeFileName(file.Name))
		if err := os.WriteFile(target, payload, 0o644); err != nil {
			return fmt.Errorf("store %s: %w", file.Name, err)
		}
	}

	w.CodeDir = dir
	return nil
}

// SaveRecording stores a presentation recording after checking its content
// type. It returns the stored path and the detected mime type.
func (w *Workspace) SaveRecording(file File, maxSize int64) (string, string, error) {
	payload, err := readLimited(file, maxSize)
	if err != nil {
		return "", "", err
	}

	mime := mimetype.Detect(payload)
	if !isRecording(mime.String()) {
		return "", "", fmt.Errorf("%s (%s): %w", file.Name, mime.String(), ErrUnsupportedVideo)
	}

	target := w.Path("recording" + mime.Extension())
	if err := os.WriteFile(target, payload, 0o644); err != nil {
		return "", "", fmt.Errorf("store recording: %w", err)
	}
	return target, mime.String(), nil
}

// ReadTranscript returns the text of an uploaded transcript.
func ReadTranscript(file File, maxSize int64) (string, error) {
	payload, err := readLimited(file, maxSize)
	if err != nil {
		return "", err
	}
	if mime := mimetype.Detect(payload); !strings.HasPrefix(mime.String(), "text/") {
		return "", fmt.Errorf("%s is %s, expected text", file.Name, mime.String())
	}
	return string(payload), nil
}

func extractZip(payload []byte, dir string, maxUncompressed uint64) error {
	reader, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return fmt.Errorf("open zip: %w", ErrUnsafeArchive)
	}

	var total uint64
	for _, f := range reader.File {
		total += f.UncompressedSize64
		if total > maxUncompressed {
			return fmt.Errorf("zip archive uncompressed size too large: %w", ErrUnsafeArchive)
		}
	}

	root := filepath.Clean(dir) + string(os.PathSeparator)
	for _, f := range reader.File {
		target := filepath.Join(dir, f.Name)
		if !strings.HasPrefix(target, root) {
			return fmt.Errorf("zip entry %q escapes workspace: %w", f.Name, ErrUnsafeArchive)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if !f.Mode().IsRegular() {
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := writeZipEntry(f, target); err != nil {
			return err
		}
	}
	return nil
}

func writeZipEntry(f *zip.File, target string) error {
	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("open zip entry %s: %w", f.Name, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, io.LimitReader(src, int64(f.UncompressedSize64)+1)); err != nil {
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	return nil
}

func isZip(mime string) bool {
	switch strings.ToLower(mime) {
	case "application/zip", "application/x-zip-compressed":
		return true
	default:
		return false
	}
}

func isRecording(mime string) bool {
	lower := strings.ToLower(mime)
	return strings.HasPrefix(lower, "video/") || strings.HasPrefix(lower, "audio/")
}

func sanitizeFileName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	ext := strings.ToLower(filepath.Ext(base))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		if r == '-' || r == '_' {
			return r
		}
		return '_'
	}, stem)
	stem = strings.Trim(stem, "_")
	if stem == "" {
		stem = "upload"
	}
	return stem + ext
}
