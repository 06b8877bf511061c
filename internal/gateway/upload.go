package gateway

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"clipwatch/internal/api"
	"clipwatch/internal/fileutil"
	"clipwatch/internal/services"
)

const mebibyte = 1 << 20

var allowedUploadTypes = map[string]struct{}{
	"video/mp4":        {},
	"video/avi":        {},
	"video/x-msvideo":  {},
	"video/mkv":        {},
	"video/x-matroska": {},
	"video/webm":       {},
	"video/quicktime":  {},
}

var errNoVideo = services.Wrap(services.ErrValidation, "", "", "No video uploaded", nil)

// upload is a multipart video part written to disk.
type upload struct {
	Path     string
	Filename string
	Original string
	Size     int64
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mediaType, "multipart/")
}

// receiveVideo streams the "video" part of a multipart request into dir under
// a name chosen by nameFor(original extension). Parts with a MIME type
// outside the allow list are rejected. Other parts are ignored.
func receiveVideo(w http.ResponseWriter, r *http.Request, dir string, limitMB int, nameFor func(ext string) string) (upload, error) {
	limit := int64(limitMB) * mebibyte
	r.Body = http.MaxBytesReader(w, r.Body, limit+mebibyte)
	reader, err := r.MultipartReader()
	if err != nil {
		return upload{}, errNoVideo
	}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return upload{}, errNoVideo
		}
		if err != nil {
			return upload{}, services.Wrap(services.ErrValidation, "gateway", "upload", "malformed multipart body", err)
		}
		if part.FormName() != api.UploadField || part.FileName() == "" {
			_ = part.Close()
			continue
		}
		mediaType, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if _, ok := allowedUploadTypes[strings.ToLower(mediaType)]; !ok {
			_ = part.Close()
			return upload{}, services.Wrap(services.ErrValidation, "", "", fmt.Sprintf("unsupported video type %q", mediaType), nil)
		}

		original := filepath.Base(part.FileName())
		if err := os.MkdirAll(dir, 0o755); err != nil {
			_ = part.Close()
			return upload{}, services.Wrap(services.ErrStorage, "gateway", "upload", "create upload directory", err)
		}
		name := nameFor(strings.ToLower(filepath.Ext(original)))
		target := uniquePath(filepath.Join(dir, name))
		size, err := fileutil.WriteLimited(target, part, limit)
		_ = part.Close()
		if err != nil {
			if errors.Is(err, fileutil.ErrTooLarge) {
				return upload{}, services.Wrap(services.ErrValidation, "", "", fmt.Sprintf("video exceeds %d MiB", limitMB), nil)
			}
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return upload{}, services.Wrap(services.ErrValidation, "", "", fmt.Sprintf("video exceeds %d MiB", limitMB), nil)
			}
			return upload{}, services.Wrap(services.ErrStorage, "gateway", "upload", "write video", err)
		}
		return upload{Path: target, Filename: filepath.Base(target), Original: original, Size: size}, nil
	}
}

// uniquePath appends a counter before the extension until path is unused.
func uniquePath(path string) string {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate
		}
	}
}
