package gateway

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"clipwatch/internal/api"
	"clipwatch/internal/logging"
	"clipwatch/internal/media"
)

// TemplateName is the default reference clip served by /template.
const TemplateName = "cut.mov"

func (s *Server) handleSaveVideo(w http.ResponseWriter, r *http.Request) {
	up, err := receiveVideo(w, r, s.cfg.Paths.WatchDir, s.cfg.Server.MaxSegmentMB, func(ext string) string {
		if ext == "" {
			ext = ".webm"
		}
		return fmt.Sprintf("record_%d%s", s.now().UnixMilli(), ext)
	})
	if err != nil {
		s.fail(w, r, "save video", err)
		return
	}
	logger := logging.WithContext(r.Context(), s.logger)
	logger.Info("segment saved",
		logging.String("filename", up.Original),
		logging.Int64("bytes", up.Size),
		logging.String(logging.FieldSourcePath, up.Path),
	)

	if removed, err := media.EnforceRetention(s.cfg.Paths.WatchDir, s.cfg.Watcher.RetentionMax); err != nil {
		logging.WarnWithContext(logger, "retention after save incomplete", "save_retention_failed",
			logging.String(logging.FieldErrorHint, "check permissions on the watched folder"),
			logging.Error(err),
		)
	} else if len(removed) > 0 {
		logger.Debug("retention removed segments", logging.Int("count", len(removed)))
	}
	writeJSON(w, http.StatusOK, api.SaveVideoResponse{Success: true, Path: up.Path, Filename: up.Filename})
}

func (s *Server) handleSaveVideoAuto(w http.ResponseWriter, r *http.Request) {
	up, err := receiveVideo(w, r, s.cfg.Paths.ClipDir, s.cfg.Server.MaxSegmentMB, func(string) string {
		return "videoauto_" + s.now().UTC().Format("20060102150405") + ".webm"
	})
	if err != nil {
		s.fail(w, r, "save video auto", err)
		return
	}
	logging.WithContext(r.Context(), s.logger).Info("boundary clip saved",
		logging.Int64("bytes", up.Size),
		logging.String(logging.FieldSourcePath, up.Path),
	)
	writeJSON(w, http.StatusOK, api.SaveVideoResponse{Success: true, Path: up.Path, Filename: up.Filename})
}

func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	path := filepath.Join(s.cfg.Paths.TemplateDir, TemplateName)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, "Template not found")
		return
	}
	s.serveFile(w, r, path, info.Size())
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	dir := s.cfg.Paths.TemplateDir
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		writeJSON(w, http.StatusOK, api.TemplatesResponse{Templates: []string{}, Message: "Template directory does not exist"})
		return
	}
	videos, err := media.ListVideos(dir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Cannot read template directory: "+err.Error())
		return
	}
	paths := make([]string, 0, len(videos))
	for _, video := range videos {
		paths = append(paths, video.Path)
	}
	sort.Strings(paths)
	writeJSON(w, http.StatusOK, api.TemplatesResponse{Templates: paths})
}

func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("path")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "Missing path")
		return
	}
	path, err := filepath.Abs(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid path")
		return
	}
	if !media.IsVideo(path) || !media.WithinDirs(path, s.cfg.AllowedMediaDirs()) {
		writeError(w, http.StatusForbidden, "Path not allowed")
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	s.serveFile(w, r, path, info.Size())
}

var rangePattern = regexp.MustCompile(`^bytes=(\d+)-(\d*)$`)

var errRange = errors.New("unsatisfiable range")

// parseRange interprets a single "bytes=start-end" range against size. A
// missing end means the last byte.
func parseRange(header string, size int64) (start, end int64, err error) {
	m := rangePattern.FindStringSubmatch(header)
	if m == nil {
		return 0, 0, errRange
	}
	start, err = strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, 0, errRange
	}
	end = size - 1
	if m[2] != "" {
		if end, err = strconv.ParseInt(m[2], 10, 64); err != nil {
			return 0, 0, errRange
		}
	}
	if start >= size || end >= size || end < start {
		return 0, 0, errRange
	}
	return start, end, nil
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, path string, size int64) {
	file, err := os.Open(path)
	if err != nil {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	defer file.Close()

	header := w.Header()
	header.Set("Content-Type", media.ContentType(path))
	header.Set("Accept-Ranges", "bytes")

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		header.Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			_, _ = io.Copy(w, file)
		}
		return
	}

	start, end, err := parseRange(rangeHeader, size)
	if err != nil {
		header.Del("Accept-Ranges")
		header.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		writeError(w, http.StatusRequestedRangeNotSatisfiable, "Range not satisfiable")
		return
	}
	length := end - start + 1
	header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	header.Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(http.StatusPartialContent)
	if r.Method != http.MethodHead {
		_, _ = io.Copy(w, io.NewSectionReader(file, start, length))
	}
}
