package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".mov":  {},
	".avi":  {},
	".mkv":  {},
	".webm": {},
}

// VideoFile is a video found on disk.
type VideoFile struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// IsVideo reports whether path carries one of the recognised video extensions.
func IsVideo(path string) bool {
	_, ok := videoExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// ContentType maps a video path to the MIME type served for it.
func ContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	default:
		return "video/*"
	}
}

// ListVideos returns the regular video files directly inside dir, oldest
// modification time first. Ties are broken by path. A missing directory
// yields an empty list.
func ListVideos(dir string) ([]VideoFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list videos in %s: %w", dir, err)
	}
	videos := make([]VideoFile, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !IsVideo(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		path, err := filepath.Abs(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		videos = append(videos, VideoFile{Path: path, Size: info.Size(), ModTime: info.ModTime()})
	}
	sort.SliceStable(videos, func(i, j int) bool {
		if videos[i].ModTime.Equal(videos[j].ModTime) {
			return videos[i].Path < videos[j].Path
		}
		return videos[i].ModTime.Before(videos[j].ModTime)
	})
	return videos, nil
}

// EnforceRetention deletes the oldest videos in dir until at most max remain.
// It returns the paths it removed. Files that vanish concurrently are not
// treated as errors.
func EnforceRetention(dir string, max int) ([]string, error) {
	if max < 0 {
		max = 0
	}
	videos, err := ListVideos(dir)
	if err != nil {
		return nil, err
	}
	excess := len(videos) - max
	if excess <= 0 {
		return nil, nil
	}
	removed := make([]string, 0, excess)
	var errs []error
	for _, video := range videos[:excess] {
		if err := os.Remove(video.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, video.Path)
	}
	return removed, errors.Join(errs...)
}

// PurgeVideos removes every video in dir and returns how many were deleted.
func PurgeVideos(dir string) (int, error) {
	videos, err := ListVideos(dir)
	if err != nil {
		return 0, err
	}
	count := 0
	var errs []error
	for _, video := range videos {
		if err := os.Remove(video.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		count++
	}
	return count, errors.Join(errs...)
}

// WithinDirs reports whether path resolves inside one of dirs. Both sides are
// made absolute and cleaned; symlinks in path are resolved when it exists.
func WithinDirs(path string, dirs []string) bool {
	resolved, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	if evaluated, err := filepath.EvalSymlinks(resolved); err == nil {
		resolved = evaluated
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		base, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		if evaluated, err := filepath.EvalSymlinks(base); err == nil {
			base = evaluated
		}
		rel, err := filepath.Rel(base, resolved)
		if err != nil {
			continue
		}
		if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
			return true
		}
	}
	return false
}
