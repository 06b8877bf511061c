package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"clipwatch/internal/logging"
	"clipwatch/internal/media"
	"clipwatch/internal/queue"
	"clipwatch/internal/services"
)

// Submit creates a pending job for path and dispatches it.
func (m *Manager) Submit(ctx context.Context, path string, origin queue.Origin) (*queue.Job, error) {
	job, err := m.store.NewJob(ctx, path, origin)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "workflow", "submit", "create job", err)
	}
	logging.WithContext(services.WithJobID(ctx, job.ID), m.logger).Info("job queued",
		logging.String(logging.FieldSourcePath, path),
		logging.String("origin", string(origin)),
	)
	m.dispatch(job)
	return job, nil
}

// SubmitPath submits an existing file or every video directly inside a
// directory. batch reports whether path was a directory. A missing path, a
// non-video file or a directory without videos is a validation error and
// creates no job.
func (m *Manager) SubmitPath(ctx context.Context, path string) (jobs []*queue.Job, batch bool, err error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, false, services.Wrap(services.ErrValidation, "workflow", "submit path", "invalid path", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, services.Wrap(services.ErrValidation, "workflow", "submit path", "path does not exist", nil)
		}
		return nil, false, services.Wrap(services.ErrValidation, "workflow", "submit path", "path not readable", err)
	}

	if !info.IsDir() {
		if !media.IsVideo(abs) {
			return nil, false, services.Wrap(services.ErrValidation, "workflow", "submit path", "file is not a supported video", nil)
		}
		job, err := m.Submit(ctx, abs, queue.OriginPath)
		if err != nil {
			return nil, false, err
		}
		return []*queue.Job{job}, false, nil
	}

	videos, err := media.ListVideos(abs)
	if err != nil {
		return nil, true, services.Wrap(services.ErrValidation, "workflow", "submit path", "directory not readable", err)
	}
	if len(videos) == 0 {
		return nil, true, services.Wrap(services.ErrValidation, "workflow", "submit path", "directory contains no supported videos", nil)
	}
	jobs = make([]*queue.Job, 0, len(videos))
	for _, video := range videos {
		job, err := m.Submit(ctx, video.Path, queue.OriginPath)
		if err != nil {
			return jobs, true, err
		}
		jobs = append(jobs, job)
	}
	return jobs, true, nil
}
