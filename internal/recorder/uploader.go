package recorder

import (
	"context"
	"encoding/json"
	"fmt"

	"clipwatch/internal/api"
)

// GatewayUploader posts segments to one of the gateway's upload routes.
type GatewayUploader struct {
	Client *api.Client
	Route  string
}

// UploadSegment implements Uploader.
func (u GatewayUploader) UploadSegment(ctx context.Context, path string) (Upload, error) {
	route := u.Route
	if route == "" {
		route = api.RouteSaveVideo
	}
	if route == api.RouteSearch {
		accepted, err := u.Client.UploadSearch(ctx, path)
		if err != nil {
			return Upload{}, err
		}
		ids := accepted.RequestIDs
		if len(ids) == 0 && accepted.RequestID != "" {
			ids = []string{accepted.RequestID}
		}
		return Upload{RequestIDs: ids}, nil
	}

	body, err := u.Client.Upload(ctx, route, path)
	if err != nil {
		return Upload{}, err
	}
	var saved api.SaveVideoResponse
	if err := json.Unmarshal(body, &saved); err != nil {
		return Upload{}, fmt.Errorf("decode %s response: %w", route, err)
	}
	return Upload{StoredPath: saved.Path}, nil
}
