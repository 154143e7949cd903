package gbp

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

const (
	// MaxMediaPages bounds paged media listings.
	MaxMediaPages = 10
	// DefaultMediaPageSize is the page size of media listings.
	DefaultMediaPageSize = 20
)

// LocationAssociation places a photo in a location's library.
type LocationAssociation struct {
	Category string `json:"category,omitempty"`
}

// MediaItem is a photo attached to a post or stored in a location's library.
type MediaItem struct {
	Name                string               `json:"name,omitempty"`
	MediaFormat         string               `json:"mediaFormat,omitempty"`
	SourceURL           string               `json:"sourceUrl,omitempty"`
	GoogleURL           string               `json:"googleUrl,omitempty"`
	ThumbnailURL        string               `json:"thumbnailUrl,omitempty"`
	Description         string               `json:"description,omitempty"`
	CreateTime          string               `json:"createTime,omitempty"`
	LocationAssociation *LocationAssociation `json:"locationAssociation,omitempty"`
}

// Photo returns a PHOTO media item for sourceURL.
func Photo(sourceURL string) MediaItem {
	return MediaItem{MediaFormat: "PHOTO", SourceURL: sourceURL}
}

// mediaPaths lists the media collection paths to try, most specific last.
func mediaPaths(loc Location) []string {
	paths := []string{"locations/" + url.PathEscape(loc.LocationID) + "/media"}
	if loc.AccountID != "" {
		paths = append(paths, "accounts/"+url.PathEscape(loc.AccountID)+"/locations/"+url.PathEscape(loc.LocationID)+"/media")
	}
	return paths
}

// UploadMedia adds a photo to the location's library.
// The collection paths are tried in turn while the API answers 404.
func (c *Client) UploadMedia(ctx context.Context, loc Location, item MediaItem) (*MediaItem, error) {
	if err := loc.validate(); err != nil {
		return nil, err
	}
	var lastErr error
	for _, path := range mediaPaths(loc) {
		var created MediaItem
		err := c.post(ctx, path, item, &created)
		if err == nil {
			c.logger.Info("Uploaded media", "location_id", loc.LocationID, "name", created.Name)
			return &created, nil
		}
		lastErr = err
		if !IsNotFound(err) {
			break
		}
	}
	return nil, fmt.Errorf("upload media: %w", lastErr)
}

// ListMedia returns up to pages pages of the location's media, newest first as returned by the API.
// pages is clamped to 1..MaxMediaPages.
func (c *Client) ListMedia(ctx context.Context, loc Location, pageSize, pages int) ([]MediaItem, error) {
	if err := loc.validate(); err != nil {
		return nil, err
	}
	if pageSize <= 0 {
		pageSize = DefaultMediaPageSize
	}
	pages = min(max(pages, 1), MaxMediaPages)

	var all []MediaItem
	token := ""
	for range pages {
		q := url.Values{"pageSize": {strconv.Itoa(pageSize)}}
		if token != "" {
			q.Set("pageToken", token)
		}
		var resp struct {
			MediaItems    []MediaItem `json:"mediaItems"`
			NextPageToken string      `json:"nextPageToken"`
		}
		var lastErr error
		for _, path := range mediaPaths(loc) {
			lastErr = c.get(ctx, path+"?"+q.Encode(), &resp)
			if lastErr == nil || !IsNotFound(lastErr) {
				break
			}
		}
		if lastErr != nil {
			return nil, fmt.Errorf("list media: %w", lastErr)
		}
		all = append(all, resp.MediaItems...)
		token = resp.NextPageToken
		if token == "" {
			break
		}
	}
	return all, nil
}
