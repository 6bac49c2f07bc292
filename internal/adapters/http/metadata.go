package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

var ErrMetadataNotFound = errors.New("video metadata not found")

type VideoMetadata struct {
	VideoID   string `json:"video_id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Thumbnail string `json:"thumbnail"`
}

// MetadataClient looks up video metadata through an oEmbed-style endpoint.
type MetadataClient struct {
	endpoint string
	client   *http.Client
}

func NewMetadataClient(endpoint string, timeout time.Duration) *MetadataClient {
	return &MetadataClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (m *MetadataClient) Lookup(ctx context.Context, videoID string) (*VideoMetadata, error) {
	q := url.Values{}
	q.Set("url", "https://www.youtube.com/watch?v="+videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build metadata request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("metadata request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ErrMetadataNotFound
	}

	var body struct {
		Title        string `json:"title"`
		AuthorName   string `json:"author_name"`
		ThumbnailURL string `json:"thumbnail_url"`
		Error        string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if body.Error != "" {
		return nil, ErrMetadataNotFound
	}
	return &VideoMetadata{
		VideoID:   videoID,
		Title:     body.Title,
		Author:    body.AuthorName,
		Thumbnail: body.ThumbnailURL,
	}, nil
}
