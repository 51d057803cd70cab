package modelbackend

import (
	"context"
	"fmt"
)

// DefaultVideoSeconds is the clip length requested when neither the caller
// nor the configuration provides a positive duration.
const DefaultVideoSeconds = 7

type generateVideoRequest struct {
	ImageURL string `json:"image_url"`
	Prompt   string `json:"prompt"`
	Seconds  int    `json:"seconds"`
}

type generateVideoResponse struct {
	VideoURL string `json:"video_url"`
}

// GenerateVideo requests a short video animated from the given image.
// A response without a video_url is an error.
func (c *Client) GenerateVideo(ctx context.Context, imageURL, prompt string, seconds int) (string, error) {
	if seconds <= 0 {
		seconds = c.videoSeconds
	}

	var out generateVideoResponse
	err := c.postJSON(ctx, "/model/generate_video", generateVideoRequest{
		ImageURL: imageURL,
		Prompt:   prompt,
		Seconds:  seconds,
	}, &out)
	if err != nil {
		return "", err
	}
	if out.VideoURL == "" {
		return "", fmt.Errorf("model backend returned no video_url")
	}
	return out.VideoURL, nil
}
