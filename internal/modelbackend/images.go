package modelbackend

import (
	"context"

	"neurocase/internal/model"
)

type generateImagesRequest struct {
	Prompt     string   `json:"prompt"`
	Timepoints []string `json:"timepoints"`
}

type generateImagesResponse struct {
	Images map[string]string `json:"images"`
}

// GenerateImages requests images for the given timepoints (all four when nil)
// and returns the subset the backend produced. Response keys outside the
// fixed timepoint domain are dropped.
func (c *Client) GenerateImages(ctx context.Context, prompt string, timepoints []model.Timepoint) (map[model.Timepoint]string, error) {
	if len(timepoints) == 0 {
		timepoints = model.AllTimepoints()
	}
	tps := make([]string, 0, len(timepoints))
	for _, tp := range timepoints {
		tps = append(tps, string(tp))
	}

	var out generateImagesResponse
	err := c.postJSON(ctx, "/model/generate_images", generateImagesRequest{
		Prompt:     prompt,
		Timepoints: tps,
	}, &out)
	if err != nil {
		return nil, err
	}

	images := make(map[model.Timepoint]string, len(out.Images))
	for raw, url := range out.Images {
		if tp, ok := model.ParseTimepoint(raw); ok && url != "" {
			images[tp] = url
		}
	}
	return images, nil
}
