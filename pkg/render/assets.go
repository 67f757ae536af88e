package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"

	"github.com/dtnitsch/llm-report-pipeline/models"
)

const maxAssetBytes = 10 << 20

// imageAsset is a decoded-and-verified image ready for embedding.
type imageAsset struct {
	name   string
	data   []byte
	format string // gif, jpeg or png
	width  int
	height int
}

// loadAssets loads the document's optional images. Failures become
// MissingAsset errors; they never stop rendering.
func (r *Renderer) loadAssets(ctx context.Context, a Assets) (logo, img *imageAsset, problems []error) {
	if a.LogoPath != "" {
		data, err := os.ReadFile(a.LogoPath)
		if err == nil {
			logo, err = decodeAsset("logo", data)
		}
		if err != nil {
			problems = append(problems, &models.RenderError{Kind: models.RenderMissingAsset, Asset: a.LogoPath, Err: err})
			logo = nil
		}
	}

	if a.ImageURL != "" {
		data, err := r.download(ctx, a.ImageURL)
		if err == nil {
			img, err = decodeAsset("image", data)
		}
		if err != nil {
			problems = append(problems, &models.RenderError{Kind: models.RenderMissingAsset, Asset: a.ImageURL, Err: err})
			img = nil
		}
	}
	return logo, img, problems
}

func (r *Renderer) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status code %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxAssetBytes))
}

func decodeAsset(name string, data []byte) (*imageAsset, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unsupported image: %w", err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, fmt.Errorf("image has no size")
	}
	return &imageAsset{name: name, data: data, format: format, width: cfg.Width, height: cfg.Height}, nil
}
