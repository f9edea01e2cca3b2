// Package imagegen drives asynchronous image generation for image posts.
package imagegen

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// SamplerParams are passed through to the image provider untouched.
type SamplerParams struct {
	Sampler  string  `json:"sampler_name"`
	Steps    int     `json:"steps"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	CFGScale float64 `json:"cfg_scale"`
}

// DefaultSamplerParams mirror the provider defaults used for character
// portraits.
func DefaultSamplerParams() SamplerParams {
	return SamplerParams{Sampler: "k_euler_a", Steps: 30, Width: 512, Height: 512, CFGScale: 7.5}
}

// JobStatus is one poll observation of a submitted job.
type JobStatus struct {
	Available bool   `json:"available"`
	Scheduled bool   `json:"scheduled"`
	Faulted   bool   `json:"faulted"`
	URL       string `json:"url,omitempty"`
}

// Backend is the narrow contract the pipeline needs from an image provider.
type Backend interface {
	Submit(ctx context.Context, modelID, prompt, negativePrompt string, params SamplerParams) (string, error)
	Poll(ctx context.Context, jobToken string) (JobStatus, error)
}

// HTTPBackend talks to a horde-style async generation API.
type HTTPBackend struct {
	client *resty.Client
	apiKey string
}

func NewHTTPBackend(baseURL, apiKey string) *HTTPBackend {
	c := resty.New().SetBaseURL(baseURL)
	return &HTTPBackend{client: c, apiKey: apiKey}
}

type submitRequest struct {
	Prompt         string        `json:"prompt"`
	NegativePrompt string        `json:"negative_prompt,omitempty"`
	Models         []string      `json:"models"`
	Params         SamplerParams `json:"params"`
}

type submitResponse struct {
	ID      string `json:"id"`
	Message string `json:"message,omitempty"`
}

func (b *HTTPBackend) Submit(ctx context.Context, modelID, prompt, negativePrompt string, params SamplerParams) (string, error) {
	var out submitResponse
	resp, err := b.client.R().
		SetContext(ctx).
		SetHeader("apikey", b.apiKey).
		SetBody(submitRequest{Prompt: prompt, NegativePrompt: negativePrompt, Models: []string{modelID}, Params: params}).
		SetResult(&out).
		Post("/api/v2/generate/async")
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("image submit status %d: %s", resp.StatusCode(), out.Message)
	}
	if out.ID == "" {
		return "", fmt.Errorf("image submit returned no job id")
	}
	return out.ID, nil
}

type pollResponse struct {
	Done        bool `json:"done"`
	Faulted     bool `json:"faulted"`
	Waiting     int  `json:"waiting"`
	Processing  int  `json:"processing"`
	Generations []struct {
		Img string `json:"img"`
	} `json:"generations"`
}

func (b *HTTPBackend) Poll(ctx context.Context, jobToken string) (JobStatus, error) {
	var out pollResponse
	resp, err := b.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/api/v2/generate/status/" + jobToken)
	if err != nil {
		return JobStatus{}, err
	}
	if resp.IsError() {
		return JobStatus{}, fmt.Errorf("image poll status %d", resp.StatusCode())
	}
	st := JobStatus{
		Faulted:   out.Faulted,
		Scheduled: out.Waiting > 0 || out.Processing > 0,
	}
	if out.Done && len(out.Generations) > 0 {
		st.Available = true
		st.URL = out.Generations[0].Img
	}
	return st, nil
}
