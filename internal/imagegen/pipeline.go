package imagegen

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/reverie-ai/reverie/internal/model"
	"github.com/reverie-ai/reverie/internal/store"
)

const defaultNegativePrompt = "lowres, bad anatomy, text, watermark"

// Pipeline submits one image job per post and polls until the provider
// reports it available, then downloads the result, uploads it to blob
// storage and patches the post's image path.
//
// Polling is bounded by MaxPolls so a provider that never finishes a job
// cannot pin a goroutine forever.
type Pipeline struct {
	backend  Backend
	blob     Blob
	posts    store.Posts
	http     *resty.Client
	Interval time.Duration
	MaxPolls int
	log      zerolog.Logger
}

func NewPipeline(backend Backend, blob Blob, posts store.Posts, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		backend:  backend,
		blob:     blob,
		posts:    posts,
		http:     resty.New(),
		Interval: 60 * time.Second,
		MaxPolls: 60,
		log:      log,
	}
}

// Run drives one post through the pipeline. The post's text row is already
// committed; a terminal failure downgrades it to a plain text post by
// clearing the image flag, so listings never advertise an image that was
// never produced.
func (p *Pipeline) Run(ctx context.Context, post *model.Post, ch *model.Character) error {
	if ch.CharacterID == "" || ch.ImageModel == "" {
		return fmt.Errorf("%w: image generation needs a character id and image model", model.ErrInvariant)
	}
	err := p.generate(ctx, post, ch)
	if err == nil {
		return nil
	}
	if clearErr := p.posts.ClearImage(context.WithoutCancel(ctx), post.PostID); clearErr != nil {
		p.log.Error().Err(clearErr).Str("post_id", post.PostID).Msg("failed to downgrade post after image failure")
	}
	return err
}

func (p *Pipeline) generate(ctx context.Context, post *model.Post, ch *model.Character) error {
	token, err := p.backend.Submit(ctx, ch.ImageModel, post.Prompt, defaultNegativePrompt, DefaultSamplerParams())
	if err != nil {
		return fmt.Errorf("%w: image submit: %v", model.ErrDependency, err)
	}
	p.log.Info().Str("post_id", post.PostID).Str("job", token).Msg("image job submitted")

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for polls := 0; ; polls++ {
		st, err := p.backend.Poll(ctx, token)
		if err != nil {
			return fmt.Errorf("%w: image poll: %v", model.ErrDependency, err)
		}
		if st.Faulted {
			return fmt.Errorf("%w: image job %s failed", model.ErrDependency, token)
		}
		if st.Available {
			return p.finish(ctx, post, st.URL)
		}
		if p.MaxPolls > 0 && polls+1 >= p.MaxPolls {
			return fmt.Errorf("%w: image job %s not ready after %d polls", model.ErrDependency, token, p.MaxPolls)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Pipeline) finish(ctx context.Context, post *model.Post, url string) error {
	resp, err := p.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return fmt.Errorf("%w: image download: %v", model.ErrDependency, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: image download status %d", model.ErrDependency, resp.StatusCode())
	}
	dest := fmt.Sprintf("posts/%s.png", post.PostID)
	path, err := p.blob.Upload(ctx, resp.Body(), dest)
	if err != nil {
		return fmt.Errorf("%w: blob upload: %v", model.ErrDependency, err)
	}
	if err := p.posts.SetImagePath(ctx, post.PostID, path); err != nil {
		return err
	}
	p.log.Info().Str("post_id", post.PostID).Str("path", path).Msg("image post completed")
	return nil
}
