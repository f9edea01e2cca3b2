// Package prompt renders named prompt templates against a context map.
package prompt

import (
	"fmt"
	"strings"

	"github.com/reverie-ai/reverie/internal/model"
)

// Template keys known to the renderer.
const (
	KeySystem      = "system"
	KeyDelay       = "delay"
	KeyReply       = "reply"
	KeyThought     = "thought"
	KeyEvent       = "event"
	KeyPostText    = "post_text"
	KeyImagePrompt = "image_prompt"
	KeyCaption     = "caption"
)

// maxPasses bounds the fixpoint iteration so cyclic placeholders terminate.
const maxPasses = 8

var defaults = map[string]string{
	KeySystem: "You are {name}. Personality: {personality}. Appearance: {appearance}. " +
		"Scenario: {scenario}. You are chatting with {user}. Stay in character at all times.",
	KeyDelay: "Considering the conversation so far, how long would {name} wait before sending " +
		"the next message? Answer with a time expression using days, hours, minutes and seconds, " +
		"for example: 1d 2h 3m 4s.",
	KeyReply: "Write {name}'s next chat message to {user}. Respond with a JSON object of the " +
		"form {\"message\": \"...\"} and nothing else.",
	KeyThought: "Describe, in one or two sentences and in the third person, what {name} is " +
		"thinking about right now.",
	KeyEvent: "Describe, in one or two sentences and in the third person, what {name} is " +
		"doing right now.",
	KeyPostText: "Write the text of a social media post {name} would publish right now, in " +
		"{name}'s voice.",
	KeyImagePrompt: "Write a concise image-generation prompt for a photo matching this post: " +
		"{description}. Describe only the visual contents of the photo.",
	KeyCaption: "Write a short caption {name} would attach to a photo described as: " +
		"{photo_description}.",
}

// Renderer substitutes {placeholder} tokens from a context map. Substitution
// iterates until a fixpoint so nested placeholders resolve; the pass count is
// bounded.
type Renderer struct {
	templates map[string]string
}

// NewRenderer returns a renderer with the default template set.
func NewRenderer() *Renderer {
	t := make(map[string]string, len(defaults))
	for k, v := range defaults {
		t[k] = v
	}
	return &Renderer{templates: t}
}

// Override replaces the template for key. Unknown keys are accepted so
// deployments can add custom templates.
func (r *Renderer) Override(key, template string) { r.templates[key] = template }

// Render produces final text for the named template and context.
func (r *Renderer) Render(key string, ctx map[string]string) (string, error) {
	tpl, ok := r.templates[key]
	if !ok {
		return "", fmt.Errorf("%w: unknown prompt template %q", model.ErrValidation, key)
	}
	out := tpl
	for i := 0; i < maxPasses; i++ {
		next := out
		for k, v := range ctx {
			next = strings.ReplaceAll(next, "{"+k+"}", v)
		}
		if next == out {
			break
		}
		out = next
	}
	return out, nil
}

// CharacterContext builds the base context map for a character, optionally
// with the user's name.
func CharacterContext(ch *model.Character, username string) map[string]string {
	ctx := map[string]string{
		"name":        ch.Name,
		"personality": ch.Personality,
		"appearance":  ch.Appearance,
		"scenario":    ch.Scenario,
	}
	if username != "" {
		ctx["user"] = username
	} else {
		ctx["user"] = "a user"
	}
	return ctx
}
