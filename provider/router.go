package provider

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/sahilm/fuzzy"
	"golang.org/x/sync/errgroup"

	"playground/logx"
	"playground/model"
	"playground/ollama"
)

// ErrUnknownProvider is returned for model ids whose provider prefix is not
// configured.
var ErrUnknownProvider = errors.New("unknown provider")

// KeyFunc looks up an API key by credential name ("OPENAI_API_KEY"). It
// returns "" when the key is not set.
type KeyFunc func(name string) string

// UnknownModelError reports a model id that cannot be routed, with the
// closest known model ids.
type UnknownModelError struct {
	ModelID     string
	Suggestions []string
}

func (e *UnknownModelError) Error() string {
	msg := fmt.Sprintf("%s: cannot route model %q", ErrUnknownProvider, e.ModelID)
	if len(e.Suggestions) > 0 {
		msg += " (did you mean " + strings.Join(e.Suggestions, ", ") + "?)"
	}
	return msg
}

func (e *UnknownModelError) Unwrap() error { return ErrUnknownProvider }

type cachedBackend struct {
	key     string
	backend Backend
}

// Router implements model.Transport over several backends. Model ids take
// the form "<provider>/<model>"; the prefix picks the backend and the rest is
// sent upstream.
type Router struct {
	providers map[ProviderType]Config
	keys      KeyFunc
	build     func(Config) (Backend, error)

	mu       sync.Mutex
	backends map[ProviderType]cachedBackend
	catalog  []ollama.ModelInfo
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithBackendFactory replaces NewBackend, mainly for tests.
func WithBackendFactory(build func(Config) (Backend, error)) RouterOption {
	return func(r *Router) { r.build = build }
}

// WithCatalog seeds the list of known models used for suggestions.
func WithCatalog(models []ollama.ModelInfo) RouterOption {
	return func(r *Router) { r.catalog = models }
}

// NewRouter returns a router over the given provider configs. The APIKey of
// each config is ignored; keys are looked up through keys on every request so
// that a key added while the program runs takes effect.
func NewRouter(providers []Config, keys KeyFunc, opts ...RouterOption) *Router {
	r := &Router{
		providers: make(map[ProviderType]Config, len(providers)),
		keys:      keys,
		build:     NewBackend,
		backends:  make(map[ProviderType]cachedBackend),
	}
	for _, cfg := range providers {
		r.providers[cfg.Type] = cfg
	}
	if r.keys == nil {
		r.keys = func(string) string { return "" }
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SplitModelID splits "openai/gpt-4o" into its provider and model parts.
// OpenRouter model ids keep their vendor prefix: "openrouter/meta-llama/x"
// yields ("openrouter", "meta-llama/x").
func SplitModelID(id string) (ProviderType, string, bool) {
	prefix, rest, ok := strings.Cut(id, "/")
	if !ok || prefix == "" || rest == "" {
		return "", "", false
	}
	return MapProviderIDToType(prefix), rest, true
}

// missing describes a request that cannot be sent for lack of a credential.
type missing struct {
	keyName string
}

func (m missing) reason() string {
	return fmt.Sprintf("%s is not set", m.keyName)
}

// resolve returns the backend for a model id, or a missing credential.
func (r *Router) resolve(modelID string) (Backend, string, *missing, error) {
	pt, upstream, ok := SplitModelID(modelID)
	if !ok {
		return nil, "", nil, r.unknown(modelID)
	}
	cfg, ok := r.providers[pt]
	if !ok {
		return nil, "", nil, r.unknown(modelID)
	}

	key := ""
	if name := CredentialName(pt); name != "" {
		key = r.keys(name)
		if key == "" {
			return nil, "", &missing{keyName: name}, nil
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.backends[pt]; ok && c.key == key {
		return c.backend, upstream, nil, nil
	}

	cfg.APIKey = key
	b, err := r.build(cfg)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to create %s backend: %w", pt, err)
	}
	r.backends[pt] = cachedBackend{key: key, backend: b}
	logx.Debug().Str("provider", string(pt)).Msg("backend created")
	return b, upstream, nil, nil
}

func (r *Router) unknown(modelID string) error {
	r.mu.Lock()
	catalog := r.catalog
	r.mu.Unlock()
	return &UnknownModelError{ModelID: modelID, Suggestions: SuggestModels(modelID, catalog, 3)}
}

// CompletionsCreate implements model.Transport.
func (r *Router) CompletionsCreate(ctx context.Context, req model.CompletionRequest) (*model.Response, error) {
	b, upstream, miss, err := r.resolve(req.Model)
	if err != nil {
		return nil, err
	}
	if miss != nil {
		return &model.Response{APIKeyName: miss.keyName, Reason: miss.reason()}, nil
	}
	req.Model = upstream
	return b.CompletionsCreate(ctx, req)
}

// CompletionsCreateStream implements model.Transport. A missing credential
// yields an empty stream whose metadata names the key.
func (r *Router) CompletionsCreateStream(ctx context.Context, req model.CompletionRequest) (model.ChunkStream, error) {
	b, upstream, miss, err := r.resolve(req.Model)
	if err != nil {
		return nil, err
	}
	if miss != nil {
		return staticStream(model.StreamMeta{APIKeyName: miss.keyName, Reason: miss.reason()}), nil
	}
	req.Model = upstream
	return b.CompletionsCreateStream(ctx, req)
}

// Providers lists the configured provider types in a stable order.
func (r *Router) Providers() []ProviderType {
	out := make([]ProviderType, 0, len(r.providers))
	for pt := range r.providers {
		out = append(out, pt)
	}
	slices.Sort(out)
	return out
}

// ListModels queries every configured provider that has its credential and
// returns the combined list. Providers that fail are logged and skipped. The
// result becomes the catalog used for suggestions.
func (r *Router) ListModels(ctx context.Context) ([]ollama.ModelInfo, error) {
	providers := r.Providers()
	results := make([][]ollama.ModelInfo, len(providers))

	g, ctx := errgroup.WithContext(ctx)
	for i, pt := range providers {
		g.Go(func() error {
			b, _, miss, err := r.resolve(string(pt) + "/-")
			if err != nil || miss != nil {
				return nil
			}
			models, err := b.ListModels(ctx)
			if err != nil {
				logx.Warn().Str("provider", string(pt)).Err(err).Msg("listing models failed")
				return nil
			}
			results[i] = models
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []ollama.ModelInfo
	for _, models := range results {
		all = append(all, models...)
	}

	r.mu.Lock()
	r.catalog = all
	r.mu.Unlock()
	return all, nil
}

// SuggestModels returns up to limit model ids from models that fuzzily match
// query, best match first.
func SuggestModels(query string, models []ollama.ModelInfo, limit int) []string {
	if len(models) == 0 || query == "" {
		return nil
	}
	ids := make([]string, len(models))
	for i, m := range models {
		ids[i] = m.ID()
	}
	matches := fuzzy.Find(query, ids)
	if len(matches) == 0 {
		// Fall back to matching the model part alone.
		if _, rest, ok := strings.Cut(query, "/"); ok {
			matches = fuzzy.Find(rest, ids)
		}
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Str
	}
	return out
}
