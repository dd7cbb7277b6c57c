// Package engine implements the plugin registry and selection protocol shared
// by the STT and TTS backends. Each backend registers an immutable Descriptor
// at process start; callers select an engine by slug and get a freshly
// constructed instance or a typed error telling them exactly what went wrong.
//
// Selection failures are the only errors that cross this boundary. Per-call
// failures inside a constructed engine (transient HTTP errors, decoder
// hiccups, refresh failures) are absorbed by the engine itself: logged, then
// surfaced as an empty result.
package engine

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/speechbox/speechbox/internal/probe"
)

// Kind separates the two engine families.
type Kind int

const (
	STT Kind = iota
	TTS
)

func (k Kind) String() string {
	if k == TTS {
		return "tts"
	}
	return "stt"
}

// Descriptor is the registration record for one engine implementation.
// Registered once per process through an explicit table, never discovered at
// runtime.
type Descriptor[T any] struct {
	// Slug is the stable identifier callers select by. Exact, case-sensitive.
	Slug string
	// Probe gates selection on the engine's runtime dependencies. A nil
	// probe means always available.
	Probe probe.Probe
	// New constructs an instance. Called only after the probe passes;
	// resolves configuration at call time so profile reloads take effect on
	// the next selection.
	New func(ctx context.Context) (T, error)
}

// Registry holds the descriptors of one engine kind in registration order.
type Registry[T any] struct {
	kind        Kind
	descriptors []Descriptor[T]
	log         zerolog.Logger
}

// NewRegistry creates an empty registry for the given kind.
func NewRegistry[T any](kind Kind, log zerolog.Logger) *Registry[T] {
	return &Registry[T]{
		kind: kind,
		log:  log.With().Str("component", "engine-registry").Str("kind", kind.String()).Logger(),
	}
}

// Register appends a descriptor. Duplicate slugs are kept so the selection
// path can report them; the first registration wins.
func (r *Registry[T]) Register(d Descriptor[T]) {
	r.descriptors = append(r.descriptors, d)
}

// Kind returns the engine family this registry holds.
func (r *Registry[T]) Kind() Kind { return r.kind }

// Descriptors returns the registered descriptors in registration order.
func (r *Registry[T]) Descriptors() []Descriptor[T] {
	return r.descriptors
}

// Select finds the descriptor for slug, verifies availability, and constructs
// an instance.
//
// Error contract, in order of evaluation:
//   - empty slug: ErrInvalidSelector
//   - no descriptor matches: *NotFoundError
//   - probe reports a missing dependency: *UnavailableError (the engine is
//     never constructed)
//   - the factory fails: *InitError wrapping the cause
//
// More than one matching descriptor is a registration bug: a warning is
// logged and the first match in registration order is used.
func (r *Registry[T]) Select(ctx context.Context, slug string) (T, error) {
	var zero T
	if slug == "" {
		return zero, ErrInvalidSelector
	}

	var matches []Descriptor[T]
	for _, d := range r.descriptors {
		if d.Slug == slug {
			matches = append(matches, d)
		}
	}
	if len(matches) == 0 {
		return zero, &NotFoundError{Kind: r.kind, Slug: slug}
	}
	if len(matches) > 1 {
		r.log.Warn().
			Str("slug", slug).
			Int("registrations", len(matches)).
			Msg("duplicate engine registration, using the first")
	}

	d := matches[0]
	if d.Probe != nil {
		if err := d.Probe.Check(ctx); err != nil {
			return zero, &UnavailableError{Kind: r.kind, Slug: slug, Reason: err}
		}
	}

	inst, err := d.New(ctx)
	if err != nil {
		return zero, &InitError{Kind: r.kind, Slug: slug, Err: err}
	}
	return inst, nil
}

// Status is one row of an availability report.
type Status struct {
	Slug string
	Kind Kind
	Err  error // nil when every probe passed
}

// Availability runs every registered probe and reports per-engine results.
// Used by the health endpoint, the engines listing, and the doctor command.
func (r *Registry[T]) Availability(ctx context.Context) []Status {
	out := make([]Status, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		s := Status{Slug: d.Slug, Kind: r.kind}
		if d.Probe != nil {
			s.Err = d.Probe.Check(ctx)
		}
		out = append(out, s)
	}
	return out
}
