package playerjs

import (
	"context"
	"fmt"
	"regexp"
)

// DefaultTokenPattern is the shape of a usable signature token.
var DefaultTokenPattern = regexp.MustCompile(`^AO[a-zA-Z0-9_-]+=*$`)

// EngineConfig configures an Engine.
type EngineConfig struct {
	Source ScriptSource
	Cache  ProgramCache
	// Known overrides the embedded known-program table.
	Known        []KnownProgram
	DisableKnown bool
	// TokenPattern validates known-program output.
	TokenPattern *regexp.Regexp
	// Probe enables evaluation of unclassified helper functions.
	Probe bool
}

// Engine decrypts obfuscated tokens against client scripts.
type Engine struct {
	source  ScriptSource
	cache   ProgramCache
	known   []KnownProgram
	pattern *regexp.Regexp
	probe   bool
}

func NewEngine(cfg EngineConfig) *Engine {
	cache := cfg.Cache
	if cache == nil {
		cache = NewMemoryProgramCache(0)
	}
	pattern := cfg.TokenPattern
	if pattern == nil {
		pattern = DefaultTokenPattern
	}
	var known []KnownProgram
	if !cfg.DisableKnown {
		known = cfg.Known
		if known == nil {
			known = BuiltinKnownPrograms()
		}
	}
	return &Engine{
		source:  cfg.Source,
		cache:   cache,
		known:   known,
		pattern: pattern,
		probe:   cfg.Probe,
	}
}

// Cache returns the program cache shared by this engine.
func (e *Engine) Cache() ProgramCache {
	return e.cache
}

// Decrypt returns the usable form of token for the script at scriptURL.
// Known programs are tried first and accepted only when their output matches
// the token pattern; otherwise a program is derived from the live script.
func (e *Engine) Decrypt(ctx context.Context, scriptURL, token string) (string, error) {
	for _, kp := range e.known {
		if out := kp.Program.Apply(token); e.pattern.MatchString(out) {
			return out, nil
		}
	}
	prog, err := e.Program(ctx, scriptURL, token)
	if err != nil {
		return "", err
	}
	return prog.Apply(token), nil
}

// Program returns the program for scriptURL and tokens shaped like example,
// deriving and caching it on a miss.
func (e *Engine) Program(ctx context.Context, scriptURL, example string) (Program, error) {
	if err := ctx.Err(); err != nil {
		return Program{}, err
	}
	var script string
	id := scriptIDFromURL(scriptURL)
	if id == "" {
		body, err := e.script(ctx, scriptURL)
		if err != nil {
			return Program{}, err
		}
		script = body
		id = Fingerprint(script)
	}

	key := CacheKey(id, example)
	if p, ok := e.cache.Get(key).Get(); ok {
		return p, nil
	}

	if script == "" {
		body, err := e.script(ctx, scriptURL)
		if err != nil {
			return Program{}, err
		}
		script = body
	}
	prog, err := DeriveProgram(script, example, DeriveOptions{Probe: e.probe})
	if err != nil {
		return Program{}, fmt.Errorf("derive program from %s: %w", scriptURL, err)
	}
	e.cache.Set(key, prog)
	return prog, nil
}

// Valid reports whether token matches the engine's token pattern.
func (e *Engine) Valid(token string) bool {
	return e.pattern.MatchString(token)
}

func (e *Engine) script(ctx context.Context, scriptURL string) (string, error) {
	if e.source == nil {
		return "", fmt.Errorf("no script source configured for %s", scriptURL)
	}
	return e.source.Script(ctx, scriptURL)
}
