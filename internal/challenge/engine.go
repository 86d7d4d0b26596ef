package challenge

import (
	"context"

	"github.com/famomatic/mediaresolve/internal/playerjs"
)

type engineProvider struct {
	engine *playerjs.Engine
}

// NewEngineProvider exposes a decryption engine as a Provider. Scripts are
// loaded lazily by the engine, so Load never fails.
func NewEngineProvider(engine *playerjs.Engine) Provider {
	return engineProvider{engine: engine}
}

func (p engineProvider) Load(_ context.Context, scriptURL string) (Decipherer, error) {
	return engineDecipherer{engine: p.engine, scriptURL: scriptURL}, nil
}

type engineDecipherer struct {
	engine    *playerjs.Engine
	scriptURL string
}

func (d engineDecipherer) DecipherSignature(ctx context.Context, challenge string) (string, error) {
	return d.engine.Decrypt(ctx, d.scriptURL, challenge)
}
