package playerjs

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/metafates/gache"
	"github.com/samber/mo"
	"github.com/spf13/afero"
)

// gacheFs adapts an afero filesystem to the gache.FileSystem interface.
type gacheFs struct {
	fs afero.Afero
}

func (g *gacheFs) OpenFile(name string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	return g.fs.OpenFile(name, flag, perm)
}

func (g *gacheFs) MkdirAll(path string, perm os.FileMode) error {
	return g.fs.MkdirAll(path, perm)
}

type persistedProgramCache struct {
	mu       sync.Mutex
	internal *gache.Cache[map[string]Program]
}

// NewPersistedProgramCache stores every program in one file at path on fs.
// The whole file expires after ttl; zero keeps it forever.
func NewPersistedProgramCache(fs afero.Fs, path string, ttl time.Duration) ProgramCache {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &persistedProgramCache{
		internal: gache.New[map[string]Program](&gache.Options{
			Path:       path,
			Lifetime:   ttl,
			FileSystem: &gacheFs{fs: afero.Afero{Fs: fs}},
		}),
	}
}

func (c *persistedProgramCache) Get(key string) mo.Option[Program] {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, expired, err := c.internal.Get()
	if err != nil || expired || data == nil {
		return mo.None[Program]()
	}
	p, ok := data[key]
	if !ok {
		return mo.None[Program]()
	}
	return mo.Some(p)
}

func (c *persistedProgramCache) Set(key string, p Program) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, expired, err := c.internal.Get()
	if err != nil || expired || data == nil {
		data = make(map[string]Program)
	}
	data[key] = p
	_ = c.internal.Set(data)
}

func (c *persistedProgramCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.internal.Set(make(map[string]Program))
}
