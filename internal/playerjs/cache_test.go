package playerjs

import (
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestMemoryProgramCache_TTL(t *testing.T) {
	c := NewMemoryProgramCache(time.Minute).(*memoryProgramCache)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	p := Program{Steps: []Step{{OpReverse, 0}}}
	c.Set("k", p)
	if _, ok := c.Get("k").Get(); !ok {
		t.Fatalf("Get() miss before ttl")
	}
	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("k").Get(); ok {
		t.Fatalf("Get() hit after ttl")
	}
}

func TestMemoryProgramCache_Clear(t *testing.T) {
	c := NewMemoryProgramCache(0)
	c.Set("k", Program{Steps: []Step{{OpSplice, 1}}})
	c.Clear()
	if c.Get("k").IsPresent() {
		t.Fatalf("Get() hit after Clear")
	}
}

func TestMemoryProgramCache_ConcurrentAccess(t *testing.T) {
	c := NewMemoryProgramCache(0)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set("k", Program{Steps: []Step{{OpSwap, j}}})
				_ = c.Get("k")
			}
		}()
	}
	wg.Wait()
	if !c.Get("k").IsPresent() {
		t.Fatalf("Get() miss after concurrent writes")
	}
}

func TestPersistedProgramCache_SurvivesReopen(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := Program{Steps: []Step{{OpSwap, 20}, {OpSplice, 2}}}

	first := NewPersistedProgramCache(fs, "/cache/programs.json", time.Hour)
	first.Set("abc_44", p)

	second := NewPersistedProgramCache(fs, "/cache/programs.json", time.Hour)
	got, ok := second.Get("abc_44").Get()
	if !ok {
		t.Fatalf("Get() miss after reopen")
	}
	if got.String() != p.String() {
		t.Fatalf("Get() = %v, want %v", got, p)
	}
}

func TestLayeredProgramCache_BackfillsFasterLayer(t *testing.T) {
	mem := NewMemoryProgramCache(0)
	disk := NewPersistedProgramCache(afero.NewMemMapFs(), "/p.json", 0)
	disk.Set("k", Program{Steps: []Step{{OpReverse, 0}}})

	layered := NewLayeredProgramCache(mem, disk)
	if !layered.Get("k").IsPresent() {
		t.Fatalf("layered Get() miss")
	}
	if !mem.Get("k").IsPresent() {
		t.Fatalf("memory layer not back-filled")
	}
	layered.Clear()
	if disk.Get("k").IsPresent() || mem.Get("k").IsPresent() {
		t.Fatalf("Clear() did not reach every layer")
	}
}
