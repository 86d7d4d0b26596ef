package playerjs

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/samber/lo"
)

//go:embed known_programs.toml
var knownProgramsTOML []byte

// KnownProgram is a fixed transform tried before deriving one from a script.
type KnownProgram struct {
	Name    string
	Program Program
}

type knownProgramsFile struct {
	Programs []struct {
		Name  string   `toml:"name"`
		Steps []string `toml:"steps"`
	} `toml:"program"`
}

// LoadKnownPrograms decodes a TOML program table.
func LoadKnownPrograms(raw []byte) ([]KnownProgram, error) {
	var file knownProgramsFile
	if err := toml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode known programs: %w", err)
	}
	out := make([]KnownProgram, 0, len(file.Programs))
	for _, entry := range file.Programs {
		steps := make([]Step, 0, len(entry.Steps))
		for _, raw := range entry.Steps {
			step, err := ParseStep(raw)
			if err != nil {
				return nil, fmt.Errorf("known program %q: %w", entry.Name, err)
			}
			steps = append(steps, step)
		}
		if len(steps) == 0 {
			return nil, fmt.Errorf("known program %q has no steps", entry.Name)
		}
		out = append(out, KnownProgram{Name: entry.Name, Program: Program{Steps: steps}})
	}
	return out, nil
}

var builtinKnownPrograms = sync.OnceValue(func() []KnownProgram {
	return lo.Must(LoadKnownPrograms(knownProgramsTOML))
})

// BuiltinKnownPrograms returns the embedded program table.
func BuiltinKnownPrograms() []KnownProgram {
	return append([]KnownProgram(nil), builtinKnownPrograms()...)
}
