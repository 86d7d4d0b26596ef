package playerjs

import (
	"fmt"
	"strconv"
	"strings"
)

// OpKind is one primitive token transform.
type OpKind string

const (
	// OpSplice drops the first Arg elements.
	OpSplice OpKind = "splice"
	// OpReverse reverses the sequence.
	OpReverse OpKind = "reverse"
	// OpSwap swaps element 0 with element Arg mod len.
	OpSwap OpKind = "swap"
)

// Step is one program instruction.
type Step struct {
	Kind OpKind `json:"kind" toml:"kind"`
	Arg  int    `json:"arg,omitempty" toml:"arg"`
}

func (s Step) String() string {
	if s.Kind == OpReverse {
		return string(s.Kind)
	}
	return string(s.Kind) + " " + strconv.Itoa(s.Arg)
}

// Program is an ordered list of steps that undoes a token obfuscation.
type Program struct {
	Steps []Step `json:"steps"`
}

// Apply runs the program over token and returns a new string.
func (p Program) Apply(token string) string {
	bs := []byte(token)
	for _, step := range p.Steps {
		bs = step.apply(bs)
	}
	return string(bs)
}

func (p Program) String() string {
	parts := make([]string, 0, len(p.Steps))
	for _, s := range p.Steps {
		parts = append(parts, s.String())
	}
	return strings.Join(parts, ", ")
}

func (s Step) apply(bs []byte) []byte {
	switch s.Kind {
	case OpSplice:
		if s.Arg < 0 {
			return bs
		}
		if s.Arg > len(bs) {
			return bs[:0]
		}
		return bs[s.Arg:]
	case OpReverse:
		l, r := 0, len(bs)-1
		for l < r {
			bs[l], bs[r] = bs[r], bs[l]
			l++
			r--
		}
		return bs
	case OpSwap:
		if len(bs) == 0 {
			return bs
		}
		pos := s.Arg % len(bs)
		if pos < 0 {
			pos += len(bs)
		}
		bs[0], bs[pos] = bs[pos], bs[0]
		return bs
	}
	return bs
}

// ParseStep parses the textual form produced by Step.String, e.g. "swap 13".
func ParseStep(raw string) (Step, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return Step{}, fmt.Errorf("empty program step")
	}
	kind := OpKind(strings.ToLower(fields[0]))
	switch kind {
	case OpReverse:
		if len(fields) != 1 {
			return Step{}, fmt.Errorf("reverse takes no argument: %q", raw)
		}
		return Step{Kind: OpReverse}, nil
	case OpSplice, OpSwap:
		if len(fields) != 2 {
			return Step{}, fmt.Errorf("%s needs one argument: %q", kind, raw)
		}
		arg, err := strconv.Atoi(fields[1])
		if err != nil {
			return Step{}, fmt.Errorf("invalid argument in %q: %w", raw, err)
		}
		return Step{Kind: kind, Arg: arg}, nil
	}
	return Step{}, fmt.Errorf("unknown step kind %q", fields[0])
}
