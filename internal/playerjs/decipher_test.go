package playerjs

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/famomatic/mediaresolve/internal/types"
)

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join("testdata", name)
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", p, err)
	}
	return string(b)
}

func TestDeriveProgram_WithFixture(t *testing.T) {
	tests := []struct {
		name    string
		fixture string
		want    []Step
		input   string
		output  string
	}{
		{
			name:    "named function",
			fixture: "basejs_named.js",
			want:    []Step{{OpReverse, 42}, {OpSwap, 5}, {OpSplice, 2}, {OpSwap, 31}},
			input:   "abcdefghij",
			output:  "agfjdcbh",
		},
		{
			name:    "assigned function with bracket calls",
			fixture: "basejs_assigned.js",
			want:    []Step{{OpSwap, 17}, {OpSplice, 3}, {OpReverse, 0}, {OpSwap, 2}},
			input:   "abcdefghij",
			output:  "aijgfed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := DeriveProgram(loadFixture(t, tt.fixture), tt.input)
			if err != nil {
				t.Fatalf("DeriveProgram() error = %v", err)
			}
			if !reflect.DeepEqual(prog.Steps, tt.want) {
				t.Fatalf("DeriveProgram() steps = %v, want %v", prog.Steps, tt.want)
			}
			if got := prog.Apply(tt.input); got != tt.output {
				t.Fatalf("Apply() = %q, want %q", got, tt.output)
			}
		})
	}
}

func TestDeriveProgram_RoundTripYieldsValidToken(t *testing.T) {
	tests := []struct {
		fixture string
		token   string
		want    string
	}{
		{fixture: "basejs_named.js", token: "kohien1WdH2LPYAJ6-jujj9sb_UT8req55A_s1df7v03Oe9N", want: "AO3Nv7fd1s_A55qer8TU_bs9jjuj-6JeYPL2HdW1neihok"},
		{fixture: "basejs_assigned.js", token: "lb9-AnmC8c192MNl9nMTZCVwCaGbHExS35hIXrmzfFxe7AOZ", want: "AOZ7exFfzmrXIh53SxEHbGaCwVCZTMl9lNM291c8CmnA-"},
	}
	for _, tt := range tests {
		t.Run(tt.fixture, func(t *testing.T) {
			prog, err := DeriveProgram(loadFixture(t, tt.fixture), tt.token)
			if err != nil {
				t.Fatalf("DeriveProgram() error = %v", err)
			}
			got := prog.Apply(tt.token)
			if got != tt.want {
				t.Fatalf("Apply() = %q, want %q", got, tt.want)
			}
			if !DefaultTokenPattern.MatchString(got) {
				t.Fatalf("Apply() = %q does not match token pattern", got)
			}
		})
	}
}

func TestDeriveProgram_UnknownHelper(t *testing.T) {
	for _, fixture := range []string{"basejs_unknown_helper.js", "basejs_rotate_helper.js"} {
		for _, probe := range []bool{false, true} {
			_, err := DeriveProgram(loadFixture(t, fixture), "abcdefghij", DeriveOptions{Probe: probe})
			if !errors.Is(err, types.ErrUnknownObfuscation) {
				t.Fatalf("DeriveProgram(%s, probe=%v) error = %v, want ErrUnknownObfuscation", fixture, probe, err)
			}
		}
	}
}

func TestDeriveProgram_ProbeClassifiesLoopReverse(t *testing.T) {
	script := loadFixture(t, "basejs_manual_reverse.js")

	prog, err := DeriveProgram(script, "", DeriveOptions{Probe: true})
	if err != nil {
		t.Fatalf("DeriveProgram() error = %v", err)
	}
	want := []Step{{OpReverse, 0}, {OpSplice, 2}}
	if !reflect.DeepEqual(prog.Steps, want) {
		t.Fatalf("DeriveProgram() steps = %v, want %v", prog.Steps, want)
	}
	token := "9j7D3AOL9ew54cCGD_vKU2jYU1Msq1OnI2YW6dH-WvxnOAbm"
	if got := prog.Apply(token); got != "AOnxvW-Hd6WY2InO1qsM1UYj2UKv_DGCc45we9LOA3D7j9" {
		t.Fatalf("Apply() = %q", got)
	}
}

func TestDeriveProgram_PatternNotFound(t *testing.T) {
	_, err := DeriveProgram(loadFixture(t, "basejs_no_transform.js"), "abc")
	if !errors.Is(err, types.ErrPatternNotFound) {
		t.Fatalf("DeriveProgram() error = %v, want ErrPatternNotFound", err)
	}
}

func TestDeriveProgram_MissingHelperObject(t *testing.T) {
	script := `function Zq(a){a=a.split("");Gone.rv(a,1);return a.join("")};`
	_, err := DeriveProgram(script, "abc")
	if !errors.Is(err, types.ErrPatternNotFound) {
		t.Fatalf("DeriveProgram() error = %v, want ErrPatternNotFound", err)
	}
}

func TestProgramApply_DoesNotMutate(t *testing.T) {
	token := "abcdef"
	prog := Program{Steps: []Step{{OpReverse, 0}, {OpSwap, 8}, {OpSplice, 1}}}
	first := prog.Apply(token)
	second := prog.Apply(token)
	if token != "abcdef" || first != second {
		t.Fatalf("Apply() not pure: token=%q first=%q second=%q", token, first, second)
	}
	if first != "efcba" {
		t.Fatalf("Apply() = %q, want %q", first, "efcba")
	}
}

func TestStepApply_Edges(t *testing.T) {
	tests := []struct {
		step  Step
		input string
		want  string
	}{
		{Step{OpSplice, 0}, "abc", "abc"},
		{Step{OpSplice, 3}, "abc", ""},
		{Step{OpSplice, 9}, "abc", ""},
		{Step{OpSwap, 4}, "abc", "bac"},
		{Step{OpSwap, 3}, "abc", "abc"},
		{Step{OpSwap, 1}, "", ""},
		{Step{OpReverse, 0}, "abc", "cba"},
	}
	for _, tt := range tests {
		if got := string(tt.step.apply([]byte(tt.input))); got != tt.want {
			t.Fatalf("%v.apply(%q) = %q, want %q", tt.step, tt.input, got, tt.want)
		}
	}
}

func TestParseStep(t *testing.T) {
	for _, raw := range []string{"swap 20", "splice 2", "reverse"} {
		step, err := ParseStep(raw)
		if err != nil {
			t.Fatalf("ParseStep(%q) error = %v", raw, err)
		}
		if step.String() != raw {
			t.Fatalf("ParseStep(%q).String() = %q", raw, step.String())
		}
	}
	for _, raw := range []string{"", "rotate 2", "swap", "reverse 1", "splice x"} {
		if _, err := ParseStep(raw); err == nil {
			t.Fatalf("ParseStep(%q) expected error", raw)
		}
	}
}

func TestLengthSignatureAndCacheKey(t *testing.T) {
	if got := LengthSignature("abc.de.f"); got != "3.2.1" {
		t.Fatalf("LengthSignature() = %q", got)
	}
	if got := CacheKey("p1", "abcd"); got != "p1_4" {
		t.Fatalf("CacheKey() = %q", got)
	}
}

func TestScriptID_PrefersPlayerID(t *testing.T) {
	if got := ScriptID("https://x/s/player/1798f86c/player_ias.vflset/en_US/base.js", ""); got != "1798f86c" {
		t.Fatalf("ScriptID() = %q", got)
	}
}

func TestFingerprint_IgnoresWhitespaceAndObjectName(t *testing.T) {
	a := `var Xy={ab:function(a,b){a.splice(0,b)}};function Zq(a){a=a.split("");Xy.ab(a,2);return a.join("")};var other=1;`
	b := "var Pq={ab:function(a,b){a.splice(0, b)}};\nfunction Zq(a){a=a.split(\"\");Pq.ab(a,2);return a.join(\"\")};var other=2;"
	c := `var Xy={ab:function(a,b){a.splice(0,b)}};function Zq(a){a=a.split("");Xy.ab(a,3);return a.join("")};`
	if Fingerprint(a) != Fingerprint(b) {
		t.Fatalf("Fingerprint() differs for incidental changes")
	}
	if Fingerprint(a) == Fingerprint(c) {
		t.Fatalf("Fingerprint() equal for different transforms")
	}
}
