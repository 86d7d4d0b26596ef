package playerjs

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/famomatic/mediaresolve/internal/types"
)

// DeriveOptions tunes DeriveProgram.
type DeriveOptions struct {
	// Probe evaluates helpers the body heuristics cannot classify.
	Probe bool
}

const jsVarStr = `[a-zA-Z_\$][a-zA-Z_0-9\$]*`

var (
	transformRegexps = []*regexp.Regexp{
		// function XX(a){a=a.split("");...;return a.join("")}
		regexp.MustCompile(fmt.Sprintf(
			`function(?:\s+%s)?\(a\)\s*\{\s*`+
				`a\s*=\s*a\.split\((?:""|'')\);\s*`+
				`((?:(?:a\s*=\s*)?%s(?:\.%s|\[[^\]]+\])\(a(?:,\s*-?\d+)?\);?\s*)+)`+
				`return a\.join\((?:""|'')\)`, jsVarStr, jsVarStr, jsVarStr)),
		// XX=function(a){...}
		regexp.MustCompile(fmt.Sprintf(
			`%s\s*=\s*function\(a\)\s*\{\s*`+
				`a\s*=\s*a\.split\((?:""|'')\);\s*`+
				`((?:(?:a\s*=\s*)?%s(?:\.%s|\[[^\]]+\])\(a(?:,\s*-?\d+)?\);?\s*)+)`+
				`return a\.join\((?:""|'')\)`, jsVarStr, jsVarStr, jsVarStr)),
		// Loose form: [a-z]=a.split("");BODY;return a.join
		regexp.MustCompile(fmt.Sprintf(
			`[a-zA-Z]\s*=\s*a\.split\((?:""|'')\);\s*(%s.*?);\s*return a\.join`, jsVarStr)),
	}
	helperNameRegexp   = regexp.MustCompile(fmt.Sprintf(`^(?:a\s*=\s*)?(%s)(?:\.|\[)`, jsVarStr))
	helperMemberRegexp = regexp.MustCompile(fmt.Sprintf(
		`(?:^|,)\s*(?:"(%s)"|'(%s)'|(%s))\s*:\s*function\s*\(([^)]*)\)\s*\{`, jsVarStr, jsVarStr, jsVarStr))

	spliceBodyRegexp  = regexp.MustCompile(`\.splice\(`)
	reverseBodyRegexp = regexp.MustCompile(`\.reverse\(`)
	swapBodyRegexp    = regexp.MustCompile(`\[0\]\s*=\s*[a-zA-Z_\$][a-zA-Z_0-9\$]*\[`)
	playerIDRegexp    = regexp.MustCompile(`/s/player/([A-Za-z0-9_-]+)/`)
	whitespaceRegexp  = regexp.MustCompile(`\s+`)
)

type transformMatch struct {
	body    string
	objName string
}

type helperFunc struct {
	params string
	body   string
}

// DeriveProgram locates the token transform in script and translates each
// helper invocation into a program step, in call order.
func DeriveProgram(script, example string, opts ...DeriveOptions) (Program, error) {
	var opt DeriveOptions
	if len(opts) > 0 {
		opt = opts[0]
	}

	tm, err := locateTransform(script)
	if err != nil {
		return Program{}, err
	}
	objBody, err := locateHelperObject(script, tm.objName)
	if err != nil {
		return Program{}, err
	}
	helpers := parseHelpers(objBody)
	if len(helpers) == 0 {
		return Program{}, fmt.Errorf("%w: helper object %q has no functions", types.ErrPatternNotFound, tm.objName)
	}

	invokeRegexp, err := regexp.Compile(fmt.Sprintf(
		`(?:^|[^a-zA-Z_0-9\$])%s(?:\.(%s)|\[["'`+"`"+`](%s)["'`+"`"+`]\])\(\s*a\s*(?:,\s*(-?\d+)\s*)?\)`,
		regexp.QuoteMeta(tm.objName), jsVarStr, jsVarStr))
	if err != nil {
		return Program{}, err
	}

	kinds := make(map[string]OpKind, len(helpers))
	var steps []Step
	for _, m := range invokeRegexp.FindAllStringSubmatch(tm.body, -1) {
		key := firstNonEmpty(m[1], m[2])
		helper, ok := helpers[key]
		if !ok {
			return Program{}, fmt.Errorf("%w: helper %s.%s is not defined", types.ErrPatternNotFound, tm.objName, key)
		}
		kind, known := kinds[key]
		if !known {
			kind, known = classifyHelper(helper.body)
			if !known && opt.Probe {
				kind, known = probeHelper(helper.params, helper.body)
			}
			if !known {
				return Program{}, fmt.Errorf("%w: %s.%s", types.ErrUnknownObfuscation, tm.objName, key)
			}
			kinds[key] = kind
		}
		arg := 0
		if m[3] != "" {
			arg, _ = strconv.Atoi(m[3])
		}
		steps = append(steps, Step{Kind: kind, Arg: arg})
	}
	if len(steps) == 0 {
		return Program{}, fmt.Errorf("%w: transform has no helper invocations", types.ErrPatternNotFound)
	}

	prog := Program{Steps: steps}
	if example != "" && prog.Apply(example) == "" {
		return Program{}, fmt.Errorf("%w: program reduces token to nothing", types.ErrPatternNotFound)
	}
	return prog, nil
}

func locateTransform(script string) (transformMatch, error) {
	for _, re := range transformRegexps {
		m := re.FindStringSubmatch(script)
		if len(m) < 2 {
			continue
		}
		body := strings.TrimSpace(m[1])
		name := helperNameRegexp.FindStringSubmatch(body)
		if len(name) < 2 {
			continue
		}
		return transformMatch{body: body, objName: name[1]}, nil
	}
	return transformMatch{}, fmt.Errorf("%w: signature transform function", types.ErrPatternNotFound)
}

func locateHelperObject(script, name string) (string, error) {
	re, err := regexp.Compile(`(?:^|[^a-zA-Z_0-9\$.])` + regexp.QuoteMeta(name) + `\s*=\s*\{`)
	if err != nil {
		return "", err
	}
	loc := re.FindStringIndex(script)
	if loc == nil {
		return "", fmt.Errorf("%w: helper object %q", types.ErrPatternNotFound, name)
	}
	open := loc[1] - 1
	end, err := blockEnd(script, open)
	if err != nil {
		return "", err
	}
	return script[open+1 : end-1], nil
}

func parseHelpers(objBody string) map[string]helperFunc {
	helpers := make(map[string]helperFunc)
	pos := 0
	for pos < len(objBody) {
		loc := helperMemberRegexp.FindStringSubmatchIndex(objBody[pos:])
		if loc == nil {
			break
		}
		key := firstNonEmpty(submatch(objBody[pos:], loc, 1), submatch(objBody[pos:], loc, 2), submatch(objBody[pos:], loc, 3))
		params := submatch(objBody[pos:], loc, 4)
		open := pos + loc[1] - 1
		end, err := blockEnd(objBody, open)
		if err != nil {
			break
		}
		helpers[key] = helperFunc{params: params, body: objBody[open+1 : end-1]}
		pos = end
	}
	return helpers
}

func classifyHelper(body string) (OpKind, bool) {
	switch {
	case spliceBodyRegexp.MatchString(body):
		return OpSplice, true
	case reverseBodyRegexp.MatchString(body):
		return OpReverse, true
	case swapBodyRegexp.MatchString(body):
		return OpSwap, true
	}
	return "", false
}

// blockEnd returns the index just past the brace that closes the one at open.
func blockEnd(src string, open int) (int, error) {
	depth := 0
	var strChar byte
	for pos := open; pos < len(src); pos++ {
		b := src[pos]
		if strChar != 0 {
			switch b {
			case '\\':
				pos++
			case strChar:
				strChar = 0
			}
			continue
		}
		switch b {
		case '"', '\'', '`':
			strChar = b
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return pos + 1, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: unterminated block", types.ErrPatternNotFound)
}

// ScriptID identifies a client script version. The player id embedded in the
// script URL is used when present, the structural fingerprint otherwise.
func ScriptID(scriptURL, script string) string {
	if id := scriptIDFromURL(scriptURL); id != "" {
		return id
	}
	return Fingerprint(script)
}

func scriptIDFromURL(scriptURL string) string {
	if m := playerIDRegexp.FindStringSubmatch(scriptURL); len(m) > 1 {
		return m[1]
	}
	return ""
}

// Fingerprint hashes the structural shape of the token transform: its body
// and helper object with whitespace removed and the object name erased.
// Scripts whose transform cannot be located hash as a whole.
func Fingerprint(script string) string {
	shape := script
	if tm, err := locateTransform(script); err == nil {
		shape = tm.body
		if obj, err := locateHelperObject(script, tm.objName); err == nil {
			shape += "{" + obj + "}"
		}
		shape = strings.ReplaceAll(shape, tm.objName+".", "$.")
		shape = strings.ReplaceAll(shape, tm.objName+"[", "$[")
	}
	shape = whitespaceRegexp.ReplaceAllString(shape, "")
	sum := sha256.Sum256([]byte(shape))
	return "fp-" + hex.EncodeToString(sum[:8])
}

// LengthSignature renders the lengths of the dot separated parts of token.
func LengthSignature(token string) string {
	parts := strings.Split(token, ".")
	lengths := make([]string, len(parts))
	for i, p := range parts {
		lengths[i] = strconv.Itoa(len(p))
	}
	return strings.Join(lengths, ".")
}

// CacheKey combines a script id with the token length signature.
func CacheKey(scriptID, token string) string {
	return scriptID + "_" + LengthSignature(token)
}

func submatch(s string, loc []int, group int) string {
	if 2*group+1 >= len(loc) || loc[2*group] < 0 {
		return ""
	}
	return s[loc[2*group]:loc[2*group+1]]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
