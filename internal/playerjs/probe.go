package playerjs

import (
	"strconv"
	"strings"
	"time"

	"github.com/dop251/goja"
)

const (
	probeInput   = "abcdefg"
	probeArg     = 3
	probeTimeout = 100 * time.Millisecond
)

// probeHelper runs a single helper body on a known array and classifies it
// by its observed effect. Only the helper itself is evaluated, never the
// surrounding script.
func probeHelper(params, body string) (OpKind, bool) {
	src := "(function(){var a=" + quoteJS(probeInput) + ".split(\"\");" +
		"var r=(function(" + params + "){" + body + "})(a," + strconv.Itoa(probeArg) + ");" +
		"var s=a.join(\"\");" +
		"if(s===" + quoteJS(probeInput) + "&&r&&typeof r.join===\"function\"){s=r.join(\"\");}" +
		"return s;})()"

	vm := goja.New()
	timer := time.AfterFunc(probeTimeout, func() {
		vm.Interrupt("probe timeout")
	})
	defer timer.Stop()

	v, err := vm.RunString(src)
	if err != nil {
		return "", false
	}
	got := v.String()

	for _, kind := range []OpKind{OpSplice, OpReverse, OpSwap} {
		want := Step{Kind: kind, Arg: probeArg}.apply([]byte(probeInput))
		if got == string(want) {
			return kind, true
		}
	}
	return "", false
}

func quoteJS(s string) string {
	return "\"" + strings.NewReplacer("\\", "\\\\", "\"", "\\\"").Replace(s) + "\""
}
