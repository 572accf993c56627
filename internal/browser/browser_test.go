// internal/browser/browser_test.go
package browser

import (
	"fmt"
	"strings"
	"testing"

	"github.com/chromedp/chromedp/kb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarrick/flowpilot/internal/config"
)

func TestExtraFlagsParsing(t *testing.T) {
	flags := extraFlags([]string{
		"--disable-extensions",
		"--proxy-server=http://127.0.0.1:8080",
		"lang=en-US",
		"  ",
	})
	assert.Equal(t, map[string]string{
		"disable-extensions": "",
		"proxy-server":       "http://127.0.0.1:8080",
		"lang":               "en-US",
	}, flags)
}

func TestBuildAllocatorOptionsIncludesUserArgs(t *testing.T) {
	cfg := config.NewDefaultConfig().Browser()
	base := len(buildAllocatorOptions(cfg))

	cfg.Args = []string{"--disable-extensions"}
	withArgs := len(buildAllocatorOptions(cfg))
	assert.Equal(t, base+1, withArgs)

	cfg.IgnoreTLSErrors = true
	cfg.UserAgent = "Mozilla/5.0 test"
	assert.Equal(t, withArgs+2, len(buildAllocatorOptions(cfg)))
}

func TestKeySequence(t *testing.T) {
	assert.Equal(t, kb.Enter, keySequence("Enter"))
	assert.Equal(t, kb.Enter, keySequence("return"))
	assert.Equal(t, kb.Tab, keySequence("Tab"))
	assert.Equal(t, kb.Escape, keySequence("esc"))
	assert.Equal(t, "x", keySequence("x"))
}

func TestJSStringEscapes(t *testing.T) {
	assert.Equal(t, `"#buy"`, jsString("#buy"))
	assert.Equal(t, `"a\"b"`, jsString(`a"b`))
}

func TestNeighborScriptFormatting(t *testing.T) {
	script := fmt.Sprintf(neighborScript, jsString("#item > span"), "parentElement")
	require.Contains(t, script, `document.querySelector("#item > span")`)
	require.Contains(t, script, "origin.parentElement")
	assert.False(t, strings.Contains(script, "%s"), "all placeholders must be consumed")
}

func TestSelectOptionScriptFormatting(t *testing.T) {
	script := fmt.Sprintf(selectOptionScript, jsString("#size"), jsString("Large"))
	require.Contains(t, script, `document.querySelector("#size")`)
	require.Contains(t, script, `"Large".trim()`)
	assert.False(t, strings.Contains(script, "%s"))
}
