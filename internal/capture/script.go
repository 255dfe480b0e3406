package capture

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractScriptVersion is bumped whenever extract.js changes behavior; it is
// echoed back in frame results so stale injected copies are detectable.
const ExtractScriptVersion = "3"

//go:embed extract.js
var extractScriptSource string

// ExtractionScript renders the embedded in-page extractor with the given
// selector table. The result is a parameterless function definition suitable
// for the browser collaborator's script-execution API.
func ExtractionScript(rules *RuleSet) (string, error) {
	if rules == nil {
		rules = DefaultRules()
	}
	encoded, err := json.Marshal(rules)
	if err != nil {
		return "", fmt.Errorf("encode selector rules: %w", err)
	}
	script := strings.Replace(extractScriptSource, "__CAPTURE_RULES__", string(encoded), 1)
	script = strings.Replace(script, "__CAPTURE_SCRIPT_VERSION__", ExtractScriptVersion, 1)
	return script, nil
}
