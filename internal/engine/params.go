package engine

import (
	"fmt"
	"regexp"
	"strings"
)

// ExtractParams applies the action's parameter patterns to the prompt and
// returns the captured values. Each pattern is compiled case-insensitively and
// must contain at least one capture group; the first group's text becomes the
// parameter value. Patterns that do not match the prompt are skipped silently,
// so the result may cover any subset of the configured parameters. A pattern
// that fails to compile is a configuration error.
func ExtractParams(prompt string, cfg ActionConfig) (map[string]string, error) {
	params := map[string]string{}
	for name, pattern := range cfg.ParameterPatterns {
		if strings.TrimSpace(pattern) == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: parameter pattern %q: %v", ErrConfig, name, err)
		}
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("%w: parameter pattern %q has no capture group", ErrConfig, name)
		}
		m := re.FindStringSubmatch(prompt)
		if m == nil {
			continue
		}
		params[name] = strings.TrimSpace(m[1])
	}
	return params, nil
}

// substitute replaces {name} placeholders in a template with extracted
// parameter values. Placeholders without a matching parameter are left
// untouched.
func substitute(template string, params map[string]string) string {
	out := template
	for name, value := range params {
		out = strings.ReplaceAll(out, "{"+name+"}", value)
	}
	return out
}
