package config

import (
	"bytes"
	"os"
	"strings"
	"text/template"
)

// ExpandEnv substitutes environment variables referenced as {{.VAR}} in
// raw config bytes. Shell-style $VAR syntax is left alone on purpose:
// masking patterns are full of literal dollar signs (regex anchors like
// ^secret.*$, price strings, shell fragments) and must reach the regex
// compiler untouched.
//
// Unset variables expand to the empty string; required fields that end up
// empty are caught by validation. Content that fails to parse or execute
// as a template comes back unchanged so the YAML parser reports the real
// problem instead of a template error.
func ExpandEnv(data []byte) []byte {
	tmpl, err := template.New("maskd").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		return data
	}

	env := make(map[string]string)
	for _, kv := range os.Environ() {
		// Cut at the first '=' so values containing '=' survive.
		if key, value, ok := strings.Cut(kv, "="); ok {
			env[key] = value
		}
	}

	var out bytes.Buffer
	if err := tmpl.Execute(&out, env); err != nil {
		return data
	}
	return out.Bytes()
}
