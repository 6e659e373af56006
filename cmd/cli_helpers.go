package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func isJSON() bool {
	return viper.GetBool("json")
}

func isVerbose() bool {
	return viper.GetBool("verbose")
}

func printJSON(w io.Writer, v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(output))
	return err
}

func printYAML(w io.Writer, v any) error {
	output, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(output)
	return err
}

// outputFormat resolves --output, letting the global --json flag win.
func outputFormat(flag string, allowed ...string) (string, error) {
	if isJSON() {
		return "json", nil
	}
	f := strings.ToLower(strings.TrimSpace(flag))
	for _, a := range allowed {
		if f == a {
			return f, nil
		}
	}
	return "", fmt.Errorf("invalid output format %q (use %s)", flag, strings.Join(allowed, ", "))
}
