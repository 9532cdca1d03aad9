// Package engine wraps the external PhotoMigrator CLI. The migrator owns the
// actual photo-moving logic; this package only validates parameters, renders
// them into command line arguments and streams the process output to the
// caller's log sink.
package engine

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strings"

	log "github.com/go-pkgz/lgr"
)

// execution modes supported by the migrator
const (
	ModeGoogleTakeout      = "google-takeout"
	ModeAutomaticMigration = "automatic-migration"
)

// CLI invokes the migrator binary, one run at a time. The underlying tool
// keeps process-wide configuration state, callers must serialize Execute.
type CLI struct {
	Binary     string // path to the migrator executable
	ConfigPath string // migrator configuration file passed on every run
}

// NewCLI creates the engine wrapper for the given binary
func NewCLI(binary, configPath string) *CLI {
	return &CLI{Binary: binary, ConfigPath: configPath}
}

// Validate checks mode and parameters before any execution. Unknown modes
// and missing required parameters are rejected; unknown parameter keys are
// not an error here, they are dropped on merge like the migrator does.
func (c *CLI) Validate(mode string, params map[string]string) error {
	switch mode {
	case ModeGoogleTakeout:
		if strings.TrimSpace(params["google-takeout"]) == "" {
			return fmt.Errorf("google-takeout mode requires takeout folder")
		}
	case ModeAutomaticMigration:
		src, dst := strings.TrimSpace(params["source"]), strings.TrimSpace(params["target"])
		if src == "" || dst == "" {
			return fmt.Errorf("automatic-migration mode requires source and target")
		}
		if src == dst {
			return fmt.Errorf("source and target can't be the same (%q)", src)
		}
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
	return nil
}

// Execute runs the migrator for the given mode, blocking until it finishes.
// Process stdout and stderr are combined into logOutput. Returns a short
// result summary on success.
func (c *CLI) Execute(ctx context.Context, mode string, params map[string]string, logOutput io.Writer) (string, error) {
	if err := c.Validate(mode, params); err != nil {
		return "", err
	}

	args := c.buildArgs(mode, params)
	log.Printf("[DEBUG] engine invocation: %s %s", c.Binary, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, c.Binary, args...) //nolint:gosec // binary path is operator-provided config
	cmd.Stdout = logOutput
	cmd.Stderr = logOutput
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("engine run failed for mode %s: %w", mode, err)
	}
	return "completed successfully", nil
}

// buildArgs merges request parameters over the defaults table and renders
// them as CLI flags in deterministic order. Only keys the migrator knows
// are passed through, everything else is dropped.
func (c *CLI) buildArgs(mode string, params map[string]string) []string {
	merged := defaultArgs()
	for k, v := range params {
		if _, ok := merged[k]; ok {
			merged[k] = v
		}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := []string{}
	if c.ConfigPath != "" {
		args = append(args, "--configuration-file", c.ConfigPath)
	}
	switch mode {
	case ModeGoogleTakeout:
		args = append(args, "--google-takeout", merged["google-takeout"])
	case ModeAutomaticMigration:
		args = append(args, "--AUTOMATIC-MIGRATION", merged["source"]+","+merged["target"])
	}

	for _, k := range keys {
		if consumedByMode(k) {
			continue
		}
		v := merged[k]
		switch {
		case v == "" || v == "false":
			// unset or disabled flag, migrator default applies
		case v == "true":
			args = append(args, "--"+k)
		default:
			args = append(args, "--"+k, v)
		}
	}
	return args
}

// consumedByMode reports keys already rendered as the mode selector
func consumedByMode(key string) bool {
	switch key {
	case "google-takeout", "source", "target":
		return true
	}
	return false
}

// defaultArgs is the migrator's argument defaults table, kebab-case keys as
// the tool's own parser defines them. Values are string-typed; booleans are
// "true"/"false", empty means unset.
func defaultArgs() map[string]string {
	// dashboard is off: the interactive terminal dashboard makes no sense under a captured log
	return map[string]string{
		"no-request-user-confirmation":       "true",
		"no-log-file":                        "false",
		"log-level":                          "info",
		"log-format":                         "log",
		"input-folder":                       "",
		"output-folder":                      "",
		"client":                             "google-takeout",
		"account-id":                         "1",
		"source":                             "",
		"target":                             "",
		"move-assets":                        "false",
		"dashboard":                          "false",
		"parallel-migration":                 "true",
		"google-takeout":                     "",
		"google-output-folder-suffix":        "processed",
		"google-albums-folders-structure":    "flatten",
		"google-no-albums-folders-structure": "year/month",
		"google-ignore-check-structure":      "false",
		"google-no-symbolic-albums":          "false",
		"google-remove-duplicates-files":     "false",
		"google-rename-albums-folders":       "false",
		"google-skip-extras-files":           "false",
		"google-skip-move-albums":            "false",
		"google-skip-gpth-tool":              "false",
		"google-skip-preprocess":             "false",
		"google-skip-postprocess":            "false",
		"google-keep-takeout-folder":         "false",
		"show-gpth-info":                     "true",
		"show-gpth-errors":                   "true",
	}
}
