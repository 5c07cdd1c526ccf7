package stats

import (
	"regexp"
	"strings"
)

// Messages a user interruption leaves behind. These are what the CLI
// writes when the user aborts mid-tool-use; update if the format changes.
var interruptionPrefixes = []string{
	"[Request interrupted by user for tool use]",
	"API Error: Request was aborted.",
}

// IsInterruption reports whether content is a raw interruption marker
// rather than a typed user command.
func IsInterruption(content string) bool {
	for _, prefix := range interruptionPrefixes {
		if strings.HasPrefix(content, prefix) {
			return true
		}
	}
	return false
}

// errorCategory maps one display category to its detection patterns.
// First matching category wins, so order matters: interruptions must be
// classified before the generic tool-error catch-all.
type errorCategory struct {
	name     string
	patterns []*regexp.Regexp
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile("(?i)" + p)
	}
	return out
}

var errorCategories = []errorCategory{
	{"User Interruption", compileAll(
		`user doesn't want to proceed`,
		`user doesn't want to take this action`,
		`\[Request interrupted`,
	)},
	{"Command Timeout", compileAll(`Command timed out`)},
	{"File Not Read", compileAll(`File has not been read yet`)},
	{"File Modified", compileAll(`File has been modified since read`)},
	{"File Too Large", compileAll(`exceeds maximum allowed`)},
	{"Content Not Found", compileAll(
		`String to replace not found`,
		`String not found in file`,
		`No module named`,
		`No such file or directory`,
		`File does not exist`,
		`npm error enoent Could not read package\.json`,
	)},
	{"No Changes", compileAll(`No changes to make`)},
	{"Permission Error", compileAll(
		`Permission denied`,
		`cd to .*was blocked`,
	)},
	{"Tool Not Found", compileAll(`command not found`)},
	{"Code Runtime Error", compileAll(
		`Cannot find module`,
		`Traceback`,
		`asyncio_default_fixture_loop_scope`,
	)},
	{"Port Binding Error", compileAll(`while attempting to bind on address`)},
	{"Syntax Error", compileAll(
		`SyntaxError`,
		`syntax error`,
		`matches of the string to replace, but replace_all is false`,
		`null \(null\) has no keys`,
		`kill: %1: no such job`,
		`jq: error`,
	)},
	{"Other Tool Errors", compileAll(`\[Details] Error: Error`)},
}

// classifyError returns the first matching error category for content,
// or "" when no pattern matches.
func classifyError(content string) string {
	if content == "" {
		return ""
	}
	for _, cat := range errorCategories {
		for _, re := range cat.patterns {
			if re.MatchString(content) {
				return cat.name
			}
		}
	}
	return ""
}
