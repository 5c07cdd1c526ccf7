package stats

import "regexp"

// Read-only inspection tools that count as "search" activity outright.
var searchToolNames = map[string]bool{
	"Grep":         true,
	"Glob":         true,
	"LS":           true,
	"Read":         true,
	"WebSearch":    true,
	"WebFetch":     true,
	"NotebookRead": true,
}

// Shell tool names across the two dialects.
var shellToolNames = map[string]bool{
	"Bash":  true,
	"shell": true,
}

// bashSearchRe matches a standalone search verb anywhere in a shell
// command, so pipelines like "echo x | grep y" count.
var bashSearchRe = regexp.MustCompile(`(^|[\s|;&(])(ls|grep|rg|find|fd|ag|ack|locate|cat|head|tail|which)(\s|$)`)

// searchClassifier decides whether a tool call is a search operation.
// Shell command verdicts are cached per distinct command string; command
// strings repeat heavily within a project.
type searchClassifier struct {
	bashCache map[string]bool
}

func newSearchClassifier() *searchClassifier {
	return &searchClassifier{bashCache: make(map[string]bool)}
}

func (c *searchClassifier) isSearchTool(name string, input map[string]any) bool {
	if searchToolNames[name] {
		return true
	}
	if !shellToolNames[name] {
		return false
	}

	command, _ := input["command"].(string)
	if command == "" {
		return false
	}
	if verdict, ok := c.bashCache[command]; ok {
		return verdict
	}
	verdict := bashSearchRe.MatchString(command)
	c.bashCache[command] = verdict
	return verdict
}
