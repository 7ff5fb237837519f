// Package integrate turns raw assistant replies into workspace mutations.
// Parsing is best-effort by design: a malformed payload degrades to plain
// text display and never drops the message.
package integrate

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/model/filetree"
)

// Reply is the structured payload an assistant message may carry.
type Reply struct {
	Text         string          `json:"text"`
	FileTree     filetree.Tree   `json:"fileTree"`
	BuildCommand json.RawMessage `json:"buildCommand,omitempty"`
	StartCommand json.RawMessage `json:"startCommand,omitempty"`
}

// Result is what could be recovered from one assistant reply.
type Result struct {
	// DisplayText is what the room should render: the payload's text field
	// when it decodes, the raw reply otherwise.
	DisplayText string
	// Patch is the workspace mutation to merge, nil when the reply carries
	// none.
	Patch filetree.Tree
	// Structured reports whether the reply decoded as a payload object.
	Structured bool
}

var (
	fencedBlock = regexp.MustCompile("(?s)```[a-zA-Z0-9]*\\n(.*?)```")
	// A bare filename-like token: segments joined by '/', final segment
	// carrying an extension of at least two characters. One-letter
	// extensions are rejected so abbreviations like "e.g" in surrounding
	// prose are not mistaken for files.
	filenameToken = regexp.MustCompile(`^[\w.-]+(?:/[\w.-]+)*\.\w{2,}$`)
)

// Parse extracts whatever mutation the reply carries. It first attempts a
// structured decode; failing that, it scans for a fenced code block with an
// adjacent filename token, falling back to selectedPath when the reply
// names no file. Parse never fails: the zero mutation is a valid outcome.
func Parse(raw, selectedPath string) Result {
	if reply, ok := decode(raw); ok {
		result := Result{DisplayText: raw, Structured: true}
		if reply.Text != "" {
			result.DisplayText = reply.Text
		}
		if len(reply.FileTree) > 0 {
			result.Patch = reply.FileTree
			return result
		}
		// No tree field; the display text may still embed a code block.
		result.Patch = scanCodeBlock(result.DisplayText, selectedPath)
		return result
	}

	return Result{
		DisplayText: raw,
		Patch:       scanCodeBlock(raw, selectedPath),
	}
}

// decode attempts a strict unmarshal of the reply, tolerating a payload
// wrapped in a markdown fence.
func decode(raw string) (Reply, bool) {
	candidate := strings.TrimSpace(raw)
	if match := fencedBlock.FindStringSubmatch(candidate); match != nil && strings.HasPrefix(candidate, "```") {
		candidate = strings.TrimSpace(match[1])
	}
	if !strings.HasPrefix(candidate, "{") {
		return Reply{}, false
	}

	var reply Reply
	if err := json.Unmarshal([]byte(candidate), &reply); err != nil {
		return Reply{}, false
	}
	return reply, true
}

// scanCodeBlock treats the first fenced code block as a single-file patch
// when a target path can be determined.
func scanCodeBlock(text, selectedPath string) filetree.Tree {
	loc := fencedBlock.FindStringSubmatchIndex(text)
	if loc == nil {
		return nil
	}
	code := strings.TrimSpace(text[loc[2]:loc[3]])
	if code == "" {
		return nil
	}

	path := findFilename(text[:loc[0]])
	if path == "" {
		path = selectedPath
	}
	if path == "" {
		return nil
	}
	return filetree.FromFile(path, code)
}

// findFilename returns the last bare filename-like token preceding the code
// block, scanning nearby lines first.
func findFilename(before string) string {
	lines := strings.Split(strings.TrimSpace(before), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		for _, field := range strings.Fields(lines[i]) {
			token := strings.Trim(field, "`*_:\"'()[],")
			if filenameToken.MatchString(token) {
				return token
			}
		}
	}
	return ""
}
