package filetree

import (
	"errors"
	"sort"
	"strings"
)

var ErrNotFound = errors.New("file not found in tree")

// Node is a tagged variant: exactly one of File or Directory is set.
// The JSON shape matches the workspace wire format:
//
//	{"file": {"contents": "..."}}
//	{"directory": {"name": {...}, ...}}
type Node struct {
	File      *FileContent    `json:"file,omitempty"`
	Directory map[string]Node `json:"directory,omitempty"`
}

// FileContent holds the full text of a file leaf.
type FileContent struct {
	Contents string `json:"contents"`
}

// Tree is the root of a project workspace, a mapping of top-level names.
type Tree map[string]Node

// NewFile builds a file leaf.
func NewFile(contents string) Node {
	return Node{File: &FileContent{Contents: contents}}
}

// NewDirectory builds a directory node from its children.
func NewDirectory(children map[string]Node) Node {
	if children == nil {
		children = map[string]Node{}
	}
	return Node{Directory: children}
}

// IsFile reports whether the node is a file leaf.
func (n Node) IsFile() bool {
	return n.File != nil
}

// IsDirectory reports whether the node is a directory.
func (n Node) IsDirectory() bool {
	return n.Directory != nil
}

// Resolve returns the contents of the file at the `/`-joined path. Every
// intermediate segment must be a directory and the final segment a file.
// When the exact path does not resolve, the lookup falls back to the first
// depth-first match of the final segment's name anywhere in the tree; this
// tolerates an assistant reply that names a file without its full path.
func Resolve(tree Tree, path string) (string, error) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return "", ErrNotFound
	}

	if contents, ok := resolveExact(tree, segments); ok {
		return contents, nil
	}

	if contents, ok := findByName(tree, segments[len(segments)-1]); ok {
		return contents, nil
	}

	return "", ErrNotFound
}

func resolveExact(tree Tree, segments []string) (string, bool) {
	current := map[string]Node(tree)
	for i, segment := range segments {
		node, ok := current[segment]
		if !ok {
			return "", false
		}
		if i == len(segments)-1 {
			if node.IsFile() {
				return node.File.Contents, true
			}
			return "", false
		}
		if !node.IsDirectory() {
			return "", false
		}
		current = node.Directory
	}
	return "", false
}

func findByName(tree Tree, name string) (string, bool) {
	for _, key := range sortedKeys(tree) {
		node := tree[key]
		if key == name && node.IsFile() {
			return node.File.Contents, true
		}
		if node.IsDirectory() {
			if contents, ok := findByName(node.Directory, name); ok {
				return contents, true
			}
		}
	}
	return "", false
}

// Merge overlays patch on base and returns the result; neither input is
// modified. Files in the patch overwrite base entries wholesale. When both
// sides hold a directory under the same name its children merge by name,
// so patches touching disjoint paths compose in either order. Any other
// collision is resolved by replacing the base node with the patch node.
func Merge(base, patch Tree) Tree {
	merged := make(Tree, len(base)+len(patch))
	for name, node := range base {
		merged[name] = node
	}
	for name, patchNode := range patch {
		baseNode, ok := merged[name]
		if ok && baseNode.IsDirectory() && patchNode.IsDirectory() {
			merged[name] = Node{Directory: Merge(baseNode.Directory, patchNode.Directory)}
			continue
		}
		merged[name] = patchNode
	}
	return merged
}

// Flatten maps every file leaf to its full `/`-joined path.
func Flatten(tree Tree) map[string]string {
	files := make(map[string]string)
	flattenInto(tree, "", files)
	return files
}

func flattenInto(tree Tree, prefix string, files map[string]string) {
	for name, node := range tree {
		path := name
		if prefix != "" {
			path = prefix + "/" + name
		}
		if node.IsFile() {
			files[path] = node.File.Contents
			continue
		}
		if node.IsDirectory() {
			flattenInto(node.Directory, path, files)
		}
	}
}

// FromFile builds a minimal tree holding a single file at the given path,
// creating intermediate directories for each segment.
func FromFile(path, contents string) Tree {
	segments := splitPath(path)
	if len(segments) == 0 {
		return Tree{}
	}

	node := NewFile(contents)
	for i := len(segments) - 1; i > 0; i-- {
		node = NewDirectory(map[string]Node{segments[i]: node})
	}
	return Tree{segments[0]: node}
}

func splitPath(path string) []string {
	var segments []string
	for _, segment := range strings.Split(path, "/") {
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	return segments
}

func sortedKeys(tree map[string]Node) []string {
	keys := make([]string, 0, len(tree))
	for key := range tree {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
