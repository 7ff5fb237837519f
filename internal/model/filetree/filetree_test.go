package filetree_test

import (
	"reflect"
	"testing"

	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/model/filetree"
)

func TestResolveExactPath(t *testing.T) {
	tree := filetree.Tree{
		"src": filetree.NewDirectory(map[string]filetree.Node{
			"index.js": filetree.NewFile("console.log('hi')"),
		}),
		"package.json": filetree.NewFile("{}"),
	}

	contents, err := filetree.Resolve(tree, "src/index.js")
	if err != nil {
		t.Fatalf("Resolve err: %v", err)
	}
	if contents != "console.log('hi')" {
		t.Fatalf("unexpected contents: %q", contents)
	}
}

func TestResolveBasenameFallback(t *testing.T) {
	tree := filetree.Tree{
		"src": filetree.NewDirectory(map[string]filetree.Node{
			"nested": filetree.NewDirectory(map[string]filetree.Node{
				"app.js": filetree.NewFile("module.exports = {}"),
			}),
		}),
	}

	// The exact path is wrong but the basename exists deeper in the tree.
	contents, err := filetree.Resolve(tree, "app.js")
	if err != nil {
		t.Fatalf("Resolve err: %v", err)
	}
	if contents != "module.exports = {}" {
		t.Fatalf("unexpected contents: %q", contents)
	}
}

func TestResolveNotFound(t *testing.T) {
	tree := filetree.Tree{"a.js": filetree.NewFile("x")}

	if _, err := filetree.Resolve(tree, "missing.js"); err != filetree.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := filetree.Resolve(tree, ""); err != filetree.ErrNotFound {
		t.Fatalf("expected ErrNotFound for empty path, got %v", err)
	}
}

func TestResolveDirectoryIsNotAFile(t *testing.T) {
	tree := filetree.Tree{
		"src": filetree.NewDirectory(map[string]filetree.Node{
			"lib": filetree.NewDirectory(nil),
		}),
	}

	if _, err := filetree.Resolve(tree, "src/lib"); err != filetree.ErrNotFound {
		t.Fatalf("expected ErrNotFound for directory target, got %v", err)
	}
}

func TestMergeRoundTrip(t *testing.T) {
	base := filetree.Tree{}
	patch := filetree.FromFile("server/routes/user.js", "router.get('/')")

	merged := filetree.Merge(base, patch)
	contents, err := filetree.Resolve(merged, "server/routes/user.js")
	if err != nil {
		t.Fatalf("Resolve err: %v", err)
	}
	if contents != "router.get('/')" {
		t.Fatalf("unexpected contents: %q", contents)
	}
}

func TestMergeDisjointPathsCommute(t *testing.T) {
	base := filetree.FromFile("src/a.js", "a")
	p1 := filetree.FromFile("src/b.js", "b")
	p2 := filetree.FromFile("docs/readme.md", "hello")

	left := filetree.Merge(filetree.Merge(base, p1), p2)
	right := filetree.Merge(filetree.Merge(base, p2), p1)

	if !reflect.DeepEqual(filetree.Flatten(left), filetree.Flatten(right)) {
		t.Fatalf("disjoint merges did not commute:\nleft:  %v\nright: %v",
			filetree.Flatten(left), filetree.Flatten(right))
	}
	if len(filetree.Flatten(left)) != 3 {
		t.Fatalf("expected 3 files, got %v", filetree.Flatten(left))
	}
}

func TestMergeOverlapLastWriteWins(t *testing.T) {
	base := filetree.FromFile("app.js", "v1")
	p1 := filetree.FromFile("app.js", "v2")
	p2 := filetree.FromFile("app.js", "v3")

	merged := filetree.Merge(filetree.Merge(base, p1), p2)
	contents, err := filetree.Resolve(merged, "app.js")
	if err != nil {
		t.Fatalf("Resolve err: %v", err)
	}
	if contents != "v3" {
		t.Fatalf("expected last write to win, got %q", contents)
	}
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	base := filetree.FromFile("src/a.js", "a")
	patch := filetree.FromFile("src/b.js", "b")

	_ = filetree.Merge(base, patch)

	if _, err := filetree.Resolve(base, "src/b.js"); err == nil {
		t.Fatal("merge mutated the base tree")
	}
	if len(filetree.Flatten(patch)) != 1 {
		t.Fatalf("merge mutated the patch tree: %v", filetree.Flatten(patch))
	}
}

func TestFlatten(t *testing.T) {
	tree := filetree.Tree{
		"package.json": filetree.NewFile("{}"),
		"src": filetree.NewDirectory(map[string]filetree.Node{
			"index.js": filetree.NewFile("main"),
			"lib": filetree.NewDirectory(map[string]filetree.Node{
				"util.js": filetree.NewFile("helpers"),
			}),
		}),
	}

	want := map[string]string{
		"package.json":   "{}",
		"src/index.js":   "main",
		"src/lib/util.js": "helpers",
	}
	if got := filetree.Flatten(tree); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected flatten result: %v", got)
	}
}
