package tree

import (
	"slices"
	"strings"
	"testing"
)

func sampleTree() []Node {
	return []Node{
		{
			ID:   FolderID("dev", "classes"),
			Name: "classes",
			Kind: KindFolder,
			Children: []Node{
				{ID: FileID("dev", "classes/Bar.cls"), Name: "Bar.cls", Kind: KindFile, File: &FileRef{ID: FileID("dev", "classes/Bar.cls"), Name: "Bar.cls", OrgID: "dev"}},
				{ID: FileID("dev", "classes/Foo.cls"), Name: "Foo.cls", Kind: KindFile, File: &FileRef{ID: FileID("dev", "classes/Foo.cls"), Name: "Foo.cls", OrgID: "dev"}},
			},
		},
		{
			ID:   FolderID("dev", "lwc"),
			Name: "lwc",
			Kind: KindFolder,
			Children: []Node{
				{
					ID:   FolderID("dev", "lwc/card"),
					Name: "card",
					Kind: KindFolder,
					Children: []Node{
						{ID: FileID("dev", "lwc/card/card.js"), Name: "card.js", Kind: KindFile, File: &FileRef{ID: FileID("dev", "lwc/card/card.js"), Name: "card.js", OrgID: "dev"}},
					},
				},
			},
		},
	}
}

func TestCountFiles(t *testing.T) {
	t.Parallel()

	if got := CountFiles(sampleTree()); got != 3 {
		t.Errorf("CountFiles() = %d, want 3", got)
	}
	if got := CountFiles(nil); got != 0 {
		t.Errorf("CountFiles(nil) = %d, want 0", got)
	}
	if got := CountFiles([]Node{Placeholder("dev")}); got != 0 {
		t.Errorf("CountFiles(placeholder) = %d, want 0", got)
	}
}

func TestIDs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"file id", FileID("00D1", "classes/Foo.cls"), "00D1:classes/Foo.cls"},
		{"folder id", FolderID("00D1", "classes"), "00D1:classes/"},
		{"folder id trailing slash", FolderID("00D1", "classes/"), "00D1:classes/"},
		{"org of file", OrgOf("00D1:classes/Foo.cls"), "00D1"},
		{"org of garbage", OrgOf("nocolon"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestWalk_PathAccumulation(t *testing.T) {
	t.Parallel()

	var visited []string
	err := Walk(sampleTree(), func(path []string, n Node) error {
		visited = append(visited, strings.Join(append(slices.Clone(path), n.Name), "/"))
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}

	want := []string{
		"classes",
		"classes/Bar.cls",
		"classes/Foo.cls",
		"lwc",
		"lwc/card",
		"lwc/card/card.js",
	}
	if !slices.Equal(visited, want) {
		t.Errorf("Walk() visited %v, want %v", visited, want)
	}
}

func TestWalk_SkipChildren(t *testing.T) {
	t.Parallel()

	var visited []string
	_ = Walk(sampleTree(), func(_ []string, n Node) error {
		visited = append(visited, n.Name)
		if n.Name == "lwc" {
			return SkipChildren
		}
		return nil
	})

	if slices.Contains(visited, "card") {
		t.Errorf("Walk() visited children of skipped folder: %v", visited)
	}
}

func TestFindFileAndPathTo(t *testing.T) {
	t.Parallel()

	nodes := sampleTree()
	id := FileID("dev", "lwc/card/card.js")

	ref, ok := FindFile(nodes, id)
	if !ok {
		t.Fatalf("FindFile(%q) not found", id)
	}
	if ref.Name != "card.js" {
		t.Errorf("FindFile().Name = %q, want card.js", ref.Name)
	}

	path, ok := PathTo(nodes, id)
	if !ok {
		t.Fatalf("PathTo(%q) not found", id)
	}
	if !slices.Equal(path, []string{"lwc", "card"}) {
		t.Errorf("PathTo() = %v, want [lwc card]", path)
	}

	if _, ok := FindFile(nodes, FolderID("dev", "lwc")); ok {
		t.Error("FindFile() should not return folders")
	}
}

func TestFiles(t *testing.T) {
	t.Parallel()

	files := Files(sampleTree())
	if len(files) != 3 {
		t.Fatalf("Files() returned %d refs, want 3", len(files))
	}
	if files[0].Name != "Bar.cls" {
		t.Errorf("Files()[0] = %q, want Bar.cls", files[0].Name)
	}
}

func TestEqual(t *testing.T) {
	t.Parallel()

	a, b := sampleTree(), sampleTree()
	if !Equal(a, b) {
		t.Fatal("Equal() = false for identical trees")
	}

	b[0].Children[1].File.LocalPath = "/tmp/Foo.cls"
	if Equal(a, b) {
		t.Error("Equal() = true after changing a file ref")
	}
}

func TestPlaceholder(t *testing.T) {
	t.Parallel()

	nodes := []Node{Placeholder("dev")}
	if !IsPlaceholder(nodes) {
		t.Error("IsPlaceholder() = false for placeholder forest")
	}
	if IsPlaceholder(sampleTree()) {
		t.Error("IsPlaceholder() = true for real tree")
	}
	if nodes[0].Name != PlaceholderText {
		t.Errorf("placeholder name = %q", nodes[0].Name)
	}
}

func TestClone_Independent(t *testing.T) {
	t.Parallel()

	orig := sampleTree()
	cp := Clone(orig)
	if !Equal(orig, cp) {
		t.Fatal("Clone() result differs from original")
	}

	cp[0].Children[0].Name = "changed"
	cp[0].Children[0].File.Name = "changed"

	if orig[0].Children[0].Name != "Bar.cls" || orig[0].Children[0].File.Name != "Bar.cls" {
		t.Error("mutating the clone changed the original")
	}
}
