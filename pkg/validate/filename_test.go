package validate

import "testing"

func TestFilename(t *testing.T) {
	cases := map[string]bool{
		"notes.txt":       true,
		"a/b/notes.txt":   true,
		"no-extension":    false,
		".hidden":         false,
		"trailing.":       false,
		"has space.txt":   false,
		"bad*char.txt":    false,
		"":                false,
		"under_score.txt": true,
	}
	for name, want := range cases {
		if got := Filename(name); got != want {
			t.Errorf("Filename(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestFolderName(t *testing.T) {
	if !FolderName("docs") {
		t.Error("expected docs to be a valid folder name")
	}
	if FolderName("   ") {
		t.Error("expected blank folder name to be invalid")
	}
}
