package wtest

import (
	"os"
	"path/filepath"

	"github.com/google/go-cmp/cmp"
)

// GoldenDiff compares got against the contents of testdata/<name>,
// failing t with a go-cmp unified diff on mismatch. Set
// WTEST_UPDATE_GOLDEN=1 to (re)write the golden file from got instead
// of comparing, for updating fixtures after an intentional
// disassembly or format change.
func GoldenDiff(t TestingT, name, got string) {
	t.Helper()
	path := filepath.Join("testdata", name)

	if os.Getenv("WTEST_UPDATE_GOLDEN") != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("wtest: failed to create testdata dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(got), 0o644); err != nil {
			t.Fatalf("wtest: failed to write golden file %s: %v", path, err)
		}
		return
	}

	want, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("wtest: failed to read golden file %s (run with WTEST_UPDATE_GOLDEN=1 to create it): %v", path, err)
	}
	if diff := cmp.Diff(string(want), got); diff != "" {
		t.Errorf("wtest: %s mismatch (-want +got):\n%s", name, diff)
	}
}
