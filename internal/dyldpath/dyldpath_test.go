// SPDX-License-Identifier: MPL-2.0

package dyldpath

import (
	"slices"
	"testing"
)

func TestCandidates(t *testing.T) {
	tests := []struct {
		name     string
		ref      string
		image    string
		runPaths []string
		root     string
		want     []string
	}{
		{
			name:  "absolute reference",
			ref:   "/usr/lib/libSystem.B.dylib",
			image: "/apps/tool",
			root:  "/sim/RuntimeRoot",
			want: []string{
				"/usr/lib/libSystem.B.dylib",
				"/sim/RuntimeRoot/usr/lib/libSystem.B.dylib",
			},
		},
		{
			name:  "absolute reference with slash root",
			ref:   "/usr/lib/libz.dylib",
			image: "/apps/tool",
			root:  "/",
			want:  []string{"/usr/lib/libz.dylib", "/usr/lib/libz.dylib"},
		},
		{
			name:     "rpath with plain entries",
			ref:      "@rpath/libA.dylib",
			image:    "/apps/tool",
			runPaths: []string{"/opt/lib", "/usr/local/lib/"},
			root:     "/rr",
			want: []string{
				"/opt/lib/libA.dylib",
				"/rr/opt/lib/libA.dylib",
				"/usr/local/lib/libA.dylib",
				"/rr/usr/local/lib/libA.dylib",
			},
		},
		{
			name:     "rpath with executable relative entry",
			ref:      "@rpath/libA.dylib",
			image:    "/apps/bin/tool",
			runPaths: []string{"@executable_path/../Frameworks"},
			root:     "/rr",
			want:     []string{"/apps/bin/../Frameworks/libA.dylib"},
		},
		{
			name:     "rpath with loader relative entry",
			ref:      "@rpath/Foo.framework/Foo",
			image:    "/apps/Frameworks/libB.dylib",
			runPaths: []string{"@loader_path", "@loader_path/sub"},
			root:     "/",
			want: []string{
				"/apps/Frameworks/Foo.framework/Foo",
				"/apps/Frameworks/sub/Foo.framework/Foo",
			},
		},
		{
			name:     "rpath mixed entries keep declaration order",
			ref:      "@rpath/libC.dylib",
			image:    "/a/b",
			runPaths: []string{"/x", "@executable_path/y", "/z"},
			root:     "/r",
			want: []string{
				"/x/libC.dylib",
				"/r/x/libC.dylib",
				"/a/y/libC.dylib",
				"/z/libC.dylib",
				"/r/z/libC.dylib",
			},
		},
		{
			name:  "rpath without run paths",
			ref:   "@rpath/libA.dylib",
			image: "/a/b",
			root:  "/",
			want:  []string{},
		},
		{
			name:  "executable path reference",
			ref:   "@executable_path/../lib/libD.dylib",
			image: "/apps/bin/tool",
			root:  "/rr",
			want:  []string{"/apps/bin/../lib/libD.dylib"},
		},
		{
			name:  "loader path reference",
			ref:   "@loader_path/libE.dylib",
			image: "/apps/lib/libF.dylib",
			root:  "/rr",
			want:  []string{"/apps/lib/libE.dylib"},
		},
		{
			name:  "token look-alike is absolute",
			ref:   "@loader_pathology/libG.dylib",
			image: "/apps/tool",
			root:  "/rr",
			want:  []string{"@loader_pathology/libG.dylib", "/rr/@loader_pathology/libG.dylib"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Candidates(tt.ref, tt.image, tt.runPaths, tt.root)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Candidates() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCandidates_Counts(t *testing.T) {
	runPaths := []string{"/a", "/b", "/c", "/d"}
	if got := Candidates("@rpath/libX.dylib", "/bin/x", runPaths, "/r"); len(got) != 2*len(runPaths) {
		t.Errorf("len(Candidates(rpath)) = %d, want %d", len(got), 2*len(runPaths))
	}
	if got := Candidates("/usr/lib/libX.dylib", "/bin/x", runPaths, "/r"); len(got) != 2 {
		t.Errorf("len(Candidates(absolute)) = %d, want 2", len(got))
	}
}

func TestReroot(t *testing.T) {
	tests := []struct {
		path, root, want string
	}{
		{"/usr/lib/libA.dylib", "/", "/usr/lib/libA.dylib"},
		{"/usr/lib/libA.dylib", "/tmp/x", "/tmp/x/usr/lib/libA.dylib"},
		{"/usr/lib/libA.dylib", "/tmp/x/", "/tmp/x/usr/lib/libA.dylib"},
	}
	for _, tt := range tests {
		if got := Reroot(tt.path, tt.root); got != tt.want {
			t.Errorf("Reroot(%q, %q) = %q, want %q", tt.path, tt.root, got, tt.want)
		}
	}
}
