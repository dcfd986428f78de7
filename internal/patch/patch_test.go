package patch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/divvun/gut/internal/replace"
)

const readmeDiff = `diff --git a/README.md b/README.md
index 9939b16..68b2be5 100644
--- a/README.md
+++ b/README.md
@@ -1,3 +1,7 @@
-# __UND__
+# Hello __UND__
+
+rev 2
 
 This is a repo for __UND__
+
+And __UND__ is great
`

const mixedDiff = `diff --git a/src/__UND__/__UND__.txt b/src/__UND__/__UND__.txt
new file mode 100644
index 0000000000000000000000000000000000000000..257cc5642cb1a054f08cc83f2d943e56fd3ebe99
--- /dev/null
+++ b/src/__UND__/__UND__.txt
@@ -0,0 +1 @@
+lang __UND__
\ No newline at end of file
diff --git a/old.txt b/old.txt
deleted file mode 100644
index 257cc5642cb1a054f08cc83f2d943e56fd3ebe99..0000000000000000000000000000000000000000
--- a/old.txt
+++ /dev/null
@@ -1 +0,0 @@
-gone
diff --git a/empty file.txt b/empty file.txt
new file mode 100644
index 0000000000000000000000000000000000000000..e69de29bb2d1d6434b8b29ae775ad8c2e48c5391
diff --git a/logo.png b/logo.png
index 1111111111111111111111111111111111111111..2222222222222222222222222222222222222222 100644
GIT binary patch
literal 6
NcmZQz_~^{?__UND__

literal 4
LcmZQz_~^k!0W1I>

diff --git a/VERSION b/VERSION
index 3333333333333333333333333333333333333333..4444444444444444444444444444444444444444 100644
--- a/VERSION
+++ b/VERSION
@@ -1 +1 @@ header __UND__
-VERSION=1
+VERSION=2
`

func TestParse_RoundTrip(t *testing.T) {
	t.Parallel()

	for name, in := range map[string]string{"readme": readmeDiff, "mixed": mixedDiff, "empty": ""} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			set, err := Parse([]byte(in))
			require.NoError(t, err)
			assert.Equal(t, in, string(set.Bytes()))
		})
	}
}

func TestParse_Files(t *testing.T) {
	t.Parallel()

	set, err := Parse([]byte(mixedDiff))
	require.NoError(t, err)
	require.Len(t, set.Files, 5)

	assert.Equal(t, []string{
		"src/__UND__/__UND__.txt",
		"old.txt",
		"empty file.txt",
		"logo.png",
		"VERSION",
	}, set.Paths())

	created := set.Files[0]
	assert.Empty(t, created.OldPath)
	assert.Equal(t, "src/__UND__/__UND__.txt", created.NewPath)
	require.Len(t, created.Hunks, 1)
	assert.Equal(t, []string{"+lang __UND__", `\ No newline at end of file`}, created.Hunks[0].Lines)

	deleted := set.Files[1]
	assert.Equal(t, "old.txt", deleted.OldPath)
	assert.Empty(t, deleted.NewPath)

	spaced := set.Files[2]
	assert.Empty(t, spaced.OldPath)
	assert.Equal(t, "empty file.txt", spaced.NewPath)
	assert.False(t, spaced.HasPaths)

	assert.True(t, set.Files[3].IsBinary())
	assert.False(t, set.Files[4].IsBinary())
}

func TestSet_Rewrite(t *testing.T) {
	t.Parallel()

	e, err := replace.Compile([]replace.Rule{{Match: "__UND__"}}, map[string]string{"__UND__": "en"})
	require.NoError(t, err)

	set, err := Parse([]byte(readmeDiff))
	require.NoError(t, err)

	want := `diff --git a/README.md b/README.md
index 9939b16..68b2be5 100644
--- a/README.md
+++ b/README.md
@@ -1,3 +1,7 @@
-# en
+# Hello en
+
+rev 2
 
 This is a repo for en
+
+And en is great
`
	assert.Equal(t, want, string(set.Rewrite(e).Bytes()))
	assert.Equal(t, readmeDiff, string(set.Bytes()), "rewrite must not modify the source set")
}

func TestSet_RewritePathsAndBinary(t *testing.T) {
	t.Parallel()

	e, err := replace.Compile([]replace.Rule{{Match: "__UND__"}}, map[string]string{"__UND__": "en"})
	require.NoError(t, err)

	set, err := Parse([]byte(mixedDiff))
	require.NoError(t, err)
	out := set.Rewrite(e)

	assert.Equal(t, "src/en/en.txt", out.Files[0].NewPath)
	assert.Equal(t, []string{"+lang en", `\ No newline at end of file`}, out.Files[0].Hunks[0].Lines)
	assert.Equal(t, set.Files[3].Binary, out.Files[3].Binary, "binary data is copied verbatim")
	assert.Equal(t, " header en", out.Files[4].Hunks[0].Section)

	rendered := string(out.Bytes())
	assert.Contains(t, rendered, "diff --git a/src/en/en.txt b/src/en/en.txt\n")
	assert.Contains(t, rendered, "+++ b/src/en/en.txt\n")
	assert.Contains(t, rendered, "NcmZQz_~^{?__UND__\n")
}

func TestSet_Filter(t *testing.T) {
	t.Parallel()

	set, err := Parse([]byte(mixedDiff))
	require.NoError(t, err)

	kept := set.Filter(func(p string) bool { return p == "VERSION" || p == "old.txt" })
	assert.Equal(t, []string{"old.txt", "VERSION"}, kept.Paths())
	assert.Len(t, set.Files, 5)

	none := set.Filter(func(string) bool { return false })
	assert.True(t, none.Empty())
	assert.Empty(t, none.Bytes())
}

func TestQuotedPaths(t *testing.T) {
	t.Parallel()

	in := `diff --git "a/tab\there.txt" "b/tab\there.txt"
index 3333333333333333333333333333333333333333..4444444444444444444444444444444444444444 100644
--- "a/tab\there.txt"
+++ "b/tab\there.txt"
@@ -1 +1 @@
-a
+b
`
	set, err := Parse([]byte(in))
	require.NoError(t, err)
	require.Len(t, set.Files, 1)
	assert.Equal(t, "tab\there.txt", set.Files[0].Path())
	assert.Equal(t, in, string(set.Bytes()))

	e, err := replace.Compile([]replace.Rule{{Match: "here", Replace: `"q"`}}, nil)
	require.NoError(t, err)
	assert.Contains(t, string(set.Rewrite(e).Bytes()), `+++ "b/tab\t\"q\".txt"`)
}

func TestParse_Malformed(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"no header":       "index 123..456\n",
		"truncated hunk":  "diff --git a/x b/x\n--- a/x\n+++ b/x\n@@ -1,2 +1,2 @@\n a\n",
		"bad hunk line":   "diff --git a/x b/x\n--- a/x\n+++ b/x\n@@ -1 +1 @@\n*a\n+b\n",
		"bad path prefix": "diff --git a/x b/x\n--- x\n+++ b/x\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(in))
			assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
		})
	}
}
