// Package patch parses and renders the unified diffs produced by
// `git diff --binary --no-renames` so they can be filtered by path and
// rewritten line by line before being fed to `git apply`.
package patch

import (
	"regexp"
	"strconv"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/divvun/gut/internal/replace"
)

// ErrMalformed is returned when the input is not a git diff.
var ErrMalformed = errors.Base("malformed patch")

const devNull = "/dev/null"

// Set is an ordered list of per-file patches.
type Set struct {
	Files []*File
}

// File is the patch of a single path. OldPath is empty for created files and
// NewPath is empty for deleted files.
type File struct {
	OldPath string
	NewPath string

	// Extended header lines between "diff --git" and "---" (index, modes).
	Header []string
	// HasPaths records whether the diff carried ---/+++ lines.
	HasPaths bool
	Hunks    []*Hunk
	// Binary holds a "GIT binary patch" section verbatim.
	Binary []string
}

// Hunk is one @@ section. Lines keep their ' ', '+', '-' or '\' prefix.
type Hunk struct {
	OldStart, OldLines int
	NewStart, NewLines int
	Section            string
	Lines              []string
}

// Path is the repository path the file patch applies to.
func (f *File) Path() string {
	if f.NewPath != "" {
		return f.NewPath
	}
	return f.OldPath
}

// IsBinary reports whether the file carries binary data.
func (f *File) IsBinary() bool {
	return len(f.Binary) > 0
}

var hunkHeader = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@(.*)$`)

// Parse reads the output of git diff. Empty input yields an empty set.
func Parse(data []byte) (*Set, error) {
	lines := strings.Split(string(data), "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	set := &Set{}
	var cur *File
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		switch {
		case strings.HasPrefix(line, "diff --git "):
			oldPath, newPath, err := parseGitHeader(strings.TrimPrefix(line, "diff --git "))
			if err != nil {
				return nil, err
			}
			cur = &File{OldPath: oldPath, NewPath: newPath}
			set.Files = append(set.Files, cur)

		case cur == nil:
			return nil, errors.Errorf("%w: line %d: expected diff header, got %q", ErrMalformed, i+1, line)

		case strings.HasPrefix(line, "new file mode"):
			cur.OldPath = ""
			cur.Header = append(cur.Header, line)

		case strings.HasPrefix(line, "deleted file mode"):
			cur.NewPath = ""
			cur.Header = append(cur.Header, line)

		case strings.HasPrefix(line, "--- "):
			cur.HasPaths = true
			p, err := parsePathLine(strings.TrimPrefix(line, "--- "), "a/")
			if err != nil {
				return nil, err
			}
			cur.OldPath = p

		case strings.HasPrefix(line, "+++ "):
			cur.HasPaths = true
			p, err := parsePathLine(strings.TrimPrefix(line, "+++ "), "b/")
			if err != nil {
				return nil, err
			}
			cur.NewPath = p

		case strings.HasPrefix(line, "@@ "):
			h, next, err := parseHunk(lines, i)
			if err != nil {
				return nil, err
			}
			cur.Hunks = append(cur.Hunks, h)
			i = next - 1

		case line == "GIT binary patch":
			for ; i < len(lines) && !strings.HasPrefix(lines[i], "diff --git "); i++ {
				cur.Binary = append(cur.Binary, lines[i])
			}
			i--

		default:
			cur.Header = append(cur.Header, line)
		}
	}
	return set, nil
}

func parseHunk(lines []string, start int) (*Hunk, int, error) {
	m := hunkHeader.FindStringSubmatch(lines[start])
	if m == nil {
		return nil, 0, errors.Errorf("%w: line %d: bad hunk header %q", ErrMalformed, start+1, lines[start])
	}
	h := &Hunk{
		OldStart: atoi(m[1]),
		OldLines: count(m[2]),
		NewStart: atoi(m[3]),
		NewLines: count(m[4]),
		Section:  m[5],
	}

	oldLeft, newLeft := h.OldLines, h.NewLines
	i := start + 1
	for ; i < len(lines) && (oldLeft > 0 || newLeft > 0 || strings.HasPrefix(lines[i], `\`)); i++ {
		line := lines[i]
		switch {
		case line == "":
			// Some tools strip the trailing space of empty context lines.
			line = " "
			oldLeft--
			newLeft--
		case line[0] == ' ':
			oldLeft--
			newLeft--
		case line[0] == '-':
			oldLeft--
		case line[0] == '+':
			newLeft--
		case line[0] == '\\':
		default:
			return nil, 0, errors.Errorf("%w: line %d: unexpected hunk line %q", ErrMalformed, i+1, line)
		}
		h.Lines = append(h.Lines, line)
	}
	if oldLeft != 0 || newLeft != 0 {
		return nil, 0, errors.Errorf("%w: truncated hunk at line %d", ErrMalformed, start+1)
	}
	return h, i, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func count(s string) int {
	if s == "" {
		return 1
	}
	return atoi(s)
}

// parseGitHeader splits "a/X b/Y". Without renames X == Y, which resolves the
// ambiguity of unquoted paths containing spaces.
func parseGitHeader(rest string) (string, string, error) {
	if strings.HasPrefix(rest, `"`) {
		oldPath, tail, err := unquotePrefix(rest)
		if err != nil {
			return "", "", err
		}
		newPath, err := parsePathLine(strings.TrimPrefix(tail, " "), "b/")
		if err != nil {
			return "", "", err
		}
		return strings.TrimPrefix(oldPath, "a/"), newPath, nil
	}

	if n := len(rest); n >= 5 && (n-5)%2 == 0 {
		l := (n - 5) / 2
		a, b := rest[:2+l], rest[2+l+1:]
		if strings.HasPrefix(a, "a/") && strings.HasPrefix(b, "b/") && a[2:] == b[2:] {
			return a[2:], b[2:], nil
		}
	}

	idx := strings.Index(rest, " b/")
	if !strings.HasPrefix(rest, "a/") || idx < 0 {
		return "", "", errors.Errorf("%w: bad diff header %q", ErrMalformed, rest)
	}
	newPath, err := parsePathLine(rest[idx+1:], "b/")
	if err != nil {
		return "", "", err
	}
	return rest[2:idx], newPath, nil
}

func parsePathLine(s, prefix string) (string, error) {
	s = strings.TrimSuffix(s, "\t")
	if s == devNull {
		return "", nil
	}
	if strings.HasPrefix(s, `"`) {
		p, tail, err := unquotePrefix(s)
		if err != nil {
			return "", err
		}
		if tail != "" {
			return "", errors.Errorf("%w: trailing data after path %q", ErrMalformed, s)
		}
		s = p
	}
	if !strings.HasPrefix(s, prefix) {
		return "", errors.Errorf("%w: path %q lacks %q prefix", ErrMalformed, s, prefix)
	}
	return strings.TrimPrefix(s, prefix), nil
}

// unquotePrefix decodes a leading C-style quoted string and returns the rest.
func unquotePrefix(s string) (string, string, error) {
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			return b.String(), s[i+1:], nil
		case '\\':
			i++
			if i >= len(s) {
				break
			}
			switch e := s[i]; e {
			case 'a':
				b.WriteByte('\a')
			case 'b':
				b.WriteByte('\b')
			case 't':
				b.WriteByte('\t')
			case 'n':
				b.WriteByte('\n')
			case 'v':
				b.WriteByte('\v')
			case 'f':
				b.WriteByte('\f')
			case 'r':
				b.WriteByte('\r')
			case '0', '1', '2', '3':
				if i+2 >= len(s) {
					return "", "", errors.Errorf("%w: bad escape in %q", ErrMalformed, s)
				}
				v, err := strconv.ParseUint(s[i:i+3], 8, 8)
				if err != nil {
					return "", "", errors.Errorf("%w: bad escape in %q", ErrMalformed, s)
				}
				b.WriteByte(byte(v))
				i += 2
			default:
				b.WriteByte(e)
			}
		default:
			b.WriteByte(c)
		}
	}
	return "", "", errors.Errorf("%w: unterminated quoted path %q", ErrMalformed, s)
}

// quote renders prefix+path the way git does, quoting only when needed.
func quote(prefix, path string) string {
	p := prefix + path
	needs := false
	for i := 0; i < len(p); i++ {
		if c := p[i]; c < 0x20 || c == '"' || c == '\\' || c == 0x7f {
			needs = true
			break
		}
	}
	if !needs {
		return p
	}

	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(p); i++ {
		switch c := p[i]; c {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\t':
			b.WriteString(`\t`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		default:
			if c < 0x20 || c == 0x7f {
				b.WriteString(`\` + strconv.FormatInt(int64(c)|0o1000, 8)[1:])
				continue
			}
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// Bytes renders the set back into git diff format.
func (s *Set) Bytes() []byte {
	var b strings.Builder
	for _, f := range s.Files {
		f.render(&b)
	}
	return []byte(b.String())
}

func (f *File) render(b *strings.Builder) {
	oldPath, newPath := f.OldPath, f.NewPath
	if oldPath == "" {
		oldPath = newPath
	}
	if newPath == "" {
		newPath = oldPath
	}
	b.WriteString("diff --git " + quote("a/", oldPath) + " " + quote("b/", newPath) + "\n")
	for _, h := range f.Header {
		b.WriteString(h + "\n")
	}

	if f.HasPaths {
		if f.OldPath == "" {
			b.WriteString("--- " + devNull + "\n")
		} else {
			b.WriteString("--- " + quote("a/", f.OldPath) + "\n")
		}
		if f.NewPath == "" {
			b.WriteString("+++ " + devNull + "\n")
		} else {
			b.WriteString("+++ " + quote("b/", f.NewPath) + "\n")
		}
	}

	for _, h := range f.Hunks {
		b.WriteString(h.header() + "\n")
		for _, l := range h.Lines {
			b.WriteString(l + "\n")
		}
	}
	for _, l := range f.Binary {
		b.WriteString(l + "\n")
	}
}

func (h *Hunk) header() string {
	return "@@ -" + span(h.OldStart, h.OldLines) + " +" + span(h.NewStart, h.NewLines) + " @@" + h.Section
}

func span(start, n int) string {
	if n == 1 {
		return strconv.Itoa(start)
	}
	return strconv.Itoa(start) + "," + strconv.Itoa(n)
}

// Empty reports whether the set contains no file patches.
func (s *Set) Empty() bool {
	return len(s.Files) == 0
}

// Paths lists the repository paths touched by the set, in patch order.
func (s *Set) Paths() []string {
	paths := make([]string, 0, len(s.Files))
	for _, f := range s.Files {
		paths = append(paths, f.Path())
	}
	return paths
}

// Filter returns a new set with the files for which keep returns true.
func (s *Set) Filter(keep func(path string) bool) *Set {
	out := &Set{}
	for _, f := range s.Files {
		if keep(f.Path()) {
			out.Files = append(out.Files, f)
		}
	}
	return out
}

// Rewrite returns a copy of the set with paths, hunk section headings and
// text lines passed through the engine. Lines are rewritten one at a time so
// hunk line counts stay valid. Binary data is left untouched.
func (s *Set) Rewrite(e *replace.Engine) *Set {
	out := &Set{Files: make([]*File, 0, len(s.Files))}
	for _, f := range s.Files {
		nf := &File{
			OldPath:  rewritePath(e, f.OldPath),
			NewPath:  rewritePath(e, f.NewPath),
			Header:   f.Header,
			HasPaths: f.HasPaths,
			Binary:   f.Binary,
		}
		for _, h := range f.Hunks {
			nh := *h
			nh.Section = e.String(h.Section)
			nh.Lines = make([]string, len(h.Lines))
			for i, l := range h.Lines {
				if l[0] == '\\' {
					nh.Lines[i] = l
					continue
				}
				nh.Lines[i] = l[:1] + e.String(l[1:])
			}
			nf.Hunks = append(nf.Hunks, &nh)
		}
		out.Files = append(out.Files, nf)
	}
	return out
}

func rewritePath(e *replace.Engine, p string) string {
	if p == "" {
		return ""
	}
	return e.Path(p)
}
