package drivekit

import (
	"context"
	"regexp"
	"strings"
)

// segmentKind classifies one slash-separated piece of a glob pattern.
type segmentKind int

const (
	segLiteral    segmentKind = iota // plain name, no metacharacters
	segStar                          // exactly "*"
	segDoubleStar                    // "**" (and runs of consecutive "**")
	segPattern                       // contains *, ? or a character class
)

type segment struct {
	kind    segmentKind
	literal string // original text, for segLiteral descents
	re      string // regex source matching the segment, unanchored
}

// parsePattern splits a glob pattern into classified segments. Empty
// pieces and redundant consecutive "**" collapse away.
func parsePattern(pattern string) []segment {
	var segs []segment
	for _, part := range strings.Split(pattern, "/") {
		if part == "" {
			continue
		}
		switch {
		case part == "*":
			segs = append(segs, segment{kind: segStar, re: `[^/]*`})
		case len(part) >= 2 && strings.Trim(part, "*") == "":
			if len(segs) > 0 && segs[len(segs)-1].kind == segDoubleStar {
				continue
			}
			segs = append(segs, segment{kind: segDoubleStar, re: `[^/]*(?:/[^/]*)*`})
		case strings.ContainsAny(part, `*?[`):
			segs = append(segs, segment{kind: segPattern, re: translateSegment(part)})
		default:
			segs = append(segs, segment{kind: segLiteral, literal: part, re: regexp.QuoteMeta(part)})
		}
	}
	return segs
}

// translateSegment converts one glob segment into a regex that never
// crosses a path separator.
func translateSegment(part string) string {
	var b strings.Builder
	runes := []rune(part)
	for i := 0; i < len(runes); i++ {
		switch r := runes[i]; r {
		case '*':
			b.WriteString(`[^/]*`)
		case '?':
			b.WriteString(`[^/]`)
		case '[':
			j := i + 1
			if j < len(runes) && (runes[j] == '!' || runes[j] == '^') {
				j++
			}
			if j < len(runes) && runes[j] == ']' {
				j++
			}
			for j < len(runes) && runes[j] != ']' {
				j++
			}
			if j >= len(runes) {
				// Unterminated class: treat the bracket literally.
				b.WriteString(`\[`)
				continue
			}
			class := string(runes[i+1 : j])
			class = strings.ReplaceAll(class, `\`, `\\`)
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			b.WriteString("[" + class + "]")
			i = j
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return b.String()
}

// hasDoubleStar reports whether any of segs[i:] spans directories.
func hasDoubleStar(segs []segment) bool {
	for _, s := range segs {
		if s.kind == segDoubleStar {
			return true
		}
	}
	return false
}

// ============================================================================
// Glob engine
// ============================================================================

// Glob matches pattern against the tree, starting from the working
// directory (or the root for absolute patterns).
func (fs *FileSystem) Glob(ctx context.Context, pattern string) ([]*Entry, error) {
	return fs.GlobFrom(ctx, pattern, "", false)
}

// RGlob matches pattern at any depth below the directory, as if the
// pattern were prefixed with "**/".
func (fs *FileSystem) RGlob(ctx context.Context, pattern, dir string) ([]*Entry, error) {
	if strings.Trim(pattern, "/") == "" {
		pattern = "**"
	} else {
		pattern = "**/" + strings.TrimPrefix(pattern, "/")
	}
	return fs.GlobFrom(ctx, pattern, dir, false)
}

// GlobFrom matches pattern below dir. The engine consumes literal prefix
// segments as plain descents, degenerates to a recursive walk for
// trailing "**", compiles the remainder into one whole-path regex when a
// "**" appears elsewhere, and otherwise matches step by step, listing
// each directory once per level.
func (fs *FileSystem) GlobFrom(ctx context.Context, pattern, dir string, ignoreCase bool) ([]*Entry, error) {
	base := fs.Abspath(dir)
	if strings.HasPrefix(pattern, "/") {
		base = "/"
	}
	segs := parsePattern(pattern)
	if len(segs) == 0 {
		// Pattern names the base directory itself (empty or all slashes).
		e := fs.entry(base, fs.password)
		if ok, err := e.Exists(ctx); err != nil {
			return nil, err
		} else if !ok {
			return nil, nil
		}
		return []*Entry{e}, nil
	}

	// A literal prefix needs no listing, just descents. Case-insensitive
	// matching cannot shortcut: the literal text must match listed names.
	i := 0
	if !ignoreCase {
		for ; i < len(segs) && segs[i].kind == segLiteral; i++ {
			base = NormalizePath(base, segs[i].literal)
		}
		if i == len(segs) {
			e := fs.entry(base, fs.password)
			if ok, err := e.Exists(ctx); err != nil {
				return nil, err
			} else if !ok {
				return nil, nil
			}
			return []*Entry{e}, nil
		}
	}
	rest := segs[i:]

	if rest[0].kind == segDoubleStar && len(rest) == 1 {
		return fs.WalkEntries(ctx, base, WalkOptions{})
	}
	if hasDoubleStar(rest) {
		return fs.globByRegexp(ctx, base, rest, ignoreCase)
	}
	return fs.globStepMatch(ctx, base, rest, ignoreCase)
}

// globByRegexp compiles the remaining segments into one anchored
// whole-path regex and filters an unbounded walk with it. For deep "**"
// patterns this beats re-testing candidates segment by segment.
func (fs *FileSystem) globByRegexp(ctx context.Context, base string, segs []segment, ignoreCase bool) ([]*Entry, error) {
	parts := make([]string, len(segs))
	for i, s := range segs {
		parts[i] = s.re
	}
	prefix := regexp.QuoteMeta(base)
	if base == "/" {
		prefix = ""
	}
	src := "^" + prefix + "/" + strings.Join(parts, "/") + "$"
	if ignoreCase {
		src = "(?i)" + src
	}
	re, err := regexp.Compile(src)
	if err != nil {
		return nil, NewPathError("glob", base, err)
	}
	var out []*Entry
	err = fs.WalkFrom(ctx, base, WalkOptions{}, func(e *Entry) error {
		if re.MatchString(e.path) {
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// globStepMatch recursively matches one segment per directory level:
// literal segments descend into the named child, "*" descends into every
// child, and wildcard segments filter children by name. Terminal
// segments yield matches; non-terminal ones recurse into directories
// only.
func (fs *FileSystem) globStepMatch(ctx context.Context, base string, segs []segment, ignoreCase bool) ([]*Entry, error) {
	start := fs.entry(base, fs.password)
	if ok, err := start.IsDir(ctx); err != nil {
		if IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	} else if !ok {
		return nil, nil
	}

	compiled := make(map[int]*regexp.Regexp)
	nameRE := func(i int) (*regexp.Regexp, error) {
		if re, ok := compiled[i]; ok {
			return re, nil
		}
		src := "^" + segs[i].re + "$"
		if ignoreCase {
			src = "(?i)" + src
		}
		re, err := regexp.Compile(src)
		if err != nil {
			return nil, err
		}
		compiled[i] = re
		return re, nil
	}

	var out []*Entry
	var step func(dir *Entry, i int) error
	step = func(dir *Entry, i int) error {
		last := i == len(segs)-1
		seg := segs[i]

		if seg.kind == segLiteral && !ignoreCase {
			sub := dir.Joinpath(seg.literal)
			if last {
				ok, err := sub.Exists(ctx)
				if err != nil {
					return err
				}
				if ok {
					out = append(out, sub)
				}
				return nil
			}
			isDir, err := sub.IsDir(ctx)
			if err != nil {
				if IsNotExist(err) {
					return nil
				}
				return err
			}
			if isDir {
				return step(sub, i+1)
			}
			return nil
		}

		children, err := dir.ListdirEntry(ctx)
		if err != nil {
			return err
		}
		for _, child := range children {
			matched := false
			switch seg.kind {
			case segStar:
				matched = true
			case segLiteral:
				matched = strings.EqualFold(child.Name(), seg.literal)
			default:
				re, err := nameRE(i)
				if err != nil {
					return err
				}
				matched = re.MatchString(child.Name())
			}
			if !matched {
				continue
			}
			if last {
				out = append(out, child)
				continue
			}
			if child.attrs != nil && child.attrs.IsDir {
				if err := step(child, i+1); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := step(start, 0); err != nil {
		return nil, err
	}
	return out, nil
}
