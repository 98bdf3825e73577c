package drivekit

import (
	gopath "path"
	"strings"
)

// NormalizePath resolves p against base (an absolute directory) and
// returns a normalized absolute path: no ".", "..", or trailing slash,
// except the root "/". An empty p or "." resolves to base itself.
func NormalizePath(base, p string) string {
	if p == "" || p == "." {
		p = base
	} else if !strings.HasPrefix(p, "/") {
		p = base + "/" + p
	}
	p = gopath.Clean(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// SplitPath splits an absolute path into its parent directory and base
// name. The root splits into ("/", "").
func SplitPath(p string) (dir, name string) {
	if p == "/" {
		return "/", ""
	}
	dir, name = gopath.Split(p)
	if dir != "/" {
		dir = strings.TrimSuffix(dir, "/")
	}
	return dir, name
}

// IsDescendant reports whether p lies strictly below ancestor.
func IsDescendant(p, ancestor string) bool {
	if ancestor == "/" {
		return p != "/"
	}
	return strings.HasPrefix(p, ancestor+"/")
}

// underMount reports whether p equals mountPath or lies below it.
func underMount(p, mountPath string) bool {
	return p == mountPath || IsDescendant(p, mountPath)
}
