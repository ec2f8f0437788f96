package cqldata

import (
	"strings"
)

// BreakDownPath splits a tenant relative path into its folder and file name.
// The folder is everything up to and including the last "/", always "/" wrapped;
// an empty folder becomes "/".
func BreakDownPath(path string) (folder string, filename string) {
	i := strings.LastIndex(path, "/")
	folder, filename = path[:i+1], path[i+1:]
	return NormalizeFolder(folder), filename
}

// NormalizeFolder ensures folder begins and ends with "/".
func NormalizeFolder(folder string) string {
	if !strings.HasPrefix(folder, "/") {
		folder = "/" + folder
	}
	if !strings.HasSuffix(folder, "/") {
		folder = folder + "/"
	}
	return folder
}

// Relativize converts an absolute path into a path relative to the tenant root, always beginning
// with "/". The root itself may be given without its trailing "/". A path outside the root is a
// precondition error.
func Relativize(r RootResolver, path string) (string, error) {
	root := r.RootFolder()
	dyn := r.DynamicFiles()
	if dyn != root {
		if path == strings.TrimSuffix(dyn, "/") {
			path = dyn
		}
		if strings.HasPrefix(path, dyn) {
			return r.RelativePath(path), nil
		}
	}
	if path == strings.TrimSuffix(root, "/") {
		return "/", nil
	}
	if strings.HasPrefix(path, root) {
		return "/" + path[len(root):], nil
	}
	return "", Errorf(PreconditionFailed, "path '%s' is outside the root folder '%s'", path, root)
}

// RelativizeFolder is Relativize followed by NormalizeFolder.
func RelativizeFolder(r RootResolver, folder string) (string, error) {
	rel, err := Relativize(r, folder)
	if err != nil {
		return "", err
	}
	return NormalizeFolder(rel), nil
}

// Absolutize is the inverse of Relativize for paths under the root folder.
func Absolutize(r RootResolver, relative string) string {
	return r.RootFolder() + strings.TrimPrefix(relative, "/")
}

// FirstSegment returns the first non-empty segment of path, or "" for the root.
func FirstSegment(path string) string {
	segments := splitSegments(path)
	if len(segments) == 0 {
		return ""
	}
	return segments[0]
}

// IsSubFolder reports whether folder equals parent or lies below it. Both must be normalized.
func IsSubFolder(folder string, parent string) bool {
	return strings.HasPrefix(folder, parent)
}

// ParentFolder returns the parent of a normalized folder; the root's parent is itself.
func ParentFolder(folder string) string {
	if folder == "/" {
		return folder
	}
	trimmed := strings.TrimSuffix(folder, "/")
	return trimmed[:strings.LastIndex(trimmed, "/")+1]
}

// MatchesExtension reports whether filename ends with extension; an empty extension matches all.
func MatchesExtension(filename string, extension string) bool {
	return extension == "" || strings.HasSuffix(filename, extension)
}
