package gate

import "strings"

// SplitFirstSegment はパスを先頭セグメントと残りのパスに分割する。
//
//	""             -> ("", "")
//	"/"            -> ("", "")
//	"/api"         -> ("api", "")
//	"/api/"        -> ("api", "/")
//	"/api/users/5" -> ("api", "/users/5")
//
// 先頭にスラッシュが無いパスは、スラッシュがあるものとして扱う。
func SplitFirstSegment(path string) (segment, remainder string) {
	trimmed := strings.TrimPrefix(path, "/")
	if trimmed == "" {
		return "", ""
	}
	segment, rest, found := strings.Cut(trimmed, "/")
	if !found {
		return segment, ""
	}
	return segment, "/" + rest
}

// TopSegment はパスの先頭セグメントをスラッシュ付きで返す。
// "/api/users/5" なら "/api"、"/" なら "/" を返す。
func TopSegment(path string) string {
	segment, _ := SplitFirstSegment(path)
	return "/" + segment
}
