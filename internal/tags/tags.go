// Package tags pulls structured payloads out of generated free text. Tags may
// nest within themselves, so matching counts depth instead of using a single
// regular expression.
package tags

import "strings"

// Extract returns the content of the first top-level <tag>...</tag> span,
// including any nested same-named tags. The second return is false when no
// complete span exists; an opening tag without its closing tag yields nothing
// rather than a partial payload.
func Extract(text, tag string) (string, bool) {
	openTag := "<" + tag + ">"
	closeTag := "</" + tag + ">"

	start := strings.Index(text, openTag)
	if start < 0 {
		return "", false
	}
	end, ok := matchClose(text, start+len(openTag), openTag, closeTag)
	if !ok {
		return "", false
	}
	return text[start+len(openTag) : end], true
}

// Remove deletes every top-level <tag>...</tag> span from text, open and
// close markers included. Unmatched opening tags are left untouched.
func Remove(text, tag string) string {
	openTag := "<" + tag + ">"
	closeTag := "</" + tag + ">"

	var sb strings.Builder
	rest := text
	for {
		start := strings.Index(rest, openTag)
		if start < 0 {
			sb.WriteString(rest)
			return sb.String()
		}
		end, ok := matchClose(rest, start+len(openTag), openTag, closeTag)
		if !ok {
			sb.WriteString(rest)
			return sb.String()
		}
		sb.WriteString(rest[:start])
		rest = rest[end+len(closeTag):]
	}
}

// ExtractAll runs Extract for each tag name; absent tags are omitted from the
// result.
func ExtractAll(text string, tagNames ...string) map[string]string {
	out := make(map[string]string, len(tagNames))
	for _, name := range tagNames {
		if content, ok := Extract(text, name); ok {
			out[name] = content
		}
	}
	return out
}

// matchClose scans forward from pos (just past an opening tag) and returns the
// index of the closing tag balancing it. Nested openings of the same tag bump
// the depth so inner closers are skipped.
func matchClose(text string, pos int, openTag, closeTag string) (int, bool) {
	depth := 1
	for pos < len(text) {
		nextOpen := strings.Index(text[pos:], openTag)
		nextClose := strings.Index(text[pos:], closeTag)
		if nextClose < 0 {
			return 0, false
		}
		if nextOpen >= 0 && nextOpen < nextClose {
			depth++
			pos += nextOpen + len(openTag)
			continue
		}
		depth--
		if depth == 0 {
			return pos + nextClose, true
		}
		pos += nextClose + len(closeTag)
	}
	return 0, false
}
