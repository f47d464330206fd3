package search

import "strings"

var markdownEmphasis = strings.NewReplacer("*", "", "#", "")

// CleanResponse drops markdown emphasis and heading markers and trims.
func CleanResponse(text string) string {
	return strings.TrimSpace(markdownEmphasis.Replace(text))
}
