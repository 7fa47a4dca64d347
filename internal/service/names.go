package service

import (
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var plainText = bluemonday.StrictPolicy()

// sanitizeName strips markup and collapses runs of whitespace.
func sanitizeName(value string) string {
	return strings.Join(strings.Fields(plainText.Sanitize(value)), " ")
}

// normalizeChannelName lower-cases a channel name and joins its words with dashes.
func normalizeChannelName(value string) string {
	fields := strings.FieldsFunc(plainText.Sanitize(value), unicode.IsSpace)
	return strings.ToLower(strings.Join(fields, "-"))
}
