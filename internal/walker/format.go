package walker

import (
	"path/filepath"
	"strings"
)

// Format is the document format, which decides how text is extracted.
type Format string

const (
	FormatUnknown  Format = ""
	FormatPDF      Format = "pdf"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
	FormatFAQ      Format = "faq"
)

var extFormats = map[string]Format{
	".pdf":      FormatPDF,
	".md":       FormatMarkdown,
	".markdown": FormatMarkdown,
	".txt":      FormatText,
	".json":     FormatFAQ,
	".jsonl":    FormatFAQ,
}

// DetectFormat returns the format for a file name by extension.
func DetectFormat(name string) Format {
	return extFormats[strings.ToLower(filepath.Ext(name))]
}
