package vectordb

import (
	"fmt"
	"strings"
)

// FormatContext renders results as "Source: <source>" blocks for a prompt.
func FormatContext(results []SearchResult) string {
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		source := r.Document.Metadata.Source
		if source == "" {
			source = "desconocido"
		}
		blocks = append(blocks, fmt.Sprintf("Source: %s\n%s", source, r.Document.Content))
	}
	return strings.Join(blocks, "\n\n")
}

// FormatResults renders results for a terminal, with scores.
func FormatResults(results []SearchResult) string {
	if len(results) == 0 {
		return "No se encontraron resultados."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d resultado(s):\n\n", len(results))
	for i, r := range results {
		md := r.Document.Metadata
		fmt.Fprintf(&sb, "--- %d. %s [%s, fragmento %d] (similitud: %.4f) ---\n",
			i+1, md.Source, md.Type, md.Chunk, r.Similarity)
		sb.WriteString(r.Document.Content)
		sb.WriteString("\n\n")
	}
	return sb.String()
}
