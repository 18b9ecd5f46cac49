package knowledge

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// FAQ is one question and answer pair.
type FAQ struct {
	Question string
	Answer   string
}

// Content is the text indexed for the pair. FAQ entries are never split.
func (f FAQ) Content() string {
	return fmt.Sprintf("PREGUNTA FRECUENTE: %s\nRESPUESTA: %s", f.Question, f.Answer)
}

// LoadFAQ reads an FAQ file. It accepts JSON Lines, where each line is an
// object or an array of objects, and falls back to reading the whole file
// as one array or object. Keys are pregunta/respuesta, or question/answer.
func LoadFAQ(path string) ([]FAQ, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading faq %s: %w", path, err)
	}
	return ParseFAQ(data)
}

// ParseFAQ parses FAQ records from data; see LoadFAQ.
func ParseFAQ(data []byte) ([]FAQ, error) {
	var items []map[string]any

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var v any
		if err := json.Unmarshal(line, &v); err != nil {
			continue
		}
		items = appendItems(items, v)
	}

	if len(items) == 0 {
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) == 0 {
			return nil, fmt.Errorf("faq file is empty")
		}
		var v any
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return nil, fmt.Errorf("parsing faq: %w", err)
		}
		items = appendItems(items, v)
	}

	var out []FAQ
	for _, item := range items {
		f := FAQ{
			Question: firstString(item, "pregunta", "question"),
			Answer:   firstString(item, "respuesta", "answer"),
		}
		if f.Question == "" && f.Answer == "" {
			continue
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no faq records found")
	}
	return out, nil
}

func appendItems(items []map[string]any, v any) []map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return append(items, t)
	case []any:
		for _, e := range t {
			if m, ok := e.(map[string]any); ok {
				items = append(items, m)
			}
		}
	}
	return items
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			if s, ok := v.(string); ok {
				return strings.TrimSpace(s)
			}
			return strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return ""
}
