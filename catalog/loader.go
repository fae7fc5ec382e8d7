package catalog

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// requiredColumns are the normalized header names every catalog file must
// carry. The optional columns in columnMap may be absent; when present but blank, the row
// field stays absent (empty string), never a placeholder.
var requiredColumns = []string{"id", "productname", "category1", "article"}

// normalizeHeader collapses case and separator differences so "Product
// Name", "product_name" and "PRODUCT NAME" all resolve to the same key.
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, "_", "")
	h = strings.ReplaceAll(h, " ", "")
	h = strings.ReplaceAll(h, "-", "")
	return h
}

// columnMap maps a normalized header name to the field it feeds on Row.
var columnMap = map[string]string{
	"id":          "id",
	"productname": "product_name",
	"category1":   "category_1",
	"category2":   "category_2",
	"category3":   "category_3",
	"article":     "article",
	"description": "description",
	"photourl":    "photo_url",
	"pageurl":     "page_url",
}

// Loader parses an uploaded catalog file into Rows for Engine.Rebuild. It
// accepts CSV and JSON/JSONL, keyed off the file extension, and applies the
// case-insensitive header rules: required id/product_name/category_1/
// article, optional description/category_2/category_3/photo_url/page_url,
// unrecognized columns ignored.
type Loader struct{}

// NewLoader returns a Loader.
func NewLoader() *Loader { return &Loader{} }

// Load reads source and returns the parsed Rows.
func (l *Loader) Load(ctx context.Context, source string) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch ext := strings.ToLower(filepath.Ext(source)); ext {
	case ".csv":
		return l.loadCSV(source)
	case ".json", ".jsonl":
		return l.loadJSON(source, ext == ".jsonl")
	default:
		return nil, fmt.Errorf("catalog loader: unsupported file type %q", ext)
	}
}

func (l *Loader) loadCSV(source string) ([]Row, error) {
	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("catalog loader: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("catalog loader: parsing %s: %w", source, err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	fieldByIndex, err := resolveHeader(records[0])
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(records)-1)
	for i, record := range records[1:] {
		row, err := rowFromFields(fieldByIndex, record)
		if err != nil {
			return nil, fmt.Errorf("catalog loader: row %d: %w", i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// resolveHeader maps each column index to a known Row field name, skipping
// unrecognized columns, and verifies every required field is present.
func resolveHeader(header []string) (map[int]string, error) {
	fieldByIndex := make(map[int]string, len(header))
	seen := make(map[string]bool, len(header))

	for i, h := range header {
		field, ok := columnMap[normalizeHeader(h)]
		if !ok {
			continue
		}
		fieldByIndex[i] = field
		seen[normalizeHeader(h)] = true
	}

	for _, req := range requiredColumns {
		if !seen[req] {
			return nil, fmt.Errorf("catalog loader: missing required column %q", columnMap[req])
		}
	}
	return fieldByIndex, nil
}

func rowFromFields(fieldByIndex map[int]string, record []string) (Row, error) {
	var row Row
	for i, field := range fieldByIndex {
		if i >= len(record) {
			continue
		}
		value := strings.TrimSpace(record[i])
		switch field {
		case "id":
			row.ID = value
		case "product_name":
			row.ProductName = value
		case "category_1":
			row.Category1 = value
		case "category_2":
			row.Category2 = value
		case "category_3":
			row.Category3 = value
		case "article":
			row.Article = value
		case "description":
			row.Description = value
		case "photo_url":
			row.PhotoURL = value
		case "page_url":
			row.PageURL = value
		}
	}

	if row.ID == "" || row.ProductName == "" || row.Category1 == "" || row.Article == "" {
		return Row{}, fmt.Errorf("missing a required value (id, product name, category 1, article)")
	}
	return row, nil
}

func (l *Loader) loadJSON(source string, jsonl bool) ([]Row, error) {
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("catalog loader: %w", err)
	}

	var raw []map[string]any
	if jsonl {
		for i, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			var obj map[string]any
			if err := json.Unmarshal([]byte(line), &obj); err != nil {
				return nil, fmt.Errorf("catalog loader: line %d: %w", i+1, err)
			}
			raw = append(raw, obj)
		}
	} else {
		trimmed := strings.TrimSpace(string(data))
		if strings.HasPrefix(trimmed, "[") {
			if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
				return nil, fmt.Errorf("catalog loader: parsing %s: %w", source, err)
			}
		} else {
			var obj map[string]any
			if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
				return nil, fmt.Errorf("catalog loader: parsing %s: %w", source, err)
			}
			raw = []map[string]any{obj}
		}
	}

	rows := make([]Row, 0, len(raw))
	for i, obj := range raw {
		row, err := rowFromObject(obj)
		if err != nil {
			return nil, fmt.Errorf("catalog loader: record %d: %w", i+1, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func rowFromObject(obj map[string]any) (Row, error) {
	fields := make(map[string]string, len(obj))
	for k, v := range obj {
		field, ok := columnMap[normalizeHeader(k)]
		if !ok {
			continue
		}
		if v == nil {
			continue
		}
		fields[field] = strings.TrimSpace(fmt.Sprintf("%v", v))
	}

	row := Row{
		ID:          fields["id"],
		ProductName: fields["product_name"],
		Category1:   fields["category_1"],
		Category2:   fields["category_2"],
		Category3:   fields["category_3"],
		Article:     fields["article"],
		Description: fields["description"],
		PhotoURL:    fields["photo_url"],
		PageURL:     fields["page_url"],
	}
	if row.ID == "" || row.ProductName == "" || row.Category1 == "" || row.Article == "" {
		return Row{}, fmt.Errorf("missing a required value (id, product name, category 1, article)")
	}
	return row, nil
}
