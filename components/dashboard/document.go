package dashboard

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	documentVersionV1 = "1"
	// DocumentVersion exposes the current document format version for tooling.
	DocumentVersion = documentVersionV1
)

// ReadDocument loads a dashboard document from a YAML or JSON file.
func ReadDocument(path string) (*DashboardDocument, error) {
	f, err := os.Open(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("dashboard: open document %s: %w", path, err)
	}
	defer f.Close()
	doc, err := DecodeDocument(f)
	if err != nil {
		return nil, fmt.Errorf("dashboard: decode document %s: %w", path, err)
	}
	return doc, nil
}

// DecodeDocument reads a document from any reader. Unknown fields are rejected.
func DecodeDocument(r io.Reader) (*DashboardDocument, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	var doc DashboardDocument
	if err := decoder.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("dashboard: document is empty")
		}
		return nil, fmt.Errorf("dashboard: parse document: %w", err)
	}
	doc.applyDefaults()
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// EncodeDocument writes the document as YAML.
func EncodeDocument(w io.Writer, doc DashboardDocument) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("dashboard: encode document: %w", err)
	}
	return encoder.Close()
}

// Validate checks the structural invariants a loaded dashboard relies on.
func (doc *DashboardDocument) Validate() error {
	if doc.Version != documentVersionV1 {
		return fmt.Errorf("dashboard: unsupported document version %q", doc.Version)
	}
	var widgets []Widget
	for si, section := range doc.Layout.Sections {
		for ii, item := range section.Items {
			switch item.Widget.Type {
			case WidgetInsight, WidgetKPI, WidgetPlaceholder:
			default:
				return fmt.Errorf("dashboard: item %d of section %d has unknown widget type %q", ii, si, item.Widget.Type)
			}
			if item.Widget.Identity() == "" || item.Widget.Type == WidgetPlaceholder {
				continue
			}
			if isPlaced(widgets, item.Widget) {
				return fmt.Errorf("dashboard: widget %s is placed twice", item.Widget.Identity())
			}
			widgets = append(widgets, item.Widget)
		}
	}

	localIDs := map[string]struct{}{}
	dateFilters := 0
	for idx, item := range doc.FilterContext.Filters {
		switch {
		case item.DateFilter != nil && item.AttributeFilter != nil:
			return fmt.Errorf("dashboard: filter %d sets both a date and an attribute filter", idx)
		case item.DateFilter != nil:
			dateFilters++
		case item.AttributeFilter != nil:
			id := item.AttributeFilter.LocalIdentifier
			if id == "" {
				return fmt.Errorf("dashboard: attribute filter %d is missing localIdentifier", idx)
			}
			if _, exists := localIDs[id]; exists {
				return fmt.Errorf("dashboard: attribute filter %s is declared twice", id)
			}
			localIDs[id] = struct{}{}
		default:
			return fmt.Errorf("dashboard: filter %d is empty", idx)
		}
	}
	if dateFilters > 1 {
		return fmt.Errorf("dashboard: filter context holds %d date filters", dateFilters)
	}
	if len(localIDs) > MaxAttributeFilters {
		return fmt.Errorf("dashboard: filter context holds %d attribute filters, maximum is %d", len(localIDs), MaxAttributeFilters)
	}
	return nil
}

func (doc *DashboardDocument) applyDefaults() {
	if doc.Version == "" {
		doc.Version = documentVersionV1
	}
}
