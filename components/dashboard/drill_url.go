package dashboard

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var attributeTitlePlaceholder = regexp.MustCompile(`\{attribute_title\(([^)]+)\)\}`)

// URLContext carries the identifiers available to custom URL placeholders.
type URLContext struct {
	WorkspaceID   string
	ClientID      string
	DataProductID string
	Dashboard     ObjRef
	Widget        ObjRef
	Insight       ObjRef
}

// titleResolver looks up the title of an element under a display form.
type titleResolver interface {
	DisplayForm(ctx context.Context, ref ObjRef) (DisplayForm, error)
	Elements(ctx context.Context, query ElementsQuery) (ElementsPage, error)
}

// ResolveCustomURL substitutes placeholders in a custom drill URL. Attribute
// titles are fetched through attrs and query escaped; unknown attributes
// resolve to an empty value.
func ResolveCustomURL(ctx context.Context, attrs titleResolver, raw string, uc URLContext, intersection []IntersectionElement) (string, error) {
	replacements := map[string]string{
		"{workspace_id}":    uc.WorkspaceID,
		"{project_id}":      uc.WorkspaceID,
		"{client_id}":       uc.ClientID,
		"{data_product_id}": uc.DataProductID,
		"{dashboard_id}":    refID(uc.Dashboard),
		"{widget_id}":       refID(uc.Widget),
		"{insight_id}":      refID(uc.Insight),
	}
	out := raw
	for placeholder, value := range replacements {
		out = strings.ReplaceAll(out, placeholder, url.QueryEscape(value))
	}

	matches := attributeTitlePlaceholder.FindAllStringSubmatch(out, -1)
	if len(matches) == 0 {
		return out, nil
	}
	if attrs == nil {
		return "", errMissingBackend
	}
	resolved := make(map[string]string, len(matches))
	for _, match := range matches {
		placeholder, identifier := match[0], strings.TrimSpace(match[1])
		if _, done := resolved[placeholder]; done {
			continue
		}
		title, err := attributeTitle(ctx, attrs, IdentifierRef(identifier, "displayForm"), intersection)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", placeholder, err)
		}
		resolved[placeholder] = url.QueryEscape(title)
	}
	for placeholder, value := range resolved {
		out = strings.ReplaceAll(out, placeholder, value)
	}
	return out, nil
}

// ResolveAttributeURL loads the URL stored as the element title of the
// hyperlink display form for the drilled attribute value.
func ResolveAttributeURL(ctx context.Context, attrs titleResolver, drill DrillDefinition, intersection []IntersectionElement) (string, error) {
	if attrs == nil {
		return "", errMissingBackend
	}
	df, err := attrs.DisplayForm(ctx, drill.DisplayForm)
	if err != nil {
		return "", err
	}
	_, item, ok := intersectionValueFor(intersection, df.Attribute)
	if !ok {
		_, item, ok = intersectionValueFor(intersection, drill.DisplayForm)
	}
	if !ok {
		return "", NewUserError("drilled intersection does not contain attribute %s", df.Attribute)
	}
	return elementTitle(ctx, attrs, drill.HyperlinkDisplayForm, item.URI)
}

func attributeTitle(ctx context.Context, attrs titleResolver, displayForm ObjRef, intersection []IntersectionElement) (string, error) {
	df, err := attrs.DisplayForm(ctx, displayForm)
	if err != nil {
		return "", err
	}
	header, item, ok := intersectionValueFor(intersection, df.Attribute)
	if !ok {
		return "", nil
	}
	if header.Ref.Equal(df.Ref) || (header.Identifier != "" && header.Identifier == df.Identifier) {
		return item.Name, nil
	}
	return elementTitle(ctx, attrs, df.Ref, item.URI)
}

func elementTitle(ctx context.Context, attrs titleResolver, displayForm ObjRef, elementURI string) (string, error) {
	page, err := attrs.Elements(ctx, ElementsQuery{
		DisplayForm: displayForm,
		URIs:        []string{elementURI},
		Limit:       1,
	})
	if err != nil {
		return "", err
	}
	if len(page.Items) == 0 {
		return "", &BackendError{Kind: BackendNoData, Message: fmt.Sprintf("element %s not found in %s", elementURI, displayForm)}
	}
	return page.Items[0].Title, nil
}

func refID(ref ObjRef) string {
	if ref.Identifier != "" {
		return ref.Identifier
	}
	return ref.URI
}
