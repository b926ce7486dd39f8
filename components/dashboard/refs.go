package dashboard

import "strings"

// ObjRef points at a metadata object either by identifier (+ type) or by URI.
type ObjRef struct {
	Identifier string `json:"identifier,omitempty" yaml:"identifier,omitempty"`
	URI        string `json:"uri,omitempty" yaml:"uri,omitempty"`
	Type       string `json:"type,omitempty" yaml:"type,omitempty"`
}

// IdentifierRef builds an identifier based reference.
func IdentifierRef(identifier, objType string) ObjRef {
	return ObjRef{Identifier: identifier, Type: objType}
}

// URIRef builds a URI based reference.
func URIRef(uri string) ObjRef {
	return ObjRef{URI: uri}
}

// IsZero reports whether the reference points at nothing.
func (r ObjRef) IsZero() bool {
	return r.Identifier == "" && r.URI == ""
}

// Equal compares two refs. URIs win when both sides carry one.
func (r ObjRef) Equal(other ObjRef) bool {
	if r.IsZero() || other.IsZero() {
		return false
	}
	if r.URI != "" && other.URI != "" {
		return r.URI == other.URI
	}
	if r.Identifier == "" || other.Identifier == "" {
		return false
	}
	if r.Type != "" && other.Type != "" && !strings.EqualFold(r.Type, other.Type) {
		return false
	}
	return r.Identifier == other.Identifier
}

// String renders the reference for logs and map keys.
func (r ObjRef) String() string {
	switch {
	case r.URI != "":
		return r.URI
	case r.Identifier == "":
		return ""
	case r.Type != "":
		return r.Type + ":" + r.Identifier
	default:
		return r.Identifier
	}
}

func containsRef(refs []ObjRef, ref ObjRef) bool {
	for _, candidate := range refs {
		if candidate.Equal(ref) {
			return true
		}
	}
	return false
}

func cloneRefs(refs []ObjRef) []ObjRef {
	if refs == nil {
		return nil
	}
	return append([]ObjRef(nil), refs...)
}

func cloneRefPtr(ref *ObjRef) *ObjRef {
	if ref == nil {
		return nil
	}
	out := *ref
	return &out
}
