package semantics

import (
	"fmt"
	"sort"
	"strings"
)

// FormatTerm serializes a term in N-Triples form.
func FormatTerm(t Term) string {
	switch t.Kind {
	case TermIRI:
		return fmt.Sprintf("<%s>", t.Value)
	case TermBlank:
		return "_:" + t.Value
	default:
		lit := fmt.Sprintf("\"%s\"", escapeString(t.Value))
		if t.Datatype != "" {
			return fmt.Sprintf("%s^^<%s>", lit, t.Datatype)
		}
		if t.Language != "" {
			return fmt.Sprintf("%s@%s", lit, t.Language)
		}
		return lit
	}
}

// NTriplesWriter writes statements in N-Triples format.
type NTriplesWriter struct {
	sb strings.Builder
}

// NewNTriplesWriter creates a new N-Triples writer.
func NewNTriplesWriter() *NTriplesWriter {
	return &NTriplesWriter{}
}

// WriteStatement writes a single statement.
func (w *NTriplesWriter) WriteStatement(s Statement) {
	w.sb.WriteString(fmt.Sprintf("%s %s %s .\n",
		FormatTerm(s.Subject), FormatTerm(s.Predicate), FormatTerm(s.Object)))
}

// String returns the accumulated N-Triples output.
func (w *NTriplesWriter) String() string {
	return w.sb.String()
}

// SerializeNTriples renders statements as N-Triples text.
func SerializeNTriples(statements []Statement) string {
	w := NewNTriplesWriter()
	for _, s := range statements {
		w.WriteStatement(s)
	}
	return w.String()
}

// TriGWriter writes named graphs in TriG format, used for
// nanopublication assembly.
type TriGWriter struct {
	prefixes map[string]string
	sb       strings.Builder
}

// NewTriGWriter creates a new TriG writer.
func NewTriGWriter() *TriGWriter {
	return &TriGWriter{
		prefixes: make(map[string]string),
	}
}

// SetPrefix sets a namespace prefix.
func (w *TriGWriter) SetPrefix(prefix, iri string) {
	w.prefixes[prefix] = iri
}

// WritePrefixes writes prefix declarations.
func (w *TriGWriter) WritePrefixes() {
	// Sort prefixes for consistent output
	keys := make([]string, 0, len(w.prefixes))
	for k := range w.prefixes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, prefix := range keys {
		w.sb.WriteString(fmt.Sprintf("@prefix %s: <%s> .\n", prefix, w.prefixes[prefix]))
	}
	w.sb.WriteString("\n")
}

// WriteGraph writes one named graph with its statements. The graph
// name may be a prefixed name or a full IRI in angle brackets.
func (w *TriGWriter) WriteGraph(name string, statements []Statement) {
	w.sb.WriteString(fmt.Sprintf("%s {\n", w.compact(name)))
	for _, s := range statements {
		predicate := w.compactTerm(s.Predicate)
		if s.Predicate.Kind == TermIRI && s.Predicate.Value == rdfType {
			predicate = "a"
		}
		w.sb.WriteString(fmt.Sprintf("    %s %s %s .\n",
			w.compactTerm(s.Subject), predicate, w.compactTerm(s.Object)))
	}
	w.sb.WriteString("}\n\n")
}

// String returns the accumulated TriG output.
func (w *TriGWriter) String() string {
	return strings.TrimSuffix(w.sb.String(), "\n")
}

// compactTerm renders a term, shortening IRIs against the declared
// prefixes where possible.
func (w *TriGWriter) compactTerm(t Term) string {
	if t.Kind == TermIRI {
		return w.compact(t.Value)
	}
	return FormatTerm(t)
}

func (w *TriGWriter) compact(iri string) string {
	if strings.HasPrefix(iri, "<") {
		return iri
	}
	var bestPrefix, bestBase string
	for prefix, base := range w.prefixes {
		if strings.HasPrefix(iri, base) && len(base) > len(bestBase) {
			local := iri[len(base):]
			if isPNLocal(local) {
				bestPrefix, bestBase = prefix, base
			}
		}
	}
	if bestBase != "" {
		return bestPrefix + ":" + iri[len(bestBase):]
	}
	return fmt.Sprintf("<%s>", iri)
}

// isPNLocal reports whether a local part can appear in a prefixed name
// without escaping.
func isPNLocal(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
			r == '-' || r == '_' || r == '.' {
			continue
		}
		return false
	}
	return true
}

// escapeString escapes special characters in strings for RDF serialization.
func escapeString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return s
}

// ReplaceNodes rewrites IRI subjects and objects according to the given
// replacement map. A mapping also applies as a prefix rewrite so
// fragment identifiers on a placeholder IRI survive.
func ReplaceNodes(statements []Statement, replacements map[string]string) []Statement {
	out := make([]Statement, len(statements))
	for i, s := range statements {
		s.Subject = replaceTerm(s.Subject, replacements)
		s.Object = replaceTerm(s.Object, replacements)
		out[i] = s
	}
	return out
}

func replaceTerm(t Term, replacements map[string]string) Term {
	if t.Kind != TermIRI {
		return t
	}
	if replacement, ok := replacements[t.Value]; ok {
		t.Value = replacement
		return t
	}
	for from, to := range replacements {
		if strings.HasPrefix(t.Value, from) {
			t.Value = to + t.Value[len(from):]
			return t
		}
	}
	return t
}
