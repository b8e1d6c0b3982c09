package semantics

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	xsdInteger = "http://www.w3.org/2001/XMLSchema#integer"
	xsdDecimal = "http://www.w3.org/2001/XMLSchema#decimal"
	xsdBoolean = "http://www.w3.org/2001/XMLSchema#boolean"
	rdfType    = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
)

// Parse parses RDF text (N-Triples plus the Turtle subset the upstream
// extractor emits: prefix directives, prefixed names, object and
// predicate lists) into statements.
func Parse(text string) ([]Statement, error) {
	p := &rdfParser{
		input:    text,
		prefixes: make(map[string]string),
	}
	return p.parse()
}

type rdfParser struct {
	input    string
	pos      int
	line     int
	prefixes map[string]string
}

func (p *rdfParser) parse() ([]Statement, error) {
	var statements []Statement
	p.line = 1

	for {
		p.skipWhitespace()
		if p.eof() {
			return statements, nil
		}

		if p.peekDirective() {
			if err := p.parseDirective(); err != nil {
				return nil, err
			}
			continue
		}

		block, err := p.parseTriplesBlock()
		if err != nil {
			return nil, err
		}
		statements = append(statements, block...)
	}
}

// parseTriplesBlock parses one subject with its predicate-object lists,
// terminated by '.'.
func (p *rdfParser) parseTriplesBlock() ([]Statement, error) {
	subject, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	if subject.Kind == TermLiteral {
		return nil, p.errorf("literal cannot be a subject")
	}

	var statements []Statement
	for {
		p.skipWhitespace()

		predicate, err := p.parsePredicate()
		if err != nil {
			return nil, err
		}

		for {
			p.skipWhitespace()
			object, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			statements = append(statements, Statement{
				Subject:   subject,
				Predicate: predicate,
				Object:    object,
			})

			p.skipWhitespace()
			if !p.consume(',') {
				break
			}
		}

		if p.consume(';') {
			p.skipWhitespace()
			// A trailing ';' before the terminating '.' is legal.
			if !p.eof() && p.peek() == '.' {
				p.advance()
				return statements, nil
			}
			continue
		}
		if p.consume('.') {
			return statements, nil
		}
		return nil, p.errorf("expected '.', ';' or ',' after object")
	}
}

func (p *rdfParser) parsePredicate() (Term, error) {
	// The 'a' keyword abbreviates rdf:type.
	if p.peekWordIs("a") {
		p.pos++
		return IRI(rdfType), nil
	}

	term, err := p.parseTerm()
	if err != nil {
		return Term{}, err
	}
	if term.Kind != TermIRI {
		return Term{}, p.errorf("predicate must be an IRI")
	}
	return term, nil
}

func (p *rdfParser) parseTerm() (Term, error) {
	p.skipWhitespace()
	if p.eof() {
		return Term{}, p.errorf("unexpected end of input")
	}

	switch c := p.peek(); {
	case c == '<':
		return p.parseIRIRef()
	case c == '"':
		return p.parseLiteral()
	case strings.HasPrefix(p.input[p.pos:], "_:"):
		return p.parseBlankNode()
	case c == '+' || c == '-' || (c >= '0' && c <= '9'):
		return p.parseNumber()
	case p.peekWordIs("true") || p.peekWordIs("false"):
		word := p.readWord()
		return Term{Kind: TermLiteral, Value: word, Datatype: xsdBoolean}, nil
	default:
		return p.parsePrefixedName()
	}
}

func (p *rdfParser) parseIRIRef() (Term, error) {
	p.advance() // consume '<'
	start := p.pos
	for !p.eof() {
		c := p.peek()
		if c == '>' {
			iri := p.input[start:p.pos]
			p.advance()
			return IRI(iri), nil
		}
		if c == '\n' || c == ' ' {
			return Term{}, p.errorf("invalid character in IRI")
		}
		p.advance()
	}
	return Term{}, p.errorf("unterminated IRI")
}

func (p *rdfParser) parseLiteral() (Term, error) {
	p.advance() // consume '"'
	var sb strings.Builder
	for {
		if p.eof() {
			return Term{}, p.errorf("unterminated literal")
		}
		c := p.peek()
		if c == '"' {
			p.advance()
			break
		}
		if c == '\\' {
			p.advance()
			unescaped, err := p.readEscape()
			if err != nil {
				return Term{}, err
			}
			sb.WriteRune(unescaped)
			continue
		}
		if c == '\n' {
			return Term{}, p.errorf("newline in literal")
		}
		sb.WriteByte(c)
		p.advance()
	}

	term := Term{Kind: TermLiteral, Value: sb.String()}

	// Optional datatype or language tag.
	if strings.HasPrefix(p.input[p.pos:], "^^") {
		p.pos += 2
		dt, err := p.parseTerm()
		if err != nil {
			return Term{}, err
		}
		if dt.Kind != TermIRI {
			return Term{}, p.errorf("datatype must be an IRI")
		}
		term.Datatype = dt.Value
	} else if !p.eof() && p.peek() == '@' {
		p.advance()
		term.Language = p.readWord()
		if term.Language == "" {
			return Term{}, p.errorf("empty language tag")
		}
	}

	return term, nil
}

func (p *rdfParser) readEscape() (rune, error) {
	if p.eof() {
		return 0, p.errorf("unterminated escape")
	}
	c := p.peek()
	p.advance()
	switch c {
	case 't':
		return '\t', nil
	case 'n':
		return '\n', nil
	case 'r':
		return '\r', nil
	case '"':
		return '"', nil
	case '\\':
		return '\\', nil
	case 'u', 'U':
		width := 4
		if c == 'U' {
			width = 8
		}
		if p.pos+width > len(p.input) {
			return 0, p.errorf("truncated unicode escape")
		}
		code, err := strconv.ParseUint(p.input[p.pos:p.pos+width], 16, 32)
		if err != nil {
			return 0, p.errorf("invalid unicode escape")
		}
		p.pos += width
		return rune(code), nil
	default:
		return 0, p.errorf("invalid escape \\%c", c)
	}
}

func (p *rdfParser) parseBlankNode() (Term, error) {
	p.pos += 2 // consume "_:"
	label := p.readWord()
	if label == "" {
		return Term{}, p.errorf("empty blank node label")
	}
	return Term{Kind: TermBlank, Value: label}, nil
}

func (p *rdfParser) parseNumber() (Term, error) {
	start := p.pos
	if c := p.peek(); c == '+' || c == '-' {
		p.advance()
	}
	decimal := false
	for !p.eof() {
		c := p.peek()
		if c >= '0' && c <= '9' {
			p.advance()
			continue
		}
		if c == '.' && !decimal {
			// A '.' followed by a digit continues the number; otherwise
			// it terminates the statement.
			if p.pos+1 < len(p.input) && p.input[p.pos+1] >= '0' && p.input[p.pos+1] <= '9' {
				decimal = true
				p.advance()
				continue
			}
		}
		break
	}
	value := p.input[start:p.pos]
	if value == "" || value == "+" || value == "-" {
		return Term{}, p.errorf("invalid number")
	}
	datatype := xsdInteger
	if decimal {
		datatype = xsdDecimal
	}
	return Term{Kind: TermLiteral, Value: value, Datatype: datatype}, nil
}

func (p *rdfParser) parsePrefixedName() (Term, error) {
	start := p.pos
	for !p.eof() {
		c := p.peek()
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == ';' || c == ',' || c == '<' || c == '"' {
			break
		}
		if c == '.' {
			// '.' terminates a statement unless it is inside the local part.
			next := byte(0)
			if p.pos+1 < len(p.input) {
				next = p.input[p.pos+1]
			}
			if next == 0 || next == ' ' || next == '\t' || next == '\n' || next == '\r' {
				break
			}
		}
		p.advance()
	}

	name := p.input[start:p.pos]
	colon := strings.Index(name, ":")
	if colon < 0 {
		return Term{}, p.errorf("expected term, got %q", name)
	}

	prefix, local := name[:colon], name[colon+1:]
	base, ok := p.prefixes[prefix]
	if !ok {
		return Term{}, p.errorf("unknown prefix %q", prefix)
	}
	return IRI(base + local), nil
}

func (p *rdfParser) peekDirective() bool {
	rest := p.input[p.pos:]
	return strings.HasPrefix(rest, "@prefix") || strings.HasPrefix(rest, "@base") ||
		hasPrefixFold(rest, "PREFIX") || hasPrefixFold(rest, "BASE")
}

func (p *rdfParser) parseDirective() error {
	rest := p.input[p.pos:]
	sparqlForm := !strings.HasPrefix(rest, "@")

	isBase := false
	switch {
	case strings.HasPrefix(rest, "@prefix"):
		p.pos += len("@prefix")
	case strings.HasPrefix(rest, "@base"):
		p.pos += len("@base")
		isBase = true
	case hasPrefixFold(rest, "PREFIX"):
		p.pos += len("PREFIX")
	case hasPrefixFold(rest, "BASE"):
		p.pos += len("BASE")
		isBase = true
	}

	p.skipWhitespace()

	prefix := ""
	if !isBase {
		start := p.pos
		for !p.eof() && p.peek() != ':' {
			p.advance()
		}
		if p.eof() {
			return p.errorf("malformed prefix directive")
		}
		prefix = strings.TrimSpace(p.input[start:p.pos])
		p.advance() // consume ':'
		p.skipWhitespace()
	}

	iri, err := p.parseIRIRef()
	if err != nil {
		return err
	}

	if isBase {
		p.prefixes[""] = iri.Value
	} else {
		p.prefixes[prefix] = iri.Value
	}

	p.skipWhitespace()
	if !sparqlForm && !p.consume('.') {
		return p.errorf("expected '.' after directive")
	}
	return nil
}

func (p *rdfParser) skipWhitespace() {
	for !p.eof() {
		c := p.peek()
		switch c {
		case ' ', '\t', '\r':
			p.advance()
		case '\n':
			p.line++
			p.advance()
		case '#':
			for !p.eof() && p.peek() != '\n' {
				p.advance()
			}
		default:
			return
		}
	}
}

func (p *rdfParser) readWord() string {
	start := p.pos
	for !p.eof() {
		c := p.peek()
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-' || c == '_' {
			p.advance()
			continue
		}
		break
	}
	return p.input[start:p.pos]
}

func (p *rdfParser) peekWordIs(word string) bool {
	if !strings.HasPrefix(p.input[p.pos:], word) {
		return false
	}
	after := p.pos + len(word)
	if after >= len(p.input) {
		return true
	}
	c := p.input[after]
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '<' || c == '"' || c == '.'
}

func (p *rdfParser) peek() byte {
	return p.input[p.pos]
}

func (p *rdfParser) advance() {
	p.pos++
}

func (p *rdfParser) consume(c byte) bool {
	if !p.eof() && p.peek() == c {
		p.advance()
		return true
	}
	return false
}

func (p *rdfParser) eof() bool {
	return p.pos >= len(p.input)
}

func (p *rdfParser) errorf(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%w: line %d: %s", ErrParse, p.line, msg)
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
