package plan

import (
	"fmt"
	"strconv"
)

type parser struct {
	tokens []token
	pos    int
}

func parseDocument(src string) (*astDocument, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: toks}

	doc := &astDocument{fragments: map[string]*astFragment{}}
	for !p.atEOF() {
		switch {
		case p.isName("fragment"):
			frag, err := p.parseFragment()
			if err != nil {
				return nil, err
			}
			doc.fragments[frag.name] = frag
		case p.isName("query") || p.isName("mutation") || p.isName("subscription"):
			op, err := p.parseOperation()
			if err != nil {
				return nil, err
			}
			doc.operations = append(doc.operations, op)
		case p.isPunct("{"):
			// shorthand query with no operation keyword
			sel, err := p.parseSelectionSet()
			if err != nil {
				return nil, err
			}
			doc.operations = append(doc.operations, &astOperation{kind: OperationQuery, selectionSet: sel})
		default:
			return nil, fmt.Errorf("plan: unexpected token %q at document root", p.cur().text)
		}
	}
	return doc, nil
}

func (p *parser) cur() token  { return p.tokens[p.pos] }
func (p *parser) atEOF() bool { return p.cur().kind == tokEOF }

func (p *parser) isName(text string) bool {
	return p.cur().kind == tokName && p.cur().text == text
}

func (p *parser) isPunct(text string) bool {
	return p.cur().kind == tokPunct && p.cur().text == text
}

func (p *parser) expectPunct(text string) error {
	if !p.isPunct(text) {
		return fmt.Errorf("plan: expected %q, got %q at %d", text, p.cur().text, p.cur().pos)
	}
	p.pos++
	return nil
}

func (p *parser) expectName() (string, error) {
	if p.cur().kind != tokName {
		return "", fmt.Errorf("plan: expected name, got %q at %d", p.cur().text, p.cur().pos)
	}
	text := p.cur().text
	p.pos++
	return text, nil
}

func (p *parser) parseOperation() (*astOperation, error) {
	kindText, _ := p.expectName()
	op := &astOperation{kind: OperationKind(kindText)}

	if p.cur().kind == tokName {
		op.name, _ = p.expectName()
	}

	if p.isPunct("(") {
		defs, err := p.parseVariableDefs()
		if err != nil {
			return nil, err
		}
		op.variableDefs = defs
	}

	// operation-level directives are ignored by the compiler; consume them.
	for p.isPunct("@") {
		if _, err := p.parseDirective(); err != nil {
			return nil, err
		}
	}

	sel, err := p.parseSelectionSet()
	if err != nil {
		return nil, err
	}
	op.selectionSet = sel
	return op, nil
}

func (p *parser) parseFragment() (*astFragment, error) {
	if _, err := p.expectName(); err != nil { // "fragment"
		return nil, err
	}
	name, err := p.expectName()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectName(); err != nil { // "on"
		return nil, err
	}
	typeCond, err := p.expectName()
	if err != nil {
		return nil, err
	}
	for p.isPunct("@") {
		if _, err := p.parseDirective(); err != nil {
			return nil, err
		}
	}
	sel, err := p.parseSelectionSet()
	if err != nil {
		return nil, err
	}
	return &astFragment{name: name, typeCondition: typeCond, selectionSet: sel}, nil
}

func (p *parser) parseVariableDefs() ([]astVariableDef, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var defs []astVariableDef
	for !p.isPunct(")") {
		if err := p.expectPunct("$"); err != nil {
			return nil, err
		}
		name, err := p.expectName()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		if err := p.parseType(); err != nil {
			return nil, err
		}
		def := astVariableDef{name: name}
		if p.isPunct("=") {
			p.pos++
			v, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			def.defaultValue = v
			def.hasDefault = true
		}
		defs = append(defs, def)
	}
	return defs, p.expectPunct(")")
}

// parseType consumes a (possibly list/non-null) type reference; the
// compiler does not type-check against a schema (spec §1 Non-goals), so
// the shape is discarded.
func (p *parser) parseType() error {
	if p.isPunct("[") {
		p.pos++
		if err := p.parseType(); err != nil {
			return err
		}
		if err := p.expectPunct("]"); err != nil {
			return err
		}
	} else {
		if _, err := p.expectName(); err != nil {
			return err
		}
	}
	if p.isPunct("!") {
		p.pos++
	}
	return nil
}

func (p *parser) parseSelectionSet() ([]astSelection, error) {
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var sels []astSelection
	for !p.isPunct("}") {
		sel, err := p.parseSelection()
		if err != nil {
			return nil, err
		}
		sels = append(sels, sel)
	}
	return sels, p.expectPunct("}")
}

func (p *parser) parseSelection() (astSelection, error) {
	if p.cur().kind == tokSpread {
		p.pos++
		if p.isName("on") {
			p.pos++
			typeCond, err := p.expectName()
			if err != nil {
				return nil, err
			}
			dirs, err := p.parseDirectives()
			if err != nil {
				return nil, err
			}
			sel, err := p.parseSelectionSet()
			if err != nil {
				return nil, err
			}
			return astInlineFragment{typeCondition: typeCond, directives: dirs, selectionSet: sel}, nil
		}
		if p.isPunct("@") || p.isPunct("{") {
			dirs, err := p.parseDirectives()
			if err != nil {
				return nil, err
			}
			sel, err := p.parseSelectionSet()
			if err != nil {
				return nil, err
			}
			return astInlineFragment{directives: dirs, selectionSet: sel}, nil
		}
		name, err := p.expectName()
		if err != nil {
			return nil, err
		}
		dirs, err := p.parseDirectives()
		if err != nil {
			return nil, err
		}
		return astFragmentSpread{name: name, directives: dirs}, nil
	}

	return p.parseField()
}

func (p *parser) parseField() (astField, error) {
	first, err := p.expectName()
	if err != nil {
		return astField{}, err
	}
	field := astField{name: first, alias: first}

	if p.isPunct(":") {
		p.pos++
		name, err := p.expectName()
		if err != nil {
			return astField{}, err
		}
		field.name = name
	}

	if p.isPunct("(") {
		args, err := p.parseArguments()
		if err != nil {
			return astField{}, err
		}
		field.arguments = args
	}

	dirs, err := p.parseDirectives()
	if err != nil {
		return astField{}, err
	}
	field.directives = dirs

	if p.isPunct("{") {
		sel, err := p.parseSelectionSet()
		if err != nil {
			return astField{}, err
		}
		field.selectionSet = sel
	}

	return field, nil
}

func (p *parser) parseDirectives() ([]astDirective, error) {
	var dirs []astDirective
	for p.isPunct("@") {
		dir, err := p.parseDirective()
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, dir)
	}
	return dirs, nil
}

func (p *parser) parseDirective() (astDirective, error) {
	if err := p.expectPunct("@"); err != nil {
		return astDirective{}, err
	}
	name, err := p.expectName()
	if err != nil {
		return astDirective{}, err
	}
	dir := astDirective{name: name}
	if p.isPunct("(") {
		args, err := p.parseArguments()
		if err != nil {
			return astDirective{}, err
		}
		dir.arguments = args
	}
	return dir, nil
}

func (p *parser) parseArguments() ([]astArgument, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var args []astArgument
	for !p.isPunct(")") {
		name, err := p.expectName()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		args = append(args, astArgument{name: name, value: v})
	}
	return args, p.expectPunct(")")
}

func (p *parser) parseValue() (astValue, error) {
	tok := p.cur()
	switch {
	case p.isPunct("$"):
		p.pos++
		name, err := p.expectName()
		if err != nil {
			return nil, err
		}
		return astVariable{name: name}, nil
	case tok.kind == tokInt:
		p.pos++
		n, _ := strconv.ParseInt(tok.text, 10, 64)
		return astIntValue{value: n}, nil
	case tok.kind == tokFloat:
		p.pos++
		f, _ := strconv.ParseFloat(tok.text, 64)
		return astFloatValue{value: f}, nil
	case tok.kind == tokString:
		p.pos++
		return astStringValue{value: tok.text}, nil
	case p.isName("true"):
		p.pos++
		return astBoolValue{value: true}, nil
	case p.isName("false"):
		p.pos++
		return astBoolValue{value: false}, nil
	case p.isName("null"):
		p.pos++
		return astNullValue{}, nil
	case tok.kind == tokName:
		p.pos++
		return astEnumValue{value: tok.text}, nil
	case p.isPunct("["):
		p.pos++
		var values []astValue
		for !p.isPunct("]") {
			v, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		p.pos++
		return astListValue{values: values}, nil
	case p.isPunct("{"):
		p.pos++
		var fields []astArgument
		for !p.isPunct("}") {
			name, err := p.expectName()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(":"); err != nil {
				return nil, err
			}
			v, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			fields = append(fields, astArgument{name: name, value: v})
		}
		p.pos++
		return astObjectValue{fields: fields}, nil
	default:
		return nil, fmt.Errorf("plan: unexpected value token %q at %d", tok.text, tok.pos)
	}
}
