package tinyjs

import (
	"strconv"
	"strings"
)

// json.go implements the subset of JSON.stringify/JSON.parse spec §6.1
// lists as embedding-API surface: plain data graphs (object/array/
// string/number/boolean/null), no replacer/reviver callbacks (an
// explicit simplification -- those are argument-validation-wrapper
// territory spec.md's Non-goals exclude).

func jsonStringify(ctx *Context, v Value) (string, error) {
	var b strings.Builder
	if err := jsonStringifyInto(ctx, &b, v); err != nil {
		return "", err
	}
	return b.String(), nil
}

func jsonStringifyInto(ctx *Context, b *strings.Builder, v Value) error {
	switch v.Kind() {
	case KindUndefined:
		b.WriteString("null")
	case KindNull:
		b.WriteString("null")
	case KindBoolean:
		if v.AsBool() {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case KindNumber:
		b.WriteString(formatNumber(v.AsNumber()))
	case KindString:
		b.WriteString(strconv.Quote(ctx.stringContent(v.ref_())))
	case KindObject:
		o := ctx.heap.Decode(v.ref_()).(*jsObject)
		if o.kind == objectKindArray {
			b.WriteByte('[')
			n := ctx.arrayLength(o)
			for i := uint32(0); i < n; i++ {
				if i > 0 {
					b.WriteByte(',')
				}
				el, _ := ctx.arrayGetIndex(o, i)
				if err := jsonStringifyInto(ctx, b, el); err != nil {
					return err
				}
			}
			b.WriteByte(']')
			return nil
		}
		b.WriteByte('{')
		first := true
		for _, k := range ctx.ordinaryEnumerableKeys(o) {
			if k.kind == propKeySymbol {
				continue
			}
			val, err := ctx.Get(v, k)
			if err != nil {
				return err
			}
			if val.IsUndefined() {
				continue
			}
			if !first {
				b.WriteByte(',')
			}
			first = false
			keyStr := ""
			if k.kind == propKeyIndex {
				keyStr = formatNumber(float64(k.index))
			} else {
				keyStr = ctx.stringContent(k.str)
			}
			b.WriteString(strconv.Quote(keyStr))
			b.WriteByte(':')
			if err := jsonStringifyInto(ctx, b, val); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	default:
		b.WriteString("null")
	}
	return nil
}

// jsonParse is a small hand-rolled recursive-descent reader; the
// grammar is fixed and tiny enough that reaching for a third-party
// JSON library would only add an import for something stdlib-shaped
// logic already covers compactly (a stdlib-only choice).
func jsonParse(ctx *Context, s string) (Value, error) {
	p := &jsonParser{ctx: ctx, src: s}
	p.skipWS()
	v, err := p.parseValue()
	if err != nil {
		return Value{}, ctx.ThrowSyntaxError(err.Error())
	}
	return v, nil
}

type jsonParser struct {
	ctx *Context
	src string
	pos int
}

func (p *jsonParser) skipWS() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *jsonParser) parseValue() (Value, error) {
	p.skipWS()
	if p.pos >= len(p.src) {
		return Value{}, jsonErr("unexpected end of JSON input")
	}
	switch c := p.src[p.pos]; {
	case c == '{':
		return p.parseObject()
	case c == '[':
		return p.parseArray()
	case c == '"':
		s, err := p.parseStringLiteral()
		if err != nil {
			return Value{}, err
		}
		return stringValue(p.ctx.strings.FindOrCreate(s, isASCII(s))), nil
	case c == 't':
		return p.parseLiteral("true", True)
	case c == 'f':
		return p.parseLiteral("false", False)
	case c == 'n':
		return p.parseLiteral("null", Null)
	default:
		return p.parseNumber()
	}
}

func jsonErr(msg string) error { return &ParseError{Message: msg, Kind: "json"} }

func (p *jsonParser) parseLiteral(lit string, v Value) (Value, error) {
	if p.pos+len(lit) > len(p.src) || p.src[p.pos:p.pos+len(lit)] != lit {
		return Value{}, jsonErr("invalid JSON literal")
	}
	p.pos += len(lit)
	return v, nil
}

func (p *jsonParser) parseNumber() (Value, error) {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.' || c == 'e' || c == 'E' {
			p.pos++
			continue
		}
		break
	}
	if start == p.pos {
		return Value{}, jsonErr("invalid number in JSON")
	}
	n, err := strconv.ParseFloat(p.src[start:p.pos], 64)
	if err != nil {
		return Value{}, jsonErr("invalid number in JSON")
	}
	return Number(n), nil
}

func (p *jsonParser) parseStringLiteral() (string, error) {
	if p.src[p.pos] != '"' {
		return "", jsonErr("expected string")
	}
	p.pos++
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '"' {
			p.pos++
			return b.String(), nil
		}
		if c == '\\' {
			p.pos++
			if p.pos >= len(p.src) {
				break
			}
			switch p.src[p.pos] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '"', '\\', '/':
				b.WriteByte(p.src[p.pos])
			default:
				b.WriteByte(p.src[p.pos])
			}
			p.pos++
			continue
		}
		b.WriteByte(c)
		p.pos++
	}
	return "", jsonErr("unterminated string in JSON")
}

func (p *jsonParser) parseArray() (Value, error) {
	p.pos++ // '['
	result := newArrayValue(p.ctx)
	arr := p.ctx.heap.Decode(result.ref_()).(*jsObject)
	p.skipWS()
	idx := uint32(0)
	if p.pos < len(p.src) && p.src[p.pos] == ']' {
		p.pos++
		return result, nil
	}
	for {
		v, err := p.parseValue()
		if err != nil {
			return Value{}, err
		}
		p.ctx.arraySetIndex(arr, idx, v)
		idx++
		p.skipWS()
		if p.pos >= len(p.src) {
			return Value{}, jsonErr("unterminated array in JSON")
		}
		if p.src[p.pos] == ',' {
			p.pos++
			continue
		}
		if p.src[p.pos] == ']' {
			p.pos++
			return result, nil
		}
		return Value{}, jsonErr("expected ',' or ']' in JSON array")
	}
}

func (p *jsonParser) parseObject() (Value, error) {
	p.pos++ // '{'
	o := newOrdinaryObject(p.ctx.realm.objectPrototype)
	cp := p.ctx.heap.Alloc(heapKindObject, o)
	result := objectValue(cp)
	p.skipWS()
	if p.pos < len(p.src) && p.src[p.pos] == '}' {
		p.pos++
		return result, nil
	}
	for {
		p.skipWS()
		key, err := p.parseStringLiteral()
		if err != nil {
			return Value{}, err
		}
		p.skipWS()
		if p.pos >= len(p.src) || p.src[p.pos] != ':' {
			return Value{}, jsonErr("expected ':' in JSON object")
		}
		p.pos++
		v, err := p.parseValue()
		if err != nil {
			return Value{}, err
		}
		propKey := stringPropKey(p.ctx.strings.FindOrCreate(key, isASCII(key)))
		o.insertProperty(defaultDataProperty(propKey, v))
		p.skipWS()
		if p.pos >= len(p.src) {
			return Value{}, jsonErr("unterminated object in JSON")
		}
		if p.src[p.pos] == ',' {
			p.pos++
			continue
		}
		if p.src[p.pos] == '}' {
			p.pos++
			return result, nil
		}
		return Value{}, jsonErr("expected ',' or '}' in JSON object")
	}
}
