package basic

import (
	"strconv"
	"strings"
)

// Token types for the compiled-expression parser.
type tokenType int

const (
	tokenEOF tokenType = iota
	tokenNumber
	tokenString
	tokenIdent
	tokenPlus
	tokenMinus
	tokenMultiply
	tokenDivide
	tokenIntDivide // backslash, truncating toward zero
	tokenPower
	tokenMod
	tokenLParen
	tokenRParen
	tokenLBracket
	tokenRBracket
	tokenDot
	tokenComma
	tokenEQ
	tokenNE
	tokenLT
	tokenLE
	tokenGT
	tokenGE
	tokenAnd
	tokenOr
	tokenXor
	tokenNot
)

type exprToken struct {
	typ    tokenType
	text   string
	numVal float64
}

// exprLexer tokenizes rewritten expression text.
type exprLexer struct {
	input string
	pos   int
	char  byte
}

func newExprLexer(input string) *exprLexer {
	l := &exprLexer{input: input}
	l.readChar()
	return l
}

func (l *exprLexer) readChar() {
	if l.pos >= len(l.input) {
		l.char = 0
	} else {
		l.char = l.input[l.pos]
	}
	l.pos++
}

func (l *exprLexer) peekChar() byte {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *exprLexer) skipWhitespace() {
	for l.char == ' ' || l.char == '\t' {
		l.readChar()
	}
}

func (l *exprLexer) readString() string {
	var sb strings.Builder
	l.readChar() // opening quote
	for l.char != 0 {
		if l.char == '"' {
			if l.peekChar() == '"' {
				sb.WriteByte('"')
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar()
			break
		}
		sb.WriteByte(l.char)
		l.readChar()
	}
	return sb.String()
}

func (l *exprLexer) readNumber() (string, float64) {
	start := l.pos - 1
	for isDigitByte(l.char) {
		l.readChar()
	}
	if l.char == '.' && isDigitByte(l.peekChar()) {
		l.readChar()
		for isDigitByte(l.char) {
			l.readChar()
		}
	}
	if l.char == 'E' && (isDigitByte(l.peekChar()) || l.peekChar() == '+' || l.peekChar() == '-') {
		l.readChar()
		if l.char == '+' || l.char == '-' {
			l.readChar()
		}
		for isDigitByte(l.char) {
			l.readChar()
		}
	}
	text := l.input[start : l.pos-1]
	n, _ := strconv.ParseFloat(text, 64)
	return text, n
}

func (l *exprLexer) readIdentifier() string {
	start := l.pos - 1
	for isLetterByte(l.char) || isDigitByte(l.char) || l.char == '.' || l.char == '_' {
		l.readChar()
	}
	if isNameSuffix(l.char) {
		l.readChar()
	}
	return l.input[start : l.pos-1]
}

func isDigitByte(c byte) bool  { return c >= '0' && c <= '9' }
func isLetterByte(c byte) bool { return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' }

func (l *exprLexer) nextToken() exprToken {
	l.skipWhitespace()
	switch l.char {
	case 0:
		return exprToken{typ: tokenEOF}
	case '+':
		l.readChar()
		return exprToken{typ: tokenPlus, text: "+"}
	case '-':
		l.readChar()
		return exprToken{typ: tokenMinus, text: "-"}
	case '*':
		l.readChar()
		return exprToken{typ: tokenMultiply, text: "*"}
	case '/':
		l.readChar()
		return exprToken{typ: tokenDivide, text: "/"}
	case '\\':
		l.readChar()
		return exprToken{typ: tokenIntDivide, text: "\\"}
	case '^':
		l.readChar()
		return exprToken{typ: tokenPower, text: "^"}
	case '(':
		l.readChar()
		return exprToken{typ: tokenLParen, text: "("}
	case ')':
		l.readChar()
		return exprToken{typ: tokenRParen, text: ")"}
	case '[':
		l.readChar()
		return exprToken{typ: tokenLBracket, text: "["}
	case ']':
		l.readChar()
		return exprToken{typ: tokenRBracket, text: "]"}
	case ',':
		l.readChar()
		return exprToken{typ: tokenComma, text: ","}
	case '.':
		if isDigitByte(l.peekChar()) {
			_, n := l.readNumber()
			return exprToken{typ: tokenNumber, numVal: n}
		}
		l.readChar()
		return exprToken{typ: tokenDot, text: "."}
	case '=':
		l.readChar()
		return exprToken{typ: tokenEQ, text: "="}
	case '<':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return exprToken{typ: tokenLE, text: "<="}
		}
		if l.peekChar() == '>' {
			l.readChar()
			l.readChar()
			return exprToken{typ: tokenNE, text: "<>"}
		}
		l.readChar()
		return exprToken{typ: tokenLT, text: "<"}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return exprToken{typ: tokenGE, text: ">="}
		}
		l.readChar()
		return exprToken{typ: tokenGT, text: ">"}
	case '"':
		s := l.readString()
		return exprToken{typ: tokenString, text: s}
	}

	if isDigitByte(l.char) {
		text, n := l.readNumber()
		return exprToken{typ: tokenNumber, text: text, numVal: n}
	}
	if isLetterByte(l.char) {
		ident := l.readIdentifier()
		switch ident {
		case "MOD":
			return exprToken{typ: tokenMod, text: ident}
		case "AND":
			return exprToken{typ: tokenAnd, text: ident}
		case "OR":
			return exprToken{typ: tokenOr, text: ident}
		case "XOR":
			return exprToken{typ: tokenXor, text: ident}
		case "NOT":
			return exprToken{typ: tokenNot, text: ident}
		}
		return exprToken{typ: tokenIdent, text: ident}
	}

	// Unknown byte: skip it.
	l.readChar()
	return l.nextToken()
}

// Node kinds of the compiled expression form.
type nodeKind int

const (
	nodeNumber nodeKind = iota
	nodeString
	nodeVar
	nodeCall  // name(args)
	nodeIndex // name[indices] — array element after rewrite
	nodeField // left.name — record field, only valid after an index
	nodeBinary
	nodeUnary
)

// exprNode is the compiled, repeatedly-evaluable expression form. Nodes are
// immutable after parsing so cached forms are safe to share.
type exprNode struct {
	kind  nodeKind
	num   float64
	str   string
	name  string
	op    tokenType
	left  *exprNode
	right *exprNode
	args  []*exprNode
}

type exprParser struct {
	lexer   *exprLexer
	current exprToken
	peek    exprToken
}

// parseExpression compiles rewritten expression text into its node form.
func parseExpression(text string) (*exprNode, error) {
	p := &exprParser{lexer: newExprLexer(text)}
	p.advance()
	p.advance()
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.current.typ != tokenEOF {
		return nil, NewBasicErrorf(FaultEvaluation, ErrCodeSyntax, "unexpected %q in expression", p.current.text)
	}
	return node, nil
}

func (p *exprParser) advance() {
	p.current = p.peek
	p.peek = p.lexer.nextToken()
}

func (p *exprParser) expect(typ tokenType, what string) error {
	if p.current.typ != typ {
		return NewBasicErrorf(FaultEvaluation, ErrCodeSyntax, "expected %s", what)
	}
	p.advance()
	return nil
}

func (p *exprParser) parseOr() (*exprNode, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.current.typ == tokenOr || p.current.typ == tokenXor {
		op := p.current.typ
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &exprNode{kind: nodeBinary, op: op, left: left, right: right}
	}
	return left, nil
}

func (p *exprParser) parseAnd() (*exprNode, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.current.typ == tokenAnd {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &exprNode{kind: nodeBinary, op: tokenAnd, left: left, right: right}
	}
	return left, nil
}

func (p *exprParser) parseNot() (*exprNode, error) {
	if p.current.typ == tokenNot {
		p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &exprNode{kind: nodeUnary, op: tokenNot, left: operand}, nil
	}
	return p.parseComparison()
}

func (p *exprParser) parseComparison() (*exprNode, error) {
	left, err := p.parseAddSub()
	if err != nil {
		return nil, err
	}
	for {
		switch p.current.typ {
		case tokenEQ, tokenNE, tokenLT, tokenLE, tokenGT, tokenGE:
			op := p.current.typ
			p.advance()
			right, err := p.parseAddSub()
			if err != nil {
				return nil, err
			}
			left = &exprNode{kind: nodeBinary, op: op, left: left, right: right}
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseAddSub() (*exprNode, error) {
	left, err := p.parseMod()
	if err != nil {
		return nil, err
	}
	for p.current.typ == tokenPlus || p.current.typ == tokenMinus {
		op := p.current.typ
		p.advance()
		right, err := p.parseMod()
		if err != nil {
			return nil, err
		}
		left = &exprNode{kind: nodeBinary, op: op, left: left, right: right}
	}
	return left, nil
}

func (p *exprParser) parseMod() (*exprNode, error) {
	left, err := p.parseIntDiv()
	if err != nil {
		return nil, err
	}
	for p.current.typ == tokenMod {
		p.advance()
		right, err := p.parseIntDiv()
		if err != nil {
			return nil, err
		}
		left = &exprNode{kind: nodeBinary, op: tokenMod, left: left, right: right}
	}
	return left, nil
}

func (p *exprParser) parseIntDiv() (*exprNode, error) {
	left, err := p.parseMulDiv()
	if err != nil {
		return nil, err
	}
	for p.current.typ == tokenIntDivide {
		p.advance()
		right, err := p.parseMulDiv()
		if err != nil {
			return nil, err
		}
		left = &exprNode{kind: nodeBinary, op: tokenIntDivide, left: left, right: right}
	}
	return left, nil
}

func (p *exprParser) parseMulDiv() (*exprNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.current.typ == tokenMultiply || p.current.typ == tokenDivide {
		op := p.current.typ
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &exprNode{kind: nodeBinary, op: op, left: left, right: right}
	}
	return left, nil
}

func (p *exprParser) parseUnary() (*exprNode, error) {
	switch p.current.typ {
	case tokenMinus:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &exprNode{kind: nodeUnary, op: tokenMinus, left: operand}, nil
	case tokenPlus:
		p.advance()
		return p.parseUnary()
	}
	return p.parsePower()
}

func (p *exprParser) parsePower() (*exprNode, error) {
	left, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	if p.current.typ == tokenPower {
		p.advance()
		// Right-associative; unary minus on the right binds looser.
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &exprNode{kind: nodeBinary, op: tokenPower, left: left, right: right}, nil
	}
	return left, nil
}

func (p *exprParser) parsePostfix() (*exprNode, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.current.typ {
		case tokenLBracket:
			if node.kind != nodeVar {
				return nil, NewBasicErrorf(FaultEvaluation, ErrCodeSyntax, "subscript on non-variable")
			}
			p.advance()
			args, err := p.parseArgs(tokenRBracket)
			if err != nil {
				return nil, err
			}
			node = &exprNode{kind: nodeIndex, name: node.name, args: args}
		case tokenDot:
			p.advance()
			if p.current.typ != tokenIdent {
				return nil, NewBasicErrorf(FaultEvaluation, ErrCodeSyntax, "expected field name")
			}
			node = &exprNode{kind: nodeField, name: p.current.text, left: node}
			p.advance()
		default:
			return node, nil
		}
	}
}

func (p *exprParser) parsePrimary() (*exprNode, error) {
	switch p.current.typ {
	case tokenNumber:
		n := &exprNode{kind: nodeNumber, num: p.current.numVal}
		p.advance()
		return n, nil
	case tokenString:
		n := &exprNode{kind: nodeString, str: p.current.text}
		p.advance()
		return n, nil
	case tokenIdent:
		name := p.current.text
		p.advance()
		if p.current.typ == tokenLParen {
			p.advance()
			args, err := p.parseArgs(tokenRParen)
			if err != nil {
				return nil, err
			}
			return &exprNode{kind: nodeCall, name: name, args: args}, nil
		}
		return &exprNode{kind: nodeVar, name: name}, nil
	case tokenLParen:
		p.advance()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokenRParen, "closing parenthesis"); err != nil {
			return nil, err
		}
		return inner, nil
	}
	return nil, NewBasicErrorf(FaultEvaluation, ErrCodeSyntax, "unexpected token in expression")
}

func (p *exprParser) parseArgs(closer tokenType) ([]*exprNode, error) {
	var args []*exprNode
	if p.current.typ == closer {
		p.advance()
		return args, nil
	}
	for {
		arg, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.current.typ == tokenComma {
			p.advance()
			continue
		}
		break
	}
	switch closer {
	case tokenRParen:
		return args, p.expect(tokenRParen, "closing parenthesis")
	default:
		return args, p.expect(tokenRBracket, "closing bracket")
	}
}
