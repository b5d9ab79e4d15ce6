package basic

import (
	"regexp"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// The expression compiler turns raw BASIC expression text into a compiled,
// repeatedly-evaluable form in two cached steps: a textual rewrite that
// normalizes dialect syntax, then a parse of the rewritten text. Three
// bounded LRU caches back the pipeline and are cleared wholesale on program
// reload so no stale compiled form survives RUN/CHAIN.
type exprCompiler struct {
	ip *Interpreter

	rewriteCache *lru.Cache[string, string]    // raw text -> rewritten text
	compileCache *lru.Cache[string, *exprNode] // rewritten text -> compiled form
	nameCache    *lru.Cache[string, string]    // raw identifier -> canonical name
}

// Placeholder markers for extracted string literals. Control characters
// cannot appear in source text, so they never collide.
const (
	literalOpen  = '\x01'
	literalClose = '\x02'
)

// Keyword forms that read like variables but are callable: the bare
// random-number generator, last-key-pressed, elapsed timer, date/time and
// the last-error accessors.
var bareCallKeywords = []string{"RND", "INKEY$", "TIMER", "DATE$", "TIME$", "ERR", "ERL"}

var (
	inlineFnPattern  = regexp.MustCompile(`\bFN\s+([A-Z][A-Z0-9.]*[$%!#&]?)`)
	hexPattern       = regexp.MustCompile(`&H[0-9A-F]+`)
	octPattern       = regexp.MustCompile(`&O[0-7]+`)
	binPattern       = regexp.MustCompile(`&B[01]+`)
	numSuffixPattern = regexp.MustCompile(`\b(\d+(?:\.\d+)?(?:E[+-]?\d+)?)[%!#&]`)
	fieldDotPattern  = regexp.MustCompile(`\]\s*\.\s*`)
)

func newExprCompiler(ip *Interpreter, rewriteSize, compileSize, nameSize int) *exprCompiler {
	rewriteCache, _ := lru.New[string, string](max(rewriteSize, 16))
	compileCache, _ := lru.New[string, *exprNode](max(compileSize, 16))
	nameCache, _ := lru.New[string, string](max(nameSize, 16))
	return &exprCompiler{
		ip:           ip,
		rewriteCache: rewriteCache,
		compileCache: compileCache,
		nameCache:    nameCache,
	}
}

// clear drops all cached rewrites and compiled forms. Must be called on
// program reload.
func (c *exprCompiler) clear() {
	c.rewriteCache.Purge()
	c.compileCache.Purge()
	c.nameCache.Purge()
}

// canonicalName folds an identifier into its canonical store key:
// uppercase, type suffix kept as part of the name.
func (c *exprCompiler) canonicalName(raw string) string {
	if canon, ok := c.nameCache.Get(raw); ok {
		return canon
	}
	canon := strings.ToUpper(strings.TrimSpace(raw))
	c.nameCache.Add(raw, canon)
	return canon
}

// foldKey uppercases everything outside string literals so cache keys are
// case-insensitive on identifiers but exact on literal text.
func foldKey(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	inString := false
	for _, r := range raw {
		if r == '"' {
			inString = !inString
		}
		if inString {
			b.WriteRune(r)
		} else {
			b.WriteRune(toUpperRune(r))
		}
	}
	return b.String()
}

func toUpperRune(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - ('a' - 'A')
	}
	return r
}

// rewrite runs the full pipeline. The stage order is load-bearing: string
// literals come out first and go back last, operator and literal rewrites
// run on literal-free text, and identifier canonicalization runs after the
// call/array disambiguation so bracket adjacency is already decided.
func (c *exprCompiler) rewrite(raw string) (string, error) {
	key := foldKey(raw)
	if rewritten, ok := c.rewriteCache.Get(key); ok {
		return rewritten, nil
	}

	// Stage 1: extract string literals to placeholders.
	text, literals, err := extractStringLiterals(raw)
	if err != nil {
		return "", err
	}
	text = strings.ToUpper(text)

	// Stage 2: parameterless keyword forms become calls.
	for _, kw := range bareCallKeywords {
		text = rewriteBareKeyword(text, kw)
	}

	// Stage 3: user-defined inline function calls: "FN name(" -> "FNNAME(".
	text = inlineFnPattern.ReplaceAllString(text, "FN$1")

	// Stage 4: NAME(args) is a call when NAME is a known function, an array
	// element otherwise; array parens become brackets.
	text, err = c.disambiguateCalls(text)
	if err != nil {
		return "", err
	}

	// Stage 5: operator spellings.
	text = strings.ReplaceAll(text, "><", "<>")
	text = strings.ReplaceAll(text, "=>", ">=")
	text = strings.ReplaceAll(text, "=<", "<=")

	// Stage 6: radix-prefixed literals and numeric type suffixes.
	text = rewriteRadixLiterals(text)
	text = numSuffixPattern.ReplaceAllString(text, "$1")

	// Stage 7: field access only exists directly after an array index;
	// collapse whitespace there so the decision is purely adjacency.
	text = fieldDotPattern.ReplaceAllString(text, "].")

	// Stage 8: canonicalize remaining identifiers.
	text = c.canonicalizeIdentifiers(text)

	// Stage 9: restore string literals.
	text = restoreStringLiterals(text, literals)

	c.rewriteCache.Add(key, text)
	return text, nil
}

// compile returns the evaluable form of a raw expression, using both caches.
func (c *exprCompiler) compile(raw string) (*exprNode, error) {
	rewritten, err := c.rewrite(raw)
	if err != nil {
		return nil, err
	}
	if node, ok := c.compileCache.Get(rewritten); ok {
		return node, nil
	}
	node, err := parseExpression(rewritten)
	if err != nil {
		return nil, err
	}
	c.compileCache.Add(rewritten, node)
	return node, nil
}

func extractStringLiterals(s string) (string, []string, error) {
	var out strings.Builder
	var literals []string
	i := 0
	for i < len(s) {
		if s[i] != '"' {
			out.WriteByte(s[i])
			i++
			continue
		}
		j := i + 1
		var lit strings.Builder
		closed := false
		for j < len(s) {
			if s[j] == '"' {
				if j+1 < len(s) && s[j+1] == '"' {
					lit.WriteByte('"')
					j += 2
					continue
				}
				closed = true
				j++
				break
			}
			lit.WriteByte(s[j])
			j++
		}
		if !closed {
			return "", nil, NewBasicErrorf(FaultEvaluation, ErrCodeSyntax, "unterminated string literal")
		}
		out.WriteByte(literalOpen)
		out.WriteString(strconv.Itoa(len(literals)))
		out.WriteByte(literalClose)
		literals = append(literals, lit.String())
		i = j
	}
	return out.String(), literals, nil
}

func restoreStringLiterals(s string, literals []string) string {
	var out strings.Builder
	i := 0
	for i < len(s) {
		if s[i] != literalOpen {
			out.WriteByte(s[i])
			i++
			continue
		}
		j := i + 1
		for j < len(s) && s[j] != literalClose {
			j++
		}
		idx, _ := strconv.Atoi(s[i+1 : j])
		out.WriteByte('"')
		out.WriteString(strings.ReplaceAll(literals[idx], `"`, `""`))
		out.WriteByte('"')
		i = j + 1
	}
	return out.String()
}

// rewriteBareKeyword appends call parens to standalone occurrences of a
// keyword that are not already followed by an argument list.
func rewriteBareKeyword(text, kw string) string {
	var out strings.Builder
	i := 0
	for i < len(text) {
		if !strings.HasPrefix(text[i:], kw) {
			out.WriteByte(text[i])
			i++
			continue
		}
		beforeOK := i == 0 || !isNameByte(text[i-1])
		end := i + len(kw)
		afterOK := end >= len(text) || (!isNameByte(text[end]) && text[end] != '$' && text[end] != '(')
		// Keywords ending in $ already consumed their suffix.
		if end < len(text) && text[end] == '(' {
			afterOK = false
		}
		if beforeOK && afterOK {
			out.WriteString(kw)
			out.WriteString("()")
			i = end
			continue
		}
		out.WriteByte(text[i])
		i++
	}
	return out.String()
}

func isNameByte(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '.' || c == '_'
}

func isNameSuffix(c byte) bool {
	return c == '$' || c == '%' || c == '!' || c == '#' || c == '&'
}

// Operator and clause keywords: a paren after one of these is grouping,
// never a call or array access.
var reservedWords = map[string]bool{
	"AND": true, "OR": true, "NOT": true, "XOR": true, "MOD": true,
	"THEN": true, "TO": true, "STEP": true, "IS": true,
}

// disambiguateCalls decides NAME(...) between function call and array access
// by consulting the live function registry, converting array parens to
// bracket form. Grouping parens pass through untouched.
func (c *exprCompiler) disambiguateCalls(text string) (string, error) {
	var out []byte
	// For every open paren: the closer byte it must be closed with.
	var closers []byte

	i := 0
	for i < len(text) {
		ch := text[i]
		switch {
		case ch >= 'A' && ch <= 'Z':
			start := i
			for i < len(text) && isNameByte(text[i]) {
				i++
			}
			if i < len(text) && isNameSuffix(text[i]) {
				i++
			}
			name := text[start:i]
			if reservedWords[name] {
				out = append(out, name...)
				continue
			}
			j := i
			for j < len(text) && (text[j] == ' ' || text[j] == '\t') {
				j++
			}
			if j < len(text) && text[j] == '(' {
				out = append(out, name...)
				if c.ip.isCallableName(name) {
					out = append(out, '(')
					closers = append(closers, ')')
				} else {
					out = append(out, '[')
					closers = append(closers, ']')
				}
				i = j + 1
				continue
			}
			out = append(out, name...)
		case ch == '(':
			out = append(out, '(')
			closers = append(closers, ')')
			i++
		case ch == ')':
			if len(closers) == 0 {
				return "", NewBasicErrorf(FaultEvaluation, ErrCodeSyntax, "unbalanced parentheses")
			}
			out = append(out, closers[len(closers)-1])
			closers = closers[:len(closers)-1]
			i++
		default:
			out = append(out, ch)
			i++
		}
	}
	if len(closers) != 0 {
		return "", NewBasicErrorf(FaultEvaluation, ErrCodeSyntax, "missing closing parenthesis")
	}
	return string(out), nil
}

func rewriteRadixLiterals(text string) string {
	replace := func(pattern *regexp.Regexp, base int) {
		text = pattern.ReplaceAllStringFunc(text, func(m string) string {
			n, err := strconv.ParseInt(m[2:], base, 64)
			if err != nil {
				return m
			}
			return strconv.FormatInt(n, 10)
		})
	}
	replace(hexPattern, 16)
	replace(octPattern, 8)
	replace(binPattern, 2)
	return text
}

// canonicalizeIdentifiers runs every identifier through the canonical-name
// cache. The text is already uppercased; this keeps the cache hot for the
// same names the statement side looks up.
func (c *exprCompiler) canonicalizeIdentifiers(text string) string {
	var out strings.Builder
	out.Grow(len(text))
	i := 0
	for i < len(text) {
		ch := text[i]
		if ch >= 'A' && ch <= 'Z' {
			start := i
			for i < len(text) && isNameByte(text[i]) {
				i++
			}
			if i < len(text) && isNameSuffix(text[i]) {
				i++
			}
			out.WriteString(c.canonicalName(text[start:i]))
			continue
		}
		out.WriteByte(ch)
		i++
	}
	return out.String()
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
