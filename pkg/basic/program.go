package basic

import (
	"strings"
	"unicode"
)

// Statement is one executable unit of the flattened program.
type Statement struct {
	PC          int
	Line        int    // 1-based source line number
	Source      string // full original source line
	Text        string // logical statement text
	Keyword     string // normalized leading keyword ("IF", "END IF", "LINE INPUT", ...)
	Args        string // statement text after the keyword
	SingleLineIf bool  // IF ... THEN with inline actions, kept indivisible
}

// Program is the flattened statement sequence plus the label table.
type Program struct {
	Statements []Statement
	Labels     map[string]int
	// DuplicateLabels lists labels that were defined more than once;
	// the first definition won.
	DuplicateLabels []string
}

// statementKeywords are the words that can open a statement. Used to tell a
// line-leading label from a statement, nothing more; the dispatcher has its
// own handler registry.
var statementKeywords = map[string]bool{
	"LET": true, "PRINT": true, "INPUT": true, "LINE": true, "IF": true,
	"ELSEIF": true, "ELSE": true, "END": true, "ENDIF": true, "SELECT": true,
	"CASE": true, "FOR": true, "NEXT": true, "DO": true, "LOOP": true,
	"WHILE": true, "WEND": true, "EXIT": true, "GOTO": true, "GOSUB": true,
	"RETURN": true, "ON": true, "RESUME": true, "ERROR": true, "STOP": true,
	"REM": true, "DATA": true, "READ": true, "RESTORE": true, "DIM": true,
	"REDIM": true, "CONST": true, "COMMON": true, "TYPE": true, "DEF": true,
	"DECLARE": true, "SUB": true, "FUNCTION": true, "CALL": true,
	"RANDOMIZE": true, "SWAP": true, "CLS": true, "LOCATE": true,
	"COLOR": true, "SLEEP": true, "BEEP": true, "SOUND": true, "PSET": true,
	"RECT": true, "CIRCLE": true, "PAINT": true, "OPEN": true, "CLOSE": true,
	"RUN": true, "CHAIN": true, "KEY": true, "STICK": true, "STRIG": true,
	"PEN": true, "CLEAR": true,
}

// BuildProgram flattens decoded source lines into the executable statement
// sequence and resolves labels. Single-line IF...THEN statements are never
// split on the statement separator.
func BuildProgram(lines []string) *Program {
	prog := &Program{Labels: make(map[string]int)}

	addLabel := func(name string) {
		name = strings.ToUpper(name)
		if _, exists := prog.Labels[name]; exists {
			prog.DuplicateLabels = append(prog.DuplicateLabels, name)
			return
		}
		prog.Labels[name] = len(prog.Statements)
	}

	for lineIdx, raw := range lines {
		lineNo := lineIdx + 1
		text := strings.TrimRight(raw, " \t\r")
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			continue
		}

		// Leading line number doubles as a numeric label.
		if n := leadingNumber(trimmed); n != "" {
			addLabel(n)
			trimmed = strings.TrimSpace(trimmed[len(n):])
			if trimmed == "" {
				continue
			}
		}

		// Textual label: IDENT: as the first token, where IDENT is not a
		// statement keyword.
		if name, rest, ok := leadingLabel(trimmed); ok {
			addLabel(name)
			trimmed = strings.TrimSpace(rest)
			if trimmed == "" {
				continue
			}
		}

		for _, part := range splitStatements(trimmed) {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			for _, st := range normalizeStatement(part) {
				st.PC = len(prog.Statements)
				st.Line = lineNo
				st.Source = raw
				prog.Statements = append(prog.Statements, st)
			}
		}
	}
	return prog
}

// leadingNumber returns the digits a line starts with, if any.
func leadingNumber(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return ""
	}
	// A number immediately followed by an identifier char is not a line number.
	if i < len(s) && (isIdentChar(rune(s[i])) || s[i] == '.') {
		return ""
	}
	return s[:i]
}

// leadingLabel recognizes "NAME:" at the start of a line.
func leadingLabel(s string) (name, rest string, ok bool) {
	if len(s) == 0 || !unicode.IsLetter(rune(s[0])) {
		return "", "", false
	}
	i := 1
	for i < len(s) && (isIdentChar(rune(s[i])) || s[i] == '.') {
		i++
	}
	if i >= len(s) || s[i] != ':' {
		return "", "", false
	}
	word := strings.ToUpper(s[:i])
	if statementKeywords[word] {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}

func isIdentChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// splitStatements splits a line on ':' outside string literals. A single-line
// IF consumes the rest of the line so every action after THEN stays
// conditional on the one evaluation; REM and ' comments consume the rest too.
func splitStatements(line string) []string {
	var parts []string
	start := 0
	inString := false
	i := 0
	for i < len(line) {
		c := line[i]
		switch {
		case c == '"':
			inString = !inString
		case !inString && c == '\'':
			// Comment to end of line; keep it attached to nothing.
			seg := strings.TrimSpace(line[start:i])
			if seg != "" {
				parts = append(parts, seg)
			}
			return parts
		case !inString && c == ':':
			seg := strings.TrimSpace(line[start:i])
			if seg != "" {
				if isSingleLineIf(strings.TrimSpace(line[start:])) {
					parts = append(parts, strings.TrimSpace(line[start:]))
					return parts
				}
				upper := strings.ToUpper(seg)
				if strings.HasPrefix(upper, "REM") && (len(upper) == 3 || upper[3] == ' ') {
					parts = append(parts, strings.TrimSpace(line[start:]))
					return parts
				}
				parts = append(parts, seg)
			}
			start = i + 1
		}
		i++
	}
	if seg := strings.TrimSpace(line[start:]); seg != "" {
		parts = append(parts, seg)
	}
	return parts
}

// isSingleLineIf reports whether a statement is an IF with inline actions
// after THEN (as opposed to a block IF whose THEN ends the line).
func isSingleLineIf(s string) bool {
	upper := strings.ToUpper(s)
	if !strings.HasPrefix(upper, "IF") || (len(upper) > 2 && isIdentChar(rune(upper[2]))) {
		return false
	}
	thenPos := findKeywordOutsideStrings(upper, "THEN")
	if thenPos < 0 {
		return false
	}
	tail := strings.TrimSpace(s[thenPos+4:])
	if tail == "" {
		return false
	}
	// "THEN 'comment" still opens a block.
	return !strings.HasPrefix(tail, "'")
}

// findKeywordOutsideStrings locates a keyword as a standalone word outside
// string literals; returns -1 if absent. Input must be uppercased.
func findKeywordOutsideStrings(upper, kw string) int {
	inString := false
	for i := 0; i+len(kw) <= len(upper); i++ {
		if upper[i] == '"' {
			inString = !inString
			continue
		}
		if inString || upper[i:i+len(kw)] != kw {
			continue
		}
		before := i == 0 || !isIdentChar(rune(upper[i-1]))
		afterIdx := i + len(kw)
		after := afterIdx >= len(upper) || !isIdentChar(rune(upper[afterIdx]))
		if before && after {
			return i
		}
	}
	return -1
}

// normalizeStatement computes the keyword/args split for one logical
// statement, expanding multi-variable NEXT into per-variable statements so a
// NEXT always closes exactly one loop (innermost first).
func normalizeStatement(text string) []Statement {
	kw, args := splitKeyword(text)

	if kw == "NEXT" && strings.Contains(args, ",") {
		var out []Statement
		for _, v := range strings.Split(args, ",") {
			out = append(out, Statement{Text: "NEXT " + strings.TrimSpace(v), Keyword: "NEXT", Args: strings.TrimSpace(v)})
		}
		return out
	}

	st := Statement{Text: text, Keyword: kw, Args: args}
	if kw == "IF" {
		st.SingleLineIf = isSingleLineIf(text)
	}
	return []Statement{st}
}

// splitKeyword extracts the normalized leading keyword and remaining text.
func splitKeyword(text string) (string, string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", ""
	}
	if trimmed[0] == '\'' {
		return "REM", strings.TrimSpace(trimmed[1:])
	}

	i := 0
	for i < len(trimmed) && trimmed[i] != ' ' && trimmed[i] != '\t' && trimmed[i] != '(' && trimmed[i] != '=' {
		i++
	}
	first := strings.ToUpper(trimmed[:i])
	rest := strings.TrimSpace(trimmed[i:])

	second := ""
	if j := strings.IndexAny(rest, " \t"); j >= 0 {
		second = strings.ToUpper(rest[:j])
	} else {
		second = strings.ToUpper(rest)
	}

	switch first {
	case "ENDIF":
		return "END IF", ""
	case "END":
		switch second {
		case "IF", "SELECT", "SUB", "FUNCTION", "TYPE", "DEF":
			return "END " + second, strings.TrimSpace(rest[len(second):])
		}
		return "END", rest
	case "EXIT":
		switch second {
		case "FOR", "DO", "SUB", "FUNCTION", "DEF", "WHILE":
			return "EXIT " + second, strings.TrimSpace(rest[len(second):])
		}
		return "EXIT", rest
	case "ON":
		if second == "ERROR" {
			return "ON ERROR", strings.TrimSpace(rest[len(second):])
		}
		return "ON", rest
	case "SELECT":
		if second == "CASE" {
			return "SELECT CASE", strings.TrimSpace(rest[len(second):])
		}
		return "SELECT CASE", rest
	case "LINE":
		if second == "INPUT" {
			return "LINE INPUT", strings.TrimSpace(rest[len(second):])
		}
		return "LINE", rest
	}
	return first, rest
}
