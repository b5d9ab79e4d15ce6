package basic

import (
	"strconv"
	"strings"
	"time"

	"github.com/antibyte/retrobasic/pkg/shared"
)

const printZoneWidth = 14

// openFile is one OPEN'd stream. Reading loads the whole backing file at
// OPEN; writing accumulates and flushes at CLOSE.
type openFile struct {
	path    string
	mode    string // INPUT, OUTPUT, APPEND
	lines   []string
	readPos int
	buf     strings.Builder
}

// --- PRINT ---

type printItem struct {
	text string
	sep  byte // ';', ',' or 0 at end of list
}

// splitPrintItems cuts a PRINT list on separators outside strings, parens
// and brackets.
func splitPrintItems(s string) []printItem {
	var items []printItem
	depth := 0
	inString := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inString = !inString
		case '(', '[':
			if !inString {
				depth++
			}
		case ')', ']':
			if !inString {
				depth--
			}
		case ';', ',':
			if !inString && depth == 0 {
				items = append(items, printItem{text: strings.TrimSpace(s[start:i]), sep: s[i]})
				start = i + 1
			}
		}
	}
	items = append(items, printItem{text: strings.TrimSpace(s[start:]), sep: 0})
	return items
}

// renderPrintList evaluates a PRINT item list into output text. col is the
// current cursor column, used for comma zones and TAB.
func (ip *Interpreter) renderPrintList(args string, col int) (string, int, bool, error) {
	items := splitPrintItems(args)
	var out strings.Builder
	for _, item := range items {
		if item.text != "" {
			s, padTo, err := ip.renderPrintItem(item.text, col)
			if err != nil {
				return "", col, false, err
			}
			if padTo > col {
				out.WriteString(strings.Repeat(" ", padTo-col))
				col = padTo
			}
			out.WriteString(s)
			col += len(s)
		}
		if item.sep == ',' {
			pad := printZoneWidth - col%printZoneWidth
			out.WriteString(strings.Repeat(" ", pad))
			col += pad
		}
	}
	// A trailing ';' or ',' leaves an empty final item and keeps the cursor
	// on the line.
	last := items[len(items)-1]
	newline := last.text != "" || len(items) == 1
	return out.String(), col, newline, nil
}

// renderPrintItem produces the text of one item. TAB(n) and SPC(n) are
// positional directives, everything else is an expression.
func (ip *Interpreter) renderPrintItem(text string, col int) (string, int, error) {
	upper := strings.ToUpper(text)
	if strings.HasPrefix(upper, "TAB(") && strings.HasSuffix(text, ")") {
		n, err := ip.evalNumber(text[4 : len(text)-1])
		if err != nil {
			return "", 0, err
		}
		return "", int(roundHalfEven(n)) - 1, nil
	}
	if strings.HasPrefix(upper, "SPC(") && strings.HasSuffix(text, ")") {
		n, err := ip.evalNumber(text[4 : len(text)-1])
		if err != nil {
			return "", 0, err
		}
		count := int(roundHalfEven(n))
		if count < 0 {
			count = 0
		}
		return strings.Repeat(" ", count), 0, nil
	}
	v, err := ip.evalExpr(text)
	if err != nil {
		return "", 0, err
	}
	return v.Format(), 0, nil
}

func (ip *Interpreter) cmdPrint(st *Statement) error {
	args := strings.TrimSpace(st.Args)
	if strings.HasPrefix(args, "#") {
		return ip.printToFile(args)
	}
	text, col, newline, err := ip.renderPrintList(args, ip.printCol)
	if err != nil {
		return err
	}
	if newline {
		ip.sendMessage(shared.Message{Type: shared.MessageTypeText, Content: text})
		ip.printCol = 0
		ip.printPending = false
		return nil
	}
	ip.sendMessage(shared.Message{Type: shared.MessageTypeText, Content: text, NoNewline: true})
	ip.printCol = col
	ip.printPending = true
	return nil
}

// flushPrint terminates a line left open by a trailing PRINT separator.
func (ip *Interpreter) flushPrint() {
	if ip.printPending {
		ip.sendMessage(shared.Message{Type: shared.MessageTypeText, Content: ""})
		ip.printPending = false
		ip.printCol = 0
	}
}

// --- INPUT / LINE INPUT ---

// splitInputArgs separates an optional leading prompt literal from the
// target list. A ';' after the prompt appends the "? " marker, a ',' does
// not.
func (ip *Interpreter) splitInputArgs(args string) (prompt string, targets string) {
	args = strings.TrimSpace(args)
	prompt = "? "
	if !strings.HasPrefix(args, `"`) {
		return prompt, args
	}
	end := 1
	for end < len(args) && args[end] != '"' {
		end++
	}
	literal := args[1:end]
	rest := strings.TrimSpace(args[end+1:])
	switch {
	case strings.HasPrefix(rest, ";"):
		return literal + "? ", strings.TrimSpace(rest[1:])
	case strings.HasPrefix(rest, ","):
		return literal, strings.TrimSpace(rest[1:])
	}
	return literal, rest
}

func (ip *Interpreter) cmdInput(st *Statement) error {
	args := strings.TrimSpace(st.Args)
	if strings.HasPrefix(args, "#") {
		return ip.inputFromFile(args, false)
	}
	prompt, targets := ip.splitInputArgs(args)
	if targets == "" {
		return NewBasicErrorf(FaultStructural, ErrCodeSyntax, "INPUT without variables")
	}
	ip.flushPrint()
	ip.sendMessage(shared.Message{Type: shared.MessageTypePrompt, Content: prompt})
	ip.pendingInput = &inputRequest{vars: splitTopLevelCommas(targets)}
	return nil
}

func (ip *Interpreter) cmdLineInput(st *Statement) error {
	args := strings.TrimSpace(st.Args)
	if strings.HasPrefix(args, "#") {
		return ip.inputFromFile(args, true)
	}
	prompt, targets := ip.splitInputArgs(args)
	if prompt == "? " {
		prompt = ""
	}
	if targets == "" {
		return NewBasicErrorf(FaultStructural, ErrCodeSyntax, "LINE INPUT without variable")
	}
	ip.flushPrint()
	ip.sendMessage(shared.Message{Type: shared.MessageTypePrompt, Content: prompt})
	ip.pendingInput = &inputRequest{vars: []string{targets}, lineMode: true}
	return nil
}

// ProvideInput satisfies a pending INPUT/LINE INPUT with one line from the
// host. The engine resumes on the next RunBatch.
func (ip *Interpreter) ProvideInput(line string) error {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	req := ip.pendingInput
	if req == nil {
		return ErrInputNotExpected
	}
	ip.pendingInput = nil
	ip.state = StateRunning

	if req.lineMode {
		return ip.assignInputValue(req.vars[0], line, true)
	}
	fields := splitDataItems(line)
	for i, target := range req.vars {
		field := ""
		if i < len(fields) {
			field = strings.TrimSpace(fields[i])
		}
		if err := ip.assignInputValue(target, field, false); err != nil {
			return err
		}
	}
	return nil
}

// assignInputValue converts one input field to the target's kind: numeric
// targets parse the text, unparseable text reads as 0.
func (ip *Interpreter) assignInputValue(target, field string, raw bool) error {
	node, err := ip.comp.compile(target)
	if err != nil {
		return err
	}
	name := node.name
	if !raw && kindForName(ip.comp.canonicalName(name)) != KindString {
		n, perr := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if perr != nil {
			n = 0
		}
		return ip.assignNode(node, NumberValue(n))
	}
	field = strings.TrimSpace(field)
	if !raw && strings.HasPrefix(field, `"`) && strings.HasSuffix(field, `"`) && len(field) >= 2 {
		field = field[1 : len(field)-1]
	}
	if raw {
		field = strings.TrimRight(field, "\r\n")
	}
	return ip.assignNode(node, StringValue(field))
}

// --- File statements ---

func (ip *Interpreter) cmdOpen(st *Statement) error {
	if ip.fs == nil {
		return NewBasicErrorf(FaultResource, ErrCodeDeviceIO, "no filesystem available")
	}
	upper := strings.ToUpper(st.Args)
	forPos := findKeywordOutsideStrings(upper, "FOR")
	asPos := findKeywordOutsideStrings(upper, "AS")
	if forPos < 0 || asPos < forPos {
		return NewBasicErrorf(FaultStructural, ErrCodeSyntax, "expected OPEN file FOR mode AS #n")
	}
	path, err := ip.evalString(st.Args[:forPos])
	if err != nil {
		return err
	}
	mode := strings.ToUpper(strings.TrimSpace(st.Args[forPos+3 : asPos]))
	num, err := ip.parseFileNumber(st.Args[asPos+2:])
	if err != nil {
		return err
	}
	if _, open := ip.openFiles[num]; open {
		return NewBasicError(FaultResource, ErrCodeFileAlreadyOpen)
	}

	f := &openFile{path: path, mode: mode}
	switch mode {
	case "INPUT":
		content, rerr := ip.fs.ReadFile(path, ip.sessionID)
		if rerr != nil {
			return NewBasicErrorf(FaultResource, ErrCodeFileNotFound, "cannot open %s", path)
		}
		f.lines = splitFileLines(content)
	case "OUTPUT":
	case "APPEND":
		if ip.fs.Exists(path, ip.sessionID) {
			content, rerr := ip.fs.ReadFile(path, ip.sessionID)
			if rerr != nil {
				return NewBasicErrorf(FaultResource, ErrCodeDeviceIO, "cannot open %s", path)
			}
			f.buf.WriteString(content)
			if len(content) > 0 && !strings.HasSuffix(content, "\n") {
				f.buf.WriteByte('\n')
			}
		}
	default:
		return NewBasicError(FaultStructural, ErrCodeBadFileMode)
	}
	ip.openFiles[num] = f
	return nil
}

func splitFileLines(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.TrimSuffix(content, "\n")
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}

func (ip *Interpreter) parseFileNumber(s string) (int, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "#")
	n, err := ip.evalNumber(s)
	if err != nil {
		return 0, err
	}
	num := int(roundHalfEven(n))
	if num < 1 || num > 255 {
		return 0, NewBasicError(FaultResource, ErrCodeBadFileNumber)
	}
	return num, nil
}

func (ip *Interpreter) cmdClose(st *Statement) error {
	args := strings.TrimSpace(st.Args)
	if args == "" {
		for num := range ip.openFiles {
			if err := ip.closeFile(num); err != nil {
				return err
			}
		}
		return nil
	}
	for _, part := range splitTopLevelCommas(args) {
		num, err := ip.parseFileNumber(part)
		if err != nil {
			return err
		}
		if err := ip.closeFile(num); err != nil {
			return err
		}
	}
	return nil
}

func (ip *Interpreter) closeFile(num int) error {
	f, ok := ip.openFiles[num]
	if !ok {
		return NewBasicError(FaultResource, ErrCodeBadFileNumber)
	}
	delete(ip.openFiles, num)
	if f.mode == "OUTPUT" || f.mode == "APPEND" {
		if err := ip.fs.WriteFile(f.path, f.buf.String(), ip.sessionID); err != nil {
			return NewBasicErrorf(FaultResource, ErrCodeDeviceIO, "cannot write %s", f.path)
		}
	}
	return nil
}

// printToFile handles PRINT #n, items.
func (ip *Interpreter) printToFile(args string) error {
	comma := strings.IndexByte(args, ',')
	if comma < 0 {
		comma = len(args)
	}
	num, err := ip.parseFileNumber(args[:comma])
	if err != nil {
		return err
	}
	f, ok := ip.openFiles[num]
	if !ok {
		return NewBasicError(FaultResource, ErrCodeBadFileNumber)
	}
	if f.mode == "INPUT" {
		return NewBasicError(FaultResource, ErrCodeBadFileMode)
	}
	list := ""
	if comma < len(args) {
		list = args[comma+1:]
	}
	text, _, newline, err := ip.renderPrintList(list, 0)
	if err != nil {
		return err
	}
	f.buf.WriteString(text)
	if newline {
		f.buf.WriteByte('\n')
	}
	return nil
}

// inputFromFile handles INPUT #n and LINE INPUT #n.
func (ip *Interpreter) inputFromFile(args string, lineMode bool) error {
	comma := strings.IndexByte(args, ',')
	if comma < 0 {
		return NewBasicErrorf(FaultStructural, ErrCodeSyntax, "expected INPUT #n, variables")
	}
	num, err := ip.parseFileNumber(args[:comma])
	if err != nil {
		return err
	}
	f, ok := ip.openFiles[num]
	if !ok {
		return NewBasicError(FaultResource, ErrCodeBadFileNumber)
	}
	if f.mode != "INPUT" {
		return NewBasicError(FaultResource, ErrCodeBadFileMode)
	}

	targets := splitTopLevelCommas(args[comma+1:])
	if lineMode {
		if f.readPos >= len(f.lines) {
			return NewBasicError(FaultResource, ErrCodeInputPastEnd)
		}
		line := f.lines[f.readPos]
		f.readPos++
		return ip.assignInputValue(targets[0], line, true)
	}
	for _, target := range targets {
		if f.readPos >= len(f.lines) {
			return NewBasicError(FaultResource, ErrCodeInputPastEnd)
		}
		// Comma-separated fields inside one line are consumed before the
		// next line is read.
		line := f.lines[f.readPos]
		fields := splitDataItems(line)
		field := strings.TrimSpace(fields[0])
		if len(fields) > 1 {
			f.lines[f.readPos] = strings.TrimSpace(strings.Join(fields[1:], ","))
		} else {
			f.readPos++
		}
		if err := ip.assignInputValue(target, field, false); err != nil {
			return err
		}
	}
	return nil
}

// fileAtEOF backs the EOF(n) builtin.
func (ip *Interpreter) fileAtEOF(num int) (bool, error) {
	f, ok := ip.openFiles[num]
	if !ok {
		return false, NewBasicError(FaultResource, ErrCodeBadFileNumber)
	}
	if f.mode != "INPUT" {
		return false, NewBasicError(FaultResource, ErrCodeBadFileMode)
	}
	return f.readPos >= len(f.lines), nil
}

// cmdSleep suspends the run without blocking the host: the deadline is
// surfaced as a wait state.
func (ip *Interpreter) cmdSleep(st *Statement) error {
	seconds := 1.0
	if strings.TrimSpace(st.Args) != "" {
		n, err := ip.evalNumber(st.Args)
		if err != nil {
			return err
		}
		seconds = n
	}
	if seconds <= 0 {
		return nil
	}
	ip.flushPrint()
	ip.sleepUntil = time.Now().Add(time.Duration(seconds * float64(time.Second)))
	return nil
}
