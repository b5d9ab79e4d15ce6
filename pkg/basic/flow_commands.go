package basic

import (
	"strings"
)

// resolveTarget maps a GOTO/GOSUB target (line number or textual label) to a
// statement index.
func (ip *Interpreter) resolveTarget(raw string) (int, error) {
	name := strings.ToUpper(strings.TrimSpace(raw))
	if pc, ok := ip.prog.Labels[name]; ok {
		return pc, nil
	}
	return 0, NewBasicErrorf(FaultRuntime, ErrCodeLabelNotDefined, "label %s not defined", name)
}

// scanForward returns the index of the closer matching a block opened just
// before from, honoring nesting. Single-line IFs never open a block.
func (ip *Interpreter) scanForward(from int, opener string, closers ...string) (int, error) {
	depth := 1
	for i := from; i < len(ip.prog.Statements); i++ {
		st := &ip.prog.Statements[i]
		if st.Keyword == opener && !(opener == "IF" && st.SingleLineIf) {
			depth++
			continue
		}
		for _, closer := range closers {
			if st.Keyword == closer {
				depth--
				break
			}
		}
		if depth == 0 {
			return i, nil
		}
	}
	return 0, NewBasicErrorf(FaultStructural, ErrCodeSyntax, "%s without matching %s", opener, closers[0])
}

// splitTopLevelCommas splits on commas outside strings, parens and brackets.
func splitTopLevelCommas(s string) []string {
	var parts []string
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
		case ',':
			if !inString && depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	parts = append(parts, strings.TrimSpace(s[start:]))
	return parts
}

// --- IF / ELSEIF / ELSE / END IF ---

// splitIfCondition separates the condition from what follows THEN.
func splitIfCondition(args string) (cond, rest string, err error) {
	upper := strings.ToUpper(args)
	pos := findKeywordOutsideStrings(upper, "THEN")
	if pos < 0 {
		return "", "", NewBasicErrorf(FaultStructural, ErrCodeSyntax, "IF without THEN")
	}
	return strings.TrimSpace(args[:pos]), strings.TrimSpace(args[pos+4:]), nil
}

func (ip *Interpreter) cmdIf(st *Statement) error {
	cond, rest, err := splitIfCondition(st.Args)
	if err != nil {
		return err
	}
	v, err := ip.evalExpr(cond)
	if err != nil {
		return err
	}

	if st.SingleLineIf {
		thenPart, elsePart := splitInlineBranches(rest)
		if v.IsTrue() {
			return ip.execInline(thenPart)
		}
		return ip.execInline(elsePart)
	}

	ip.pushIfLevel(v.IsTrue())
	if !v.IsTrue() {
		ip.ifSkipLevel = ip.ifLevel
	}
	return nil
}

// splitInlineBranches divides a single-line IF tail at its ELSE, which binds
// to this IF (nested single-line IFs keep their own tail intact because the
// scan runs left to right and nested IF text sits after this IF's THEN).
func splitInlineBranches(rest string) (thenPart, elsePart string) {
	upper := strings.ToUpper(rest)
	depth := 0
	inString := false
	for i := 0; i+4 <= len(upper); i++ {
		switch upper[i] {
		case '"':
			inString = !inString
			continue
		case 'I':
			if !inString && strings.HasPrefix(upper[i:], "IF") && wordBoundary(upper, i, 2) {
				depth++
			}
		case 'E':
			if !inString && strings.HasPrefix(upper[i:], "ELSE") && wordBoundary(upper, i, 4) {
				if depth == 0 {
					return strings.TrimSpace(rest[:i]), strings.TrimSpace(rest[i+4:])
				}
				depth--
			}
		}
	}
	return strings.TrimSpace(rest), ""
}

func wordBoundary(upper string, i, n int) bool {
	before := i == 0 || !isIdentChar(rune(upper[i-1]))
	after := i+n >= len(upper) || !isIdentChar(rune(upper[i+n]))
	return before && after
}

// execInline runs the statements of a single-line IF branch within the
// current step; the whole construct is indivisible. A bare line number is a
// GOTO. A jump, wait state or stop abandons the rest of the branch.
func (ip *Interpreter) execInline(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if leadingNumber(text) == text {
		target, err := ip.resolveTarget(text)
		if err != nil {
			return err
		}
		ip.pc = target
		return nil
	}
	for _, part := range splitStatements(text) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		for _, sub := range normalizeStatement(part) {
			pcBefore := ip.pc
			sub.PC = ip.pc - 1
			sub.Line = 0
			if err := ip.dispatch(&sub); err != nil {
				return err
			}
			if ip.pc != pcBefore || ip.pendingInput != nil || !ip.running {
				return nil
			}
		}
	}
	return nil
}

func (ip *Interpreter) cmdElseIf(st *Statement) error {
	// Reached while executing: the taken branch is over, skip to END IF.
	if ip.ifLevel == 0 {
		return NewBasicErrorf(FaultStructural, ErrCodeSyntax, "ELSEIF without IF")
	}
	ip.ifSkipLevel = ip.ifLevel
	return nil
}

func (ip *Interpreter) cmdElse(st *Statement) error {
	if ip.ifLevel == 0 {
		return NewBasicErrorf(FaultStructural, ErrCodeSyntax, "ELSE without IF")
	}
	ip.ifSkipLevel = ip.ifLevel
	return nil
}

func (ip *Interpreter) cmdEndIf(st *Statement) error {
	if ip.ifLevel == 0 {
		return NewBasicErrorf(FaultStructural, ErrCodeSyntax, "END IF without IF")
	}
	ip.ifLevel--
	return nil
}

// --- SELECT CASE ---

func (ip *Interpreter) cmdSelectCase(st *Statement) error {
	v, err := ip.evalExpr(st.Args)
	if err != nil {
		return err
	}
	ip.selectStack = append(ip.selectStack, selectFrame{testValue: v})
	return nil
}

func (ip *Interpreter) cmdCase(st *Statement) error {
	n := len(ip.selectStack)
	if n == 0 || ip.selectStack[n-1].placeholder {
		return NewBasicErrorf(FaultStructural, ErrCodeSyntax, "CASE without SELECT CASE")
	}
	frame := &ip.selectStack[n-1]

	// A CASE reached after a taken arm ends the construct: first match wins.
	if frame.matched {
		end, err := ip.scanForward(ip.pc, "SELECT CASE", "END SELECT")
		if err != nil {
			return err
		}
		ip.pc = end
		return nil
	}

	if strings.EqualFold(strings.TrimSpace(st.Args), "ELSE") {
		frame.matched = true
		return nil
	}
	for _, arm := range splitTopLevelCommas(st.Args) {
		ok, err := ip.matchCaseArm(frame.testValue, arm)
		if err != nil {
			return err
		}
		if ok {
			frame.matched = true
			return nil
		}
	}

	// No arm matched: advance to the next CASE at this nesting depth.
	next, err := ip.scanToNextCase(ip.pc)
	if err != nil {
		return err
	}
	ip.pc = next
	return nil
}

// scanToNextCase finds the next CASE or END SELECT of the innermost open
// SELECT, skipping over nested SELECT blocks whole.
func (ip *Interpreter) scanToNextCase(from int) (int, error) {
	depth := 0
	for i := from; i < len(ip.prog.Statements); i++ {
		switch ip.prog.Statements[i].Keyword {
		case "SELECT CASE":
			depth++
		case "END SELECT":
			if depth == 0 {
				return i, nil
			}
			depth--
		case "CASE":
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, NewBasicErrorf(FaultStructural, ErrCodeSyntax, "SELECT CASE without END SELECT")
}

// matchCaseArm tests one arm: "IS <op> expr", "lo TO hi" or a plain
// expression compared for equality.
func (ip *Interpreter) matchCaseArm(test Value, arm string) (bool, error) {
	arm = strings.TrimSpace(arm)
	upper := strings.ToUpper(arm)

	if strings.HasPrefix(upper, "IS") && (len(upper) == 2 || !isIdentChar(rune(upper[2]))) {
		rest := strings.TrimSpace(arm[2:])
		op, exprText, err := splitComparison(rest)
		if err != nil {
			return false, err
		}
		v, err := ip.evalExpr(exprText)
		if err != nil {
			return false, err
		}
		result, err := compareValues(op, test, v)
		if err != nil {
			return false, err
		}
		return result.IsTrue(), nil
	}

	if pos := findKeywordOutsideStrings(upper, "TO"); pos >= 0 {
		lo, err := ip.evalExpr(arm[:pos])
		if err != nil {
			return false, err
		}
		hi, err := ip.evalExpr(arm[pos+2:])
		if err != nil {
			return false, err
		}
		geLo, err := compareValues(tokenGE, test, lo)
		if err != nil {
			return false, err
		}
		leHi, err := compareValues(tokenLE, test, hi)
		if err != nil {
			return false, err
		}
		return geLo.IsTrue() && leHi.IsTrue(), nil
	}

	v, err := ip.evalExpr(arm)
	if err != nil {
		return false, err
	}
	result, err := compareValues(tokenEQ, test, v)
	if err != nil {
		return false, err
	}
	return result.IsTrue(), nil
}

func splitComparison(s string) (tokenType, string, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "<>"):
		return tokenNE, s[2:], nil
	case strings.HasPrefix(s, "<="):
		return tokenLE, s[2:], nil
	case strings.HasPrefix(s, ">="):
		return tokenGE, s[2:], nil
	case strings.HasPrefix(s, "<"):
		return tokenLT, s[1:], nil
	case strings.HasPrefix(s, ">"):
		return tokenGT, s[1:], nil
	case strings.HasPrefix(s, "="):
		return tokenEQ, s[1:], nil
	}
	return 0, "", NewBasicErrorf(FaultEvaluation, ErrCodeSyntax, "invalid IS comparison")
}

func (ip *Interpreter) cmdEndSelect(st *Statement) error {
	n := len(ip.selectStack)
	if n == 0 {
		return NewBasicErrorf(FaultStructural, ErrCodeSyntax, "END SELECT without SELECT CASE")
	}
	ip.selectStack = ip.selectStack[:n-1]
	return nil
}

// --- FOR / NEXT ---

func (ip *Interpreter) cmdFor(st *Statement) error {
	if len(ip.forStack) >= ip.maxForDepth {
		return NewBasicErrorf(FaultResource, ErrCodeOutOfMemory, "FOR nesting too deep")
	}
	eqPos := topLevelIndexByte(st.Args, '=')
	if eqPos < 0 {
		return NewBasicErrorf(FaultStructural, ErrCodeSyntax, "FOR without =")
	}
	varName := ip.comp.canonicalName(st.Args[:eqPos])
	rest := st.Args[eqPos+1:]

	upper := strings.ToUpper(rest)
	toPos := findKeywordOutsideStrings(upper, "TO")
	if toPos < 0 {
		return NewBasicErrorf(FaultStructural, ErrCodeSyntax, "FOR without TO")
	}
	startText := rest[:toPos]
	limitText := rest[toPos+2:]
	stepText := "1"
	if stepPos := findKeywordOutsideStrings(strings.ToUpper(limitText), "STEP"); stepPos >= 0 {
		stepText = limitText[stepPos+4:]
		limitText = limitText[:stepPos]
	}

	start, err := ip.evalNumber(startText)
	if err != nil {
		return err
	}
	limit, err := ip.evalNumber(limitText)
	if err != nil {
		return err
	}
	step, err := ip.evalNumber(stepText)
	if err != nil {
		return err
	}

	if err := ip.setVariable(varName, NumberValue(start)); err != nil {
		return err
	}

	// Zero-iteration loops skip the body entirely.
	if (step >= 0 && start > limit) || (step < 0 && start < limit) {
		end, err := ip.scanForward(ip.pc, "FOR", "NEXT")
		if err != nil {
			return err
		}
		ip.pc = end + 1
		return nil
	}

	ip.forStack = append(ip.forStack, forFrame{
		varName:  varName,
		limit:    limit,
		step:     step,
		bodyPC:   ip.pc,
		ifDepth:  ip.ifLevel,
		selDepth: len(ip.selectStack),
	})
	return nil
}

func (ip *Interpreter) popRealFor() *forFrame {
	for n := len(ip.forStack); n > 0; n = len(ip.forStack) {
		if ip.forStack[n-1].placeholder {
			ip.forStack = ip.forStack[:n-1]
			continue
		}
		return &ip.forStack[n-1]
	}
	return nil
}

func (ip *Interpreter) cmdNext(st *Statement) error {
	frame := ip.popRealFor()
	if frame == nil {
		return NewBasicError(FaultStructural, ErrCodeNextWithoutFor)
	}
	if name := strings.TrimSpace(st.Args); name != "" {
		if ip.comp.canonicalName(name) != frame.varName {
			return NewBasicErrorf(FaultStructural, ErrCodeNextWithoutFor, "NEXT %s does not match FOR %s", name, frame.varName)
		}
	}
	current := ip.env.lookup(frame.varName)
	next := current.Num + frame.step
	if err := ip.setVariable(frame.varName, NumberValue(next)); err != nil {
		return err
	}
	if (frame.step >= 0 && next <= frame.limit) || (frame.step < 0 && next >= frame.limit) {
		ip.pc = frame.bodyPC
		return nil
	}
	ip.forStack = ip.forStack[:len(ip.forStack)-1]
	return nil
}

// unwindBlocks closes IF and SELECT frames the abandoned loop body left open
// when an EXIT jumps out mid-block.
func (ip *Interpreter) unwindBlocks(ifDepth, selDepth int) {
	if ip.ifLevel > ifDepth {
		ip.ifLevel = ifDepth
	}
	if len(ip.selectStack) > selDepth {
		ip.selectStack = ip.selectStack[:selDepth]
	}
}

func (ip *Interpreter) cmdExitFor(st *Statement) error {
	frame := ip.popRealFor()
	if frame == nil {
		return NewBasicError(FaultStructural, ErrCodeNextWithoutFor)
	}
	ip.unwindBlocks(frame.ifDepth, frame.selDepth)
	ip.forStack = ip.forStack[:len(ip.forStack)-1]
	end, err := ip.scanForward(ip.pc, "FOR", "NEXT")
	if err != nil {
		return err
	}
	ip.pc = end + 1
	return nil
}

// --- DO / LOOP and WHILE / WEND ---

// parseLoopCond reads an optional "WHILE expr" / "UNTIL expr" clause and
// reports whether the loop should proceed. Absent clause means proceed.
func (ip *Interpreter) parseLoopCond(args string) (bool, error) {
	args = strings.TrimSpace(args)
	if args == "" {
		return true, nil
	}
	upper := strings.ToUpper(args)
	switch {
	case strings.HasPrefix(upper, "WHILE") && wordBoundary(upper, 0, 5):
		v, err := ip.evalExpr(args[5:])
		if err != nil {
			return false, err
		}
		return v.IsTrue(), nil
	case strings.HasPrefix(upper, "UNTIL") && wordBoundary(upper, 0, 5):
		v, err := ip.evalExpr(args[5:])
		if err != nil {
			return false, err
		}
		return !v.IsTrue(), nil
	}
	return false, NewBasicErrorf(FaultStructural, ErrCodeSyntax, "expected WHILE or UNTIL")
}

func (ip *Interpreter) cmdDo(st *Statement) error {
	proceed, err := ip.parseLoopCond(st.Args)
	if err != nil {
		return err
	}
	if !proceed {
		end, scanErr := ip.scanForward(ip.pc, "DO", "LOOP")
		if scanErr != nil {
			return scanErr
		}
		ip.pc = end + 1
		return nil
	}
	ip.doStack = append(ip.doStack, doFrame{
		kind:     doLoop,
		headPC:   ip.pc - 1,
		ifDepth:  ip.ifLevel,
		selDepth: len(ip.selectStack),
	})
	return nil
}

func (ip *Interpreter) popRealDo(kind doKind) *doFrame {
	for n := len(ip.doStack); n > 0; n = len(ip.doStack) {
		if ip.doStack[n-1].placeholder {
			ip.doStack = ip.doStack[:n-1]
			continue
		}
		if ip.doStack[n-1].kind != kind {
			return nil
		}
		return &ip.doStack[n-1]
	}
	return nil
}

func (ip *Interpreter) cmdLoop(st *Statement) error {
	frame := ip.popRealDo(doLoop)
	if frame == nil {
		return NewBasicErrorf(FaultStructural, ErrCodeSyntax, "LOOP without DO")
	}
	headPC := frame.headPC
	ip.doStack = ip.doStack[:len(ip.doStack)-1]

	proceed, err := ip.parseLoopCond(st.Args)
	if err != nil {
		return err
	}
	if proceed {
		// Jump back to the DO itself so a head condition is re-evaluated and
		// the frame is re-pushed.
		ip.pc = headPC
	}
	return nil
}

func (ip *Interpreter) cmdExitDo(st *Statement) error {
	frame := ip.popRealDo(doLoop)
	if frame == nil {
		return NewBasicErrorf(FaultStructural, ErrCodeSyntax, "EXIT DO outside DO")
	}
	ip.unwindBlocks(frame.ifDepth, frame.selDepth)
	ip.doStack = ip.doStack[:len(ip.doStack)-1]
	end, err := ip.scanForward(ip.pc, "DO", "LOOP")
	if err != nil {
		return err
	}
	ip.pc = end + 1
	return nil
}

func (ip *Interpreter) cmdWhile(st *Statement) error {
	v, err := ip.evalExpr(st.Args)
	if err != nil {
		return err
	}
	if !v.IsTrue() {
		end, scanErr := ip.scanForward(ip.pc, "WHILE", "WEND")
		if scanErr != nil {
			return scanErr
		}
		ip.pc = end + 1
		return nil
	}
	ip.doStack = append(ip.doStack, doFrame{
		kind:     doWhileWend,
		headPC:   ip.pc - 1,
		ifDepth:  ip.ifLevel,
		selDepth: len(ip.selectStack),
	})
	return nil
}

func (ip *Interpreter) cmdWend(st *Statement) error {
	frame := ip.popRealDo(doWhileWend)
	if frame == nil {
		return NewBasicErrorf(FaultStructural, ErrCodeSyntax, "WEND without WHILE")
	}
	headPC := frame.headPC
	ip.doStack = ip.doStack[:len(ip.doStack)-1]
	ip.pc = headPC
	return nil
}

func (ip *Interpreter) cmdExitWhile(st *Statement) error {
	frame := ip.popRealDo(doWhileWend)
	if frame == nil {
		return NewBasicErrorf(FaultStructural, ErrCodeSyntax, "EXIT WHILE outside WHILE")
	}
	ip.unwindBlocks(frame.ifDepth, frame.selDepth)
	ip.doStack = ip.doStack[:len(ip.doStack)-1]
	end, err := ip.scanForward(ip.pc, "WHILE", "WEND")
	if err != nil {
		return err
	}
	ip.pc = end + 1
	return nil
}

// --- Jumps ---

func (ip *Interpreter) cmdGoto(st *Statement) error {
	target, err := ip.resolveTarget(st.Args)
	if err != nil {
		return err
	}
	ip.pc = target
	return nil
}

func (ip *Interpreter) cmdGosub(st *Statement) error {
	if len(ip.gosubStack) >= ip.maxGosubDepth {
		return NewBasicErrorf(FaultResource, ErrCodeOutOfMemory, "GOSUB nesting too deep")
	}
	target, err := ip.resolveTarget(st.Args)
	if err != nil {
		return err
	}
	ip.gosubStack = append(ip.gosubStack, ip.pc)
	ip.pc = target
	return nil
}

func (ip *Interpreter) cmdReturn(st *Statement) error {
	n := len(ip.gosubStack)
	if n == 0 {
		return NewBasicError(FaultStructural, ErrCodeReturnWithoutGosub)
	}
	returnPC := ip.gosubStack[n-1]
	ip.gosubStack = ip.gosubStack[:n-1]
	if target := strings.TrimSpace(st.Args); target != "" {
		pc, err := ip.resolveTarget(target)
		if err != nil {
			return err
		}
		ip.pc = pc
		return nil
	}
	ip.pc = returnPC
	return nil
}

// cmdOn handles computed jumps: ON expr GOTO l1, l2, ... and the GOSUB form.
// An index outside the list falls through without a fault.
func (ip *Interpreter) cmdOn(st *Statement) error {
	upper := strings.ToUpper(st.Args)
	isGosub := false
	pos := findKeywordOutsideStrings(upper, "GOTO")
	if pos < 0 {
		pos = findKeywordOutsideStrings(upper, "GOSUB")
		if pos < 0 {
			return NewBasicErrorf(FaultStructural, ErrCodeSyntax, "ON without GOTO or GOSUB")
		}
		isGosub = true
	}
	exprText := st.Args[:pos]
	listText := st.Args[pos+4:]
	if isGosub {
		listText = st.Args[pos+5:]
	}

	n, err := ip.evalNumber(exprText)
	if err != nil {
		return err
	}
	idx := int(roundHalfEven(n))
	targets := splitTopLevelCommas(listText)
	if idx < 1 || idx > len(targets) {
		return nil
	}
	target, err := ip.resolveTarget(targets[idx-1])
	if err != nil {
		return err
	}
	if isGosub {
		if len(ip.gosubStack) >= ip.maxGosubDepth {
			return NewBasicErrorf(FaultResource, ErrCodeOutOfMemory, "GOSUB nesting too deep")
		}
		ip.gosubStack = append(ip.gosubStack, ip.pc)
	}
	ip.pc = target
	return nil
}

// --- Error recovery statements ---

func (ip *Interpreter) cmdOnError(st *Statement) error {
	args := strings.TrimSpace(st.Args)
	upper := strings.ToUpper(args)
	if !strings.HasPrefix(upper, "GOTO") {
		return NewBasicErrorf(FaultStructural, ErrCodeSyntax, "expected ON ERROR GOTO")
	}
	target := strings.TrimSpace(args[4:])
	if target == "0" {
		ip.errState.handlerLabel = ""
		return nil
	}
	name := strings.ToUpper(target)
	if _, ok := ip.prog.Labels[name]; !ok {
		return NewBasicErrorf(FaultRuntime, ErrCodeLabelNotDefined, "label %s not defined", name)
	}
	ip.errState.handlerLabel = name
	return nil
}

func (ip *Interpreter) cmdResume(st *Statement) error {
	if !ip.errState.inHandler {
		return NewBasicError(FaultRuntime, ErrCodeResumeWithoutError)
	}
	ip.errState.inHandler = false
	switch args := strings.TrimSpace(st.Args); strings.ToUpper(args) {
	case "":
		ip.pc = ip.errState.resumePC
	case "NEXT":
		ip.pc = ip.errState.resumePC + 1
	default:
		target, err := ip.resolveTarget(args)
		if err != nil {
			return err
		}
		ip.pc = target
	}
	return nil
}

// cmdError raises a user fault with the given code, taking the normal
// fault-handling path.
func (ip *Interpreter) cmdError(st *Statement) error {
	n, err := ip.evalNumber(st.Args)
	if err != nil {
		return err
	}
	code := int(roundHalfEven(n))
	return NewBasicErrorf(FaultRuntime, code, "error %d", code)
}

func (ip *Interpreter) cmdEnd(st *Statement) error {
	ip.finishRun()
	return nil
}

func (ip *Interpreter) cmdRem(st *Statement) error {
	return nil
}

// topLevelIndexByte finds the first occurrence of b outside strings, parens
// and brackets.
func topLevelIndexByte(s string, b byte) int {
	depth := 0
	inString := false
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
		case b:
			if !inString && depth == 0 {
				return i
			}
		}
	}
	return -1
}
