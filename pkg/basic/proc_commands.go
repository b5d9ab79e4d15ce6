package basic

import (
	"strings"
)

// registerProcedures is the pre-pass run at Start: it records every SUB and
// FUNCTION with its parameter list and body span so forward calls resolve.
func (ip *Interpreter) registerProcedures() error {
	for name := range ip.procs {
		ip.nameSetHash ^= nameHash('p', name)
	}
	ip.procs = make(map[string]*Procedure)

	for i := 0; i < len(ip.prog.Statements); i++ {
		st := &ip.prog.Statements[i]
		var kind ProcKind
		switch st.Keyword {
		case "SUB":
			kind = ProcSub
		case "FUNCTION":
			kind = ProcFunction
		default:
			continue
		}
		name, params, err := parseProcHeader(st.Args)
		if err != nil {
			return ip.annotate(err, st)
		}
		name = ip.comp.canonicalName(name)
		if _, exists := ip.procs[name]; exists {
			return ip.annotate(NewBasicErrorf(FaultStructural, ErrCodeDuplicateDef, "procedure %s already defined", name), st)
		}
		closer := "END SUB"
		if kind == ProcFunction {
			closer = "END FUNCTION"
		}
		end, err := ip.scanForward(i+1, st.Keyword, closer)
		if err != nil {
			return ip.annotate(err, st)
		}
		canonParams := make([]string, len(params))
		for j, p := range params {
			canonParams[j] = ip.comp.canonicalName(p)
		}
		ip.procs[name] = &Procedure{
			Name:    name,
			Kind:    kind,
			Params:  canonParams,
			StartPC: i + 1,
			EndPC:   end,
		}
		ip.nameSetHash ^= nameHash('p', name)
		i = end
	}
	return nil
}

// parseProcHeader splits "Name(p1, p2)" or "Name" into name and parameters.
// A trailing STATIC is accepted and ignored.
func parseProcHeader(args string) (string, []string, error) {
	args = strings.TrimSpace(args)
	upper := strings.ToUpper(args)
	if strings.HasSuffix(upper, "STATIC") {
		args = strings.TrimSpace(args[:len(args)-6])
	}
	open := strings.IndexByte(args, '(')
	if open < 0 {
		if args == "" {
			return "", nil, NewBasicErrorf(FaultStructural, ErrCodeSyntax, "procedure without name")
		}
		return args, nil, nil
	}
	name := strings.TrimSpace(args[:open])
	if name == "" {
		return "", nil, NewBasicErrorf(FaultStructural, ErrCodeSyntax, "procedure without name")
	}
	close := strings.LastIndexByte(args, ')')
	if close < open {
		return "", nil, NewBasicErrorf(FaultStructural, ErrCodeSyntax, "unterminated parameter list")
	}
	inner := strings.TrimSpace(args[open+1 : close])
	if inner == "" {
		return name, nil, nil
	}
	var params []string
	for _, p := range splitTopLevelCommas(inner) {
		// "x AS INTEGER" style declarations keep just the name; the type
		// suffix convention governs the kind.
		if pos := findKeywordOutsideStrings(strings.ToUpper(p), "AS"); pos >= 0 {
			p = strings.TrimSpace(p[:pos])
		}
		p = strings.TrimSuffix(strings.TrimSpace(p), "()")
		if p == "" {
			return "", nil, NewBasicErrorf(FaultStructural, ErrCodeSyntax, "empty parameter")
		}
		params = append(params, p)
	}
	return name, params, nil
}

// cmdSubDef and cmdFunctionDef handle falling onto a procedure header in the
// normal statement flow: the body is skipped, only calls enter it.
func (ip *Interpreter) cmdSubDef(st *Statement) error {
	return ip.skipProcBody(st, "END SUB")
}

func (ip *Interpreter) cmdFunctionDef(st *Statement) error {
	return ip.skipProcBody(st, "END FUNCTION")
}

func (ip *Interpreter) skipProcBody(st *Statement, closer string) error {
	name, _, err := parseProcHeader(st.Args)
	if err != nil {
		return err
	}
	if proc, ok := ip.procs[ip.comp.canonicalName(name)]; ok {
		ip.pc = proc.EndPC + 1
		return nil
	}
	end, err := ip.scanForward(ip.pc, st.Keyword, closer)
	if err != nil {
		return err
	}
	ip.pc = end + 1
	return nil
}

// cmdCall is the explicit CALL Name(args) form.
func (ip *Interpreter) cmdCall(st *Statement) error {
	args := strings.TrimSpace(st.Args)
	i := 0
	for i < len(args) && isNameByte(toUpperByte(args[i])) {
		i++
	}
	if i < len(args) && isNameSuffix(args[i]) {
		i++
	}
	if i == 0 {
		return NewBasicErrorf(FaultStructural, ErrCodeSyntax, "CALL without procedure name")
	}
	name := ip.comp.canonicalName(args[:i])
	rest := strings.TrimSpace(args[i:])
	if strings.HasPrefix(rest, "(") && strings.HasSuffix(rest, ")") {
		rest = rest[1 : len(rest)-1]
	}
	proc, ok := ip.procs[name]
	if !ok || proc.Kind != ProcSub {
		return NewBasicErrorf(FaultEvaluation, ErrCodeIllegalCall, "unknown procedure %s", name)
	}
	return ip.callSub(proc, rest)
}

func toUpperByte(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}

// callSub binds arguments and transfers control into a SUB body. Scalar
// arguments are passed by value into shadow-saved parameter bindings; a bare
// array name aliases the caller's array so element writes are visible after
// return.
func (ip *Interpreter) callSub(proc *Procedure, argsText string) error {
	frame, err := ip.bindCallFrame(proc, ip.parseCallArgs(argsText))
	if err != nil {
		return err
	}
	frame.returnPC = ip.pc
	ip.callStack = append(ip.callStack, frame)
	ip.pc = proc.StartPC
	return nil
}

// parseCallArgs splits the textual argument list; an empty list is nil.
func (ip *Interpreter) parseCallArgs(argsText string) []string {
	argsText = strings.TrimSpace(argsText)
	if argsText == "" {
		return nil
	}
	return splitTopLevelCommas(argsText)
}

// bindCallFrame evaluates arguments and installs parameter bindings, saving
// whatever the parameter names previously held.
func (ip *Interpreter) bindCallFrame(proc *Procedure, args []string) (*callFrame, error) {
	if len(ip.callStack) >= ip.maxCallDepth {
		return nil, NewBasicErrorf(FaultResource, ErrCodeOutOfMemory, "call nesting too deep")
	}
	if len(args) > len(proc.Params) {
		return nil, NewBasicErrorf(FaultEvaluation, ErrCodeIllegalCall, "too many arguments for %s", proc.Name)
	}

	values := make([]Value, len(proc.Params))
	for i, param := range proc.Params {
		if i >= len(args) {
			values[i] = zeroValueForName(param)
			continue
		}
		argText := strings.TrimSpace(args[i])
		canon := ip.comp.canonicalName(strings.TrimSuffix(argText, "()"))
		if bound, ok := ip.variables[canon]; ok && bound.Kind == KindArray && isBareName(argText) {
			values[i] = bound // shared *Array: alias, not copy
			continue
		}
		v, err := ip.evalExpr(argText)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}

	frame := &callFrame{
		proc:  proc,
		saved: make(map[string]savedBinding, len(proc.Params)+1),
	}
	for i, param := range proc.Params {
		old, existed := ip.variables[param]
		frame.saved[param] = savedBinding{old, existed}
		ip.unsetVariable(param)
		if values[i].Kind == KindArray || values[i].Kind == KindRecord {
			ip.bindVariable(param, values[i])
		} else if err := ip.setVariable(param, values[i]); err != nil {
			ip.restoreFrame(frame)
			return nil, err
		}
	}
	return frame, nil
}

// isBareName reports whether the argument text is a plain identifier
// (optionally with an empty "()" pair), which is what aliases an array.
func isBareName(s string) bool {
	s = strings.TrimSuffix(strings.TrimSpace(s), "()")
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := toUpperByte(s[i])
		if !isNameByte(c) && !(i == len(s)-1 && isNameSuffix(c)) {
			return false
		}
	}
	return true
}

// restoreFrame puts back every binding the call shadowed.
func (ip *Interpreter) restoreFrame(frame *callFrame) {
	for name, s := range frame.saved {
		if s.existed {
			ip.bindVariable(name, s.value)
		} else {
			ip.unsetVariable(name)
		}
	}
}

func (ip *Interpreter) cmdEndSub(st *Statement) error {
	n := len(ip.callStack)
	if n == 0 || ip.callStack[n-1].proc.Kind != ProcSub {
		return NewBasicErrorf(FaultStructural, ErrCodeSyntax, "END SUB outside SUB call")
	}
	frame := ip.callStack[n-1]
	ip.callStack = ip.callStack[:n-1]
	ip.restoreFrame(frame)
	ip.pc = frame.returnPC
	return nil
}

func (ip *Interpreter) cmdEndFunction(st *Statement) error {
	n := len(ip.callStack)
	if n == 0 || ip.callStack[n-1].proc.Kind != ProcFunction {
		return NewBasicErrorf(FaultStructural, ErrCodeSyntax, "END FUNCTION outside FUNCTION call")
	}
	frame := ip.callStack[n-1]
	ip.callStack = ip.callStack[:n-1]
	// The function name doubles as the result variable inside the body.
	if v, ok := ip.variables[frame.proc.Name]; ok {
		frame.result = v
	} else {
		frame.result = zeroValueForName(frame.proc.Name)
	}
	ip.restoreFrame(frame)
	return nil
}

// callFunctionProc evaluates a FUNCTION procedure mid-expression by running
// its body statements in a nested stepping loop. The loop shares all
// interpreter state with the outer run and is bounded by the function step
// budget so a non-terminating body cannot wedge the engine inside a single
// statement.
func (ip *Interpreter) callFunctionProc(proc *Procedure, argNodes []*exprNode) (Value, error) {
	if len(argNodes) > len(proc.Params) {
		return Value{}, NewBasicErrorf(FaultEvaluation, ErrCodeIllegalCall, "too many arguments for %s", proc.Name)
	}
	values := make([]Value, len(proc.Params))
	for i, param := range proc.Params {
		if i >= len(argNodes) {
			values[i] = zeroValueForName(param)
			continue
		}
		n := argNodes[i]
		if n.kind == nodeVar {
			if bound, ok := ip.variables[n.name]; ok && bound.Kind == KindArray {
				values[i] = bound
				continue
			}
		}
		v, err := ip.evalNode(argNodes[i])
		if err != nil {
			return Value{}, err
		}
		values[i] = v
	}

	if len(ip.callStack) >= ip.maxCallDepth {
		return Value{}, NewBasicErrorf(FaultResource, ErrCodeOutOfMemory, "call nesting too deep")
	}
	frame := &callFrame{
		proc:  proc,
		saved: make(map[string]savedBinding, len(proc.Params)+1),
	}
	// Shadow the function name itself so "Name = expr" assigns the result.
	oldResult, existed := ip.variables[proc.Name]
	frame.saved[proc.Name] = savedBinding{oldResult, existed}
	ip.unsetVariable(proc.Name)
	for i, param := range proc.Params {
		old, ok := ip.variables[param]
		frame.saved[param] = savedBinding{old, ok}
		ip.unsetVariable(param)
		if values[i].Kind == KindArray || values[i].Kind == KindRecord {
			ip.bindVariable(param, values[i])
		} else if err := ip.setVariable(param, values[i]); err != nil {
			ip.restoreFrame(frame)
			return Value{}, err
		}
	}

	savedPC := ip.pc
	depth := len(ip.callStack)
	ip.callStack = append(ip.callStack, frame)
	ip.pc = proc.StartPC

	abort := func(err error) (Value, error) {
		for len(ip.callStack) > depth {
			top := ip.callStack[len(ip.callStack)-1]
			ip.callStack = ip.callStack[:len(ip.callStack)-1]
			ip.restoreFrame(top)
		}
		ip.pc = savedPC
		return Value{}, err
	}

	for len(ip.callStack) > depth {
		if ip.stepBudget <= 0 {
			return abort(NewBasicErrorf(FaultResource, ErrCodeOutOfMemory, "function %s exceeded the step limit", proc.Name))
		}
		ip.stepBudget--
		if ip.pc >= len(ip.prog.Statements) {
			return abort(NewBasicErrorf(FaultStructural, ErrCodeSyntax, "function %s ran past end of program", proc.Name))
		}
		if err := ip.step(); err != nil {
			return abort(err)
		}
		if ip.pendingInput != nil {
			return abort(NewBasicErrorf(FaultEvaluation, ErrCodeIllegalCall, "INPUT inside function %s", proc.Name))
		}
		if !ip.running {
			break
		}
	}
	ip.pc = savedPC
	return frame.result, nil
}
