package basic

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/antibyte/retrobasic/pkg/configuration"
	"github.com/antibyte/retrobasic/pkg/logger"
	"github.com/antibyte/retrobasic/pkg/shared"
)

func basicDebugLog(format string, args ...interface{}) {
	logger.Debug(logger.AreaBasic, format, args...)
}

// FileSystem is the narrow Streams collaborator the engine consumes for
// file statements and CHAIN. Implementations live outside the core.
type FileSystem interface {
	ReadFile(path, sessionID string) (string, error)
	WriteFile(path, content, sessionID string) error
	Exists(path, sessionID string) bool
}

// RunState is what a batch of execution left the engine in.
type RunState int

const (
	StateIdle       RunState = iota // no program running
	StateRunning                    // more statements to execute
	StateAwaitInput                 // INPUT/LINE INPUT pending, feed ProvideInput
	StateSleeping                   // SLEEP deadline not reached yet
	StateFinished                   // program ran to completion
	StateFaulted                    // unhandled fault halted the run
)

// ProcKind distinguishes SUB from FUNCTION procedures.
type ProcKind int

const (
	ProcSub ProcKind = iota
	ProcFunction
)

// Procedure is a SUB or FUNCTION discovered in the pre-pass.
type Procedure struct {
	Name    string
	Kind    ProcKind
	Params  []string
	StartPC int // first statement of the body
	EndPC   int // the matching END SUB / END FUNCTION
}

// inlineFunc is a DEF FN single-expression function.
type inlineFunc struct {
	Name   string
	Params []string
	Body   string
}

type savedBinding struct {
	value   Value
	existed bool
}

// callFrame tracks one SUB/FUNCTION activation. Saved bindings are restored
// exactly once, on return; aliased arrays stay with the caller.
type callFrame struct {
	proc     *Procedure
	returnPC int
	saved    map[string]savedBinding
	result   Value
}

// forFrame is one active FOR loop. Placeholder frames keep nesting counts
// correct while a surrounding IF branch is being skipped.
type forFrame struct {
	varName     string
	limit       float64
	step        float64
	bodyPC      int
	ifDepth     int // open IF levels when the loop started
	selDepth    int // open SELECT frames when the loop started
	placeholder bool
}

type doKind int

const (
	doLoop doKind = iota // DO ... LOOP
	doWhileWend          // WHILE ... WEND
)

type doFrame struct {
	kind        doKind
	headPC      int // PC of the DO/WHILE statement itself
	ifDepth     int
	selDepth    int
	placeholder bool
}

type selectFrame struct {
	testValue   Value
	matched     bool
	placeholder bool
}

type errorState struct {
	handlerLabel  string
	resumePC      int
	inHandler     bool
	lastErrorLine int
	lastErrorCode int
}

type inputRequest struct {
	vars     []string
	lineMode bool
}

type stmtHandler func(st *Statement) error

// Interpreter is the execution core: expression compiler, statement
// dispatcher, control-flow stacks, procedure calls, error recovery and the
// DATA pool. It is single-threaded and cooperative: hosts repeatedly call
// RunBatch and react to the returned state.
type Interpreter struct {
	mu sync.Mutex

	fs        FileSystem
	sessionID string

	// OutputChan carries messages to the host frontend. Sends never block;
	// a full channel drops the message (the host is too far behind).
	OutputChan chan shared.Message

	prog    *Program
	pc      int
	state   RunState
	running bool

	variables   map[string]Value
	constants   map[string]Value
	commonNames map[string]bool
	recordTypes map[string]*RecordType
	inlineFuncs map[string]*inlineFunc
	procs       map[string]*Procedure

	// nameSetHash fingerprints the set of visible names; the environment
	// rebuilds its merged index only when this changes.
	nameSetHash uint64

	gosubStack  []int
	callStack   []*callFrame
	forStack    []forFrame
	doStack     []doFrame
	selectStack []selectFrame

	ifLevel     int
	ifSkipLevel int // -1 when not skipping
	branchTaken []bool

	dataPool   []Value
	dataCursor int
	dataRuns   []dataRun

	errState errorState

	comp *exprCompiler
	env  *environment

	handlers map[string]stmtHandler

	pendingInput *inputRequest
	sleepUntil   time.Time

	openFiles map[int]*openFile

	keyStates map[string]bool
	lastKey   string

	printPending bool // PRINT ended with a separator; cursor stays on the line
	printCol     int  // cursor column for comma zones and TAB

	rng       *rand.Rand
	startTime time.Time

	// Limits, read from configuration at construction.
	batchSize        int
	maxGosubDepth    int
	maxForDepth      int
	maxCallDepth     int
	maxFunctionSteps int

	// stepBudget guards re-entrant FUNCTION evaluation against runaway
	// recursion; reset at every top-level statement.
	stepBudget int
}

// New creates an interpreter bound to a filesystem collaborator (which may
// be nil; file statements then fault).
func New(fs FileSystem) *Interpreter {
	ip := &Interpreter{
		fs:          fs,
		sessionID:   uuid.NewString(),
		OutputChan:  make(chan shared.Message, 256),
		variables:   make(map[string]Value),
		constants:   make(map[string]Value),
		commonNames: make(map[string]bool),
		recordTypes: make(map[string]*RecordType),
		inlineFuncs: make(map[string]*inlineFunc),
		procs:       make(map[string]*Procedure),
		openFiles:   make(map[int]*openFile),
		keyStates:   make(map[string]bool),
		ifSkipLevel: -1,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		startTime:   time.Now(),

		batchSize:        configuration.GetInt("Basic", "batch_size", 500),
		maxGosubDepth:    configuration.GetInt("Basic", "max_gosub_depth", 100),
		maxForDepth:      configuration.GetInt("Basic", "max_for_depth", 50),
		maxCallDepth:     configuration.GetInt("Basic", "max_call_depth", 50),
		maxFunctionSteps: configuration.GetInt("Basic", "max_function_steps", 1000000),
	}
	ip.comp = newExprCompiler(ip,
		configuration.GetInt("Basic", "rewrite_cache_size", 512),
		configuration.GetInt("Basic", "compile_cache_size", 512),
		configuration.GetInt("Basic", "name_cache_size", 1024))
	ip.env = newEnvironment(ip)
	ip.handlers = ip.buildHandlerTable()
	return ip
}

// SetSessionID overrides the generated session identifier (hosts reuse the
// ID of the connection the engine serves).
func (ip *Interpreter) SetSessionID(id string) {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	ip.sessionID = id
}

// SessionID returns the engine's session identifier.
func (ip *Interpreter) SessionID() string {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	return ip.sessionID
}

// GetOutputChannel exposes the message channel for hosts.
func (ip *Interpreter) GetOutputChannel() chan shared.Message {
	return ip.OutputChan
}

// buildHandlerTable wires the keyword->handler registry. Handlers are
// independent units grouped by concern across the *_commands.go files.
func (ip *Interpreter) buildHandlerTable() map[string]stmtHandler {
	return map[string]stmtHandler{
		"LET":          ip.cmdLet,
		"PRINT":        ip.cmdPrint,
		"INPUT":        ip.cmdInput,
		"LINE INPUT":   ip.cmdLineInput,
		"IF":           ip.cmdIf,
		"ELSEIF":       ip.cmdElseIf,
		"ELSE":         ip.cmdElse,
		"END IF":       ip.cmdEndIf,
		"SELECT CASE":  ip.cmdSelectCase,
		"CASE":         ip.cmdCase,
		"END SELECT":   ip.cmdEndSelect,
		"FOR":          ip.cmdFor,
		"NEXT":         ip.cmdNext,
		"EXIT FOR":     ip.cmdExitFor,
		"DO":           ip.cmdDo,
		"LOOP":         ip.cmdLoop,
		"EXIT DO":      ip.cmdExitDo,
		"WHILE":        ip.cmdWhile,
		"WEND":         ip.cmdWend,
		"EXIT WHILE":   ip.cmdExitWhile,
		"CLEAR":        ip.cmdClear,
		"GOTO":         ip.cmdGoto,
		"GOSUB":        ip.cmdGosub,
		"RETURN":       ip.cmdReturn,
		"ON":           ip.cmdOn,
		"ON ERROR":     ip.cmdOnError,
		"RESUME":       ip.cmdResume,
		"ERROR":        ip.cmdError,
		"END":          ip.cmdEnd,
		"STOP":         ip.cmdEnd,
		"REM":          ip.cmdRem,
		"DATA":         ip.cmdRem, // consumed at load time
		"READ":         ip.cmdRead,
		"RESTORE":      ip.cmdRestore,
		"DIM":          ip.cmdDim,
		"REDIM":        ip.cmdDim,
		"CONST":        ip.cmdConst,
		"COMMON":       ip.cmdCommon,
		"TYPE":         ip.cmdType,
		"DEF":          ip.cmdDef,
		"DECLARE":      ip.cmdRem,
		"SUB":          ip.cmdSubDef,
		"FUNCTION":     ip.cmdFunctionDef,
		"END SUB":      ip.cmdEndSub,
		"EXIT SUB":     ip.cmdEndSub,
		"END FUNCTION": ip.cmdEndFunction,
		"EXIT FUNCTION": ip.cmdEndFunction,
		"END DEF":      ip.cmdRem,
		"CALL":         ip.cmdCall,
		"RANDOMIZE":    ip.cmdRandomize,
		"SWAP":         ip.cmdSwap,
		"CLS":          ip.cmdCls,
		"LOCATE":       ip.cmdLocate,
		"COLOR":        ip.cmdColor,
		"SLEEP":        ip.cmdSleep,
		"BEEP":         ip.cmdBeep,
		"SOUND":        ip.cmdSound,
		"PSET":         ip.cmdPset,
		"LINE":         ip.cmdLine,
		"RECT":         ip.cmdRect,
		"CIRCLE":       ip.cmdCircle,
		"PAINT":        ip.cmdPaint,
		"OPEN":         ip.cmdOpen,
		"CLOSE":        ip.cmdClose,
		"RUN":          ip.cmdRun,
		"CHAIN":        ip.cmdChain,
		// Hardware-event features this host has no device for: stub no-ops
		// by contract, never faults.
		"KEY":   ip.cmdRem,
		"STICK": ip.cmdRem,
		"STRIG": ip.cmdRem,
		"PEN":   ip.cmdRem,
	}
}

// LoadProgram replaces the loaded program: flattens the source, resolves
// labels, builds the DATA pool and clears all execution state and caches.
func (ip *Interpreter) LoadProgram(source string) error {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	return ip.loadProgramLocked(source, false)
}

func (ip *Interpreter) loadProgramLocked(source string, keepCommon bool) error {
	lines := strings.Split(strings.ReplaceAll(source, "\r\n", "\n"), "\n")
	prog := BuildProgram(lines)
	for _, dup := range prog.DuplicateLabels {
		logger.Warn(logger.AreaBasic, "duplicate label %s ignored (first definition wins)", dup)
	}
	ip.prog = prog
	ip.resetExecutionState(keepCommon)
	ip.buildDataPool()
	return nil
}

// resetExecutionState clears everything a RUN starts fresh with. COMMON
// variables survive only a CHAIN-style reload.
func (ip *Interpreter) resetExecutionState(keepCommon bool) {
	var kept map[string]Value
	if keepCommon {
		kept = make(map[string]Value, len(ip.commonNames))
		for name := range ip.commonNames {
			if v, ok := ip.variables[name]; ok {
				kept[name] = v
			}
		}
	}
	ip.variables = make(map[string]Value)
	ip.constants = make(map[string]Value)
	ip.recordTypes = make(map[string]*RecordType)
	ip.inlineFuncs = make(map[string]*inlineFunc)
	ip.procs = make(map[string]*Procedure)
	ip.nameSetHash = 0
	if !keepCommon {
		ip.commonNames = make(map[string]bool)
	}
	for name, v := range kept {
		ip.variables[name] = v
		ip.nameSetHash ^= nameHash('v', name)
	}

	ip.pc = 0
	ip.state = StateIdle
	ip.running = false
	ip.gosubStack = ip.gosubStack[:0]
	ip.callStack = ip.callStack[:0]
	ip.forStack = ip.forStack[:0]
	ip.doStack = ip.doStack[:0]
	ip.selectStack = ip.selectStack[:0]
	ip.ifLevel = 0
	ip.ifSkipLevel = -1
	ip.branchTaken = ip.branchTaken[:0]
	ip.dataCursor = 0
	ip.errState = errorState{}
	ip.pendingInput = nil
	ip.sleepUntil = time.Time{}
	ip.openFiles = make(map[int]*openFile)
	ip.printPending = false
	ip.printCol = 0

	// A stale compiled form must never survive a reload.
	ip.comp.clear()
	ip.env = newEnvironment(ip)
}

// Start begins execution from the first statement. The pre-pass registers
// SUB/FUNCTION procedures so forward calls work.
func (ip *Interpreter) Start() error {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	if ip.prog == nil || len(ip.prog.Statements) == 0 {
		return ErrNoProgramLoaded
	}
	if ip.running {
		return ErrProgramAlreadyRunning
	}
	if err := ip.registerProcedures(); err != nil {
		return err
	}
	ip.pc = 0
	ip.running = true
	ip.state = StateRunning
	ip.startTime = time.Now()
	basicDebugLog("run started: %d statements, %d labels", len(ip.prog.Statements), len(ip.prog.Labels))
	return nil
}

// Stop cancels the run at the next statement boundary.
func (ip *Interpreter) Stop() {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	ip.running = false
	if ip.state == StateRunning || ip.state == StateAwaitInput || ip.state == StateSleeping {
		ip.state = StateIdle
	}
}

// IsRunning reports whether a program run is in progress.
func (ip *Interpreter) IsRunning() bool {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	return ip.running
}

// LastError reports the code and line of the most recent fault, handled or
// not. Zero values mean no fault has occurred.
func (ip *Interpreter) LastError() (code, line int) {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	return ip.errState.lastErrorCode, ip.errState.lastErrorLine
}

// State returns the engine state after the last batch.
func (ip *Interpreter) State() RunState {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	return ip.state
}

// RunBatch executes up to limit statements (engine default when limit <= 0)
// and returns the resulting state. All waiting is modeled as returned state,
// never as a blocking call.
func (ip *Interpreter) RunBatch(limit int) RunState {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	if limit <= 0 {
		limit = ip.batchSize
	}
	if !ip.running {
		return ip.state
	}
	if ip.pendingInput != nil {
		ip.state = StateAwaitInput
		return ip.state
	}
	if !ip.sleepUntil.IsZero() {
		if time.Now().Before(ip.sleepUntil) {
			ip.state = StateSleeping
			return ip.state
		}
		ip.sleepUntil = time.Time{}
	}

	for i := 0; i < limit && ip.running; i++ {
		if ip.pc >= len(ip.prog.Statements) {
			ip.finishRun()
			break
		}
		ip.stepBudget = ip.maxFunctionSteps
		if err := ip.step(); err != nil {
			ip.handleFault(err)
			break
		}
		if ip.pendingInput != nil {
			ip.state = StateAwaitInput
			break
		}
		if !ip.sleepUntil.IsZero() {
			ip.state = StateSleeping
			break
		}
	}
	if ip.running && ip.state == StateRunning && ip.pc >= len(ip.prog.Statements) {
		ip.finishRun()
	}
	return ip.state
}

func (ip *Interpreter) finishRun() {
	ip.flushPrint()
	ip.running = false
	ip.state = StateFinished
	basicDebugLog("run finished")
}

// step executes exactly one statement. The PC is advanced before dispatch so
// fall-through is the default and handlers redirect by assigning ip.pc.
func (ip *Interpreter) step() error {
	st := &ip.prog.Statements[ip.pc]
	ip.pc++

	if ip.ifSkipLevel >= 0 {
		return ip.stepSkipping(st)
	}
	return ip.dispatch(st)
}

func (ip *Interpreter) dispatch(st *Statement) error {
	if handler, ok := ip.handlers[st.Keyword]; ok {
		if err := handler(st); err != nil {
			return ip.annotate(err, st)
		}
		return nil
	}

	// No registered keyword: an implicit assignment or a bare SUB call.
	if hasTopLevelAssign(st.Text) {
		if err := ip.execAssign(st.Text); err != nil {
			return ip.annotate(err, st)
		}
		return nil
	}
	name := ip.comp.canonicalName(st.Keyword)
	if proc, ok := ip.procs[name]; ok && proc.Kind == ProcSub {
		if err := ip.callSub(proc, st.Args); err != nil {
			return ip.annotate(err, st)
		}
		return nil
	}
	return ip.annotate(NewBasicErrorf(FaultEvaluation, ErrCodeSyntax, "unknown statement %s", st.Keyword), st)
}

// annotate stamps the statement position onto a fault for ERL and reporting.
func (ip *Interpreter) annotate(err error, st *Statement) error {
	be := asBasicError(err)
	if be.PC < 0 {
		be.PC = st.PC
		be.Line = st.Line
	}
	return be
}

// stepSkipping consumes statements inside a false IF branch. Nested block
// openers still push placeholder frames so their closers keep the nesting
// counts right, without evaluating any condition.
func (ip *Interpreter) stepSkipping(st *Statement) error {
	switch st.Keyword {
	case "IF":
		if !st.SingleLineIf {
			ip.pushIfLevel(true)
		}
	case "ELSEIF":
		if ip.ifLevel == ip.ifSkipLevel && !ip.branchTaken[ip.ifLevel-1] {
			cond, _, err := splitIfCondition(st.Args)
			if err != nil {
				return ip.annotate(err, st)
			}
			v, err := ip.evalExpr(cond)
			if err != nil {
				return ip.annotate(err, st)
			}
			if v.IsTrue() {
				ip.branchTaken[ip.ifLevel-1] = true
				ip.ifSkipLevel = -1
			}
		}
	case "ELSE":
		if ip.ifLevel == ip.ifSkipLevel && !ip.branchTaken[ip.ifLevel-1] {
			ip.branchTaken[ip.ifLevel-1] = true
			ip.ifSkipLevel = -1
		}
	case "END IF":
		if ip.ifLevel == ip.ifSkipLevel {
			ip.ifSkipLevel = -1
		}
		ip.ifLevel--
		if ip.ifLevel < 0 {
			return ip.annotate(NewBasicErrorf(FaultStructural, ErrCodeSyntax, "END IF without IF"), st)
		}
	case "FOR":
		ip.forStack = append(ip.forStack, forFrame{placeholder: true})
	case "NEXT":
		if n := len(ip.forStack); n > 0 && ip.forStack[n-1].placeholder {
			ip.forStack = ip.forStack[:n-1]
		}
	case "DO":
		ip.doStack = append(ip.doStack, doFrame{kind: doLoop, placeholder: true})
	case "LOOP":
		if n := len(ip.doStack); n > 0 && ip.doStack[n-1].placeholder {
			ip.doStack = ip.doStack[:n-1]
		}
	case "WHILE":
		ip.doStack = append(ip.doStack, doFrame{kind: doWhileWend, placeholder: true})
	case "WEND":
		if n := len(ip.doStack); n > 0 && ip.doStack[n-1].placeholder {
			ip.doStack = ip.doStack[:n-1]
		}
	case "SELECT CASE":
		ip.selectStack = append(ip.selectStack, selectFrame{placeholder: true})
	case "END SELECT":
		if n := len(ip.selectStack); n > 0 && ip.selectStack[n-1].placeholder {
			ip.selectStack = ip.selectStack[:n-1]
		}
	}
	return nil
}

// pushIfLevel opens a block IF level. taken marks the level as already
// satisfied (used for blocks opened while skipping, whose clauses must all
// stay dark).
func (ip *Interpreter) pushIfLevel(taken bool) {
	ip.ifLevel++
	for len(ip.branchTaken) < ip.ifLevel {
		ip.branchTaken = append(ip.branchTaken, false)
	}
	ip.branchTaken[ip.ifLevel-1] = taken
}

// handleFault routes a fault through the registered ON ERROR handler, or
// halts the run surfacing statement, line and description.
func (ip *Interpreter) handleFault(err error) {
	be := asBasicError(err)
	if ip.errState.handlerLabel != "" && !ip.errState.inHandler {
		target, ok := ip.prog.Labels[ip.errState.handlerLabel]
		if ok {
			ip.errState.lastErrorCode = be.Code
			ip.errState.lastErrorLine = be.Line
			ip.errState.resumePC = be.PC
			ip.errState.inHandler = true
			ip.pc = target
			basicDebugLog("fault %d routed to handler %s", be.Code, ip.errState.handlerLabel)
			return
		}
	}
	ip.flushPrint()
	ip.errState.lastErrorCode = be.Code
	ip.errState.lastErrorLine = be.Line
	ip.running = false
	ip.state = StateFaulted
	statement := ""
	if be.PC >= 0 && be.PC < len(ip.prog.Statements) {
		statement = ip.prog.Statements[be.PC].Text
	}
	logger.Error(logger.AreaBasic, "unhandled fault: %s (code %d) at %q", be.Message, be.Code, statement)
	ip.sendMessage(shared.Message{Type: shared.MessageTypeError, Content: be.Error()})
}

// sendMessage queues a message for the host without ever blocking the
// engine; a full channel drops the message.
func (ip *Interpreter) sendMessage(msg shared.Message) bool {
	if msg.SessionID == "" {
		msg.SessionID = ip.sessionID
	}
	select {
	case ip.OutputChan <- msg:
		return true
	default:
		return false
	}
}

// PressKey records a key-down event from the host; INKEY$ consumes it.
func (ip *Interpreter) PressKey(key string) {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	ip.keyStates[key] = true
	ip.lastKey = key
}

// ReleaseKey records a key-up event from the host.
func (ip *Interpreter) ReleaseKey(key string) {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	ip.keyStates[key] = false
}

// isCallableName backs the compiler's call/array disambiguation: builtins,
// FN-prefixed inline functions and FUNCTION procedures are callable.
func (ip *Interpreter) isCallableName(raw string) bool {
	name := ip.comp.canonicalName(raw)
	if _, ok := builtinFunctions[name]; ok {
		return true
	}
	if strings.HasPrefix(name, "FN") && len(name) > 2 {
		return true
	}
	if proc, ok := ip.procs[name]; ok && proc.Kind == ProcFunction {
		return true
	}
	return false
}

// --- Variable store ---

// setVariable writes a canonical name, coercing to the name's kind (or to
// an existing typed binding from DIM ... AS). Assigning a constant faults.
func (ip *Interpreter) setVariable(name string, v Value) error {
	// A dotted name whose first segment is a record variable is a field write.
	if dot := strings.IndexByte(name, '.'); dot > 0 {
		if base, ok := ip.variables[name[:dot]]; ok && base.Kind == KindRecord && base.Rec != nil {
			return base.Rec.SetField(ip.recordTypes, name[dot+1:], v)
		}
	}
	if _, isConst := ip.constants[name]; isConst {
		return NewBasicErrorf(FaultRuntime, ErrCodeDuplicateDef, "cannot assign to constant %s", name)
	}
	existing, exists := ip.variables[name]
	if exists {
		switch existing.Kind {
		case KindArray:
			return NewBasicError(FaultType, ErrCodeTypeMismatch)
		case KindRecord:
			if v.Kind != KindRecord {
				return NewBasicError(FaultType, ErrCodeTypeMismatch)
			}
			ip.variables[name] = v
			return nil
		}
	}
	kind := kindForName(name)
	if exists && existing.Kind.isNumeric() && v.IsNumeric() {
		kind = existing.Kind
	}
	cv, err := coerceKind(v, kind)
	if err != nil {
		return err
	}
	ip.bindVariable(name, cv)
	return nil
}

// bindVariable stores a value without coercion, maintaining the name-set
// fingerprint. Used internally for arrays, records and call binding.
func (ip *Interpreter) bindVariable(name string, v Value) {
	if _, exists := ip.variables[name]; !exists {
		ip.nameSetHash ^= nameHash('v', name)
	}
	ip.variables[name] = v
}

func (ip *Interpreter) unsetVariable(name string) {
	if _, exists := ip.variables[name]; exists {
		ip.nameSetHash ^= nameHash('v', name)
		delete(ip.variables, name)
	}
}

func (ip *Interpreter) defineConstant(name string, v Value) error {
	if _, exists := ip.constants[name]; exists {
		return NewBasicErrorf(FaultRuntime, ErrCodeDuplicateDef, "constant %s already defined", name)
	}
	ip.constants[name] = v
	ip.nameSetHash ^= nameHash('c', name)
	return nil
}

// arrayFor returns the array bound to name, implicitly dimensioning it with
// an upper bound of 10 per dimension on first use.
func (ip *Interpreter) arrayFor(name string, dims int) (*Array, error) {
	if v, ok := ip.variables[name]; ok {
		if v.Kind != KindArray || v.Arr == nil {
			return nil, NewBasicError(FaultType, ErrCodeTypeMismatch)
		}
		if len(v.Arr.Lower) != dims {
			return nil, NewBasicError(FaultRuntime, ErrCodeSubscript)
		}
		return v.Arr, nil
	}
	lower := make([]int, dims)
	upper := make([]int, dims)
	for i := range upper {
		upper[i] = 10
	}
	elemKind := kindForName(name)
	arr, err := NewArray(elemKind, "", lower, upper)
	if err != nil {
		return nil, err
	}
	ip.bindVariable(name, Value{Kind: KindArray, Arr: arr})
	return arr, nil
}

// Variable reads a variable by raw name. Exposed for hosts and tests.
func (ip *Interpreter) Variable(name string) Value {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	return ip.env.lookup(ip.comp.canonicalName(name))
}

// hasTopLevelAssign reports an '=' outside strings, parens and brackets,
// which marks an implicit assignment statement.
func hasTopLevelAssign(text string) bool {
	depth := 0
	inString := false
	for i := 0; i < len(text); i++ {
		switch text[i] {
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
		case '=':
			if !inString && depth == 0 {
				return true
			}
		case '<', '>':
			if !inString && depth == 0 {
				// Comparison, not assignment.
				if i+1 < len(text) && text[i+1] == '=' {
					return false
				}
			}
		}
	}
	return false
}
