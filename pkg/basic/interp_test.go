package basic

import (
	"testing"
	"time"

	"github.com/antibyte/retrobasic/pkg/shared"
)

func TestSubCallBareAndCallForm(t *testing.T) {
	ip := runSource(t, `
GREET 3
CALL GREET(4)
END
SUB GREET(N)
TOTAL = TOTAL + N
END SUB
`)
	if got := numVar(t, ip, "TOTAL"); got != 7 {
		t.Errorf("TOTAL = %v, want 7", got)
	}
}

func TestSubScalarArgumentsPassByValue(t *testing.T) {
	ip := runSource(t, `
X = 5
BUMP X
END
SUB BUMP(X)
X = X + 1
SEEN = X
END SUB
`)
	if numVar(t, ip, "X") != 5 {
		t.Error("caller scalar changed by the callee")
	}
	if numVar(t, ip, "SEEN") != 6 {
		t.Error("parameter did not receive the argument value")
	}
}

func TestSubArrayArgumentsAlias(t *testing.T) {
	ip := runSource(t, `
DIM A(5)
FILL A
X = A(1)
END
SUB FILL(V)
V(1) = 99
END SUB
`)
	if got := numVar(t, ip, "X"); got != 99 {
		t.Errorf("A(1) = %v after call, want 99 (array must alias)", got)
	}
}

func TestSubParameterShadowsGlobal(t *testing.T) {
	ip := runSource(t, `
N = 50
PROBE 7
AFTER = N
END
SUB PROBE(N)
INSIDE = N
END SUB
`)
	if numVar(t, ip, "INSIDE") != 7 {
		t.Error("parameter binding wrong inside SUB")
	}
	if numVar(t, ip, "AFTER") != 50 {
		t.Error("global not restored after SUB returns")
	}
}

func TestFunctionResultVariable(t *testing.T) {
	ip := runSource(t, `
Y = DOUBLE(21)
END
FUNCTION DOUBLE(N)
DOUBLE = N * 2
END FUNCTION
`)
	if got := numVar(t, ip, "Y"); got != 42 {
		t.Errorf("Y = %v, want 42", got)
	}
}

func TestFunctionRecursion(t *testing.T) {
	ip := runSource(t, `
F = FACT(5)
END
FUNCTION FACT(N)
IF N <= 1 THEN
FACT = 1
ELSE
FACT = N * FACT(N - 1)
END IF
END FUNCTION
`)
	if got := numVar(t, ip, "F"); got != 120 {
		t.Errorf("FACT(5) = %v, want 120", got)
	}
}

func TestFunctionFallingOffEndReturnsZero(t *testing.T) {
	ip := runSource(t, `
Y = NOTHING(1)
END
FUNCTION NOTHING(N)
X = N
END FUNCTION
`)
	if got := numVar(t, ip, "Y"); got != 0 {
		t.Errorf("Y = %v, want 0", got)
	}
}

func TestProcedureBodyIsSkippedInline(t *testing.T) {
	ip := runSource(t, `
R = 1
SUB TRAP
R = 2
END SUB
DONE = 1
`)
	if numVar(t, ip, "R") != 1 {
		t.Error("procedure body executed by fall-through")
	}
	if numVar(t, ip, "DONE") != 1 {
		t.Error("execution did not continue past END SUB")
	}
}

func TestDataReadRestore(t *testing.T) {
	ip := runSource(t, `
DATA 10, 20, "thirty"
READ A, B, C$
RESTORE
READ D
`)
	if numVar(t, ip, "A") != 10 || numVar(t, ip, "B") != 20 {
		t.Error("numeric data read wrong")
	}
	if strVar(t, ip, "C$") != "thirty" {
		t.Error("string data read wrong")
	}
	if numVar(t, ip, "D") != 10 {
		t.Error("RESTORE did not rewind the cursor")
	}
}

func TestRestoreToLabel(t *testing.T) {
	ip := runSource(t, `
DATA 1, 2
second:
DATA 7, 8
READ A
RESTORE second
READ B
`)
	if numVar(t, ip, "A") != 1 {
		t.Error("first READ wrong")
	}
	if got := numVar(t, ip, "B"); got != 7 {
		t.Errorf("READ after RESTORE label = %v, want 7", got)
	}
}

func TestDataItemNumericKinds(t *testing.T) {
	cases := []struct {
		item string
		kind ValueKind
		num  float64
	}{
		{"42", KindInteger, 42},
		{"-7", KindInteger, -7},
		{"70000", KindLong, 70000},
		{"3000000000", KindDouble, 3000000000},
		{"4.5", KindDouble, 4.5},
		{"1E3", KindDouble, 1000},
	}
	for _, c := range cases {
		v := parseDataItem(c.item)
		if v.Kind != c.kind || v.Num != c.num {
			t.Errorf("parseDataItem(%q) = kind %d num %v, want kind %d num %v",
				c.item, v.Kind, v.Num, c.kind, c.num)
		}
	}
	if v := parseDataItem(`"12"`); v.Kind != KindString || v.Str != "12" {
		t.Errorf("quoted datum = kind %d %q, want string \"12\"", v.Kind, v.Str)
	}
}

func TestReadPastEndFaults(t *testing.T) {
	ip := runFaulting(t, `
DATA 1
READ A, B
`)
	wantFault(t, ip, ErrCodeOutOfData)
}

func TestDimAndSubscriptBounds(t *testing.T) {
	ip := runSource(t, `
DIM A(2, 3)
A(2, 3) = 6
X = A(2, 3)
`)
	if numVar(t, ip, "X") != 6 {
		t.Error("2-dimensional element lost")
	}

	ip = runFaulting(t, "DIM A(2)\nA(3) = 1")
	wantFault(t, ip, ErrCodeSubscript)
}

func TestDimWithExplicitLowerBound(t *testing.T) {
	ip := runSource(t, `
DIM A(5 TO 8)
A(5) = 1
A(8) = 2
X = A(5) + A(8)
`)
	if numVar(t, ip, "X") != 3 {
		t.Error("TO bounds not honored")
	}

	ip = runFaulting(t, "DIM A(5 TO 8)\nA(4) = 1")
	wantFault(t, ip, ErrCodeSubscript)
}

func TestImplicitDimUpperBoundTen(t *testing.T) {
	ip := runSource(t, "A(10) = 5\nX = A(10)")
	if numVar(t, ip, "X") != 5 {
		t.Error("implicit array not usable up to index 10")
	}

	ip = runFaulting(t, "A(11) = 5")
	wantFault(t, ip, ErrCodeSubscript)
}

func TestDuplicateDimFaults(t *testing.T) {
	ip := runFaulting(t, "DIM A(5)\nDIM A(5)")
	wantFault(t, ip, ErrCodeDuplicateDef)
}

func TestRedimReplacesArray(t *testing.T) {
	ip := runSource(t, `
DIM A(5)
A(1) = 9
REDIM A(20)
A(20) = 3
X = A(1) + A(20)
`)
	if got := numVar(t, ip, "X"); got != 3 {
		t.Errorf("X = %v, want 3 (REDIM starts fresh)", got)
	}
}

func TestIntegerArrayCoercesElements(t *testing.T) {
	ip := runSource(t, "DIM A%(3)\nA%(1) = 2.6\nX = A%(1)")
	if got := numVar(t, ip, "X"); got != 3 {
		t.Errorf("A%%(1) = %v, want 3", got)
	}
}

func TestConstCannotBeReassigned(t *testing.T) {
	ip := runSource(t, "CONST LIMIT = 10\nX = LIMIT * 2")
	if numVar(t, ip, "X") != 20 {
		t.Error("constant not readable")
	}

	ip = runFaulting(t, "CONST LIMIT = 10\nLIMIT = 11")
	wantFault(t, ip, ErrCodeDuplicateDef)
}

func TestSwap(t *testing.T) {
	ip := runSource(t, "A = 1\nB = 2\nSWAP A, B")
	if numVar(t, ip, "A") != 2 || numVar(t, ip, "B") != 1 {
		t.Error("SWAP did not exchange values")
	}
}

func TestRecordTypeFields(t *testing.T) {
	ip := runSource(t, `
TYPE POINT
X AS SINGLE
Y AS SINGLE
END TYPE
DIM P AS POINT
P.X = 3
P.Y = 4
D = SQR(P.X * P.X + P.Y * P.Y)
`)
	if got := numVar(t, ip, "D"); got != 5 {
		t.Errorf("D = %v, want 5", got)
	}
}

func TestArrayOfRecords(t *testing.T) {
	ip := runSource(t, `
TYPE ITEM
NAME AS STRING
COUNT AS INTEGER
END TYPE
DIM STOCK(3) AS ITEM
STOCK(1).NAME = "apple"
STOCK(1).COUNT = 12
N$ = STOCK(1).NAME
C = STOCK(1).COUNT
`)
	if strVar(t, ip, "N$") != "apple" {
		t.Error("record string field lost in array element")
	}
	if numVar(t, ip, "C") != 12 {
		t.Error("record numeric field lost in array element")
	}
}

func TestUnknownRecordFieldFaults(t *testing.T) {
	ip := runFaulting(t, `
TYPE POINT
X AS SINGLE
END TYPE
DIM P AS POINT
P.Z = 1
`)
	wantFault(t, ip, ErrCodeTypeMismatch)
}

func TestInputRoundTrip(t *testing.T) {
	ip := New(nil)
	if err := ip.LoadProgram(`INPUT "Name"; N$, AGE` + "\nGREETED = 1"); err != nil {
		t.Fatalf("LoadProgram: %v", err)
	}
	if err := ip.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if state := ip.RunBatch(0); state != StateAwaitInput {
		t.Fatalf("state = %d, want AwaitInput", state)
	}
	// Feeding input while nothing else is pending resumes the run.
	if err := ip.ProvideInput("Ada, 36"); err != nil {
		t.Fatalf("ProvideInput: %v", err)
	}
	if state := ip.RunBatch(0); state != StateFinished {
		t.Fatalf("state = %d, want Finished", state)
	}
	if strVar(t, ip, "N$") != "Ada" {
		t.Error("string input field wrong")
	}
	if numVar(t, ip, "AGE") != 36 {
		t.Error("numeric input field wrong")
	}
	if numVar(t, ip, "GREETED") != 1 {
		t.Error("run did not continue after input")
	}
}

func TestInputPromptMessage(t *testing.T) {
	ip := New(nil)
	if err := ip.LoadProgram(`INPUT "How many"; N`); err != nil {
		t.Fatalf("LoadProgram: %v", err)
	}
	if err := ip.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ip.RunBatch(0)

	found := false
	for {
		var msg shared.Message
		select {
		case msg = <-ip.OutputChan:
		default:
			if !found {
				t.Fatal("no prompt message emitted")
			}
			return
		}
		if msg.Type == shared.MessageTypePrompt {
			found = true
			if msg.Content != "How many? " {
				t.Errorf("prompt = %q, want %q", msg.Content, "How many? ")
			}
		}
	}
}

func TestLineInputKeepsCommas(t *testing.T) {
	ip := New(nil)
	if err := ip.LoadProgram("LINE INPUT S$"); err != nil {
		t.Fatalf("LoadProgram: %v", err)
	}
	if err := ip.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if state := ip.RunBatch(0); state != StateAwaitInput {
		t.Fatalf("state = %d, want AwaitInput", state)
	}
	if err := ip.ProvideInput("a, b, c"); err != nil {
		t.Fatalf("ProvideInput: %v", err)
	}
	ip.RunBatch(0)
	if got := strVar(t, ip, "S$"); got != "a, b, c" {
		t.Errorf("S$ = %q, want the raw line", got)
	}
}

func TestProvideInputWithoutPendingRequest(t *testing.T) {
	ip := New(nil)
	if err := ip.ProvideInput("x"); err != ErrInputNotExpected {
		t.Errorf("err = %v, want ErrInputNotExpected", err)
	}
}

func TestPrintOutput(t *testing.T) {
	ip := runSource(t, `
PRINT "HELLO"
PRINT "A"; "B"
PRINT 5
PRINT -3
`)
	lines := drainText(ip)
	want := []string{"HELLO", "AB", " 5", "-3"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines %q, want %d", len(lines), lines, len(want))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestPrintTrailingSemicolonKeepsLineOpen(t *testing.T) {
	ip := New(nil)
	if err := ip.LoadProgram(`PRINT "A";` + "\n" + `PRINT "B"`); err != nil {
		t.Fatalf("LoadProgram: %v", err)
	}
	if err := ip.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ip.RunBatch(0)
	lines := drainTextRaw(ip)
	if len(lines) != 2 {
		t.Fatalf("got %d messages %v, want 2", len(lines), lines)
	}
	if !lines[0].NoNewline || lines[0].Content != "A" {
		t.Errorf("first message %+v should be open-ended %q", lines[0], "A")
	}
	if lines[1].NoNewline || lines[1].Content != "B" {
		t.Errorf("second message %+v should close the line", lines[1])
	}
}

// drainTextRaw collects full text messages including the NoNewline flag.
func drainTextRaw(ip *Interpreter) []shared.Message {
	var msgs []shared.Message
	for {
		select {
		case msg := <-ip.OutputChan:
			if msg.Type == shared.MessageTypeText {
				msgs = append(msgs, msg)
			}
		default:
			return msgs
		}
	}
}

func TestFileRoundTrip(t *testing.T) {
	fs := newFakeFS()
	ip := New(fs)
	runOn(t, ip, `
OPEN "out.dat" FOR OUTPUT AS #1
PRINT #1, "line one"
PRINT #1, 42
CLOSE #1
OPEN "out.dat" FOR INPUT AS #2
LINE INPUT #2, A$
INPUT #2, N
ATEOF = EOF(2)
CLOSE #2
`)
	if strVar(t, ip, "A$") != "line one" {
		t.Error("first line read back wrong")
	}
	if numVar(t, ip, "N") != 42 {
		t.Error("numeric field read back wrong")
	}
	if numVar(t, ip, "ATEOF") != -1 {
		t.Error("EOF should be true after the last line")
	}
}

func TestInputFromFileConsumesFieldsWithinLine(t *testing.T) {
	fs := newFakeFS()
	fs.files["NUMS.DAT"] = "1, 2, 3\n4\n"
	ip := New(fs)
	runOn(t, ip, `
OPEN "nums.dat" FOR INPUT AS #1
INPUT #1, A, B
INPUT #1, C, D
CLOSE #1
`)
	if numVar(t, ip, "A") != 1 || numVar(t, ip, "B") != 2 {
		t.Error("fields within the first line misread")
	}
	if numVar(t, ip, "C") != 3 || numVar(t, ip, "D") != 4 {
		t.Error("cursor did not advance across lines correctly")
	}
}

func TestInputPastEndOfFileFaults(t *testing.T) {
	fs := newFakeFS()
	fs.files["ONE.DAT"] = "1\n"
	ip := New(fs)
	runFaultingOn(t, ip, `
OPEN "one.dat" FOR INPUT AS #1
INPUT #1, A
INPUT #1, B
`)
	wantFault(t, ip, ErrCodeInputPastEnd)
}

func TestOpenMissingFileFaults(t *testing.T) {
	fs := newFakeFS()
	ip := New(fs)
	runFaultingOn(t, ip, `OPEN "nope.dat" FOR INPUT AS #1`)
	wantFault(t, ip, ErrCodeFileNotFound)
}

func TestAppendExtendsFile(t *testing.T) {
	fs := newFakeFS()
	fs.files["LOG.DAT"] = "first\n"
	ip := New(fs)
	runOn(t, ip, `
OPEN "log.dat" FOR APPEND AS #1
PRINT #1, "second"
CLOSE #1
`)
	if got := fs.files["LOG.DAT"]; got != "first\nsecond\n" {
		t.Errorf("file content = %q", got)
	}
}

func TestFileStatementsWithoutFilesystemFault(t *testing.T) {
	ip := runFaulting(t, `OPEN "x" FOR OUTPUT AS #1`)
	wantFault(t, ip, ErrCodeDeviceIO)
}

func TestChainKeepsOnlyCommonVariables(t *testing.T) {
	fs := newFakeFS()
	fs.files["NEXT.BAS"] = "COMMON SCORE\nKEPT = SCORE\nLOST = TEMP"
	ip := New(fs)
	runOn(t, ip, `
COMMON SCORE
SCORE = 77
TEMP = 5
CHAIN "next.bas"
`)
	if ip.State() != StateFinished {
		t.Fatalf("state = %d, want Finished", ip.State())
	}
	if got := numVar(t, ip, "KEPT"); got != 77 {
		t.Errorf("COMMON variable = %v, want 77", got)
	}
	if numVar(t, ip, "LOST") != 0 {
		t.Error("non-COMMON variable survived CHAIN")
	}
}

func TestSleepIsAWaitState(t *testing.T) {
	ip := New(nil)
	if err := ip.LoadProgram("SLEEP 0.02\nDONE = 1"); err != nil {
		t.Fatalf("LoadProgram: %v", err)
	}
	if err := ip.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if state := ip.RunBatch(0); state != StateSleeping {
		t.Fatalf("state = %d, want Sleeping", state)
	}
	deadline := time.Now().Add(time.Second)
	for ip.RunBatch(0) == StateSleeping {
		if time.Now().After(deadline) {
			t.Fatal("still sleeping after a second")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if ip.State() != StateFinished {
		t.Fatalf("state = %d, want Finished", ip.State())
	}
	if numVar(t, ip, "DONE") != 1 {
		t.Error("statement after SLEEP did not run")
	}
}

func TestStopHaltsRun(t *testing.T) {
	ip := New(nil)
	if err := ip.LoadProgram("DO\nN = N + 1\nLOOP"); err != nil {
		t.Fatalf("LoadProgram: %v", err)
	}
	if err := ip.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if state := ip.RunBatch(10); state != StateRunning {
		t.Fatalf("state = %d, want Running", state)
	}
	ip.Stop()
	if ip.IsRunning() {
		t.Error("IsRunning true after Stop")
	}
	if state := ip.RunBatch(0); state != StateIdle {
		t.Errorf("state = %d, want Idle after Stop", state)
	}
}

func TestStartWithoutProgram(t *testing.T) {
	ip := New(nil)
	if err := ip.Start(); err != ErrNoProgramLoaded {
		t.Errorf("err = %v, want ErrNoProgramLoaded", err)
	}
}

func TestRunRestartsAndResetsState(t *testing.T) {
	// The flag file distinguishes the passes because variables do not
	// survive RUN; only the filesystem does.
	fs := newFakeFS()
	ip := New(fs)
	runOn(t, ip, `
ON ERROR GOTO fresh
OPEN "flag.dat" FOR INPUT AS #1
CLOSE #1
SECOND = MARKER + 1
END
fresh:
MARKER = 9
OPEN "flag.dat" FOR OUTPUT AS #2
CLOSE #2
RUN
`)
	if ip.State() != StateFinished {
		t.Fatalf("state = %d, want Finished", ip.State())
	}
	if got := numVar(t, ip, "SECOND"); got != 1 {
		t.Errorf("SECOND = %v, want 1 (RUN must reset variables)", got)
	}
}

func TestBatchLimitRespected(t *testing.T) {
	ip := New(nil)
	if err := ip.LoadProgram("FOR I = 1 TO 100\nX = I\nNEXT I"); err != nil {
		t.Fatalf("LoadProgram: %v", err)
	}
	if err := ip.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if state := ip.RunBatch(5); state != StateRunning {
		t.Fatalf("state = %d, want Running after a tiny batch", state)
	}
	if numVar(t, ip, "X") >= 100 {
		t.Error("batch limit ignored")
	}
}
