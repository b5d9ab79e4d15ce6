package basic

import "testing"

func TestForNextSum(t *testing.T) {
	ip := runSource(t, `
T = 0
FOR I = 1 TO 5
T = T + I
NEXT I
`)
	if got := numVar(t, ip, "T"); got != 15 {
		t.Errorf("T = %v, want 15", got)
	}
	// Counter holds the first value past the limit after the loop ends.
	if got := numVar(t, ip, "I"); got != 6 {
		t.Errorf("I = %v, want 6", got)
	}
}

func TestForStepDown(t *testing.T) {
	ip := runSource(t, `
T = 0
FOR I = 10 TO 2 STEP -2
T = T + I
NEXT
`)
	if got := numVar(t, ip, "T"); got != 30 {
		t.Errorf("T = %v, want 30", got)
	}
}

func TestForZeroIterations(t *testing.T) {
	ip := runSource(t, `
T = 0
FOR I = 5 TO 1
T = T + 1
NEXT I
DONE = 1
`)
	if numVar(t, ip, "T") != 0 {
		t.Error("body of a zero-iteration loop ran")
	}
	if numVar(t, ip, "DONE") != 1 {
		t.Error("execution did not continue past NEXT")
	}
}

func TestNextMultipleVariables(t *testing.T) {
	ip := runSource(t, `
T = 0
FOR I = 1 TO 3
FOR J = 1 TO 3
T = T + 1
NEXT J, I
`)
	if got := numVar(t, ip, "T"); got != 9 {
		t.Errorf("T = %v, want 9", got)
	}
}

func TestExitFor(t *testing.T) {
	ip := runSource(t, `
T = 0
FOR I = 1 TO 100
IF I > 3 THEN EXIT FOR
T = T + I
NEXT I
`)
	if got := numVar(t, ip, "T"); got != 6 {
		t.Errorf("T = %v, want 6", got)
	}
}

func TestExitForInsideBlockIf(t *testing.T) {
	ip := runSource(t, `
T = 0
FOR I = 1 TO 10
IF I = 3 THEN
EXIT FOR
END IF
T = T + I
NEXT I
DONE = 1
`)
	if got := numVar(t, ip, "T"); got != 3 {
		t.Errorf("T = %v, want 3", got)
	}
	if numVar(t, ip, "DONE") != 1 {
		t.Error("execution did not continue past NEXT")
	}

	// The abandoned IF level must not absorb a stray END IF after the loop.
	ip = runFaulting(t, `
FOR I = 1 TO 10
IF I = 1 THEN
EXIT FOR
END IF
NEXT I
END IF
`)
	wantFault(t, ip, ErrCodeSyntax)
}

func TestExitDoInsideBlockIf(t *testing.T) {
	ip := runSource(t, `
N = 0
DO
N = N + 1
IF N = 4 THEN
EXIT DO
END IF
LOOP
DONE = 1
`)
	if got := numVar(t, ip, "N"); got != 4 {
		t.Errorf("N = %v, want 4", got)
	}
	if numVar(t, ip, "DONE") != 1 {
		t.Error("execution did not continue past LOOP")
	}
}

func TestNextNameMismatchFaults(t *testing.T) {
	ip := runFaulting(t, `
FOR I = 1 TO 3
NEXT J
`)
	wantFault(t, ip, ErrCodeNextWithoutFor)
}

func TestDoLoopUntil(t *testing.T) {
	ip := runSource(t, `
N = 0
DO
N = N + 1
LOOP UNTIL N >= 5
`)
	if got := numVar(t, ip, "N"); got != 5 {
		t.Errorf("N = %v, want 5", got)
	}
}

func TestDoWhilePreconditionFalseSkipsBody(t *testing.T) {
	ip := runSource(t, `
N = 0
DO WHILE N > 0
N = N + 1
LOOP
DONE = 1
`)
	if numVar(t, ip, "N") != 0 {
		t.Error("body ran despite false precondition")
	}
	if numVar(t, ip, "DONE") != 1 {
		t.Error("execution did not continue past LOOP")
	}
}

func TestExitDo(t *testing.T) {
	ip := runSource(t, `
N = 0
DO
N = N + 1
IF N = 3 THEN EXIT DO
LOOP
`)
	if got := numVar(t, ip, "N"); got != 3 {
		t.Errorf("N = %v, want 3", got)
	}
}

func TestWhileWend(t *testing.T) {
	ip := runSource(t, `
N = 0
WHILE N < 4
N = N + 1
WEND
`)
	if got := numVar(t, ip, "N"); got != 4 {
		t.Errorf("N = %v, want 4", got)
	}
}

func TestIfElseIfChain(t *testing.T) {
	ip := runSource(t, `
X = 15
IF X < 10 THEN
R = 1
ELSEIF X < 20 THEN
R = 2
ELSE
R = 3
END IF
`)
	if got := numVar(t, ip, "R"); got != 2 {
		t.Errorf("R = %v, want 2", got)
	}
}

func TestIfTakenBranchSkipsElse(t *testing.T) {
	ip := runSource(t, `
X = 1
IF X = 1 THEN
R = 1
ELSE
R = 2
END IF
`)
	if got := numVar(t, ip, "R"); got != 1 {
		t.Errorf("R = %v, want 1", got)
	}
}

func TestNestedBlockIf(t *testing.T) {
	ip := runSource(t, `
X = 5
IF X > 0 THEN
IF X > 10 THEN
R = 1
ELSE
R = 2
END IF
ELSE
R = 3
END IF
`)
	if got := numVar(t, ip, "R"); got != 2 {
		t.Errorf("R = %v, want 2", got)
	}
}

func TestSingleLineIf(t *testing.T) {
	ip := runSource(t, `
X = 1
IF X = 1 THEN A = 10: B = 20 ELSE A = 1
IF X = 2 THEN C = 1 ELSE C = 2
`)
	if numVar(t, ip, "A") != 10 || numVar(t, ip, "B") != 20 {
		t.Error("THEN branch statements did not all run")
	}
	if numVar(t, ip, "C") != 2 {
		t.Error("ELSE branch did not run")
	}
}

func TestSingleLineIfBareNumberIsGoto(t *testing.T) {
	ip := runSource(t, `
10 X = 1
20 IF X = 1 THEN 50
30 R = 1
40 END
50 R = 2
`)
	if got := numVar(t, ip, "R"); got != 2 {
		t.Errorf("R = %v, want 2", got)
	}
}

func TestSingleLineIfDoesNotOpenBlock(t *testing.T) {
	// The IF inside the skipped branch is single-line and must not be
	// mistaken for a block opener while scanning for END IF.
	ip := runSource(t, `
X = 0
IF X = 1 THEN
IF X = 2 THEN R = 9
R = 8
END IF
R = 7
`)
	if got := numVar(t, ip, "R"); got != 7 {
		t.Errorf("R = %v, want 7", got)
	}
}

func TestSelectCaseFirstMatchWins(t *testing.T) {
	ip := runSource(t, `
X = 15
SELECT CASE X
CASE IS < 10
R$ = "small"
CASE 10 TO 20
R$ = "medium"
CASE IS < 100
R$ = "wrong"
CASE ELSE
R$ = "large"
END SELECT
`)
	if got := strVar(t, ip, "R$"); got != "medium" {
		t.Errorf("R$ = %q, want %q", got, "medium")
	}
}

func TestSelectCaseValueListAndElse(t *testing.T) {
	ip := runSource(t, `
X = 7
SELECT CASE X
CASE 1, 2, 3
R = 1
CASE ELSE
R = 2
END SELECT
Y = 2
SELECT CASE Y
CASE 1, 2, 3
S = 1
CASE ELSE
S = 2
END SELECT
`)
	if numVar(t, ip, "R") != 2 {
		t.Error("CASE ELSE not taken for unmatched value")
	}
	if numVar(t, ip, "S") != 1 {
		t.Error("value list match failed")
	}
}

func TestSelectCaseNoMatchFallsThrough(t *testing.T) {
	ip := runSource(t, `
X = 99
SELECT CASE X
CASE 1
R = 1
CASE 2
R = 2
END SELECT
DONE = 1
`)
	if numVar(t, ip, "DONE") != 1 {
		t.Error("execution did not continue past END SELECT")
	}
	if numVar(t, ip, "R") != 0 {
		t.Error("an arm ran despite no match")
	}
}

func TestGotoAndLabels(t *testing.T) {
	ip := runSource(t, `
R = 1
GOTO skip
R = 2
skip:
DONE = 1
`)
	if numVar(t, ip, "R") != 1 {
		t.Error("GOTO did not skip the assignment")
	}
	if numVar(t, ip, "DONE") != 1 {
		t.Error("target statement did not run")
	}
}

func TestGotoUnknownLabelFaults(t *testing.T) {
	ip := runFaulting(t, "GOTO nowhere")
	wantFault(t, ip, ErrCodeLabelNotDefined)
}

func TestGosubReturn(t *testing.T) {
	ip := runSource(t, `
10 N = 0
20 GOSUB 100
30 GOSUB 100
40 END
100 N = N + 1
110 RETURN
`)
	if got := numVar(t, ip, "N"); got != 2 {
		t.Errorf("N = %v, want 2", got)
	}
}

func TestReturnWithoutGosubFaults(t *testing.T) {
	ip := runFaulting(t, "RETURN")
	wantFault(t, ip, ErrCodeReturnWithoutGosub)
}

func TestOnGotoDispatch(t *testing.T) {
	ip := runSource(t, `
10 X = 2
20 ON X GOTO 50, 60, 70
30 R = 0
40 END
50 R = 1
55 END
60 R = 2
65 END
70 R = 3
`)
	if got := numVar(t, ip, "R"); got != 2 {
		t.Errorf("R = %v, want 2", got)
	}
}

func TestOnGotoOutOfRangeFallsThrough(t *testing.T) {
	ip := runSource(t, `
10 X = 5
20 ON X GOTO 50, 60
30 R = 9
40 END
50 R = 1
60 R = 2
`)
	if got := numVar(t, ip, "R"); got != 9 {
		t.Errorf("R = %v, want 9 (out-of-range index must fall through)", got)
	}
}

func TestOnErrorResumeNext(t *testing.T) {
	ip := runSource(t, `
ON ERROR GOTO handler
X = 1 / 0
AFTER = 1
END
handler:
CODE = ERR
RESUME NEXT
`)
	if ip.State() != StateFinished {
		t.Fatalf("expected finished state, got %d", ip.State())
	}
	if got := numVar(t, ip, "CODE"); got != float64(ErrCodeDivisionByZero) {
		t.Errorf("ERR = %v, want %d", got, ErrCodeDivisionByZero)
	}
	if numVar(t, ip, "AFTER") != 1 {
		t.Error("RESUME NEXT did not continue after the faulting statement")
	}
}

func TestErrorStatementRaisesCode(t *testing.T) {
	ip := runSource(t, `
ON ERROR GOTO handler
ERROR 5
END
handler:
CODE = ERR
RESUME NEXT
`)
	if got := numVar(t, ip, "CODE"); got != 5 {
		t.Errorf("ERR = %v, want 5", got)
	}
}

func TestOnErrorGotoZeroDisablesHandler(t *testing.T) {
	ip := runFaulting(t, `
ON ERROR GOTO handler
ON ERROR GOTO 0
X = 1 / 0
END
handler:
RESUME NEXT
`)
	wantFault(t, ip, ErrCodeDivisionByZero)
}

func TestResumeWithoutErrorFaults(t *testing.T) {
	ip := runFaulting(t, "RESUME NEXT")
	wantFault(t, ip, ErrCodeResumeWithoutError)
}

func TestFaultInsideHandlerHalts(t *testing.T) {
	ip := runFaulting(t, `
ON ERROR GOTO handler
X = 1 / 0
END
handler:
Y = 1 / 0
`)
	wantFault(t, ip, ErrCodeDivisionByZero)
}

func TestUnhandledFaultReportsLine(t *testing.T) {
	ip := runFaulting(t, `A = 1
B = 2
X = 1 / 0`)
	wantFault(t, ip, ErrCodeDivisionByZero)
	_, line := ip.LastError()
	if line != 3 {
		t.Errorf("fault line = %d, want 3", line)
	}
}

func TestEndStopsExecution(t *testing.T) {
	ip := runSource(t, `
R = 1
END
R = 2
`)
	if got := numVar(t, ip, "R"); got != 1 {
		t.Errorf("R = %v, want 1", got)
	}
}
