package basic

import "testing"

func buildLines(lines ...string) *Program {
	return BuildProgram(lines)
}

func TestBuildProgramNumericLabels(t *testing.T) {
	prog := buildLines("10 PRINT 1", "20 GOTO 10")
	if len(prog.Statements) != 2 {
		t.Fatalf("got %d statements, want 2", len(prog.Statements))
	}
	if pc, ok := prog.Labels["10"]; !ok || pc != 0 {
		t.Errorf("label 10 -> %d, want 0", pc)
	}
	if pc, ok := prog.Labels["20"]; !ok || pc != 1 {
		t.Errorf("label 20 -> %d, want 1", pc)
	}
}

func TestBuildProgramTextLabels(t *testing.T) {
	// Label names must not collide with statement keywords; "again" is safe
	// where "loop" would parse as a bare LOOP statement.
	prog := buildLines("start:", "PRINT 1", "again: PRINT 2", "loop: PRINT 3")
	if pc := prog.Labels["START"]; pc != 0 {
		t.Errorf("START -> %d, want 0", pc)
	}
	if pc := prog.Labels["AGAIN"]; pc != 1 {
		t.Errorf("AGAIN -> %d, want 1", pc)
	}
	if _, exists := prog.Labels["LOOP"]; exists {
		t.Error("keyword accepted as a label name")
	}
	// The colon splits the line instead: a bare LOOP statement, then PRINT.
	if kw := prog.Statements[2].Keyword; kw != "LOOP" {
		t.Errorf("statement keyword = %q, want LOOP", kw)
	}
}

func TestKeywordNotMistakenForLabel(t *testing.T) {
	// "PRINT" before ':' is a statement, not a label definition.
	prog := buildLines("PRINT: PRINT 2")
	if _, exists := prog.Labels["PRINT"]; exists {
		t.Error("statement keyword registered as a label")
	}
	if len(prog.Statements) != 2 {
		t.Errorf("got %d statements, want 2", len(prog.Statements))
	}
}

func TestDuplicateLabelsFirstWins(t *testing.T) {
	prog := buildLines("10 PRINT 1", "10 PRINT 2")
	if len(prog.DuplicateLabels) != 1 || prog.DuplicateLabels[0] != "10" {
		t.Errorf("DuplicateLabels = %v", prog.DuplicateLabels)
	}
	if prog.Labels["10"] != 0 {
		t.Error("first definition did not win")
	}
}

func TestColonSplitsStatements(t *testing.T) {
	prog := buildLines(`A = 1: B = 2: PRINT "a:b"`)
	if len(prog.Statements) != 3 {
		t.Fatalf("got %d statements, want 3", len(prog.Statements))
	}
	if prog.Statements[2].Args != `"a:b"` {
		t.Errorf("colon inside string split: %q", prog.Statements[2].Args)
	}
}

func TestSingleLineIfConsumesWholeLine(t *testing.T) {
	prog := buildLines("IF X THEN A = 1: B = 2")
	if len(prog.Statements) != 1 {
		t.Fatalf("got %d statements, want 1", len(prog.Statements))
	}
	if !prog.Statements[0].SingleLineIf {
		t.Error("statement not marked as single-line IF")
	}
}

func TestBlockIfIsNotSingleLine(t *testing.T) {
	prog := buildLines("IF X > 0 THEN")
	if prog.Statements[0].SingleLineIf {
		t.Error("block IF header marked as single-line")
	}
}

func TestCommentsAreDropped(t *testing.T) {
	prog := buildLines("A = 1 ' trailing comment", "REM whole line", "' another")
	if len(prog.Statements) != 2 {
		t.Fatalf("got %d statements, want 2", len(prog.Statements))
	}
	if prog.Statements[0].Text != "A = 1" {
		t.Errorf("first statement = %q", prog.Statements[0].Text)
	}
	if prog.Statements[1].Keyword != "REM" {
		t.Errorf("second keyword = %q", prog.Statements[1].Keyword)
	}
}

func TestNextExpansion(t *testing.T) {
	prog := buildLines("NEXT J, I")
	if len(prog.Statements) != 2 {
		t.Fatalf("got %d statements, want 2", len(prog.Statements))
	}
	if prog.Statements[0].Args != "J" || prog.Statements[1].Args != "I" {
		t.Errorf("expansion order: %q, %q", prog.Statements[0].Args, prog.Statements[1].Args)
	}
}

func TestKeywordNormalization(t *testing.T) {
	cases := []struct {
		text    string
		keyword string
	}{
		{"ENDIF", "END IF"},
		{"END IF", "END IF"},
		{"END SELECT", "END SELECT"},
		{"end sub", "END SUB"},
		{"EXIT FOR", "EXIT FOR"},
		{"exit do", "EXIT DO"},
		{"ON ERROR GOTO h", "ON ERROR"},
		{"ON X GOTO 10", "ON"},
		{"SELECT CASE X", "SELECT CASE"},
		{"LINE INPUT A$", "LINE INPUT"},
		{"line (0,0)-(10,10)", "LINE"},
		{"END", "END"},
	}
	for _, c := range cases {
		prog := buildLines(c.text)
		if len(prog.Statements) != 1 {
			t.Fatalf("%q: got %d statements", c.text, len(prog.Statements))
		}
		if got := prog.Statements[0].Keyword; got != c.keyword {
			t.Errorf("%q: keyword = %q, want %q", c.text, got, c.keyword)
		}
	}
}

func TestLineNumbersRecorded(t *testing.T) {
	prog := buildLines("A = 1", "", "B = 2: C = 3")
	if prog.Statements[0].Line != 1 {
		t.Errorf("first statement line = %d, want 1", prog.Statements[0].Line)
	}
	if prog.Statements[1].Line != 3 || prog.Statements[2].Line != 3 {
		t.Error("statements split from one line must share its number")
	}
}
