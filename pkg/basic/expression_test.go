package basic

import (
	"testing"
)

// evalIn evaluates a single numeric expression inside a fresh interpreter.
func evalIn(t *testing.T, setup, expr string) Value {
	t.Helper()
	ip := runSource(t, setup+"\nRESULT = "+expr)
	return ip.Variable("RESULT")
}

// evalStrIn evaluates a string expression; the suffixed target keeps the
// assignment type-correct.
func evalStrIn(t *testing.T, setup, expr string) string {
	t.Helper()
	ip := runSource(t, setup+"\nRESULT$ = "+expr)
	return strVar(t, ip, "RESULT$")
}

func TestArithmeticPrecedence(t *testing.T) {
	cases := []struct {
		expr string
		want float64
	}{
		{"2 + 3 * 4", 14},
		{"(2 + 3) * 4", 20},
		{"2 ^ 3 ^ 2", 512}, // right-associative
		{"-2 ^ 2", -4},     // unary minus binds looser than power
		{"10 / 4", 2.5},
		{"7 MOD 3", 1},
		{"2 * 3 MOD 4", 2}, // MOD binds looser than *
	}
	for _, c := range cases {
		v := evalIn(t, "", c.expr)
		if v.Num != c.want {
			t.Errorf("%s = %v, want %v", c.expr, v.Num, c.want)
		}
	}
}

func TestIntegerDivisionTruncatesTowardZero(t *testing.T) {
	cases := []struct {
		expr string
		want float64
	}{
		{"-7 \\ 2", -3},
		{"7 \\ 2", 3},
		{"7 \\ -2", -3},
		{"6.6 \\ 2", 3}, // operands round before dividing
	}
	for _, c := range cases {
		v := evalIn(t, "", c.expr)
		if v.Num != c.want {
			t.Errorf("%s = %v, want %v", c.expr, v.Num, c.want)
		}
	}
}

func TestRadixLiterals(t *testing.T) {
	if v := evalIn(t, "", "&HFF"); v.Num != 255 {
		t.Errorf("&HFF = %v, want 255", v.Num)
	}
	if v := evalIn(t, "", "&O17"); v.Num != 15 {
		t.Errorf("&O17 = %v, want 15", v.Num)
	}
	if v := evalIn(t, "", "&B1010"); v.Num != 10 {
		t.Errorf("&B1010 = %v, want 10", v.Num)
	}
}

func TestLogicalOperatorsAreBitwise(t *testing.T) {
	if v := evalIn(t, "", "NOT 0"); v.Num != -1 {
		t.Errorf("NOT 0 = %v, want -1", v.Num)
	}
	if v := evalIn(t, "", "6 AND 3"); v.Num != 2 {
		t.Errorf("6 AND 3 = %v, want 2", v.Num)
	}
	if v := evalIn(t, "", "6 OR 3"); v.Num != 7 {
		t.Errorf("6 OR 3 = %v, want 7", v.Num)
	}
	if v := evalIn(t, "", "6 XOR 3"); v.Num != 5 {
		t.Errorf("6 XOR 3 = %v, want 5", v.Num)
	}
	if v := evalIn(t, "", "(1 = 1) AND (2 > 1)"); v.Num != -1 {
		t.Errorf("comparison AND = %v, want -1", v.Num)
	}
}

func TestStringConcatAndCompare(t *testing.T) {
	if got := evalStrIn(t, `A$ = "foo"`, `A$ + "bar"`); got != "foobar" {
		t.Errorf("concat = %q", got)
	}
	if v := evalIn(t, "", `"abc" < "abd"`); v.Num != -1 {
		t.Errorf("string compare = %v, want -1", v.Num)
	}
}

func TestNamesAreCaseInsensitive(t *testing.T) {
	ip := runSource(t, "counter = 3\nRESULT = COUNTER + Counter")
	if got := numVar(t, ip, "result"); got != 6 {
		t.Errorf("case-insensitive lookup = %v, want 6", got)
	}
}

func TestSuffixMakesDistinctNames(t *testing.T) {
	ip := runSource(t, "A = 1\nA$ = \"x\"\nA% = 2")
	if numVar(t, ip, "A") != 1 {
		t.Error("A clobbered by suffixed names")
	}
	if strVar(t, ip, "A$") != "x" {
		t.Error("A$ not stored separately")
	}
	if numVar(t, ip, "A%") != 2 {
		t.Error("A% not stored separately")
	}
}

func TestUnassignedNamesReadAsZero(t *testing.T) {
	ip := runSource(t, "X = NEVERSET + 1\nS$ = NEVERSET$")
	if numVar(t, ip, "X") != 1 {
		t.Error("unassigned numeric name should read as 0")
	}
	if strVar(t, ip, "S$") != "" {
		t.Error("unassigned string name should read as empty")
	}
}

func TestDivisionByZeroFaults(t *testing.T) {
	ip := runFaulting(t, "X = 1 / 0")
	wantFault(t, ip, ErrCodeDivisionByZero)
}

func TestIntegerOverflowFaults(t *testing.T) {
	ip := runFaulting(t, "X% = 40000")
	wantFault(t, ip, ErrCodeOverflow)
}

func TestTypeMismatchFaults(t *testing.T) {
	ip := runFaulting(t, `X = "text" + 1`)
	wantFault(t, ip, ErrCodeTypeMismatch)
}

func TestStringToNumericTargetFaults(t *testing.T) {
	ip := runFaulting(t, `RESULT = CHR$(65)`)
	wantFault(t, ip, ErrCodeTypeMismatch)
}

func TestBuiltinFunctions(t *testing.T) {
	cases := []struct {
		expr string
		want float64
	}{
		{"ABS(-5)", 5},
		{"INT(-1.5)", -2},
		{"FIX(-1.5)", -1},
		{"SGN(-9)", -1},
		{"SQR(16)", 4},
		{"LEN(\"hello\")", 5},
		{"VAL(\"12abc\")", 12},
		{"ASC(\"A\")", 65},
		{"INSTR(\"hello\", \"ll\")", 3},
		{"INSTR(3, \"ababab\", \"ab\")", 3},
		{"CINT(2.5)", 2}, // ties round to even
		{"CINT(3.5)", 4},
	}
	for _, c := range cases {
		v := evalIn(t, "", c.expr)
		if v.Num != c.want {
			t.Errorf("%s = %v, want %v", c.expr, v.Num, c.want)
		}
	}

	strCases := []struct {
		expr string
		want string
	}{
		{`CHR$(65)`, "A"},
		{`LEFT$("hello", 2)`, "he"},
		{`RIGHT$("hello", 3)`, "llo"},
		{`MID$("hello", 2, 3)`, "ell"},
		{`MID$("hello", 4)`, "lo"},
		{`UCASE$("aBc")`, "ABC"},
		{`LCASE$("aBc")`, "abc"},
		{`STRING$(3, 65)`, "AAA"},
		{`SPACE$(2)`, "  "},
		{`HEX$(255)`, "FF"},
		{`STR$(7)`, " 7"},
	}
	for _, c := range strCases {
		if got := evalStrIn(t, "", c.expr); got != c.want {
			t.Errorf("%s = %q, want %q", c.expr, got, c.want)
		}
	}
}

func TestRndIsDeterministicAfterReseed(t *testing.T) {
	ip := runSource(t, "RANDOMIZE 42\nA = RND\nRANDOMIZE 42\nB = RND")
	if numVar(t, ip, "A") != numVar(t, ip, "B") {
		t.Error("same seed should reproduce the sequence")
	}
	v := ip.Variable("A")
	if v.Num < 0 || v.Num >= 1 {
		t.Errorf("RND out of range: %v", v.Num)
	}
}

// Reloading a program must drop every cached rewrite: the same source text
// can compile differently when a name changes between array and function.
func TestCachesClearedOnReload(t *testing.T) {
	ip := runSource(t, "DIM A(5)\nA(2) = 7\nX = A(2)")
	if numVar(t, ip, "X") != 7 {
		t.Fatal("array element read failed")
	}

	runOn(t, ip, `
X = A(2)
END
FUNCTION A(N)
A = N * 10
END FUNCTION`)
	if got := numVar(t, ip, "X"); got != 20 {
		t.Errorf("after reload X = %v, want 20 (stale compiled form used)", got)
	}
}

func TestDefFnInlineFunctions(t *testing.T) {
	ip := runSource(t, "DEF FNSQ(X) = X * X\nY = FNSQ(3) + FN SQ(2)")
	if got := numVar(t, ip, "Y"); got != 13 {
		t.Errorf("Y = %v, want 13", got)
	}
}

func TestDefFnParameterShadowing(t *testing.T) {
	ip := runSource(t, "X = 100\nDEF FNID(X) = X\nY = FNID(5)\nZ = X")
	if numVar(t, ip, "Y") != 5 {
		t.Error("parameter not bound")
	}
	if numVar(t, ip, "Z") != 100 {
		t.Error("caller variable not restored after inline call")
	}
}
