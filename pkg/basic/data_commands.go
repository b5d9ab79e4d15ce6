package basic

import (
	"math"
	"strconv"
	"strings"
)

type dataRun struct {
	pc        int // statement index of the DATA statement
	poolStart int
}

// buildDataPool flattens every DATA statement, in program order, into one
// value pool. Runs remember their statement position so RESTORE with a label
// can reposition the cursor at the first DATA at or after that label.
func (ip *Interpreter) buildDataPool() {
	ip.dataPool = ip.dataPool[:0]
	ip.dataRuns = ip.dataRuns[:0]
	for i := range ip.prog.Statements {
		st := &ip.prog.Statements[i]
		if st.Keyword != "DATA" {
			continue
		}
		ip.dataRuns = append(ip.dataRuns, dataRun{pc: st.PC, poolStart: len(ip.dataPool)})
		for _, item := range splitDataItems(st.Args) {
			ip.dataPool = append(ip.dataPool, parseDataItem(item))
		}
	}
	ip.dataCursor = 0
}

// splitDataItems splits a DATA list on commas outside quotes. Unlike
// expression text, unquoted items may contain anything but a comma.
func splitDataItems(s string) []string {
	var items []string
	inString := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inString = !inString
		case ',':
			if !inString {
				items = append(items, s[start:i])
				start = i + 1
			}
		}
	}
	items = append(items, s[start:])
	return items
}

// parseDataItem types one datum: quoted text is a string, numeric text is a
// number, anything else is an unquoted string. A number without decimal
// point or exponent is an integer datum, sized by its magnitude.
func parseDataItem(item string) Value {
	item = strings.TrimSpace(item)
	if strings.HasPrefix(item, `"`) && strings.HasSuffix(item, `"`) && len(item) >= 2 {
		return StringValue(strings.ReplaceAll(item[1:len(item)-1], `""`, `"`))
	}
	if n, err := strconv.ParseFloat(item, 64); err == nil {
		if !strings.ContainsAny(item, ".eE") {
			if n >= math.MinInt16 && n <= math.MaxInt16 {
				return Value{Kind: KindInteger, Num: n}
			}
			if n >= math.MinInt32 && n <= math.MaxInt32 {
				return Value{Kind: KindLong, Num: n}
			}
		}
		return NumberValue(n)
	}
	return StringValue(item)
}

// cmdRead assigns the next pool values to the listed targets in order.
func (ip *Interpreter) cmdRead(st *Statement) error {
	for _, target := range splitTopLevelCommas(st.Args) {
		if ip.dataCursor >= len(ip.dataPool) {
			return NewBasicError(FaultRuntime, ErrCodeOutOfData)
		}
		datum := ip.dataPool[ip.dataCursor]
		ip.dataCursor++

		node, err := ip.comp.compile(target)
		if err != nil {
			return err
		}
		// A numeric target reads an unquoted numeric-looking datum as a
		// number; the reverse crossing is a type mismatch.
		if err := ip.assignNode(node, datum); err != nil {
			return err
		}
	}
	return nil
}

// cmdRestore resets the read cursor: to the pool start, or to the first DATA
// statement at or after a label.
func (ip *Interpreter) cmdRestore(st *Statement) error {
	target := strings.TrimSpace(st.Args)
	if target == "" {
		ip.dataCursor = 0
		return nil
	}
	pc, err := ip.resolveTarget(target)
	if err != nil {
		return err
	}
	for _, run := range ip.dataRuns {
		if run.pc >= pc {
			ip.dataCursor = run.poolStart
			return nil
		}
	}
	ip.dataCursor = len(ip.dataPool)
	return nil
}
