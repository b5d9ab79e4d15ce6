package basic

import (
	"math/rand"
	"strings"
	"time"
)

func (ip *Interpreter) cmdLet(st *Statement) error {
	return ip.execAssign(st.Args)
}

// execAssign handles "target = expr": the right side is evaluated, the left
// side is compiled through the expression caches and written through.
func (ip *Interpreter) execAssign(text string) error {
	eq := topLevelIndexByte(text, '=')
	if eq < 0 {
		return NewBasicErrorf(FaultStructural, ErrCodeSyntax, "assignment without =")
	}
	v, err := ip.evalExpr(text[eq+1:])
	if err != nil {
		return err
	}
	node, err := ip.comp.compile(text[:eq])
	if err != nil {
		return err
	}
	return ip.assignNode(node, v)
}

// assignNode writes a value through a compiled assignment target: a plain
// variable, an array element or a record field of an array element.
func (ip *Interpreter) assignNode(node *exprNode, v Value) error {
	switch node.kind {
	case nodeVar:
		return ip.setVariable(node.name, v)
	case nodeIndex:
		indices, err := ip.evalIndices(node.args)
		if err != nil {
			return err
		}
		arr, err := ip.arrayFor(node.name, len(indices))
		if err != nil {
			return err
		}
		return arr.Set(indices, v)
	case nodeField:
		base, err := ip.evalNode(node.left)
		if err != nil {
			return err
		}
		if base.Kind != KindRecord || base.Rec == nil {
			return NewBasicError(FaultType, ErrCodeTypeMismatch)
		}
		return base.Rec.SetField(ip.recordTypes, node.name, v)
	}
	return NewBasicErrorf(FaultStructural, ErrCodeSyntax, "invalid assignment target")
}

var scalarTypeNames = map[string]ValueKind{
	"INTEGER": KindInteger,
	"LONG":    KindLong,
	"SINGLE":  KindSingle,
	"DOUBLE":  KindDouble,
	"STRING":  KindString,
}

// cmdDim handles DIM and REDIM. DIM of an existing array is a duplicate
// definition; REDIM replaces the array, discarding its contents.
func (ip *Interpreter) cmdDim(st *Statement) error {
	for _, decl := range splitTopLevelCommas(st.Args) {
		if err := ip.dimOne(decl, st.Keyword == "REDIM"); err != nil {
			return err
		}
	}
	return nil
}

func (ip *Interpreter) dimOne(decl string, redim bool) error {
	decl = strings.TrimSpace(decl)
	if strings.EqualFold(decl, "SHARED") || decl == "" {
		return nil
	}
	if strings.HasPrefix(strings.ToUpper(decl), "SHARED") && wordBoundary(strings.ToUpper(decl), 0, 6) {
		decl = strings.TrimSpace(decl[6:])
	}

	// Optional "AS typename" tail.
	elemKind := ValueKind(-1)
	recType := ""
	if pos := findKeywordOutsideStrings(strings.ToUpper(decl), "AS"); pos >= 0 {
		typeName := strings.ToUpper(strings.TrimSpace(decl[pos+2:]))
		decl = strings.TrimSpace(decl[:pos])
		// "STRING * n" fixed-length declarations use plain strings here.
		if starPos := strings.IndexByte(typeName, '*'); starPos >= 0 {
			typeName = strings.TrimSpace(typeName[:starPos])
		}
		if kind, ok := scalarTypeNames[typeName]; ok {
			elemKind = kind
		} else if _, ok := ip.recordTypes[typeName]; ok {
			elemKind = KindRecord
			recType = typeName
		} else {
			return NewBasicErrorf(FaultType, ErrCodeTypeMismatch, "unknown type %s", typeName)
		}
	}

	open := strings.IndexAny(decl, "([")
	if open < 0 {
		// Scalar declaration: bind the typed zero value.
		name := ip.comp.canonicalName(decl)
		if elemKind == KindRecord {
			ip.bindVariable(name, Value{Kind: KindRecord, Rec: &Record{TypeName: recType, Fields: map[string]Value{}}})
			return nil
		}
		if elemKind >= 0 {
			ip.bindVariable(name, Value{Kind: elemKind})
			return nil
		}
		ip.bindVariable(name, zeroValueForName(name))
		return nil
	}

	name := ip.comp.canonicalName(decl[:open])
	close := strings.LastIndexAny(decl, ")]")
	if close < open {
		return NewBasicErrorf(FaultStructural, ErrCodeSyntax, "unterminated DIM bounds")
	}
	if existing, ok := ip.variables[name]; ok {
		if existing.Kind != KindArray {
			return NewBasicError(FaultType, ErrCodeTypeMismatch)
		}
		if !redim {
			return NewBasicErrorf(FaultRuntime, ErrCodeDuplicateDef, "array %s already dimensioned", name)
		}
	}

	var lower, upper []int
	for _, boundText := range splitTopLevelCommas(decl[open+1 : close]) {
		lo := 0
		hiText := boundText
		if pos := findKeywordOutsideStrings(strings.ToUpper(boundText), "TO"); pos >= 0 {
			loVal, err := ip.evalNumber(boundText[:pos])
			if err != nil {
				return err
			}
			lo = int(roundHalfEven(loVal))
			hiText = boundText[pos+2:]
		}
		hiVal, err := ip.evalNumber(hiText)
		if err != nil {
			return err
		}
		lower = append(lower, lo)
		upper = append(upper, int(roundHalfEven(hiVal)))
	}

	if elemKind < 0 {
		elemKind = kindForName(name)
	}
	arr, err := NewArray(elemKind, recType, lower, upper)
	if err != nil {
		return err
	}
	ip.bindVariable(name, Value{Kind: KindArray, Arr: arr})
	return nil
}

// cmdConst defines immutable named values: CONST NAME = expr, NAME2 = expr.
func (ip *Interpreter) cmdConst(st *Statement) error {
	for _, decl := range splitTopLevelCommas(st.Args) {
		eq := topLevelIndexByte(decl, '=')
		if eq < 0 {
			return NewBasicErrorf(FaultStructural, ErrCodeSyntax, "CONST without =")
		}
		name := ip.comp.canonicalName(decl[:eq])
		v, err := ip.evalExpr(decl[eq+1:])
		if err != nil {
			return err
		}
		cv, err := coerceKind(v, kindForName(name))
		if err != nil {
			return err
		}
		if err := ip.defineConstant(name, cv); err != nil {
			return err
		}
	}
	return nil
}

// cmdCommon marks variables that survive a CHAIN into the next program.
func (ip *Interpreter) cmdCommon(st *Statement) error {
	args := strings.TrimSpace(st.Args)
	if strings.HasPrefix(strings.ToUpper(args), "SHARED") && wordBoundary(strings.ToUpper(args), 0, 6) {
		args = strings.TrimSpace(args[6:])
	}
	for _, name := range splitTopLevelCommas(args) {
		name = strings.TrimSuffix(strings.TrimSpace(name), "()")
		if name == "" {
			continue
		}
		ip.commonNames[ip.comp.canonicalName(name)] = true
	}
	return nil
}

// cmdType consumes a TYPE ... END TYPE block, registering a record type.
// Field statements have the form "name AS typename".
func (ip *Interpreter) cmdType(st *Statement) error {
	typeName := strings.ToUpper(strings.TrimSpace(st.Args))
	if typeName == "" {
		return NewBasicErrorf(FaultStructural, ErrCodeSyntax, "TYPE without name")
	}
	if _, exists := ip.recordTypes[typeName]; exists {
		return NewBasicErrorf(FaultRuntime, ErrCodeDuplicateDef, "TYPE %s already defined", typeName)
	}

	rt := &RecordType{Name: typeName}
	i := ip.pc
	for ; i < len(ip.prog.Statements); i++ {
		field := &ip.prog.Statements[i]
		if field.Keyword == "END TYPE" {
			break
		}
		text := strings.TrimSpace(field.Text)
		upper := strings.ToUpper(text)
		pos := findKeywordOutsideStrings(upper, "AS")
		if pos < 0 {
			return ip.annotate(NewBasicErrorf(FaultStructural, ErrCodeSyntax, "TYPE field without AS"), field)
		}
		fieldName := ip.comp.canonicalName(text[:pos])
		fieldType := strings.ToUpper(strings.TrimSpace(text[pos+2:]))
		if starPos := strings.IndexByte(fieldType, '*'); starPos >= 0 {
			fieldType = strings.TrimSpace(fieldType[:starPos])
		}
		kind, ok := scalarTypeNames[fieldType]
		if !ok {
			return ip.annotate(NewBasicErrorf(FaultType, ErrCodeTypeMismatch, "unknown field type %s", fieldType), field)
		}
		rt.Fields = append(rt.Fields, RecordField{Name: fieldName, Kind: kind})
	}
	if i >= len(ip.prog.Statements) {
		return NewBasicErrorf(FaultStructural, ErrCodeSyntax, "TYPE without END TYPE")
	}
	ip.recordTypes[typeName] = rt
	ip.pc = i + 1
	return nil
}

// cmdDef registers a DEF FN single-expression function:
// DEF FNA(X) = X * 2, also spelled DEF FN A(X) = X * 2.
func (ip *Interpreter) cmdDef(st *Statement) error {
	args := strings.TrimSpace(st.Args)
	upper := strings.ToUpper(args)
	if !strings.HasPrefix(upper, "FN") {
		return NewBasicErrorf(FaultStructural, ErrCodeSyntax, "DEF without FN")
	}
	rest := strings.TrimSpace(args[2:])

	open := strings.IndexByte(rest, '(')
	eq := topLevelIndexByte(rest, '=')
	if eq < 0 {
		return NewBasicErrorf(FaultStructural, ErrCodeSyntax, "DEF FN without body")
	}

	var name string
	var params []string
	if open >= 0 && open < eq {
		close := strings.IndexByte(rest, ')')
		if close < open {
			return NewBasicErrorf(FaultStructural, ErrCodeSyntax, "unterminated parameter list")
		}
		name = strings.TrimSpace(rest[:open])
		for _, p := range splitTopLevelCommas(rest[open+1 : close]) {
			if p != "" {
				params = append(params, ip.comp.canonicalName(p))
			}
		}
	} else {
		name = strings.TrimSpace(rest[:eq])
	}
	if name == "" {
		return NewBasicErrorf(FaultStructural, ErrCodeSyntax, "DEF FN without name")
	}

	canon := ip.comp.canonicalName("FN" + name)
	body := strings.TrimSpace(rest[eq+1:])
	if _, exists := ip.inlineFuncs[canon]; !exists {
		ip.nameSetHash ^= nameHash('f', canon)
	}
	ip.inlineFuncs[canon] = &inlineFunc{Name: canon, Params: params, Body: body}
	return nil
}

// cmdSwap exchanges two assignable targets, coercing each value to the
// other's kind.
func (ip *Interpreter) cmdSwap(st *Statement) error {
	parts := splitTopLevelCommas(st.Args)
	if len(parts) != 2 {
		return NewBasicErrorf(FaultStructural, ErrCodeSyntax, "SWAP needs two targets")
	}
	a, err := ip.evalExpr(parts[0])
	if err != nil {
		return err
	}
	b, err := ip.evalExpr(parts[1])
	if err != nil {
		return err
	}
	nodeA, err := ip.comp.compile(parts[0])
	if err != nil {
		return err
	}
	nodeB, err := ip.comp.compile(parts[1])
	if err != nil {
		return err
	}
	if err := ip.assignNode(nodeA, b); err != nil {
		return err
	}
	return ip.assignNode(nodeB, a)
}

// cmdRandomize reseeds the generator, from the clock when no seed is given.
func (ip *Interpreter) cmdRandomize(st *Statement) error {
	if strings.TrimSpace(st.Args) == "" {
		ip.reseed(time.Now().UnixNano())
		return nil
	}
	seed, err := ip.evalNumber(st.Args)
	if err != nil {
		return err
	}
	ip.reseed(int64(seed))
	return nil
}

func (ip *Interpreter) reseed(seed int64) {
	ip.rng = rand.New(rand.NewSource(seed))
}

// cmdClear drops all variable bindings; constants, procedures and types stay.
func (ip *Interpreter) cmdClear(st *Statement) error {
	for name := range ip.variables {
		ip.unsetVariable(name)
	}
	return nil
}
