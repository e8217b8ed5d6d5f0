package wat

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wippyai/wasm-ir/errors"
	"github.com/wippyai/wasm-ir/ir"
	"github.com/wippyai/wasm-ir/wat/internal/token"
)

// Parse reads a module in the folded s-expression text format and builds
// it through the ir factory API. It accepts everything Print emits plus
// the usual hand-written liberties: named or indexed locals and labels,
// inline param/result lists, inline function exports, comments, and
// string escapes. Instructions must be folded; flat stack-style bodies
// are not recognized.
func Parse(src string) (*ir.Module, error) {
	toks := token.Tokenize(src)
	root, rest, err := readSexpr(toks, 0)
	if err != nil {
		return nil, err
	}
	if rest != len(toks) {
		return nil, perr(toks[rest].Line, "unexpected %q after module", toks[rest].Value)
	}
	if root == nil || len(root.list) == 0 || !root.list[0].isIdent("module") {
		return nil, perr(1, "expected (module ...)")
	}

	b := &builder{
		m:        ir.NewModule(),
		funcSigs: make(map[string]*ir.Signature),
		globals:  make(map[string]ir.Type),
	}
	m, err := b.build(root)
	if err != nil {
		b.m.Close()
		return nil, err
	}
	return m, nil
}

// sexpr is either an atom (tok set) or a parenthesized list.
type sexpr struct {
	list []*sexpr
	tok  *token.Token
	line int
}

func (s *sexpr) isIdent(name string) bool {
	return s.tok != nil && s.tok.Type == token.Ident && s.tok.Value == name
}

func (s *sexpr) headIdent() string {
	if len(s.list) > 0 && s.list[0].tok != nil && s.list[0].tok.Type == token.Ident {
		return s.list[0].tok.Value
	}
	return ""
}

func readSexpr(toks []token.Token, pos int) (*sexpr, int, error) {
	if pos >= len(toks) {
		return nil, pos, perr(0, "unexpected end of input")
	}
	t := &toks[pos]
	switch t.Type {
	case token.LParen:
		node := &sexpr{line: t.Line}
		pos++
		for {
			if pos >= len(toks) {
				return nil, pos, perr(t.Line, "unclosed '('")
			}
			if toks[pos].Type == token.RParen {
				return node, pos + 1, nil
			}
			child, next, err := readSexpr(toks, pos)
			if err != nil {
				return nil, next, err
			}
			node.list = append(node.list, child)
			pos = next
		}
	case token.RParen:
		return nil, pos, perr(t.Line, "unexpected ')'")
	default:
		return &sexpr{tok: t, line: t.Line}, pos + 1, nil
	}
}

func perr(line int, format string, args ...any) *errors.Error {
	detail := fmt.Sprintf(format, args...)
	if line > 0 {
		detail = fmt.Sprintf("line %d: %s", line, detail)
	}
	return errors.New(errors.PhaseParse, errors.KindParse).Detail("%s", detail).Build()
}

// pendingFunc is a function whose header was scanned in the first pass
// and whose body parses in the second, once every callee is known.
type pendingFunc struct {
	name       string
	sig        *ir.Signature
	paramNames map[string]uint32
	localTypes []ir.Type // combined params-then-locals space
	extra      []ir.Type
	body       []*sexpr
	line       int
}

type builder struct {
	m        *ir.Module
	funcSigs map[string]*ir.Signature // defined and imported, by internal name
	globals  map[string]ir.Type       // defined and imported, by internal name

	memInitial uint32
	memMax     uint32
	memExport  string
	hasMemory  bool
	segments   []ir.Segment

	pending   []*pendingFunc
	startName string
	startLine int
	genLabels int
}

func (b *builder) build(root *sexpr) (*ir.Module, error) {
	// First pass: declarations, so bodies can resolve forward references.
	for _, item := range root.list[1:] {
		if item.tok != nil {
			return nil, perr(item.line, "unexpected %q at module level", item.tok.Value)
		}
		var err error
		switch head := item.headIdent(); head {
		case "type":
			err = b.typeDecl(item)
		case "import":
			err = b.importDecl(item)
		case "memory":
			err = b.memoryDecl(item)
		case "data":
			err = b.dataDecl(item)
		case "table":
			// Size and element type are implied by the elem segment.
		case "elem":
			err = b.elemDecl(item)
		case "global":
			err = b.globalDecl(item)
		case "export":
			err = b.exportDecl(item)
		case "start":
			if len(item.list) != 2 {
				return nil, perr(item.line, "start takes one function reference")
			}
			b.startName, err = refName(item.list[1])
			b.startLine = item.line
		case "func":
			err = b.funcHeader(item)
		default:
			err = perr(item.line, "unknown module field %q", head)
		}
		if err != nil {
			return nil, err
		}
	}

	if b.hasMemory {
		segs := b.segments
		if segs == nil {
			segs = []ir.Segment{}
		}
		if err := b.m.SetMemory(b.memInitial, b.memMax, b.memExport, segs); err != nil {
			return nil, err
		}
	} else if len(b.segments) > 0 {
		return nil, perr(root.line, "data segment without a memory declaration")
	}

	// Second pass: function bodies.
	for _, pf := range b.pending {
		body, err := b.funcBody(pf)
		if err != nil {
			return nil, err
		}
		if _, err := b.m.AddFunction(pf.name, pf.sig, pf.extra, body); err != nil {
			return nil, err
		}
	}

	if b.startName != "" {
		fn := b.m.GetFunction(b.startName)
		if fn == nil {
			return nil, perr(b.startLine, "start references unknown function %q", b.startName)
		}
		if err := b.m.SetStart(fn); err != nil {
			return nil, err
		}
	}
	return b.m, nil
}

// refName reads a $name reference.
func refName(s *sexpr) (string, error) {
	if s.tok == nil || s.tok.Type != token.Ident || !strings.HasPrefix(s.tok.Value, "$") {
		return "", perr(s.line, "expected a $name reference")
	}
	return s.tok.Value[1:], nil
}

func valType(s *sexpr) (ir.Type, error) {
	if s.tok != nil && s.tok.Type == token.Ident {
		if t, ok := ir.TypeByName(s.tok.Value); ok && t != ir.TypeNone {
			return t, nil
		}
	}
	return ir.TypeNone, perr(s.line, "expected a value type")
}

// funcShape reads (param ...)* (result T)? forms starting at list[i],
// returning the shape, named-parameter map, and the index of the first
// unconsumed form.
func funcShape(list []*sexpr, i int) (params []ir.Type, result ir.Type, names map[string]uint32, next int, err error) {
	names = make(map[string]uint32)
	for ; i < len(list); i++ {
		s := list[i]
		if s.tok != nil || s.headIdent() != "param" {
			break
		}
		args := s.list[1:]
		if len(args) == 2 && args[0].tok != nil && strings.HasPrefix(args[0].tok.Value, "$") {
			t, terr := valType(args[1])
			if terr != nil {
				return nil, 0, nil, 0, terr
			}
			names[args[0].tok.Value[1:]] = uint32(len(params))
			params = append(params, t)
			continue
		}
		for _, a := range args {
			t, terr := valType(a)
			if terr != nil {
				return nil, 0, nil, 0, terr
			}
			params = append(params, t)
		}
	}
	result = ir.TypeNone
	if i < len(list) && list[i].tok == nil && list[i].headIdent() == "result" {
		s := list[i]
		if len(s.list) != 2 {
			return nil, 0, nil, 0, perr(s.line, "a result lists exactly one type")
		}
		var terr error
		if result, terr = valType(s.list[1]); terr != nil {
			return nil, 0, nil, 0, terr
		}
		i++
	}
	return params, result, names, i, nil
}

func (b *builder) typeDecl(s *sexpr) error {
	list := s.list[1:]
	name := ""
	if len(list) > 0 && list[0].tok != nil {
		var err error
		if name, err = refName(list[0]); err != nil {
			return err
		}
		list = list[1:]
	}
	if len(list) != 1 || list[0].headIdent() != "func" {
		return perr(s.line, "type requires a (func ...) shape")
	}
	params, result, _, next, err := funcShape(list[0].list, 1)
	if err != nil {
		return err
	}
	if next != len(list[0].list) {
		return perr(s.line, "unexpected form in function type")
	}
	_, err = b.m.AddFunctionType(name, result, params)
	return err
}

// sigFor resolves a (type $t)? (param)* (result)? header to a registered
// signature, interning an unnamed one when only a shape is given.
func (b *builder) sigFor(list []*sexpr, i int, line int) (*ir.Signature, map[string]uint32, int, error) {
	var typeRef *ir.Signature
	if i < len(list) && list[i].tok == nil && list[i].headIdent() == "type" {
		s := list[i]
		if len(s.list) != 2 {
			return nil, nil, 0, perr(s.line, "type reference takes one name")
		}
		name, err := refName(s.list[1])
		if err != nil {
			return nil, nil, 0, err
		}
		typeRef = b.m.GetFunctionType(name)
		if typeRef == nil {
			return nil, nil, 0, perr(s.line, "unknown type %q", name)
		}
		i++
	}
	params, result, names, next, err := funcShape(list, i)
	if err != nil {
		return nil, nil, 0, err
	}
	if typeRef != nil {
		if next != i && !typeRef.Matches(result, params) {
			return nil, nil, 0, perr(line, "inline shape disagrees with type %q", typeRef.Name())
		}
		return typeRef, names, next, nil
	}
	if sig := b.m.GetFunctionTypeBySignature(result, params); sig != nil {
		return sig, names, next, nil
	}
	sig, err := b.m.AddFunctionType("", result, params)
	if err != nil {
		return nil, nil, 0, err
	}
	return sig, names, next, nil
}

func (b *builder) importDecl(s *sexpr) error {
	if len(s.list) != 4 || s.list[1].tok == nil || s.list[2].tok == nil {
		return perr(s.line, `import is (import "module" "base" (desc))`)
	}
	extModule, err := unescape(s.list[1], token.String)
	if err != nil {
		return err
	}
	extBase, err := unescape(s.list[2], token.String)
	if err != nil {
		return err
	}
	desc := s.list[3]
	if desc.tok != nil {
		return perr(desc.line, "import requires a descriptor form")
	}
	list := desc.list[1:]
	name := ""
	if len(list) > 0 && list[0].tok != nil && strings.HasPrefix(list[0].tok.Value, "$") {
		name = list[0].tok.Value[1:]
		list = list[1:]
	}
	switch desc.headIdent() {
	case "func":
		sig, _, _, err := b.sigFor(list, 0, desc.line)
		if err != nil {
			return err
		}
		if _, err := b.m.AddFunctionImport(name, extModule, extBase, sig); err != nil {
			return err
		}
		b.funcSigs[name] = sig
	case "table":
		if _, err := b.m.AddTableImport(name, extModule, extBase); err != nil {
			return err
		}
	case "memory":
		if _, err := b.m.AddMemoryImport(name, extModule, extBase); err != nil {
			return err
		}
	case "global":
		if len(list) != 1 {
			return perr(desc.line, "global import takes one type")
		}
		t, err := valType(list[0])
		if err != nil {
			return err
		}
		if _, err := b.m.AddGlobalImport(name, extModule, extBase, t); err != nil {
			return err
		}
		b.globals[name] = t
	default:
		return perr(desc.line, "unknown import descriptor %q", desc.headIdent())
	}
	return nil
}

func (b *builder) memoryDecl(s *sexpr) error {
	if b.hasMemory {
		return perr(s.line, "duplicate memory declaration")
	}
	list := s.list[1:]
	if len(list) > 0 && list[0].tok != nil && strings.HasPrefix(list[0].tok.Value, "$") {
		list = list[1:]
	}
	if len(list) > 0 && list[0].tok == nil && list[0].headIdent() == "export" {
		exp := list[0]
		if len(exp.list) != 2 {
			return perr(exp.line, "memory export takes one name")
		}
		name, err := unescape(exp.list[1], token.String)
		if err != nil {
			return err
		}
		b.memExport = name
		list = list[1:]
	}
	if len(list) == 0 || len(list) > 2 {
		return perr(s.line, "memory takes an initial and optional maximum page count")
	}
	initial, err := parseU32(list[0])
	if err != nil {
		return err
	}
	b.memInitial = initial
	b.memMax = ir.NoMaximum
	if len(list) == 2 {
		max, err := parseU32(list[1])
		if err != nil {
			return err
		}
		b.memMax = max
	}
	b.hasMemory = true
	return nil
}

func (b *builder) dataDecl(s *sexpr) error {
	if len(s.list) < 2 {
		return perr(s.line, "data requires an offset expression")
	}
	offset, err := b.constExpr(s.list[1])
	if err != nil {
		return err
	}
	var data []byte
	for _, part := range s.list[2:] {
		chunk, err := unescapeBytes(part)
		if err != nil {
			return err
		}
		data = append(data, chunk...)
	}
	b.segments = append(b.segments, ir.Segment{Offset: offset, Data: data})
	return nil
}

func (b *builder) elemDecl(s *sexpr) error {
	if len(s.list) < 2 {
		return perr(s.line, "elem requires an offset expression")
	}
	off := s.list[1]
	if off.tok != nil || off.headIdent() != "i32.const" {
		return perr(off.line, "elem offset must be (i32.const 0)")
	}
	v, err := parseU32(off.list[1])
	if err != nil || v != 0 {
		return perr(off.line, "elem offset must be zero")
	}
	var names []string
	for _, ref := range s.list[2:] {
		name, err := refName(ref)
		if err != nil {
			return err
		}
		names = append(names, name)
	}
	return b.m.SetFunctionTable(names)
}

func (b *builder) globalDecl(s *sexpr) error {
	list := s.list[1:]
	if len(list) < 2 {
		return perr(s.line, "global requires a type and an initializer")
	}
	name := ""
	if list[0].tok != nil && strings.HasPrefix(list[0].tok.Value, "$") {
		name = list[0].tok.Value[1:]
		list = list[1:]
	}
	mutable := false
	var typ ir.Type
	var err error
	if list[0].tok == nil && list[0].headIdent() == "mut" {
		if len(list[0].list) != 2 {
			return perr(list[0].line, "(mut T) takes one type")
		}
		mutable = true
		typ, err = valType(list[0].list[1])
	} else {
		typ, err = valType(list[0])
	}
	if err != nil {
		return err
	}
	if len(list) != 2 {
		return perr(s.line, "global takes exactly one initializer")
	}
	init, err := b.constExpr(list[1])
	if err != nil {
		return err
	}
	if _, err := b.m.AddGlobal(name, typ, mutable, init); err != nil {
		return err
	}
	b.globals[name] = typ
	return nil
}

func (b *builder) exportDecl(s *sexpr) error {
	if len(s.list) != 3 || s.list[1].tok == nil {
		return perr(s.line, `export is (export "name" (kind $ref))`)
	}
	external, err := unescape(s.list[1], token.String)
	if err != nil {
		return err
	}
	desc := s.list[2]
	if desc.tok != nil || len(desc.list) != 2 {
		return perr(s.line, "export requires a (kind $ref) descriptor")
	}
	internal, err := refName(desc.list[1])
	if err != nil {
		return err
	}
	switch desc.headIdent() {
	case "func":
		_, err = b.m.AddFunctionExport(internal, external)
	case "table":
		_, err = b.m.AddTableExport(internal, external)
	case "memory":
		_, err = b.m.AddMemoryExport(internal, external)
	case "global":
		_, err = b.m.AddGlobalExport(internal, external)
	default:
		err = perr(desc.line, "unknown export kind %q", desc.headIdent())
	}
	return err
}

func (b *builder) funcHeader(s *sexpr) error {
	list := s.list[1:]
	name := ""
	if len(list) > 0 && list[0].tok != nil && strings.HasPrefix(list[0].tok.Value, "$") {
		name = list[0].tok.Value[1:]
		list = list[1:]
	}
	if name == "" {
		name = fmt.Sprintf("func$%d", len(b.pending))
	}
	for len(list) > 0 && list[0].tok == nil && list[0].headIdent() == "export" {
		exp := list[0]
		if len(exp.list) != 2 {
			return perr(exp.line, "inline export takes one name")
		}
		external, err := unescape(exp.list[1], token.String)
		if err != nil {
			return err
		}
		if _, err := b.m.AddFunctionExport(name, external); err != nil {
			return err
		}
		list = list[1:]
	}
	sig, paramNames, next, err := b.sigFor(list, 0, s.line)
	if err != nil {
		return err
	}
	list = list[next:]

	pf := &pendingFunc{
		name:       name,
		sig:        sig,
		paramNames: paramNames,
		localTypes: append([]ir.Type(nil), sig.Params()...),
		line:       s.line,
	}
	for len(list) > 0 && list[0].tok == nil && list[0].headIdent() == "local" {
		args := list[0].list[1:]
		if len(args) == 2 && args[0].tok != nil && strings.HasPrefix(args[0].tok.Value, "$") {
			t, err := valType(args[1])
			if err != nil {
				return err
			}
			pf.paramNames[args[0].tok.Value[1:]] = uint32(len(pf.localTypes))
			pf.localTypes = append(pf.localTypes, t)
			pf.extra = append(pf.extra, t)
		} else {
			for _, a := range args {
				t, err := valType(a)
				if err != nil {
					return err
				}
				pf.localTypes = append(pf.localTypes, t)
				pf.extra = append(pf.extra, t)
			}
		}
		list = list[1:]
	}
	pf.body = list
	b.pending = append(b.pending, pf)
	b.funcSigs[name] = sig
	return nil
}

func (b *builder) funcBody(pf *pendingFunc) (ir.Expr, error) {
	fp := &funcParser{b: b, pf: pf}
	kids, err := fp.exprList(pf.body)
	if err != nil {
		return nil, err
	}
	switch len(kids) {
	case 0:
		return b.m.Nop(), nil
	case 1:
		return kids[0], nil
	default:
		return b.m.Block("", kids, ir.TypeAuto)
	}
}

// constExpr parses a global or segment initializer.
func (b *builder) constExpr(s *sexpr) (ir.Expr, error) {
	fp := &funcParser{b: b, pf: &pendingFunc{paramNames: map[string]uint32{}}}
	e, err := fp.expr(s)
	if err != nil {
		return nil, err
	}
	switch e.(type) {
	case *ir.Const, *ir.GetGlobal:
		return e, nil
	}
	return nil, perr(s.line, "%s is not a constant expression", e.Kind())
}

// label tracks one enclosing block or loop during body parsing. Unnamed
// targets get a generated name only if a numeric branch actually uses it.
type label struct {
	name      string
	generated bool
	used      bool
}

type funcParser struct {
	b      *builder
	pf     *pendingFunc
	labels []label
}

func (p *funcParser) pushLabel(name string) {
	generated := false
	if name == "" {
		p.b.genLabels++
		name = fmt.Sprintf("label$%d", p.b.genLabels-1)
		generated = true
	}
	p.labels = append(p.labels, label{name: name, generated: generated})
}

func (p *funcParser) popLabel() string {
	l := p.labels[len(p.labels)-1]
	p.labels = p.labels[:len(p.labels)-1]
	if l.generated && !l.used {
		return ""
	}
	return l.name
}

// branchTarget resolves a $name or relative-depth branch operand.
func (p *funcParser) branchTarget(s *sexpr) (string, error) {
	if s.tok == nil {
		return "", perr(s.line, "expected a branch target")
	}
	if strings.HasPrefix(s.tok.Value, "$") {
		return s.tok.Value[1:], nil
	}
	depth, err := parseU32(s)
	if err != nil {
		return "", err
	}
	if int(depth) >= len(p.labels) {
		return "", perr(s.line, "branch depth %d exceeds nesting", depth)
	}
	l := &p.labels[len(p.labels)-1-int(depth)]
	l.used = true
	return l.name, nil
}

func (p *funcParser) localIndex(s *sexpr) (uint32, ir.Type, error) {
	var index uint32
	if s.tok != nil && strings.HasPrefix(s.tok.Value, "$") {
		idx, ok := p.pf.paramNames[s.tok.Value[1:]]
		if !ok {
			return 0, ir.TypeNone, perr(s.line, "unknown local %q", s.tok.Value)
		}
		index = idx
	} else {
		idx, err := parseU32(s)
		if err != nil {
			return 0, ir.TypeNone, err
		}
		index = idx
	}
	if int(index) >= len(p.pf.localTypes) {
		return 0, ir.TypeNone, perr(s.line, "local index %d out of range", index)
	}
	return index, p.pf.localTypes[index], nil
}

func (p *funcParser) exprList(forms []*sexpr) ([]ir.Expr, error) {
	var out []ir.Expr
	for _, f := range forms {
		e, err := p.expr(f)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// seq parses forms into a single expression, wrapping multiple statements
// in an anonymous block.
func (p *funcParser) seq(forms []*sexpr) (ir.Expr, error) {
	kids, err := p.exprList(forms)
	if err != nil {
		return nil, err
	}
	return p.wrapSeq(kids)
}

// blockResult reads an optional (result T) form.
func blockResult(list []*sexpr, i int) (ir.Type, int, error) {
	if i < len(list) && list[i].tok == nil && list[i].headIdent() == "result" {
		s := list[i]
		if len(s.list) != 2 {
			return ir.TypeAuto, 0, perr(s.line, "a result lists exactly one type")
		}
		t, err := valType(s.list[1])
		if err != nil {
			return ir.TypeAuto, 0, err
		}
		return t, i + 1, nil
	}
	return ir.TypeAuto, i, nil
}

func (p *funcParser) expr(s *sexpr) (ir.Expr, error) {
	if s.tok != nil {
		return nil, perr(s.line, "expected an expression, got %q", s.tok.Value)
	}
	head := s.headIdent()
	if head == "" {
		return nil, perr(s.line, "expected an instruction")
	}
	args := s.list[1:]

	switch head {
	case "block", "loop":
		name := ""
		if len(args) > 0 && args[0].tok != nil && strings.HasPrefix(args[0].tok.Value, "$") {
			name = args[0].tok.Value[1:]
			args = args[1:]
		}
		typ, next, err := blockResult(args, 0)
		if err != nil {
			return nil, err
		}
		args = args[next:]
		p.pushLabel(name)
		kids, err := p.exprList(args)
		if err != nil {
			p.popLabel()
			return nil, err
		}
		name = p.popLabel()
		if head == "loop" {
			body, err := p.wrapSeq(kids)
			if err != nil {
				return nil, err
			}
			return p.b.m.Loop(name, body)
		}
		return p.b.m.Block(name, kids, typ)

	case "if":
		_, next, err := blockResult(args, 0)
		if err != nil {
			return nil, err
		}
		args = args[next:]
		if len(args) < 2 {
			return nil, perr(s.line, "if requires a condition and a then arm")
		}
		cond, err := p.expr(args[0])
		if err != nil {
			return nil, err
		}
		var ifTrue, ifFalse ir.Expr
		if args[1].headIdent() == "then" {
			if ifTrue, err = p.seq(args[1].list[1:]); err != nil {
				return nil, err
			}
			if len(args) > 2 {
				if args[2].headIdent() != "else" {
					return nil, perr(args[2].line, "expected (else ...)")
				}
				if ifFalse, err = p.seq(args[2].list[1:]); err != nil {
					return nil, err
				}
			}
		} else {
			if ifTrue, err = p.expr(args[1]); err != nil {
				return nil, err
			}
			if len(args) > 2 {
				if ifFalse, err = p.expr(args[2]); err != nil {
					return nil, err
				}
			}
		}
		return p.b.m.If(cond, ifTrue, ifFalse)

	case "br":
		if len(args) < 1 {
			return nil, perr(s.line, "br requires a target")
		}
		target, err := p.branchTarget(args[0])
		if err != nil {
			return nil, err
		}
		var value ir.Expr
		if len(args) == 2 {
			if value, err = p.expr(args[1]); err != nil {
				return nil, err
			}
		} else if len(args) > 2 {
			return nil, perr(s.line, "br carries at most one value")
		}
		return p.b.m.Break(target, nil, value)

	case "br_if":
		if len(args) < 2 || len(args) > 3 {
			return nil, perr(s.line, "br_if is (br_if $l value? cond)")
		}
		target, err := p.branchTarget(args[0])
		if err != nil {
			return nil, err
		}
		exprs, err := p.exprList(args[1:])
		if err != nil {
			return nil, err
		}
		cond := exprs[len(exprs)-1]
		var value ir.Expr
		if len(exprs) == 2 {
			value = exprs[0]
		}
		return p.b.m.Break(target, cond, value)

	case "br_table":
		var labels []string
		i := 0
		for ; i < len(args) && args[i].tok != nil; i++ {
			target, err := p.branchTarget(args[i])
			if err != nil {
				return nil, err
			}
			labels = append(labels, target)
		}
		if len(labels) == 0 {
			return nil, perr(s.line, "br_table requires at least a default target")
		}
		exprs, err := p.exprList(args[i:])
		if err != nil {
			return nil, err
		}
		if len(exprs) < 1 || len(exprs) > 2 {
			return nil, perr(s.line, "br_table is (br_table $l... value? cond)")
		}
		cond := exprs[len(exprs)-1]
		var value ir.Expr
		if len(exprs) == 2 {
			value = exprs[0]
		}
		return p.b.m.Switch(labels[:len(labels)-1], labels[len(labels)-1], cond, value)

	case "call":
		if len(args) < 1 {
			return nil, perr(s.line, "call requires a target")
		}
		target, err := refName(args[0])
		if err != nil {
			return nil, err
		}
		sig, ok := p.b.funcSigs[target]
		if !ok {
			return nil, perr(s.line, "call to unknown function %q", target)
		}
		operands, err := p.exprList(args[1:])
		if err != nil {
			return nil, err
		}
		return p.b.m.Call(target, operands, sig.Result())

	case "call_indirect":
		sig, _, next, err := p.b.sigFor(args, 0, s.line)
		if err != nil {
			return nil, err
		}
		exprs, err := p.exprList(args[next:])
		if err != nil {
			return nil, err
		}
		if len(exprs) == 0 {
			return nil, perr(s.line, "call_indirect requires a table index expression")
		}
		return p.b.m.CallIndirect(exprs[len(exprs)-1], exprs[:len(exprs)-1], sig.Name())

	case "local.get", "get_local":
		if len(args) != 1 {
			return nil, perr(s.line, "local.get takes one index")
		}
		index, typ, err := p.localIndex(args[0])
		if err != nil {
			return nil, err
		}
		return p.b.m.GetLocal(index, typ)

	case "local.set", "set_local", "local.tee", "tee_local":
		if len(args) != 2 {
			return nil, perr(s.line, "%s takes an index and a value", head)
		}
		index, _, err := p.localIndex(args[0])
		if err != nil {
			return nil, err
		}
		value, err := p.expr(args[1])
		if err != nil {
			return nil, err
		}
		if head == "local.tee" || head == "tee_local" {
			return p.b.m.TeeLocal(index, value)
		}
		return p.b.m.SetLocal(index, value)

	case "global.get", "get_global":
		if len(args) != 1 {
			return nil, perr(s.line, "global.get takes one name")
		}
		name, err := refName(args[0])
		if err != nil {
			return nil, err
		}
		typ, ok := p.b.globals[name]
		if !ok {
			return nil, perr(s.line, "unknown global %q", name)
		}
		return p.b.m.GetGlobal(name, typ)

	case "global.set", "set_global":
		if len(args) != 2 {
			return nil, perr(s.line, "global.set takes a name and a value")
		}
		name, err := refName(args[0])
		if err != nil {
			return nil, err
		}
		value, err := p.expr(args[1])
		if err != nil {
			return nil, err
		}
		return p.b.m.SetGlobal(name, value)

	case "select":
		if len(args) != 3 {
			return nil, perr(s.line, "select takes three operands")
		}
		exprs, err := p.exprList(args)
		if err != nil {
			return nil, err
		}
		return p.b.m.Select(exprs[2], exprs[0], exprs[1])

	case "drop":
		if len(args) != 1 {
			return nil, perr(s.line, "drop takes one value")
		}
		value, err := p.expr(args[0])
		if err != nil {
			return nil, err
		}
		return p.b.m.Drop(value)

	case "return":
		var value ir.Expr
		var err error
		if len(args) == 1 {
			if value, err = p.expr(args[0]); err != nil {
				return nil, err
			}
		} else if len(args) > 1 {
			return nil, perr(s.line, "return carries at most one value")
		}
		return p.b.m.Return(value)

	case "nop":
		return p.b.m.Nop(), nil

	case "unreachable":
		return p.b.m.Unreachable(), nil

	case "memory.size", "current_memory":
		return p.b.m.Host(ir.CurrentMemory, "", nil)

	case "memory.grow", "grow_memory":
		if len(args) != 1 {
			return nil, perr(s.line, "memory.grow takes one operand")
		}
		delta, err := p.expr(args[0])
		if err != nil {
			return nil, err
		}
		return p.b.m.Host(ir.GrowMemory, "", []ir.Expr{delta})

	case "memory.atomic.wait32", "memory.atomic.wait64":
		if len(args) != 3 {
			return nil, perr(s.line, "%s takes three operands", head)
		}
		exprs, err := p.exprList(args)
		if err != nil {
			return nil, err
		}
		typ := ir.TypeInt32
		if strings.HasSuffix(head, "64") {
			typ = ir.TypeInt64
		}
		return p.b.m.AtomicWait(exprs[0], exprs[1], exprs[2], typ)

	case "memory.atomic.notify":
		if len(args) != 2 {
			return nil, perr(s.line, "memory.atomic.notify takes two operands")
		}
		exprs, err := p.exprList(args)
		if err != nil {
			return nil, err
		}
		return p.b.m.AtomicWake(exprs[0], exprs[1])
	}

	if strings.HasSuffix(head, ".const") {
		return p.constLiteral(head, s)
	}
	if op, ok := ir.BinaryOpByName(head); ok {
		if len(args) != 2 {
			return nil, perr(s.line, "%s takes two operands", head)
		}
		exprs, err := p.exprList(args)
		if err != nil {
			return nil, err
		}
		return p.b.m.Binary(op, exprs[0], exprs[1])
	}
	if op, ok := ir.UnaryOpByName(head); ok {
		if len(args) != 1 {
			return nil, perr(s.line, "%s takes one operand", head)
		}
		value, err := p.expr(args[0])
		if err != nil {
			return nil, err
		}
		return p.b.m.Unary(op, value)
	}
	if strings.Contains(head, ".atomic.") {
		return p.atomicAccess(head, s)
	}
	if strings.Contains(head, ".load") || strings.Contains(head, ".store") {
		return p.plainAccess(head, s)
	}
	return nil, perr(s.line, "unknown instruction %q", head)
}

func (p *funcParser) wrapSeq(kids []ir.Expr) (ir.Expr, error) {
	switch len(kids) {
	case 0:
		return p.b.m.Nop(), nil
	case 1:
		return kids[0], nil
	default:
		return p.b.m.Block("", kids, ir.TypeAuto)
	}
}

// memarg consumes offset=/align= atoms, returning the remaining forms.
func memarg(args []*sexpr) (offset, align uint32, rest []*sexpr, err error) {
	for len(args) > 0 && args[0].tok != nil && args[0].tok.Type == token.Ident {
		v := args[0].tok.Value
		switch {
		case strings.HasPrefix(v, "offset="):
			n, nerr := strconv.ParseUint(v[len("offset="):], 0, 32)
			if nerr != nil {
				return 0, 0, nil, perrWrap(args[0].line, v, nerr)
			}
			offset = uint32(n)
		case strings.HasPrefix(v, "align="):
			n, nerr := strconv.ParseUint(v[len("align="):], 0, 32)
			if nerr != nil {
				return 0, 0, nil, perrWrap(args[0].line, v, nerr)
			}
			align = uint32(n)
		default:
			return offset, align, args, nil
		}
		args = args[1:]
	}
	return offset, align, args, nil
}

func perrWrap(line int, what string, cause error) *errors.Error {
	return errors.New(errors.PhaseParse, errors.KindParse).
		Detail("line %d: malformed %q", line, what).Cause(cause).Build()
}

// plainAccess handles the iNN/fNN.load/store mnemonic family.
func (p *funcParser) plainAccess(head string, s *sexpr) (ir.Expr, error) {
	dot := strings.IndexByte(head, '.')
	typ, ok := ir.TypeByName(head[:dot])
	if !ok || typ == ir.TypeNone {
		return nil, perr(s.line, "unknown instruction %q", head)
	}
	rest := head[dot+1:]
	offset, align, args, err := memarg(s.list[1:])
	if err != nil {
		return nil, err
	}

	isStore := strings.HasPrefix(rest, "store")
	var suffix string
	if isStore {
		suffix = rest[len("store"):]
	} else if strings.HasPrefix(rest, "load") {
		suffix = rest[len("load"):]
	} else {
		return nil, perr(s.line, "unknown instruction %q", head)
	}

	bytes := typ.Size()
	signed := false
	switch suffix {
	case "":
	case "8_s", "8":
		bytes, signed = 1, true
	case "8_u":
		bytes = 1
	case "16_s", "16":
		bytes, signed = 2, true
	case "16_u":
		bytes = 2
	case "32_s", "32":
		bytes, signed = 4, true
	case "32_u":
		bytes = 4
	default:
		return nil, perr(s.line, "unknown instruction %q", head)
	}
	if align == 0 {
		// An absent align immediate means natural alignment.
		align = uint32(bytes)
	}
	if isStore {
		// Store widths carry no signedness.
		signed = false
		if len(args) != 2 {
			return nil, perr(s.line, "%s takes an address and a value", head)
		}
		exprs, lerr := p.exprList(args)
		if lerr != nil {
			return nil, lerr
		}
		return p.b.m.Store(bytes, offset, align, exprs[0], exprs[1], typ)
	}
	if len(args) != 1 {
		return nil, perr(s.line, "%s takes one address", head)
	}
	ptr, err := p.expr(args[0])
	if err != nil {
		return nil, err
	}
	return p.b.m.Load(bytes, signed, offset, align, typ, ptr)
}

// atomicAccess handles iNN.atomic.load/store/rmw/cmpxchg mnemonics.
func (p *funcParser) atomicAccess(head string, s *sexpr) (ir.Expr, error) {
	dot := strings.IndexByte(head, '.')
	typ, ok := ir.TypeByName(head[:dot])
	if !ok || !typ.IsInteger() {
		return nil, perr(s.line, "unknown instruction %q", head)
	}
	rest := strings.TrimPrefix(head[dot+1:], "atomic.")
	offset, _, args, err := memarg(s.list[1:])
	if err != nil {
		return nil, err
	}

	widthOf := func(suffix string) (uint8, bool) {
		switch strings.TrimSuffix(suffix, "_u") {
		case "":
			return typ.Size(), true
		case "8":
			return 1, true
		case "16":
			return 2, true
		case "32":
			return 4, true
		}
		return 0, false
	}

	switch {
	case strings.HasPrefix(rest, "load"):
		bytes, ok := widthOf(rest[len("load"):])
		if !ok || len(args) != 1 {
			return nil, perr(s.line, "malformed %q", head)
		}
		ptr, err := p.expr(args[0])
		if err != nil {
			return nil, err
		}
		return p.b.m.AtomicLoad(bytes, offset, typ, ptr)

	case strings.HasPrefix(rest, "store"):
		bytes, ok := widthOf(rest[len("store"):])
		if !ok || len(args) != 2 {
			return nil, perr(s.line, "malformed %q", head)
		}
		exprs, err := p.exprList(args)
		if err != nil {
			return nil, err
		}
		return p.b.m.AtomicStore(bytes, offset, exprs[0], exprs[1], typ)

	case strings.HasPrefix(rest, "rmw"):
		tail := rest[len("rmw"):]
		dot := strings.IndexByte(tail, '.')
		if dot < 0 {
			return nil, perr(s.line, "malformed %q", head)
		}
		bytes, ok := widthOf(tail[:dot])
		if !ok {
			return nil, perr(s.line, "malformed %q", head)
		}
		opName := strings.TrimSuffix(tail[dot+1:], "_u")
		if opName == "cmpxchg" {
			if len(args) != 3 {
				return nil, perr(s.line, "%s takes three operands", head)
			}
			exprs, err := p.exprList(args)
			if err != nil {
				return nil, err
			}
			return p.b.m.AtomicCmpxchg(bytes, offset, exprs[0], exprs[1], exprs[2], typ)
		}
		var op ir.AtomicRMWOp
		switch opName {
		case "add":
			op = ir.AtomicRMWAdd
		case "sub":
			op = ir.AtomicRMWSub
		case "and":
			op = ir.AtomicRMWAnd
		case "or":
			op = ir.AtomicRMWOr
		case "xor":
			op = ir.AtomicRMWXor
		case "xchg":
			op = ir.AtomicRMWXchg
		default:
			return nil, perr(s.line, "unknown atomic operator %q", opName)
		}
		if len(args) != 2 {
			return nil, perr(s.line, "%s takes two operands", head)
		}
		exprs, err := p.exprList(args)
		if err != nil {
			return nil, err
		}
		return p.b.m.AtomicRMW(op, bytes, offset, exprs[0], exprs[1], typ)
	}
	return nil, perr(s.line, "unknown instruction %q", head)
}

func (p *funcParser) constLiteral(head string, s *sexpr) (ir.Expr, error) {
	if len(s.list) != 2 || s.list[1].tok == nil {
		return nil, perr(s.line, "%s takes one immediate", head)
	}
	text := s.list[1].tok.Value
	var lit ir.Literal
	switch head {
	case "i32.const":
		v, err := parseInt(text, 32)
		if err != nil {
			return nil, perrWrap(s.line, text, err)
		}
		lit = ir.Int32Literal(int32(v))
	case "i64.const":
		v, err := parseInt(text, 64)
		if err != nil {
			return nil, perrWrap(s.line, text, err)
		}
		lit = ir.Int64Literal(v)
	case "f32.const":
		bits, err := parseFloatBits(text, 32)
		if err != nil {
			return nil, perrWrap(s.line, text, err)
		}
		lit = ir.Float32LiteralBits(uint32(bits))
	case "f64.const":
		bits, err := parseFloatBits(text, 64)
		if err != nil {
			return nil, perrWrap(s.line, text, err)
		}
		lit = ir.Float64LiteralBits(bits)
	default:
		return nil, perr(s.line, "unknown instruction %q", head)
	}
	return p.b.m.Const(lit)
}

func parseInt(text string, bits int) (int64, error) {
	text = strings.ReplaceAll(text, "_", "")
	v, err := strconv.ParseInt(text, 0, bits)
	if err == nil {
		return v, nil
	}
	// Integers may be spelled unsigned.
	u, uerr := strconv.ParseUint(text, 0, bits)
	if uerr != nil {
		return 0, err
	}
	if bits == 32 {
		return int64(int32(uint32(u))), nil
	}
	return int64(u), nil
}

func parseU32(s *sexpr) (uint32, error) {
	if s.tok == nil {
		return 0, perr(s.line, "expected a number")
	}
	v, err := strconv.ParseUint(strings.ReplaceAll(s.tok.Value, "_", ""), 0, 32)
	if err != nil {
		return 0, perrWrap(s.line, s.tok.Value, err)
	}
	return uint32(v), nil
}

// parseFloatBits decodes float spellings including inf, nan, and
// nan:0x<payload>, preserving bit patterns exactly.
func parseFloatBits(text string, width int) (uint64, error) {
	neg := false
	body := text
	if strings.HasPrefix(body, "-") {
		neg, body = true, body[1:]
	} else if strings.HasPrefix(body, "+") {
		body = body[1:]
	}

	var bits uint64
	switch {
	case body == "inf":
		if width == 32 {
			bits = 0x7F800000
		} else {
			bits = 0x7FF0000000000000
		}
	case body == "nan":
		if width == 32 {
			bits = 0x7FC00000
		} else {
			bits = 0x7FF8000000000000
		}
	case strings.HasPrefix(body, "nan:"):
		payload, err := strconv.ParseUint(strings.TrimPrefix(body[len("nan:"):], "0x"), 16, 64)
		if err != nil {
			return 0, err
		}
		if width == 32 {
			bits = 0x7F800000 | (payload & 0x7FFFFF)
		} else {
			bits = 0x7FF0000000000000 | (payload & 0xFFFFFFFFFFFFF)
		}
	default:
		f, err := strconv.ParseFloat(strings.ReplaceAll(body, "_", ""), width)
		if err != nil {
			return 0, err
		}
		if width == 32 {
			bits = uint64(math.Float32bits(float32(f)))
		} else {
			bits = math.Float64bits(f)
		}
	}
	if neg {
		if width == 32 {
			bits |= 0x80000000
		} else {
			bits |= 0x8000000000000000
		}
	}
	return bits, nil
}

// unescape decodes a string token.
func unescape(s *sexpr, want token.Type) (string, error) {
	if s.tok == nil || s.tok.Type != want {
		return "", perr(s.line, "expected a %v", want)
	}
	data, err := unescapeBytes(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// unescapeBytes decodes a string token into raw bytes, one byte per \hh
// escape, matching the binary format's treatment of segment payloads.
func unescapeBytes(s *sexpr) ([]byte, error) {
	if s.tok == nil || s.tok.Type != token.String {
		return nil, perr(s.line, "expected a string")
	}
	raw := s.tok.Value
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' {
			out = append(out, c)
			continue
		}
		i++
		if i >= len(raw) {
			return nil, perr(s.line, "dangling escape in string")
		}
		switch raw[i] {
		case 'n':
			out = append(out, '\n')
		case 't':
			out = append(out, '\t')
		case 'r':
			out = append(out, '\r')
		case '"':
			out = append(out, '"')
		case '\'':
			out = append(out, '\'')
		case '\\':
			out = append(out, '\\')
		default:
			if i+1 >= len(raw) {
				return nil, perr(s.line, "truncated hex escape in string")
			}
			v, err := strconv.ParseUint(raw[i:i+2], 16, 8)
			if err != nil {
				return nil, perr(s.line, "bad escape %q in string", raw[i-1:i+2])
			}
			out = append(out, byte(v))
			i++
		}
	}
	return out, nil
}
