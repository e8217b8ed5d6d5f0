package ir

import (
	stderrors "errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-ir/errors"
	bin "github.com/wippyai/wasm-ir/ir/internal/binary"
)

// Parse builds a module from binary format bytes. Entity names come from
// the name custom section when present and are synthesized otherwise;
// block and loop labels are invented on demand, so round-tripped label
// spellings differ while resolution is preserved. The caller owns the
// returned module and must Close it.
func Parse(data []byte) (m *Module, err error) {
	p := &parser{
		m:           NewModule(),
		funcNames:   map[uint32]string{},
		globalNames: map[uint32]string{},
		usedFunc:    map[string]bool{},
		usedGlobal:  map[string]bool{},
	}
	defer func() {
		if err != nil {
			p.m.Close()
			var ee *errors.Error
			if !stderrors.As(err, &ee) {
				err = errors.ParseFailed("module", err)
			}
		}
	}()

	secs, nameSec, err := splitSections(data)
	if err != nil {
		return nil, err
	}
	if nameSec != nil {
		if err := p.parseNameSection(nameSec); err != nil {
			return nil, err
		}
	}

	steps := []struct {
		id byte
		fn func([]byte) error
	}{
		{bin.SectionType, p.parseTypes},
		{bin.SectionImport, p.parseImports},
		{bin.SectionFunction, p.parseFunctions},
		{bin.SectionTable, p.parseTable},
		{bin.SectionMemory, p.parseMemory},
		{bin.SectionGlobal, p.parseGlobals},
		{bin.SectionExport, p.parseExports},
		{bin.SectionStart, p.parseStart},
		{bin.SectionElement, p.parseElements},
		{bin.SectionCode, p.parseCode},
		{bin.SectionData, p.parseData},
	}
	for _, step := range steps {
		if secs[step.id] == nil {
			continue
		}
		if err := step.fn(secs[step.id]); err != nil {
			return nil, err
		}
	}
	if secs[bin.SectionCode] == nil && len(p.funcSpaceNames) > p.numFuncImports {
		return nil, errors.ParseFailed("module",
			fmt.Errorf("function section declares %d bodies, code section is missing",
				len(p.funcSpaceNames)-p.numFuncImports))
	}

	if err := p.finish(); err != nil {
		return nil, err
	}

	Logger().Debug("module parsed",
		zap.Int("functions", len(p.m.funcOrder)),
		zap.Int("imports", len(p.m.imports)),
		zap.Int("bytes", len(data)))
	return p.m, nil
}

// splitSections checks the container header and carves the payload of each
// known section, returning the name custom section separately.
func splitSections(data []byte) (secs [12][]byte, nameSec []byte, err error) {
	r := bin.NewReader(data)
	magic, err := r.ReadU32LE()
	if err != nil {
		return secs, nil, r.WrapError("header", err)
	}
	if magic != bin.Magic {
		return secs, nil, r.Errorf("header", "bad magic 0x%08X", magic)
	}
	version, err := r.ReadU32LE()
	if err != nil {
		return secs, nil, r.WrapError("header", err)
	}
	if version != bin.Version {
		return secs, nil, r.Errorf("header", "unsupported version %d", version)
	}

	lastID := byte(0)
	for r.Len() > 0 {
		id, err := r.ReadByte()
		if err != nil {
			return secs, nil, r.WrapError("header", err)
		}
		size, err := r.ReadU32()
		if err != nil {
			return secs, nil, r.WrapError("header", err)
		}
		payload, err := r.ReadBytes(int(size))
		if err != nil {
			return secs, nil, r.WrapError("header", err)
		}

		if id == bin.SectionCustom {
			nr := bin.NewReader(payload)
			name, err := nr.ReadName()
			if err != nil {
				return secs, nil, nr.WrapError("custom", err)
			}
			if name == "name" {
				nameSec = payload[nr.Position():]
			}
			continue
		}
		if id > bin.SectionData {
			return secs, nil, r.Errorf("header", "unknown section id %d", id)
		}
		if id <= lastID {
			return secs, nil, r.Errorf("header", "section id %d out of order", id)
		}
		lastID = id
		secs[id] = payload
	}
	return secs, nameSec, nil
}

type parser struct {
	m *Module

	funcNames   map[uint32]string
	globalNames map[uint32]string
	usedFunc    map[string]bool
	usedGlobal  map[string]bool

	sigs []*Signature // type index order

	funcSpaceNames []string
	funcSpaceSigs  []*Signature
	numFuncImports int

	globalSpaceNames []string
	globalSpaceTypes []Type
	numGlobalImports int

	tableImported  bool
	memoryImported bool

	hasMemorySec bool
	memInitial   uint32
	memMaximum   uint32
	segments     []Segment

	hasStart bool
	startIdx uint32

	labelN int
}

func claimName(used map[string]bool, preferred string) string {
	name := preferred
	for i := 2; used[name]; i++ {
		name = fmt.Sprintf("%s_%d", preferred, i)
	}
	used[name] = true
	return name
}

func valtypeFromByte(b byte) (Type, bool) {
	switch b {
	case bin.ValI32:
		return TypeInt32, true
	case bin.ValI64:
		return TypeInt64, true
	case bin.ValF32:
		return TypeFloat32, true
	case bin.ValF64:
		return TypeFloat64, true
	}
	return TypeNone, false
}

// readLimits accepts the MVP flag values and the threads shared bit, which
// the object model does not retain.
func readLimits(r *bin.Reader, section string) (min uint32, max uint32, hasMax bool, err error) {
	flags, err := r.ReadByte()
	if err != nil {
		return 0, 0, false, r.WrapError(section, err)
	}
	if flags > 3 {
		return 0, 0, false, r.Errorf(section, "unsupported limits flags 0x%02X", flags)
	}
	min, err = r.ReadU32()
	if err != nil {
		return 0, 0, false, r.WrapError(section, err)
	}
	if flags&1 != 0 {
		max, err = r.ReadU32()
		if err != nil {
			return 0, 0, false, r.WrapError(section, err)
		}
		return min, max, true, nil
	}
	return min, 0, false, nil
}

func (p *parser) parseNameSection(payload []byte) error {
	r := bin.NewReader(payload)
	for r.Len() > 0 {
		id, err := r.ReadByte()
		if err != nil {
			return r.WrapError("name", err)
		}
		size, err := r.ReadU32()
		if err != nil {
			return r.WrapError("name", err)
		}
		body, err := r.ReadBytes(int(size))
		if err != nil {
			return r.WrapError("name", err)
		}

		var into map[uint32]string
		switch id {
		case bin.NameSubsectionFunction:
			into = p.funcNames
		case bin.NameSubsectionGlobal:
			into = p.globalNames
		default:
			continue
		}
		nr := bin.NewReader(body)
		count, err := nr.ReadU32()
		if err != nil {
			return nr.WrapError("name", err)
		}
		for i := uint32(0); i < count; i++ {
			idx, err := nr.ReadU32()
			if err != nil {
				return nr.WrapError("name", err)
			}
			name, err := nr.ReadName()
			if err != nil {
				return nr.WrapError("name", err)
			}
			into[idx] = name
		}
	}
	return nil
}

func (p *parser) parseTypes(payload []byte) error {
	r := bin.NewReader(payload)
	count, err := r.ReadU32()
	if err != nil {
		return r.WrapError("type", err)
	}
	for i := uint32(0); i < count; i++ {
		form, err := r.ReadByte()
		if err != nil {
			return r.WrapError("type", err)
		}
		if form != bin.ValFunc {
			return r.Errorf("type", "type %d has form 0x%02X, expected function", i, form)
		}
		np, err := r.ReadU32()
		if err != nil {
			return r.WrapError("type", err)
		}
		params := make([]Type, 0, np)
		for j := uint32(0); j < np; j++ {
			b, err := r.ReadByte()
			if err != nil {
				return r.WrapError("type", err)
			}
			t, ok := valtypeFromByte(b)
			if !ok {
				return r.Errorf("type", "type %d param %d has invalid value type 0x%02X", i, j, b)
			}
			params = append(params, t)
		}
		nr, err := r.ReadU32()
		if err != nil {
			return r.WrapError("type", err)
		}
		result := TypeNone
		switch nr {
		case 0:
		case 1:
			b, err := r.ReadByte()
			if err != nil {
				return r.WrapError("type", err)
			}
			t, ok := valtypeFromByte(b)
			if !ok {
				return r.Errorf("type", "type %d result has invalid value type 0x%02X", i, b)
			}
			result = t
		default:
			return r.Errorf("type", "type %d has %d results; multiple results are not supported", i, nr)
		}

		// Same-shape entries collapse to one registered signature.
		sig, err := p.m.AddFunctionType("", result, params)
		if err != nil {
			return errors.Wrap(errors.PhaseParse, errors.KindParse, err, "type section")
		}
		p.sigs = append(p.sigs, sig)
	}
	return nil
}

func (p *parser) parseImports(payload []byte) error {
	r := bin.NewReader(payload)
	count, err := r.ReadU32()
	if err != nil {
		return r.WrapError("import", err)
	}
	for i := uint32(0); i < count; i++ {
		module, err := r.ReadName()
		if err != nil {
			return r.WrapError("import", err)
		}
		base, err := r.ReadName()
		if err != nil {
			return r.WrapError("import", err)
		}
		kind, err := r.ReadByte()
		if err != nil {
			return r.WrapError("import", err)
		}

		switch kind {
		case bin.KindFunc:
			sigIdx, err := r.ReadU32()
			if err != nil {
				return r.WrapError("import", err)
			}
			if int(sigIdx) >= len(p.sigs) {
				return r.Errorf("import", "import %d references type %d of %d", i, sigIdx, len(p.sigs))
			}
			spaceIdx := uint32(len(p.funcSpaceNames))
			name := p.funcNames[spaceIdx]
			if name == "" {
				name = fmt.Sprintf("fimport$%d", spaceIdx)
			}
			name = claimName(p.usedFunc, name)
			if _, err := p.m.AddFunctionImport(name, module, base, p.sigs[sigIdx]); err != nil {
				return errors.Wrap(errors.PhaseParse, errors.KindParse, err, "import section")
			}
			p.funcSpaceNames = append(p.funcSpaceNames, name)
			p.funcSpaceSigs = append(p.funcSpaceSigs, p.sigs[sigIdx])
			p.numFuncImports++

		case bin.KindTable:
			elem, err := r.ReadByte()
			if err != nil {
				return r.WrapError("import", err)
			}
			if elem != bin.ValFuncRef {
				return r.Errorf("import", "table import has element type 0x%02X", elem)
			}
			if _, _, _, err := readLimits(r, "import"); err != nil {
				return err
			}
			if _, err := p.m.AddTableImport("timport$0", module, base); err != nil {
				return errors.Wrap(errors.PhaseParse, errors.KindParse, err, "import section")
			}
			p.tableImported = true

		case bin.KindMemory:
			if _, _, _, err := readLimits(r, "import"); err != nil {
				return err
			}
			if _, err := p.m.AddMemoryImport("mimport$0", module, base); err != nil {
				return errors.Wrap(errors.PhaseParse, errors.KindParse, err, "import section")
			}
			p.memoryImported = true

		case bin.KindGlobal:
			b, err := r.ReadByte()
			if err != nil {
				return r.WrapError("import", err)
			}
			typ, ok := valtypeFromByte(b)
			if !ok {
				return r.Errorf("import", "global import has invalid value type 0x%02X", b)
			}
			mut, err := r.ReadByte()
			if err != nil {
				return r.WrapError("import", err)
			}
			if mut != 0 {
				return r.Errorf("import", "mutable global imports are not supported")
			}
			spaceIdx := uint32(len(p.globalSpaceNames))
			name := p.globalNames[spaceIdx]
			if name == "" {
				name = fmt.Sprintf("gimport$%d", spaceIdx)
			}
			name = claimName(p.usedGlobal, name)
			if _, err := p.m.AddGlobalImport(name, module, base, typ); err != nil {
				return errors.Wrap(errors.PhaseParse, errors.KindParse, err, "import section")
			}
			p.globalSpaceNames = append(p.globalSpaceNames, name)
			p.globalSpaceTypes = append(p.globalSpaceTypes, typ)
			p.numGlobalImports++

		default:
			return r.Errorf("import", "import %d has unknown kind %d", i, kind)
		}
	}
	return nil
}

func (p *parser) parseFunctions(payload []byte) error {
	r := bin.NewReader(payload)
	count, err := r.ReadU32()
	if err != nil {
		return r.WrapError("function", err)
	}
	for i := uint32(0); i < count; i++ {
		sigIdx, err := r.ReadU32()
		if err != nil {
			return r.WrapError("function", err)
		}
		if int(sigIdx) >= len(p.sigs) {
			return r.Errorf("function", "function %d references type %d of %d", i, sigIdx, len(p.sigs))
		}
		spaceIdx := uint32(len(p.funcSpaceNames))
		name := p.funcNames[spaceIdx]
		if name == "" {
			name = fmt.Sprintf("func$%d", spaceIdx)
		}
		name = claimName(p.usedFunc, name)
		p.funcSpaceNames = append(p.funcSpaceNames, name)
		p.funcSpaceSigs = append(p.funcSpaceSigs, p.sigs[sigIdx])
	}
	return nil
}

func (p *parser) parseTable(payload []byte) error {
	r := bin.NewReader(payload)
	count, err := r.ReadU32()
	if err != nil {
		return r.WrapError("table", err)
	}
	if count > 1 {
		return r.Errorf("table", "%d tables; at most one is supported", count)
	}
	if count == 1 {
		elem, err := r.ReadByte()
		if err != nil {
			return r.WrapError("table", err)
		}
		if elem != bin.ValFuncRef {
			return r.Errorf("table", "element type 0x%02X, expected funcref", elem)
		}
		if _, _, _, err := readLimits(r, "table"); err != nil {
			return err
		}
		// Contents arrive with the element section. A table with no
		// elements has no in-model representation and is dropped.
	}
	return nil
}

func (p *parser) parseMemory(payload []byte) error {
	r := bin.NewReader(payload)
	count, err := r.ReadU32()
	if err != nil {
		return r.WrapError("memory", err)
	}
	if count > 1 {
		return r.Errorf("memory", "%d memories; at most one is supported", count)
	}
	if count == 1 {
		min, max, hasMax, err := readLimits(r, "memory")
		if err != nil {
			return err
		}
		p.hasMemorySec = true
		p.memInitial = min
		p.memMaximum = NoMaximum
		if hasMax {
			p.memMaximum = max
		}
	}
	return nil
}

// readInitExpr accepts the constant initializer forms: one const or one
// read of an imported global, then end.
func (p *parser) readInitExpr(r *bin.Reader, section string) (Expr, error) {
	op, err := r.ReadByte()
	if err != nil {
		return nil, r.WrapError(section, err)
	}

	var e Expr
	switch op {
	case bin.OpI32Const:
		v, err := r.ReadS32()
		if err != nil {
			return nil, r.WrapError(section, err)
		}
		e, err = p.m.Const(Int32Literal(v))
		if err != nil {
			return nil, err
		}
	case bin.OpI64Const:
		v, err := r.ReadS64()
		if err != nil {
			return nil, r.WrapError(section, err)
		}
		e, err = p.m.Const(Int64Literal(v))
		if err != nil {
			return nil, err
		}
	case bin.OpF32Const:
		bits, err := r.ReadU32LE()
		if err != nil {
			return nil, r.WrapError(section, err)
		}
		e, err = p.m.Const(Float32LiteralBits(bits))
		if err != nil {
			return nil, err
		}
	case bin.OpF64Const:
		bits, err := r.ReadU64LE()
		if err != nil {
			return nil, r.WrapError(section, err)
		}
		e, err = p.m.Const(Float64LiteralBits(bits))
		if err != nil {
			return nil, err
		}
	case bin.OpGlobalGet:
		idx, err := r.ReadU32()
		if err != nil {
			return nil, r.WrapError(section, err)
		}
		if int(idx) >= p.numGlobalImports {
			return nil, r.Errorf(section, "initializer may only read imported globals, got index %d", idx)
		}
		e, err = p.m.GetGlobal(p.globalSpaceNames[idx], p.globalSpaceTypes[idx])
		if err != nil {
			return nil, err
		}
	default:
		return nil, r.Errorf(section, "unsupported initializer opcode 0x%02X", op)
	}

	end, err := r.ReadByte()
	if err != nil {
		return nil, r.WrapError(section, err)
	}
	if end != bin.OpEnd {
		return nil, r.Errorf(section, "initializer not terminated, got 0x%02X", end)
	}
	return e, nil
}

func (p *parser) parseGlobals(payload []byte) error {
	r := bin.NewReader(payload)
	count, err := r.ReadU32()
	if err != nil {
		return r.WrapError("global", err)
	}
	for i := uint32(0); i < count; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return r.WrapError("global", err)
		}
		typ, ok := valtypeFromByte(b)
		if !ok {
			return r.Errorf("global", "global %d has invalid value type 0x%02X", i, b)
		}
		mut, err := r.ReadByte()
		if err != nil {
			return r.WrapError("global", err)
		}
		if mut > 1 {
			return r.Errorf("global", "global %d has invalid mutability %d", i, mut)
		}
		init, err := p.readInitExpr(r, "global")
		if err != nil {
			return err
		}

		spaceIdx := uint32(len(p.globalSpaceNames))
		name := p.globalNames[spaceIdx]
		if name == "" {
			name = fmt.Sprintf("global$%d", spaceIdx)
		}
		name = claimName(p.usedGlobal, name)
		if _, err := p.m.AddGlobal(name, typ, mut == 1, init); err != nil {
			return errors.Wrap(errors.PhaseParse, errors.KindParse, err, "global section")
		}
		p.globalSpaceNames = append(p.globalSpaceNames, name)
		p.globalSpaceTypes = append(p.globalSpaceTypes, typ)
	}
	return nil
}

func (p *parser) parseExports(payload []byte) error {
	r := bin.NewReader(payload)
	count, err := r.ReadU32()
	if err != nil {
		return r.WrapError("export", err)
	}
	for i := uint32(0); i < count; i++ {
		name, err := r.ReadName()
		if err != nil {
			return r.WrapError("export", err)
		}
		kind, err := r.ReadByte()
		if err != nil {
			return r.WrapError("export", err)
		}
		idx, err := r.ReadU32()
		if err != nil {
			return r.WrapError("export", err)
		}

		var addErr error
		switch kind {
		case bin.KindFunc:
			if int(idx) >= len(p.funcSpaceNames) {
				return r.Errorf("export", "export %q references function %d of %d",
					name, idx, len(p.funcSpaceNames))
			}
			_, addErr = p.m.AddFunctionExport(p.funcSpaceNames[idx], name)
		case bin.KindTable:
			internal := "0"
			if p.tableImported {
				internal = "timport$0"
			}
			_, addErr = p.m.AddTableExport(internal, name)
		case bin.KindMemory:
			internal := "0"
			if p.memoryImported {
				internal = "mimport$0"
			}
			_, addErr = p.m.AddMemoryExport(internal, name)
		case bin.KindGlobal:
			if int(idx) >= len(p.globalSpaceNames) {
				return r.Errorf("export", "export %q references global %d of %d",
					name, idx, len(p.globalSpaceNames))
			}
			_, addErr = p.m.AddGlobalExport(p.globalSpaceNames[idx], name)
		default:
			return r.Errorf("export", "export %q has unknown kind %d", name, kind)
		}
		if addErr != nil {
			return errors.Wrap(errors.PhaseParse, errors.KindParse, addErr, "export section")
		}
	}
	return nil
}

func (p *parser) parseStart(payload []byte) error {
	r := bin.NewReader(payload)
	idx, err := r.ReadU32()
	if err != nil {
		return r.WrapError("start", err)
	}
	if int(idx) >= len(p.funcSpaceNames) {
		return r.Errorf("start", "start references function %d of %d", idx, len(p.funcSpaceNames))
	}
	if int(idx) < p.numFuncImports {
		return r.Errorf("start", "start references an imported function")
	}
	p.hasStart = true
	p.startIdx = idx
	return nil
}

func (p *parser) parseElements(payload []byte) error {
	r := bin.NewReader(payload)
	count, err := r.ReadU32()
	if err != nil {
		return r.WrapError("element", err)
	}
	if count == 0 {
		return nil
	}
	if count > 1 {
		return r.Errorf("element", "%d segments; the function table takes exactly one", count)
	}

	tableIdx, err := r.ReadU32()
	if err != nil {
		return r.WrapError("element", err)
	}
	if tableIdx != 0 {
		return r.Errorf("element", "segment targets table %d", tableIdx)
	}
	offset, err := p.readInitExpr(r, "element")
	if err != nil {
		return err
	}
	c, ok := offset.(*Const)
	if !ok || c.Value.Type() != TypeInt32 || c.Value.I32() != 0 {
		return r.Errorf("element", "the function table requires a constant zero offset")
	}

	n, err := r.ReadU32()
	if err != nil {
		return r.WrapError("element", err)
	}
	names := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		idx, err := r.ReadU32()
		if err != nil {
			return r.WrapError("element", err)
		}
		if int(idx) >= len(p.funcSpaceNames) {
			return r.Errorf("element", "entry %d references function %d of %d",
				i, idx, len(p.funcSpaceNames))
		}
		names = append(names, p.funcSpaceNames[idx])
	}
	if len(names) == 0 {
		return nil
	}
	if err := p.m.SetFunctionTable(names); err != nil {
		return errors.Wrap(errors.PhaseParse, errors.KindParse, err, "element section")
	}
	return nil
}

func (p *parser) parseCode(payload []byte) error {
	r := bin.NewReader(payload)
	count, err := r.ReadU32()
	if err != nil {
		return r.WrapError("code", err)
	}
	defined := len(p.funcSpaceNames) - p.numFuncImports
	if int(count) != defined {
		return r.Errorf("code", "%d bodies for %d declared functions", count, defined)
	}

	for i := 0; i < int(count); i++ {
		size, err := r.ReadU32()
		if err != nil {
			return r.WrapError("code", err)
		}
		body, err := r.ReadBytes(int(size))
		if err != nil {
			return r.WrapError("code", err)
		}

		name := p.funcSpaceNames[p.numFuncImports+i]
		sig := p.funcSpaceSigs[p.numFuncImports+i]
		if err := p.parseBody(name, sig, body); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) parseBody(name string, sig *Signature, body []byte) error {
	r := bin.NewReader(body)
	section := "code (" + name + ")"

	groups, err := r.ReadU32()
	if err != nil {
		return r.WrapError(section, err)
	}
	var locals []Type
	for g := uint32(0); g < groups; g++ {
		n, err := r.ReadU32()
		if err != nil {
			return r.WrapError(section, err)
		}
		b, err := r.ReadByte()
		if err != nil {
			return r.WrapError(section, err)
		}
		t, ok := valtypeFromByte(b)
		if !ok {
			return r.Errorf(section, "local group %d has invalid value type 0x%02X", g, b)
		}
		if len(locals)+int(n) > 50000 {
			return r.Errorf(section, "too many locals")
		}
		for j := uint32(0); j < n; j++ {
			locals = append(locals, t)
		}
	}

	br := &bodyReader{
		p:       p,
		r:       r,
		section: section,
		sig:     sig,
		locals:  append(append([]Type(nil), sig.params...), locals...),
		extras:  locals,
	}
	bodyExpr, err := br.run()
	if err != nil {
		return err
	}
	if r.Len() != 0 {
		return r.Errorf(section, "%d trailing bytes after function end", r.Len())
	}

	if _, err := p.m.AddFunction(name, sig, br.extras, bodyExpr); err != nil {
		return errors.Wrap(errors.PhaseParse, errors.KindParse, err, "code section")
	}
	return nil
}

func (p *parser) parseData(payload []byte) error {
	r := bin.NewReader(payload)
	count, err := r.ReadU32()
	if err != nil {
		return r.WrapError("data", err)
	}
	if count > 0 && !p.hasMemorySec {
		return r.Errorf("data", "data segments without a defined memory are not supported")
	}
	for i := uint32(0); i < count; i++ {
		memIdx, err := r.ReadU32()
		if err != nil {
			return r.WrapError("data", err)
		}
		if memIdx != 0 {
			return r.Errorf("data", "segment %d targets memory %d", i, memIdx)
		}
		offset, err := p.readInitExpr(r, "data")
		if err != nil {
			return err
		}
		size, err := r.ReadU32()
		if err != nil {
			return r.WrapError("data", err)
		}
		data, err := r.ReadBytes(int(size))
		if err != nil {
			return r.WrapError("data", err)
		}
		p.segments = append(p.segments, Segment{
			Offset: offset,
			Data:   append([]byte(nil), data...),
		})
	}
	return nil
}

func (p *parser) finish() error {
	if p.hasMemorySec {
		segments := p.segments
		if segments == nil {
			segments = []Segment{}
		}
		if err := p.m.SetMemory(p.memInitial, p.memMaximum, "", segments); err != nil {
			return errors.Wrap(errors.PhaseParse, errors.KindParse, err, "memory")
		}
	}
	if p.hasStart {
		fn := p.m.GetFunction(p.funcSpaceNames[p.startIdx])
		if err := p.m.SetStart(fn); err != nil {
			return errors.Wrap(errors.PhaseParse, errors.KindParse, err, "start")
		}
	}
	return nil
}
