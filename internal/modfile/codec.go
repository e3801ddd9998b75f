package modfile

import (
	"errors"
	"fmt"

	"fortio.org/safecast"

	"insider/internal/il"
	"insider/internal/meta"
)

var (
	// ErrSchema is returned for payloads written by an incompatible version.
	ErrSchema = errors.New("unsupported module schema")
	// ErrCorrupt is returned for payloads that decode but do not form a
	// valid module.
	ErrCorrupt = errors.New("corrupt module file")
	// ErrDangling is returned when a body still branches to a removed
	// instruction and cannot be encoded.
	ErrDangling = errors.New("branch target is not part of the body")
	// ErrEncode is returned by Write when the module tree cannot be
	// serialized. It wraps the underlying cause, such as ErrDangling.
	ErrEncode = errors.New("cannot encode module")
)

func toPayload(mod *meta.Module, mvid string) (*filePayload, error) {
	p := &filePayload{
		Schema:     schemaVersion,
		Name:       mod.Name,
		MVID:       mvid,
		References: append([]meta.ModuleRef(nil), mod.References...),
	}
	if mod.Assembly != nil {
		p.Assembly = assemblyPayload{
			Name:    mod.Assembly.Name,
			Version: mod.Assembly.Version,
			Markers: encodeMarkers(mod.Assembly.Markers()),
		}
	}
	p.Types = make([]typePayload, 0, len(mod.Types))
	for _, t := range mod.Types {
		tp, err := encodeType(t)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t.FullName(), err)
		}
		p.Types = append(p.Types, tp)
	}
	return p, nil
}

func encodeType(t *meta.TypeDef) (typePayload, error) {
	tp := typePayload{
		Namespace:  t.Namespace,
		Name:       t.Name,
		Base:       t.BaseType,
		Interfaces: t.Interfaces,
		Abstract:   t.Abstract,
		Interface:  t.Interface,
		Markers:    encodeMarkers(t.Markers()),
	}
	for _, f := range t.Fields {
		tp.Fields = append(tp.Fields, fieldPayload{Name: f.Name, Type: f.Type, Static: f.Static, Markers: encodeMarkers(f.Markers())})
	}
	for _, pr := range t.Properties {
		tp.Properties = append(tp.Properties, propertyPayload{
			Name: pr.Name, Type: pr.Type, HasGetter: pr.HasGetter, HasSetter: pr.HasSetter,
			Markers: encodeMarkers(pr.Markers()),
		})
	}
	for _, e := range t.Events {
		tp.Events = append(tp.Events, eventPayload{Name: e.Name, Type: e.Type, Markers: encodeMarkers(e.Markers())})
	}
	for _, m := range t.Methods {
		mp := methodPayload{
			Name: m.Name, Result: m.Result, Static: m.Static, Virtual: m.Virtual, Abstract: m.Abstract,
			Markers: encodeMarkers(m.Markers()),
		}
		for _, prm := range m.Params {
			mp.Params = append(mp.Params, paramPayload{Name: prm.Name, Type: prm.Type, Markers: encodeMarkers(prm.Markers())})
		}
		if m.Body != nil {
			bp, err := encodeBody(m.Body)
			if err != nil {
				return tp, fmt.Errorf("%s: %w", m.Name, err)
			}
			mp.Body = bp
		}
		tp.Methods = append(tp.Methods, mp)
	}
	return tp, nil
}

func encodeBody(b *il.Body) (*bodyPayload, error) {
	index := make(map[*il.Instr]uint32, len(b.Instrs))
	for i, in := range b.Instrs {
		u, err := safecast.Conv[uint32](i)
		if err != nil {
			return nil, err
		}
		index[in] = u
	}
	target := func(t *il.Instr) (uint32, error) {
		u, ok := index[t]
		if !ok {
			return 0, fmt.Errorf("%w: %v", ErrDangling, t)
		}
		return u, nil
	}
	boundary := func(t *il.Instr) (uint32, error) {
		if t == nil {
			return 0, nil
		}
		u, err := target(t)
		return u + 1, err
	}

	bp := &bodyPayload{
		Instrs:     make([]instrPayload, len(b.Instrs)),
		Locals:     b.Locals,
		MaxStack:   b.MaxStack,
		InitLocals: b.InitLocals,
	}
	for i, in := range b.Instrs {
		ip := instrPayload{Code: uint16(in.OpCode.Code)}
		var ok bool
		switch in.OpCode.Operand {
		case il.OperandNone:
			ok = true
		case il.OperandInt32, il.OperandInt64, il.OperandVar:
			ip.Int, ok = meta.As[int64](in.Operand)
		case il.OperandFloat32, il.OperandFloat64:
			ip.Float, ok = meta.As[float64](in.Operand)
		case il.OperandString:
			ip.Str, ok = in.Operand.(string)
		case il.OperandBranch:
			t, isInstr := in.Operand.(*il.Instr)
			if !isInstr {
				break
			}
			u, err := target(t)
			if err != nil {
				return nil, fmt.Errorf("instruction %d: %w", i, err)
			}
			ip.Target, ok = u, true
		case il.OperandSwitch:
			ts, isTable := in.Operand.([]*il.Instr)
			if !isTable {
				break
			}
			ip.Targets = make([]uint32, len(ts))
			for j, t := range ts {
				u, err := target(t)
				if err != nil {
					return nil, fmt.Errorf("instruction %d: %w", i, err)
				}
				ip.Targets[j] = u
			}
			ok = true
		case il.OperandMethod, il.OperandField, il.OperandType:
			var ref il.Ref
			ref, ok = in.Operand.(il.Ref)
			ip.Ref = &ref
		}
		if !ok {
			return nil, fmt.Errorf("instruction %d (%s): %w", i, in, il.ErrMalformed)
		}
		bp.Instrs[i] = ip
	}
	for _, h := range b.Handlers {
		hp := handlerPayload{Kind: uint8(h.Kind), CatchType: h.CatchType}
		var err error
		if hp.TryStart, err = boundary(h.TryStart); err != nil {
			return nil, err
		}
		if hp.TryEnd, err = boundary(h.TryEnd); err != nil {
			return nil, err
		}
		if hp.HandlerStart, err = boundary(h.HandlerStart); err != nil {
			return nil, err
		}
		if hp.HandlerEnd, err = boundary(h.HandlerEnd); err != nil {
			return nil, err
		}
		bp.Handlers = append(bp.Handlers, hp)
	}
	return bp, nil
}

func encodeMarkers(l *meta.MarkerList) []markerPayload {
	if l.Len() == 0 {
		return nil
	}
	out := make([]markerPayload, 0, l.Len())
	for _, m := range l.All() {
		mp := markerPayload{Type: m.Type}
		for _, a := range m.Args {
			mp.Args = append(mp.Args, encodeValue(a))
		}
		for _, na := range m.Fields {
			mp.Fields = append(mp.Fields, namedPayload{Name: na.Name, Value: encodeValue(na.Value)})
		}
		for _, na := range m.Properties {
			mp.Properties = append(mp.Properties, namedPayload{Name: na.Name, Value: encodeValue(na.Value)})
		}
		out = append(out, mp)
	}
	return out
}

func encodeValue(v meta.Value) valuePayload {
	p := valuePayload{Type: v.Type}
	switch x := v.V.(type) {
	case meta.Value:
		b := encodeValue(x)
		p.Boxed = &b
	case *meta.Value:
		if x != nil {
			b := encodeValue(*x)
			p.Boxed = &b
		}
	case []meta.Value:
		p.Array = true
		p.Items = make([]valuePayload, len(x))
		for i, e := range x {
			p.Items[i] = encodeValue(e)
		}
	default:
		p.Scalar = x
	}
	return p
}

func fromPayload(p *filePayload) (*meta.Module, error) {
	if p.Schema != schemaVersion {
		return nil, fmt.Errorf("%w: %d (want %d)", ErrSchema, p.Schema, schemaVersion)
	}
	if p.Name == "" {
		return nil, fmt.Errorf("%w: module has no name", ErrCorrupt)
	}
	mod := meta.New(p.Name)
	if p.MVID != "" {
		id, err := parseMVID(p.MVID)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		mod.MVID = id
	}
	mod.Assembly = &meta.Assembly{Name: p.Assembly.Name, Version: p.Assembly.Version}
	if mod.Assembly.Name == "" {
		mod.Assembly.Name = p.Name
	}
	decodeMarkers(mod.Assembly.Markers(), p.Assembly.Markers)
	mod.References = append(mod.References, p.References...)

	for _, tp := range p.Types {
		t := &meta.TypeDef{
			Namespace:  tp.Namespace,
			Name:       tp.Name,
			BaseType:   tp.Base,
			Interfaces: tp.Interfaces,
			Abstract:   tp.Abstract,
			Interface:  tp.Interface,
		}
		decodeMarkers(t.Markers(), tp.Markers)
		for _, fp := range tp.Fields {
			f := &meta.FieldDef{Name: fp.Name, Type: fp.Type, Static: fp.Static}
			decodeMarkers(f.Markers(), fp.Markers)
			t.Fields = append(t.Fields, f)
		}
		for _, pp := range tp.Properties {
			pr := &meta.PropertyDef{Name: pp.Name, Type: pp.Type, HasGetter: pp.HasGetter, HasSetter: pp.HasSetter}
			decodeMarkers(pr.Markers(), pp.Markers)
			t.Properties = append(t.Properties, pr)
		}
		for _, ep := range tp.Events {
			e := &meta.EventDef{Name: ep.Name, Type: ep.Type}
			decodeMarkers(e.Markers(), ep.Markers)
			t.Events = append(t.Events, e)
		}
		for _, mp := range tp.Methods {
			m := &meta.MethodDef{
				Name: mp.Name, Result: mp.Result, Static: mp.Static, Virtual: mp.Virtual, Abstract: mp.Abstract,
			}
			decodeMarkers(m.Markers(), mp.Markers)
			for _, prm := range mp.Params {
				pd := &meta.ParamDef{Name: prm.Name, Type: prm.Type}
				decodeMarkers(pd.Markers(), prm.Markers)
				m.Params = append(m.Params, pd)
			}
			if mp.Body != nil {
				body, err := decodeBody(mp.Body)
				if err != nil {
					return nil, fmt.Errorf("%s::%s: %w", t.FullName(), m.Name, err)
				}
				m.Body = body
			}
			t.Methods = append(t.Methods, m)
		}
		mod.Types = append(mod.Types, t)
	}
	mod.Link()
	return mod, nil
}

func decodeBody(bp *bodyPayload) (*il.Body, error) {
	b := &il.Body{
		Instrs:     make([]*il.Instr, len(bp.Instrs)),
		Locals:     bp.Locals,
		MaxStack:   bp.MaxStack,
		InitLocals: bp.InitLocals,
	}
	for i, ip := range bp.Instrs {
		op, ok := il.Op(il.Code(ip.Code))
		if !ok {
			return nil, fmt.Errorf("%w: instruction %d has unknown opcode %d", ErrCorrupt, i, ip.Code)
		}
		b.Instrs[i] = &il.Instr{OpCode: op}
	}
	at := func(u uint32) (*il.Instr, error) {
		if int64(u) >= int64(len(b.Instrs)) {
			return nil, fmt.Errorf("%w: target %d out of range", ErrCorrupt, u)
		}
		return b.Instrs[u], nil
	}
	for i, ip := range bp.Instrs {
		in := b.Instrs[i]
		switch in.OpCode.Operand {
		case il.OperandInt32:
			n, err := safecast.Conv[int32](ip.Int)
			if err != nil {
				return nil, fmt.Errorf("%w: instruction %d: %w", ErrCorrupt, i, err)
			}
			in.Operand = n
		case il.OperandInt64:
			in.Operand = ip.Int
		case il.OperandVar:
			n, err := safecast.Conv[int](ip.Int)
			if err != nil {
				return nil, fmt.Errorf("%w: instruction %d: %w", ErrCorrupt, i, err)
			}
			in.Operand = n
		case il.OperandFloat32:
			in.Operand = float32(ip.Float)
		case il.OperandFloat64:
			in.Operand = ip.Float
		case il.OperandString:
			in.Operand = ip.Str
		case il.OperandBranch:
			t, err := at(ip.Target)
			if err != nil {
				return nil, err
			}
			in.Operand = t
		case il.OperandSwitch:
			ts := make([]*il.Instr, len(ip.Targets))
			for j, u := range ip.Targets {
				t, err := at(u)
				if err != nil {
					return nil, err
				}
				ts[j] = t
			}
			in.Operand = ts
		case il.OperandMethod, il.OperandField, il.OperandType:
			if ip.Ref == nil {
				return nil, fmt.Errorf("%w: instruction %d has no member reference", ErrCorrupt, i)
			}
			in.Operand = *ip.Ref
		}
	}
	boundary := func(u uint32) (*il.Instr, error) {
		if u == 0 {
			return nil, nil
		}
		return at(u - 1)
	}
	for _, hp := range bp.Handlers {
		h := &il.Handler{Kind: il.HandlerKind(hp.Kind), CatchType: hp.CatchType}
		var err error
		if h.TryStart, err = boundary(hp.TryStart); err != nil {
			return nil, err
		}
		if h.TryEnd, err = boundary(hp.TryEnd); err != nil {
			return nil, err
		}
		if h.HandlerStart, err = boundary(hp.HandlerStart); err != nil {
			return nil, err
		}
		if h.HandlerEnd, err = boundary(hp.HandlerEnd); err != nil {
			return nil, err
		}
		b.Handlers = append(b.Handlers, h)
	}
	return b, nil
}

func decodeMarkers(l *meta.MarkerList, ps []markerPayload) {
	for _, mp := range ps {
		m := &meta.Marker{Type: mp.Type}
		for _, a := range mp.Args {
			m.Args = append(m.Args, decodeValue(a))
		}
		for _, na := range mp.Fields {
			m.Fields = append(m.Fields, meta.NamedArg{Name: na.Name, Value: decodeValue(na.Value)})
		}
		for _, na := range mp.Properties {
			m.Properties = append(m.Properties, meta.NamedArg{Name: na.Name, Value: decodeValue(na.Value)})
		}
		l.Add(m)
	}
}

func decodeValue(p valuePayload) meta.Value {
	switch {
	case p.Boxed != nil:
		return meta.Value{Type: p.Type, V: decodeValue(*p.Boxed)}
	case p.Array:
		items := make([]meta.Value, len(p.Items))
		for i, e := range p.Items {
			items[i] = decodeValue(e)
		}
		return meta.Value{Type: p.Type, V: items}
	}
	return meta.Value{Type: p.Type, V: normalize(p.Type, p.Scalar)}
}

// normalize restores the Go type of a scalar from its declared type name;
// msgpack decodes integers into the smallest type that holds them.
func normalize(typeName string, v any) any {
	var (
		out any
		ok  bool
	)
	switch typeName {
	case meta.TypeInt32:
		out, ok = meta.As[int32](v)
	case meta.TypeInt64:
		out, ok = meta.As[int64](v)
	case meta.TypeFloat64:
		out, ok = meta.As[float64](v)
	case meta.TypeFloat32:
		out, ok = meta.As[float32](v)
	case meta.TypeInt16:
		out, ok = meta.As[int16](v)
	case meta.TypeByte:
		out, ok = meta.As[uint8](v)
	default:
		return v
	}
	if !ok {
		return v
	}
	return out
}
