package value

// Equal implements the equality rule: structural over primitives,
// reference equality over shareables (comparing the underlying Cell
// pointer, not the contents).
func Equal(a, b Value) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Unit:
		return true
	case Bool:
		return av == b.(Bool)
	case Byte:
		return av == b.(Byte)
	case Char:
		return av == b.(Char)
	case Integer:
		return av == b.(Integer)
	case Float:
		return av == b.(Float)
	case TypeValue:
		return av.Hash == b.(TypeValue).Hash
	case StaticString:
		return av.S == b.(StaticString).S
	case String:
		return av.Cell == b.(String).Cell
	case Bytes:
		return av.Cell == b.(Bytes).Cell
	case Vec:
		return av.Cell == b.(Vec).Cell
	case Tuple:
		return av.Cell == b.(Tuple).Cell
	case Object:
		return av.Cell == b.(Object).Cell
	case Option:
		return av.Cell == b.(Option).Cell
	case Result:
		return av.Cell == b.(Result).Cell
	case TypedTuple:
		return av.Cell == b.(TypedTuple).Cell
	case TypedObject:
		return av.Cell == b.(TypedObject).Cell
	case Future:
		return av.Cell == b.(Future).Cell
	case Generator:
		return av.Cell == b.(Generator).Cell
	case Stream:
		return av.Cell == b.(Stream).Cell
	case External:
		return av.Cell == b.(External).Cell
	default:
		return false
	}
}

// StructuralEqual compares Tuple/Vec contents element-wise and Strings by
// content, used by pattern matching (`tuple`/`vec`/`object` patterns) and
// the `==` operator, which compare shape rather than identity even though
// Equal (used for e.g. map-key dedup of externals) does not.
func StructuralEqual(a, b Value) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case String:
		return *av.Cell.Peek() == *b.(String).Cell.Peek()
	case Vec:
		bv := *b.(Vec).Cell.Peek()
		as := *av.Cell.Peek()
		if len(as) != len(bv) {
			return false
		}
		for i := range as {
			if !StructuralEqual(as[i], bv[i]) {
				return false
			}
		}
		return true
	case Tuple:
		bv := *b.(Tuple).Cell.Peek()
		as := *av.Cell.Peek()
		if len(as) != len(bv) {
			return false
		}
		for i := range as {
			if !StructuralEqual(as[i], bv[i]) {
				return false
			}
		}
		return true
	case Option:
		ap := *av.Cell.Peek()
		bp := *b.(Option).Cell.Peek()
		if ap == nil || bp == nil {
			return ap == nil && bp == nil
		}
		return StructuralEqual(*ap, *bp)
	case Result:
		ad := *av.Cell.Peek()
		bd := *b.(Result).Cell.Peek()
		return ad.IsOk == bd.IsOk && StructuralEqual(ad.Val, bd.Val)
	default:
		return Equal(a, b)
	}
}
