package bytecode

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/aledsdavies/weft/span"
)

// unitFormatVersion prefixes every encoded unit so a future format
// change (new Inst field, new Op) is rejected before CBOR decodes into
// a partially-populated struct, rather than silently misreading it.
const unitFormatVersion = 1

// wireInst/wireFunction/wireUnit mirror the in-memory shapes but with
// cbor struct tags, keeping the hot-path Inst/LinkedFunction/Unit types
// free of serialization concerns. This is where fxamacker/cbor/v2 is
// wired in for Unit (de)serialization.
// span.Span itself carries no Source back-reference (just byte
// offsets), so a persisted Unit is only re-attachable to diagnostics
// once the caller supplies the original source text again.
type wireSpan struct {
	Start int `cbor:"1,keyasint"`
	End   int `cbor:"2,keyasint"`
}

type wireInst struct {
	Op   Op      `cbor:"1,keyasint"`
	A    int     `cbor:"2,keyasint"`
	B    int     `cbor:"3,keyasint"`
	I    int64   `cbor:"4,keyasint"`
	F    float64 `cbor:"5,keyasint"`
	Byte byte    `cbor:"6,keyasint"`
	Char rune    `cbor:"7,keyasint"`
	Str  string  `cbor:"8,keyasint"`
	Flag bool    `cbor:"9,keyasint"`
	Hash uint64  `cbor:"10,keyasint"`
}

type wireFunction struct {
	Name    string     `cbor:"1,keyasint"`
	Hash    uint64     `cbor:"2,keyasint"`
	Arity   int        `cbor:"3,keyasint"`
	IsAsync bool       `cbor:"4,keyasint"`
	IsGen   bool       `cbor:"5,keyasint"`
	Insts   []wireInst `cbor:"6,keyasint"`
	Spans   []wireSpan `cbor:"7,keyasint"`
	Strings []string   `cbor:"8,keyasint"`
	Keys    []string   `cbor:"9,keyasint"`
	Locals  int        `cbor:"10,keyasint"`
}

type wireUnit struct {
	Version   int            `cbor:"1,keyasint"`
	Functions []wireFunction `cbor:"2,keyasint"`
	EntryHash uint64         `cbor:"3,keyasint"`
}

// Marshal serializes u to CBOR for caching compiled artifacts to disk,
// prefixed with unitFormatVersion.
func Marshal(u *Unit) ([]byte, error) {
	w := wireUnit{Version: unitFormatVersion, EntryHash: u.EntryHash}
	for _, f := range u.Functions {
		wf := wireFunction{
			Name: f.Name, Hash: f.Hash, Arity: f.Arity, Locals: f.Locals,
			IsAsync: f.IsAsync, IsGen: f.IsGen,
			Strings: f.Strings, Keys: f.Keys,
		}
		for _, inst := range f.Insts {
			wf.Insts = append(wf.Insts, wireInst{
				Op: inst.Op, A: inst.A, B: inst.B, I: inst.I, F: inst.F,
				Byte: inst.Byte, Char: inst.Char, Str: inst.Str, Flag: inst.Flag, Hash: inst.Hash,
			})
		}
		for _, sp := range f.Spans {
			wf.Spans = append(wf.Spans, wireSpan{Start: sp.Start, End: sp.End})
		}
		w.Functions = append(w.Functions, wf)
	}
	return cbor.Marshal(w)
}

// Unmarshal deserializes a Unit previously produced by Marshal. The
// recovered spans are bare byte ranges; re-attaching them to a Source
// for rendering is the caller's job, same as for a freshly
// compiled Unit.
func Unmarshal(data []byte) (*Unit, error) {
	var w wireUnit
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	if w.Version != unitFormatVersion {
		return nil, fmt.Errorf("bytecode: unsupported unit format version %d (expected %d)", w.Version, unitFormatVersion)
	}
	u := &Unit{Functions: make(map[uint64]*LinkedFunction, len(w.Functions)), EntryHash: w.EntryHash}
	for _, wf := range w.Functions {
		lf := &LinkedFunction{
			Name: wf.Name, Hash: wf.Hash, Arity: wf.Arity, Locals: wf.Locals,
			IsAsync: wf.IsAsync, IsGen: wf.IsGen,
			Strings: wf.Strings, Keys: wf.Keys,
		}
		for _, wi := range wf.Insts {
			lf.Insts = append(lf.Insts, Inst{
				Op: wi.Op, A: wi.A, B: wi.B, I: wi.I, F: wi.F,
				Byte: wi.Byte, Char: wi.Char, Str: wi.Str, Flag: wi.Flag, Hash: wi.Hash,
			})
		}
		for _, ws := range wf.Spans {
			lf.Spans = append(lf.Spans, span.Span{Start: ws.Start, End: ws.End})
		}
		u.Functions[wf.Hash] = lf
	}
	return u, nil
}
