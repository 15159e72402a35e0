package engine

// Buffer is a typed view over tensor memory. The set of implementations is
// closed: Int16Buffer, Int32Buffer, Int64Buffer, Uint8Buffer, Float32Buffer.
//
// Code that needs per-width behavior implements Visitor. Adding a new width
// means adding a Visitor method, so every existing visitor stops compiling
// until it handles the new case.
type Buffer interface {
	Len() int
	Element() ElementType
	Accept(v Visitor) error
}

// Visitor handles every buffer width.
type Visitor interface {
	VisitInt16(data []int16) error
	VisitInt32(data []int32) error
	VisitInt64(data []int64) error
	VisitUint8(data []uint8) error
	VisitFloat32(data []float32) error
}

type (
	Int16Buffer   []int16
	Int32Buffer   []int32
	Int64Buffer   []int64
	Uint8Buffer   []uint8
	Float32Buffer []float32
)

func (b Int16Buffer) Len() int { return len(b) }
func (b Int16Buffer) Element() ElementType { return ElementInt16 }
func (b Int16Buffer) Accept(v Visitor) error { return v.VisitInt16(b) }
func (b Int32Buffer) Len() int { return len(b) }
func (b Int32Buffer) Element() ElementType { return ElementInt32 }
func (b Int32Buffer) Accept(v Visitor) error { return v.VisitInt32(b) }
func (b Int64Buffer) Len() int { return len(b) }
func (b Int64Buffer) Element() ElementType { return ElementInt64 }
func (b Int64Buffer) Accept(v Visitor) error { return v.VisitInt64(b) }
func (b Uint8Buffer) Len() int { return len(b) }
func (b Uint8Buffer) Element() ElementType { return ElementUint8 }
func (b Uint8Buffer) Accept(v Visitor) error { return v.VisitUint8(b) }
func (b Float32Buffer) Len() int { return len(b) }
func (b Float32Buffer) Element() ElementType { return ElementFloat32 }
func (b Float32Buffer) Accept(v Visitor) error { return v.VisitFloat32(b) }

// NewBuffer allocates a zeroed buffer of n elements of type e.
func NewBuffer(e ElementType, n int) (Buffer, error) {
	switch e {
	case ElementInt16:
		return make(Int16Buffer, n), nil
	case ElementInt32:
		return make(Int32Buffer, n), nil
	case ElementInt64:
		return make(Int64Buffer, n), nil
	case ElementUint8:
		return make(Uint8Buffer, n), nil
	case ElementFloat32:
		return make(Float32Buffer, n), nil
	}
	return nil, Unsupported(e)
}

var (
	_ Buffer = Int16Buffer(nil)
	_ Buffer = Int32Buffer(nil)
	_ Buffer = Int64Buffer(nil)
	_ Buffer = Uint8Buffer(nil)
	_ Buffer = Float32Buffer(nil)
)
