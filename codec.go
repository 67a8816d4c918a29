package mst

// Codec supplies the byte-serialization capability the tree needs for a
// caller's key or value type. Key ordering and equality are defined as the
// lexicographic order of Encode's output, so Encode must be a pure,
// deterministic function of its input: the same logical key or value must
// always encode to the same bytes.
type Codec[T any] interface {
	Encode(T) ([]byte, error)
	Decode([]byte) (T, error)
}

// BytesCodec is the identity Codec for []byte keys or values.
type BytesCodec struct{}

func (BytesCodec) Encode(v []byte) ([]byte, error) { return v, nil }

func (BytesCodec) Decode(b []byte) ([]byte, error) {
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// StringCodec is the identity (UTF-8 bytes) Codec for string keys or values.
type StringCodec struct{}

func (StringCodec) Encode(v string) ([]byte, error) { return []byte(v), nil }

func (StringCodec) Decode(b []byte) (string, error) { return string(b), nil }
