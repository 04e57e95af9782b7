package zrm

import (
	"fmt"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/protobuf/encoding/protowire"
)

// Envelope is a self-describing wire message: the canonical type
// identifier followed by the encoded payload. On the wire the identifier
// is varint-length-prefixed so a receiver can recover it without touching
// the payload.
type Envelope struct {
	TypeName string
	Payload  []byte
}

// Serialize encodes a registered message into an envelope tagged with its
// canonical identifier.
func Serialize(msg any) (*Envelope, error) {
	typeName, err := GetTypeName(msg)
	if err != nil {
		return nil, err
	}
	payload, err := msgpack.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("zrm: encode %s: %w", typeName, err)
	}
	return &Envelope{TypeName: typeName, Payload: payload}, nil
}

// Deserialize decodes an envelope into a new value of the expected type.
// The identifier check runs before any payload decoding: bytes of the
// wrong type could otherwise unmarshal without error into garbage fields.
// The returned value is a pointer to the expected struct type.
func Deserialize(env *Envelope, want reflect.Type, wantName string) (any, error) {
	if env.TypeName != wantName {
		return nil, &MessageTypeMismatchError{Expected: wantName, Actual: env.TypeName}
	}
	out := reflect.New(want)
	if err := msgpack.Unmarshal(env.Payload, out.Interface()); err != nil {
		return nil, fmt.Errorf("zrm: decode %s: %w", wantName, err)
	}
	return out.Interface(), nil
}

// Encode frames the envelope as varint(len(TypeName)) | TypeName | Payload.
func (e *Envelope) Encode() []byte {
	buf := protowire.AppendVarint(nil, uint64(len(e.TypeName)))
	buf = append(buf, e.TypeName...)
	return append(buf, e.Payload...)
}

// DecodeEnvelope splits a framed buffer back into an envelope without
// decoding the payload.
func DecodeEnvelope(b []byte) (*Envelope, error) {
	nameLen, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return nil, fmt.Errorf("zrm: malformed envelope: %w", protowire.ParseError(n))
	}
	rest := b[n:]
	if uint64(len(rest)) < nameLen {
		return nil, fmt.Errorf("zrm: malformed envelope: truncated type identifier")
	}
	return &Envelope{
		TypeName: string(rest[:nameLen]),
		Payload:  rest[nameLen:],
	}, nil
}

func deserializeAs[T any](env *Envelope, want reflect.Type, wantName string) (*T, error) {
	v, err := Deserialize(env, want, wantName)
	if err != nil {
		return nil, err
	}
	return v.(*T), nil
}
