//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Low-level proto3 encoding helpers shared by the messages.
//

package wire

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrWire is the root cause of every decoding failure.
var ErrWire = errors.New("wire: cannot decode message")

// wireError converts a negative protowire length into an error.
func wireError(n int) error {
	return fmt.Errorf("%w: %s", ErrWire, protowire.ParseError(n).Error())
}

// appendUint32Field appends a uint32 field unless it is zero.
func appendUint32Field(b []byte, num protowire.Number, v uint32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

// appendBytesField appends a bytes field unless it is empty.
func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) <= 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// appendStringField appends a string field unless it is empty.
func appendStringField(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

// appendMessageList appends each message in the list as an
// embedded field with the given number.
func appendMessageList[T Message](b []byte, num protowire.Number, list []T) ([]byte, error) {
	for _, msg := range list {
		raw, err := msg.MarshalWire()
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendBytes(b, raw)
	}
	return b, nil
}

// walkFields iterates over the top-level fields of an encoded
// message. For varint fields, fn receives the raw varint bytes;
// for length-delimited fields, the contained bytes. Fields that
// fn does not recognize are skipped.
func walkFields(data []byte, fn func(num protowire.Number, typ protowire.Type, value []byte) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return wireError(n)
		}
		data = data[n:]

		switch typ {
		case protowire.VarintType:
			_, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return wireError(n)
			}
			if err := fn(num, typ, data[:n]); err != nil {
				return err
			}
			data = data[n:]

		case protowire.BytesType:
			value, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return wireError(n)
			}
			if err := fn(num, typ, value); err != nil {
				return err
			}
			data = data[n:]

		default:
			// Unknown wire types (fixed32, fixed64, groups) can
			// only come from a schema change; skip them.
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return wireError(n)
			}
			data = data[n:]
		}
	}
	return nil
}

// setUint32 decodes a varint field into dst.
func setUint32(dst *uint32, typ protowire.Type, value []byte) error {
	if typ != protowire.VarintType {
		return fmt.Errorf("%w: unexpected wire type %d for varint field", ErrWire, typ)
	}
	v, n := protowire.ConsumeVarint(value)
	if n < 0 {
		return wireError(n)
	}
	*dst = uint32(v)
	return nil
}

// setBytes decodes a bytes field into dst, copying the value.
func setBytes(dst *[]byte, typ protowire.Type, value []byte) error {
	if typ != protowire.BytesType {
		return fmt.Errorf("%w: unexpected wire type %d for bytes field", ErrWire, typ)
	}
	*dst = append([]byte{}, value...)
	return nil
}

// setString decodes a string field into dst.
func setString(dst *string, typ protowire.Type, value []byte) error {
	if typ != protowire.BytesType {
		return fmt.Errorf("%w: unexpected wire type %d for string field", ErrWire, typ)
	}
	*dst = string(value)
	return nil
}
