// Package wire converts between transport payloads and the engine's types.
//
// Protobuf traffic uses google.protobuf.Struct carrying the same snake_case
// fields as the JSON DTOs, so one set of DTOs serves HTTP JSON, HTTP
// protobuf and gRPC.
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ToStruct encodes a DTO as a Struct via its JSON form.
func ToStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal %T: %w", v, err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, s); err != nil {
		return nil, fmt.Errorf("wire: %T is not a JSON object: %w", v, err)
	}
	return s, nil
}

// FromStruct decodes s into the DTO pointed to by v.  Unknown fields are
// rejected, matching the JSON handlers.
func FromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	raw, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("wire: marshal struct: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("wire: decode %T: %w", v, err)
	}
	return nil
}
