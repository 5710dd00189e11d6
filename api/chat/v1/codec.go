// Package v1 holds the wire contract of chat.v1.ChatService: message types, the
// service descriptor, server registration and client stubs.
//
// Messages are plain structs encoded with a JSON codec registered under the gRPC
// content subtype "json". Clients must select it with
// grpc.CallContentSubtype(CodecName) (see DialOptions).
package v1

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content subtype the service is served under.
const CodecName = "json"

// Codec marshals chat.v1 messages as JSON.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("chat.v1: marshal %T: %w", v, err)
	}
	return b, nil
}

func (Codec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("chat.v1: unmarshal %T: %w", v, err)
	}
	return nil
}

func (Codec) Name() string { return CodecName }

func init() {
	encoding.RegisterCodec(Codec{})
}

// DialOptions returns the call options every ChatService client connection needs.
func DialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}
}
