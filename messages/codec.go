// Package messages holds the wire formats: the model handshake and inbound
// frames on one side, and the UI bridge messages on the other.
package messages

import "github.com/bytedance/sonic"

// jsonAPI keeps encoding/json semantics (sorted map keys, HTML escaping).
var jsonAPI = sonic.ConfigStd

// Encode marshals v with the package codec.
func Encode(v any) ([]byte, error) {
	return jsonAPI.Marshal(v)
}

// DecodeInto unmarshals data into v with the package codec.
func DecodeInto(data []byte, v any) error {
	return jsonAPI.Unmarshal(data, v)
}
