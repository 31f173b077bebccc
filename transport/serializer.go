package transport

import (
	"bytes"
	"encoding/json"

	"github.com/BurntSushi/toml"
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
	"go.mongodb.org/mongo-driver/bson"
	"gopkg.in/yaml.v3"
)

// Codec names accepted by NewSerializer.
const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
	CodecCBOR    = "cbor"
	CodecYAML    = "yaml"
	CodecBSON    = "bson"
	CodecTOML    = "toml"
)

// Codecs lists every supported codec
var Codecs = []string{CodecJSON, CodecMsgpack, CodecCBOR, CodecYAML, CodecBSON, CodecTOML}

// Serializer encodes envelopes and key files with one codec.
type Serializer struct {
	codecType string
}

// NewSerializer creates a serializer. An empty name selects JSON.
func NewSerializer(codecType string) (*Serializer, error) {
	if codecType == "" {
		codecType = CodecJSON
	}
	switch codecType {
	case CodecJSON, CodecMsgpack, CodecCBOR, CodecYAML, CodecBSON, CodecTOML:
		return &Serializer{codecType: codecType}, nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedCodec, "codec %q", codecType)
	}
}

// Codec returns the codec name
func (s *Serializer) Codec() string {
	return s.codecType
}

// Marshal serializes a value to bytes
func (s *Serializer) Marshal(v any) ([]byte, error) {
	var data []byte
	var err error

	switch s.codecType {
	case CodecJSON:
		data, err = json.Marshal(v)
	case CodecMsgpack:
		data, err = msgpack.Marshal(v)
	case CodecCBOR:
		data, err = cbor.Marshal(v)
	case CodecYAML:
		data, err = yaml.Marshal(v)
	case CodecBSON:
		data, err = bson.Marshal(v)
	case CodecTOML:
		buf := new(bytes.Buffer)
		err = toml.NewEncoder(buf).Encode(v)
		data = buf.Bytes()
	default:
		return nil, errors.Wrapf(ErrUnsupportedCodec, "codec %q", s.codecType)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "%s marshal", s.codecType)
	}
	return data, nil
}

// Unmarshal deserializes bytes into v
func (s *Serializer) Unmarshal(data []byte, v any) error {
	var err error

	switch s.codecType {
	case CodecJSON:
		err = json.Unmarshal(data, v)
	case CodecMsgpack:
		err = msgpack.Unmarshal(data, v)
	case CodecCBOR:
		err = cbor.Unmarshal(data, v)
	case CodecYAML:
		err = yaml.Unmarshal(data, v)
	case CodecBSON:
		err = bson.Unmarshal(data, v)
	case CodecTOML:
		err = toml.Unmarshal(data, v)
	default:
		return errors.Wrapf(ErrUnsupportedCodec, "codec %q", s.codecType)
	}
	if err != nil {
		return errors.Wrapf(err, "%s unmarshal", s.codecType)
	}
	return nil
}

// MarshalEnvelope serializes an envelope
func (s *Serializer) MarshalEnvelope(env *Envelope) ([]byte, error) {
	if env == nil {
		return nil, ErrInvalidMessage
	}
	return s.Marshal(env)
}

// UnmarshalEnvelope deserializes an envelope
func (s *Serializer) UnmarshalEnvelope(data []byte) (*Envelope, error) {
	env := new(Envelope)
	if err := s.Unmarshal(data, env); err != nil {
		return nil, err
	}
	return env, nil
}
