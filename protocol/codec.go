package protocol

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec 信封编解码。文本帧用 JSON，二进制帧用 msgpack，两者字段名一致
type Codec interface {
	Name() string
	Binary() bool
	Encode(event string, payload any) ([]byte, error)
	Decode(data []byte) (Envelope, error)
	Unmarshal(data []byte, v any) error
}

// Envelope 解出的信封，P 仍是所属编码的原始字节
type Envelope struct {
	T     string
	P     []byte
	codec Codec
}

var (
	JSON    Codec = jsonCodec{}
	Msgpack Codec = msgpackCodec{}
)

// CodecByName 按 ?codec= 参数选择编码，未知名字回落到 JSON
func CodecByName(name string) Codec {
	if name == Msgpack.Name() {
		return Msgpack
	}
	return JSON
}

// DecodePayload 把信封的负载解到 T
func DecodePayload[T any](env Envelope) (T, error) {
	var out T
	if len(env.P) == 0 {
		return out, errors.Errorf("empty payload for type %q", env.T)
	}
	c := env.codec
	if c == nil {
		c = JSON
	}
	if err := c.Unmarshal(env.P, &out); err != nil {
		return out, errors.Wrapf(err, "decode %q payload", env.T)
	}
	return out, nil
}

type jsonEnvelope struct {
	T string          `json:"t"`
	P json.RawMessage `json:"p"`
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Binary() bool { return false }

func (jsonCodec) Encode(event string, payload any) ([]byte, error) {
	if event == "" {
		return nil, errors.New("encode envelope with empty type")
	}
	if payload == nil {
		payload = struct{}{}
	}
	pb, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %q payload", event)
	}
	return json.Marshal(jsonEnvelope{T: event, P: pb})
}

func (c jsonCodec) Decode(data []byte) (Envelope, error) {
	if len(data) == 0 {
		return Envelope{}, errors.New("decode envelope with byte size 0")
	}
	var e jsonEnvelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, errors.Wrap(err, "decode envelope")
	}
	return Envelope{T: e.T, P: e.P, codec: c}, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

type msgpackEnvelope struct {
	T string             `msgpack:"t"`
	P msgpack.RawMessage `msgpack:"p"`
}

// msgpackCodec 复用 json 标签，保证两种编码下字段名相同
type msgpackCodec struct{}

func (msgpackCodec) Name() string { return "msgpack" }

func (msgpackCodec) Binary() bool { return true }

func (msgpackCodec) marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c msgpackCodec) Encode(event string, payload any) ([]byte, error) {
	if event == "" {
		return nil, errors.New("encode envelope with empty type")
	}
	if payload == nil {
		payload = struct{}{}
	}
	pb, err := c.marshal(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %q payload", event)
	}
	return c.marshal(msgpackEnvelope{T: event, P: pb})
}

func (c msgpackCodec) Decode(data []byte) (Envelope, error) {
	if len(data) == 0 {
		return Envelope{}, errors.New("decode envelope with byte size 0")
	}
	var e msgpackEnvelope
	if err := c.Unmarshal(data, &e); err != nil {
		return Envelope{}, errors.Wrap(err, "decode envelope")
	}
	return Envelope{T: e.T, P: e.P, codec: c}, nil
}

func (msgpackCodec) Unmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}
