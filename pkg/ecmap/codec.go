package ecmap

import (
	"encoding/json"

	"github.com/vexxhost/vnetmanager/pkg/clock"
)

// Codec serializes map entries for the transport.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// JSON is the default codec.
var JSON Codec = jsonCodec{}

// header is the part of an entry needed to order writes.
type header struct {
	Timestamp clock.Timestamp `json:"timestamp"`
	Origin    string          `json:"origin"`
}

// supersedes reports whether a write with header h replaces one with o.
func (h header) supersedes(o header) bool {
	if c := h.Timestamp.Compare(o.Timestamp); c != 0 {
		return c > 0
	}
	return h.Origin > o.Origin
}

type envelope[K Key, V any] struct {
	Key       K               `json:"key"`
	Value     V               `json:"value"`
	Timestamp clock.Timestamp `json:"timestamp"`
	Origin    string          `json:"origin"`
	Tombstone bool            `json:"tombstone,omitempty"`
}

func (e envelope[K, V]) header() header {
	return header{Timestamp: e.Timestamp, Origin: e.Origin}
}
