// Package wire provides encoding and decoding for the tagged records shared
// by the network protocol and the on-disk log. Every record is a single
// self-delimiting JSON value, so a streaming decoder can find record
// boundaries without a length prefix.
package wire

import (
	"encoding/json"
	"fmt"
)

// KV is the payload of a Set, both on the wire and in the log.
type KV struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Command is a single persisted log record. Exactly one variant is set.
//
//	{"Set":{"key":"k","value":"v"}}
//	{"Rm":"k"}
type Command struct {
	Set *KV
	Rm  *string
}

type commandJSON struct {
	Set *KV     `json:"Set,omitempty"`
	Rm  *string `json:"Rm,omitempty"`
}

// MarshalJSON encodes the command as its tagged variant.
func (c Command) MarshalJSON() ([]byte, error) {
	if err := oneVariant(c.Set != nil, c.Rm != nil); err != nil {
		return nil, fmt.Errorf("wire: invalid command: %w", err)
	}
	return json.Marshal(commandJSON{Set: c.Set, Rm: c.Rm})
}

// UnmarshalJSON decodes a tagged command, rejecting records that are not
// exactly one of the known variants.
func (c *Command) UnmarshalJSON(data []byte) error {
	var aux commandJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if err := oneVariant(aux.Set != nil, aux.Rm != nil); err != nil {
		return fmt.Errorf("wire: invalid command: %w", err)
	}
	c.Set = aux.Set
	c.Rm = aux.Rm
	return nil
}

// Request is a single client request. Exactly one variant is set.
//
//	{"Set":{"key":"k","value":"v"}}
//	{"Rm":"k"}
//	{"Get":"k"}
type Request struct {
	Set *KV
	Rm  *string
	Get *string
}

type requestJSON struct {
	Set *KV     `json:"Set,omitempty"`
	Rm  *string `json:"Rm,omitempty"`
	Get *string `json:"Get,omitempty"`
}

func (r Request) MarshalJSON() ([]byte, error) {
	if err := oneVariant(r.Set != nil, r.Rm != nil, r.Get != nil); err != nil {
		return nil, fmt.Errorf("wire: invalid request: %w", err)
	}
	return json.Marshal(requestJSON{Set: r.Set, Rm: r.Rm, Get: r.Get})
}

func (r *Request) UnmarshalJSON(data []byte) error {
	var aux requestJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if err := oneVariant(aux.Set != nil, aux.Rm != nil, aux.Get != nil); err != nil {
		return fmt.Errorf("wire: invalid request: %w", err)
	}
	r.Set = aux.Set
	r.Rm = aux.Rm
	r.Get = aux.Get
	return nil
}

// GetResponse answers a Get request. A nil Value with an empty Err encodes
// {"Ok":null}, meaning the key is absent.
type GetResponse struct {
	Value *string
	Err   string
}

func (r GetResponse) MarshalJSON() ([]byte, error) {
	if r.Err != "" {
		return json.Marshal(map[string]string{"Err": r.Err})
	}
	return json.Marshal(map[string]*string{"Ok": r.Value})
}

func (r *GetResponse) UnmarshalJSON(data []byte) error {
	ok, errMsg, present, err := decodeResponse(data)
	if err != nil {
		return err
	}
	if errMsg != nil {
		r.Err = *errMsg
		return nil
	}
	if !present {
		return fmt.Errorf("wire: response has neither Ok nor Err")
	}
	if string(ok) == "null" {
		r.Value = nil
		return nil
	}
	var v string
	if err := json.Unmarshal(ok, &v); err != nil {
		return fmt.Errorf("wire: malformed Ok payload: %w", err)
	}
	r.Value = &v
	return nil
}

// AckResponse answers a Set or Rm request: {"Ok":null} or {"Err":"msg"}.
type AckResponse struct {
	Err string
}

func (r AckResponse) MarshalJSON() ([]byte, error) {
	if r.Err != "" {
		return json.Marshal(map[string]string{"Err": r.Err})
	}
	return []byte(`{"Ok":null}`), nil
}

func (r *AckResponse) UnmarshalJSON(data []byte) error {
	_, errMsg, present, err := decodeResponse(data)
	if err != nil {
		return err
	}
	if errMsg != nil {
		r.Err = *errMsg
		return nil
	}
	if !present {
		return fmt.Errorf("wire: response has neither Ok nor Err")
	}
	return nil
}

// decodeResponse splits a response record into its Ok payload and Err
// message. present reports whether the Ok key appeared at all, which is
// distinct from {"Ok":null}.
func decodeResponse(data []byte) (ok json.RawMessage, errMsg *string, present bool, err error) {
	var aux struct {
		Ok  json.RawMessage `json:"Ok"`
		Err *string         `json:"Err"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return nil, nil, false, err
	}
	return aux.Ok, aux.Err, aux.Ok != nil, nil
}

func oneVariant(set ...bool) error {
	n := 0
	for _, s := range set {
		if s {
			n++
		}
	}
	if n != 1 {
		return fmt.Errorf("expected exactly one variant, got %d", n)
	}
	return nil
}
