package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

type unmarshalable struct{}

func (unmarshalable) MarshalJSON() ([]byte, error) {
	return nil, errors.New("marshal failure")
}

func TestChangePayloadStates(t *testing.T) {
	var zero ChangePayload
	if zero.Defined() || !zero.IsEmpty() || zero.Raw() != nil {
		t.Fatalf("zero payload should be undefined and empty")
	}
	empty := NewChangePayload(nil)
	if !empty.Defined() || !empty.IsEmpty() || empty.Raw() != nil {
		t.Fatalf("nil raw should give a defined empty payload")
	}
	full := NewChangePayload(json.RawMessage(`{"id":"p1"}`))
	if !full.Defined() || full.IsEmpty() || string(full.Raw()) != `{"id":"p1"}` {
		t.Fatalf("unexpected payload %s", full.Raw())
	}
}

func TestChangePayloadRawIsCloned(t *testing.T) {
	raw := json.RawMessage(`{"id":"w1"}`)
	payload := NewChangePayload(raw)
	raw[2] = 'X'

	first := payload.Raw()
	first[2] = 'Y'
	if got := string(payload.Raw()); got != `{"id":"w1"}` {
		t.Fatalf("stored payload was mutated: %s", got)
	}
}

func TestDecodeChangePayloadIntoEntity(t *testing.T) {
	item := PpeItem{Base: Base{ID: "p1"}, Name: "Casco", Stock: decimal.RequireFromString("3.5")}
	payload, err := NewChangePayloadFromValue(item)
	if err != nil {
		t.Fatalf("build payload: %v", err)
	}
	got, ok := DecodeChangePayload[PpeItem](payload)
	if !ok || got.ID != "p1" || !got.Stock.Equal(item.Stock) {
		t.Fatalf("unexpected decode %+v %v", got, ok)
	}

	if _, ok := DecodeChangePayload[PpeItem](ChangePayload{}); ok {
		t.Fatalf("undefined payload must not decode")
	}
	if _, ok := DecodeChangePayload[PpeItem](NewChangePayload(json.RawMessage(`[1,2]`))); ok {
		t.Fatalf("mismatched shape must not decode")
	}
	if _, err := NewChangePayloadFromValue(unmarshalable{}); err == nil {
		t.Fatalf("expected marshal error")
	}
}
