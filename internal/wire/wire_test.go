package wire

import (
	"encoding/json"
	"testing"
)

func TestMessageRoundTripsThroughJSON(t *testing.T) {
	msg := Message{
		Type: MessageBeginStream,
		BeginStream: &BeginStreamMsg{
			RequestID: 7,
			Snapshot:  json.RawMessage(`{"value":42}`),
		},
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Message
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != MessageBeginStream {
		t.Fatalf("unexpected type: %v", decoded.Type)
	}
	if decoded.BeginStream == nil || decoded.BeginStream.RequestID != 7 {
		t.Fatalf("unexpected begin_stream payload: %+v", decoded.BeginStream)
	}
}

func TestEnvelopeCarriesOpaqueData(t *testing.T) {
	env := Envelope{DirectID: 3, Data: json.RawMessage(`{"type":"action"}`)}
	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Envelope
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.DirectID != 3 {
		t.Fatalf("unexpected direct id: %d", decoded.DirectID)
	}
}

func TestByNameResolvesEveryCodec(t *testing.T) {
	for _, name := range []string{"", "none", "gzip", "snappy", "zstd"} {
		c, err := ByName(name)
		if err != nil {
			t.Fatalf("ByName(%q): %v", name, err)
		}
		payload := []byte("hello flow bus")
		compressed, err := c.Compress(payload)
		if err != nil {
			t.Fatalf("%s compress: %v", name, err)
		}
		restored, err := c.Decompress(compressed)
		if err != nil {
			t.Fatalf("%s decompress: %v", name, err)
		}
		if string(restored) != string(payload) {
			t.Fatalf("%s round trip mismatch: got %q", name, restored)
		}
	}
}

func TestByNameRejectsUnknownCodec(t *testing.T) {
	if _, err := ByName("lz4"); err == nil {
		t.Fatalf("expected error for unknown codec")
	}
}
