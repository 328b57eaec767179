package tts

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"
)

func TestChunkAudio_Scenario(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 20000)
	chunks, err := ChunkAudio("m1", payload, 8192, true)
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	wantLens := []int{8192, 8192, 3616}
	wantLast := []bool{false, false, true}
	for i, c := range chunks {
		raw, err := base64.StdEncoding.DecodeString(c.Bytes)
		if err != nil {
			t.Fatalf("decode chunk %d: %v", i, err)
		}
		if len(raw) != wantLens[i] {
			t.Fatalf("chunk %d: expected %d bytes, got %d", i, wantLens[i], len(raw))
		}
		if c.IsLast != wantLast[i] {
			t.Fatalf("chunk %d: expected is_last=%v", i, wantLast[i])
		}
		if c.Seq != i || c.MessageID != "m1" || !c.AutoPlay {
			t.Fatalf("chunk %d: unexpected metadata %+v", i, c)
		}
	}
}

func TestChunkAudio_Reconstructs(t *testing.T) {
	for _, n := range []int{1, 7, 8, 9, 64, 1000} {
		payload := make([]byte, n)
		for i := range payload {
			payload[i] = byte(i % 251)
		}
		for _, size := range []int{1, 3, 8, 100} {
			chunks, err := ChunkAudio("m", payload, size, false)
			if err != nil {
				t.Fatalf("chunk: %v", err)
			}
			if want := (n + size - 1) / size; len(chunks) != want {
				t.Fatalf("n=%d size=%d: expected %d chunks, got %d", n, size, want, len(chunks))
			}
			var joined []byte
			lastCount := 0
			for _, c := range chunks {
				raw, err := base64.StdEncoding.DecodeString(c.Bytes)
				if err != nil {
					t.Fatalf("decode: %v", err)
				}
				if len(raw) < 1 || len(raw) > size {
					t.Fatalf("chunk length %d outside [1,%d]", len(raw), size)
				}
				joined = append(joined, raw...)
				if c.IsLast {
					lastCount++
				}
			}
			if !bytes.Equal(joined, payload) {
				t.Fatalf("n=%d size=%d: reconstruction mismatch", n, size)
			}
			if lastCount != 1 || !chunks[len(chunks)-1].IsLast {
				t.Fatalf("n=%d size=%d: expected a single trailing is_last", n, size)
			}
		}
	}
}

func TestChunkAudio_EmptyPayload(t *testing.T) {
	chunks, err := ChunkAudio("m", nil, DefaultChunkSize, false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}
}

func TestChunkAudio_InvalidSize(t *testing.T) {
	if _, err := ChunkAudio("m", []byte("x"), 0, false); !errors.Is(err, ErrInvalidChunkSize) {
		t.Fatalf("expected ErrInvalidChunkSize, got %v", err)
	}
}
