package frame

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Frame{
		{Type: DATA, Seq: 0, Payload: nil},
		{Type: ACK, Seq: 1, Payload: []byte{}},
		{Type: DATA, Seq: 1, Payload: []byte("Hello from acoustic modem! Testing 1-2-3.")},
		{Type: SYN, Seq: 0, Payload: nil},
		{Type: DATA, Seq: 0, Payload: make([]byte, MaxPayload)},
	}

	for _, f := range cases {
		encoded, err := Encode(f)
		require.NoError(t, err)

		dec := NewDecoder(nil)
		got := dec.PushBytes(encoded)
		require.Len(t, got, 1)
		if diff := cmp.Diff(f.Payload, got[0].Payload); diff != "" {
			t.Errorf("payload mismatch (-want +got):\n%s", diff)
		}
		if got[0].Type != f.Type || got[0].Seq != f.Seq {
			t.Errorf("header mismatch: got %+v, want %+v", got[0], f)
		}
	}
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	_, err := Encode(Frame{Type: DATA, Payload: make([]byte, MaxPayload+1)})
	require.Error(t, err)
}

func TestDecoderIgnoresCorruptedFrame(t *testing.T) {
	f := Frame{Type: DATA, Seq: 1, Payload: []byte("corrupt me")}
	encoded, err := Encode(f)
	require.NoError(t, err)

	// Flip a single bit in the payload.
	corrupted := append([]byte{}, encoded...)
	corrupted[len(corrupted)-len(f.Payload)-crcSize] ^= 0x01

	dec := NewDecoder(nil)
	got := dec.PushBytes(corrupted)
	require.Empty(t, got, "corrupted frame must not be delivered")
}

func TestDecoderResumesAfterSpuriousSyncInPayload(t *testing.T) {
	// A sync-like pattern inside a payload must not desynchronize the
	// decoder: the embedding frame's CRC fails, then the real next frame
	// still decodes.
	bad := Frame{Type: DATA, Seq: 0, Payload: []byte{0x7E, 0x7E, 0x01, 0x02}}
	badEncoded, err := Encode(bad)
	require.NoError(t, err)
	badEncoded[len(badEncoded)-1] ^= 0xFF // corrupt its CRC so it's dropped.

	good := Frame{Type: DATA, Seq: 1, Payload: []byte("next frame")}
	goodEncoded, err := Encode(good)
	require.NoError(t, err)

	dec := NewDecoder(nil)
	got := dec.PushBytes(append(badEncoded, goodEncoded...))
	require.Len(t, got, 1)
	require.Equal(t, good.Payload, got[0].Payload)
}

func TestZeroAndMaxLengthRoundTrip(t *testing.T) {
	for _, n := range []int{0, MaxPayload} {
		f := Frame{Type: DATA, Seq: 0, Payload: make([]byte, n)}
		for i := range f.Payload {
			f.Payload[i] = byte(i)
		}
		encoded, err := Encode(f)
		require.NoError(t, err)
		dec := NewDecoder(nil)
		got := dec.PushBytes(encoded)
		require.Len(t, got, 1)
		require.Equal(t, f.Payload, got[0].Payload)
	}
}

// TestRoundTripProperty is the property-based form of spec's invariant:
// for every frame the framer emits, decode(encode(F)) == F over a
// noise-free channel, for arbitrary type/seq/payload combinations.
func TestRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := Frame{
			Type:    Type(rapid.Byte().Draw(t, "type")),
			Seq:     rapid.Byte().Draw(t, "seq"),
			Payload: rapid.SliceOfN(rapid.Byte(), 0, MaxPayload).Draw(t, "payload"),
		}

		encoded, err := Encode(f)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}

		dec := NewDecoder(nil)
		got := dec.PushBytes(encoded)
		if len(got) != 1 {
			t.Fatalf("expected exactly one decoded frame, got %d", len(got))
		}
		if got[0].Type != f.Type || got[0].Seq != f.Seq {
			t.Fatalf("header mismatch: got %+v, want %+v", got[0], f)
		}
		if len(got[0].Payload) != len(f.Payload) {
			t.Fatalf("payload length mismatch: got %d, want %d", len(got[0].Payload), len(f.Payload))
		}
		for i := range f.Payload {
			if got[0].Payload[i] != f.Payload[i] {
				t.Fatalf("payload byte %d mismatch: got %x, want %x", i, got[0].Payload[i], f.Payload[i])
			}
		}
	})
}

// TestCRCDetectsAnyByteFlip is the property-based form of: for every
// payload of length L<=64, the CRC check succeeds iff no header or
// payload byte has been altered.
func TestCRCDetectsAnyByteFlip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := Frame{
			Type:    Type(rapid.Byte().Draw(t, "type")),
			Seq:     rapid.Byte().Draw(t, "seq"),
			Payload: rapid.SliceOfN(rapid.Byte(), 1, MaxPayload).Draw(t, "payload"),
		}
		encoded, err := Encode(f)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}

		// Flip one bit somewhere in the header+payload+crc region.
		headerStart := PreambleLen + 2
		idx := rapid.IntRange(headerStart, len(encoded)-1).Draw(t, "flip index")
		bit := rapid.IntRange(0, 7).Draw(t, "flip bit")
		encoded[idx] ^= 1 << uint(bit)

		dec := NewDecoder(nil)
		got := dec.PushBytes(encoded)
		if len(got) != 0 {
			t.Fatalf("flipped frame should not validate, got %+v", got)
		}
	})
}
