package schema

import (
	"bytes"
	"testing"

	"rubin.dev/archive/internal/primitives"
)

func TestSpendPayloadRoundTrip(t *testing.T) {
	want := SpendPayload{ParentTxLink: 10, Sequence: 0xffffffff, InputLink: 2000}
	got, err := DecodeSpendPayload(EncodeSpendPayload(want))
	if err != nil {
		t.Fatalf("DecodeSpendPayload: %v", err)
	}
	if got != want {
		t.Fatalf("round trip = %+v, want %+v", got, want)
	}
}

func TestSpendFingerprintStable(t *testing.T) {
	var hash [32]byte
	hash[0], hash[1], hash[2], hash[3] = 1, 2, 3, 4
	fp1 := SpendFingerprint(hash, 7)
	fp2 := SpendFingerprint(hash, 7)
	if !bytes.Equal(fp1, fp2) {
		t.Fatalf("SpendFingerprint not deterministic")
	}
	if len(fp1) != SpendFingerprintSize {
		t.Fatalf("len = %d, want %d", len(fp1), SpendFingerprintSize)
	}
	fp3 := SpendFingerprint(hash, 8)
	if bytes.Equal(fp1, fp3) {
		t.Fatalf("distinct indices produced the same fingerprint")
	}
}

func TestTxsSlabRoundTrip(t *testing.T) {
	want := TxsSlab{WireSize: 512, TxLinks: []primitives.Link{1, 2, 3}}
	got, err := DecodeTxsSlab(EncodeTxsSlab(want))
	if err != nil {
		t.Fatalf("DecodeTxsSlab: %v", err)
	}
	if got.WireSize != want.WireSize || len(got.TxLinks) != len(want.TxLinks) {
		t.Fatalf("round trip = %+v, want %+v", got, want)
	}
	for i := range want.TxLinks {
		if got.TxLinks[i] != want.TxLinks[i] {
			t.Fatalf("TxLinks[%d] = %d, want %d", i, got.TxLinks[i], want.TxLinks[i])
		}
	}
}

func TestTxsSlabEmpty(t *testing.T) {
	got, err := DecodeTxsSlab(EncodeTxsSlab(TxsSlab{}))
	if err != nil {
		t.Fatalf("DecodeTxsSlab: %v", err)
	}
	if len(got.TxLinks) != 0 {
		t.Fatalf("TxLinks = %v, want empty", got.TxLinks)
	}
}

func TestStrongTxPayloadRoundTrip(t *testing.T) {
	for _, positive := range []bool{true, false} {
		want := StrongTxPayload{HeaderLink: 77, Positive: positive}
		got, err := DecodeStrongTxPayload(EncodeStrongTxPayload(want))
		if err != nil {
			t.Fatalf("DecodeStrongTxPayload: %v", err)
		}
		if got != want {
			t.Fatalf("round trip = %+v, want %+v", got, want)
		}
	}
}

func TestDuplicateKeyDistinguishesIndex(t *testing.T) {
	var hash [32]byte
	hash[5] = 9
	k1 := EncodeDuplicateKey(hash, 0)
	k2 := EncodeDuplicateKey(hash, 1)
	if bytes.Equal(k1, k2) {
		t.Fatalf("keys for distinct indices collided")
	}
	if len(k1) != DuplicateKeySize {
		t.Fatalf("len = %d, want %d", len(k1), DuplicateKeySize)
	}
}

func TestPrevoutSlabRoundTrip(t *testing.T) {
	want := PrevoutSlab{
		Entries: []PrevoutEntry{
			{OutputTxLink: 1, Coinbase: true, Sequence: 0xffffffff},
			{OutputTxLink: 2, Coinbase: false, Sequence: 5},
		},
		Conflicting: []primitives.Link{9, 10},
	}
	got, err := DecodePrevoutSlab(EncodePrevoutSlab(want))
	if err != nil {
		t.Fatalf("DecodePrevoutSlab: %v", err)
	}
	if len(got.Entries) != len(want.Entries) || len(got.Conflicting) != len(want.Conflicting) {
		t.Fatalf("round trip = %+v, want %+v", got, want)
	}
	for i := range want.Entries {
		if got.Entries[i] != want.Entries[i] {
			t.Fatalf("Entries[%d] = %+v, want %+v", i, got.Entries[i], want.Entries[i])
		}
	}
	for i := range want.Conflicting {
		if got.Conflicting[i] != want.Conflicting[i] {
			t.Fatalf("Conflicting[%d] = %d, want %d", i, got.Conflicting[i], want.Conflicting[i])
		}
	}
}

func TestAddressPayloadRoundTrip(t *testing.T) {
	want := primitives.Link(123456)
	got := DecodeAddressPayload(EncodeAddressPayload(want))
	if got != want {
		t.Fatalf("round trip = %d, want %d", got, want)
	}
}
