package report

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
)

func TestCompressRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte(`{"status":"succeeded"}`), 100)

	compressed, err := compress(payload)
	if err != nil {
		t.Fatalf("compress() error = %v", err)
	}
	if len(compressed) >= len(payload) {
		t.Errorf("compressed %d bytes >= input %d bytes", len(compressed), len(payload))
	}

	dec, err := zstd.NewReader(bytes.NewReader(compressed))
	if err != nil {
		t.Fatal(err)
	}
	defer dec.Close()

	restored, err := io.ReadAll(dec)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(restored, payload) {
		t.Error("decompressed payload differs from input")
	}
}

func TestManifestSigningBytesExcludeSignature(t *testing.T) {
	m := Manifest{
		Version:      manifestVersion,
		CreatedAt:    time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		RunID:        "6f1e9a0a-0000-0000-0000-000000000000",
		Requested:    3,
		Resolved:     3,
		Available:    2,
		Succeeded:    2,
		Failed:       1,
		ReportKey:    "muster/reports/run.json.zst",
		ReportSHA256: "abc123",
	}

	unsigned, err := m.SigningBytes()
	if err != nil {
		t.Fatal(err)
	}

	m.Signature = "c2lnbmF0dXJl"
	signed, err := m.SigningBytes()
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(unsigned, signed) {
		t.Error("signing bytes change when signature is set")
	}
}
