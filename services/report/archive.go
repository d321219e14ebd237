package report

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	gos3 "muster/pkg/s3"
	"muster/services/dispatch"
)

// Archiver uploads finished batch reports to object storage as
// zstd-compressed JSON with a signed YAML manifest. Write-only audit
// artifacts; nothing reads them back.
type Archiver struct {
	s3     *gos3.Client
	bucket string
	signer *Signer
	logger *log.Logger
	now    func() time.Time
}

// NewArchiver creates an archiver writing into the given bucket. signer is
// optional; without one (or with a verify-only signer) manifests are
// unsigned.
func NewArchiver(client *gos3.Client, bucket string, signer *Signer, logger *log.Logger) (*Archiver, error) {
	if client == nil {
		return nil, errors.New("s3 client is required")
	}
	if bucket == "" {
		return nil, errors.New("bucket is required")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Archiver{
		s3:     client,
		bucket: bucket,
		signer: signer,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Archive uploads the report and its manifest, returning their object keys.
func (a *Archiver) Archive(ctx context.Context, rep *dispatch.BatchReport) (reportKey, manifestKey string, err error) {
	if a == nil {
		return "", "", errors.New("nil archiver")
	}
	if rep == nil {
		return "", "", errors.New("report is required")
	}

	payload, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("marshal report: %w", err)
	}

	compressed, err := compress(payload)
	if err != nil {
		return "", "", err
	}

	digest := sha256.Sum256(compressed)
	reportKey = fmt.Sprintf("muster/reports/%s.json.zst", rep.RunID)
	manifestKey = fmt.Sprintf("muster/reports/%s.manifest.yaml", rep.RunID)

	if err := a.s3.PutObject(ctx, a.bucket, reportKey, compressed, "application/zstd"); err != nil {
		return "", "", fmt.Errorf("upload report: %w", err)
	}

	manifest := Manifest{
		Version:      manifestVersion,
		CreatedAt:    a.now().UTC(),
		RunID:        rep.RunID.String(),
		BatchID:      rep.BatchID,
		Requested:    rep.Requested,
		Resolved:     rep.Resolved,
		Available:    rep.Available,
		Succeeded:    rep.Succeeded,
		Failed:       rep.Failed,
		ReportKey:    reportKey,
		ReportSHA256: hex.EncodeToString(digest[:]),
	}

	if a.signer.CanSign() {
		manifest.SigningPublicKey = a.signer.PublicKeyBase64()
		signingBytes, err := manifest.SigningBytes()
		if err != nil {
			return "", "", fmt.Errorf("manifest signing bytes: %w", err)
		}
		manifest.Signature, err = a.signer.Sign(signingBytes)
		if err != nil {
			return "", "", fmt.Errorf("sign manifest: %w", err)
		}
	}

	manifestBytes, err := yaml.Marshal(manifest)
	if err != nil {
		return "", "", fmt.Errorf("marshal manifest: %w", err)
	}
	if err := a.s3.PutObject(ctx, a.bucket, manifestKey, manifestBytes, "application/yaml"); err != nil {
		return "", "", fmt.Errorf("upload manifest: %w", err)
	}

	a.logger.Printf("INFO archived batch report to s3://%s/%s", a.bucket, reportKey)
	return reportKey, manifestKey, nil
}

func compress(data []byte) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	encoder, err := zstd.NewWriter(buf)
	if err != nil {
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	if _, err := encoder.Write(data); err != nil {
		encoder.Close()
		return nil, err
	}
	if err := encoder.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
