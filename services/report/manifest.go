package report

import (
	"time"

	"gopkg.in/yaml.v3"
)

const manifestVersion = "1"

// Manifest is the signed metadata written alongside an archived batch
// report.
type Manifest struct {
	Version          string    `yaml:"version"`
	CreatedAt        time.Time `yaml:"created_at"`
	RunID            string    `yaml:"run_id"`
	BatchID          string    `yaml:"batch_id,omitempty"`
	Requested        int       `yaml:"requested"`
	Resolved         int       `yaml:"resolved"`
	Available        int       `yaml:"available"`
	Succeeded        int       `yaml:"succeeded"`
	Failed           int       `yaml:"failed"`
	ReportKey        string    `yaml:"report_key"`
	ReportSHA256     string    `yaml:"report_sha256"`
	SigningPublicKey string    `yaml:"signing_public_key,omitempty"`
	Signature        string    `yaml:"signature,omitempty"`
}

// SigningBytes marshals the manifest without its signature for
// signing/verification.
func (m Manifest) SigningBytes() ([]byte, error) {
	clone := m
	clone.Signature = ""
	return yaml.Marshal(clone)
}
