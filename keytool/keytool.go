package keytool

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
)

// ErrFingerprintNotFound is returned when `keytool -printcert`
// succeeds but prints no SHA-256 fingerprint.
var ErrFingerprintNotFound = errors.New("sha256 cert fingerprints not found")

// Command represents the path to an `keytool` executable.
type Command string

func (c Command) String() string {
	return string(c)
}

// Certificate holds the fields of the first certificate
// printed by `keytool -printcert`.
type Certificate struct {
	Owner  string
	Issuer string
	SHA1   string
	SHA256 string
}

// PrintCert runs `keytool -printcert -jarfile` against the signed
// archive at name and parses the first certificate it prints.
func (c Command) PrintCert(ctx context.Context, name string) (*Certificate, error) {
	var (
		buf = new(bytes.Buffer)
		//nolint:gosec
		cmd = exec.CommandContext(ctx, c.String(), "-printcert", "-jarfile", name)
	)

	cmd.Stdout = buf

	if err := cmd.Run(); err != nil {
		return nil, err
	}

	return parseCert(buf)
}

// SHA256CertFingerprints returns the SHA-256 fingerprint of the
// certificate that signed the archive at name.
func (c Command) SHA256CertFingerprints(ctx context.Context, name string) (string, error) {
	cert, err := c.PrintCert(ctx, name)
	if err != nil {
		return "", err
	}

	if cert.SHA256 == "" {
		return "", ErrFingerprintNotFound
	}

	return cert.SHA256, nil
}

func parseCert(r io.Reader) (*Certificate, error) {
	var (
		cert    = &Certificate{}
		scanner = bufio.NewScanner(r)
	)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Only the first certificate of the chain is of interest.
		if strings.HasPrefix(line, "Certificate[2]") {
			break
		}

		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}

		value = strings.TrimSpace(value)

		switch key {
		case "Owner":
			cert.Owner = value
		case "Issuer":
			cert.Issuer = value
		case "SHA1":
			cert.SHA1 = value
		case "SHA256":
			cert.SHA256 = value
		}
	}

	return cert, scanner.Err()
}
