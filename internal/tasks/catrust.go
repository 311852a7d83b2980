package tasks

import (
	"bytes"
	"context"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/plexsphere/platctl/internal/fsutil"
)

const p11KitHeader = "# This file was created by IPA. Do not edit.\n\n"

// oidExtKeyUsage is the extended key usage certificate extension.
var oidExtKeyUsage = asn1.ObjectIdentifier{2, 5, 29, 37}

// Trust is the trust flag recorded for a CA certificate.
type Trust int

const (
	// TrustUnknown records neither trust nor distrust.
	TrustUnknown Trust = iota
	Trusted
	Distrusted
)

// Certificate exposes the DER encoded fields written to the trust store.
type Certificate interface {
	SubjectBytes() ([]byte, error)
	IssuerBytes() ([]byte, error)
	SerialNumberBytes() ([]byte, error)
	PublicKeyInfoBytes() ([]byte, error)
	// ExtendedKeyUsageBytes returns the encoded extended key usage
	// extension, or nil when the certificate has none.
	ExtendedKeyUsageBytes() ([]byte, error)
	PEM() []byte
}

// CACert is a CA certificate to be added to the system-wide trust store.
type CACert struct {
	Cert     Certificate
	Nickname string
	Trust    Trust
}

// X509Certificate adapts a parsed certificate to Certificate.
type X509Certificate struct {
	*x509.Certificate
}

// FromX509 wraps cert.
func FromX509(cert *x509.Certificate) X509Certificate {
	return X509Certificate{Certificate: cert}
}

func (c X509Certificate) SubjectBytes() ([]byte, error)       { return c.RawSubject, nil }
func (c X509Certificate) IssuerBytes() ([]byte, error)        { return c.RawIssuer, nil }
func (c X509Certificate) PublicKeyInfoBytes() ([]byte, error) { return c.RawSubjectPublicKeyInfo, nil }

func (c X509Certificate) SerialNumberBytes() ([]byte, error) {
	if c.SerialNumber == nil {
		return nil, errors.New("certificate has no serial number")
	}
	return asn1.Marshal(c.SerialNumber)
}

func (c X509Certificate) ExtendedKeyUsageBytes() ([]byte, error) {
	for _, ext := range c.Extensions {
		if ext.Id.Equal(oidExtKeyUsage) {
			return asn1.Marshal(pkix.Extension{Id: ext.Id, Critical: ext.Critical, Value: ext.Value})
		}
	}
	return nil, nil
}

func (c X509Certificate) PEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: c.Raw})
}

// ReloadSystemwideCAStore regenerates the system-wide CA trust database.
func (t *Tasks) ReloadSystemwideCAStore(ctx context.Context) error {
	if _, err := t.run.Run(ctx, []string{t.paths.UpdateCATrust}); err != nil {
		t.logger.Error("could not update systemwide CA trust database", "error", err)
		return fmt.Errorf("tasks: update CA trust: %w", err)
	}
	t.logger.Info("systemwide CA database updated")
	return nil
}

// InsertCACertsIntoSystemwideCAStore replaces the IPA certificates in the
// system-wide trust store with certs and reloads the store. Certificates
// whose fields cannot be encoded are skipped with a warning.
func (t *Tasks) InsertCACertsIntoSystemwideCAStore(ctx context.Context, certs []CACert) error {
	if err := removeIfExists(t.paths.SystemwideIPACACrt); err != nil {
		t.logger.Error("could not remove legacy CA file", "path", t.paths.SystemwideIPACACrt, "error", err)
		return fmt.Errorf("tasks: remove %s: %w", t.paths.SystemwideIPACACrt, err)
	}

	var buf bytes.Buffer
	buf.WriteString(p11KitHeader)
	hasEKU := make(map[string]bool)
	for _, c := range certs {
		obj, err := p11KitObject(c)
		if err != nil {
			t.logger.Warn("failed to decode certificate", "nickname", c.Nickname, "error", err)
			continue
		}
		buf.WriteString(obj.certificate())
		if obj.eku != "" && !hasEKU[obj.publicKeyInfo] {
			buf.WriteString(obj.extension())
			hasEKU[obj.publicKeyInfo] = true
		}
	}

	path := t.paths.IPAP11Kit
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("tasks: create %s: %w", filepath.Dir(path), err)
	}
	if err := fsutil.WritePathAtomic(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("tasks: write %s: %w", path, err)
	}
	t.logger.Info("CA certificates written", "path", path, "count", len(certs))
	return t.ReloadSystemwideCAStore(ctx)
}

// RemoveCACertsFromSystemwideCAStore removes the IPA certificates from the
// system-wide trust store. The store is reloaded only when a file was
// removed.
func (t *Tasks) RemoveCACertsFromSystemwideCAStore(ctx context.Context) error {
	var errs []error
	removed := false
	for _, path := range []string{t.paths.IPAP11Kit, t.paths.SystemwideIPACACrt} {
		err := os.Remove(path)
		switch {
		case err == nil:
			removed = true
		case errors.Is(err, fs.ErrNotExist):
		default:
			t.logger.Error("could not remove CA file", "path", path, "error", err)
			errs = append(errs, fmt.Errorf("tasks: remove %s: %w", path, err))
		}
	}
	if removed {
		if err := t.ReloadSystemwideCAStore(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// p11Object holds the quoted fields of one certificate entry.
type p11Object struct {
	label         string
	subject       string
	issuer        string
	serial        string
	publicKeyInfo string
	eku           string
	trust         Trust
	pem           []byte
}

func p11KitObject(c CACert) (*p11Object, error) {
	if c.Cert == nil {
		return nil, errors.New("no certificate")
	}
	fields := []func() ([]byte, error){
		c.Cert.SubjectBytes,
		c.Cert.IssuerBytes,
		c.Cert.SerialNumberBytes,
		c.Cert.PublicKeyInfoBytes,
	}
	quoted := make([]string, len(fields))
	for i, field := range fields {
		b, err := field()
		if err != nil {
			return nil, err
		}
		quoted[i] = quote(b)
	}
	eku, err := c.Cert.ExtendedKeyUsageBytes()
	if err != nil {
		return nil, err
	}
	obj := &p11Object{
		label:         quote([]byte(c.Nickname)),
		subject:       quoted[0],
		issuer:        quoted[1],
		serial:        quoted[2],
		publicKeyInfo: quoted[3],
		trust:         c.Trust,
		pem:           c.Cert.PEM(),
	}
	if eku != nil {
		obj.eku = quote(eku)
	}
	return obj, nil
}

func (o *p11Object) certificate() string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "[p11-kit-object-v1]\n"+
		"class: certificate\n"+
		"certificate-type: x-509\n"+
		"certificate-category: authority\n"+
		"label: \"%s\"\n"+
		"subject: \"%s\"\n"+
		"issuer: \"%s\"\n"+
		"serial-number: \"%s\"\n"+
		"x-public-key-info: \"%s\"\n",
		o.label, o.subject, o.issuer, o.serial, o.publicKeyInfo)
	switch o.trust {
	case Trusted:
		b.WriteString("trusted: true\n")
	case Distrusted:
		b.WriteString("x-distrusted: true\n")
	}
	b.Write(o.pem)
	b.WriteString("\n\n")
	return b.String()
}

func (o *p11Object) extension() string {
	return fmt.Sprintf("[p11-kit-object-v1]\n"+
		"class: x-certificate-extension\n"+
		"label: \"ExtendedKeyUsage for %s\"\n"+
		"x-public-key-info: \"%s\"\n"+
		"object-id: %s\n"+
		"value: \"%s\"\n\n",
		o.label, o.publicKeyInfo, oidExtKeyUsage, o.eku)
}

func removeIfExists(path string) error {
	err := os.Remove(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
