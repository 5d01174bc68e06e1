// Package testutil 测试用证书生成
package testutil

import (
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/go-acme/lego/v4/certcrypto"
)

// Chain 根证书、中间证书和叶子证书组成的证书链
type Chain struct {
	Leaf         []byte // PEM
	LeafKey      []byte // PEM
	Intermediate []byte // PEM
	Root         []byte // PEM
}

// Fullchain 返回叶子、中间和根证书拼接结果
func (c *Chain) Fullchain() []byte {
	out := append([]byte{}, c.Leaf...)
	out = append(out, c.Intermediate...)
	return append(out, c.Root...)
}

// NewChain 签发三级证书链，叶子证书覆盖 domains，于 notAfter 过期
func NewChain(t testing.TB, domains []string, notAfter time.Time) *Chain {
	t.Helper()

	rootKey := newKey(t)
	rootTmpl := caTemplate(1, "Test Root")
	rootDER := sign(t, rootTmpl, rootTmpl, rootKey, rootKey)
	rootCert := parse(t, rootDER)

	interKey := newKey(t)
	interTmpl := caTemplate(2, "Test Intermediate")
	interDER := sign(t, interTmpl, rootCert, interKey, rootKey)
	interCert := parse(t, interDER)

	leafKey := newKey(t)
	leafTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(3),
		Subject:      pkix.Name{CommonName: domains[0]},
		DNSNames:     domains,
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     notAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	leafDER := sign(t, leafTmpl, interCert, leafKey, interKey)

	return &Chain{
		Leaf:         certcrypto.PEMEncode(certcrypto.DERCertificateBytes(leafDER)),
		LeafKey:      certcrypto.PEMEncode(leafKey),
		Intermediate: certcrypto.PEMEncode(certcrypto.DERCertificateBytes(interDER)),
		Root:         certcrypto.PEMEncode(certcrypto.DERCertificateBytes(rootDER)),
	}
}

func newKey(t testing.TB) crypto.Signer {
	t.Helper()
	key, err := certcrypto.GeneratePrivateKey(certcrypto.EC256)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key.(crypto.Signer)
}

func caTemplate(serial int64, cn string) *x509.Certificate {
	return &x509.Certificate{
		SerialNumber:          big.NewInt(serial),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
}

func sign(t testing.TB, tmpl, parent *x509.Certificate, key, parentKey crypto.Signer) []byte {
	t.Helper()
	der, err := x509.CreateCertificate(rand.Reader, tmpl, parent, key.Public(), parentKey)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	return der
}

func parse(t testing.TB, der []byte) *x509.Certificate {
	t.Helper()
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	return cert
}

// Issuer 测试用签发机构
type Issuer struct {
	PEM []byte

	cert   *x509.Certificate
	key    crypto.Signer
	serial int64
}

// NewIssuer 创建自签名 CA
func NewIssuer(t testing.TB, cn string) *Issuer {
	t.Helper()
	key := newKey(t)
	tmpl := caTemplate(1, cn)
	der := sign(t, tmpl, tmpl, key, key)
	return &Issuer{
		PEM:    certcrypto.PEMEncode(certcrypto.DERCertificateBytes(der)),
		cert:   parse(t, der),
		key:    key,
		serial: 1,
	}
}

// Issue 为 pub 签发覆盖 domains 的叶子证书，返回 DER
func (i *Issuer) Issue(t testing.TB, pub crypto.PublicKey, domains []string, notAfter time.Time) []byte {
	t.Helper()
	i.serial++
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(i.serial),
		Subject:      pkix.Name{CommonName: domains[0]},
		DNSNames:     domains,
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     notAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, i.cert, pub, i.key)
	if err != nil {
		t.Fatalf("issue certificate: %v", err)
	}
	return der
}
