package storage

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kukawski/le-cpanel-updater/internal/provider"
)

// 证书文件名
const (
	CertificateFile = "certificate.crt"
	PrivateKeyFile  = "private.pem"
	FullchainFile   = "fullchain.crt"
)

const backupSuffix = ".bak"

// ErrKeyMismatch 证书与私钥不匹配
var ErrKeyMismatch = errors.New("certificate does not match private key")

// FileStorage 文件存储
type FileStorage struct {
	baseDir string
}

// NewFileStorage 创建文件存储
func NewFileStorage(baseDir string) *FileStorage {
	return &FileStorage{baseDir: baseDir}
}

// SaveCertificate 整体保存证书、私钥和完整链，先写临时文件再替换，失败时恢复原文件
func (s *FileStorage) SaveCertificate(cert *provider.Certificate) error {
	if cert == nil || len(cert.Certificate) == 0 || len(cert.PrivateKey) == 0 {
		return errors.New("incomplete certificate material")
	}
	if _, err := tls.X509KeyPair(cert.Certificate, cert.PrivateKey); err != nil {
		return fmt.Errorf("%w: %v", ErrKeyMismatch, err)
	}

	fullchain := cert.Fullchain
	if len(fullchain) == 0 {
		fullchain = cert.Certificate
	}

	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return fmt.Errorf("create certificate directory: %w", err)
	}

	files := []struct {
		path string
		data []byte
		perm os.FileMode
	}{
		{s.GetKeyPath(), cert.PrivateKey, 0o600},
		{s.GetCertPath(), cert.Certificate, 0o644},
		{s.GetFullchainPath(), fullchain, 0o644},
	}

	staged := make([]string, 0, len(files))
	cleanup := func() {
		for _, tmp := range staged {
			_ = os.Remove(tmp)
		}
	}

	for _, f := range files {
		tmp := f.path + ".tmp"
		if err := writeSynced(tmp, f.data, f.perm); err != nil {
			cleanup()
			return fmt.Errorf("stage %s: %w", filepath.Base(f.path), err)
		}
		staged = append(staged, tmp)
	}

	// 先把现有文件挪到备份，替换失败时整体恢复
	var backups []string
	rollback := func(installed int) {
		for _, f := range files[:installed] {
			_ = os.Remove(f.path)
		}
		for _, path := range backups {
			_ = os.Rename(path+backupSuffix, path)
		}
	}

	for _, f := range files {
		info, err := os.Stat(f.path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if err := os.Rename(f.path, f.path+backupSuffix); err != nil {
			rollback(0)
			cleanup()
			return fmt.Errorf("back up %s: %w", filepath.Base(f.path), err)
		}
		backups = append(backups, f.path)
	}

	for i, f := range files {
		if err := os.Rename(staged[i], f.path); err != nil {
			rollback(i)
			cleanup()
			return fmt.Errorf("save %s: %w", filepath.Base(f.path), err)
		}
	}

	for _, path := range backups {
		_ = os.Remove(path + backupSuffix)
	}
	return nil
}

// LoadCertificate 读取全部证书文件
func (s *FileStorage) LoadCertificate() (*provider.Certificate, error) {
	if missing := s.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("missing bundle files: %v", missing)
	}

	cert, err := os.ReadFile(s.GetCertPath())
	if err != nil {
		return nil, fmt.Errorf("read certificate: %w", err)
	}
	key, err := os.ReadFile(s.GetKeyPath())
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	fullchain, err := os.ReadFile(s.GetFullchainPath())
	if err != nil {
		return nil, fmt.Errorf("read full chain: %w", err)
	}

	return &provider.Certificate{
		Certificate: cert,
		PrivateKey:  key,
		Fullchain:   fullchain,
	}, nil
}

// ReadCertificate 只读取叶子证书
func (s *FileStorage) ReadCertificate() ([]byte, error) {
	return os.ReadFile(s.GetCertPath())
}

// Exists 三个证书文件是否都存在
func (s *FileStorage) Exists() bool {
	return len(s.Missing()) == 0
}

// Missing 返回缺失的证书文件
func (s *FileStorage) Missing() []string {
	var missing []string
	for _, name := range []string{CertificateFile, PrivateKeyFile, FullchainFile} {
		info, err := os.Stat(filepath.Join(s.baseDir, name))
		if err != nil || info.IsDir() {
			missing = append(missing, name)
		}
	}
	return missing
}

// GetCertDir 获取证书目录
func (s *FileStorage) GetCertDir() string {
	return s.baseDir
}

// GetCertPath 获取证书路径
func (s *FileStorage) GetCertPath() string {
	return filepath.Join(s.baseDir, CertificateFile)
}

// GetKeyPath 获取私钥路径
func (s *FileStorage) GetKeyPath() string {
	return filepath.Join(s.baseDir, PrivateKeyFile)
}

// GetFullchainPath 获取完整证书链路径
func (s *FileStorage) GetFullchainPath() string {
	return filepath.Join(s.baseDir, FullchainFile)
}

func writeSynced(path string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
