package acme

import (
	"errors"
	"sort"
	"strings"

	"github.com/tidwall/buntdb"
)

// StoreFile 证书目录下的 ACME 状态数据库文件名
const StoreFile = "acme.db"

// 账户密钥与 CA 无关；账户 URL 和订单按目录 URL 隔离
const (
	keyAccountKey = "account:key"
	keyAccountURL = "account:url"
	prefixDir     = "dir:"
	prefixOrder   = "order:"
	prefixCertKey = "certkey:"
)

// Store 跨运行保存 ACME 账户与订单状态
type Store struct {
	scope string // dir:<directory url>:
	db    *buntdb.DB
}

// OpenStore 打开或创建状态数据库，path 可为 ":memory:"
func OpenStore(path, directoryURL string) (*Store, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, err
	}
	s := &Store{
		scope: prefixDir + directoryURL + ":",
		db:    db,
	}
	_ = db.Shrink()
	return s, nil
}

// Close 关闭数据库
func (s *Store) Close() error {
	return s.db.Close()
}

// AccountKey 返回 PEM 账户密钥，未保存时为 nil
func (s *Store) AccountKey() ([]byte, error) {
	v, err := s.get(keyAccountKey)
	if err != nil || v == "" {
		return nil, err
	}
	return []byte(v), nil
}

func (s *Store) SaveAccountKey(pemKey []byte) error {
	return s.set(keyAccountKey, string(pemKey))
}

// AccountURL 返回当前目录下注册的账户 URL
func (s *Store) AccountURL() (string, error) {
	return s.get(s.scope + keyAccountURL)
}

func (s *Store) SaveAccountURL(url string) error {
	return s.set(s.scope+keyAccountURL, url)
}

// OrderURL 返回域名集合对应的订单 URL
func (s *Store) OrderURL(domains []string) (string, error) {
	return s.get(s.orderKey(domains))
}

func (s *Store) SaveOrderURL(domains []string, url string) error {
	return s.set(s.orderKey(domains), url)
}

// CertificateKey 返回订单的 PEM 证书密钥，未保存时为 nil
func (s *Store) CertificateKey(orderURL string) ([]byte, error) {
	v, err := s.get(prefixCertKey + orderURL)
	if err != nil || v == "" {
		return nil, err
	}
	return []byte(v), nil
}

func (s *Store) SaveCertificateKey(orderURL string, pemKey []byte) error {
	return s.set(prefixCertKey+orderURL, string(pemKey))
}

// ForgetOrder 删除域名集合的订单及其证书密钥
func (s *Store) ForgetOrder(domains []string, orderURL string) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		for _, k := range []string{s.orderKey(domains), prefixCertKey + orderURL} {
			if _, err := tx.Delete(k); err != nil && !errors.Is(err, buntdb.ErrNotFound) {
				return err
			}
		}
		return nil
	})
}

func (s *Store) get(key string) (string, error) {
	var val string
	err := s.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(key)
		if err != nil {
			return err
		}
		val = v
		return nil
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return "", nil
	}
	return val, err
}

func (s *Store) set(key, val string) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, val, nil)
		return err
	})
}

func (s *Store) orderKey(domains []string) string {
	return s.scope + prefixOrder + domainSetKey(domains)
}

// domainSetKey 与顺序和大小写无关
func domainSetKey(domains []string) string {
	set := make([]string, 0, len(domains))
	for _, d := range domains {
		set = append(set, strings.ToLower(strings.TrimSpace(d)))
	}
	sort.Strings(set)
	return strings.Join(set, ",")
}
