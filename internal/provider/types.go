package provider

import "time"

// ChallengeType ACME 挑战类型
type ChallengeType string

const (
	// ChallengeHTTP01 唯一支持的挑战类型
	ChallengeHTTP01 ChallengeType = "http-01"
)

// PendingChallenge 待验证授权需要发布的 HTTP 响应
type PendingChallenge struct {
	Identifier string // 待授权域名
	Filename   string // /.well-known/acme-challenge/ 下的文件名
	Content    string // 文件内容（key authorization）
}

// Certificate 证书内容（PEM）
type Certificate struct {
	Certificate []byte // 叶子证书
	PrivateKey  []byte // 私钥
	Fullchain   []byte // 叶子证书加中间证书
}

// CertificateInfo 证书信息
type CertificateInfo struct {
	Domain    string    // 通用名
	Sans      []string  // 备用名称
	Issuer    string    // 颁发者
	NotBefore time.Time // 生效时间
	NotAfter  time.Time // 过期时间
}

// Names 返回 CN 和全部 SAN
func (i *CertificateInfo) Names() []string {
	names := make([]string, 0, len(i.Sans)+1)
	if i.Domain != "" {
		names = append(names, i.Domain)
	}
	return append(names, i.Sans...)
}
