package domain

import (
	"errors"
	"strings"
)

// Normalize 转小写并去掉空白和末尾的点
func Normalize(name string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".")
}

// NormalizeList 规范化域名列表，去空去重并保持顺序
func NormalizeList(names []string) []string {
	if len(names) == 0 {
		return names
	}

	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = Normalize(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// Validate 拒绝无法通过 HTTP-01 验证的域名
func Validate(name string) error {
	if name == "" {
		return errors.New("empty name")
	}
	if strings.HasPrefix(name, "*.") {
		return errors.New("wildcard names require DNS-01 validation")
	}
	if strings.ContainsAny(name, "/\\ :") {
		return errors.New("invalid characters")
	}
	if !strings.Contains(name, ".") {
		return errors.New("not a fully qualified name")
	}
	return nil
}

// MatchDomain 检查证书域名是否匹配目标域名，通配符只匹配最左一级
func MatchDomain(certDomain, targetDomain string) bool {
	certDomain = Normalize(certDomain)
	targetDomain = Normalize(targetDomain)

	if certDomain == targetDomain {
		return true
	}

	if strings.HasPrefix(certDomain, "*.") {
		i := strings.IndexByte(targetDomain, '.')
		if i <= 0 {
			return false
		}
		return targetDomain[i+1:] == strings.TrimPrefix(certDomain, "*.")
	}

	return false
}

// Covers 证书域名是否覆盖全部目标域名
func Covers(certDomains, targets []string) bool {
	for _, target := range targets {
		matched := false
		for _, certDomain := range certDomains {
			if MatchDomain(certDomain, target) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}
