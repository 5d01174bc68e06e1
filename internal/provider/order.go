package provider

import "context"

// OrderProvider ACME 证书颁发机构接口
type OrderProvider interface {
	// Name 返回提供者名称
	Name() string

	// GetOrCreateOrder 获取域名的订单，复用同一域名集合未完成的订单
	GetOrCreateOrder(ctx context.Context, primaryDomain string, domains []string) (Order, error)
}

// Order 一次 ACME 签发事务
type Order interface {
	// AllAuthorizationsValid 所有授权是否有效
	AllAuthorizationsValid(ctx context.Context) (bool, error)

	// PendingAuthorizations 返回待验证的挑战
	PendingAuthorizations(ctx context.Context, typ ChallengeType) ([]PendingChallenge, error)

	// VerifyPendingAuthorization 请求 CA 验证指定标识的授权
	VerifyPendingAuthorization(ctx context.Context, identifier string, typ ChallengeType) error

	// IsFinalized 订单是否已 finalize
	IsFinalized(ctx context.Context) (bool, error)

	// Finalize 提交 CSR
	Finalize(ctx context.Context) error

	// Certificate 下载证书并保存到磁盘
	Certificate(ctx context.Context) error
}
