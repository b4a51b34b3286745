package service

import (
	"strings"

	"github.com/eksporyuk-migrate/internal/legacy"
	"github.com/eksporyuk-migrate/internal/repository"
)

// 身份解析失败原因
const (
	IdentityReasonLegacyUserUnknown = "legacy_user_unknown"
	IdentityReasonEmailMissing      = "email_missing"
	IdentityReasonUserNotImported   = "user_not_imported"
)

// IdentityResult 旧系统ID到新平台用户的解析结果
type IdentityResult struct {
	LegacyID int64
	Email    string
	UserID   uint
	Reason   string
}

// Resolved 是否解析成功
func (r IdentityResult) Resolved() bool {
	return r.UserID != 0 && r.Reason == ""
}

// IdentityResolver 旧ID -> 旧邮箱 -> 新用户ID；邮箱索引只在创建时加载一次
type IdentityResolver struct {
	lookups    *legacy.Lookups
	emailIndex map[string]uint
}

// NewIdentityResolver 从数据库加载邮箱索引并创建解析器
func NewIdentityResolver(lookups *legacy.Lookups, userRepo repository.UserRepository) (*IdentityResolver, error) {
	index, err := userRepo.EmailIndex()
	if err != nil {
		return nil, err
	}
	return NewIdentityResolverFromIndex(lookups, index), nil
}

// NewIdentityResolverFromIndex 使用已有邮箱索引创建解析器
func NewIdentityResolverFromIndex(lookups *legacy.Lookups, index map[string]uint) *IdentityResolver {
	if lookups == nil {
		lookups = legacy.BuildLookups(nil)
	}
	normalized := make(map[string]uint, len(index))
	for email, id := range index {
		key := legacy.NormalizeEmail(email)
		if key == "" {
			continue
		}
		normalized[key] = id
	}
	return &IdentityResolver{lookups: lookups, emailIndex: normalized}
}

// ResolveBuyer 解析买家
func (r *IdentityResolver) ResolveBuyer(legacyUserID int64) IdentityResult {
	result := IdentityResult{LegacyID: legacyUserID}
	if legacyUserID <= 0 {
		result.Reason = IdentityReasonLegacyUserUnknown
		return result
	}
	email, ok := r.lookups.UserEmail(legacyUserID)
	if !ok {
		if r.lookups.KnowsUser(legacyUserID) {
			result.Reason = IdentityReasonEmailMissing
		} else {
			result.Reason = IdentityReasonLegacyUserUnknown
		}
		return result
	}
	return r.resolveEmail(result, email)
}

// ResolveAffiliate 解析推广人
func (r *IdentityResolver) ResolveAffiliate(legacyAffiliateID int64) IdentityResult {
	result := IdentityResult{LegacyID: legacyAffiliateID}
	if legacyAffiliateID <= 0 {
		result.Reason = IdentityReasonLegacyUserUnknown
		return result
	}
	email, ok := r.lookups.AffiliateEmail(legacyAffiliateID)
	if !ok {
		if r.lookups.KnowsUser(legacyAffiliateID) || strings.TrimSpace(r.lookups.AffiliateName(legacyAffiliateID)) != "" {
			result.Reason = IdentityReasonEmailMissing
		} else {
			result.Reason = IdentityReasonLegacyUserUnknown
		}
		return result
	}
	return r.resolveEmail(result, email)
}

func (r *IdentityResolver) resolveEmail(result IdentityResult, email string) IdentityResult {
	result.Email = legacy.NormalizeEmail(email)
	if result.Email == "" {
		result.Reason = IdentityReasonEmailMissing
		return result
	}
	userID, ok := r.emailIndex[result.Email]
	if !ok {
		result.Reason = IdentityReasonUserNotImported
		return result
	}
	result.UserID = userID
	return result
}
