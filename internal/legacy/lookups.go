package legacy

// Lookups 旧系统ID到邮箱的内存索引
type Lookups struct {
	userEmails      map[int64]string
	affiliateEmails map[int64]string
	users           map[int64]User
	affiliateNames  map[int64]string
}

// BuildLookups 从导出构建索引；订单上附带的买家邮箱仅在用户导出缺失时补充
func BuildLookups(export *Export) *Lookups {
	l := &Lookups{
		userEmails:      make(map[int64]string),
		affiliateEmails: make(map[int64]string),
		users:           make(map[int64]User),
		affiliateNames:  make(map[int64]string),
	}
	if export == nil {
		return l
	}
	for _, user := range export.Users {
		id := user.ID.Int64()
		if id <= 0 {
			continue
		}
		l.users[id] = user
		if email := NormalizeEmail(user.Email); email != "" {
			l.userEmails[id] = email
		}
	}
	for _, affiliate := range export.Affiliates {
		id := affiliate.ID.Int64()
		if id <= 0 {
			continue
		}
		if email := NormalizeEmail(affiliate.Email); email != "" {
			l.affiliateEmails[id] = email
		}
		if affiliate.DisplayName != "" {
			l.affiliateNames[id] = affiliate.DisplayName
		}
	}
	for _, order := range export.Orders {
		if order.HasAffiliate() && order.AffiliateName != "" {
			if _, ok := l.affiliateNames[order.AffiliateID.Int64()]; !ok {
				l.affiliateNames[order.AffiliateID.Int64()] = order.AffiliateName
			}
		}
		id := order.UserID.Int64()
		if id <= 0 {
			continue
		}
		if _, ok := l.userEmails[id]; ok {
			continue
		}
		if email := NormalizeEmail(order.BuyerEmail); email != "" {
			l.userEmails[id] = email
		}
	}
	return l
}

// UserEmail 旧用户ID对应的邮箱
func (l *Lookups) UserEmail(legacyUserID int64) (string, bool) {
	email, ok := l.userEmails[legacyUserID]
	return email, ok
}

// AffiliateEmail 旧推广人ID对应的邮箱，推广人导出缺失时回退到用户导出
func (l *Lookups) AffiliateEmail(legacyAffiliateID int64) (string, bool) {
	if email, ok := l.affiliateEmails[legacyAffiliateID]; ok {
		return email, true
	}
	return l.UserEmail(legacyAffiliateID)
}

// AffiliateName 推广人显示名
func (l *Lookups) AffiliateName(legacyAffiliateID int64) string {
	if name, ok := l.affiliateNames[legacyAffiliateID]; ok {
		return name
	}
	if user, ok := l.users[legacyAffiliateID]; ok {
		return user.DisplayName
	}
	return ""
}

// KnowsUser 旧用户ID是否出现在导出中
func (l *Lookups) KnowsUser(legacyUserID int64) bool {
	_, ok := l.users[legacyUserID]
	if ok {
		return true
	}
	_, ok = l.userEmails[legacyUserID]
	return ok
}

// UserCount 已索引的用户邮箱数
func (l *Lookups) UserCount() int {
	return len(l.userEmails)
}
