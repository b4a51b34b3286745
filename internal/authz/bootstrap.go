package authz

import "fmt"

// 预置角色
const (
	RoleAuditor  = "auditor"
	RoleReviewer = "reviewer"
	RoleOperator = "operator"
)

// RoleSeed 预置角色定义
type RoleSeed struct {
	Role     string
	Inherits []string
	Policies []Policy
}

// BuiltinRoleSeeds 迁移后台角色矩阵
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: RoleAuditor,
			Policies: []Policy{
				{Object: "/admin/*", Action: "GET"},
			},
		},
		{
			Role:     RoleReviewer,
			Inherits: []string{RoleAuditor},
			Policies: []Policy{
				{Object: "/admin/reviews/:id/resolve", Action: "POST"},
				{Object: "/admin/rules/preview", Action: "POST"},
				{Object: "/admin/reconciliation", Action: "POST"},
			},
		},
		{
			Role:     RoleOperator,
			Inherits: []string{RoleReviewer},
			Policies: []Policy{
				{Object: "/admin/imports", Action: "POST"},
				{Object: "/admin/conversions/sync", Action: "POST"},
			},
		},
	}
}

// BootstrapBuiltinRoles 初始化预置角色与默认策略
func (s *Service) BootstrapBuiltinRoles() error {
	if s == nil || s.enforcer == nil {
		return fmt.Errorf("authz service unavailable")
	}
	for _, seed := range BuiltinRoleSeeds() {
		role, err := s.EnsureRole(seed.Role)
		if err != nil {
			return err
		}
		for _, parent := range seed.Inherits {
			parentRole, err := NormalizeRole(parent)
			if err != nil {
				return err
			}
			if _, err := s.enforcer.AddNamedGroupingPolicy("g", role, parentRole); err != nil {
				return fmt.Errorf("link role inheritance failed: %w", err)
			}
		}
		for _, policy := range seed.Policies {
			if err := s.GrantRolePolicy(role, policy.Object, policy.Action); err != nil {
				return fmt.Errorf("add builtin policy failed: %w", err)
			}
		}
	}
	return nil
}

// ApplyAdminRoles 按配置写入管理员角色，键为令牌主体
func (s *Service) ApplyAdminRoles(assignments map[string]string) error {
	for subject, role := range assignments {
		if err := s.SetAdminRoles(subject, []string{role}); err != nil {
			return fmt.Errorf("assign role for %s: %w", subject, err)
		}
	}
	return nil
}
