package authz

import (
	"fmt"
	"sort"
	"strings"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	"github.com/casbin/casbin/v3/util"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"
)

const (
	apiV1Prefix     = "/api/v1"
	casbinTableName = "casbin_rule"
	adminSubjectFmt = "admin:%s"
	rolePrefix      = "role:"
	roleAnchor      = "role:__anchor__"
)

const defaultRBACModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = (g(r.sub, p.sub) || r.sub == p.sub) && keyMatch2(r.obj, p.obj) && (r.act == p.act || p.act == "*")
`

// Policy 权限策略
type Policy struct {
	Subject string `json:"subject"`
	Object  string `json:"object"`
	Action  string `json:"action"`
}

// Service Casbin 授权服务
// 管理员主体没有任何角色时按 defaultRole 判定
type Service struct {
	enforcer    *casbin.SyncedEnforcer
	defaultRole string
}

// NewService 创建授权服务，策略保存在 casbin_rule 表
func NewService(db *gorm.DB, defaultRole string) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("authz db is nil")
	}

	adapter, err := gormadapter.NewAdapterByDBUseTableName(db, "", casbinTableName)
	if err != nil {
		return nil, fmt.Errorf("create authz adapter failed: %w", err)
	}

	m, err := model.NewModelFromString(defaultRBACModel)
	if err != nil {
		return nil, fmt.Errorf("load authz model failed: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("init authz enforcer failed: %w", err)
	}
	enforcer.AddFunction("keyMatch2", util.KeyMatch2Func)
	enforcer.EnableAutoSave(true)

	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("load authz policy failed: %w", err)
	}

	svc := &Service{enforcer: enforcer}
	if strings.TrimSpace(defaultRole) != "" {
		role, err := NormalizeRole(defaultRole)
		if err != nil {
			return nil, err
		}
		svc.defaultRole = role
	}
	return svc, nil
}

// Enforce 执行授权判断
func (s *Service) Enforce(sub, obj, act string) (bool, error) {
	if s == nil || s.enforcer == nil {
		return false, fmt.Errorf("authz service unavailable")
	}
	return s.enforcer.Enforce(strings.TrimSpace(sub), NormalizeObject(obj), NormalizeAction(act))
}

// EnforceAdmin 按令牌主体判定授权
func (s *Service) EnforceAdmin(subject, obj, act string) (bool, error) {
	sub := SubjectForAdmin(subject)
	roles, err := s.GetAdminRoles(subject)
	if err != nil {
		return false, err
	}
	if len(roles) == 0 && s.defaultRole != "" {
		sub = s.defaultRole
	}
	return s.Enforce(sub, obj, act)
}

// EnsureRole 确保角色存在
func (s *Service) EnsureRole(role string) (string, error) {
	normalized, err := NormalizeRole(role)
	if err != nil {
		return "", err
	}
	if s == nil || s.enforcer == nil {
		return "", fmt.Errorf("authz service unavailable")
	}
	if normalized == roleAnchor {
		return "", fmt.Errorf("reserved role is not allowed")
	}

	exists, err := s.enforcer.HasNamedGroupingPolicy("g", normalized, roleAnchor)
	if err != nil {
		return "", fmt.Errorf("check role failed: %w", err)
	}
	if exists {
		return normalized, nil
	}
	if _, err := s.enforcer.AddNamedGroupingPolicy("g", normalized, roleAnchor); err != nil {
		return "", fmt.Errorf("create role failed: %w", err)
	}
	return normalized, nil
}

// GrantRolePolicy 为角色授予策略
func (s *Service) GrantRolePolicy(role, object, action string) error {
	normalizedRole, err := s.EnsureRole(role)
	if err != nil {
		return err
	}
	normalizedAction := NormalizeAction(action)
	if normalizedAction == "" {
		return fmt.Errorf("action is required")
	}
	if _, err := s.enforcer.AddPolicy(normalizedRole, NormalizeObject(object), normalizedAction); err != nil {
		return fmt.Errorf("grant policy failed: %w", err)
	}
	return nil
}

// GetRolePolicies 查询角色策略
func (s *Service) GetRolePolicies(role string) ([]Policy, error) {
	normalizedRole, err := NormalizeRole(role)
	if err != nil {
		return nil, err
	}
	if s == nil || s.enforcer == nil {
		return nil, fmt.Errorf("authz service unavailable")
	}

	rules, err := s.enforcer.GetFilteredPolicy(0, normalizedRole)
	if err != nil {
		return nil, fmt.Errorf("get role policies failed: %w", err)
	}
	return convertPolicies(rules), nil
}

// SetAdminRoles 覆盖设置管理员角色
func (s *Service) SetAdminRoles(subject string, roles []string) error {
	if strings.TrimSpace(subject) == "" {
		return fmt.Errorf("admin subject is required")
	}
	if s == nil || s.enforcer == nil {
		return fmt.Errorf("authz service unavailable")
	}
	sub := SubjectForAdmin(subject)

	if _, err := s.enforcer.RemoveFilteredNamedGroupingPolicy("g", 0, sub); err != nil {
		return fmt.Errorf("clear admin roles failed: %w", err)
	}
	for _, role := range roles {
		normalizedRole, err := s.EnsureRole(role)
		if err != nil {
			return err
		}
		if _, err := s.enforcer.AddNamedGroupingPolicy("g", sub, normalizedRole); err != nil {
			return fmt.Errorf("assign admin role failed: %w", err)
		}
	}
	return nil
}

// GetAdminRoles 查询管理员角色
func (s *Service) GetAdminRoles(subject string) ([]string, error) {
	if s == nil || s.enforcer == nil {
		return nil, fmt.Errorf("authz service unavailable")
	}
	roles, err := s.enforcer.GetRolesForUser(SubjectForAdmin(subject))
	if err != nil {
		return nil, fmt.Errorf("get admin roles failed: %w", err)
	}
	filtered := make([]string, 0, len(roles))
	for _, role := range roles {
		if !strings.HasPrefix(role, rolePrefix) || role == roleAnchor {
			continue
		}
		filtered = append(filtered, role)
	}
	sort.Strings(filtered)
	return filtered, nil
}

// AdminAccess 管理员的有效角色与权限
type AdminAccess struct {
	Subject   string   `json:"subject"`
	Roles     []string `json:"roles"`
	Defaulted bool     `json:"defaulted"`
	Policies  []Policy `json:"policies"`
}

// GetAdminAccess 汇总管理员角色及继承得到的全部策略，无角色时按默认角色计算
func (s *Service) GetAdminAccess(subject string) (*AdminAccess, error) {
	roles, err := s.GetAdminRoles(subject)
	if err != nil {
		return nil, err
	}
	access := &AdminAccess{Subject: SubjectForAdmin(subject), Roles: roles}
	if len(roles) == 0 && s.defaultRole != "" {
		access.Roles = []string{s.defaultRole}
		access.Defaulted = true
	}

	expanded, err := s.expandRoles(access.Roles)
	if err != nil {
		return nil, err
	}
	access.Policies = make([]Policy, 0)
	for _, role := range expanded {
		policies, err := s.GetRolePolicies(role)
		if err != nil {
			return nil, err
		}
		access.Policies = append(access.Policies, policies...)
	}
	sort.Slice(access.Policies, func(i, j int) bool {
		if access.Policies[i].Object != access.Policies[j].Object {
			return access.Policies[i].Object < access.Policies[j].Object
		}
		return access.Policies[i].Action < access.Policies[j].Action
	})
	return access, nil
}

// expandRoles 沿继承链展开角色，结果有序去重
func (s *Service) expandRoles(roles []string) ([]string, error) {
	seen := make(map[string]struct{}, len(roles))
	queue := append([]string(nil), roles...)
	for len(queue) > 0 {
		role := queue[0]
		queue = queue[1:]
		if _, ok := seen[role]; ok || role == roleAnchor {
			continue
		}
		seen[role] = struct{}{}
		parents, err := s.enforcer.GetRolesForUser(role)
		if err != nil {
			return nil, fmt.Errorf("get parent roles failed: %w", err)
		}
		queue = append(queue, parents...)
	}
	result := make([]string, 0, len(seen))
	for role := range seen {
		result = append(result, role)
	}
	sort.Strings(result)
	return result, nil
}

func convertPolicies(rules [][]string) []Policy {
	policies := make([]Policy, 0, len(rules))
	for _, rule := range rules {
		if len(rule) < 3 {
			continue
		}
		policies = append(policies, Policy{
			Subject: strings.TrimSpace(rule[0]),
			Object:  NormalizeObject(rule[1]),
			Action:  NormalizeAction(rule[2]),
		})
	}
	return policies
}

// SubjectForAdmin 生成管理员主体标识，邮箱不区分大小写
func SubjectForAdmin(subject string) string {
	return fmt.Sprintf(adminSubjectFmt, strings.ToLower(strings.TrimSpace(subject)))
}

// NormalizeRole 统一角色名称
func NormalizeRole(role string) (string, error) {
	normalized := strings.TrimSpace(role)
	if normalized == "" {
		return "", fmt.Errorf("role is required")
	}
	normalized = strings.ReplaceAll(normalized, " ", "_")
	if !strings.HasPrefix(normalized, rolePrefix) {
		normalized = rolePrefix + normalized
	}
	if len(normalized) <= len(rolePrefix) {
		return "", fmt.Errorf("role is required")
	}
	return normalized, nil
}

// NormalizeObject 统一授权资源路径
func NormalizeObject(object string) string {
	normalized := strings.TrimSpace(object)
	if normalized == "" {
		return "/"
	}
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	if strings.HasPrefix(normalized, apiV1Prefix+"/") {
		return strings.TrimPrefix(normalized, apiV1Prefix)
	}
	if normalized == apiV1Prefix {
		return "/"
	}
	return normalized
}

// NormalizeAction 统一授权动作
func NormalizeAction(action string) string {
	return strings.ToUpper(strings.TrimSpace(action))
}
