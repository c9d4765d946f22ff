package rbac

import "slices"

// 权限常量
const (
	// 客户自身的看板操作
	PermissionReadOwnProject   = "project:read_own"
	PermissionToggleChecklist  = "checklist:toggle"
	PermissionSubmitOnboarding = "onboarding:submit"

	// 管理端操作
	PermissionReadAllProjects = "project:read_all"
	PermissionUpdateProject   = "project:update"
	PermissionUpdatePhase     = "phase:update"
	PermissionReadSubmissions = "quiz:read"
	PermissionReplayOutbox    = "outbox:replay"
)

// 角色常量
const (
	RoleClient = "client"
	RoleAdmin  = "admin"
)

// 角色权限映射
var rolePermissions = map[string][]string{
	RoleClient: {
		PermissionReadOwnProject,
		PermissionToggleChecklist,
		PermissionSubmitOnboarding,
	},
	RoleAdmin: {
		PermissionReadOwnProject,
		PermissionToggleChecklist,
		PermissionReadAllProjects,
		PermissionUpdateProject,
		PermissionUpdatePhase,
		PermissionReadSubmissions,
		PermissionReplayOutbox,
	},
}

// IsKnownRole 判断角色是否存在
func IsKnownRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}

// HasPermission 检查角色是否有指定权限
func HasPermission(role, permission string) bool {
	permissions, ok := rolePermissions[role]
	if !ok {
		return false
	}
	return slices.Contains(permissions, permission)
}

// CheckPermission 检查角色是否有指定权限（返回错误而不是布尔值，便于处理）
func CheckPermission(role, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{
			Role:       role,
			Permission: permission,
		}
	}
	return nil
}

// PermissionDeniedError 表示权限不足的错误
type PermissionDeniedError struct {
	Role       string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return "insufficient permissions"
}
