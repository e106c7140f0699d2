package shared

// Resource names referenced by guarded endpoints.
const (
	ResourcePosts = "posts"
)

// Action names referenced by guarded endpoints.
const (
	ActionRead   = "read"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// CoreActions lists the action vocabulary seeded on a fresh install.
func CoreActions() []string {
	return []string{
		ActionRead,
		ActionCreate,
		ActionUpdate,
		ActionDelete,
	}
}

// CoreResources lists the resource vocabulary seeded on a fresh install.
func CoreResources() []string {
	return []string{ResourcePosts}
}
