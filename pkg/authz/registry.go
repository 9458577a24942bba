package authz

const (
	RoleTenantAdmin = "tenant-admin"
	RoleOrgEditor   = "org-editor"
	RoleOrgViewer   = "org-viewer"
	RoleAnonymous   = "anonymous"
)

const (
	ActionRead   = "read"
	ActionWrite  = "write"
	ActionDelete = "delete"
)

const (
	ObjectOrganizations = "organization.organizations"
	ObjectTimeline      = "organization.timeline"
	ObjectAudit         = "organization.audit"
)
