package authz

const (
	RoleQualityManager = "quality-manager"
	RoleAuditor        = "auditor"
	RoleViewer         = "viewer"
	RoleAnonymous      = "anonymous"
)

const (
	ActionRead  = "read"
	ActionWrite = "write"
)

const (
	ObjectAudits       = "traceability.audits"
	ObjectFindings     = "traceability.findings"
	ObjectActions      = "traceability.actions"
	ObjectDeclarations = "traceability.employee-declarations"
	ObjectSurveys      = "traceability.customer-surveys"
	ObjectTrace        = "traceability.trace"
	ObjectRules        = "traceability.rules"
)
