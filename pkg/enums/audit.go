package enums

// AuditAction names the mutation recorded by an audit entry.
type AuditAction string

const (
	AuditActionCreate   AuditAction = "CREATE"
	AuditActionUpdate   AuditAction = "UPDATE"
	AuditActionDelete   AuditAction = "DELETE"
	AuditActionReverse  AuditAction = "REVERSE"
	AuditActionClearAll AuditAction = "CLEAR_ALL"
	AuditActionClose    AuditAction = "CLOSE"
	AuditActionReopen   AuditAction = "REOPEN"
	AuditActionAttach   AuditAction = "ATTACH"
)

var validAuditActions = []AuditAction{
	AuditActionCreate,
	AuditActionUpdate,
	AuditActionDelete,
	AuditActionReverse,
	AuditActionClearAll,
	AuditActionClose,
	AuditActionReopen,
	AuditActionAttach,
}

// IsValid reports whether the value is a known AuditAction.
func (a AuditAction) IsValid() bool {
	for _, candidate := range validAuditActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// AuditEntity names the kind of record an audit entry refers to.
type AuditEntity string

const (
	AuditEntityVoucher    AuditEntity = "vouchers"
	AuditEntityPeriodLock AuditEntity = "period_lock"
	AuditEntitySystem     AuditEntity = "system"
)
