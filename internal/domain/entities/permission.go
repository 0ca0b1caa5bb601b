package entities

// Operation names a permission-guarded catalog operation
type Operation string

const (
	OpQueryDiagnoses    Operation = "query_diagnoses"
	OpQueryItems        Operation = "query_items"
	OpQueryItemsFull    Operation = "query_items_full"
	OpQueryServices     Operation = "query_services"
	OpQueryServicesFull Operation = "query_services_full"
	OpCreateItem        Operation = "create_item"
	OpUpdateItem        Operation = "update_item"
	OpDeleteItem        Operation = "delete_item"
	OpCreateService     Operation = "create_service"
	OpUpdateService     Operation = "update_service"
	OpDeleteService     Operation = "delete_service"
)

// PermissionTable maps each operation to the permission codes a caller must
// hold. An operation missing from the table requires nothing.
type PermissionTable map[Operation][]string

// DefaultPermissionTable returns the stock openIMIS medical permission codes
func DefaultPermissionTable() PermissionTable {
	return PermissionTable{
		OpQueryDiagnoses:    {},
		OpQueryItems:        {"122101"},
		OpQueryItemsFull:    {"122101"},
		OpQueryServices:     {"121401"},
		OpQueryServicesFull: {"121401"},
		OpCreateItem:        {"122102"},
		OpUpdateItem:        {"122103"},
		OpDeleteItem:        {"122104"},
		OpCreateService:     {"121402"},
		OpUpdateService:     {"121403"},
		OpDeleteService:     {"121404"},
	}
}

// Required returns the permission codes guarding op
func (t PermissionTable) Required(op Operation) []string {
	return t[op]
}

// Allows reports whether caller may run op
func (t PermissionTable) Allows(caller *Caller, op Operation) bool {
	return caller.HasPerms(t.Required(op))
}

// Merge returns a copy of t with the entries of overrides replacing its own
func (t PermissionTable) Merge(overrides PermissionTable) PermissionTable {
	out := make(PermissionTable, len(t)+len(overrides))
	for op, perms := range t {
		out[op] = perms
	}
	for op, perms := range overrides {
		out[op] = perms
	}
	return out
}

// OperationsFor returns the create, update, delete, query and full-query
// operations of a kind.
func OperationsFor(kind EntryKind) (create, update, del, query, full Operation) {
	if kind == KindService {
		return OpCreateService, OpUpdateService, OpDeleteService, OpQueryServices, OpQueryServicesFull
	}
	return OpCreateItem, OpUpdateItem, OpDeleteItem, OpQueryItems, OpQueryItemsFull
}
