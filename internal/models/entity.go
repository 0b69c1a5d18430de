package models

// EntityType is the closed set of things a connection can watch and comment on.
type EntityType string

const (
	EntityPentest EntityType = "pentest"
	EntityFinding EntityType = "finding"
	EntityTarget  EntityType = "target"
	EntityReport  EntityType = "report"
)

// EntityTypes enumerates every EntityType. Tables keyed by entity type are
// expected to cover all of these.
var EntityTypes = []EntityType{EntityPentest, EntityFinding, EntityTarget, EntityReport}

// ParseEntityType accepts only the known entity type names.
func ParseEntityType(s string) (EntityType, bool) {
	for _, t := range EntityTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Link returns the dashboard path of the entity with the given id.
func (t EntityType) Link(id string) string {
	return "/" + string(t) + "s/" + id
}
