package hydrator

import (
	"errors"
	"strings"

	"github.com/99minutos/identity-core/internal/core/domain"
	"github.com/99minutos/identity-core/internal/core/query"
)

// conflict names a unique column and the value the failed write carried for it.
type conflict struct {
	field string
	value string
}

// storageFailure tags err with op. Errors already in the domain taxonomy pass
// through unchanged.
func storageFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return domain.StorageFailure(op, err)
}

// translateWrite maps a write failure onto the taxonomy. A unique violation
// becomes EntityAlreadyExists for the candidate whose field appears in the
// reported constraint; a foreign key violation means a referenced id does
// not exist.
func translateWrite(op, entityType string, err error, candidates ...conflict) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	kind, constraint, ok := query.KindOf(err)
	if !ok {
		return domain.StorageFailure(op, err)
	}
	switch kind {
	case query.KindUniqueViolation:
		c := matchConflict(constraint, candidates)
		return domain.EntityAlreadyExists(entityType, c.field, c.value)
	case query.KindForeignKey:
		return domain.BusinessRuleViolation("referenced_entity_must_exist",
			"a referenced entity does not exist",
			map[string]string{domain.KeyEntityType: entityType, domain.KeyOperation: op})
	default:
		return domain.StorageFailure(op, err)
	}
}

func matchConflict(constraint string, candidates []conflict) conflict {
	lc := strings.ToLower(constraint)
	for _, c := range candidates {
		if strings.Contains(lc, c.field) {
			return c
		}
	}
	if len(candidates) == 1 {
		return candidates[0]
	}
	return conflict{field: constraint}
}

func userConflicts(u *domain.User) []conflict {
	return []conflict{
		{field: "username", value: string(u.Username)},
		{field: "email", value: string(u.Email)},
		{field: "uuid", value: u.UUID.String()},
	}
}
