package memory

import (
	"sort"

	"github.com/asagiri/genbamon/internal/entities"
)

func sortTemplates(templates []*entities.PermissionTemplate) {
	sort.Slice(templates, func(i, j int) bool {
		if templates[i].SortOrder != templates[j].SortOrder {
			return templates[i].SortOrder < templates[j].SortOrder
		}
		return templates[i].Name < templates[j].Name
	})
}

func sortAssignmentsByProject(assignments []*entities.ProjectAssignment) {
	sort.Slice(assignments, func(i, j int) bool {
		return assignments[i].ProjectID < assignments[j].ProjectID
	})
}

func sortAssignmentsByUser(assignments []*entities.ProjectAssignment) {
	sort.Slice(assignments, func(i, j int) bool {
		return assignments[i].UserID < assignments[j].UserID
	})
}
