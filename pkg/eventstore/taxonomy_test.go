package eventstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidEventType(t *testing.T) {
	valid := []string{
		"organization.created",
		"organization.unit.deleted",
		"role.permission.granted",
		"workflow.queue.claimed",
		"user.role.assigned",
		"contact_address.updated",
	}
	for _, s := range valid {
		assert.True(t, ValidEventType(s), s)
	}

	invalid := []string{
		"",
		"created",
		"Organization.Created",
		"organization.",
		".created",
		"organization..created",
		"organization created",
		"organization.créated",
		"1organization.created",
	}
	for _, s := range invalid {
		assert.False(t, ValidEventType(s), s)
	}
}
