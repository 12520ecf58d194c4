package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

func tenantHandlers() repository.ModelHandlers[*tenantRecord] {
	return repository.ModelHandlers[*tenantRecord]{
		NewRecord: func() *tenantRecord {
			return &tenantRecord{}
		},
		GetID: func(record *tenantRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *tenantRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *tenantRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func tenantAuthHandlers() repository.ModelHandlers[*tenantAuthRecord] {
	return repository.ModelHandlers[*tenantAuthRecord]{
		NewRecord: func() *tenantAuthRecord {
			return &tenantAuthRecord{}
		},
		GetID: func(record *tenantAuthRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.TenantID)
		},
		SetID: func(record *tenantAuthRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.TenantID = id.String()
		},
		GetIdentifier: func() string {
			return "tenant_id"
		},
		GetIdentifierValue: func(record *tenantAuthRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.TenantID)
		},
	}
}

func messageHandlers() repository.ModelHandlers[*messageRecord] {
	return repository.ModelHandlers[*messageRecord]{
		NewRecord: func() *messageRecord {
			return &messageRecord{}
		},
		GetID: func(record *messageRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *messageRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *messageRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
