package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// assignID fills a zero primary key before insert so both postgres and
// sqlite schemas work without a server-side uuid default.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (r *Resident) BeforeCreate(*gorm.DB) error          { assignID(&r.ID); return nil }
func (c *Category) BeforeCreate(*gorm.DB) error          { assignID(&c.ID); return nil }
func (t *Transaction) BeforeCreate(*gorm.DB) error       { assignID(&t.ID); return nil }
func (m *FinancialMovement) BeforeCreate(*gorm.DB) error { assignID(&m.ID); return nil }
func (e *CommitteeEarning) BeforeCreate(*gorm.DB) error  { assignID(&e.ID); return nil }
func (a *AuditLogEntry) BeforeCreate(*gorm.DB) error     { assignID(&a.ID); return nil }
func (o *OutboxEvent) BeforeCreate(*gorm.DB) error       { assignID(&o.ID); return nil }
