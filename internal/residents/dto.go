package residents

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/banksampah-backend/pkg/db/models"
	"github.com/angelmondragon/banksampah-backend/pkg/enums"
)

// DTO is the public shape of an actor. The password hash never leaves
// the package.
type DTO struct {
	ID        uuid.UUID       `json:"id"`
	Username  string          `json:"username"`
	FullName  string          `json:"full_name"`
	Nickname  *string         `json:"nickname,omitempty"`
	Address   *string         `json:"address,omitempty"`
	RT        *string         `json:"rt,omitempty"`
	RW        *string         `json:"rw,omitempty"`
	WhatsApp  *string         `json:"whatsapp,omitempty"`
	Role      enums.ActorRole `json:"role"`
	Balance   int64           `json:"balance"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
}

func FromModel(m *models.Resident) *DTO {
	if m == nil {
		return nil
	}
	return &DTO{
		ID:        m.ID,
		Username:  m.Username,
		FullName:  m.FullName,
		Nickname:  m.Nickname,
		Address:   m.Address,
		RT:        m.RT,
		RW:        m.RW,
		WhatsApp:  m.WhatsApp,
		Role:      m.Role,
		Balance:   m.Balance,
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
	}
}

func FromModels(rows []models.Resident) []*DTO {
	out := make([]*DTO, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i]))
	}
	return out
}
