package staff

import (
	"context"

	"github.com/google/uuid"
)

// Staff is one member of the accounting team.
type Staff struct {
	ID                  uuid.UUID      `json:"id"`
	Name                string         `json:"name"`
	Role                string         `json:"role"`
	Available           bool           `json:"available"`
	UtilizationPercent  float64        `json:"utilizationPercent"`
	Skills              []string       `json:"skills"`
	ClientExpertise     []uuid.UUID    `json:"clientExpertise,omitempty"`
	CompletedByCategory map[string]int `json:"completedByCategory,omitempty"`
}

// KnowsClient reports prior expertise with the given client.
func (s *Staff) KnowsClient(clientID uuid.UUID) bool {
	for _, id := range s.ClientExpertise {
		if id == clientID {
			return true
		}
	}
	return false
}

// Repository provides access to the staff roster.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Staff, error)
	List(ctx context.Context) ([]*Staff, error)
	Update(ctx context.Context, s *Staff) error
}
