//go:build !protogen

package directory

import "context"

// Member is the slice of an organization member the scheduling surface needs:
// enough to address a conflict notification. Member CRUD itself lives in the
// external organization service.
type Member struct {
	ID          string
	Email       string
	DisplayName string
	Role        string
}

// Provider resolves organization members. A nil Provider means the directory
// is unavailable in this build; event payloads then carry user ids only and
// the notifier resolves addresses itself.
type Provider interface {
	Member(ctx context.Context, orgID, userID string) (Member, error)
}

func NewProvider(_ string) (Provider, error) {
	return nil, nil
}
