//go:build protogen

package directory

import (
	"context"
	"time"

	"github.com/deskhive/deskhive/libs/grpcx"
	directoryv1 "github.com/deskhive/deskhive/protos/gen/directory/v1"
)

type Member struct {
	ID          string
	Email       string
	DisplayName string
	Role        string
}

type Provider interface {
	Member(ctx context.Context, orgID, userID string) (Member, error)
}

type grpcProvider struct {
	client directoryv1.DirectoryServiceClient
}

func NewProvider(addr string) (Provider, error) {
	if addr == "" {
		return nil, nil
	}
	conn, err := grpcx.Dial(context.Background(), addr, grpcx.DialOptions{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}
	return &grpcProvider{client: directoryv1.NewDirectoryServiceClient(conn)}, nil
}

func (p *grpcProvider) Member(ctx context.Context, orgID, userID string) (Member, error) {
	resp, err := p.client.GetMember(ctx, &directoryv1.MemberRequest{
		OrgId:  orgID,
		UserId: userID,
	})
	if err != nil {
		return Member{}, err
	}
	return Member{
		ID:          resp.GetUserId(),
		Email:       resp.GetEmail(),
		DisplayName: resp.GetDisplayName(),
		Role:        resp.GetRole(),
	}, nil
}
