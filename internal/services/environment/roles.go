package environment

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/fgeck/mysql-dr-dump/internal/apperr"
)

// FindRole returns the first role whose name starts with prefix, walking
// the paginated listing only as far as needed.
func FindRole(ctx context.Context, client IAMAPI, prefix string) (*iamtypes.Role, error) {
	input := &iam.ListRolesInput{}

	for {
		out, err := client.ListRoles(ctx, input)
		if err != nil {
			return nil, apperr.New(apperr.KindProvider, "listing roles", err)
		}

		for i := range out.Roles {
			if strings.HasPrefix(aws.ToString(out.Roles[i].RoleName), prefix) {
				return &out.Roles[i], nil
			}
		}

		if out.Marker == nil {
			break
		}
		input = &iam.ListRolesInput{Marker: out.Marker}
	}

	return nil, apperr.New(apperr.KindMissingRole, fmt.Sprintf("expected role is missing: %s", prefix), nil)
}
