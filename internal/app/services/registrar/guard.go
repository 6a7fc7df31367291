package registrar

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnauthorized indicates the caller may not manage subnames under the
// parent, or the registrar itself lacks the owner's operator approval.
var ErrUnauthorized = errors.New("unauthorized")

// AccessGuard decides who may register under a parent name. The caller must
// be the parent's owner or hold the owner's operator approval, and when the
// registrar settles on the owner's behalf its operator account needs the
// same approval.
type AccessGuard struct {
	wrapper  NameWrapper
	operator string
}

// NewAccessGuard builds a guard. operator is the registrar's settlement
// account; leave it empty when settlement happens outside the wrapper.
func NewAccessGuard(wrapper NameWrapper, operator string) (*AccessGuard, error) {
	if wrapper == nil {
		return nil, fmt.Errorf("name wrapper required")
	}
	return &AccessGuard{wrapper: wrapper, operator: strings.ToLower(operator)}, nil
}

// Authorize returns ErrUnauthorized unless caller controls parentLabel.
func (g *AccessGuard) Authorize(ctx context.Context, caller, parentLabel string) error {
	caller = strings.ToLower(caller)

	owner, err := g.wrapper.OwnerOf(ctx, parentLabel)
	if err != nil {
		return fmt.Errorf("resolve parent owner: %w", err)
	}
	owner = strings.ToLower(owner)
	if owner == "" {
		return fmt.Errorf("%w: parent %q has no owner", ErrUnauthorized, parentLabel)
	}

	if caller != owner {
		approved, err := g.wrapper.IsApprovedForAll(ctx, owner, caller)
		if err != nil {
			return fmt.Errorf("check caller approval: %w", err)
		}
		if !approved {
			return fmt.Errorf("%w: %s is neither owner nor approved operator of %q", ErrUnauthorized, caller, parentLabel)
		}
	}

	if g.operator != "" && g.operator != owner {
		approved, err := g.wrapper.IsApprovedForAll(ctx, owner, g.operator)
		if err != nil {
			return fmt.Errorf("check registrar approval: %w", err)
		}
		if !approved {
			return fmt.Errorf("%w: registrar operator %s lacks approval from %s", ErrUnauthorized, g.operator, owner)
		}
	}
	return nil
}
