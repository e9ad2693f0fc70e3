package auth

import "github.com/trezcool/elimu/core"

var (
	ErrMissingToken          = core.NewError(core.KindUnauthenticated, "missing or malformed jwt")
	ErrInvalidToken          = core.NewError(core.KindUnauthenticated, "invalid or expired jwt")
	ErrRevoked               = core.NewError(core.KindUnauthenticated, "token has been revoked")
	ErrForbidden             = core.NewError(core.KindForbidden, "permission denied")
	ErrRevocationUnavailable = core.NewError(core.KindUpstreamUnavailable, "token revocation list unavailable")
)
