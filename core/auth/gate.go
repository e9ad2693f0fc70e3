package auth

import "context"

// Authorize allows c when no role is required or when c.Role is one of required.
func Authorize(c Claim, required ...Role) error {
	if len(required) == 0 {
		return nil
	}
	for _, role := range required {
		if c.Role == role {
			return nil
		}
	}
	return ErrForbidden
}

// Request is the state threaded through a Pipeline.
type Request struct {
	Token string
	Claim *Claim
}

// Stage either lets the request through (nil) or stops the pipeline with the reason.
type Stage func(ctx context.Context, req *Request) error

// Pipeline runs its stages in order and stops at the first failure.
type Pipeline []Stage

// NewPipeline authenticates the bearer token, then authorizes its claim against roles.
func NewPipeline(dec Decoder, roles ...Role) Pipeline {
	return Pipeline{Authenticate(dec), RequireRoles(roles...)}
}

func (p Pipeline) Run(ctx context.Context, token string) (Claim, error) {
	req := &Request{Token: token}
	for _, stage := range p {
		if err := stage(ctx, req); err != nil {
			return Claim{}, err
		}
	}
	if req.Claim == nil {
		return Claim{}, ErrMissingToken
	}
	return *req.Claim, nil
}

func Authenticate(dec Decoder) Stage {
	return func(ctx context.Context, req *Request) error {
		if req.Token == "" {
			return ErrMissingToken
		}
		c, err := dec.Decode(ctx, req.Token)
		if err != nil {
			return err
		}
		req.Claim = &c
		return nil
	}
}

// RequireRoles must run after Authenticate: a request without a claim never reaches the role check.
func RequireRoles(roles ...Role) Stage {
	return func(_ context.Context, req *Request) error {
		if req.Claim == nil {
			return ErrMissingToken
		}
		return Authorize(*req.Claim, roles...)
	}
}
