package auth

import (
	"context"
	"testing"

	"github.com/pkg/errors"
)

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name     string
		role     Role
		required []Role
		wantErr  error
	}{
		{name: "no roles required (student)", role: RoleStudent},
		{name: "no roles required (admin)", role: RoleAdmin},
		{name: "single role match", role: RoleMentor, required: []Role{RoleMentor}},
		{name: "single role mismatch", role: RoleStudent, required: []Role{RoleMentor}, wantErr: ErrForbidden},
		{name: "admin is not implied", role: RoleAdmin, required: []Role{RoleStudent}, wantErr: ErrForbidden},
		{name: "any of many", role: RoleAdmin, required: []Role{RoleMentor, RoleAdmin}},
		{name: "none of many", role: RoleStudent, required: []Role{RoleMentor, RoleAdmin}, wantErr: ErrForbidden},
		{name: "unknown role", role: Role("GUEST"), required: AllRoles, wantErr: ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Authorize(Claim{SubjectID: "1", Role: tt.role}, tt.required...); err != tt.wantErr {
				t.Errorf("Authorize() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

type decoderFunc func(ctx context.Context, token string) (Claim, error)

func (f decoderFunc) Decode(ctx context.Context, token string) (Claim, error) { return f(ctx, token) }

func TestPipeline_Run(t *testing.T) {
	var decoded int
	dec := decoderFunc(func(_ context.Context, token string) (Claim, error) {
		decoded++
		switch token {
		case "student":
			return Claim{SubjectID: "s", Role: RoleStudent}, nil
		case "mentor":
			return Claim{SubjectID: "m", Role: RoleMentor}, nil
		case "revoked":
			return Claim{}, ErrRevoked
		}
		return Claim{}, ErrInvalidToken
	})

	tests := []struct {
		name        string
		roles       []Role
		token       string
		wantSubject string
		wantErr     error
		wantDecoded int
	}{
		{name: "missing token", token: "", wantErr: ErrMissingToken},
		{name: "missing token never reaches role check", roles: []Role{RoleMentor}, wantErr: ErrMissingToken},
		{name: "invalid token", token: "garbage", roles: []Role{RoleMentor}, wantErr: ErrInvalidToken, wantDecoded: 1},
		{name: "revoked token", token: "revoked", wantErr: ErrRevoked, wantDecoded: 1},
		{name: "authenticated, no roles", token: "student", wantSubject: "s", wantDecoded: 1},
		{name: "authenticated, wrong role", token: "student", roles: []Role{RoleMentor}, wantErr: ErrForbidden, wantDecoded: 1},
		{name: "authenticated, right role", token: "mentor", roles: []Role{RoleMentor}, wantSubject: "m", wantDecoded: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded = 0
			claim, err := NewPipeline(dec, tt.roles...).Run(context.Background(), tt.token)
			if errors.Cause(err) != tt.wantErr {
				t.Fatalf("Run() error = %v, wantErr %v", err, tt.wantErr)
			}
			if claim.SubjectID != tt.wantSubject {
				t.Errorf("Run() subject = %q, want %q", claim.SubjectID, tt.wantSubject)
			}
			if decoded != tt.wantDecoded {
				t.Errorf("Decode() called %d times, want %d", decoded, tt.wantDecoded)
			}
		})
	}
}
