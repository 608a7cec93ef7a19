package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sodaclub-ledger-api/internal/model"
	"sodaclub-ledger-api/internal/repository"
)

// AuthService resolves who is acting: it validates credentials on login
// and resumes sessions from tokens. Token issuance and storage belong
// to the TokenStore collaborator.
type AuthService struct {
	members repository.MemberRepository
	tokens  TokenStore
}

// NewAuthService creates a new auth service.
func NewAuthService(members repository.MemberRepository, tokens TokenStore) *AuthService {
	return &AuthService{members: members, tokens: tokens}
}

// normalizeStoredSecret undoes spreadsheet-style damage to a stored
// secret: surrounding whitespace and the trailing ".0" a numeric cell
// grows when exported as text. The secret a member submits is only
// trimmed; "1234.0" typed by a member must not match a stored "1234".
func normalizeStoredSecret(secret string) string {
	secret = strings.TrimSpace(secret)
	return strings.TrimSuffix(secret, ".0")
}

// Authenticate validates credentials and issues a session token.
// Every failure path returns ErrInvalidCredentials.
func (s *AuthService) Authenticate(ctx context.Context, identifier, secret string) (*model.Member, string, error) {
	identifier = strings.TrimSpace(identifier)
	secret = strings.TrimSpace(secret)
	if identifier == "" || secret == "" {
		return nil, "", ErrInvalidCredentials
	}

	member, err := s.members.GetMemberByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("failed to look up member: %w", err)
	}

	if !member.IsActive() {
		return nil, "", ErrInvalidCredentials
	}
	if normalizeStoredSecret(member.Secret) != secret {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(ctx, model.TokenData{
		MemberIdentifier: member.Identifier,
		Role:             member.Role,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}

	return member, token, nil
}

// Resume resolves a session token back to the member it belongs to.
// Returns nil (no error) when the token is unknown, expired, or the
// member has since been removed or deactivated.
func (s *AuthService) Resume(ctx context.Context, token string) (*model.Member, error) {
	data, err := s.tokens.Resolve(ctx, token)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil, nil
		}
		return nil, err
	}

	member, err := s.members.GetMemberByIdentifier(ctx, data.MemberIdentifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up member: %w", err)
	}
	if !member.IsActive() {
		return nil, nil
	}
	return member, nil
}

// Refresh extends the session behind a token.
func (s *AuthService) Refresh(ctx context.Context, token string) error {
	return s.tokens.Refresh(ctx, token)
}

// Logout revokes a session token.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.tokens.Revoke(ctx, token)
}
