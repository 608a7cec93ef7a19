package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"sodaclub-ledger-api/internal/ledger"
	"sodaclub-ledger-api/internal/model"
	"sodaclub-ledger-api/internal/repository"
)

// minSecretLength is the shortest secret code a member may register with.
const minSecretLength = 4

// MemberService manages the member roster. Members are never deleted;
// deactivation flips them back to pending.
type MemberService struct {
	members      repository.MemberRepository
	transactions repository.TransactionRepository
}

// NewMemberService creates a new member service.
func NewMemberService(members repository.MemberRepository, transactions repository.TransactionRepository) *MemberService {
	return &MemberService{members: members, transactions: transactions}
}

func validateIdentifier(identifier string) error {
	if identifier == "" {
		return validationErr("identifier", "is required")
	}
	if strings.ContainsAny(identifier, " \t\n") {
		return validationErr("identifier", "must not contain whitespace")
	}
	return nil
}

// Register creates a self-registered member. New registrations start
// pending and cannot log in until an admin activates them.
func (s *MemberService) Register(ctx context.Context, identifier, name, secret string) (*model.Member, error) {
	identifier = strings.TrimSpace(identifier)
	secret = strings.TrimSpace(secret)

	if err := validateIdentifier(identifier); err != nil {
		return nil, err
	}
	if len(secret) < minSecretLength {
		return nil, validationErr("secret", fmt.Sprintf("must be at least %d characters", minSecretLength))
	}

	m := model.Member{
		Identifier: identifier,
		Name:       strings.TrimSpace(name),
		Secret:     secret,
		Role:       model.RoleUser,
		Status:     model.MemberPending,
	}
	if err := s.members.AddMember(ctx, m); err != nil {
		return nil, err
	}

	log.Printf("[MemberService] Member %s registered (pending approval)", identifier)
	return &m, nil
}

// AddMember creates a member directly. Admin only; the member is active
// immediately.
func (s *MemberService) AddMember(ctx context.Context, actor *model.Member, m model.Member) (*model.Member, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	m.Identifier = strings.TrimSpace(m.Identifier)
	m.Secret = strings.TrimSpace(m.Secret)
	if err := validateIdentifier(m.Identifier); err != nil {
		return nil, err
	}
	if len(m.Secret) < minSecretLength {
		return nil, validationErr("secret", fmt.Sprintf("must be at least %d characters", minSecretLength))
	}
	if m.Role != model.RoleAdmin {
		m.Role = model.RoleUser
	}
	m.Status = model.MemberActive

	if err := s.members.AddMember(ctx, m); err != nil {
		return nil, err
	}

	log.Printf("[MemberService] Member %s added by %s", m.Identifier, actor.Identifier)
	return &m, nil
}

// ActivateMember flips a member to active. Admin only.
func (s *MemberService) ActivateMember(ctx context.Context, actor *model.Member, identifier string) error {
	return s.setStatus(ctx, actor, identifier, model.MemberActive)
}

// DeactivateMember flips a member back to pending, which also ends
// their ability to log in. Admin only. The member's transactions stay
// in the ledger untouched.
func (s *MemberService) DeactivateMember(ctx context.Context, actor *model.Member, identifier string) error {
	return s.setStatus(ctx, actor, identifier, model.MemberPending)
}

func (s *MemberService) setStatus(ctx context.Context, actor *model.Member, identifier string, status model.MemberStatus) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	if err := s.members.SetMemberStatus(ctx, identifier, status); err != nil {
		return err
	}
	log.Printf("[MemberService] Member %s set to %s by %s", identifier, status, actor.Identifier)
	return nil
}

// MemberWithBalance pairs a member with their derived position for the
// admin roster view.
type MemberWithBalance struct {
	Member  model.Member   `json:"member"`
	Summary ledger.Summary `json:"summary"`
}

// Members lists the roster with each member's balance. Admin only.
func (s *MemberService) Members(ctx context.Context, actor *model.Member) ([]MemberWithBalance, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	members, err := s.members.ListMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	txs, err := s.transactions.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	out := make([]MemberWithBalance, 0, len(members))
	for _, m := range members {
		out = append(out, MemberWithBalance{
			Member:  m,
			Summary: ledger.ComputeBalance(m.Identifier, txs),
		})
	}
	return out, nil
}
