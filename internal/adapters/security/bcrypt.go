package security

import (
	"golang.org/x/crypto/bcrypt"
)

// InvitationHasher stores one-time invitation tokens as bcrypt hashes so a
// leaked profile row cannot be replayed as an invitation.
type InvitationHasher struct {
	cost int
}

func NewInvitationHasher(cost int) *InvitationHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &InvitationHasher{cost: cost}
}

func (h *InvitationHasher) Hash(token string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(token), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (h *InvitationHasher) Compare(hash, token string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token))
}
