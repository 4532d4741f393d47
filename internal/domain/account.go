package domain

import (
	"fmt"

	"github.com/google/uuid"
)

func (a Account) ref(kind ProfileKind) *uuid.UUID {
	if a.Profile == nil || a.Profile.Kind != kind {
		return nil
	}
	id := a.Profile.ID
	return &id
}

func (a Account) MemberRef() *uuid.UUID   { return a.ref(ProfileKindMember) }
func (a Account) SellerRef() *uuid.UUID   { return a.ref(ProfileKindSeller) }
func (a Account) PromoterRef() *uuid.UUID { return a.ref(ProfileKindPromoter) }
func (a Account) StewardRef() *uuid.UUID  { return a.ref(ProfileKindSteward) }

// Validate checks that the persona and the profile ref agree: ADMIN owns no
// profile, GUEST owns nothing or its Member, and every other persona owns
// exactly the profile of its own kind.
func (a Account) Validate() error {
	if a.Profile != nil && a.Profile.ID == uuid.Nil {
		return fmt.Errorf("%w: profile ref without id", ErrInvalidInput)
	}
	switch a.Persona {
	case PersonaAdmin:
		if a.Profile != nil {
			return fmt.Errorf("%w: admin account cannot own a profile", ErrInvalidInput)
		}
	case PersonaGuest:
		if a.Profile != nil && a.Profile.Kind != ProfileKindMember {
			return fmt.Errorf("%w: guest account can only own a member profile", ErrInvalidInput)
		}
	case PersonaSeller, PersonaPromoter, PersonaSteward:
		if a.Profile == nil || a.Profile.Kind.Persona() != a.Persona {
			return fmt.Errorf("%w: %s account must own a %s profile", ErrInvalidInput, a.Persona, a.Persona)
		}
	default:
		return fmt.Errorf("%w: unknown persona %q", ErrInvalidInput, a.Persona)
	}
	return nil
}

// LinkProfile moves the account onto the persona that owns ref.
func (a *Account) LinkProfile(ref ProfileRef) {
	a.Profile = &ref
	a.Persona = ref.Kind.Persona()
	if ref.Kind == ProfileKindMember {
		a.OnboardingStage = OnboardingComplete
	}
}

// ClearProfile drops the profile ref and returns the account to an
// unfinished onboarding state.
func (a *Account) ClearProfile() {
	a.Profile = nil
	if a.Persona != PersonaAdmin {
		a.Persona = PersonaGuest
	}
	a.OnboardingStage = OnboardingInProgress
}

func (s ApplicationStatus) CanTransitionTo(next ApplicationStatus) bool {
	switch next {
	case ApplicationApproved:
		return s == ApplicationPending || s == ApplicationApproved
	case ApplicationRejected:
		return s == ApplicationPending
	default:
		return false
	}
}
