package application

import (
	"context"
	"testing"
	"time"

	"github.com/buddywood/northstarnupes-sub002/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestApplyStewardAutoApprovesVerifiedMember(t *testing.T) {
	f := newFixture(t)
	member := f.registerMember(t, "sub-steward", "steward@example.org", "KA-2001")
	f.verifyMember(t, member.ID)

	res, err := f.svc.ApplySteward(context.Background(), f.principal(t, "sub-steward", "steward@example.org"), StewardApplication{}, "")
	require.NoError(t, err)
	require.Equal(t, string(domain.ApplicationApproved), res.Status)
	require.NotEmpty(t, res.PaymentAccountID)
	require.NotNil(t, res.MemberID)
	require.Equal(t, member.ID, *res.MemberID)
	require.False(t, res.InvitationPending)
	require.Equal(t, 1, f.payments.callCount())

	account := f.account(t, "sub-steward")
	requireConsistent(t, account)
	require.Equal(t, domain.PersonaSteward, account.Persona)
	require.NotNil(t, account.StewardRef())
	require.Equal(t, res.ID, *account.StewardRef())

	// The member stays reachable through the steward profile.
	p := f.principal(t, "sub-steward", "steward@example.org")
	resolved, err := f.svc.RequireVerifiedMember(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, member.ID, resolved.ID)

	own, err := f.svc.GetOwnSteward(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, res.ID, own.ID)
}

func TestApplyStewardRequiresVerification(t *testing.T) {
	f := newFixture(t)
	f.registerMember(t, "sub-pending", "pending@example.org", "KA-2002")

	_, err := f.svc.ApplySteward(context.Background(), f.principal(t, "sub-pending", "pending@example.org"), StewardApplication{}, "")
	require.ErrorIs(t, err, domain.ErrVerificationRequired)
	require.ErrorIs(t, err, domain.ErrForbidden)
	require.Equal(t, int64(0), f.count(t, "stewards"))
	require.Equal(t, 0, f.payments.callCount())

	account := f.account(t, "sub-pending")
	require.Equal(t, domain.PersonaGuest, account.Persona)
}

func TestApplyStewardRequiresMemberProfile(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ApplySteward(context.Background(), Principal{}, StewardApplication{}, "")
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = f.svc.ConfirmIdentity(context.Background(), claimsFor("sub-guest", "guest@example.org"))
	require.NoError(t, err)
	_, err = f.svc.ApplySteward(context.Background(), f.principal(t, "sub-guest", "guest@example.org"), StewardApplication{}, "")
	require.ErrorIs(t, err, domain.ErrMemberProfileRequired)
}

func TestApplySellerFromVerifiedMemberAutoApproves(t *testing.T) {
	f := newFixture(t)
	member := f.registerMember(t, "sub-seller", "seller@example.org", "KA-3001")
	f.verifyMember(t, member.ID)

	res, err := f.svc.ApplySeller(context.Background(), f.principal(t, "sub-seller", "seller@example.org"), SellerApplication{
		Name: "Marcus Hill", Email: "seller@example.org", BusinessName: "Hill Goods", MembershipNumber: "KA-3001",
	}, "")
	require.NoError(t, err)
	require.Equal(t, string(domain.ApplicationApproved), res.Status)
	require.Equal(t, string(domain.VerificationVerified), res.VerificationStatus)
	require.Equal(t, member.ID, *res.MemberID)

	account := f.account(t, "sub-seller")
	requireConsistent(t, account)
	require.Equal(t, domain.PersonaSeller, account.Persona)
	require.Equal(t, res.ID, *account.SellerRef())
}

func TestApplicationFromNonMemberStaysPending(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.ApplyPromoter(context.Background(), Principal{}, PromoterApplication{
		Name: "Event Runner", Email: "events@example.org",
	}, "")
	require.NoError(t, err)
	require.Equal(t, string(domain.ApplicationPending), res.Status)
	require.Nil(t, res.MemberID)
	require.Empty(t, res.PaymentAccountID)
	require.Equal(t, 0, f.payments.callCount())
}

func TestAutoApprovalFailureLeavesApplicationPending(t *testing.T) {
	f := newFixture(t)
	member := f.registerMember(t, "sub-promo", "promo@example.org", "KA-4001")
	f.verifyMember(t, member.ID)
	f.payments.err = errInjected

	res, err := f.svc.ApplyPromoter(context.Background(), f.principal(t, "sub-promo", "promo@example.org"), PromoterApplication{
		Name: "Marcus Hill", Email: "promo@example.org",
	}, "")
	require.NoError(t, err)
	require.Equal(t, string(domain.ApplicationPending), res.Status)

	account := f.account(t, "sub-promo")
	requireConsistent(t, account)
	require.Equal(t, domain.PersonaGuest, account.Persona)
	require.Equal(t, member.ID, *account.MemberRef())

	// The applicant's member is resolvable, so an admin retry links the account.
	f.payments.err = nil
	approved, err := f.svc.DecideApplication(context.Background(), f.admin(t), "promoter", res.ID, DecisionRequest{Status: "approved"})
	require.NoError(t, err)
	require.Equal(t, string(domain.ApplicationApproved), approved.Status)

	account = f.account(t, "sub-promo")
	requireConsistent(t, account)
	require.Equal(t, domain.PersonaPromoter, account.Persona)
	require.Equal(t, res.ID, *account.PromoterRef())
}

func TestApplicationsRejectDuplicateIdentityAcrossPersonas(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ApplySeller(context.Background(), Principal{}, SellerApplication{
		Name: "First Shop", Email: "shop@example.org", MembershipNumber: "KA-600",
	}, "")
	require.NoError(t, err)

	_, err = f.svc.ApplyPromoter(context.Background(), Principal{}, PromoterApplication{
		Name: "Copy Cat", Email: "SHOP@example.org",
	}, "")
	require.ErrorIs(t, err, domain.ErrDuplicateRegistration)

	_, err = f.svc.ApplySeller(context.Background(), Principal{}, SellerApplication{
		Name: "Second Shop", Email: "other@example.org", MembershipNumber: "ka-600",
	}, "")
	require.ErrorIs(t, err, domain.ErrDuplicateRegistration)

	require.Equal(t, int64(1), f.count(t, "sellers"))
	require.Equal(t, int64(0), f.count(t, "promoters"))
}

func TestApplicationByMemberEmailIsSamePerson(t *testing.T) {
	f := newFixture(t)
	member := f.registerMember(t, "sub-own", "own@example.org", "KA-700")

	res, err := f.svc.ApplySeller(context.Background(), Principal{}, SellerApplication{
		Name: "Marcus Hill", Email: "own@example.org", MembershipNumber: "KA-700",
	}, "")
	require.NoError(t, err)
	require.Equal(t, member.ID, *res.MemberID)
	require.Equal(t, string(domain.ApplicationPending), res.Status)
	require.Equal(t, int64(2), f.count(t, "identity_claims"))
}

func TestManualApprovalIsRetrySafe(t *testing.T) {
	f := newFixture(t)
	admin := f.admin(t)
	res, err := f.svc.ApplySeller(context.Background(), Principal{}, SellerApplication{
		Name: "Retry Shop", Email: "retry@example.org",
	}, "")
	require.NoError(t, err)

	first, err := f.svc.DecideApplication(context.Background(), admin, "SELLER", res.ID, DecisionRequest{Status: "APPROVED"})
	require.NoError(t, err)
	second, err := f.svc.DecideApplication(context.Background(), admin, "SELLER", res.ID, DecisionRequest{Status: "APPROVED"})
	require.NoError(t, err)

	require.Equal(t, 1, f.payments.callCount())
	require.Equal(t, "retry@example.org", f.payments.calls[0].Email)
	require.Equal(t, first.PaymentAccountID, second.PaymentAccountID)
	require.True(t, first.InvitationPending)

	_, err = f.svc.DecideApplication(context.Background(), admin, "SELLER", res.ID, DecisionRequest{Status: "REJECTED"})
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestRejectedApplicationCannotBeApproved(t *testing.T) {
	f := newFixture(t)
	admin := f.admin(t)
	res, err := f.svc.ApplyPromoter(context.Background(), Principal{}, PromoterApplication{
		Name: "Rejected Promoter", Email: "rejected@example.org",
	}, "")
	require.NoError(t, err)

	rejected, err := f.svc.DecideApplication(context.Background(), admin, "promoter", res.ID, DecisionRequest{Status: "REJECTED", Notes: "incomplete"})
	require.NoError(t, err)
	require.Equal(t, string(domain.ApplicationRejected), rejected.Status)
	require.Equal(t, int64(0), f.count(t, "identity_claims"))

	_, err = f.svc.DecideApplication(context.Background(), admin, "promoter", res.ID, DecisionRequest{Status: "APPROVED"})
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	require.Equal(t, 0, f.payments.callCount())

	// Released claims allow a fresh application.
	_, err = f.svc.ApplyPromoter(context.Background(), Principal{}, PromoterApplication{
		Name: "Rejected Promoter", Email: "rejected@example.org",
	}, "")
	require.NoError(t, err)
}

func TestDecideApplicationRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	f.registerMember(t, "sub-m", "m@example.org", "KA-800")

	_, err := f.svc.DecideApplication(context.Background(), f.principal(t, "sub-m", "m@example.org"), "SELLER", uuid.New(), DecisionRequest{Status: "APPROVED"})
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.DecideApplication(context.Background(), f.admin(t), "MEMBER", uuid.New(), DecisionRequest{Status: "APPROVED"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestApplicationRateLimit(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.ApplicationRateLimit = 2 })
	apply := func() error {
		_, err := f.svc.ApplyPromoter(context.Background(), Principal{}, PromoterApplication{
			Name: "Busy Applicant", Email: "busy@example.org",
		}, "")
		return err
	}

	require.NoError(t, apply())
	require.ErrorIs(t, apply(), domain.ErrDuplicateRegistration)
	require.ErrorIs(t, apply(), domain.ErrRateLimitExceeded)
}

func TestApplicationIdempotencyReplay(t *testing.T) {
	f := newFixture(t)
	req := PromoterApplication{Name: "Replay Promoter", Email: "replay@example.org"}

	first, err := f.svc.ApplyPromoter(context.Background(), Principal{}, req, "key-1")
	require.NoError(t, err)
	second, err := f.svc.ApplyPromoter(context.Background(), Principal{}, req, "key-1")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, int64(1), f.count(t, "promoters"))

	req.Name = "Different Body"
	_, err = f.svc.ApplyPromoter(context.Background(), Principal{}, req, "key-1")
	require.ErrorIs(t, err, domain.ErrIdempotencyConflict)
}

func TestApplicationFromNonGuestAccountConflicts(t *testing.T) {
	f := newFixture(t)
	member := f.registerMember(t, "sub-dual", "dual@example.org", "KA-900")
	f.verifyMember(t, member.ID)
	_, err := f.svc.ApplySteward(context.Background(), f.principal(t, "sub-dual", "dual@example.org"), StewardApplication{}, "")
	require.NoError(t, err)

	_, err = f.svc.ApplyPromoter(context.Background(), f.principal(t, "sub-dual", "dual@example.org"), PromoterApplication{
		Name: "Marcus Hill", Email: "dual@example.org",
	}, "")
	require.ErrorIs(t, err, domain.ErrConflict)
	require.Equal(t, int64(0), f.count(t, "promoters"))
}

func TestClaimInvitationBindsApprovedProfile(t *testing.T) {
	f := newFixture(t)
	f.svc.tokenFn = func() (string, error) { return "invite-token-1", nil }
	res, err := f.svc.ApplyPromoter(context.Background(), Principal{}, PromoterApplication{
		Name: "Invited Promoter", Email: "invited@example.org",
	}, "")
	require.NoError(t, err)
	_, err = f.svc.DecideApplication(context.Background(), f.admin(t), "PROMOTER", res.ID, DecisionRequest{Status: "APPROVED"})
	require.NoError(t, err)

	var emails int64
	require.NoError(t, f.db.Table("identity_outbox").
		Where("event_type = ? AND payload LIKE ?", "notification.email_requested", "%invite-token-1%").
		Count(&emails).Error)
	require.Equal(t, int64(1), emails)

	claimer := Principal{Claims: claimsFor("sub-invited", "invited@example.org")}
	_, err = f.svc.ClaimInvitation(context.Background(), claimer, ClaimInvitationRequest{
		Kind: "PROMOTER", ProfileID: res.ID.String(), Token: "wrong-token",
	})
	require.ErrorIs(t, err, domain.ErrInvitationInvalid)

	bound, err := f.svc.ClaimInvitation(context.Background(), claimer, ClaimInvitationRequest{
		Kind: "PROMOTER", ProfileID: res.ID.String(), Token: "invite-token-1",
	})
	require.NoError(t, err)
	require.Equal(t, string(domain.PersonaPromoter), bound.Persona)

	account := f.account(t, "sub-invited")
	requireConsistent(t, account)
	require.Equal(t, res.ID, *account.PromoterRef())

	// Tokens are single use.
	_, err = f.svc.ClaimInvitation(context.Background(), f.principal(t, "sub-invited", "invited@example.org"), ClaimInvitationRequest{
		Kind: "PROMOTER", ProfileID: res.ID.String(), Token: "invite-token-1",
	})
	require.ErrorIs(t, err, domain.ErrInvitationInvalid)
}

func TestSignedInApplicantCannotBorrowMemberEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	victim := f.registerMember(t, "sub-victim", "victim@example.org", "KA-6001")
	f.verifyMember(t, victim.ID)
	_, err := f.svc.ConfirmIdentity(ctx, claimsFor("sub-other", "other@example.org"))
	require.NoError(t, err)

	p := f.principal(t, "sub-other", "other@example.org")
	_, err = f.svc.ApplySeller(ctx, p, SellerApplication{
		Name: "Not Marcus", Email: "victim@example.org", BusinessName: "Borrowed Goods",
	}, "")
	require.ErrorIs(t, err, domain.ErrDuplicateRegistration)
	require.Equal(t, int64(0), f.count(t, "sellers"))
	require.Equal(t, 0, f.payments.callCount())

	account := f.account(t, "sub-other")
	requireConsistent(t, account)
	require.Equal(t, domain.PersonaGuest, account.Persona)
	_, err = f.svc.RequireVerifiedMember(ctx, f.principal(t, "sub-other", "other@example.org"))
	require.ErrorIs(t, err, domain.ErrMemberProfileRequired)

	// With an unclaimed email the application is filed without a member.
	res, err := f.svc.ApplySeller(ctx, p, SellerApplication{
		Name: "Not Marcus", Email: "other@example.org", BusinessName: "Own Goods",
	}, "")
	require.NoError(t, err)
	require.Equal(t, string(domain.ApplicationPending), res.Status)
	require.Nil(t, res.MemberID)
}

func TestApplyStewardRefusesSecondOpenApplication(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	member := f.registerMember(t, "sub-twice", "twice@example.org", "KA-6100")
	f.verifyMember(t, member.ID)
	f.payments.err = errInjected

	first, err := f.svc.ApplySteward(ctx, f.principal(t, "sub-twice", "twice@example.org"), StewardApplication{}, "")
	require.NoError(t, err)
	require.Equal(t, string(domain.ApplicationPending), first.Status)

	_, err = f.svc.ApplySteward(ctx, f.principal(t, "sub-twice", "twice@example.org"), StewardApplication{}, "")
	require.ErrorIs(t, err, domain.ErrConflict)
	require.Equal(t, int64(1), f.count(t, "stewards"))

	// A rejected application no longer blocks a new one.
	_, err = f.svc.DecideApplication(ctx, f.admin(t), "STEWARD", first.ID, DecisionRequest{Status: "REJECTED"})
	require.NoError(t, err)
	f.payments.err = nil
	second, err := f.svc.ApplySteward(ctx, f.principal(t, "sub-twice", "twice@example.org"), StewardApplication{}, "")
	require.NoError(t, err)
	require.Equal(t, string(domain.ApplicationApproved), second.Status)
	require.Equal(t, int64(2), f.count(t, "stewards"))
}

func TestPaymentIdempotencyKeyFollowsProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(t)
	req := PromoterApplication{Name: "Keyed Promoter", Email: "keyed@example.org"}

	first, err := f.svc.ApplyPromoter(ctx, Principal{}, req, "")
	require.NoError(t, err)
	f.payments.err = errInjected
	for i := 0; i < 2; i++ {
		_, err = f.svc.DecideApplication(ctx, admin, "PROMOTER", first.ID, DecisionRequest{Status: "APPROVED"})
		require.ErrorIs(t, err, domain.ErrDependencyUnavailable)
	}
	_, err = f.svc.DecideApplication(ctx, admin, "PROMOTER", first.ID, DecisionRequest{Status: "REJECTED"})
	require.NoError(t, err)

	second, err := f.svc.ApplyPromoter(ctx, Principal{}, req, "")
	require.NoError(t, err)
	f.payments.err = nil
	_, err = f.svc.DecideApplication(ctx, admin, "PROMOTER", second.ID, DecisionRequest{Status: "APPROVED"})
	require.NoError(t, err)

	require.Len(t, f.payments.keys, 3)
	require.Equal(t, f.payments.keys[0], f.payments.keys[1])
	require.NotEqual(t, f.payments.keys[0], f.payments.keys[2])
	require.Contains(t, f.payments.keys[0], first.ID.String())
	require.Contains(t, f.payments.keys[2], second.ID.String())
}

func TestInvitationTokenLeavesOutboxOnPublish(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.tokenFn = func() (string, error) { return "secret-invite-token", nil }
	res, err := f.svc.ApplyPromoter(ctx, Principal{}, PromoterApplication{Name: "Invited", Email: "secret@example.org"}, "")
	require.NoError(t, err)
	_, err = f.svc.DecideApplication(ctx, f.admin(t), "PROMOTER", res.ID, DecisionRequest{Status: "APPROVED"})
	require.NoError(t, err)

	withToken := func() int64 {
		var n int64
		require.NoError(t, f.db.Table("identity_outbox").Where("payload LIKE ?", "%secret-invite-token%").Count(&n).Error)
		return n
	}
	require.Equal(t, int64(1), withToken())

	pending, err := f.repos.Outbox.FetchUnpublished(ctx, 50)
	require.NoError(t, err)
	for _, rec := range pending {
		require.NoError(t, f.repos.Outbox.MarkPublished(ctx, rec.OutboxID, time.Now().UTC()))
	}
	require.Equal(t, int64(0), withToken())

	var approvals int64
	require.NoError(t, f.db.Table("identity_outbox").
		Where("event_type = ? AND payload LIKE ?", "profile.approved", "%"+res.ID.String()+"%").
		Count(&approvals).Error)
	require.Equal(t, int64(1), approvals)
}
