package application

import (
	"context"
	"testing"

	"github.com/buddywood/northstarnupes-sub002/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// approvedOutsideSeller walks a non-member seller through approval, admin
// verification and invitation claim, and returns the seller principal.
func approvedOutsideSeller(t *testing.T, f *fixture) (Principal, uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	f.svc.tokenFn = func() (string, error) { return "seller-invite", nil }
	admin := f.admin(t)

	res, err := f.svc.ApplySeller(ctx, Principal{}, SellerApplication{
		Name: "Outside Vendor", Email: "vendor@example.org", BusinessName: "Vendor Co",
	}, "")
	require.NoError(t, err)
	require.Equal(t, string(domain.ApplicationPending), res.Status)

	approved, err := f.svc.DecideApplication(ctx, admin, "SELLER", res.ID, DecisionRequest{Status: "APPROVED"})
	require.NoError(t, err)
	require.Equal(t, string(domain.ApplicationApproved), approved.Status)
	require.Equal(t, string(domain.VerificationPending), approved.VerificationStatus)

	verified, err := f.svc.SetSellerVerification(ctx, res.ID, VerificationRequest{Status: "VERIFIED", Notes: "documents checked"})
	require.NoError(t, err)
	require.Equal(t, string(domain.VerificationVerified), verified.VerificationStatus)

	_, err = f.svc.ClaimInvitation(ctx, Principal{Claims: claimsFor("sub-vendor", "vendor@example.org")}, ClaimInvitationRequest{
		Kind: "SELLER", ProfileID: res.ID.String(), Token: "seller-invite",
	})
	require.NoError(t, err)
	return f.principal(t, "sub-vendor", "vendor@example.org"), res.ID
}

func TestBrandedProductResetsVerificationOfNonMemberSeller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, sellerID := approvedOutsideSeller(t, f)
	requireConsistent(t, *p.Account)
	require.Equal(t, domain.PersonaSeller, p.Account.Persona)

	plain, err := f.svc.CreateProduct(ctx, p, ProductRequest{Name: "Plain Tee", PriceCents: 2000})
	require.NoError(t, err)
	require.Equal(t, string(domain.VerificationVerified), plain.SellerVerificationStatus)

	branded, err := f.svc.CreateProduct(ctx, p, ProductRequest{Name: "Crest Hoodie", PriceCents: 6500, IsKappaBranded: true})
	require.NoError(t, err)
	require.Equal(t, string(domain.VerificationPending), branded.SellerVerificationStatus)

	seller, err := f.repos.Sellers.GetByID(ctx, sellerID)
	require.NoError(t, err)
	require.Equal(t, domain.VerificationPending, seller.VerificationStatus)
	require.Contains(t, seller.VerificationNotes, "documents checked")
	require.Contains(t, seller.VerificationNotes, branded.ID.String())
	require.Equal(t, 1, f.metrics.resets)
	require.Equal(t, int64(2), f.count(t, "products"))

	// While PENDING, further branded items need an admin decision first.
	_, err = f.svc.CreateProduct(ctx, p, ProductRequest{Name: "Crest Cap", PriceCents: 2500, IsKappaBranded: true})
	require.ErrorIs(t, err, domain.ErrVerificationRequired)
	require.Equal(t, int64(2), f.count(t, "products"))
}

func TestBrandedProductKeepsVerifiedMemberSeller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	member := f.registerMember(t, "sub-brand", "brand@example.org", "KA-1200")
	f.verifyMember(t, member.ID)
	res, err := f.svc.ApplySeller(ctx, f.principal(t, "sub-brand", "brand@example.org"), SellerApplication{
		Name: "Marcus Hill", Email: "brand@example.org",
	}, "")
	require.NoError(t, err)
	require.Equal(t, string(domain.ApplicationApproved), res.Status)

	product, err := f.svc.CreateProduct(ctx, f.principal(t, "sub-brand", "brand@example.org"), ProductRequest{
		Name: "Crest Pin", PriceCents: 1500, IsKappaBranded: true,
	})
	require.NoError(t, err)
	require.Equal(t, string(domain.VerificationVerified), product.SellerVerificationStatus)
	require.Equal(t, 0, f.metrics.resets)
}

func TestCreateProductRequiresApprovedSeller(t *testing.T) {
	f := newFixture(t)
	f.registerMember(t, "sub-guest", "guest@example.org", "KA-1300")

	_, err := f.svc.CreateProduct(context.Background(), f.principal(t, "sub-guest", "guest@example.org"), ProductRequest{Name: "Tee", PriceCents: 100})
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.CreateProduct(context.Background(), Principal{}, ProductRequest{Name: "Tee", PriceCents: 100})
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestOrphanedMemberRefIsHealed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	member := f.registerMember(t, "sub-orphan", "orphan@example.org", "KA-1400")
	require.NoError(t, f.repos.Members.Delete(ctx, member.ID))

	p := f.principal(t, "sub-orphan", "orphan@example.org")
	_, err := f.svc.GetMemberProfile(ctx, p)
	require.ErrorIs(t, err, domain.ErrMemberNotFound)

	account := f.account(t, "sub-orphan")
	requireConsistent(t, account)
	require.Nil(t, account.Profile)
	require.Equal(t, domain.PersonaGuest, account.Persona)
	require.Equal(t, domain.OnboardingInProgress, account.OnboardingStage)
	require.Equal(t, 1, f.metrics.healed[string(domain.ProfileKindMember)])

	me, err := f.svc.GetMe(ctx, f.principal(t, "sub-orphan", "orphan@example.org"))
	require.NoError(t, err)
	require.Nil(t, me.Member)
	require.Empty(t, me.Account.ProfileKind)
}

func TestOrphanedSellerRefIsHealed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, sellerID := approvedOutsideSeller(t, f)
	require.NoError(t, f.repos.PersonaProfiles.Delete(ctx, domain.ProfileKindSeller, sellerID))

	_, err := f.svc.CreateProduct(ctx, p, ProductRequest{Name: "Tee", PriceCents: 100})
	require.ErrorIs(t, err, domain.ErrSellerNotApproved)

	account := f.account(t, "sub-vendor")
	requireConsistent(t, account)
	require.Nil(t, account.Profile)
	require.Equal(t, domain.PersonaGuest, account.Persona)
	require.Equal(t, 1, f.metrics.healed[string(domain.ProfileKindSeller)])
}

func TestOrphanedStewardRefIsHealed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	member := f.registerMember(t, "sub-st", "st@example.org", "KA-1500")
	f.verifyMember(t, member.ID)
	res, err := f.svc.ApplySteward(ctx, f.principal(t, "sub-st", "st@example.org"), StewardApplication{}, "")
	require.NoError(t, err)
	require.NoError(t, f.repos.PersonaProfiles.Delete(ctx, domain.ProfileKindSteward, res.ID))

	_, err = f.svc.GetOwnSteward(ctx, f.principal(t, "sub-st", "st@example.org"))
	require.ErrorIs(t, err, domain.ErrStewardProfileRequired)
	require.Nil(t, f.account(t, "sub-st").Profile)
}

func TestStewardMarketplaceHidesPrivateFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	member := f.registerMember(t, "sub-host", "host@example.org", "KA-1600")
	f.verifyMember(t, member.ID)
	_, err := f.svc.ApplySteward(ctx, f.principal(t, "sub-host", "host@example.org"), StewardApplication{Phone: "+1 555 123 4567"}, "")
	require.NoError(t, err)

	viewer := f.registerMember(t, "sub-viewer", "viewer@example.org", "KA-1601")
	_, err = f.svc.ListStewardMarketplace(ctx, f.principal(t, "sub-viewer", "viewer@example.org"), 10, 0)
	require.ErrorIs(t, err, domain.ErrVerificationRequired)

	f.verifyMember(t, viewer.ID)
	list, err := f.svc.ListStewardMarketplace(ctx, f.principal(t, "sub-viewer", "viewer@example.org"), 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Empty(t, list[0].PaymentAccountID)
	require.False(t, list[0].InvitationPending)
}

func TestRemoveAccountPurgesProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	member := f.registerMember(t, "sub-gone", "gone@example.org", "KA-1700")
	account := f.account(t, "sub-gone")

	res, err := f.svc.RemoveAccount(ctx, account.ID, true)
	require.NoError(t, err)
	require.True(t, res.ProfilePurged)
	require.Equal(t, int64(0), f.count(t, "accounts"))
	require.Equal(t, int64(0), f.count(t, "identity_claims"))
	_, err = f.repos.Members.GetByID(ctx, member.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	// The identity is free again.
	f.registerMember(t, "sub-back", "gone@example.org", "KA-1700")
}
