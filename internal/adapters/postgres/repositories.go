package postgres

import (
	"github.com/buddywood/northstarnupes-sub002/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
	Tx              ports.Transactor
	Accounts        ports.AccountRepository
	Members         ports.MemberRepository
	PersonaProfiles ports.PersonaProfileRepository
	Sellers         ports.SellerRepository
	Promoters       ports.PromoterRepository
	Stewards        ports.StewardRepository
	Claims          ports.ClaimRepository
	Products        ports.ProductRepository
	Outbox          ports.OutboxRepository
	EventDedup      ports.EventDedupRepository
	Idempotency     ports.IdempotencyRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	sellers := &sellerRepository{db: db}
	promoters := &promoterRepository{db: db}
	stewards := &stewardRepository{db: db}
	return Repositories{
		Tx:       &transactor{db: db},
		Accounts: &accountRepository{db: db},
		Members:  &memberRepository{db: db},
		PersonaProfiles: &personaProfileRepository{
			db: db, sellers: sellers, promoters: promoters, stewards: stewards,
		},
		Sellers:     sellers,
		Promoters:   promoters,
		Stewards:    stewards,
		Claims:      &claimRepository{db: db},
		Products:    &productRepository{db: db},
		Outbox:      &outboxRepository{db: db},
		EventDedup:  &eventDedupRepository{db: db},
		Idempotency: &idempotencyRepository{db: db},
	}
}
