package repository

import (
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

type Repositories struct {
	Preferences  PreferenceRepository
	CoinValues   CoinValueRepository
	Sales        SalesRepository
	Sessions     SessionRepository
	Subscription SubscriptionRepository
}

func NewRepositories(db *sqlx.DB, rdb *redis.Client) *Repositories {
	return &Repositories{
		Preferences:  NewPreferenceRepository(rdb),
		CoinValues:   NewCoinValueRepository(rdb),
		Sales:        NewSalesRepository(db),
		Sessions:     NewSessionRepository(rdb),
		Subscription: NewSubscriptionRepository(rdb),
	}
}
