// Package blingblingstore is the BlingBling Store backend.
/*
blingblingstore/
├── cmd/
│   └── server/           CLI entry point: serve, migrate, seed, import-products
├── internal/
│   ├── config/           environment configuration
│   ├── database/         GORM connection, AutoMigrate, versioned SQL migrations
│   ├── models/           users, catalog, carts, orders, returns, audit log
│   ├── services/         order placement and lifecycle, cart, catalog, auth,
│   │                     payments, storage, notifications, admin
│   ├── handlers/         gin handlers
│   ├── middleware/       auth, CORS, i18n, logging, rate limiting
│   ├── i18n/             en and zh_TW messages
│   ├── router/           route table
│   ├── testutil/         in-memory test database and fixtures
│   └── utils/            JWT, validation, pagination, responses
└── go.mod
*/
package blingblingstore
