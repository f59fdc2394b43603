// Package models contains GORM persistence models. Domain entities carry no
// ORM tags; each model here maps one table and converts to and from its
// domain type with ToDomain and FromDomain.
//
//   - base.go: shared id, timestamp and row_version columns
//   - catalog.go: products, price change log
//   - inventory.go: inventory ledger, stock adjustments
//   - partner.go: customers
//   - trade.go: sales, sale items, invoice versions, invoice sequences
//   - finance.go: payments, allocations, idempotency records
//   - audit.go: audit log
package models
