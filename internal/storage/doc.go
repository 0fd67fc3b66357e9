package storage

// Package storage persists the publication ledger and keyword cursor.
//
// It currently supports:
//   - A file backend (ASIN list, timestamped log and cursor file)
//   - An optional sqlite backend behind the "sqlite" build tag
