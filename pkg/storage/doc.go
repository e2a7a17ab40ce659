// Package storage provides utilities shared across storage adapter
// implementations: sentinel errors and owner context helpers.
//
// Adapters (memory, postgres) implement account.CredentialStore and
// documents.Store; blob adapters (memory, s3) implement documents.BlobStore.
// The interfaces live with their consumers, not here.
package storage
