// Package drivegate provides an authenticated media gateway between a
// browser client and a third-party object-storage provider.
//
// The gateway verifies bearer identity tokens against a remotely-hosted
// rotating key set, holds a long-lived delegated credential to the storage
// provider and silently refreshes short-lived access tokens, and proxies
// large binary payloads in both directions without materializing whole
// files in memory. Each successful upload leaves a lightweight record in a
// metadata index so listing queries do not hit the provider.
//
// # Key Components
//
//   - Service: the transfer proxy combining metadata index and provider client
//   - TransferRepo: interface for index persistence (SQLite, PostgreSQL, file)
//   - Storage: interface for provider operations (create, meta, stream, list)
//   - auth package: JWKS key resolver, token verifier, allow-list policy
//   - drive package: provider REST client and delegated credential manager
//
// # List Modes
//
// GET /list serves from one of two mutually exclusive sources per
// deployment:
//
//   - ListFromIndex: the local metadata index (default)
//   - ListFromProvider: the provider's list-objects call, mapped to records
//
// See the http package for the REST surface and the database/fileindex
// packages for index backends.
package drivegate
