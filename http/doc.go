// Package http provides the HTTP surface of the drivegate media gateway.
//
// The package exposes a small authenticated REST API that proxies file
// bytes between browser clients and the storage provider:
//
//   - GET /health, GET /diag: liveness and diagnostics, no auth
//   - GET /list: transfer records, newest first
//   - POST /upload: multipart upload (file field plus optional caption)
//   - GET /file/{id}, GET /api/file/{id}: raw byte stream of an object
//
// # Authentication
//
// Authenticated routes sit behind AuthMiddleware, which requires an
// `Authorization: Bearer <token>` header, verifies the token through a
// TokenVerifier, and gates the verified identity through an Authorizer:
//
//	resolver, _ := auth.NewKeyResolver(auth.KeyResolverConfig{URL: jwksURL})
//	verifier, _ := auth.NewVerifier(resolver, auth.VerifierConfig{
//	    Issuer:   "https://accounts.example.com",
//	    Audience: "my-client-id",
//	})
//	policy := auth.NewAllowList(nil) // empty list = any verified caller
//
//	handlerCfg := http.HandlerConfig{Verifier: verifier, Policy: policy}
//	handler := http.NewHandler(&handlerCfg, service)
//	http.ListenAndServe(":8080", handler.Router())
//
// Missing or malformed credentials yield 401, an identity outside the
// allow list 403; both carry generic JSON bodies so verification detail
// never reaches the caller.
//
// # Streaming
//
// Uploads are parsed with a bounded memory threshold; larger bodies
// spool to disk, keeping the file part seekable for the provider client's
// single bounded retry. Downloads copy the provider's media stream
// straight to the response writer; a client disconnect cancels the
// request context and with it the upstream read.
package http
