// Package authgate authenticates end users for a web application via
// two entry paths, direct username/password signup and OAuth-style
// identity federation, and unifies both into one bearer-token model.
//
// The package exposes the identity-linking state machine
// (IdentityLinker), the token authority (TokenService), the local
// signup/signin flow (Auther), and the account store contract
// (Accounts). HTTP wiring lives in the httpapi, federation, and
// middleware/gateware packages.
package authgate
