// Package auth defines the authentication abstractions shared by filerealm
// components.
//
//   - Provider: a realm that can verify username/password credentials
//   - Authenticator: chains Providers, tries each in order
//   - Result: SUCCESS(user) or FAILURE, never both
//   - User: the authenticated identity with its realm and roles
//
// Sub-packages:
//   - hasher/: password hash recognition and verification
//   - file/: the hot-reloading file realm (users and users_roles files)
//   - ldap/: directory group resolution with explicit timeout results
//   - trust/: certificate trust restriction on top of chain validation
package auth
