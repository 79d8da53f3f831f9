// Package users is the SQL user directory consulted by the role service: who
// holds which role, and reassignment of a user's role.
package users
