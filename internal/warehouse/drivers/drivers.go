// Package drivers groups database/sql driver registrations so the heavy
// dependencies stay out of packages that never open a connection. Binaries
// import it for its side effects.
package drivers

// Ready is a no-op that makes the blank import explicit at call sites.
func Ready() {}
