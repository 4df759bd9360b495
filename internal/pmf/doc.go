// Package pmf provides a generic probability mass function over arbitrary
// value types, used for nodal-plane and hypocentral-depth distributions and
// per-rupture occurrence probabilities.
package pmf
