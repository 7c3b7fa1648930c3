// Package enrich resolves the static geolocation attached to every record.
// The lookup happens once at startup; failure degrades to unknown coordinates.
package enrich
