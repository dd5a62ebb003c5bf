// Package export reads space-export archives: a zip holding an entities.xml
// object dump at its root and an attachments/ tree keyed by owning page,
// attachment ID and version.
//
// Parsing never writes to the filesystem. Records that are not current, or
// that carry an originalVersion back-reference, are dropped so that only the
// latest version of each logical page survives.
package export
