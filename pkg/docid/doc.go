// Package docid provides identifiers for pages created by an import run.
//
// Every page that survives parsing receives two identifiers that are
// generated fresh for each run and never reused:
//
//  1. UUID: the page's primary key in the destination store.
//
//  2. Slug ID: a short, URL-safe identifier used in page links
//     (e.g., "/s/engineering/p/Xk29aP0qLm").
//
// # Usage Examples
//
//	gen := docid.NewRandomGenerator()
//	id := gen.NewUUID()     // "550e8400-e29b-41d4-a716-446655440000"
//	slug := gen.NewSlugID() // "Xk29aP0qLm"
//
// Models store both identifiers as strings.
//
// Tests that need reproducible identifiers can supply their own Generator.
package docid
