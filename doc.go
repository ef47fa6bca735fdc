// Package dql holds the error kinds and cache contracts shared by the DQL
// compiler packages.
//
// DQL is an object-oriented, SQL-like query language that references mapped
// components and their relations instead of tables and columns:
//
//	SELECT u.name, COUNT(p.id) num
//	FROM User u LEFT JOIN u.Phonenumber p
//	GROUP BY u.id ORDER BY num DESC LIMIT 10
//
// The compiler itself lives in package query; package compiler wraps it with
// caching and batch compilation, and package schema describes the components
// a statement may reference.
//
// # Errors
//
// Compilation fails with one of the following error kinds, each matched by a
// helper:
//
//   - SyntaxError (IsSyntaxError)
//   - UnknownComponentError (IsUnknownComponent)
//   - UnknownRelationError (IsUnknownRelation)
//   - UnknownColumnError (IsUnknownColumn)
//   - ErrEmptyQuery (IsEmptyQuery)
//
// All of them are terminal: no partial SQL is ever returned.
package dql
