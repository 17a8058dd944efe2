// Package types defines the Store and Table interfaces, the Document entity
// and the standard errors for persisting tracked trees.
//
// A Document holds the plain form of one tracked root. Backends implement
// Store; callers attach, fetch the documents table and detach when done.
package types
