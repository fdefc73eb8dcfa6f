// Package migrations holds the schema migrations. Each file registers its
// migrations from init(); importing the package (blank import) makes them
// available to `orderdesk migrate` and to the server's boot-time migrate.
package migrations
