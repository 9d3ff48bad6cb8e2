/*
Package dsl provides a Go DSL for programmatically constructing pageflow graphs.

It lets developers define flows with a type-safe, fluent builder instead of
YAML files. This is handy for unit tests and for flows generated at runtime.

Example usage:

	b := dsl.New("signup").Describe("Account creation wizard")

	b.Add("start").On("submit", "review")
	b.Add("review").On("confirm", "done").On("back", "start")
	b.Add("done").Terminal()

	graph, err := b.Build()
	// ... register graph in a catalog.Catalog
*/
package dsl
