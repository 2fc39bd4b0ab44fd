// Package page defines the declarative page table served by hashserver.
//
// A page table maps absolute URL paths to page descriptors. Three descriptor
// variants exist:
//
//   - *Content: a static body with an ordered header list and a status code
//   - *Redirect: a Location redirect, 301 unless another status is given
//   - *Callback: a function computing a raw HTTP response per request
//
// Bare strings and byte slices are shorthand for *Content with the default
// "Content-Type: text/html; charset=UTF-8" header and status 200:
//
//	table, err := page.NewTable(page.Pages{
//	    "/":        "home",
//	    "/foo":     []byte("foo"),
//	    "/foo-bar": &page.Redirect{Target: "/bar"},
//	    "/auth":    &page.Content{Body: []byte("secret"), Auth: "user:password"},
//	})
//
// Every descriptor may require HTTP basic authentication through its Auth
// field ("user:password"). Descriptors are resolved once when the table is
// built and are never mutated afterwards, so a Table is safe for concurrent
// use.
package page
