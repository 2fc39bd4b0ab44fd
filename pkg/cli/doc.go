// Package cli provides the command-line interface for hashserver.
//
// The cli package implements the hashserver commands:
//   - serve: Load page files and serve them until interrupted
//   - validate: Load page files and report configuration errors
//   - version: Show hashserver version
//
// Page file flags accept doublestar globs, so one flag can pick up a whole
// testdata tree:
//
//	hashserver serve --pages 'testdata/**/*.yaml' --port 8080
package cli
