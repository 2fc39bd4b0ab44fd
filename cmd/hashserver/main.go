// hashserver CLI - serves page files for integration tests
package main

import "github.com/getmockd/hashserver/pkg/cli"

func main() {
	cli.Execute()
}
