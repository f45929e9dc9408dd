// Command snip stores code snippets and synchronizes them with a GitHub Gist.
package main

import "github.com/mesh-intelligence/snip/internal/cli"

func main() {
	cli.Execute()
}
